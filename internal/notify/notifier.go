// Package notify delivers per-user events outside any session room. Delivery
// is best effort: events for users with no live subscription are dropped, and
// the session lifecycle never blocks on a subscriber.
package notify

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/metrics"
)

// Conn is the write side of a subscriber connection.
type Conn interface {
	Send(data []byte) error
}

// Notifier fans events out to a user's subscribed connections. A user may
// hold several subscriptions at once (multiple tabs); each gets every event.
type Notifier struct {
	log  *logrus.Entry
	mu   sync.RWMutex
	subs map[string]map[Conn]struct{}
}

func NewNotifier(logger *logrus.Logger) *Notifier {
	return &Notifier{
		log:  logger.WithField("component", "notify"),
		subs: make(map[string]map[Conn]struct{}),
	}
}

// Subscribe registers a connection for a user's events.
func (n *Notifier) Subscribe(userID string, c Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[userID] == nil {
		n.subs[userID] = make(map[Conn]struct{})
	}
	n.subs[userID][c] = struct{}{}
	n.log.WithField("user", userID).Debug("notification subscription added")
}

// Unsubscribe removes a connection. Safe to call more than once.
func (n *Notifier) Unsubscribe(userID string, c Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	conns, ok := n.subs[userID]
	if !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(n.subs, userID)
	}
}

// subscriptionCount reports how many live subscriptions a user holds.
func (n *Notifier) subscriptionCount(userID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[userID])
}

// Notify marshals the event and sends it to every subscription the user
// holds. Users without subscriptions are silently skipped.
func (n *Notifier) Notify(userID string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		n.log.WithField("user", userID).WithError(err).Error("notification marshal failed")
		return
	}

	n.mu.RLock()
	conns := make([]Conn, 0, len(n.subs[userID]))
	for c := range n.subs[userID] {
		conns = append(conns, c)
	}
	n.mu.RUnlock()

	if len(conns) == 0 {
		metrics.NotificationsDropped.Inc()
		return
	}
	for _, c := range conns {
		if err := c.Send(data); err != nil {
			n.log.WithField("user", userID).WithError(err).Warn("notification send failed")
			continue
		}
		metrics.NotificationsDelivered.Inc()
	}
}
