// Package relay fans signaling, chat and whiteboard frames out between the
// members of a session room. It validates and annotates envelopes but never
// drives session lifecycle: accept and end travel over the HTTP API, and a
// session_accept or session_end tag passing through a room is relayed as an
// ordinary message.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/metrics"
	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

// room holds the live members of one session, keyed by user id. A second
// connection from the same user replaces the first. A room unlinked from the
// registry is marked closed so late joiners cannot strand themselves in it.
type room struct {
	mu      sync.RWMutex
	closed  bool
	members map[string]*Connection
}

func (r *room) add(c *Connection) (prev *Connection, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	prev = r.members[c.UserID()]
	r.members[c.UserID()] = c
	return prev, true
}

// remove drops c only if it is still the user's current connection. A stale
// connection that was replaced by a reconnect reports removed=false; the
// user is still present through the newer connection.
func (r *room) remove(c *Connection) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[c.UserID()] != c {
		return false, false
	}
	delete(r.members, c.UserID())
	return true, len(r.members) == 0
}

// others returns every member except the given user.
func (r *room) others(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.members))
	for id, c := range r.members {
		if id != userID {
			out = append(out, c)
		}
	}
	return out
}

// Registry tracks rooms by token and routes frames between their members.
type Registry struct {
	log   *logrus.Entry
	mu    sync.RWMutex
	rooms map[string]*room
	now   func() time.Time
}

func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		log:   logger.WithField("component", "relay"),
		rooms: make(map[string]*room),
		now:   time.Now,
	}
}

// Join adds a connection to its room, creating the room on first entry, and
// announces presence:joined to the members already there. If the same user
// was already connected, the stale connection is closed and replaced.
func (reg *Registry) Join(c *Connection) {
	var rm *room
	var prev *Connection
	for {
		reg.mu.Lock()
		cur, ok := reg.rooms[c.RoomToken()]
		if !ok {
			cur = &room{members: make(map[string]*Connection)}
			reg.rooms[c.RoomToken()] = cur
		}
		reg.mu.Unlock()

		var added bool
		if prev, added = cur.add(c); added {
			rm = cur
			break
		}
		// Raced with the teardown of an emptying room; fetch a fresh one.
	}

	if prev != nil {
		prev.Close()
	} else {
		metrics.RoomConnections.Inc()
	}

	reg.announce(rm, c, types.EventPresenceJoined)
	reg.log.WithFields(logrus.Fields{
		"room": c.RoomToken(),
		"user": c.UserID(),
		"role": c.Role(),
	}).Info("room joined")
}

// Leave removes a connection, announces presence:left to the remaining
// members, and deletes the room once it empties. Leaving says nothing about
// the session's status; a dropped peer can reconnect with the same token.
func (reg *Registry) Leave(c *Connection) {
	reg.mu.RLock()
	rm, ok := reg.rooms[c.RoomToken()]
	reg.mu.RUnlock()
	if !ok {
		c.Close()
		return
	}

	removed, empty := rm.remove(c)
	if !removed {
		// A reconnect replaced this connection; the user is still in the
		// room, so no departure is announced.
		c.Close()
		return
	}

	metrics.RoomConnections.Dec()
	if empty {
		// Re-check under both locks: a join may have slipped in between
		// remove and here, and must not be stranded in an unlinked room.
		reg.mu.Lock()
		rm.mu.Lock()
		if len(rm.members) == 0 {
			rm.closed = true
			delete(reg.rooms, c.RoomToken())
		}
		rm.mu.Unlock()
		reg.mu.Unlock()
	} else {
		reg.announce(rm, c, types.EventPresenceLeft)
	}
	c.Close()
	reg.log.WithFields(logrus.Fields{
		"room": c.RoomToken(),
		"user": c.UserID(),
	}).Info("room left")
}

// Relay validates an inbound frame, stamps sender identity and defaults, and
// fans it out to every other room member. Unknown or malformed frames are
// dropped and logged; they never terminate the connection.
func (reg *Registry) Relay(c *Connection, raw []byte) {
	env, err := types.DecodeEnvelope(raw)
	if err == nil {
		err = env.Validate()
	}
	if err != nil {
		metrics.MessagesDropped.Inc()
		reg.log.WithFields(logrus.Fields{
			"room": c.RoomToken(),
			"user": c.UserID(),
		}).WithError(err).Warn("dropping message")
		return
	}

	env.Normalize(c.UserID(), c.UserName(), reg.now())
	data, err := env.Encode()
	if err != nil {
		metrics.MessagesDropped.Inc()
		reg.log.WithError(err).Error("encode relay message")
		return
	}

	reg.mu.RLock()
	rm, ok := reg.rooms[c.RoomToken()]
	reg.mu.RUnlock()
	if !ok {
		return
	}

	for _, member := range rm.others(c.UserID()) {
		if err := member.Send(data); err != nil {
			reg.log.WithFields(logrus.Fields{
				"room": c.RoomToken(),
				"to":   member.UserID(),
			}).WithError(err).Warn("relay send failed")
		}
	}
	metrics.MessagesRelayed.WithLabelValues(env.Type()).Inc()
}

// MemberCount reports how many members a room currently has.
func (reg *Registry) MemberCount(roomToken string) int {
	reg.mu.RLock()
	rm, ok := reg.rooms[roomToken]
	reg.mu.RUnlock()
	if !ok {
		return 0
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.members)
}

func (reg *Registry) announce(rm *room, c *Connection, event string) {
	data, err := json.Marshal(types.PresenceEvent{
		Type:     event,
		UserID:   c.UserID(),
		Username: c.UserName(),
	})
	if err != nil {
		return
	}
	for _, member := range rm.others(c.UserID()) {
		_ = member.Send(data)
	}
}

// CloseAll drops every connection, used during shutdown.
func (reg *Registry) CloseAll() {
	reg.mu.Lock()
	rooms := reg.rooms
	reg.rooms = make(map[string]*room)
	reg.mu.Unlock()

	for _, rm := range rooms {
		rm.mu.Lock()
		rm.closed = true
		for _, c := range rm.members {
			c.Close()
		}
		rm.mu.Unlock()
	}
}
