package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Envelope is a decoded room channel message. Payload fields beyond the type
// tag are opaque to the relay and forwarded untouched.
type Envelope map[string]interface{}

var (
	ErrInvalidEnvelope    = errors.New("message is not a JSON object with a type tag")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// requiredFields lists the payload fields each tag must carry. Fields that
// clients may omit (chat timestamp, whiteboard color and size) are filled in
// by Normalize instead of being rejected.
var requiredFields = map[string][]string{
	MessageTypeOffer:            {"offer"},
	MessageTypeAnswer:           {"answer"},
	MessageTypeICECandidate:     {"candidate"},
	MessageTypeChatMessage:      {"message"},
	MessageTypeSessionRequest:   {"course_id"},
	MessageTypeSessionAccept:    {},
	MessageTypeSessionEnd:       {},
	MessageTypeWhiteboardDraw:   {"x", "y", "x0", "y0"},
	MessageTypeWhiteboardClear:  {},
	MessageTypeScreenShareStart: {},
	MessageTypeScreenShareStop:  {},
}

// DecodeEnvelope parses a raw client frame into an Envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, ErrInvalidEnvelope
	}
	if _, ok := e["type"].(string); !ok {
		return nil, ErrInvalidEnvelope
	}
	return e, nil
}

// Type returns the message type tag.
func (e Envelope) Type() string {
	t, _ := e["type"].(string)
	return t
}

// Validate checks the type tag against the fixed set and verifies the
// required payload fields are present.
func (e Envelope) Validate() error {
	fields, ok := requiredFields[e.Type()]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, e.Type())
	}
	for _, f := range fields {
		if _, present := e[f]; !present {
			return fmt.Errorf("%w: missing field %q for %s", ErrInvalidEnvelope, f, e.Type())
		}
	}
	return nil
}

// Normalize attaches the sender identity and fills per-type defaults. The
// sender fields always win over client-supplied ones.
func (e Envelope) Normalize(senderID, senderName string, now time.Time) {
	e["sender_id"] = senderID
	e["sender"] = senderName
	switch e.Type() {
	case MessageTypeChatMessage:
		if _, ok := e["timestamp"]; !ok {
			e["timestamp"] = now.UTC().Format(time.RFC3339)
		}
	case MessageTypeWhiteboardDraw:
		if _, ok := e["color"]; !ok {
			e["color"] = "#000000"
		}
		if _, ok := e["size"]; !ok {
			e["size"] = 2
		}
	case MessageTypeSessionEnd:
		if _, ok := e["chat_log"]; !ok {
			e["chat_log"] = []interface{}{}
		}
	}
}

// Encode marshals the envelope for transport.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
