package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chaitanya5469/CodePilot/internal/room"
)

// Inbound event names (client to server)
const (
	EventJoinSession = "joinSession"
	EventTextChange  = "textChange"
	EventCodeChange  = "codeChange"
	EventCursorMove  = "cursorMove"
	EventPing        = "ping"
)

// Outbound event names (server to client)
const (
	EventAssignColor    = "assignColor"
	EventUserListUpdate = "userListUpdate"
	EventTextOwnership  = "textOwnership"
	EventDocumentUpdate = "documentUpdate"
	EventCursorUpdate   = "cursorUpdate"
	EventPong           = "pong"
	EventError          = "error"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Every frame on the wire, in either direction
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// A validated client event
type Inbound interface {
	EventName() string
}

type JoinSession struct {
	SessionID string
}

type TextChange struct {
	SessionID    string
	ConnectionID string
	Range        room.Range
	Text         string
}

type CodeChange struct {
	SessionID string
	Text      string
}

type CursorMove struct {
	SessionID string
	Cursor    json.RawMessage
}

type Ping struct {
	Data json.RawMessage
}

func (JoinSession) EventName() string { return EventJoinSession }
func (TextChange) EventName() string  { return EventTextChange }
func (CodeChange) EventName() string  { return EventCodeChange }
func (CursorMove) EventName() string  { return EventCursorMove }
func (Ping) EventName() string        { return EventPing }

type textChangePayload struct {
	SessionID    string      `json:"sessionId"`
	ConnectionID string      `json:"connectionId"`
	UserID       string      `json:"userId"`
	Range        *room.Range `json:"range"`
	Text         string      `json:"text"`
}

type codeChangePayload struct {
	SessionID string  `json:"sessionId"`
	Text      *string `json:"text"`
	Code      *string `json:"code"`
}

type cursorMovePayload struct {
	SessionID string          `json:"sessionId"`
	Cursor    json.RawMessage `json:"cursor"`
}

// Decode parses one frame and validates its payload against the event's
// schema. Frames that fail validation never reach session logic.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope: %v", ErrInvalidPayload, err)
	}

	switch env.Event {
	case EventJoinSession:
		id, err := decodeSessionID(env.Data)
		if err != nil {
			return nil, err
		}
		return JoinSession{SessionID: id}, nil

	case EventTextChange:
		var p textChangePayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.ConnectionID == "" {
			p.ConnectionID = p.UserID
		}
		if err := requireSession(env.Event, p.SessionID); err != nil {
			return nil, err
		}
		if p.ConnectionID == "" {
			return nil, fmt.Errorf("%w: %s: missing connectionId", ErrInvalidPayload, env.Event)
		}
		if p.Range == nil {
			return nil, fmt.Errorf("%w: %s: missing range", ErrInvalidPayload, env.Event)
		}
		return TextChange{
			SessionID:    p.SessionID,
			ConnectionID: p.ConnectionID,
			Range:        *p.Range,
			Text:         p.Text,
		}, nil

	case EventCodeChange:
		var p codeChangePayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if err := requireSession(env.Event, p.SessionID); err != nil {
			return nil, err
		}
		text := p.Text
		if text == nil {
			text = p.Code
		}
		if text == nil {
			return nil, fmt.Errorf("%w: %s: missing text", ErrInvalidPayload, env.Event)
		}
		return CodeChange{SessionID: p.SessionID, Text: *text}, nil

	case EventCursorMove:
		var p cursorMovePayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if err := requireSession(env.Event, p.SessionID); err != nil {
			return nil, err
		}
		if len(p.Cursor) == 0 {
			return nil, fmt.Errorf("%w: %s: missing cursor", ErrInvalidPayload, env.Event)
		}
		return CursorMove{SessionID: p.SessionID, Cursor: p.Cursor}, nil

	case EventPing:
		return Ping{Data: env.Data}, nil

	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrInvalidPayload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// joinSession carries the bare session id; an object form is also accepted
func decodeSessionID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", fmt.Errorf("%w: %s: expected session id", ErrInvalidPayload, EventJoinSession)
		}
		id = obj.SessionID
	}
	if err := requireSession(EventJoinSession, id); err != nil {
		return "", err
	}
	return id, nil
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s: missing data", ErrInvalidPayload, env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Event, err)
	}
	return nil
}

func requireSession(event, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s: missing sessionId", ErrInvalidPayload, event)
	}
	return nil
}
