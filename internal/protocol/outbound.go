package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/chaitanya5469/CodePilot/internal/room"
)

// A server event addressed to one or more clients
type Outbound interface {
	EventName() string
}

type AssignColor struct {
	ConnectionID string `json:"connectionId"`
	Color        string `json:"color"`
}

type UserListUpdate []room.Participant

// Ownership pairs are sent as [rangeKey, connectionId] arrays
type TextOwnership [][2]string

type DocumentUpdate string

type CursorUpdate struct {
	ConnectionID string          `json:"connectionId"`
	Cursor       json.RawMessage `json:"cursor"`
	Name         string          `json:"name"`
	Color        string          `json:"color"`
}

type Pong struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type Error struct {
	Message string `json:"message"`
}

func (AssignColor) EventName() string    { return EventAssignColor }
func (UserListUpdate) EventName() string { return EventUserListUpdate }
func (TextOwnership) EventName() string  { return EventTextOwnership }
func (DocumentUpdate) EventName() string { return EventDocumentUpdate }
func (CursorUpdate) EventName() string   { return EventCursorUpdate }
func (Pong) EventName() string           { return EventPong }
func (Error) EventName() string          { return EventError }

func NewTextOwnership(entries []room.Ownership) TextOwnership {
	pairs := make(TextOwnership, len(entries))
	for i, e := range entries {
		pairs[i] = [2]string{string(e.Key), e.ConnectionID}
	}
	return pairs
}

// Encode wraps msg in an envelope named after its event
func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.EventName(), err)
	}
	return json.Marshal(Envelope{Event: msg.EventName(), Data: data})
}
