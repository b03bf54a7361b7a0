package room

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chaitanya5469/CodePilot/internal/palette"
)

// Identifies a text range by its four bounds
type RangeKey string

// A text range in editor coordinates (1-based lines and columns)
type Range struct {
	StartLineNumber int `json:"startLineNumber"`
	StartColumn     int `json:"startColumn"`
	EndLineNumber   int `json:"endLineNumber"`
	EndColumn       int `json:"endColumn"`
}

// Key returns the ownership key for the range. Ranges with identical bounds
// share a key; there is no overlap detection between different bounds.
func (r Range) Key() RangeKey {
	return RangeKey(fmt.Sprintf("%d-%d-%d-%d", r.StartLineNumber, r.StartColumn, r.EndLineNumber, r.EndColumn))
}

// A connected client's identity within one room
type Participant struct {
	ConnectionID string `json:"connectionId"`
	Color        string `json:"color"`
	Name         string `json:"name"`
}

// One ownership entry: the connection that last claimed a range
type Ownership struct {
	Key          RangeKey
	ConnectionID string
}

// Derives the display name shown to other participants
func DisplayName(connID string) string {
	if len(connID) > 4 {
		connID = connID[len(connID)-4:]
	}
	return "User " + connID
}

// A collaborative editing session
type Room struct {
	ID        string
	document  string
	roster    []Participant
	ownership map[RangeKey]string
	mu        sync.RWMutex
}

// Creates a new room with the given ID
func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		roster:    make([]Participant, 0),
		ownership: make(map[RangeKey]string),
	}
}

func (r *Room) Document() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.document
}

// Replaces the whole document; last writer wins
func (r *Room) SetDocument(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.document = text
}

// AddParticipant inserts connID at the end of the roster. The color is picked
// from the roster size at insertion time, so colors repeat as people churn.
// Adding a connection that is already present returns the existing entry.
func (r *Room) AddParticipant(connID string) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(connID); i >= 0 {
		return r.roster[i]
	}

	p := Participant{
		ConnectionID: connID,
		Color:        palette.ColorFor(len(r.roster)),
		Name:         DisplayName(connID),
	}
	r.roster = append(r.roster, p)
	return p
}

// Removes connID from the roster, reporting whether it was present
func (r *Room) RemoveParticipant(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(connID)
	if i < 0 {
		return false
	}
	r.roster = append(r.roster[:i], r.roster[i+1:]...)
	return true
}

func (r *Room) Participant(connID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(connID); i >= 0 {
		return r.roster[i], true
	}
	return Participant{}, false
}

func (r *Room) HasParticipant(connID string) bool {
	_, ok := r.Participant(connID)
	return ok
}

// Returns a copy of the roster in join order
func (r *Room) Roster() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roster := make([]Participant, len(r.roster))
	copy(roster, r.roster)
	return roster
}

func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roster)
}

func (r *Room) Empty() bool {
	return r.Size() == 0
}

// Records connID as the owner of rng, overwriting any previous owner
func (r *Room) SetOwner(rng Range, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ownership[rng.Key()] = connID
}

// ReleaseOwnership drops every entry owned by connID and returns how many
// were removed. Entries owned by other connections are untouched.
func (r *Room) ReleaseOwnership(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, owner := range r.ownership {
		if owner == connID {
			delete(r.ownership, key)
			removed++
		}
	}
	return removed
}

// Returns all ownership entries sorted by key
func (r *Room) Ownership() []Ownership {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Ownership, 0, len(r.ownership))
	for key, owner := range r.ownership {
		entries = append(entries, Ownership{Key: key, ConnectionID: owner})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func (r *Room) OwnershipCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ownership)
}

func (r *Room) indexOf(connID string) int {
	for i, p := range r.roster {
		if p.ConnectionID == connID {
			return i
		}
	}
	return -1
}

// Diagnostic summary of a room
type Info struct {
	UserCount      int           `json:"userCount"`
	Users          []Participant `json:"users"`
	CodeLength     int           `json:"codeLength"`
	OwnershipCount int           `json:"ownershipCount"`
}

func (r *Room) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]Participant, len(r.roster))
	copy(users, r.roster)
	return Info{
		UserCount:      len(r.roster),
		Users:          users,
		CodeLength:     len(r.document),
		OwnershipCount: len(r.ownership),
	}
}
