package room

import (
	"sort"
	"sync"
)

// Registry maps session identifiers to live rooms. It is the only owner of
// room creation and teardown; everything else reaches rooms through it.
type Registry struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// Returns the room for id, creating an empty one if none exists
func (g *Registry) GetOrCreate(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[id]; ok {
		return r, false
	}
	r := NewRoom(id)
	g.rooms[id] = r
	return r, true
}

func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

func (g *Registry) Delete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, id)
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Returns every room whose roster contains connID, ordered by session id
func (g *Registry) FindMember(connID string) []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var found []*Room
	for _, r := range g.rooms {
		if r.HasParticipant(connID) {
			found = append(found, r)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	return found
}

// Snapshot returns a per-session summary for diagnostics
func (g *Registry) Snapshot() map[string]Info {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]Info, len(g.rooms))
	for id, r := range g.rooms {
		out[id] = r.Info()
	}
	return out
}

// Returns the participant count per session
func (g *Registry) Occupancy() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]int, len(g.rooms))
	for id, r := range g.rooms {
		out[id] = r.Size()
	}
	return out
}
