package session

import (
	"encoding/json"
	"log"
	"time"

	"github.com/chaitanya5469/CodePilot/internal/protocol"
	"github.com/chaitanya5469/CodePilot/internal/room"
)

// Emitter delivers an outbound event to a single connection
type Emitter interface {
	Emit(connID string, msg protocol.Outbound)
}

// EmitterFunc adapts a function to the Emitter interface
type EmitterFunc func(connID string, msg protocol.Outbound)

func (f EmitterFunc) Emit(connID string, msg protocol.Outbound) { f(connID, msg) }

// Manager applies client events to session state and fans the results out.
//
// Manager is not safe for concurrent use: every call must come from the one
// goroutine that owns session state, so that each mutation and the broadcast
// that follows it happen as a single step.
type Manager struct {
	registry *room.Registry
	emitter  Emitter
	verbose  bool
	now      func() time.Time
}

func NewManager(registry *room.Registry, emitter Emitter, verbose bool) *Manager {
	return &Manager{
		registry: registry,
		emitter:  emitter,
		verbose:  verbose,
		now:      time.Now,
	}
}

func (m *Manager) Registry() *room.Registry {
	return m.registry
}

// Dispatch routes a decoded client event to its handler
func (m *Manager) Dispatch(connID string, ev protocol.Inbound) {
	switch ev := ev.(type) {
	case protocol.JoinSession:
		m.Join(connID, ev.SessionID)
	case protocol.CodeChange:
		m.ChangeDocument(connID, ev.SessionID, ev.Text)
	case protocol.TextChange:
		m.ChangeOwnership(connID, ev.SessionID, ev.ConnectionID, ev.Range)
	case protocol.CursorMove:
		m.MoveCursor(connID, ev.SessionID, ev.Cursor)
	case protocol.Ping:
		m.Ping(connID, ev.Data)
	default:
		m.debugf("Ignoring unhandled event %T from %s", ev, connID)
	}
}

// Join moves connID into sessionID. Any other room the connection occupies
// is left through the same cleanup path as a disconnect. Joining a session
// the connection is already in keeps its state and resends the snapshot.
func (m *Manager) Join(connID, sessionID string) {
	m.leave(connID, sessionID)

	r, created := m.registry.GetOrCreate(sessionID)
	if created {
		log.Printf("🆕 Created new session: %s", sessionID)
	}

	p := r.AddParticipant(connID)
	m.debugf("🎨 Assigned color %s to %s in session %s", p.Color, connID, sessionID)

	m.emitter.Emit(connID, protocol.AssignColor{ConnectionID: connID, Color: p.Color})
	m.broadcast(r, protocol.UserListUpdate(r.Roster()), "")

	if ownership := r.Ownership(); len(ownership) > 0 {
		m.emitter.Emit(connID, protocol.NewTextOwnership(ownership))
	}
	if doc := r.Document(); doc != "" {
		m.emitter.Emit(connID, protocol.DocumentUpdate(doc))
	}

	log.Printf("👤 %s joined session %s (users: %d)", connID, sessionID, r.Size())
}

// Leave removes connID from every room that lists it, releases the ranges it
// owned and tears down rooms that become empty. It runs on disconnect.
func (m *Manager) Leave(connID string) {
	m.leave(connID, "")
}

func (m *Manager) leave(connID, keep string) {
	for _, r := range m.registry.FindMember(connID) {
		if r.ID == keep {
			continue
		}
		r.RemoveParticipant(connID)
		released := r.ReleaseOwnership(connID)

		m.broadcast(r, protocol.UserListUpdate(r.Roster()), "")
		m.broadcast(r, protocol.NewTextOwnership(r.Ownership()), "")

		if r.Empty() {
			m.registry.Delete(r.ID)
			log.Printf("🧹 Cleaned up empty session: %s", r.ID)
		} else {
			log.Printf("👋 %s left session %s (remaining: %d, released ranges: %d)",
				connID, r.ID, r.Size(), released)
		}
	}
}

// ChangeDocument replaces the session document and sends it to everyone else
func (m *Manager) ChangeDocument(connID, sessionID, text string) {
	r, ok := m.registry.Get(sessionID)
	if !ok {
		m.debugf("❌ Code change for unknown session %s from %s", sessionID, connID)
		return
	}

	r.SetDocument(text)
	m.broadcast(r, protocol.DocumentUpdate(text), connID)
	m.debugf("✏️ Code change in session %s from %s (%d chars)", sessionID, connID, len(text))
}

// ChangeOwnership records ownerID as the last writer of rng and sends the
// full ownership set to the whole room, sender included.
func (m *Manager) ChangeOwnership(connID, sessionID, ownerID string, rng room.Range) {
	r, ok := m.registry.Get(sessionID)
	if !ok {
		m.debugf("❌ Text change for unknown session %s from %s", sessionID, connID)
		return
	}

	r.SetOwner(rng, ownerID)
	m.broadcast(r, protocol.NewTextOwnership(r.Ownership()), "")
	m.debugf("💾 Stored ownership: %s -> %s", rng.Key(), ownerID)
}

// MoveCursor relays a cursor position to the rest of the room. Nothing is stored.
func (m *Manager) MoveCursor(connID, sessionID string, cursor json.RawMessage) {
	r, ok := m.registry.Get(sessionID)
	if !ok {
		m.debugf("❌ Cursor move for unknown session %s", sessionID)
		return
	}
	p, ok := r.Participant(connID)
	if !ok {
		m.debugf("❌ %s is not in session %s", connID, sessionID)
		return
	}

	m.broadcast(r, protocol.CursorUpdate{
		ConnectionID: connID,
		Cursor:       cursor,
		Name:         p.Name,
		Color:        p.Color,
	}, connID)
}

// Ping answers the sender only
func (m *Manager) Ping(connID string, data json.RawMessage) {
	m.debugf("🏓 Ping from %s: %s", connID, data)
	m.emitter.Emit(connID, protocol.Pong{
		Message:   "Server received ping",
		Timestamp: m.now().UnixMilli(),
	})
}

// broadcast sends msg to every participant of r except the connection named
// by except; an empty except reaches the whole roster.
func (m *Manager) broadcast(r *room.Room, msg protocol.Outbound, except string) {
	for _, p := range r.Roster() {
		if p.ConnectionID == except {
			continue
		}
		m.emitter.Emit(p.ConnectionID, msg)
	}
}

func (m *Manager) debugf(format string, v ...any) {
	if m.verbose {
		log.Printf(format, v...)
	}
}
