package ws

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/chaitanya5469/CodePilot/internal/protocol"
	"github.com/chaitanya5469/CodePilot/internal/room"
	"github.com/chaitanya5469/CodePilot/internal/session"
)

// Hub owns all session state. Run processes registrations, disconnects and
// client events one at a time, so every mutation and its broadcast happen
// without interleaving.
type Hub struct {
	// Connected clients by connection id, touched only by Run
	clients map[string]*Client

	// Inbound events and disconnects from clients, in arrival order
	inbound chan *Message

	// Register requests from clients
	register chan *Client

	manager     *session.Manager
	registry    *room.Registry
	clientCount atomic.Int64
	done        chan struct{}
	stopOnce    sync.Once
}

// A decoded client frame, the reason it was rejected, or a disconnect
type Message struct {
	Sender     *Client
	Event      protocol.Inbound
	Err        error
	Disconnect bool
}

func NewHub(registry *room.Registry, verbose bool) *Hub {
	h := &Hub{
		clients:  make(map[string]*Client),
		inbound:  make(chan *Message, 256),
		register: make(chan *Client),
		registry: registry,
		done:     make(chan struct{}),
	}
	h.manager = session.NewManager(registry, h, verbose)
	return h
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client.id] = client
			total := h.clientCount.Add(1)
			log.Printf("🔌 User connected: %s (total: %d)", client.id, total)

		case msg := <-h.inbound:
			h.handle(msg)

		case <-h.done:
			for _, client := range h.clients {
				h.detach(client)
			}
			return
		}
	}
}

func (h *Hub) handle(msg *Message) {
	client := msg.Sender
	_, connected := h.clients[client.id]

	if msg.Disconnect {
		if connected {
			h.detach(client)
		}
		h.manager.Leave(client.id)
		log.Printf("🔌 User disconnected: %s", client.id)
		return
	}

	// Dropped clients may still have frames in flight
	if !connected {
		return
	}
	if msg.Err != nil {
		h.Emit(client.id, protocol.Error{Message: msg.Err.Error()})
		return
	}
	h.manager.Dispatch(client.id, msg.Event)
}

// Stop ends Run and closes every client's outbound queue
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Emit queues msg for connID without blocking. A client whose queue is full
// is dropped; its disconnect cleanup runs once its read loop exits.
func (h *Hub) Emit(connID string, msg protocol.Outbound) {
	client, ok := h.clients[connID]
	if !ok {
		return
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		log.Printf("Error encoding %s for %s: %v", msg.EventName(), connID, err)
		return
	}

	select {
	case client.send <- data:
	default:
		log.Printf("⚠️ Send buffer full for %s, dropping connection", connID)
		h.detach(client)
	}
}

func (h *Hub) detach(client *Client) {
	delete(h.clients, client.id)
	close(client.send)
	h.clientCount.Add(-1)
}

func (h *Hub) submit(msg *Message) bool {
	select {
	case h.inbound <- msg:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	h.submit(&Message{Sender: client, Disconnect: true})
}

func (h *Hub) GetClientCount() int {
	return int(h.clientCount.Load())
}

func (h *Hub) GetRoomCount() int {
	return h.registry.Len()
}

// Returns the participant count for each live session
func (h *Hub) GetActiveRooms() map[string]int {
	return h.registry.Occupancy()
}

// Returns the diagnostic summary of every live session
func (h *Hub) Sessions() map[string]room.Info {
	return h.registry.Snapshot()
}

// Returns the live document of a session, if the session exists
func (h *Hub) Document(sessionID string) (string, bool) {
	r, ok := h.registry.Get(sessionID)
	if !ok {
		return "", false
	}
	return r.Document(), true
}
