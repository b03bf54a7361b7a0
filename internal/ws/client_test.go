package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chaitanya5469/CodePilot/internal/protocol"
)

func newTestServer(t *testing.T) (*Hub, string) {
	t.Helper()
	return newLimitedTestServer(t, DefaultLimits())
}

func newLimitedTestServer(t *testing.T, limits Limits) (*Hub, string) {
	t.Helper()
	hub := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, limits, w, r)
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Bad envelope %s: %v", data, err)
	}
	return env
}

func TestWebSocketSession(t *testing.T) {
	hub, url := newTestServer(t)

	a := dial(t, url)
	write(t, a, `{"event":"joinSession","data":"S"}`)

	colorEnv := read(t, a)
	if colorEnv.Event != protocol.EventAssignColor {
		t.Fatalf("Expected assignColor, got %s", colorEnv.Event)
	}
	var assigned protocol.AssignColor
	json.Unmarshal(colorEnv.Data, &assigned)
	if assigned.Color != "#f94144" || assigned.ConnectionID == "" {
		t.Errorf("Unexpected assignment %+v", assigned)
	}
	read(t, a) // userListUpdate

	write(t, a, `{"event":"codeChange","data":{"sessionId":"S","text":"print(1)"}}`)
	// Frames from one connection are handled in order, so the pong proves the change landed
	write(t, a, `{"event":"ping","data":null}`)
	if env := read(t, a); env.Event != protocol.EventPong {
		t.Fatalf("Expected pong, got %s", env.Event)
	}

	b := dial(t, url)
	write(t, b, `{"event":"joinSession","data":"S"}`)

	var events []string
	var doc string
	for i := 0; i < 3; i++ {
		env := read(t, b)
		events = append(events, env.Event)
		if env.Event == protocol.EventDocumentUpdate {
			json.Unmarshal(env.Data, &doc)
		}
	}
	want := []string{protocol.EventAssignColor, protocol.EventUserListUpdate, protocol.EventDocumentUpdate}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, events)
		}
	}
	if doc != "print(1)" {
		t.Errorf("Late joiner should receive the document, got %q", doc)
	}

	if env := read(t, a); env.Event != protocol.EventUserListUpdate {
		t.Errorf("a should see b join, got %s", env.Event)
	}

	b.Close()

	if env := read(t, a); env.Event != protocol.EventUserListUpdate {
		t.Errorf("a should see b leave, got %s", env.Event)
	}
	if env := read(t, a); env.Event != protocol.EventTextOwnership {
		t.Errorf("a should receive ownership after b leaves, got %s", env.Event)
	}

	a.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetRoomCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.GetRoomCount() != 0 {
		t.Error("Session should be removed once every connection closes")
	}
}

func TestWebSocketRejectsMalformedFrames(t *testing.T) {
	_, url := newTestServer(t)

	conn := dial(t, url)
	write(t, conn, `not json`)

	env := read(t, conn)
	if env.Event != protocol.EventError {
		t.Fatalf("Expected error event, got %s", env.Event)
	}
	var e protocol.Error
	json.Unmarshal(env.Data, &e)
	if e.Message == "" {
		t.Error("Error event should carry a message")
	}

	// The connection stays usable
	write(t, conn, `{"event":"ping","data":"hi"}`)
	if env := read(t, conn); env.Event != protocol.EventPong {
		t.Errorf("Expected pong, got %s", env.Event)
	}
}

func TestClientIDsAreUnique(t *testing.T) {
	hub, url := newTestServer(t)

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		conn := dial(t, url)
		write(t, conn, `{"event":"joinSession","data":"ids"}`)
		env := read(t, conn)
		var assigned protocol.AssignColor
		json.Unmarshal(env.Data, &assigned)
		if seen[assigned.ConnectionID] {
			t.Errorf("Duplicate connection id %s", assigned.ConnectionID)
		}
		seen[assigned.ConnectionID] = true
	}

	if info := hub.Sessions()["ids"]; info.UserCount != 3 {
		t.Errorf("Expected 3 users, got %d", info.UserCount)
	}
}

func TestWebSocketReportsRateLimitedFrames(t *testing.T) {
	_, url := newLimitedTestServer(t, Limits{MessagesPerSecond: 0.001, MessageBurst: 1})

	conn := dial(t, url)
	write(t, conn, `{"event":"ping","data":null}`)
	write(t, conn, `{"event":"codeChange","data":{"sessionId":"S","text":"lost"}}`)

	if env := read(t, conn); env.Event != protocol.EventPong {
		t.Fatalf("Expected pong, got %s", env.Event)
	}
	env := read(t, conn)
	if env.Event != protocol.EventError {
		t.Fatalf("Expected error for the dropped frame, got %s", env.Event)
	}
	var e protocol.Error
	json.Unmarshal(env.Data, &e)
	if e.Message != ErrRateLimited.Error() {
		t.Errorf("Expected %q, got %q", ErrRateLimited.Error(), e.Message)
	}
}
