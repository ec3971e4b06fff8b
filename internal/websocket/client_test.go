package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-relay/internal/models"
	"chat-relay/internal/room"

	"github.com/gorilla/websocket"
)

type memStore struct {
	mu     sync.Mutex
	nextID int
	now    time.Time
}

func (s *memStore) Append(ctx context.Context, roomName string, sender models.Sender, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.now = s.now.Add(time.Millisecond)
	return &models.Message{
		ID:        s.nextID,
		Room:      roomName,
		Text:      text,
		Sender:    sender,
		CreatedAt: s.now,
	}, nil
}

// newTestServer upgrades connections and binds them to the identity in
// the query string, standing in for the auth-gated upgrade handler.
// A tune function may adjust a client before its pumps start.
func newTestServer(t *testing.T, r *room.Room, tune ...func(*Client)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		uid, _ := strconv.Atoi(req.URL.Query().Get("uid"))
		client := NewClient(r, conn, &models.User{
			ID:       uid,
			Username: req.URL.Query().Get("username"),
		})
		for _, fn := range tune {
			fn(client)
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, uid int, username string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"?uid=" + strconv.Itoa(uid) + "&username=" + username
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", username, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event *models.Event) {
	t.Helper()
	if err := conn.WriteJSON(event); err != nil {
		t.Fatalf("write %s: %v", event.Type, err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) *models.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var event models.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return &event
}

func expectEvent(t *testing.T, conn *websocket.Conn, want models.EventType) *models.Event {
	t.Helper()
	event := readEvent(t, conn)
	if event.Type != want {
		t.Fatalf("expected %s, got %+v", want, event)
	}
	return event
}

func TestJoinMessageDisconnectOverWire(t *testing.T) {
	rm := room.New("general", &memStore{now: time.Now()})
	srv := newTestServer(t, rm)

	alice := dial(t, srv, 1, "alice")
	send(t, alice, &models.Event{Type: models.EventJoin})
	snap := expectEvent(t, alice, models.EventPresenceSnapshot)
	if len(snap.Users) != 1 || snap.Users[0].Username != "alice" {
		t.Fatalf("expected snapshot with alice, got %+v", snap.Users)
	}

	bob := dial(t, srv, 2, "bob")
	send(t, bob, &models.Event{Type: models.EventJoin})

	joined := expectEvent(t, alice, models.EventUserJoined)
	if joined.UserID != 2 || joined.Username != "bob" {
		t.Fatalf("expected userJoined{bob}, got %+v", joined)
	}
	snap = expectEvent(t, alice, models.EventPresenceSnapshot)
	if len(snap.Users) != 2 {
		t.Fatalf("expected 2 users, got %+v", snap.Users)
	}
	expectEvent(t, bob, models.EventPresenceSnapshot)

	// Alice speaks; both get the echo with server-assigned id/timestamp.
	send(t, alice, &models.Event{Type: models.EventMessage, Text: "hi"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := expectEvent(t, conn, models.EventMessage)
		if msg.Message == nil || msg.Message.Text != "hi" || msg.Message.Sender.UserID != 1 {
			t.Fatalf("unexpected message event: %+v", msg)
		}
		if msg.Message.ID == 0 || msg.Message.CreatedAt.IsZero() {
			t.Fatalf("expected server-assigned id and timestamp: %+v", msg.Message)
		}
	}

	// Bob drops without an explicit leave.
	bob.Close()

	left := expectEvent(t, alice, models.EventUserLeft)
	if left.UserID != 2 {
		t.Fatalf("expected userLeft{bob}, got %+v", left)
	}
	snap = expectEvent(t, alice, models.EventPresenceSnapshot)
	if len(snap.Users) != 1 || snap.Users[0].Username != "alice" {
		t.Fatalf("expected snapshot with only alice, got %+v", snap.Users)
	}
}

func TestMessageBeforeJoinGetsLocalError(t *testing.T) {
	rm := room.New("general", &memStore{now: time.Now()})
	srv := newTestServer(t, rm)

	alice := dial(t, srv, 1, "alice")
	send(t, alice, &models.Event{Type: models.EventJoin})
	expectEvent(t, alice, models.EventPresenceSnapshot)

	eve := dial(t, srv, 2, "eve")
	send(t, eve, &models.Event{Type: models.EventMessage, Text: "too early"})

	errEvent := expectEvent(t, eve, models.EventError)
	if errEvent.Code != "invalid_state" {
		t.Fatalf("expected invalid_state, got %+v", errEvent)
	}

	// Alice saw nothing: her next event is eve actually joining.
	send(t, eve, &models.Event{Type: models.EventJoin})
	joined := expectEvent(t, alice, models.EventUserJoined)
	if joined.UserID != 2 {
		t.Fatalf("expected eve's join, got %+v", joined)
	}
}

func TestSilentPeerFeedsLeaveTransition(t *testing.T) {
	rm := room.New("general", &memStore{now: time.Now()})
	// Bob's connection gets aggressive heartbeat deadlines; alice keeps
	// the defaults and replies to pings whenever she reads.
	srv := newTestServer(t, rm, func(c *Client) {
		if c.username == "bob" {
			c.pongWait = 300 * time.Millisecond
			c.pingPeriod = 100 * time.Millisecond
		}
	})

	alice := dial(t, srv, 1, "alice")
	send(t, alice, &models.Event{Type: models.EventJoin})
	expectEvent(t, alice, models.EventPresenceSnapshot)

	// Bob joins and then goes silent: he never reads, so he never
	// answers a ping.
	bob := dial(t, srv, 2, "bob")
	send(t, bob, &models.Event{Type: models.EventJoin})
	expectEvent(t, alice, models.EventUserJoined)
	expectEvent(t, alice, models.EventPresenceSnapshot)

	left := expectEvent(t, alice, models.EventUserLeft)
	if left.UserID != 2 {
		t.Fatalf("expected heartbeat timeout to drop bob, got %+v", left)
	}
	snap := expectEvent(t, alice, models.EventPresenceSnapshot)
	if len(snap.Users) != 1 || snap.Users[0].Username != "alice" {
		t.Fatalf("expected snapshot with only alice, got %+v", snap.Users)
	}
}

func TestRoomCloseSendsCleanCloseFrame(t *testing.T) {
	rm := room.New("general", &memStore{now: time.Now()})
	srv := newTestServer(t, rm)

	alice := dial(t, srv, 1, "alice")
	send(t, alice, &models.Event{Type: models.EventJoin})
	expectEvent(t, alice, models.EventPresenceSnapshot)

	rm.Close()

	alice.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, _, err := alice.ReadMessage()
		if err == nil {
			continue // drain anything queued before the close frame
		}
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Fatalf("expected a normal close frame, got %v", err)
		}
		break
	}
}

func TestExplicitLeaveThenCloseIsQuiet(t *testing.T) {
	rm := room.New("general", &memStore{now: time.Now()})
	srv := newTestServer(t, rm)

	alice := dial(t, srv, 1, "alice")
	send(t, alice, &models.Event{Type: models.EventJoin})
	expectEvent(t, alice, models.EventPresenceSnapshot)

	bob := dial(t, srv, 2, "bob")
	send(t, bob, &models.Event{Type: models.EventJoin})
	expectEvent(t, alice, models.EventUserJoined)
	expectEvent(t, alice, models.EventPresenceSnapshot)
	expectEvent(t, bob, models.EventPresenceSnapshot)

	// Explicit leave, then the transport closes: one farewell only.
	send(t, bob, &models.Event{Type: models.EventLeave})
	expectEvent(t, alice, models.EventUserLeft)
	expectEvent(t, alice, models.EventPresenceSnapshot)
	bob.Close()

	send(t, alice, &models.Event{Type: models.EventMessage, Text: "anyone?"})
	msg := expectEvent(t, alice, models.EventMessage)
	if msg.Message.Text != "anyone?" {
		t.Fatalf("expected own echo, got %+v", msg)
	}
}
