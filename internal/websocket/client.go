package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"chat-relay/internal/models"
	"chat-relay/internal/room"
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	sendBuffer = 256
)

var errSendBufferFull = errors.New("session send buffer full")

// Client pumps one websocket connection: inbound frames become room
// operations, room broadcasts drain through the send channel. A silent
// peer fails the pong deadline and feeds the same leave transition as
// an explicit leave. The deadlines are fields so tests can shorten
// them before the pumps start.
type Client struct {
	room      *room.Room
	conn      *websocket.Conn
	send      chan *models.Event
	sessionID string
	username  string

	closeOnce sync.Once
	closing   chan struct{}

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewClient(r *room.Room, conn *websocket.Conn, user *models.User) *Client {
	c := &Client{
		room:       r,
		conn:       conn,
		send:       make(chan *models.Event, sendBuffer),
		sessionID:  uuid.NewString(),
		username:   user.Username,
		closing:    make(chan struct{}),
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}

	r.Connect(room.Session{
		ID:       c.sessionID,
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
	}, c)

	return c
}

// Send queues an event for delivery without blocking the broadcaster.
// A full buffer reports a transport failure and the room drops the
// session.
func (c *Client) Send(event *models.Event) error {
	select {
	case c.send <- event:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close asks the write pump to send a clean close frame and exit. It
// never blocks, so the room may call it while holding its lock.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })
	return nil
}

func (c *Client) ReadPump() {
	defer func() {
		// Disconnect removes this session from the room before the
		// channel closes, so no further broadcast can reach it.
		c.room.Disconnect(c.sessionID)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.L().Error().Err(err).Str("session", c.sessionID).Msg("websocket read error")
			}
			break
		}

		var event models.Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.sendError("malformed_event", "could not parse event")
			continue
		}
		c.handleEvent(&event)
	}
}

func (c *Client) handleEvent(event *models.Event) {
	switch event.Type {
	case models.EventJoin:
		if err := c.room.Join(c.sessionID); err != nil {
			c.sendError("invalid_state", "join is only valid once per connection")
		}

	case models.EventMessage:
		_, err := c.room.SendMessage(context.Background(), c.sessionID, event.Text)
		switch {
		case err == nil:
		case errors.Is(err, room.ErrInvalidState):
			c.sendError("invalid_state", "join the room before sending messages")
		case errors.Is(err, room.ErrPersistence):
			logger.L().Error().Err(err).Str("session", c.sessionID).Msg("message persistence failed")
			c.sendError("persistence_failed", "message could not be stored, try again")
		default:
			c.sendError("internal", "message could not be delivered")
		}

	case models.EventLeave:
		if err := c.room.Leave(c.sessionID); err != nil {
			c.sendError("invalid_state", "leave is only valid after join")
		}

	default:
		c.sendError("unknown_event", "unsupported event type")
	}
}

// sendError reports a local rejection to this session only; it is
// never broadcast.
func (c *Client) sendError(code, message string) {
	if err := c.Send(&models.Event{Type: models.EventError, Code: code, Error: message}); err != nil {
		logger.L().Warn().Err(err).Str("session", c.sessionID).Msg("could not deliver error event")
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				logger.L().Error().Err(err).Str("session", c.sessionID).Msg("websocket write error")
				return
			}

		case <-c.closing:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down"))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
