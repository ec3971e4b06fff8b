package room

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chat-relay/internal/models"
	"chat-relay/pkg/logger"
)

var (
	// ErrInvalidState rejects an event received outside its valid
	// session state, e.g. a message before join.
	ErrInvalidState = errors.New("invalid session state")
	// ErrPersistence marks a failed message store append. The session
	// stays joined so the client may retry.
	ErrPersistence = errors.New("message persistence failed")
)

// MessageStore durably appends chat messages before they are broadcast.
type MessageStore interface {
	Append(ctx context.Context, room string, sender models.Sender, text string) (*models.Message, error)
}

// Sender delivers one event to one session's transport. Delivery is
// best-effort; an error drops the session from the room. Close asks
// the transport to shut down cleanly and must not block.
type Sender interface {
	Send(event *models.Event) error
	Close() error
}

type sessionState int

const (
	stateConnected sessionState = iota
	stateJoined
	stateLeft
)

type conn struct {
	sess   Session
	sender Sender
	state  sessionState
}

// Room coordinates join/leave transitions and fans events out to every
// joined session. All registry mutations and broadcasts happen under a
// single lock, so every client observes the same event order. Message
// persistence runs outside the lock.
type Room struct {
	name  string
	store MessageStore

	mu       sync.Mutex
	registry *Registry
	conns    map[string]*conn
}

func New(name string, store MessageStore) *Room {
	return &Room{
		name:     name,
		store:    store,
		registry: NewRegistry(),
		conns:    make(map[string]*conn),
	}
}

func (r *Room) Name() string { return r.name }

// Connect attaches a freshly opened transport. The session receives no
// events until it joins.
func (r *Room) Connect(sess Session, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[sess.ID] = &conn{sess: sess, sender: sender, state: stateConnected}
}

// Join registers the session and announces it: userJoined goes to the
// other sessions, then a presence snapshot to everyone including the
// joiner.
func (r *Room) Join(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[sessionID]
	if !ok || c.state != stateConnected {
		return ErrInvalidState
	}

	r.registry.Register(c.sess)
	c.state = stateJoined
	logger.L().Info().Str("room", r.name).Str("session", sessionID).
		Str("username", c.sess.Username).Msg("user joined")

	r.reapLocked(r.broadcastLocked(&models.Event{
		Type:     models.EventUserJoined,
		UserID:   c.sess.UserID,
		Username: c.sess.Username,
	}, sessionID))
	r.reapLocked(r.broadcastLocked(r.snapshotLocked(), ""))
	return nil
}

// SendMessage persists the text, then broadcasts the stored message to
// all sessions including the sender; the echo carries the server
// assigned id and timestamp. A persistence failure is returned to the
// caller only and nothing is broadcast.
func (r *Room) SendMessage(ctx context.Context, sessionID, text string) (*models.Message, error) {
	r.mu.Lock()
	c, ok := r.conns[sessionID]
	if !ok || c.state != stateJoined {
		r.mu.Unlock()
		return nil, ErrInvalidState
	}
	sender := models.Sender{
		UserID:   c.sess.UserID,
		Username: c.sess.Username,
		Name:     c.sess.Name,
	}
	r.mu.Unlock()

	// Persist outside the lock so a slow write cannot stall join/leave
	// traffic. Per-sender ordering still holds: each connection reads
	// its inbound events sequentially.
	msg, err := r.store.Append(ctx, r.name, sender, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reapLocked(r.broadcastLocked(&models.Event{
		Type:    models.EventMessage,
		Message: msg,
	}, ""))
	return msg, nil
}

// Leave deregisters the session and announces userLeft plus a fresh
// presence snapshot to the remaining sessions. Leaving twice is a
// no-op, since transports may deliver a close notification more than
// once; an explicit leave before joining is rejected.
func (r *Room) Leave(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[sessionID]; ok && c.state == stateConnected {
		return ErrInvalidState
	}
	r.leaveLocked(sessionID)
	return nil
}

// Disconnect is Leave plus release of the transport binding. Called
// when the connection goroutines exit.
func (r *Room) Disconnect(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(sessionID)
	delete(r.conns, sessionID)
}

// ActiveUsers lists the distinct online users.
func (r *Room) ActiveUsers() []models.PresenceUser {
	return r.registry.ListActiveUsers()
}

// Close drops every session without farewell broadcasts and closes
// each transport cleanly; used on server shutdown.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.conns {
		r.registry.Deregister(id)
		if err := c.sender.Close(); err != nil {
			logger.L().Warn().Err(err).Str("room", r.name).Str("session", id).
				Msg("transport close failed")
		}
		delete(r.conns, id)
	}
}

func (r *Room) leaveLocked(sessionID string) {
	c, ok := r.conns[sessionID]
	if !ok || c.state != stateJoined {
		return
	}

	r.registry.Deregister(sessionID)
	c.state = stateLeft
	logger.L().Info().Str("room", r.name).Str("session", sessionID).
		Str("username", c.sess.Username).Msg("user left")

	r.reapLocked(r.broadcastLocked(&models.Event{
		Type:   models.EventUserLeft,
		UserID: c.sess.UserID,
	}, ""))
	r.reapLocked(r.broadcastLocked(r.snapshotLocked(), ""))
}

func (r *Room) snapshotLocked() *models.Event {
	return &models.Event{
		Type:  models.EventPresenceSnapshot,
		Users: r.registry.ListActiveUsers(),
	}
}

// broadcastLocked delivers the event to every joined session except
// the excluded one and returns the session ids whose transport failed.
// A failed recipient never aborts delivery to the rest.
func (r *Room) broadcastLocked(event *models.Event, exclude string) []string {
	var failed []string
	for _, id := range r.registry.SessionIDs() {
		if id == exclude {
			continue
		}
		c, ok := r.conns[id]
		if !ok || c.state != stateJoined {
			continue
		}
		if err := c.sender.Send(event); err != nil {
			logger.L().Warn().Err(err).Str("room", r.name).Str("session", id).
				Msg("dropping unresponsive session")
			failed = append(failed, id)
		}
	}
	return failed
}

// reapLocked turns transport failures into leave transitions. The
// farewell broadcasts may themselves surface more dead sessions, so
// it drains a worklist.
func (r *Room) reapLocked(failed []string) {
	for len(failed) > 0 {
		id := failed[0]
		failed = failed[1:]

		c, ok := r.conns[id]
		if !ok || c.state != stateJoined {
			continue
		}
		r.registry.Deregister(id)
		c.state = stateLeft

		failed = append(failed, r.broadcastLocked(&models.Event{
			Type:   models.EventUserLeft,
			UserID: c.sess.UserID,
		}, "")...)
		failed = append(failed, r.broadcastLocked(r.snapshotLocked(), "")...)
	}
}
