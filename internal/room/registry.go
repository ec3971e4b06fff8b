package room

import (
	"sync"

	"chat-relay/internal/models"
)

// Session binds one live connection to a user identity.
type Session struct {
	ID       string
	UserID   int
	Username string
	Name     string
}

// Registry is the authoritative mapping from session id to user
// identity. It is safe for concurrent use; enumeration order is
// first-registered-first-listed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
	}
}

// Register inserts a session. Re-registering an existing session id
// replaces the identity in place; it never creates a duplicate entry.
func (r *Registry) Register(sess Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sess.ID]; !ok {
		r.order = append(r.order, sess.ID)
	}
	r.sessions[sess.ID] = sess
}

// Deregister removes a session. Removing an unknown id is a no-op,
// since disconnects can race with explicit leave requests.
func (r *Registry) Deregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return
	}
	delete(r.sessions, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the session for an id.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	return sess, ok
}

// SessionIDs returns the registered session ids in registration order.
func (r *Registry) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// ListActiveUsers returns the distinct online users. A user with
// several concurrent sessions appears once, at the position of their
// earliest-registered session.
func (r *Registry) ListActiveUsers() []models.PresenceUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int]bool, len(r.order))
	users := make([]models.PresenceUser, 0, len(r.order))
	for _, id := range r.order {
		sess := r.sessions[id]
		if seen[sess.UserID] {
			continue
		}
		seen[sess.UserID] = true
		users = append(users, models.PresenceUser{
			UserID:   sess.UserID,
			Username: sess.Username,
			Name:     sess.Name,
		})
	}
	return users
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
