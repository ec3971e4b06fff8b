package models

type EventType string

const (
	// Inbound from clients.
	EventJoin    EventType = "join"
	EventMessage EventType = "message"
	EventLeave   EventType = "leave"

	// Outbound to clients.
	EventUserJoined       EventType = "userJoined"
	EventUserLeft         EventType = "userLeft"
	EventPresenceSnapshot EventType = "presenceSnapshot"
	EventError            EventType = "error"
)

// PresenceUser is one entry of a presence snapshot.
type PresenceUser struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Event is the single frame type exchanged over the websocket. Fields
// are populated per Type and omitted otherwise.
type Event struct {
	Type EventType `json:"type"`

	// EventMessage (inbound carries only Text; outbound carries Message).
	Text    string   `json:"text,omitempty"`
	Message *Message `json:"message,omitempty"`

	// EventUserJoined / EventUserLeft.
	UserID   int    `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`

	// EventPresenceSnapshot.
	Users []PresenceUser `json:"users,omitempty"`

	// EventError, delivered only to the originating session.
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}
