package models

import "time"

// Sender is the denormalized user identity stored with each message so
// history reads need no join back to the users table.
type Sender struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

type Message struct {
	ID        int       `json:"id"`
	Room      string    `json:"room,omitempty"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}
