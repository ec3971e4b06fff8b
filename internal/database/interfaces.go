package database

import (
	"context"
	"errors"

	"chat-relay/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already taken")
)

type UserRepository interface {
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

type MessageRepository interface {
	// AppendMessage durably stores a message and returns it with the
	// store-assigned id and creation timestamp.
	AppendMessage(ctx context.Context, room string, sender models.Sender, text string) (*models.Message, error)
	// ListMessages returns the room transcript ordered by creation time
	// ascending.
	ListMessages(ctx context.Context, room string) ([]*models.Message, error)
}

type Database interface {
	UserRepository
	MessageRepository
	Close() error
}
