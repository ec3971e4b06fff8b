package cache

import (
	"context"
	"errors"

	"chat-relay/internal/models"
)

var ErrCacheMiss = errors.New("cache miss")

// TranscriptCache holds the ordered room transcript between appends.
type TranscriptCache interface {
	Get(ctx context.Context, room string) ([]*models.Message, error)
	Set(ctx context.Context, room string, messages []*models.Message) error
	Invalidate(ctx context.Context, room string) error
	Close() error
}
