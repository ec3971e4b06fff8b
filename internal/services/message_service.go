package services

import (
	"context"
	"errors"
	"fmt"

	"chat-relay/internal/cache"
	"chat-relay/internal/database"
	"chat-relay/internal/models"
	"chat-relay/pkg/logger"
)

// MessageService layers the optional transcript cache over the message
// repository. Cache failures degrade to the repository and are only
// logged; the store stays the source of truth.
type MessageService struct {
	db    database.MessageRepository
	cache cache.TranscriptCache
}

func NewMessageService(db database.MessageRepository, transcripts cache.TranscriptCache) *MessageService {
	return &MessageService{db: db, cache: transcripts}
}

func (s *MessageService) Append(ctx context.Context, room string, sender models.Sender, text string) (*models.Message, error) {
	if text == "" {
		return nil, fmt.Errorf("message text is required")
	}

	msg, err := s.db.AppendMessage(ctx, room, sender, text)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, room); err != nil {
			logger.L().Warn().Err(err).Str("room", room).Msg("transcript cache invalidation failed")
		}
	}

	return msg, nil
}

func (s *MessageService) History(ctx context.Context, room string) ([]*models.Message, error) {
	if s.cache != nil {
		messages, err := s.cache.Get(ctx, room)
		if err == nil {
			return messages, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.L().Warn().Err(err).Str("room", room).Msg("transcript cache read failed")
		}
	}

	messages, err := s.db.ListMessages(ctx, room)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, room, messages); err != nil {
			logger.L().Warn().Err(err).Str("room", room).Msg("transcript cache write failed")
		}
	}

	return messages, nil
}
