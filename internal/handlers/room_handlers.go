package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"chat-relay/internal/auth"
	"chat-relay/internal/models"
	"chat-relay/internal/room"
	"chat-relay/internal/services"
	"chat-relay/pkg/logger"
)

// RoomHandlers serves the auth-gated request/response surface of the
// room: the ordered transcript used to backfill a client before live
// events, and the current presence list.
type RoomHandlers struct {
	messages    *services.MessageService
	authService *auth.Service
	room        *room.Room
}

func NewRoomHandlers(messages *services.MessageService, authService *auth.Service, r *room.Room) *RoomHandlers {
	return &RoomHandlers{
		messages:    messages,
		authService: authService,
		room:        r,
	}
}

func (h *RoomHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := h.getUserFromToken(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	messages, err := h.messages.History(r.Context(), h.room.Name())
	if err != nil {
		logger.L().Error().Err(err).Msg("history read failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

func (h *RoomHandlers) GetPresence(w http.ResponseWriter, r *http.Request) {
	if _, err := h.getUserFromToken(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	users := h.room.ActiveUsers()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"room":  h.room.Name(),
		"users": users,
		"count": len(users),
	})
}

func (h *RoomHandlers) getUserFromToken(r *http.Request) (*models.User, error) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		return nil, fmt.Errorf("missing token")
	}

	return h.authService.GetUserFromToken(r.Context(), tokenStr)
}
