package handlers

import (
	"net/http"

	"chat-relay/internal/auth"
	"chat-relay/internal/room"
	ws "chat-relay/internal/websocket"
	"chat-relay/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	room        *room.Room
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, r *room.Room) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		room:        r,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Identity is established before the upgrade; the room trusts it
	// afterwards.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUserFromToken(r.Context(), tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.room, conn, user)

	go client.WritePump()
	go client.ReadPump()
}
