package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/internal/auth"
	"chat-relay/internal/cache"
	"chat-relay/internal/config"
	"chat-relay/internal/database"
	"chat-relay/internal/handlers"
	"chat-relay/internal/room"
	"chat-relay/internal/services"
	"chat-relay/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Optional redis transcript cache
	var transcripts cache.TranscriptCache
	if cfg.Redis.Addr != "" {
		transcripts, err = cache.NewRedisTranscriptCache(cfg.Redis)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer transcripts.Close()
	}

	// Initialize services
	authService := auth.NewService(db, cfg)
	messageService := services.NewMessageService(db, transcripts)

	// The single shared room
	chatRoom := room.New(cfg.Room.Name, messageService)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	roomHandlers := handlers.NewRoomHandlers(messageService, authService, chatRoom)
	wsHandlers := handlers.NewWebSocketHandlers(authService, chatRoom)

	// Setup routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", authHandlers.Login)
	mux.HandleFunc("POST /register", authHandlers.Register)
	mux.HandleFunc("GET /history", roomHandlers.GetHistory)
	mux.HandleFunc("GET /presence", roomHandlers.GetPresence)
	mux.HandleFunc("GET /ws", wsHandlers.HandleWebSocket)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.L().Info().Str("addr", cfg.Server.Port).Str("room", cfg.Room.Name).Msg("server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info().Msg("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("shutdown error")
	}
	chatRoom.Close()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
