package main

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mediation-app/internal/auth"
	"mediation-app/internal/config"
	"mediation-app/internal/database"
	"mediation-app/internal/handlers"
	"mediation-app/internal/services"
	"mediation-app/internal/websocket"
	"mediation-app/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize room registry and services
	registry := websocket.NewRegistry()
	authService := auth.NewService(cfg)
	participantService := services.NewParticipantService(db)
	messageService := services.NewMessageService(db, participantService)
	mediationService := services.NewMediationService(db, participantService, registry)

	// Initialize handlers
	mediationHandlers := handlers.NewMediationHandlers(mediationService, authService)
	wsHandlers := handlers.NewWebSocketHandlers(authService, participantService, messageService, registry)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, mediationHandlers, wsHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}

func setupRoutes(mux *http.ServeMux, mediationHandlers *handlers.MediationHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Mediation routes
	mux.HandleFunc("/mediations", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mediations" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			mediationHandlers.ListMediations(w, r)
		case http.MethodPost:
			mediationHandlers.CreateMediation(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Mediation sub-routes
	mux.HandleFunc("/mediations/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		if len(parts) < 3 || parts[2] == "" {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}

		// /mediations/{id}/close
		if len(parts) == 4 && parts[3] == "close" && r.Method == http.MethodPost {
			mediationHandlers.CloseMediation(w, r, parts[2])
			return
		}

		http.Error(w, "endpoint not found", http.StatusNotFound)
	})

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
