package http

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"brettonwoods/internal/app"
	"brettonwoods/internal/config"
	"brettonwoods/internal/transport/ws"
)

// UserIDHeader identifies the caller on every API request
const UserIDHeader = "X-User-ID"

// Server represents the HTTP server
type Server struct {
	server *http.Server
	engine *app.Engine
	hub    *app.Hub
	config *config.Config
	logger *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, engine *app.Engine, hub *app.Hub, logger *slog.Logger) *Server {
	s := &Server{
		engine: engine,
		hub:    hub,
		config: cfg,
		logger: logger,
	}

	// Set up routes
	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      s.middleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Games
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("POST /api/games/{code}/join", s.handleSelectCountry)
	mux.HandleFunc("POST /api/games/{code}/ready", s.handleSetReady)
	mux.HandleFunc("POST /api/games/{code}/leave", s.handleLeave)
	mux.HandleFunc("POST /api/games/{code}/start", s.handleStart)
	mux.HandleFunc("POST /api/games/{code}/vote", s.handleVote)
	mux.HandleFunc("POST /api/games/{code}/next-round", s.handleNextRound)
	mux.HandleFunc("POST /api/games/{code}/reset", s.handleReset)
	mux.HandleFunc("GET /api/games/{code}/lobby", s.handleLobby)
	mux.HandleFunc("GET /api/games/{code}/state", s.handleState)
	mux.HandleFunc("GET /api/games/{code}/results", s.handleResults)
	mux.HandleFunc("GET /api/games/{code}/invite.png", s.handleInviteQR)

	// Reference data
	mux.HandleFunc("GET /api/countries", s.handleCountries)
	mux.HandleFunc("GET /api/issues", s.handleIssues)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// WebSocket
	wsHandler := ws.NewHandler(s.engine, s.hub, s.logger)
	mux.Handle("GET /ws", wsHandler)
}

// middleware wraps the handler with logging and other middleware
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Add CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+UserIDHeader)

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		level := slog.LevelInfo
		if r.URL.Path == "/api/health" && !s.config.IsDevelopment() {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
