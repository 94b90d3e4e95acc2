package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"brettonwoods/internal/app"
	"brettonwoods/internal/domain"
)

// Handler handles WebSocket connections
type Handler struct {
	engine   *app.Engine
	hub      *app.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(engine *app.Engine, hub *app.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameCode := r.URL.Query().Get("gameCode")
	if gameCode == "" {
		http.Error(w, "gameCode is required", http.StatusBadRequest)
		return
	}

	// Spectators without an identity get a fresh one
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = uuid.New().String()
	}

	game, err := h.engine.Game(r.Context(), gameCode)
	if err != nil {
		if domain.ErrorCode(err) == domain.CodeNotFound {
			http.Error(w, "Game not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load game for websocket", "gameCode", gameCode, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, h.engine, h.hub, game.Code, userID, h.logger)
	h.hub.Subscribe(game.Code, client)

	h.logger.Info("websocket connected",
		"gameCode", game.Code,
		"userID", userID,
	)

	// Snapshot after subscribing: no commit can fall between the two
	snap, err := h.engine.Snapshot(r.Context(), game.Code)
	if err != nil {
		h.logger.Error("failed to build snapshot", "gameCode", game.Code, "error", err)
		client.sendError(domain.ErrorCode(err), "Failed to load game")
	} else {
		client.sendConnected(snap)
	}
	client.Run()
}
