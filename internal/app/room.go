package app

import (
	"log/slog"
	"sync"

	"brettonwoods/internal/domain"
)

// ClientConnection represents a connected subscriber
type ClientConnection interface {
	Send(event *domain.GameEvent) error
	GetUserID() string
	Close() error
}

// Room fans out one game's events to its connected clients
type Room struct {
	code      string
	clients   map[string]ClientConnection // userID -> client
	clientsMu sync.RWMutex
	logger    *slog.Logger

	// Event channel for broadcasting
	events chan *domain.GameEvent
	done   chan struct{}
	once   sync.Once
}

// NewRoom creates a new room and starts its broadcaster
func NewRoom(code string, logger *slog.Logger) *Room {
	room := &Room{
		code:    code,
		clients: make(map[string]ClientConnection),
		logger:  logger,
		events:  make(chan *domain.GameEvent, 100),
		done:    make(chan struct{}),
	}

	go room.eventLoop()

	return room
}

// register adds a client. An existing connection for the same user is
// replaced and closed.
func (r *Room) register(client ClientConnection) {
	r.clientsMu.Lock()
	previous, ok := r.clients[client.GetUserID()]
	r.clients[client.GetUserID()] = client
	r.clientsMu.Unlock()

	if ok && previous != client {
		previous.Close()
	}
}

// unregister removes a client if it is still the user's current connection
func (r *Room) unregister(client ClientConnection) bool {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()

	current, ok := r.clients[client.GetUserID()]
	if !ok || current != client {
		return false
	}
	delete(r.clients, client.GetUserID())
	return true
}

// ClientCount returns the number of connected clients
func (r *Room) ClientCount() int {
	r.clientsMu.RLock()
	defer r.clientsMu.RUnlock()
	return len(r.clients)
}

// queueEvent adds an event to the broadcast queue
func (r *Room) queueEvent(event *domain.GameEvent) {
	select {
	case <-r.done:
		return
	default:
	}

	select {
	case r.events <- event:
	default:
		r.logger.Warn("event queue full, dropping event", "gameCode", r.code, "type", event.Type)
	}
}

// eventLoop processes events and broadcasts to clients
func (r *Room) eventLoop() {
	for {
		select {
		case <-r.done:
			return
		case event := <-r.events:
			r.broadcastEvent(event)
		}
	}
}

// broadcastEvent sends an event to every client without holding the
// client lock during sends
func (r *Room) broadcastEvent(event *domain.GameEvent) {
	r.clientsMu.RLock()
	clients := make([]ClientConnection, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	r.clientsMu.RUnlock()

	for _, client := range clients {
		if err := client.Send(event); err != nil {
			r.logger.Debug("failed to send to client",
				"gameCode", r.code,
				"userID", client.GetUserID(),
				"error", err,
			)
		}
	}
}

// Close stops the broadcaster and closes every client
func (r *Room) Close() {
	r.once.Do(func() {
		close(r.done)

		r.clientsMu.Lock()
		for _, client := range r.clients {
			client.Close()
		}
		r.clients = make(map[string]ClientConnection)
		r.clientsMu.Unlock()
	})
}
