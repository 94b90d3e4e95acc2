package app

import (
	"log/slog"
	"sync"
	"time"

	"brettonwoods/internal/domain"
)

// DefaultRoomSweepInterval is how often rooms without clients are dropped
const DefaultRoomSweepInterval = time.Minute

// Hub routes game events to the rooms of connected clients. It implements
// Notifier.
type Hub struct {
	rooms  map[string]*Room
	mu     sync.RWMutex
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

var _ Notifier = (*Hub)(nil)

// NewHub creates a new hub and starts sweeping empty rooms every interval
func NewHub(logger *slog.Logger, sweepInterval time.Duration) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultRoomSweepInterval
	}

	hub := &Hub{
		rooms:  make(map[string]*Room),
		logger: logger,
		done:   make(chan struct{}),
	}

	go hub.cleanupLoop(sweepInterval)

	return hub
}

// Notify queues the event on the game's room. Games without subscribers are
// skipped.
func (h *Hub) Notify(event *domain.GameEvent) {
	h.mu.RLock()
	room, ok := h.rooms[event.GameCode]
	h.mu.RUnlock()

	if !ok {
		return
	}
	room.queueEvent(event)
}

// Subscribe registers a client for a game's events
func (h *Hub) Subscribe(code string, client ClientConnection) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[code]
	if !ok {
		room = NewRoom(code, h.logger)
		h.rooms[code] = room
	}
	room.register(client)

	h.logger.Debug("client subscribed", "gameCode", code, "userID", client.GetUserID())
	return room
}

// Unsubscribe removes a client from a game's room
func (h *Hub) Unsubscribe(code string, client ClientConnection) {
	h.mu.RLock()
	room, ok := h.rooms[code]
	h.mu.RUnlock()

	if ok && room.unregister(client) {
		h.logger.Debug("client unsubscribed", "gameCode", code, "userID", client.GetUserID())
	}
}

// RoomCount returns the number of rooms
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ClientCount returns the number of connected clients across rooms
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, room := range h.rooms {
		total += room.ClientCount()
	}
	return total
}

// Close shuts down the hub and all rooms
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()

		for _, room := range h.rooms {
			room.Close()
		}
		h.rooms = make(map[string]*Room)
	})
}

// cleanupLoop periodically drops rooms nobody listens to
func (h *Hub) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.sweepEmptyRooms()
		}
	}
}

func (h *Hub) sweepEmptyRooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for code, room := range h.rooms {
		if room.ClientCount() == 0 {
			room.Close()
			delete(h.rooms, code)
			removed++
			h.logger.Debug("empty room closed", "gameCode", code)
		}
	}
	return removed
}
