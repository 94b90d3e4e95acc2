package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"brettonwoods/internal/app"
	"brettonwoods/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256

	// Time allowed for an engine command issued by the peer
	commandTimeout = 10 * time.Second
)

// Client represents a WebSocket client subscribed to one game
type Client struct {
	conn     *websocket.Conn
	engine   *app.Engine
	hub      *app.Hub
	gameCode string
	userID   string
	send     chan []byte
	done     chan struct{}
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool
}

var _ app.ClientConnection = (*Client)(nil)

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, engine *app.Engine, hub *app.Hub, gameCode, userID string, logger *slog.Logger) *Client {
	return &Client{
		conn:     conn,
		engine:   engine,
		hub:      hub,
		gameCode: gameCode,
		userID:   userID,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// GetUserID returns the user ID for this client
func (c *Client) GetUserID() string {
	return c.userID
}

// Send implements app.ClientConnection interface
func (c *Client) Send(event *domain.GameEvent) error {
	return c.sendMessage(NewServerMessage(MsgSnapshot, &SnapshotPayload{
		Event:    event.Type,
		UserID:   event.UserID,
		Snapshot: event.Snapshot,
	}))
}

func (c *Client) sendMessage(message *ServerMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped", "gameCode", c.gameCode, "userID", c.userID)
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection. A dropped
// connection unsubscribes but keeps the player seated.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.gameCode, c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client. Successful
// commands answer through the room broadcast; only failures reply directly.
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case MsgSelectCountry:
		var p SelectCountryPayload
		if !c.decode(msg.Payload, &p) || p.CountryCode == "" {
			c.sendError(ErrCodeInvalidMessage, "countryCode is required")
			return
		}
		_, err = c.engine.SelectCountry(ctx, c.gameCode, c.userID, p.CountryCode, p.DisplayName)
	case MsgSetReady:
		_, err = c.engine.SetReady(ctx, c.gameCode, c.userID)
	case MsgLeave:
		err = c.engine.LeaveGame(ctx, c.gameCode, c.userID)
	case MsgStartGame:
		_, err = c.engine.StartGame(ctx, c.gameCode, c.userID)
	case MsgSubmitVote:
		var p SubmitVotePayload
		if !c.decode(msg.Payload, &p) || p.OptionID == "" || p.Approve == nil {
			c.sendError(ErrCodeInvalidMessage, "optionId and approve are required")
			return
		}
		_, err = c.engine.SubmitVote(ctx, c.gameCode, c.userID, p.OptionID, *p.Approve)
	case MsgNextRound:
		_, err = c.engine.NextRound(ctx, c.gameCode, c.userID)
	case MsgResetGame:
		_, err = c.engine.ResetGame(ctx, c.gameCode, c.userID)
	case MsgPing:
		c.sendMessage(NewServerMessage(MsgPong, nil))
		return
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
		return
	}

	if err != nil {
		code := domain.ErrorCode(err)
		message := err.Error()
		if code == domain.CodeInternalError {
			c.logger.Error("websocket command failed",
				"type", msg.Type,
				"gameCode", c.gameCode,
				"userID", c.userID,
				"error", err,
			)
			message = "Internal server error"
		}
		c.sendError(code, message)
	}
}

func (c *Client) decode(raw json.RawMessage, dst interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// sendConnected sends the connected message to the client
func (c *Client) sendConnected(snap *domain.Snapshot) {
	c.sendMessage(NewServerMessage(MsgConnected, &ConnectedPayload{
		UserID:   c.userID,
		GameCode: c.gameCode,
		Snapshot: snap,
	}))
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	c.sendMessage(NewServerMessage(MsgError, &ErrorPayload{
		Code:    code,
		Message: message,
	}))
}
