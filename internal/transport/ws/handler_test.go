package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brettonwoods/internal/app"
	"brettonwoods/internal/catalog"
	"brettonwoods/internal/domain"
	"brettonwoods/internal/store/memory"
)

type receivedMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// peer reads server messages, splitting frames the write pump batched
type peer struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []receivedMessage
}

func (p *peer) send(msgType MessageType, payload interface{}) {
	p.t.Helper()

	msg := map[string]interface{}{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(p.t, p.conn.WriteJSON(msg))
}

func (p *peer) next() receivedMessage {
	p.t.Helper()

	for len(p.pending) == 0 {
		p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := p.conn.ReadMessage()
		require.NoError(p.t, err)

		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var msg receivedMessage
			require.NoError(p.t, json.Unmarshal(line, &msg))
			p.pending = append(p.pending, msg)
		}
	}

	msg := p.pending[0]
	p.pending = p.pending[1:]
	return msg
}

func (p *peer) expectError(code string) {
	p.t.Helper()

	msg := p.next()
	require.Equal(p.t, MsgError, msg.Type)
	var payload ErrorPayload
	require.NoError(p.t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(p.t, code, payload.Code)
}

type testEnv struct {
	engine *app.Engine
	hub    *app.Hub
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := memory.New("", nil)
	require.NoError(t, err)

	hub := app.NewHub(nil, time.Hour)
	engine := app.NewEngine(app.Dependencies{
		Store:    st,
		Catalog:  catalog.Default(),
		Notifier: hub,
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := httptest.NewServer(NewHandler(engine, hub, logger))

	t.Cleanup(func() {
		server.Close()
		hub.Close()
		st.Close()
	})
	return &testEnv{engine: engine, hub: hub, server: server}
}

func (e *testEnv) dial(t *testing.T, query string) (*peer, *http.Response, error) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, resp, err
	}
	t.Cleanup(func() { conn.Close() })
	return &peer{t: t, conn: conn}, resp, nil
}

func TestHandlerRejectsUnknownGame(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := env.dial(t, "gameCode=NOPE99&userId=host")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = env.dial(t, "userId=host")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClientCommands(t *testing.T) {
	env := newTestEnv(t)
	game, err := env.engine.CreateGame(context.Background(), "host")
	require.NoError(t, err)

	p, _, err := env.dial(t, "gameCode="+strings.ToLower(game.Code)+"&userId=host")
	require.NoError(t, err)

	msg := p.next()
	require.Equal(t, MsgConnected, msg.Type)
	var connected ConnectedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &connected))
	assert.Equal(t, game.Code, connected.GameCode)
	assert.Equal(t, "host", connected.UserID)
	require.NotNil(t, connected.Snapshot)
	assert.Equal(t, domain.StatusLobby, connected.Snapshot.Status)

	p.send(MsgSelectCountry, &SelectCountryPayload{CountryCode: "USA", DisplayName: "Morgenthau"})
	msg = p.next()
	require.Equal(t, MsgSnapshot, msg.Type)
	var snap SnapshotPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	assert.Equal(t, domain.EventPlayerJoined, snap.Event)
	require.NotNil(t, snap.Snapshot.Lobby)
	require.Len(t, snap.Snapshot.Lobby.Players, 1)
	assert.Equal(t, "Morgenthau", snap.Snapshot.Lobby.Players[0].DisplayName)

	p.send(MsgStartGame, nil)
	p.expectError(domain.CodeInvalidState)

	p.send(MsgSelectCountry, map[string]string{})
	p.expectError(ErrCodeInvalidMessage)

	p.send(MsgSubmitVote, &SubmitVotePayload{OptionID: "reserve-a"})
	p.expectError(ErrCodeInvalidMessage)

	p.send("shout", nil)
	p.expectError(ErrCodeInvalidMessage)

	require.NoError(t, p.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	p.expectError(ErrCodeInvalidMessage)

	p.send(MsgPing, nil)
	assert.Equal(t, MsgPong, p.next().Type)
}

func TestClientsShareRoom(t *testing.T) {
	env := newTestEnv(t)
	game, err := env.engine.CreateGame(context.Background(), "host")
	require.NoError(t, err)

	host, _, err := env.dial(t, "gameCode="+game.Code+"&userId=host")
	require.NoError(t, err)
	require.Equal(t, MsgConnected, host.next().Type)

	guest, _, err := env.dial(t, "gameCode="+game.Code+"&userId=keynes")
	require.NoError(t, err)
	require.Equal(t, MsgConnected, guest.next().Type)

	guest.send(MsgSelectCountry, &SelectCountryPayload{CountryCode: "GBR"})

	for _, p := range []*peer{host, guest} {
		msg := p.next()
		require.Equal(t, MsgSnapshot, msg.Type)
		var snap SnapshotPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &snap))
		assert.Equal(t, domain.EventPlayerJoined, snap.Event)
		assert.Equal(t, "keynes", snap.UserID)
	}

	// Non-host start is rejected only for the caller
	guest.send(MsgStartGame, nil)
	guest.expectError(domain.CodeForbidden)

	require.Eventually(t, func() bool { return env.hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)
	guest.conn.Close()
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// Disconnecting keeps the delegation seated
	lobby, err := env.engine.Lobby(context.Background(), game.Code)
	require.NoError(t, err)
	assert.Len(t, lobby.Players, 1)
}
