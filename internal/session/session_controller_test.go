package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"github.com/romashorodok/collab-relay/internal/relay"
	"github.com/romashorodok/collab-relay/internal/room"
	"github.com/romashorodok/collab-relay/pkg/protocol"
	"github.com/romashorodok/collab-relay/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

type testServer struct {
	*httptest.Server
	manager *room.Manager
	relay   *relay.Relay
}

func newTestServer(t *testing.T, configure ...func(*variables.Config)) *testServer {
	t.Helper()

	cfg := variables.Default()
	for _, fn := range configure {
		fn(cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lc := fxtest.NewLifecycle(t)

	manager := room.NewManager(room.NewManagerParams{Config: cfg, Logger: logger})
	r := relay.New(relay.NewRelayParams{Config: cfg, Logger: logger, Manager: manager})
	ctrl := NewSessionController(NewSessionControllerParams{
		Lifecycle: lc,
		Config:    cfg,
		Logger:    logger,
		Relay:     r,
	})

	e := echo.New()
	require.NoError(t, ctrl.Resolve(e))

	srv := httptest.NewServer(e)
	lc.RequireStart()
	t.Cleanup(func() {
		lc.RequireStop()
		srv.Close()
	})
	return &testServer{Server: srv, manager: manager, relay: r}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (s *testServer) dial(t *testing.T, path string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(event protocol.EventName, data any) {
	c.t.Helper()
	frame, err := protocol.Encode(event, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

func (c *client) sendRaw(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// expect reads frames until one named event arrives.
func (c *client) expect(event protocol.EventName) protocol.Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg protocol.Message
		require.NoError(c.t, c.conn.ReadJSON(&msg), "waiting for %s", event)
		if msg.Event == event {
			return msg
		}
	}
}

func membership(t *testing.T, msg protocol.Message) protocol.MembershipPayload {
	t.Helper()
	var payload protocol.MembershipPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	return payload
}

func usernames(members []protocol.Member) []string {
	var result []string
	for _, m := range members {
		result = append(result, m.Username)
	}
	return result
}

func TestSession_CodeSyncScenario(t *testing.T) {
	srv := newTestServer(t)

	alice := srv.dial(t, "/ws")
	alice.send(protocol.EventJoin, map[string]string{"roomId": "r1", "displayName": "Alice"})
	joined := membership(t, alice.expect(protocol.EventJoined))
	assert.Equal(t, []string{"Alice"}, usernames(joined.Clients))
	aliceID := joined.SocketID

	bob := srv.dial(t, "/ws")
	bob.send(protocol.EventJoin, map[string]string{"roomId": "r1", "username": "Bob"})

	bobJoined := membership(t, bob.expect(protocol.EventJoined))
	assert.Equal(t, []string{"Alice", "Bob"}, usernames(bobJoined.Clients))
	bobID := bobJoined.SocketID

	aliceSaw := membership(t, alice.expect(protocol.EventJoined))
	assert.Equal(t, bobJoined.Clients, aliceSaw.Clients)

	req := alice.expect(protocol.EventSyncRequest)
	assert.JSONEq(t, `{"socketId":"`+bobID+`"}`, string(req.Data))

	alice.send(protocol.EventSyncCode, map[string]string{"socketId": bobID, "code": "let x = 1"})
	code := bob.expect(protocol.EventCodeChange)
	assert.JSONEq(t, `{"code":"let x = 1"}`, string(code.Data))

	bob.send(protocol.EventCodeChange, map[string]string{"roomId": "r1", "code": "let x = 2"})
	code = alice.expect(protocol.EventCodeChange)
	assert.JSONEq(t, `{"code":"let x = 2"}`, string(code.Data))

	require.NoError(t, alice.conn.Close())
	left := membership(t, bob.expect(protocol.EventDisconnected))
	assert.Equal(t, aliceID, left.SocketID)
	assert.Equal(t, "Alice", left.Username)
	assert.Equal(t, []protocol.Member{{SocketID: bobID, Username: "Bob"}}, left.Clients)

	require.Eventually(t, func() bool {
		_, conns := srv.manager.Stats()
		return conns == 1 && srv.relay.Connections() == 1
	}, 3*time.Second, 10*time.Millisecond, "disconnect must not leak registry entries")
}

func TestSession_MalformedEventKeepsConnection(t *testing.T) {
	srv := newTestServer(t)
	c := srv.dial(t, "/ws")

	c.sendRaw(`not json`)
	msg := c.expect(protocol.EventError)
	assert.JSONEq(t, `{"message":"wrong data format"}`, string(msg.Data))

	c.sendRaw(`{"event":"join","data":{"roomId":"r1"}}`)
	msg = c.expect(protocol.EventError)
	assert.JSONEq(t, `{"event":"join","message":"display name is required"}`, string(msg.Data))

	c.sendRaw(`{"event":"join","data":{"displayName":"Alice"}}`)
	msg = c.expect(protocol.EventError)
	assert.JSONEq(t, `{"event":"join","message":"room id is required"}`, string(msg.Data))

	// routing errors stay silent, the next valid event still works
	c.send(protocol.EventCodeChange, map[string]string{"roomId": "nowhere", "code": "x"})
	c.send(protocol.EventJoin, map[string]string{"roomId": "r1", "displayName": "Alice"})
	joined := membership(t, c.expect(protocol.EventJoined))
	assert.Equal(t, []string{"Alice"}, usernames(joined.Clients))
}

func TestSession_RoomFromPath(t *testing.T) {
	srv := newTestServer(t)

	c := srv.dial(t, "/rooms/whiteboard-1/ws")
	c.send(protocol.EventJoin, map[string]string{"displayName": "Alice"})
	c.expect(protocol.EventJoined)

	assert.Len(t, srv.manager.MembersOf("whiteboard-1"), 1)
}

func TestSession_DrawingBroadcast(t *testing.T) {
	srv := newTestServer(t)

	alice := srv.dial(t, "/ws")
	alice.send(protocol.EventJoin, map[string]string{"roomId": "r1", "displayName": "Alice"})
	alice.expect(protocol.EventJoined)

	bob := srv.dial(t, "/ws")
	bob.send(protocol.EventJoin, map[string]string{"roomId": "r1", "displayName": "Bob"})
	bob.expect(protocol.EventJoined)

	alice.send(protocol.EventDrawing, map[string]any{"roomId": "r1", "action": "start", "offsetX": 1, "offsetY": 2, "tool": "pencil"})
	alice.send(protocol.EventDrawing, map[string]any{"roomId": "r1", "action": "end"})

	for _, c := range []*client{alice, bob} {
		start := c.expect(protocol.EventDrawing)
		assert.JSONEq(t, `{"action":"start","offsetX":1,"offsetY":2,"tool":"pencil"}`, string(start.Data))
		end := c.expect(protocol.EventDrawing)
		assert.JSONEq(t, `{"action":"end"}`, string(end.Data))
	}
}

func TestSession_OriginCheck(t *testing.T) {
	srv := newTestServer(t, func(cfg *variables.Config) {
		cfg.AllowedOrigins = []string{"https://collab.example.com"}
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://collab.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestSession_RejectedJoinKeepsMembership(t *testing.T) {
	srv := newTestServer(t)

	c := srv.dial(t, "/ws")
	c.send(protocol.EventJoin, map[string]string{"roomId": "r1", "displayName": "Alice"})
	c.expect(protocol.EventJoined)

	c.send(protocol.EventJoin, map[string]string{"roomId": "r2"})
	msg := c.expect(protocol.EventError)
	assert.JSONEq(t, `{"event":"join","message":"display name is required"}`, string(msg.Data))

	assert.Len(t, srv.manager.MembersOf("r1"), 1)
	assert.Empty(t, srv.manager.MembersOf("r2"))

	c.send(protocol.EventLeave, nil)
	require.Eventually(t, func() bool {
		return len(srv.manager.MembersOf("r1")) == 0
	}, 3*time.Second, 10*time.Millisecond)
}
