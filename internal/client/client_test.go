package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"parlor/internal/domain"
	"parlor/internal/protocol"
)

// fakeGateway is a bare websocket endpoint capturing inbound frames and
// exposing the server-side conn so tests can push events down.
type fakeGateway struct {
	wsURL  string
	frames chan protocol.Envelope
	conns  chan *websocket.Conn
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		frames: make(chan protocol.Envelope, 32),
		conns:  make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.conns <- ws
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.Decode(raw)
			if err != nil {
				continue
			}
			g.frames <- env
		}
	}))
	t.Cleanup(srv.Close)
	g.wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return g
}

func (g *fakeGateway) nextFrame(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case env := <-g.frames:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return protocol.Envelope{}
	}
}

func (g *fakeGateway) serverConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-g.conns:
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an upgrade")
		return nil
	}
}

func connectedClient(t *testing.T, g *fakeGateway) *Client {
	t.Helper()
	c := New(g.wsURL, "alice")
	c.FlushDelay = 0
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func Test_Client_ConnectAndReceive(t *testing.T) {
	req := require.New(t)
	g := newFakeGateway(t)
	c := connectedClient(t, g)
	req.True(c.Connected())

	got := make(chan domain.Message, 1)
	c.OnMessage(func(msg domain.Message) { got <- msg })

	ws := g.serverConn(t)
	frame, err := protocol.Encode(protocol.EventNewMessage, domain.Message{
		ID: "m1", RoomID: "r1", SenderID: "bob", Content: "hello",
	})
	req.NoError(err)
	req.NoError(ws.WriteMessage(websocket.TextMessage, frame))

	select {
	case msg := <-got:
		req.Equal("hello", msg.Content)
		req.Equal(domain.UserID("bob"), msg.SenderID)
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered")
	}
}

func Test_Client_OnMessageCoversHistoryReplay(t *testing.T) {
	req := require.New(t)
	g := newFakeGateway(t)
	c := connectedClient(t, g)

	got := make(chan domain.Message, 4)
	c.OnMessage(func(msg domain.Message) { got <- msg })

	ws := g.serverConn(t)
	frame, err := protocol.Encode(protocol.EventRecentMessages, []domain.Message{
		{ID: "m1", Content: "one"},
		{ID: "m2", Content: "two"},
	})
	req.NoError(err)
	req.NoError(ws.WriteMessage(websocket.TextMessage, frame))

	for _, want := range []string{"one", "two"} {
		select {
		case msg := <-got:
			req.Equal(want, msg.Content)
		case <-time.After(2 * time.Second):
			t.Fatal("replay never delivered")
		}
	}
}

func Test_Client_SendMessageWhileConnected(t *testing.T) {
	req := require.New(t)
	g := newFakeGateway(t)
	c := connectedClient(t, g)

	c.SendMessage("r1", "hello")

	env := g.nextFrame(t)
	req.Equal(protocol.EventSendMessage, env.Event)
	req.Zero(c.buffer.len())
}

func Test_Client_OfflineSendsBufferedAndReplayedInOrder(t *testing.T) {
	req := require.New(t)
	g := newFakeGateway(t)

	c := New(g.wsURL, "alice")
	c.FlushDelay = 0

	c.SendMessage("r1", "one")
	c.SendMessage("r1", "two")
	c.SendMessage("r1", "three")
	req.Equal(3, c.buffer.len())

	req.NoError(c.Connect(context.Background()))
	t.Cleanup(c.Close)

	for _, want := range []string{"one", "two", "three"} {
		env := g.nextFrame(t)
		req.Equal(protocol.EventSendMessage, env.Event)
		var p protocol.SendMessage
		req.NoError(json.Unmarshal(env.Data, &p))
		req.Equal(want, p.Content)
	}
	req.Zero(c.buffer.len())
}

func Test_Client_AttachmentsFailFastOffline(t *testing.T) {
	req := require.New(t)
	c := New("ws://127.0.0.1:0", "alice")

	err := c.SendFileMessage("r1", FileData{URL: "https://cdn/x.pdf", Filename: "x.pdf"})
	req.ErrorIs(err, ErrNotConnected)
	err = c.SendImageMessage("r1", FileData{URL: "https://cdn/x.png"})
	req.ErrorIs(err, ErrNotConnected)
	req.Zero(c.buffer.len(), "attachments are never buffered")
}

func Test_Client_FlushRequeuePreservesMessageAge(t *testing.T) {
	req := require.New(t)
	c := New("ws://127.0.0.1:0", "alice")
	c.FlushDelay = 0

	enqueued := time.Now().Add(-4 * time.Minute)
	c.buffer.requeue(bufferedOp{
		event: protocol.EventSendMessage,
		data:  protocol.SendMessage{RoomID: "r1", Content: "aging"},
		at:    enqueued,
	})

	// Disconnected, so the flush fails to send and requeues the op.
	c.flushBuffer()
	req.Equal(1, c.buffer.len())

	c.buffer.mu.Lock()
	req.Equal(enqueued, c.buffer.items[0].at, "requeue must not refresh the timestamp")
	c.buffer.mu.Unlock()
}

func Test_Client_ConnectionChangeNotifications(t *testing.T) {
	req := require.New(t)
	g := newFakeGateway(t)

	c := New(g.wsURL, "alice")
	c.FlushDelay = 0
	changes := make(chan bool, 4)
	c.OnConnectionChange(func(connected bool) { changes <- connected })

	req.NoError(c.Connect(context.Background()))
	select {
	case up := <-changes:
		req.True(up)
	case <-time.After(2 * time.Second):
		t.Fatal("no connect notification")
	}

	c.Close()
	select {
	case up := <-changes:
		req.False(up)
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect notification")
	}
	req.Equal(Disconnected, c.State())
}

func Test_Client_ConnectWhileConnectingIsNotSuccess(t *testing.T) {
	req := require.New(t)
	c := New("ws://127.0.0.1:0", "alice")

	c.mu.Lock()
	c.state = Connecting
	c.mu.Unlock()

	// The no-op nil return must not read as a live connection.
	req.NoError(c.Connect(context.Background()))
	req.False(c.Connected())
}

func Test_Client_ConnectFailureReturnsToDisconnected(t *testing.T) {
	req := require.New(t)
	c := New("ws://127.0.0.1:1", "alice")
	c.ConnectTimeout = 500 * time.Millisecond

	err := c.Connect(context.Background())
	req.Error(err)
	req.Equal(Disconnected, c.State())
}
