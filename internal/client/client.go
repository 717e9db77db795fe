// Package client is the application-side counterpart of the gateway: it
// owns the outbound connection, reconnects with exponential backoff, and
// buffers text sends produced while the transport is down.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
	"parlor/internal/protocol"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

var ErrNotConnected = errors.New("not connected")

const (
	defaultConnectTimeout    = 25 * time.Second
	defaultFlushDelay        = 100 * time.Millisecond
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = 2 * time.Second
)

type Client struct {
	// Tunables; adjust before Connect.
	ConnectTimeout    time.Duration
	FlushDelay        time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	url   string
	token string

	mu        sync.Mutex
	ws        *websocket.Conn
	state     State
	userClose bool

	writeMu sync.Mutex

	buffer *sendBuffer
	events *emitter

	connMu   sync.RWMutex
	connSeq  int
	connSubs []connSubscription
}

type connSubscription struct {
	id int
	fn func(bool)
}

// FileData references an externally-uploaded attachment.
type FileData struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

func New(url, token string) *Client {
	return &Client{
		ConnectTimeout:    defaultConnectTimeout,
		FlushDelay:        defaultFlushDelay,
		ReconnectAttempts: defaultReconnectAttempts,
		ReconnectDelay:    defaultReconnectDelay,
		url:               url,
		token:             token,
		buffer:            newSendBuffer(),
		events:            newEmitter(),
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Connected() bool { return c.State() == Connected }

// Connect dials the gateway and authenticates. An attempt that does not
// complete within ConnectTimeout fails and the client returns to
// disconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.userClose = false
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.ConnectTimeout)
	defer cancel()
	dialer := websocket.Dialer{HandshakeTimeout: c.ConnectTimeout}
	ws, resp, err := dialer.DialContext(dialCtx, c.url+"?token="+c.token, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
		if dialCtx.Err() != nil {
			return fmt.Errorf("connection timeout: %w", dialCtx.Err())
		}
		return fmt.Errorf("connect: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.state = Connected
	c.mu.Unlock()

	go c.readLoop(ws)
	c.notifyConnection(true)
	go c.flushBuffer()
	log.Info().Str("module", "client").Str("url", c.url).Msg("connected")
	return nil
}

// Close is a user-initiated disconnect: no reconnect follows.
func (c *Client) Close() {
	c.mu.Lock()
	c.userClose = true
	ws := c.ws
	c.ws = nil
	wasConnected := c.state == Connected
	c.state = Disconnected
	c.mu.Unlock()

	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = ws.Close()
	}
	if wasConnected {
		c.notifyConnection(false)
	}
}

// Online nudges the client after a network-up transition: reconnect if not
// already connected or connecting.
func (c *Client) Online() {
	if c.State() == Disconnected {
		go func() {
			if err := c.Connect(context.Background()); err != nil {
				log.Warn().Err(err).Str("module", "client").Msg("reconnect on network-online")
			}
		}()
	}
}

func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.handleTransportLoss(ws)
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad frame")
			continue
		}
		c.events.emit(env.Event, env.Data)
	}
}

func (c *Client) handleTransportLoss(ws *websocket.Conn) {
	c.mu.Lock()
	if c.ws != ws {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.state = Disconnected
	userClose := c.userClose
	c.mu.Unlock()

	_ = ws.Close()
	c.notifyConnection(false)
	if !userClose {
		go c.reconnectLoop()
	}
}

func (c *Client) reconnectLoop() {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.ReconnectDelay
	policy.MaxElapsedTime = 0

	for attempt := 1; attempt <= c.ReconnectAttempts; attempt++ {
		time.Sleep(policy.NextBackOff())
		if c.Connected() {
			return
		}
		err := c.Connect(context.Background())
		if err == nil {
			// Connect also returns nil when another attempt is already in
			// flight; only a live connection counts as success.
			if c.Connected() {
				log.Info().Int("attempt", attempt).Str("module", "client").Msg("reconnected")
				return
			}
			continue
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("module", "client").Msg("reconnect failed")
	}
	c.notifyError("failed to reconnect after multiple attempts")
}

// --- outbound operations ---

func (c *Client) JoinRoom(roomID string) {
	c.fireAndForget(protocol.EventJoinRoom, protocol.RoomRef{RoomID: roomID})
}

func (c *Client) LeaveRoom(roomID string) {
	c.fireAndForget(protocol.EventLeaveRoom, protocol.RoomRef{RoomID: roomID})
}

// SendMessage dispatches immediately when connected and buffers otherwise;
// the buffer is replayed in order on reconnect.
func (c *Client) SendMessage(roomID, content string) {
	payload := protocol.SendMessage{RoomID: roomID, Content: content, Type: string(domain.MessageText)}
	if err := c.send(protocol.EventSendMessage, payload); err != nil {
		c.buffer.add(protocol.EventSendMessage, payload)
		log.Warn().Str("module", "client").Msg("not connected, message buffered")
	}
}

// SendFileMessage fails fast when disconnected: the attachment upload
// already required connectivity, so buffering would mask a larger failure.
func (c *Client) SendFileMessage(roomID string, file FileData) error {
	return c.sendAttachment(roomID, file, domain.MessageFile)
}

func (c *Client) SendImageMessage(roomID string, image FileData) error {
	return c.sendAttachment(roomID, image, domain.MessageImage)
}

func (c *Client) sendAttachment(roomID string, file FileData, mt domain.MessageType) error {
	content, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return c.send(protocol.EventSendMessage, protocol.SendMessage{
		RoomID:  roomID,
		Content: string(content),
		Type:    string(mt),
	})
}

// Typing and read signals are fire-and-forget: ephemeral or idempotent, so
// loss while disconnected is acceptable.
func (c *Client) StartTyping(roomID string) {
	c.fireAndForget(protocol.EventTypingStart, protocol.RoomRef{RoomID: roomID})
}

func (c *Client) StopTyping(roomID string) {
	c.fireAndForget(protocol.EventTypingStop, protocol.RoomRef{RoomID: roomID})
}

func (c *Client) MarkMessageAsRead(messageID, roomID string) {
	c.fireAndForget(protocol.EventMarkRead, protocol.MarkRead{MessageID: messageID, RoomID: roomID})
}

func (c *Client) MarkAllMessagesAsRead(roomID string) {
	c.fireAndForget(protocol.EventMarkAllRead, protocol.RoomRef{RoomID: roomID})
}

func (c *Client) JoinVoiceRoom(roomID, userName string) {
	c.fireAndForget(protocol.EventJoinVoice, protocol.VoiceRoomRef{RoomID: roomID, UserName: userName})
}

func (c *Client) LeaveVoiceRoom(roomID string) {
	c.fireAndForget(protocol.EventLeaveVoice, protocol.VoiceRoomRef{RoomID: roomID})
}

func (c *Client) StartSpeaking(roomID, userName string) {
	c.fireAndForget(protocol.EventStartSpeak, protocol.VoiceRoomRef{RoomID: roomID, UserName: userName})
}

func (c *Client) StopSpeaking(roomID string) {
	c.fireAndForget(protocol.EventStopSpeak, protocol.VoiceRoomRef{RoomID: roomID})
}

func (c *Client) SendVoiceData(roomID, audioData string, duration int64) {
	c.fireAndForget(protocol.EventVoiceData, protocol.VoiceData{
		RoomID:    roomID,
		AudioData: audioData,
		Timestamp: time.Now().UnixMilli(),
		Duration:  duration,
	})
}

func (c *Client) fireAndForget(event string, payload any) {
	if err := c.send(event, payload); err != nil {
		log.Debug().Str("module", "client").Str("event", event).Msg("dropped while disconnected")
	}
}

func (c *Client) send(event string, payload any) error {
	c.mu.Lock()
	ws := c.ws
	connected := c.state == Connected
	c.mu.Unlock()
	if !connected || ws == nil {
		return ErrNotConnected
	}
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) flushBuffer() {
	fresh, stale := c.buffer.drain()
	if stale > 0 {
		log.Warn().Int("count", stale).Str("module", "client").Msg("stale buffered operations discarded")
		c.notifyError(fmt.Sprintf("%d buffered messages discarded as stale", stale))
	}
	if len(fresh) == 0 {
		return
	}
	log.Info().Int("count", len(fresh)).Str("module", "client").Msg("flushing buffered operations")
	for _, op := range fresh {
		if err := c.send(op.event, op.data); err != nil {
			// Transport dropped mid-flush; requeue for the next connect,
			// keeping the original enqueue time.
			c.buffer.requeue(op)
			continue
		}
		// Small delay so the replay does not overwhelm the router.
		time.Sleep(c.FlushDelay)
	}
}

// --- subscriptions ---

func (c *Client) OnConnectionChange(fn func(connected bool)) func() {
	c.connMu.Lock()
	c.connSeq++
	id := c.connSeq
	c.connSubs = append(c.connSubs, connSubscription{id: id, fn: fn})
	c.connMu.Unlock()
	return func() {
		c.connMu.Lock()
		defer c.connMu.Unlock()
		for i, s := range c.connSubs {
			if s.id == id {
				c.connSubs = append(c.connSubs[:i:i], c.connSubs[i+1:]...)
				return
			}
		}
	}
}

// OnMessage fires for every chat message: live new-message events and each
// entry of the recent-messages replay sent after a join.
func (c *Client) OnMessage(fn func(domain.Message)) func() {
	offNew := c.events.on(protocol.EventNewMessage, func(data json.RawMessage) {
		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err == nil {
			fn(msg)
		}
	})
	offRecent := c.events.on(protocol.EventRecentMessages, func(data json.RawMessage) {
		var msgs []domain.Message
		if err := json.Unmarshal(data, &msgs); err != nil {
			return
		}
		for _, msg := range msgs {
			fn(msg)
		}
	})
	return func() {
		offNew()
		offRecent()
	}
}

func (c *Client) OnTyping(fn func(protocol.UserTyping)) func() {
	return on(c.events, protocol.EventUserTyping, fn)
}

func (c *Client) OnUserJoined(fn func(protocol.UserJoined)) func() {
	return on(c.events, protocol.EventUserJoined, fn)
}

func (c *Client) OnUserLeft(fn func(protocol.UserLeft)) func() {
	return on(c.events, protocol.EventUserLeft, fn)
}

func (c *Client) OnMessageRead(fn func(protocol.MessageRead)) func() {
	return on(c.events, protocol.EventMessageRead, fn)
}

func (c *Client) OnMessagesRead(fn func(protocol.MessagesRead)) func() {
	return on(c.events, protocol.EventMessagesRead, fn)
}

func (c *Client) OnUserJoinedVoice(fn func(protocol.VoicePresence)) func() {
	return on(c.events, protocol.EventUserJoinedVoice, fn)
}

func (c *Client) OnUserLeftVoice(fn func(protocol.VoicePresence)) func() {
	return on(c.events, protocol.EventUserLeftVoice, fn)
}

func (c *Client) OnStartedSpeaking(fn func(protocol.VoicePresence)) func() {
	return on(c.events, protocol.EventStartedSpeaking, fn)
}

func (c *Client) OnStoppedSpeaking(fn func(protocol.VoicePresence)) func() {
	return on(c.events, protocol.EventStoppedSpeaking, fn)
}

func (c *Client) OnVoiceData(fn func(protocol.ReceiveVoiceData)) func() {
	return on(c.events, protocol.EventReceiveVoice, fn)
}

func (c *Client) OnError(fn func(message string)) func() {
	return c.events.on(protocol.EventError, func(data json.RawMessage) {
		var e protocol.ErrorEvent
		if err := json.Unmarshal(data, &e); err == nil {
			fn(e.Message)
		}
	})
}

func on[T any](e *emitter, event string, fn func(T)) func() {
	return e.on(event, func(data json.RawMessage) {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			fn(v)
		}
	})
}

func (c *Client) notifyConnection(connected bool) {
	c.connMu.RLock()
	subs := make([]connSubscription, len(c.connSubs))
	copy(subs, c.connSubs)
	c.connMu.RUnlock()
	for _, s := range subs {
		s.fn(connected)
	}
}

func (c *Client) notifyError(msg string) {
	data, _ := json.Marshal(protocol.ErrorEvent{Message: msg})
	c.events.emit(protocol.EventError, data)
}
