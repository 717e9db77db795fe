package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

const (
	sendBufferSize = 32
	writeTimeout   = 5 * time.Second
)

type ConnID string

// Conn is one live transport session. The gateway owns it from upgrade to
// close; outbound delivery goes through the buffered send channel so a slow
// receiver never blocks a fan-out.
type Conn struct {
	ID          ConnID
	User        *domain.User
	ConnectedAt time.Time

	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func NewConn(user *domain.User, ws *websocket.Conn) *Conn {
	return &Conn{
		ID:          ConnID(uuid.NewString()),
		User:        user,
		ConnectedAt: time.Now(),
		ws:          ws,
		send:        make(chan []byte, sendBufferSize),
	}
}

// TrySend queues a frame without blocking. A full buffer is reported as
// ErrBackpressure and the frame is dropped; the policy decides what happens
// to the connection.
func (c *Conn) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- frame:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.ws != nil {
		_ = c.ws.Close()
	}
	c.mu.Unlock()
}

func (c *Conn) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "gateway").Str("conn", string(c.ID)).Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("module", "gateway").Str("conn", string(c.ID)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) readPump(readLimit int64, router *Router) {
	defer func() {
		log.Info().Str("module", "gateway").Str("conn", string(c.ID)).Msg("readPump closing")
		router.HandleDisconnect(c)
		c.Close()
	}()
	if readLimit > 0 {
		c.ws.SetReadLimit(readLimit)
	}
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "gateway").Str("conn", string(c.ID)).Msg("readPump read error")
			}
			return
		}
		router.Dispatch(c, data)
	}
}
