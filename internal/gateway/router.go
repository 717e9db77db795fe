package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"parlor/internal/bridge"
	"parlor/internal/protocol"
)

const (
	bridgeTimeout = 5 * time.Second

	// voice-data relay cap per principal; roughly one frame per 100ms of
	// PTT audio plus headroom.
	voiceFrameLimit  = 30
	voiceFrameWindow = time.Second
)

type handlerFunc func(c *Conn, data json.RawMessage)

// Router dispatches inbound events to handlers via a table keyed by event
// name. Each handler validates its preconditions, talks to the store when
// needed and fans the result out to the computed audience. Handler-local
// failures become a single error event to the origin connection; they never
// tear down the connection or affect anyone else.
type Router struct {
	registry *Registry
	store    bridge.Store
	policy   Policy
	voiceRL  *VoiceRateLimiter

	historyLimit int
	handlers     map[string]handlerFunc
}

func NewRouter(reg *Registry, store bridge.Store, historyLimit int) *Router {
	r := &Router{
		registry:     reg,
		store:        store,
		policy:       DropPolicy{},
		voiceRL:      NewVoiceRateLimiter(voiceFrameLimit, voiceFrameWindow),
		historyLimit: historyLimit,
	}
	r.handlers = map[string]handlerFunc{
		protocol.EventJoinRoom:    r.handleJoinRoom,
		protocol.EventLeaveRoom:   r.handleLeaveRoom,
		protocol.EventSendMessage: r.handleSendMessage,
		protocol.EventTypingStart: r.handleTypingStart,
		protocol.EventTypingStop:  r.handleTypingStop,
		protocol.EventMarkRead:    r.handleMarkRead,
		protocol.EventMarkAllRead: r.handleMarkAllRead,
		protocol.EventJoinVoice:   r.handleJoinVoice,
		protocol.EventLeaveVoice:  r.handleLeaveVoice,
		protocol.EventStartSpeak:  r.handleStartSpeaking,
		protocol.EventStopSpeak:   r.handleStopSpeaking,
		protocol.EventVoiceData:   r.handleVoiceData,
	}
	return r
}

// SetPolicy replaces the backpressure policy. Call before serving traffic.
func (r *Router) SetPolicy(p Policy) { r.policy = p }

func (r *Router) Dispatch(c *Conn, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "gateway.router").Str("conn", string(c.ID)).Msg("bad envelope")
		return
	}
	h, ok := r.handlers[env.Event]
	if !ok {
		log.Warn().Str("module", "gateway.router").Str("event", env.Event).Msg("unknown event")
		return
	}
	h(c, env.Data)
}

// HandleDisconnect runs the teardown sequence on transport close. Order
// matters: voice peers are notified while voice membership is still known,
// the connection leaves every index before presence flips, and chat peers
// are notified last from the membership captured at removal.
func (r *Router) HandleDisconnect(c *Conn) {
	if voiceRoom, ok := r.registry.LeaveVoiceRoom(c.ID); ok {
		r.broadcast(protocol.EventUserLeftVoice, r.registry.VoiceMembers(voiceRoom), c.ID, protocol.VoicePresence{
			UserID:    string(c.User.ID),
			Timestamp: time.Now().UnixMilli(),
		})
	}

	room, user, ok := r.registry.Remove(c.ID)
	if !ok {
		return
	}

	if !r.registry.IsOnline(user.ID) {
		r.voiceRL.Forget(user.ID)
		ctx, cancel := context.WithTimeout(context.Background(), bridgeTimeout)
		if err := r.store.SetOnlineStatus(ctx, user.ID, false); err != nil {
			log.Warn().Err(err).Str("module", "gateway.router").Str("user", string(user.ID)).Msg("mark offline")
		}
		cancel()
	}

	if room != "" {
		r.broadcast(protocol.EventUserLeft, r.registry.Members(room), c.ID, protocol.UserLeft{
			UserID:    string(user.ID),
			Timestamp: time.Now(),
		})
	}
	log.Info().Str("module", "gateway.router").Str("conn", string(c.ID)).Str("user", string(user.ID)).Msg("disconnected")
}

func (r *Router) emit(c *Conn, event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway.router").Str("event", event).Msg("encode")
		return
	}
	r.deliver(c, event, frame)
}

func (r *Router) emitError(c *Conn, msg string) {
	r.emit(c, protocol.EventError, protocol.ErrorEvent{Message: msg})
}

// broadcast encodes once and delivers to every member except exclude. Pass
// an empty exclude to include the sender.
func (r *Router) broadcast(event string, members []*Conn, exclude ConnID, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway.router").Str("event", event).Msg("encode")
		return
	}
	for _, m := range members {
		if m.ID == exclude {
			continue
		}
		r.deliver(m, event, frame)
	}
}

func (r *Router) deliver(c *Conn, event string, frame []byte) {
	err := c.TrySend(frame)
	if err == nil || err == ErrConnClosed {
		return
	}
	switch r.policy.OnBackpressure(event, c) {
	case KickConn:
		log.Warn().Str("module", "gateway.router").Str("conn", string(c.ID)).Str("event", event).Msg("kicking slow receiver")
		c.Close()
	default:
		log.Debug().Str("module", "gateway.router").Str("conn", string(c.ID)).Str("event", event).Msg("frame dropped on backpressure")
	}
}

func (r *Router) bridgeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), bridgeTimeout)
}

// inRoom re-checks the precondition that the connection's current chat room
// matches the payload's. Handlers call it again after store calls when the
// result depends on membership still holding.
func (r *Router) inRoom(c *Conn, roomID string) bool {
	current, ok := r.registry.RoomOf(c.ID)
	return ok && string(current) == roomID && roomID != ""
}

func (r *Router) inVoiceRoom(c *Conn, roomID string) bool {
	current, ok := r.registry.VoiceRoomOf(c.ID)
	return ok && string(current) == roomID && roomID != ""
}

func decode[T any](data json.RawMessage) (T, bool) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false
	}
	return v, true
}
