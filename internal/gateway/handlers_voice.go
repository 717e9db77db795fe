package gateway

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
	"parlor/internal/protocol"
)

func (r *Router) handleJoinVoice(c *Conn, data json.RawMessage) {
	p, ok := decode[protocol.VoiceRoomRef](data)
	if !ok || p.RoomID == "" {
		r.emitError(c, "invalid voice payload")
		return
	}
	roomID := domain.RoomID(p.RoomID)

	left, ok := r.registry.JoinVoiceRoom(c.ID, roomID)
	if !ok {
		return
	}
	if left != "" && left != roomID {
		r.broadcast(protocol.EventUserLeftVoice, r.registry.VoiceMembers(left), c.ID, protocol.VoicePresence{
			UserID:    string(c.User.ID),
			Timestamp: time.Now().UnixMilli(),
		})
	}

	r.broadcast(protocol.EventUserJoinedVoice, r.registry.VoiceMembers(roomID), c.ID, protocol.VoicePresence{
		UserID:    string(c.User.ID),
		UserName:  r.voiceName(c, p.UserName),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (r *Router) handleLeaveVoice(c *Conn, _ json.RawMessage) {
	room, ok := r.registry.LeaveVoiceRoom(c.ID)
	if !ok {
		return
	}
	r.broadcast(protocol.EventUserLeftVoice, r.registry.VoiceMembers(room), c.ID, protocol.VoicePresence{
		UserID:    string(c.User.ID),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (r *Router) handleStartSpeaking(c *Conn, data json.RawMessage) {
	r.relaySpeaking(c, data, protocol.EventStartedSpeaking)
}

func (r *Router) handleStopSpeaking(c *Conn, data json.RawMessage) {
	r.relaySpeaking(c, data, protocol.EventStoppedSpeaking)
}

func (r *Router) relaySpeaking(c *Conn, data json.RawMessage, event string) {
	p, ok := decode[protocol.VoiceRoomRef](data)
	if !ok {
		r.emitError(c, "invalid voice payload")
		return
	}
	if !r.inVoiceRoom(c, p.RoomID) {
		r.emitError(c, ErrNotInRoom.Error())
		return
	}
	r.broadcast(event, r.registry.VoiceMembers(domain.RoomID(p.RoomID)), c.ID, protocol.VoicePresence{
		UserID:    string(c.User.ID),
		UserName:  r.voiceName(c, p.UserName),
		Timestamp: time.Now().UnixMilli(),
	})
}

// handleVoiceData relays the opaque audio blob unchanged. Malformed frames
// are dropped with a warning, never surfaced: voice is best-effort.
func (r *Router) handleVoiceData(c *Conn, data json.RawMessage) {
	p, ok := decode[protocol.VoiceData](data)
	if !ok || p.RoomID == "" || p.AudioData == "" {
		log.Warn().Str("module", "gateway.router").Str("conn", string(c.ID)).Msg("invalid voice data, dropped")
		return
	}
	if !r.voiceRL.Allow(c.User.ID) {
		log.Debug().Str("module", "gateway.router").Str("user", string(c.User.ID)).Msg("voice frame rate limited")
		return
	}

	ts := p.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	r.broadcast(protocol.EventReceiveVoice, r.registry.VoiceMembers(domain.RoomID(p.RoomID)), c.ID, protocol.ReceiveVoiceData{
		UserID:    string(c.User.ID),
		UserName:  r.voiceName(c, ""),
		AudioData: p.AudioData,
		Timestamp: ts,
		Duration:  p.Duration,
	})
}

func (r *Router) voiceName(c *Conn, fromPayload string) string {
	if fromPayload != "" {
		return fromPayload
	}
	if c.User.Name != "" {
		return c.User.Name
	}
	return "Unknown"
}
