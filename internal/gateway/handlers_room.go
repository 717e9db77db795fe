package gateway

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
	"parlor/internal/protocol"
)

func (r *Router) handleJoinRoom(c *Conn, data json.RawMessage) {
	p, ok := decode[protocol.RoomRef](data)
	if !ok || p.RoomID == "" {
		r.emitError(c, "invalid join payload")
		return
	}
	roomID := domain.RoomID(p.RoomID)

	ctx, cancel := r.bridgeCtx()
	allowed, err := r.store.CheckRoomAccess(ctx, c.User.ID, roomID)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("module", "gateway.router").Str("room", p.RoomID).Msg("room access check")
		r.emitError(c, "failed to join room")
		return
	}
	if !allowed {
		r.emitError(c, ErrRoomAccessDenied.Error())
		return
	}

	left, ok := r.registry.JoinRoom(c.ID, roomID)
	if !ok {
		return // connection closed while the access check was in flight
	}
	if left != "" && left != roomID {
		// Auto-leave: joining a new room implicitly leaves the old one, and
		// its remaining members hear about it.
		r.broadcast(protocol.EventUserLeft, r.registry.Members(left), c.ID, protocol.UserLeft{
			UserID:    string(c.User.ID),
			Timestamp: time.Now(),
		})
	}

	r.broadcast(protocol.EventUserJoined, r.registry.Members(roomID), c.ID, protocol.UserJoined{
		UserID:    string(c.User.ID),
		UserEmail: c.User.Email,
		Timestamp: time.Now(),
	})

	ctx, cancel = r.bridgeCtx()
	history, err := r.store.RecentMessages(ctx, roomID, r.historyLimit)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("module", "gateway.router").Str("room", p.RoomID).Msg("recent messages")
		history = nil
	}
	// Membership may have changed while the store call was in flight.
	if r.inRoom(c, p.RoomID) {
		r.emit(c, protocol.EventRecentMessages, history)
	}
}

func (r *Router) handleLeaveRoom(c *Conn, _ json.RawMessage) {
	room, ok := r.registry.LeaveRoom(c.ID)
	if !ok {
		return // not in a room, leave is a no-op
	}
	r.broadcast(protocol.EventUserLeft, r.registry.Members(room), c.ID, protocol.UserLeft{
		UserID:    string(c.User.ID),
		Timestamp: time.Now(),
	})
}
