package gateway

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
	"parlor/internal/protocol"
)

func (r *Router) handleSendMessage(c *Conn, data json.RawMessage) {
	p, ok := decode[protocol.SendMessage](data)
	if !ok {
		r.emitError(c, "invalid message payload")
		return
	}
	if !r.inRoom(c, p.RoomID) {
		r.emitError(c, ErrNotInRoom.Error())
		return
	}
	if p.Type == "" {
		p.Type = string(domain.MessageText)
	}
	msg, err := domain.NewMessage(domain.RoomID(p.RoomID), c.User, p.Content, domain.MessageType(p.Type))
	if err != nil {
		r.emitError(c, err.Error())
		return
	}

	ctx, cancel := r.bridgeCtx()
	_, err = r.store.SaveMessage(ctx, msg)
	cancel()
	if err != nil {
		// No fan-out for a message that was not durably recorded.
		log.Error().Err(err).Str("module", "gateway.router").Str("room", p.RoomID).Msg("save message")
		r.emitError(c, "failed to send message")
		return
	}

	// Broadcast includes the sender: their own gateway renders the message
	// from the same event everyone else gets.
	r.broadcast(protocol.EventNewMessage, r.registry.Members(msg.RoomID), "", msg)
}

func (r *Router) handleTypingStart(c *Conn, data json.RawMessage) {
	r.relayTyping(c, data, true)
}

func (r *Router) handleTypingStop(c *Conn, data json.RawMessage) {
	r.relayTyping(c, data, false)
}

func (r *Router) relayTyping(c *Conn, data json.RawMessage, isTyping bool) {
	p, ok := decode[protocol.RoomRef](data)
	if !ok {
		r.emitError(c, "invalid typing payload")
		return
	}
	if !r.inRoom(c, p.RoomID) {
		r.emitError(c, ErrNotInRoom.Error())
		return
	}
	r.broadcast(protocol.EventUserTyping, r.registry.Members(domain.RoomID(p.RoomID)), c.ID, protocol.UserTyping{
		UserID:   string(c.User.ID),
		IsTyping: isTyping,
	})
}

func (r *Router) handleMarkRead(c *Conn, data json.RawMessage) {
	p, ok := decode[protocol.MarkRead](data)
	if !ok || p.MessageID == "" {
		r.emitError(c, "invalid read payload")
		return
	}
	if !r.inRoom(c, p.RoomID) {
		r.emitError(c, ErrNotInRoom.Error())
		return
	}

	ctx, cancel := r.bridgeCtx()
	_, err := r.store.MarkRead(ctx, domain.MessageID(p.MessageID), c.User.ID)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("module", "gateway.router").Str("message", p.MessageID).Msg("mark read")
		r.emitError(c, "failed to mark message as read")
		return
	}

	r.broadcast(protocol.EventMessageRead, r.registry.Members(domain.RoomID(p.RoomID)), c.ID, protocol.MessageRead{
		MessageID: p.MessageID,
		UserID:    string(c.User.ID),
		ReadAt:    time.Now(),
	})
}

func (r *Router) handleMarkAllRead(c *Conn, data json.RawMessage) {
	p, ok := decode[protocol.RoomRef](data)
	if !ok || !r.inRoom(c, p.RoomID) {
		r.emitError(c, ErrNotInRoom.Error())
		return
	}

	ctx, cancel := r.bridgeCtx()
	ids, err := r.store.MarkAllRead(ctx, domain.RoomID(p.RoomID), c.User.ID)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("module", "gateway.router").Str("room", p.RoomID).Msg("mark all read")
		r.emitError(c, "failed to mark all messages as read")
		return
	}

	// One batched event carrying only the newly-marked ids.
	marked := make([]string, 0, len(ids))
	for _, id := range ids {
		marked = append(marked, string(id))
	}
	r.broadcast(protocol.EventMessagesRead, r.registry.Members(domain.RoomID(p.RoomID)), c.ID, protocol.MessagesRead{
		MessageIDs: marked,
		UserID:     string(c.User.ID),
		ReadAt:     time.Now(),
	})
}
