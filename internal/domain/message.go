package domain

import (
	"errors"
	"time"

	"github.com/samber/lo"
)

const MaxContentLen = 16 * 1024

var (
	ErrContentEmpty   = errors.New("message content empty")
	ErrContentTooLong = errors.New("message content too long")
	ErrBadMessageType = errors.New("unknown message type")
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

type MessageID string

type Message struct {
	ID          MessageID   `json:"id"`
	RoomID      RoomID      `json:"roomId"`
	SenderID    UserID      `json:"senderId"`
	SenderEmail string      `json:"senderEmail,omitempty"`
	Content     string      `json:"content"`
	Type        MessageType `json:"type"`
	Timestamp   time.Time   `json:"timestamp"`
	ReadBy      []UserID    `json:"readBy,omitempty"`
}

func NewMessage(room RoomID, sender *User, content string, mt MessageType) (*Message, error) {
	if len(content) == 0 {
		return nil, ErrContentEmpty
	}
	if len(content) > MaxContentLen {
		return nil, ErrContentTooLong
	}
	switch mt {
	case MessageText, MessageImage, MessageFile:
	default:
		return nil, ErrBadMessageType
	}
	return &Message{
		RoomID:      room,
		SenderID:    sender.ID,
		SenderEmail: sender.Email,
		Content:     content,
		Type:        mt,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// MarkReadBy appends the reader once. Reports whether the reader was new.
func (m *Message) MarkReadBy(uid UserID) bool {
	if lo.Contains(m.ReadBy, uid) {
		return false
	}
	m.ReadBy = append(m.ReadBy, uid)
	return true
}

func (m *Message) ReadByUser(uid UserID) bool {
	return lo.Contains(m.ReadBy, uid)
}

// ReadReceipt is the detailed per-reader record the store keeps alongside
// the message's ReadBy list.
type ReadReceipt struct {
	MessageID MessageID `json:"messageId"`
	UserID    UserID    `json:"userId"`
	RoomID    RoomID    `json:"roomId"`
	ReadAt    time.Time `json:"readAt"`
}
