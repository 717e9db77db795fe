package protocol

import "time"

// --- inbound payloads ---

type RoomRef struct {
	RoomID string `json:"roomId"`
}

type SendMessage struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

type MarkRead struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

type VoiceRoomRef struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

type VoiceData struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId,omitempty"`
	AudioData string `json:"audioData"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Duration  int64  `json:"duration,omitempty"`
}

// --- outbound payloads ---

type UserJoined struct {
	UserID    string    `json:"userId"`
	UserEmail string    `json:"userEmail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type UserLeft struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type UserTyping struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type MessageRead struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

type MessagesRead struct {
	MessageIDs []string  `json:"messageIds"`
	UserID     string    `json:"userId"`
	ReadAt     time.Time `json:"readAt"`
}

type VoicePresence struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type ReceiveVoiceData struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	AudioData string `json:"audioData"`
	Timestamp int64  `json:"timestamp"`
	Duration  int64  `json:"duration"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
