// Package protocol defines the wire vocabulary shared by the gateway and
// the client: the event envelope plus the payload shapes of every event
// that crosses the socket.
package protocol

import "encoding/json"

// Envelope frames every message on the wire. Data holds the event payload
// verbatim so dispatchers can route on Event before decoding.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound events (client -> gateway).
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
	EventMarkRead    = "mark-message-read"
	EventMarkAllRead = "mark-all-messages-read"
	EventJoinVoice   = "join-voice-room"
	EventLeaveVoice  = "leave-voice-room"
	EventStartSpeak  = "voice-start-speaking"
	EventStopSpeak   = "voice-stop-speaking"
	EventVoiceData   = "voice-data"
)

// Outbound events (gateway -> client).
const (
	EventRecentMessages  = "recent-messages"
	EventNewMessage      = "new-message"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventUserTyping      = "user-typing"
	EventMessageRead     = "message-read"
	EventMessagesRead    = "messages-read"
	EventUserJoinedVoice = "user-joined-voice"
	EventUserLeftVoice   = "user-left-voice"
	EventStartedSpeaking = "user-started-speaking"
	EventStoppedSpeaking = "user-stopped-speaking"
	EventReceiveVoice    = "receive-voice-data"
	EventError           = "error"
)

func Encode(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(raw, &env)
	return env, err
}
