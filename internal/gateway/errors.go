package gateway

import "errors"

var (
	// ErrAuthFailed refuses the connection at handshake time; no events are
	// processed for a connection that fails verification.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRoomAccessDenied: authenticated but not on the room's participant
	// list. Surfaced to the caller only, no state change.
	ErrRoomAccessDenied = errors.New("room access denied")

	// ErrNotInRoom: an action that requires room context was attempted
	// outside it.
	ErrNotInRoom = errors.New("not in the specified room")

	ErrBackpressure = errors.New("backpressure")

	ErrConnClosed = errors.New("connection closed")
)
