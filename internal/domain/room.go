package domain

import (
	"errors"

	"github.com/samber/lo"
)

const MaxRoomNameLen = 64

var (
	ErrRoomIDEmpty     = errors.New("room id empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)

type RoomID string

// Room is the durable room record: identity plus the participant list the
// access check runs against. Live membership (which connections are in the
// room right now) is the gateway registry's concern, not the room's.
type Room struct {
	ID           RoomID   `json:"id"`
	Name         string   `json:"name"`
	Participants []UserID `json:"participants"`
}

func NewRoom(id RoomID, name string, participants []UserID) (*Room, error) {
	if len(id) == 0 {
		return nil, ErrRoomIDEmpty
	}
	if len(name) > MaxRoomNameLen {
		return nil, ErrRoomNameTooLong
	}
	return &Room{ID: id, Name: name, Participants: participants}, nil
}

func (r *Room) HasParticipant(uid UserID) bool {
	return lo.Contains(r.Participants, uid)
}
