// Package bridge is the persistence boundary of the gateway: durable rooms,
// messages and read receipts. The gateway only depends on the Store
// interface; the badger implementation backs release deployments and the
// memory implementation is the explicit degraded mode for local runs
// without a data directory.
package bridge

import (
	"context"
	"errors"

	"parlor/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrRoomExists      = errors.New("room already exists")
)

type Store interface {
	// Available reports whether a live backend is behind the store. The
	// memory store returns false so callers can tell degraded mode apart
	// from a healthy deployment.
	Available() bool

	CreateRoom(ctx context.Context, room *domain.Room) error
	Room(ctx context.Context, roomID domain.RoomID) (*domain.Room, error)

	// CheckRoomAccess reports whether the principal is on the room's
	// participant list. The memory store always allows.
	CheckRoomAccess(ctx context.Context, uid domain.UserID, roomID domain.RoomID) (bool, error)

	// SaveMessage is append-only: it assigns the message id and never
	// overwrites an existing record.
	SaveMessage(ctx context.Context, msg *domain.Message) (domain.MessageID, error)

	// RecentMessages returns up to limit messages, oldest first.
	RecentMessages(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error)

	// MarkRead is idempotent. It reports whether the reader was newly
	// recorded.
	MarkRead(ctx context.Context, messageID domain.MessageID, uid domain.UserID) (bool, error)

	// MarkAllRead marks every message in the room not sent by uid and not
	// already read by uid. It returns only the newly-marked ids.
	MarkAllRead(ctx context.Context, roomID domain.RoomID, uid domain.UserID) ([]domain.MessageID, error)

	// SetOnlineStatus is best-effort presence; callers log failures and
	// move on.
	SetOnlineStatus(ctx context.Context, uid domain.UserID, online bool) error

	Close() error
}
