package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

// memoryStore is the explicit degraded mode used when no data directory is
// configured (local runs, emulator parity). Access checks allow everyone,
// ids are synthesized, and history lives only as long as the process.
type memoryStore struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*domain.Room
	messages map[domain.RoomID][]*domain.Message
	byID     map[domain.MessageID]*domain.Message
	status   map[domain.UserID]domain.OnlineStatus
}

func NewMemory() Store {
	log.Warn().Str("module", "bridge").Msg("no data dir configured, running degraded in-memory store")
	return &memoryStore{
		rooms:    make(map[domain.RoomID]*domain.Room),
		messages: make(map[domain.RoomID][]*domain.Message),
		byID:     make(map[domain.MessageID]*domain.Message),
		status:   make(map[domain.UserID]domain.OnlineStatus),
	}
}

func (s *memoryStore) Available() bool { return false }

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) CreateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	s.rooms[room.ID] = room
	return nil
}

func (s *memoryStore) Room(_ context.Context, roomID domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// CheckRoomAccess always allows in degraded mode, matching the emulator
// behavior of the hosted deployment.
func (s *memoryStore) CheckRoomAccess(_ context.Context, _ domain.UserID, _ domain.RoomID) (bool, error) {
	return true, nil
}

func (s *memoryStore) SaveMessage(_ context.Context, msg *domain.Message) (domain.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = domain.MessageID("mock-" + uuid.NewString())
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], msg)
	s.byID[msg.ID] = msg
	return msg.ID, nil
}

func (s *memoryStore) RecentMessages(_ context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out, nil
}

func (s *memoryStore) MarkRead(_ context.Context, messageID domain.MessageID, uid domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[messageID]
	if !ok {
		return false, ErrMessageNotFound
	}
	return msg.MarkReadBy(uid), nil
}

func (s *memoryStore) MarkAllRead(_ context.Context, roomID domain.RoomID, uid domain.UserID) ([]domain.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var marked []domain.MessageID
	for _, msg := range s.messages[roomID] {
		if msg.SenderID == uid || !msg.MarkReadBy(uid) {
			continue
		}
		marked = append(marked, msg.ID)
	}
	return marked, nil
}

func (s *memoryStore) SetOnlineStatus(_ context.Context, uid domain.UserID, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[uid] = domain.OnlineStatus{Online: online, LastSeen: time.Now().Unix()}
	return nil
}
