package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"parlor/internal/domain"
)

// Key layout:
//
//	room/<roomID>          -> Room
//	msg/<roomID>/<seq>     -> Message (seq is a zero-padded global counter,
//	                          so per-room iteration yields send order)
//	msgkey/<messageID>     -> the msg/ key holding that message
//	read/<messageID>/<uid> -> ReadReceipt
//	status/<uid>           -> OnlineStatus
type badgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

func OpenBadger(dir string) (Store, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	seq, err := db.GetSequence([]byte("seq/msg"), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	log.Info().Str("module", "bridge").Str("dir", dir).Msg("badger store opened")
	return &badgerStore{db: db, seq: seq}, nil
}

func (s *badgerStore) Available() bool { return true }

func (s *badgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		log.Warn().Err(err).Str("module", "bridge").Msg("release sequence")
	}
	return s.db.Close()
}

func roomKey(id domain.RoomID) []byte { return []byte("room/" + id) }

func msgPrefix(id domain.RoomID) []byte { return []byte("msg/" + id + "/") }

func msgIdxKey(id domain.MessageID) []byte { return []byte("msgkey/" + id) }

func statusKey(id domain.UserID) []byte { return []byte("status/" + id) }
func readKey(m domain.MessageID, u domain.UserID) []byte {
	return []byte("read/" + string(m) + "/" + string(u))
}

func (s *badgerStore) CreateRoom(_ context.Context, room *domain.Room) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := roomKey(room.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrRoomExists
		}
		return setJSON(txn, key, room)
	})
}

func (s *badgerStore) Room(_ context.Context, roomID domain.RoomID) (*domain.Room, error) {
	var room domain.Room
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, roomKey(roomID), &room)
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *badgerStore) CheckRoomAccess(ctx context.Context, uid domain.UserID, roomID domain.RoomID) (bool, error) {
	room, err := s.Room(ctx, roomID)
	if err == ErrRoomNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return room.HasParticipant(uid), nil
}

func (s *badgerStore) SaveMessage(_ context.Context, msg *domain.Message) (domain.MessageID, error) {
	n, err := s.seq.Next()
	if err != nil {
		return "", fmt.Errorf("next message seq: %w", err)
	}
	msg.ID = domain.MessageID(uuid.NewString())
	key := append(msgPrefix(msg.RoomID), fmt.Sprintf("%020d", n)...)

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, key, msg); err != nil {
			return err
		}
		return txn.Set(msgIdxKey(msg.ID), key)
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (s *badgerStore) RecentMessages(_ context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	prefix := msgPrefix(roomID)
	var out []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the prefix range, then walk newest to oldest.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Reverse(out), nil
}

func (s *badgerStore) MarkRead(_ context.Context, messageID domain.MessageID, uid domain.UserID) (bool, error) {
	newly := false
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(msgIdxKey(messageID))
		if err == badger.ErrKeyNotFound {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		msgKey, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var msg domain.Message
		if err := getJSON(txn, msgKey, &msg); err != nil {
			return err
		}
		if !msg.MarkReadBy(uid) {
			return nil
		}
		newly = true
		if err := setJSON(txn, msgKey, &msg); err != nil {
			return err
		}
		receipt := domain.ReadReceipt{
			MessageID: messageID,
			UserID:    uid,
			RoomID:    msg.RoomID,
			ReadAt:    time.Now().UTC(),
		}
		return setJSON(txn, readKey(messageID, uid), &receipt)
	})
	return newly, err
}

func (s *badgerStore) MarkAllRead(_ context.Context, roomID domain.RoomID, uid domain.UserID) ([]domain.MessageID, error) {
	var marked []domain.MessageID
	now := time.Now().UTC()
	prefix := msgPrefix(roomID)
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			if msg.SenderID == uid || !msg.MarkReadBy(uid) {
				continue
			}
			key := it.Item().KeyCopy(nil)
			if err := setJSON(txn, key, &msg); err != nil {
				return err
			}
			receipt := domain.ReadReceipt{
				MessageID: msg.ID,
				UserID:    uid,
				RoomID:    roomID,
				ReadAt:    now,
			}
			if err := setJSON(txn, readKey(msg.ID, uid), &receipt); err != nil {
				return err
			}
			marked = append(marked, msg.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}

func (s *badgerStore) SetOnlineStatus(_ context.Context, uid domain.UserID, online bool) error {
	status := domain.OnlineStatus{Online: online, LastSeen: time.Now().Unix()}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, statusKey(uid), &status)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
