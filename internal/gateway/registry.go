package gateway

import (
	"sync"

	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

type connState struct {
	conn      *Conn
	room      domain.RoomID // "" when not in a chat room
	voiceRoom domain.RoomID // "" when not in a voice room
}

// Registry owns all live connection state: the per-connection record, the
// principal-to-connections index and the chat/voice membership sets. The
// membership sets are derived from the per-connection room fields and every
// mutation keeps the two in step under one lock, so they can never
// disagree. Chat and voice membership are tracked independently: a
// connection holds at most one of each.
type Registry struct {
	mu         sync.RWMutex
	conns      map[ConnID]*connState
	byUser     map[domain.UserID]map[ConnID]*Conn
	rooms      map[domain.RoomID]map[ConnID]*Conn
	voiceRooms map[domain.RoomID]map[ConnID]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[ConnID]*connState),
		byUser:     make(map[domain.UserID]map[ConnID]*Conn),
		rooms:      make(map[domain.RoomID]map[ConnID]*Conn),
		voiceRooms: make(map[domain.RoomID]map[ConnID]*Conn),
	}
}

func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = &connState{conn: c}
	set, ok := r.byUser[c.User.ID]
	if !ok {
		set = make(map[ConnID]*Conn)
		r.byUser[c.User.ID] = set
	}
	set[c.ID] = c
	log.Info().Str("module", "gateway.registry").Str("conn", string(c.ID)).Str("user", string(c.User.ID)).Msg("connection added")
}

// Remove drops the connection from every collection. It returns the chat
// room the connection was in, if any, so the caller can notify the
// remaining members. Voice membership must already have been left via
// LeaveVoiceRoom; Remove clears it regardless so a missed leave cannot
// leak a set entry.
func (r *Registry) Remove(id ConnID) (room domain.RoomID, user *domain.User, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, found := r.conns[id]
	if !found {
		return "", nil, false
	}
	room = st.room
	user = st.conn.User
	r.dropFromSet(r.rooms, st.room, id)
	r.dropFromSet(r.voiceRooms, st.voiceRoom, id)
	delete(r.conns, id)
	if set, ok := r.byUser[user.ID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byUser, user.ID)
		}
	}
	log.Info().Str("module", "gateway.registry").Str("conn", string(id)).Str("user", string(user.ID)).Msg("connection removed")
	return room, user, true
}

// JoinRoom moves the connection into roomID, leaving any prior chat room
// first (atomic leave-then-join). It returns the room that was left, ""
// when there was none.
func (r *Registry) JoinRoom(id ConnID, roomID domain.RoomID) (left domain.RoomID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, found := r.conns[id]
	if !found {
		return "", false
	}
	left = st.room
	r.dropFromSet(r.rooms, st.room, id)
	st.room = roomID
	r.addToSet(r.rooms, roomID, st.conn)
	log.Info().Str("module", "gateway.registry").Str("conn", string(id)).Str("room", string(roomID)).Msg("joined room")
	return left, true
}

// LeaveRoom is idempotent: leaving while not in a room is a no-op.
func (r *Registry) LeaveRoom(id ConnID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, found := r.conns[id]
	if !found || st.room == "" {
		return "", false
	}
	room := st.room
	r.dropFromSet(r.rooms, room, id)
	st.room = ""
	log.Info().Str("module", "gateway.registry").Str("conn", string(id)).Str("room", string(room)).Msg("left room")
	return room, true
}

func (r *Registry) RoomOf(id ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, found := r.conns[id]
	if !found || st.room == "" {
		return "", false
	}
	return st.room, true
}

func (r *Registry) JoinVoiceRoom(id ConnID, roomID domain.RoomID) (left domain.RoomID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, found := r.conns[id]
	if !found {
		return "", false
	}
	left = st.voiceRoom
	r.dropFromSet(r.voiceRooms, st.voiceRoom, id)
	st.voiceRoom = roomID
	r.addToSet(r.voiceRooms, roomID, st.conn)
	log.Info().Str("module", "gateway.registry").Str("conn", string(id)).Str("room", string(roomID)).Msg("joined voice room")
	return left, true
}

func (r *Registry) LeaveVoiceRoom(id ConnID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, found := r.conns[id]
	if !found || st.voiceRoom == "" {
		return "", false
	}
	room := st.voiceRoom
	r.dropFromSet(r.voiceRooms, room, id)
	st.voiceRoom = ""
	log.Info().Str("module", "gateway.registry").Str("conn", string(id)).Str("room", string(room)).Msg("left voice room")
	return room, true
}

func (r *Registry) VoiceRoomOf(id ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, found := r.conns[id]
	if !found || st.voiceRoom == "" {
		return "", false
	}
	return st.voiceRoom, true
}

// Members returns the connections currently joined to the chat room. An
// empty result says nothing about whether the room exists durably.
func (r *Registry) Members(roomID domain.RoomID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return setToSlice(r.rooms[roomID])
}

func (r *Registry) VoiceMembers(roomID domain.RoomID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return setToSlice(r.voiceRooms[roomID])
}

func (r *Registry) ConnsOfUser(uid domain.UserID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return setToSlice(r.byUser[uid])
}

func (r *Registry) IsOnline(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[uid]) > 0
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) addToSet(sets map[domain.RoomID]map[ConnID]*Conn, roomID domain.RoomID, c *Conn) {
	set, ok := sets[roomID]
	if !ok {
		set = make(map[ConnID]*Conn)
		sets[roomID] = set
	}
	set[c.ID] = c
}

func (r *Registry) dropFromSet(sets map[domain.RoomID]map[ConnID]*Conn, roomID domain.RoomID, id ConnID) {
	if roomID == "" {
		return
	}
	if set, ok := sets[roomID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(sets, roomID)
		}
	}
}

func setToSlice(set map[ConnID]*Conn) []*Conn {
	out := make([]*Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}
