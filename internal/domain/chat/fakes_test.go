package chat

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRepo struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]*Room
	members  []*Membership
	messages []*Message

	// failWith makes every call return this error
	failWith error
	// racer is inserted by the next CreateRoom, which then fails with
	// ErrDuplicateRoom as if another request won the race
	racer *Room
}

func newMemRepo() *memRepo {
	return &memRepo{rooms: make(map[uuid.UUID]*Room)}
}

func (r *memRepo) CreateRoom(_ context.Context, room *Room, members []*Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if r.racer != nil {
		racer := r.racer
		r.racer = nil
		r.rooms[racer.ID] = racer
		for _, m := range members {
			cp := *m
			cp.ID = uuid.New()
			cp.RoomID = racer.ID
			r.members = append(r.members, &cp)
		}
		return ErrDuplicateRoom
	}
	for _, existing := range r.rooms {
		if existing.RoomKey == room.RoomKey && existing.Generation == room.Generation {
			return ErrDuplicateRoom
		}
	}
	r.rooms[room.ID] = room
	r.members = append(r.members, members...)
	return nil
}

func (r *memRepo) GetRoomByID(_ context.Context, id uuid.UUID) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	return r.rooms[id], nil
}

func (r *memRepo) activeMember(roomID, userID uuid.UUID) bool {
	for _, m := range r.members {
		if m.RoomID == roomID && m.UserID == userID && m.IsActive() {
			return true
		}
	}
	return false
}

func (r *memRepo) sortedRooms() []*Room {
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	return rooms
}

func (r *memRepo) ListActiveRoomsBetween(_ context.Context, userID, otherID uuid.UUID) ([]*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []*Room
	for _, room := range r.sortedRooms() {
		if r.activeMember(room.ID, userID) && r.activeMember(room.ID, otherID) {
			out = append(out, room)
		}
	}
	return out, nil
}

func (r *memRepo) ListActiveRoomsByUser(_ context.Context, userID uuid.UUID) ([]*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []*Room
	for _, room := range r.sortedRooms() {
		if r.activeMember(room.ID, userID) {
			out = append(out, room)
		}
	}
	return out, nil
}

func (r *memRepo) NextRoomGeneration(_ context.Context, roomKey string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	next := 0
	for _, room := range r.rooms {
		if room.RoomKey == roomKey && room.Generation >= next {
			next = room.Generation + 1
		}
	}
	return next, nil
}

func (r *memRepo) GetMembers(_ context.Context, roomID uuid.UUID) ([]*Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []*Membership
	for _, m := range r.members {
		if m.RoomID == roomID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) GetMember(_ context.Context, roomID, userID uuid.UUID) (*Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, m := range r.members {
		if m.RoomID == roomID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) LeaveRoom(_ context.Context, roomID, userID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return false, r.failWith
	}
	for _, m := range r.members {
		if m.RoomID == roomID && m.UserID == userID && m.IsActive() {
			m.LeftAt = sql.NullTime{Time: at, Valid: true}
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) LeaveSharedRooms(_ context.Context, userID, otherID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []uuid.UUID
	for _, m := range r.members {
		if m.UserID == userID && m.IsActive() && r.activeMember(m.RoomID, otherID) {
			m.LeftAt = sql.NullTime{Time: at, Valid: true}
			out = append(out, m.RoomID)
		}
	}
	return out, nil
}

func (r *memRepo) CreateMessage(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *memRepo) GetMessageByID(_ context.Context, id uuid.UUID) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, m := range r.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListMessagesByRoom(_ context.Context, roomID uuid.UUID) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []*Message
	for _, m := range r.messages {
		if m.RoomID == roomID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) MarkMessageAsRead(_ context.Context, messageID, receiverID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return false, r.failWith
	}
	for _, m := range r.messages {
		if m.ID == messageID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) MarkMessagesAsRead(_ context.Context, roomID, receiverID uuid.UUID, visibleFrom time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	var n int64
	for _, m := range r.messages {
		if m.RoomID == roomID && m.ReceiverID == receiverID && !m.IsRead && !m.CreatedAt.Before(visibleFrom) {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountUnreadByUser(_ context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	count := 0
	for _, msg := range r.messages {
		if msg.ReceiverID != userID || msg.IsRead {
			continue
		}
		for _, m := range r.members {
			if m.RoomID == msg.RoomID && m.UserID == userID && m.IsActive() && m.CanSee(msg.CreatedAt) {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *memRepo) membership(roomID, userID uuid.UUID) *Membership {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.RoomID == roomID && m.UserID == userID {
			return m
		}
	}
	return nil
}

func (r *memRepo) roomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// blockSet is a directional block list
type blockSet struct {
	pairs map[[2]uuid.UUID]bool
	err   error
}

func newBlockSet() *blockSet {
	return &blockSet{pairs: make(map[[2]uuid.UUID]bool)}
}

func (b *blockSet) block(blockerID, blockedID uuid.UUID) {
	b.pairs[[2]uuid.UUID{blockerID, blockedID}] = true
}

func (b *blockSet) HasBlocked(_ context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	return b.pairs[[2]uuid.UUID{blockerID, blockedID}], nil
}

type staticPosts struct {
	posts map[uuid.UUID]*PostInfo
	err   error
}

func (p *staticPosts) GetPost(_ context.Context, postID uuid.UUID) (*PostInfo, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.posts[postID], nil
}

type staticProfiles struct {
	profiles map[uuid.UUID]*ProfileInfo
}

func (p *staticProfiles) GetProfile(_ context.Context, userID uuid.UUID) (*ProfileInfo, error) {
	profile, ok := p.profiles[userID]
	if !ok {
		return nil, errors.New("profile not found")
	}
	return profile, nil
}

// steppingClock returns strictly increasing timestamps
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(repo Repository, blocks BlockChecker, posts PostLookup, profiles ProfileLookup, hub *Hub) *Service {
	svc := NewService(repo, blocks, posts, profiles, hub)
	svc.now = newSteppingClock().Now
	return svc
}
