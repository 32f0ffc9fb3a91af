package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlockChecker answers whether blockerID has blocked blockedID
type BlockChecker interface {
	HasBlocked(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error)
}

// PostLookup resolves board posts. A missing post returns (nil, nil).
type PostLookup interface {
	GetPost(ctx context.Context, postID uuid.UUID) (*PostInfo, error)
}

// ProfileLookup resolves public profiles
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileInfo, error)
}

// Service handles chat business logic
type Service struct {
	repo     Repository
	blocks   BlockChecker
	posts    PostLookup
	profiles ProfileLookup
	hub      *Hub // change feed
	now      func() time.Time
}

// NewService creates chat service. posts, profiles and hub may be nil.
func NewService(repo Repository, blocks BlockChecker, posts PostLookup, profiles ProfileLookup, hub *Hub) *Service {
	return &Service{
		repo:     repo,
		blocks:   blocks,
		posts:    posts,
		profiles: profiles,
		hub:      hub,
		now:      time.Now,
	}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// SendResult is the outcome of a successful send
type SendResult struct {
	Message *Message
	// PartnerLeft is set when the receiver no longer has an active membership
	PartnerLeft bool
}

// Advisory returns ErrNoActiveCounterpart when the partner has left
func (r *SendResult) Advisory() error {
	if r != nil && r.PartnerLeft {
		return ErrNoActiveCounterpart
	}
	return nil
}

// isBlocked checks whether receiverID has blocked senderID
func (s *Service) isBlocked(ctx context.Context, receiverID, senderID uuid.UUID) (bool, error) {
	if s.blocks == nil {
		return false, nil
	}
	blocked, err := s.blocks.HasBlocked(ctx, receiverID, senderID)
	if err != nil {
		return false, storeErr(err)
	}
	return blocked, nil
}

// Append sends a message in a room. The send succeeds when the partner has
// left; the result then carries the partner-left advisory.
func (s *Service) Append(ctx context.Context, roomID, senderID uuid.UUID, content string, isAnonymous bool) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	members, err := s.repo.GetMembers(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	state := RoomState{Room: room, Memberships: members}
	if !state.MembershipOf(senderID).IsActive() {
		return nil, ErrNotRoomMember
	}
	counterpart := state.CounterpartMembership(senderID)
	if counterpart == nil {
		return nil, ErrNoActiveCounterpart
	}

	blocked, err := s.isBlocked(ctx, counterpart.UserID, senderID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	msg := &Message{
		ID:          uuid.New(),
		RoomID:      roomID,
		SenderID:    senderID,
		ReceiverID:  counterpart.UserID,
		Content:     content,
		IsAnonymous: isAnonymous,
		IsRead:      false,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, storeErr(err)
	}

	s.hub.Publish(Event{
		Type:      EventMessageInserted,
		RoomID:    roomID,
		UserIDs:   []uuid.UUID{senderID, counterpart.UserID},
		MessageID: msg.ID,
		At:        msg.CreatedAt,
	})

	return &SendResult{Message: msg, PartnerLeft: !counterpart.IsActive()}, nil
}

// MarkRead marks one message read. Messages not addressed to the observer
// are left alone.
func (s *Service) MarkRead(ctx context.Context, messageID, observerID uuid.UUID) error {
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return storeErr(err)
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.ReceiverID != observerID || msg.IsRead {
		return nil
	}

	updated, err := s.repo.MarkMessageAsRead(ctx, messageID, observerID)
	if err != nil {
		return storeErr(err)
	}
	if updated {
		s.hub.Publish(Event{
			Type:      EventMessageRead,
			RoomID:    msg.RoomID,
			UserIDs:   []uuid.UUID{msg.SenderID, msg.ReceiverID},
			MessageID: msg.ID,
		})
	}
	return nil
}

// MarkAllRead marks every visible message addressed to the observer as read
func (s *Service) MarkAllRead(ctx context.Context, roomID, observerID uuid.UUID) (int64, error) {
	member, err := s.membership(ctx, roomID, observerID)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.MarkMessagesAsRead(ctx, roomID, observerID, member.VisibleFrom)
	if err != nil {
		return 0, storeErr(err)
	}
	if n > 0 {
		s.hub.Publish(Event{
			Type:    EventMessageRead,
			RoomID:  roomID,
			UserIDs: []uuid.UUID{observerID},
		})
	}
	return n, nil
}

// History returns the observer's view of the room, oldest first
func (s *Service) History(ctx context.Context, roomID, observerID uuid.UUID) ([]*Message, error) {
	member, err := s.membership(ctx, roomID, observerID)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessagesByRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	return visibleTo(member, messages), nil
}

// UnreadTotal returns the badge count across rooms the user is active in
func (s *Service) UnreadTotal(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.repo.CountUnreadByUser(ctx, userID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// membership returns the user's membership, which may already be closed
func (s *Service) membership(ctx context.Context, roomID, userID uuid.UUID) (*Membership, error) {
	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	member, err := s.repo.GetMember(ctx, roomID, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if member == nil {
		return nil, ErrNotRoomMember
	}
	return member, nil
}

func visibleTo(member *Membership, messages []*Message) []*Message {
	visible := make([]*Message, 0, len(messages))
	for _, m := range messages {
		if member.CanSee(m.CreatedAt) {
			visible = append(visible, m)
		}
	}
	return visible
}
