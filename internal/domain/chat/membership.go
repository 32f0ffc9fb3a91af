package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PartnerStatus tells the chat window whether the other side is still there
type PartnerStatus struct {
	PartnerLeft bool
	LeftAt      *time.Time
}

// Leave closes the user's membership. There is no way back into the room;
// a new resolution creates a fresh room.
func (s *Service) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	member, err := s.membership(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member.IsActive() {
		return nil
	}

	members, err := s.repo.GetMembers(ctx, roomID)
	if err != nil {
		return storeErr(err)
	}

	left, err := s.repo.LeaveRoom(ctx, roomID, userID, s.now())
	if err != nil {
		return storeErr(err)
	}
	if left {
		s.publishMembershipChanged(roomID, members)
	}
	return nil
}

// LeaveSharedRooms closes userID's membership in every room still shared
// with otherID. Used when userID blocks otherID.
func (s *Service) LeaveSharedRooms(ctx context.Context, userID, otherID uuid.UUID) error {
	roomIDs, err := s.repo.LeaveSharedRooms(ctx, userID, otherID, s.now())
	if err != nil {
		return storeErr(err)
	}
	for _, roomID := range roomIDs {
		s.hub.Publish(Event{
			Type:    EventMembershipChanged,
			RoomID:  roomID,
			UserIDs: []uuid.UUID{userID, otherID},
		})
	}
	return nil
}

// PartnerStatus reports whether the observer's counterpart has left
func (s *Service) PartnerStatus(ctx context.Context, roomID, observerID uuid.UUID) (*PartnerStatus, error) {
	if _, err := s.membership(ctx, roomID, observerID); err != nil {
		return nil, err
	}

	members, err := s.repo.GetMembers(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}

	state := RoomState{Memberships: members}
	partner := state.CounterpartMembership(observerID)
	if partner == nil {
		return &PartnerStatus{PartnerLeft: true}, nil
	}
	if partner.IsActive() {
		return &PartnerStatus{}, nil
	}
	leftAt := partner.LeftAt.Time
	return &PartnerStatus{PartnerLeft: true, LeftAt: &leftAt}, nil
}

func (s *Service) publishMembershipChanged(roomID uuid.UUID, members []*Membership) {
	userIDs := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	s.hub.Publish(Event{
		Type:    EventMembershipChanged,
		RoomID:  roomID,
		UserIDs: userIDs,
	})
}
