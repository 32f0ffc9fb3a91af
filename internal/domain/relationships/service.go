package relationships

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RoomLeaver closes userID's memberships in rooms shared with otherID
type RoomLeaver interface {
	LeaveSharedRooms(ctx context.Context, userID, otherID uuid.UUID) error
}

// Service handles user relationships business logic
type Service struct {
	repo   Repository
	leaver RoomLeaver
	now    func() time.Time
}

// NewService creates new relationships service. leaver may be nil.
func NewService(repo Repository, leaver RoomLeaver) *Service {
	return &Service{repo: repo, leaver: leaver, now: time.Now}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// IsBlocked reports whether blockerID has blocked blockedID. The check is
// directional.
func (s *Service) IsBlocked(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	blocked, err := s.repo.HasBlocked(ctx, blockerID, blockedID)
	if err != nil {
		return false, storeErr(err)
	}
	return blocked, nil
}

// BlockUser records the block, then takes the blocker out of every room
// still shared with the target. The target's memberships stay open.
func (s *Service) BlockUser(ctx context.Context, blockerID, targetID uuid.UUID) error {
	if blockerID == targetID {
		return ErrCannotBlockSelf
	}

	block := &BlockRelation{
		ID:        uuid.New(),
		BlockerID: blockerID,
		BlockedID: targetID,
		CreatedAt: s.now(),
	}
	err := s.repo.CreateBlock(ctx, block)
	if err != nil && !errors.Is(err, ErrAlreadyBlocked) {
		return storeErr(err)
	}

	// Runs for a repeated block too, so a leave that failed earlier is retried
	if leaveErr := s.leaveSharedRooms(ctx, blockerID, targetID); leaveErr != nil {
		return leaveErr
	}
	if err != nil {
		return err
	}

	log.Info().Str("blocker_id", blockerID.String()).Str("blocked_id", targetID.String()).Msg("User blocked")
	return nil
}

func (s *Service) leaveSharedRooms(ctx context.Context, blockerID, targetID uuid.UUID) error {
	if s.leaver == nil {
		return nil
	}
	if err := s.leaver.LeaveSharedRooms(ctx, blockerID, targetID); err != nil {
		return fmt.Errorf("leave shared rooms: %w", err)
	}
	return nil
}

// UnblockUser removes a block. Rooms left on block stay closed.
func (s *Service) UnblockUser(ctx context.Context, blockerID, targetID uuid.UUID) error {
	removed, err := s.repo.DeleteBlock(ctx, blockerID, targetID)
	if err != nil {
		return storeErr(err)
	}
	if !removed {
		return ErrNotBlocked
	}
	return nil
}

// ListMyBlocks returns all users blocked by the given user, newest first
func (s *Service) ListMyBlocks(ctx context.Context, userID uuid.UUID) ([]*BlockRelation, error) {
	blocks, err := s.repo.ListBlocks(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return blocks, nil
}
