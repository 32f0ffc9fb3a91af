package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Member operations

func addMember(ctx context.Context, tx *sqlx.Tx, member *Membership) error {
	query := `
		INSERT INTO chat_room_members (id, room_id, user_id, joined_at, visible_from)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query,
		member.ID,
		member.RoomID,
		member.UserID,
		member.JoinedAt,
		member.VisibleFrom,
	)
	return err
}

func (r *repository) GetMembers(ctx context.Context, roomID uuid.UUID) ([]*Membership, error) {
	query := `SELECT * FROM chat_room_members WHERE room_id = $1 ORDER BY joined_at ASC`
	var members []*Membership
	err := r.db.SelectContext(ctx, &members, query, roomID)
	return members, err
}

// GetMember returns the most recent membership of the user in the room
func (r *repository) GetMember(ctx context.Context, roomID, userID uuid.UUID) (*Membership, error) {
	query := `
		SELECT * FROM chat_room_members
		WHERE room_id = $1 AND user_id = $2
		ORDER BY joined_at DESC
		LIMIT 1
	`
	var member Membership
	err := r.db.GetContext(ctx, &member, query, roomID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE chat_room_members SET left_at = $3 WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, roomID, userID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// LeaveSharedRooms closes userID's membership in every room where otherID is
// still active. otherID's own memberships are never touched.
func (r *repository) LeaveSharedRooms(ctx context.Context, userID, otherID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE chat_room_members mine SET left_at = $3
		WHERE mine.user_id = $1
		AND mine.left_at IS NULL
		AND EXISTS (
			SELECT 1 FROM chat_room_members theirs
			WHERE theirs.room_id = mine.room_id
			AND theirs.user_id = $2
			AND theirs.left_at IS NULL
		)
		RETURNING mine.room_id
	`
	var roomIDs []uuid.UUID
	err := r.db.SelectContext(ctx, &roomIDs, query, userID, otherID, at)
	return roomIDs, err
}
