package relationships

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new relationships repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateBlock(ctx context.Context, block *BlockRelation) error {
	query := `
		INSERT INTO user_blocks (id, blocker_id, blocked_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, block.ID, block.BlockerID, block.BlockedID, block.CreatedAt)
	return mapInsertError(err)
}

// mapInsertError turns the (blocker_id, blocked_id) unique violation into
// ErrAlreadyBlocked
func mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrAlreadyBlocked
	}
	return err
}

func (r *repository) DeleteBlock(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	query := `DELETE FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2`
	res, err := r.db.ExecContext(ctx, query, blockerID, blockedID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *repository) HasBlocked(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, blockerID, blockedID)
	return exists, err
}

func (r *repository) ListBlocks(ctx context.Context, blockerID uuid.UUID) ([]*BlockRelation, error) {
	query := `SELECT * FROM user_blocks WHERE blocker_id = $1 ORDER BY created_at DESC`
	var blocks []*BlockRelation
	err := r.db.SelectContext(ctx, &blocks, query, blockerID)
	return blocks, err
}
