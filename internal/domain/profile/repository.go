package profile

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository reads profiles owned by the accounts side of the board
type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates profile repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	query := `SELECT user_id, nickname, avatar_url, updated_at FROM profiles WHERE user_id = $1`
	var p Profile
	if err := r.db.GetContext(ctx, &p, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}
