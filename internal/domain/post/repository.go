package post

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository reads board posts. Post CRUD lives in the board service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Post, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates post repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	query := `SELECT id, author_id, is_anonymous, title, created_at FROM board_posts WHERE id = $1`
	var p Post
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &p, nil
}
