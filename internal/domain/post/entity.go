package post

import (
	"time"

	"github.com/google/uuid"
)

// Post is the slice of a board post that private messaging needs
type Post struct {
	ID          uuid.UUID `db:"id"`
	AuthorID    uuid.UUID `db:"author_id"`
	IsAnonymous bool      `db:"is_anonymous"`
	Title       string    `db:"title"`
	CreatedAt   time.Time `db:"created_at"`
}
