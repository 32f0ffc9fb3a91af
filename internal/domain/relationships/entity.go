package relationships

import (
	"time"

	"github.com/google/uuid"
)

// BlockRelation is a directional block: BlockerID no longer accepts new
// rooms or messages from BlockedID
type BlockRelation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	BlockerID uuid.UUID `db:"blocker_id" json:"blocker_id"`
	BlockedID uuid.UUID `db:"blocked_id" json:"blocked_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
