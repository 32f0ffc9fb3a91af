package profile

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Profile is the public face of a board member
type Profile struct {
	UserID    uuid.UUID      `db:"user_id"`
	Nickname  string         `db:"nickname"`
	AvatarURL sql.NullString `db:"avatar_url"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// Avatar returns the avatar URL or nil
func (p *Profile) Avatar() *string {
	if p == nil || !p.AvatarURL.Valid || p.AvatarURL.String == "" {
		return nil
	}
	url := p.AvatarURL.String
	return &url
}
