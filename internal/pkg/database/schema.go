package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// schema is applied in order; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id    UUID PRIMARY KEY,
		nickname   TEXT NOT NULL DEFAULT '',
		avatar_url TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS board_posts (
		id           UUID PRIMARY KEY,
		author_id    UUID NOT NULL,
		is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
		title        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_blocks (
		id         UUID PRIMARY KEY,
		blocker_id UUID NOT NULL,
		blocked_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (blocker_id, blocked_id)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
		id               UUID PRIMARY KEY,
		is_anonymous     BOOLEAN NOT NULL DEFAULT FALSE,
		target_anonymous BOOLEAN,
		related_post_id  UUID,
		creator_id       UUID,
		room_key         TEXT NOT NULL,
		generation       INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_key_generation_idx ON chat_rooms (room_key, generation)`,
	`CREATE TABLE IF NOT EXISTS chat_room_members (
		id           UUID PRIMARY KEY,
		room_id      UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
		user_id      UUID NOT NULL,
		joined_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		left_at      TIMESTAMPTZ,
		visible_from TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS chat_room_members_user_idx ON chat_room_members (user_id) WHERE left_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS chat_room_members_room_idx ON chat_room_members (room_id)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id           UUID PRIMARY KEY,
		room_id      UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
		sender_id    UUID NOT NULL,
		receiver_id  UUID NOT NULL,
		content      TEXT NOT NULL,
		is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
		is_read      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_room_created_idx ON chat_messages (room_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_unread_idx ON chat_messages (receiver_id) WHERE is_read = FALSE`,
}

// Migrate creates the tables used by the API
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("Database schema up to date")
	return nil
}
