package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines chat data access interface
type Repository interface {
	// Room operations
	CreateRoom(ctx context.Context, room *Room, members []*Membership) error
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)
	ListActiveRoomsBetween(ctx context.Context, userID, otherID uuid.UUID) ([]*Room, error)
	ListActiveRoomsByUser(ctx context.Context, userID uuid.UUID) ([]*Room, error)
	NextRoomGeneration(ctx context.Context, roomKey string) (int, error)

	// Member operations
	GetMembers(ctx context.Context, roomID uuid.UUID) ([]*Membership, error)
	GetMember(ctx context.Context, roomID, userID uuid.UUID) (*Membership, error)
	LeaveRoom(ctx context.Context, roomID, userID uuid.UUID, at time.Time) (bool, error)
	LeaveSharedRooms(ctx context.Context, userID, otherID uuid.UUID, at time.Time) ([]uuid.UUID, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessageByID(ctx context.Context, id uuid.UUID) (*Message, error)
	ListMessagesByRoom(ctx context.Context, roomID uuid.UUID) ([]*Message, error)
	MarkMessageAsRead(ctx context.Context, messageID, receiverID uuid.UUID) (bool, error)
	MarkMessagesAsRead(ctx context.Context, roomID, receiverID uuid.UUID, visibleFrom time.Time) (int64, error)
	CountUnreadByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new chat repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Room operations

// CreateRoom inserts the room and both memberships in one transaction.
// chat_rooms has a unique index on (room_key, generation).
func (r *repository) CreateRoom(ctx context.Context, room *Room, members []*Membership) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO chat_rooms (id, is_anonymous, target_anonymous, related_post_id, creator_id, room_key, generation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, query,
		room.ID,
		room.Anonymous,
		room.TargetAnonymous,
		room.RelatedPostID,
		room.CreatorID,
		room.RoomKey,
		room.Generation,
		room.CreatedAt,
	)
	if err != nil {
		return mapRoomInsertError(err)
	}

	for _, m := range members {
		if err := addMember(ctx, tx, m); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func mapRoomInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateRoom
	}
	return err
}

func (r *repository) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	query := `SELECT * FROM chat_rooms WHERE id = $1`
	var room Room
	err := r.db.GetContext(ctx, &room, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *repository) ListActiveRoomsBetween(ctx context.Context, userID, otherID uuid.UUID) ([]*Room, error) {
	query := `
		SELECT r.* FROM chat_rooms r
		JOIN chat_room_members a ON a.room_id = r.id AND a.user_id = $1 AND a.left_at IS NULL
		JOIN chat_room_members b ON b.room_id = r.id AND b.user_id = $2 AND b.left_at IS NULL
		ORDER BY r.created_at DESC
	`
	var rooms []*Room
	err := r.db.SelectContext(ctx, &rooms, query, userID, otherID)
	return rooms, err
}

func (r *repository) ListActiveRoomsByUser(ctx context.Context, userID uuid.UUID) ([]*Room, error) {
	query := `
		SELECT r.* FROM chat_rooms r
		JOIN chat_room_members m ON m.room_id = r.id
		WHERE m.user_id = $1 AND m.left_at IS NULL
		ORDER BY r.created_at DESC
	`
	var rooms []*Room
	err := r.db.SelectContext(ctx, &rooms, query, userID)
	return rooms, err
}

func (r *repository) NextRoomGeneration(ctx context.Context, roomKey string) (int, error) {
	query := `SELECT COALESCE(MAX(generation) + 1, 0) FROM chat_rooms WHERE room_key = $1`
	var gen int
	err := r.db.GetContext(ctx, &gen, query, roomKey)
	return gen, err
}

// Message operations

func (r *repository) CreateMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO chat_messages (id, room_id, sender_id, receiver_id, content, is_anonymous, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.RoomID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.IsAnonymous,
		msg.IsRead,
		msg.CreatedAt,
	)
	return err
}

func (r *repository) GetMessageByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `SELECT * FROM chat_messages WHERE id = $1`
	var msg Message
	err := r.db.GetContext(ctx, &msg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *repository) ListMessagesByRoom(ctx context.Context, roomID uuid.UUID) ([]*Message, error) {
	query := `SELECT * FROM chat_messages WHERE room_id = $1 ORDER BY created_at ASC, id ASC`
	var messages []*Message
	err := r.db.SelectContext(ctx, &messages, query, roomID)
	return messages, err
}

func (r *repository) MarkMessageAsRead(ctx context.Context, messageID, receiverID uuid.UUID) (bool, error) {
	query := `UPDATE chat_messages SET is_read = TRUE WHERE id = $1 AND receiver_id = $2 AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, query, messageID, receiverID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *repository) MarkMessagesAsRead(ctx context.Context, roomID, receiverID uuid.UUID, visibleFrom time.Time) (int64, error) {
	query := `
		UPDATE chat_messages SET is_read = TRUE
		WHERE room_id = $1 AND receiver_id = $2 AND is_read = FALSE AND created_at >= $3
	`
	res, err := r.db.ExecContext(ctx, query, roomID, receiverID, visibleFrom)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repository) CountUnreadByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM chat_messages msg
		JOIN chat_room_members m ON m.room_id = msg.room_id AND m.user_id = $1
		WHERE msg.receiver_id = $1
		AND msg.is_read = FALSE
		AND m.left_at IS NULL
		AND msg.created_at >= m.visible_from
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}
