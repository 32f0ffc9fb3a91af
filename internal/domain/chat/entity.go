package chat

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TriBool is a nullable boolean stored as a nullable column.
// Unset marks rooms created before the target posture was recorded.
type TriBool int8

const (
	Unset TriBool = iota
	True
	False
)

// TriBoolOf converts a plain bool
func TriBoolOf(b bool) TriBool {
	if b {
		return True
	}
	return False
}

// IsTrue reports whether the value is explicitly True
func (t TriBool) IsTrue() bool { return t == True }

// IsFalse reports whether the value is explicitly False
func (t TriBool) IsFalse() bool { return t == False }

// Bool collapses Unset into false
func (t TriBool) Bool() bool { return t == True }

func (t TriBool) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unset"
	}
}

// Scan implements sql.Scanner
func (t *TriBool) Scan(src interface{}) error {
	if src == nil {
		*t = Unset
		return nil
	}
	switch v := src.(type) {
	case bool:
		*t = TriBoolOf(v)
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	default:
		return fmt.Errorf("chat: cannot scan %T into TriBool", src)
	}
	return nil
}

func (t *TriBool) scanString(s string) error {
	switch strings.ToLower(s) {
	case "t", "true", "1":
		*t = True
	case "f", "false", "0":
		*t = False
	default:
		return fmt.Errorf("chat: invalid TriBool value %q", s)
	}
	return nil
}

// Value implements driver.Valuer
func (t TriBool) Value() (driver.Value, error) {
	switch t {
	case True:
		return true, nil
	case False:
		return false, nil
	default:
		return nil, nil
	}
}

func (t TriBool) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *TriBool) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b == nil {
		*t = Unset
		return nil
	}
	*t = TriBoolOf(*b)
	return nil
}

// Room is a two-party conversation with a fixed anonymity contract
type Room struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	Anonymous       bool          `db:"is_anonymous" json:"is_anonymous"`
	TargetAnonymous TriBool       `db:"target_anonymous" json:"target_anonymous"`
	RelatedPostID   uuid.NullUUID `db:"related_post_id" json:"related_post_id,omitempty"`
	CreatorID       uuid.NullUUID `db:"creator_id" json:"-"`
	RoomKey         string        `db:"room_key" json:"-"`
	Generation      int           `db:"generation" json:"-"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// IsPostScoped reports whether the room was opened from a post
func (r *Room) IsPostScoped() bool {
	return r.RelatedPostID.Valid
}

// Contract returns the anonymity contract the room was created under
func (r *Room) Contract() RoomContract {
	c := RoomContract{Anonymous: r.Anonymous, TargetAnonymous: r.TargetAnonymous}
	if r.RelatedPostID.Valid {
		id := r.RelatedPostID.UUID
		c.RelatedPostID = &id
	}
	return c
}

// RoomContract partitions rooms between the same pair of users
type RoomContract struct {
	RelatedPostID   *uuid.UUID
	Anonymous       bool
	TargetAnonymous TriBool
}

// DeriveContract builds the contract for a new conversation. When neither
// side asks for anonymity the conversation is general and drops the post.
func DeriveContract(senderWantsAnonymous, targetIsAnonymous bool, relatedPostID *uuid.UUID) RoomContract {
	if !senderWantsAnonymous && !targetIsAnonymous {
		return RoomContract{Anonymous: false, TargetAnonymous: False}
	}
	return RoomContract{
		RelatedPostID:   relatedPostID,
		Anonymous:       senderWantsAnonymous,
		TargetAnonymous: TriBoolOf(targetIsAnonymous),
	}
}

// IsGeneral reports whether the contract carries no anonymity at all
func (c RoomContract) IsGeneral() bool {
	return c.RelatedPostID == nil && !c.Anonymous && !c.TargetAnonymous.Bool()
}

// Matches compares against a room's contract. Unset target is equal to False.
func (c RoomContract) Matches(room *Room) bool {
	if room == nil {
		return false
	}
	if c.Anonymous != room.Anonymous {
		return false
	}
	if c.TargetAnonymous.Bool() != room.TargetAnonymous.Bool() {
		return false
	}
	if c.RelatedPostID == nil {
		return !room.RelatedPostID.Valid
	}
	return room.RelatedPostID.Valid && room.RelatedPostID.UUID == *c.RelatedPostID
}

// Key returns the canonical room key for a participant pair under this contract.
// The pair is ordered so both directions map to the same key.
func (c RoomContract) Key(userA, userB uuid.UUID) string {
	ids := []string{userA.String(), userB.String()}
	sort.Strings(ids)
	post := "-"
	if c.RelatedPostID != nil {
		post = c.RelatedPostID.String()
	}
	return fmt.Sprintf("%s:%s:%s:%t:%t", ids[0], ids[1], post, c.Anonymous, c.TargetAnonymous.Bool())
}

// Membership is a user's participation record in a room
type Membership struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	RoomID      uuid.UUID    `db:"room_id" json:"room_id"`
	UserID      uuid.UUID    `db:"user_id" json:"user_id"`
	JoinedAt    time.Time    `db:"joined_at" json:"joined_at"`
	LeftAt      sql.NullTime `db:"left_at" json:"left_at,omitempty"`
	VisibleFrom time.Time    `db:"visible_from" json:"visible_from"`
}

// IsActive reports whether the member has not left
func (m *Membership) IsActive() bool {
	return m != nil && !m.LeftAt.Valid
}

// CanSee reports whether a message created at t is within the member's history
func (m *Membership) CanSee(t time.Time) bool {
	return !t.Before(m.VisibleFrom)
}

// Message represents a chat message
type Message struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RoomID      uuid.UUID `db:"room_id" json:"room_id"`
	SenderID    uuid.UUID `db:"sender_id" json:"sender_id"`
	ReceiverID  uuid.UUID `db:"receiver_id" json:"receiver_id"`
	Content     string    `db:"content" json:"content"`
	IsAnonymous bool      `db:"is_anonymous" json:"is_anonymous"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PostInfo is the slice of a board post the chat needs
type PostInfo struct {
	ID          uuid.UUID
	AuthorID    uuid.UUID
	IsAnonymous bool
	Title       string
}

// ProfileInfo is the public identity of a user
type ProfileInfo struct {
	UserID      uuid.UUID
	DisplayName string
	AvatarURL   *string
}
