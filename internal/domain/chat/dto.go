package chat

import (
	"time"

	"github.com/google/uuid"
)

const noMessagesPreview = "No messages yet"

// CreateRoomRequest for POST /chat/rooms
type CreateRoomRequest struct {
	RecipientID     uuid.UUID  `json:"recipient_id" validate:"required"`
	Anonymous       bool       `json:"anonymous"`
	TargetAnonymous *bool      `json:"target_anonymous,omitempty"` // Ignored when the post resolves
	RelatedPostID   *uuid.UUID `json:"related_post_id,omitempty"`
	Message         string     `json:"message,omitempty" validate:"max=4000"` // Optional initial message
}

// SendMessageRequest for POST /chat/rooms/{id}/messages
type SendMessageRequest struct {
	Content     string `json:"content" validate:"required,notblank,max=4000"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// ParticipantResponse is a user as the caller may see them
type ParticipantResponse struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	DisplayName string     `json:"display_name"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
	IsAnonymous bool       `json:"is_anonymous"`
}

// PostContextResponse is the post banner shown above a post-scoped chat
type PostContextResponse struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// RoomResponse is returned when a room is resolved
type RoomResponse struct {
	ID            uuid.UUID        `json:"id"`
	IsAnonymous   bool             `json:"is_anonymous"`
	RelatedPostID *uuid.UUID       `json:"related_post_id,omitempty"`
	Message       *MessageResponse `json:"message,omitempty"`
	PartnerLeft   bool             `json:"partner_left"`
	CreatedAt     string           `json:"created_at"`
}

// ConversationResponse represents a conversation list entry
type ConversationResponse struct {
	RoomID             uuid.UUID            `json:"room_id"`
	Partner            ParticipantResponse  `json:"partner"`
	SelfAnonymous      bool                 `json:"self_anonymous"`
	Post               *PostContextResponse `json:"post,omitempty"`
	LastMessagePreview string               `json:"last_message_preview"`
	LastMessageAt      string               `json:"last_message_at"`
	UnreadCount        int                  `json:"unread_count"`
}

// MessageResponse represents message in API
type MessageResponse struct {
	ID          uuid.UUID            `json:"id"`
	RoomID      uuid.UUID            `json:"room_id"`
	Content     string               `json:"content"`
	IsAnonymous bool                 `json:"is_anonymous"`
	Sender      *ParticipantResponse `json:"sender,omitempty"`
	IsRead      bool                 `json:"is_read"`
	IsMine      bool                 `json:"is_mine"` // Helper for client
	CreatedAt   string               `json:"created_at"`
}

// ChatWindowResponse for GET /chat/rooms/{id}/messages
type ChatWindowResponse struct {
	RoomID        uuid.UUID            `json:"room_id"`
	Partner       ParticipantResponse  `json:"partner"`
	SelfAnonymous bool                 `json:"self_anonymous"`
	PartnerLeft   bool                 `json:"partner_left"`
	Post          *PostContextResponse `json:"post,omitempty"`
	Messages      []*MessageResponse   `json:"messages"`
}

// PartnerStatusResponse for GET /chat/rooms/{id}/partner
type PartnerStatusResponse struct {
	PartnerLeft bool    `json:"partner_left"`
	LeftAt      *string `json:"left_at,omitempty"`
}

func participantResponse(p Participant) ParticipantResponse {
	resp := ParticipantResponse{
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		IsAnonymous: p.Disclosure.IsAnonymous(),
	}
	if !resp.IsAnonymous && p.UserID != uuid.Nil {
		id := p.UserID
		resp.ID = &id
	}
	return resp
}

func postContextResponse(post *PostInfo) *PostContextResponse {
	if post == nil {
		return nil
	}
	return &PostContextResponse{ID: post.ID, Title: post.Title}
}

// MessageResponseFromEntity converts a freshly sent message for its sender
func MessageResponseFromEntity(m *Message, currentUserID uuid.UUID) *MessageResponse {
	return &MessageResponse{
		ID:          m.ID,
		RoomID:      m.RoomID,
		Content:     m.Content,
		IsAnonymous: m.IsAnonymous,
		IsRead:      m.IsRead,
		IsMine:      m.SenderID == currentUserID,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
}

// MessageResponseFromView converts a rendered message
func MessageResponseFromView(v *MessageView) *MessageResponse {
	resp := MessageResponseFromEntity(v.Message, uuid.Nil)
	resp.IsMine = v.IsMine
	sender := participantResponse(v.Sender)
	resp.Sender = &sender
	return resp
}

// RoomResponseFromResult converts a resolved room
func RoomResponseFromResult(res *RoomResult, currentUserID uuid.UUID) *RoomResponse {
	resp := &RoomResponse{
		ID:          res.Room.ID,
		IsAnonymous: res.Room.Anonymous,
		CreatedAt:   res.Room.CreatedAt.Format(time.RFC3339),
	}
	if res.Room.RelatedPostID.Valid {
		id := res.Room.RelatedPostID.UUID
		resp.RelatedPostID = &id
	}
	if res.Sent != nil {
		resp.Message = MessageResponseFromEntity(res.Sent.Message, currentUserID)
		resp.PartnerLeft = res.Sent.PartnerLeft
	}
	return resp
}

// ConversationResponseFromEntity converts a conversation list entry
func ConversationResponseFromEntity(c *Conversation) *ConversationResponse {
	resp := &ConversationResponse{
		RoomID:             c.Room.ID,
		Partner:            participantResponse(c.Partner),
		SelfAnonymous:      c.SelfDefault.IsAnonymous(),
		Post:               postContextResponse(c.Post),
		LastMessagePreview: noMessagesPreview,
		LastMessageAt:      c.LastActivityAt.Format(time.RFC3339),
		UnreadCount:        c.UnreadCount,
	}
	if c.LastMessage != nil {
		resp.LastMessagePreview = truncatePreview(c.LastMessage.Content)
	}
	return resp
}

// ChatWindowResponseFromEntity converts a chat window
func ChatWindowResponseFromEntity(w *ChatWindow) *ChatWindowResponse {
	resp := &ChatWindowResponse{
		RoomID:        w.Room.ID,
		Partner:       participantResponse(w.Partner),
		SelfAnonymous: w.SelfDefault.IsAnonymous(),
		PartnerLeft:   w.PartnerLeft,
		Post:          postContextResponse(w.Post),
		Messages:      make([]*MessageResponse, len(w.Messages)),
	}
	for i, m := range w.Messages {
		resp.Messages[i] = MessageResponseFromView(m)
	}
	return resp
}

// truncatePreview limits a preview to 100 runes
func truncatePreview(s string) string {
	r := []rune(s)
	if len(r) > 100 {
		return string(r[:97]) + "..."
	}
	return s
}
