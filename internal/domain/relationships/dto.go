package relationships

import (
	"time"

	"github.com/google/uuid"
)

// BlockedUserResponse represents a blocked user in API response
type BlockedUserResponse struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	BlockedAt   string    `json:"blocked_at"`
}

// BlockRelationFromEntity converts entity to response
func BlockRelationFromEntity(block *BlockRelation, profile *UserProfile) *BlockedUserResponse {
	resp := &BlockedUserResponse{
		ID:          block.ID,
		UserID:      block.BlockedID,
		DisplayName: unknownDisplayName,
		BlockedAt:   block.CreatedAt.Format(time.RFC3339),
	}
	if profile != nil {
		if profile.DisplayName != "" {
			resp.DisplayName = profile.DisplayName
		}
		resp.AvatarURL = profile.AvatarURL
	}
	return resp
}
