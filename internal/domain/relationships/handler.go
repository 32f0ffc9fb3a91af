package relationships

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/boardhub/boardhub-api/internal/middleware"
	"github.com/boardhub/boardhub-api/internal/pkg/errorhandler"
	"github.com/boardhub/boardhub-api/internal/pkg/response"
)

const unknownDisplayName = "Unknown"

// ProfileFetcher interface to retrieve user details
type ProfileFetcher interface {
	GetUserProfile(ctx context.Context, userID uuid.UUID) (*UserProfile, error)
}

// UserProfile represents user profile data
type UserProfile struct {
	ID          uuid.UUID
	DisplayName string
	AvatarURL   *string
}

// Handler handles relationship HTTP requests
type Handler struct {
	service        *Service
	profileFetcher ProfileFetcher
}

// NewHandler creates relationship handler
func NewHandler(service *Service, profileFetcher ProfileFetcher) *Handler {
	return &Handler{
		service:        service,
		profileFetcher: profileFetcher,
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrCannotBlockSelf):
		response.BadRequest(w, "Cannot block yourself")
	case errors.Is(err, ErrAlreadyBlocked):
		response.Conflict(w, "User is already blocked")
	case errors.Is(err, ErrNotBlocked):
		response.NotFound(w, "User is not blocked")
	case errors.Is(err, ErrStoreUnavailable):
		errorhandler.HandleError(r.Context(), w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Blocking is temporarily unavailable", err)
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", err)
	}
}

// BlockUser handles POST /users/{id}/block
// @Summary Заблокировать пользователя
// @Description Заблокированный пользователь не сможет начать диалог или отправить сообщение.
// @Tags Relationships
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя для блокировки"
// @Success 200 {object} response.Response
// @Failure 400,409,503 {object} response.Response
// @Router /users/{id}/block [post]
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	targetUserID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.service.BlockUser(r.Context(), userID, targetUserID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}

// UnblockUser handles DELETE /users/{id}/block
// @Summary Разблокировать пользователя
// @Tags Relationships
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя для разблокировки"
// @Success 200 {object} response.Response
// @Failure 400,404,503 {object} response.Response
// @Router /users/{id}/block [delete]
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	targetUserID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.service.UnblockUser(r.Context(), userID, targetUserID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}

// ListBlocked handles GET /users/me/blocked
// @Summary Список заблокированных пользователей
// @Tags Relationships
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]BlockedUserResponse}
// @Failure 503 {object} response.Response
// @Router /users/me/blocked [get]
func (h *Handler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	blocks, err := h.service.ListMyBlocks(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]*BlockedUserResponse, 0, len(blocks))
	for _, block := range blocks {
		items = append(items, BlockRelationFromEntity(block, h.fetchProfile(r.Context(), block.BlockedID)))
	}

	response.OK(w, items)
}

func (h *Handler) fetchProfile(ctx context.Context, userID uuid.UUID) *UserProfile {
	if h.profileFetcher == nil {
		return nil
	}
	profile, err := h.profileFetcher.GetUserProfile(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Profile lookup failed for blocked user")
		return nil
	}
	return profile
}
