package errorhandler

import (
	"context"
	"net/http"

	"github.com/boardhub/boardhub-api/internal/pkg/logger"
	"github.com/boardhub/boardhub-api/internal/pkg/response"
)

// HandleError logs the failure with the request id and sends an error
// response. The underlying error is never sent to the client.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	event := logger.FromContext(ctx).Error().
		Str("error_code", code).
		Int("status_code", status)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(message)

	response.ErrorWithInfo(w, status, response.ErrorInfo{
		Code:      code,
		Message:   message,
		RequestID: logger.RequestIDFromContext(ctx),
	})
}

// HandlePanicError logs a recovered panic with its stack
func HandlePanicError(ctx context.Context, w http.ResponseWriter, panicErr interface{}, stackTrace string) {
	logger.FromContext(ctx).Error().
		Interface("panic_error", panicErr).
		Str("panic_stack", stackTrace).
		Msg("Request panic error")

	response.ErrorWithInfo(w, http.StatusInternalServerError, response.ErrorInfo{
		Code:      "INTERNAL_ERROR",
		Message:   "An unexpected error occurred",
		RequestID: logger.RequestIDFromContext(ctx),
	})
}

// LogValidationError logs rejected request fields
func LogValidationError(ctx context.Context, fieldErrors map[string]string) {
	logger.FromContext(ctx).Warn().
		Interface("validation_errors", fieldErrors).
		Msg("Validation error")
}
