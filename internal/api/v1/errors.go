package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/auth"
	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/giveaway"
	"github.com/gosuda/shopdesk/internal/storage"
)

// apiError turns a service or repository error into a problem response whose
// detail is safe to show the operator as a toast. what names the thing being
// worked on, e.g. "order". Unknown errors are logged and reported as 500 with
// a generic message so SQL text never reaches the client.
func apiError(ctx context.Context, err error, what string) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return huma.Error422UnprocessableEntity(verr.Field + " " + verr.Message)
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(what + " not found")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(what + " conflicts with an existing record or is still in use")
	case errors.Is(err, domain.ErrInvalidTransition):
		return huma.Error409Conflict(what + " cannot be changed from its current status")
	case errors.Is(err, domain.ErrInsufficientStock):
		return huma.Error409Conflict("not enough stock")
	case errors.Is(err, domain.ErrLimitExceeded):
		return huma.NewError(http.StatusPaymentRequired, limitDetail(err))
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden("insufficient permissions")
	case errors.Is(err, domain.ErrUnauthorized):
		return huma.Error401Unauthorized("authentication required")
	case errors.Is(err, giveaway.ErrEmptyPool):
		return huma.Error422UnprocessableEntity("no verified entries to draw from")
	case errors.Is(err, giveaway.ErrTooFewEntrants):
		return huma.Error422UnprocessableEntity("fewer verified entrants than prizes")
	case errors.Is(err, giveaway.ErrAttemptsExhausted):
		return huma.Error409Conflict("could not pick distinct winners, try again")
	case errors.Is(err, storage.ErrDisabled):
		return huma.Error503ServiceUnavailable("file storage is not configured")
	case errors.Is(err, auth.ErrInvalidRole):
		return huma.Error422UnprocessableEntity("role is not valid")
	case errors.Is(err, domain.ErrValidation):
		return huma.Error422UnprocessableEntity(what + " is not valid")
	}

	log.Error().Err(err).Str("request_id", chimw.GetReqID(ctx)).Str("resource", what).Msg("request failed")
	return huma.Error500InternalServerError("failed to process " + what)
}

// limitDetail surfaces the plan message, e.g. "Starter plan allows 50 products".
func limitDetail(err error) string {
	var le *domain.LimitError
	if errors.As(err, &le) {
		return le.Message
	}
	return "your plan does not allow this"
}
