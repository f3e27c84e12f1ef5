package join

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"evsync/entity"
	"evsync/lib/api/cont"
	"evsync/lib/api/response"
	"evsync/lib/sl"
)

type Core interface {
	JoinEvent(ctx context.Context, token, email string) error
}

// Event redeems an invite token for the authenticated caller.
func Event(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.join")
		token := chi.URLParam(r, "token")
		user := cont.GetUser(r.Context())

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Secret("token", token),
			slog.String("email", user.Email),
		)

		if handler == nil {
			logger.Error("join service not available")
			render.JSON(w, r, response.Error("Join service not available"))
			return
		}
		if token == "" {
			render.Status(r, 400)
			render.JSON(w, r, response.Error("Missing invite token"))
			return
		}

		err := handler.JoinEvent(r.Context(), token, user.Email)
		if err != nil {
			logger.Warn("join event", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("joined event")

		render.JSON(w, r, response.Ok(nil))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInviteInvalid):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrInvalidEquityDivision):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrCapacityExceeded):
		return http.StatusConflict
	case errors.Is(err, entity.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
