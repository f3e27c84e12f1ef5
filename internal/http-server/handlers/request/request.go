package request

import (
	"context"
	"errors"
	"fmt"
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
	RequestEvent(ctx context.Context, req *entity.EventRequest, hostEmail string) (*entity.EventRequest, error)
	EventRequest(ctx context.Context, requestSlug string) (*entity.EventRequest, error)
	DeleteEventRequest(ctx context.Context, requestSlug string) error
}

// Create accepts a new event request from the authenticated host.
func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.request")
		user := cont.GetUser(r.Context())

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("host", user.Email),
		)

		if handler == nil {
			logger.Error("request service not available")
			render.JSON(w, r, response.Error("Request service not available"))
			return
		}

		var req entity.EventRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Warn("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(
			slog.String("client", req.ClientName),
			slog.Int("passengers", req.PassengerCount),
		)

		created, err := handler.RequestEvent(r.Context(), &req, user.Email)
		if err != nil {
			logger.Error("create event request", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.With(slog.String("slug", created.Slug)).Info("event request created")

		render.JSON(w, r, response.Ok(created))
	}
}

// Delete soft-deletes a pending request owned by the caller.
func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.request")
		requestSlug := chi.URLParam(r, "slug")
		user := cont.GetUser(r.Context())

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("slug", requestSlug),
			slog.String("email", user.Email),
		)

		if handler == nil {
			logger.Error("request service not available")
			render.JSON(w, r, response.Error("Request service not available"))
			return
		}

		req, err := handler.EventRequest(r.Context(), requestSlug)
		if err != nil {
			logger.Warn("get event request", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		if req.Host != user.Email && !user.IsAdmin() {
			logger.Warn("delete denied: not host or admin")
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("Only the host can delete the request"))
			return
		}

		if err := handler.DeleteEventRequest(r.Context(), requestSlug); err != nil {
			logger.Warn("delete event request", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Info("event request deleted")

		render.JSON(w, r, response.Ok(nil))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidEquityDivision):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrAdminNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
