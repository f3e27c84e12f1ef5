package event

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
	EventParticipants(ctx context.Context, eventSlug string) ([]*entity.Participant, error)
	IssueInvite(ctx context.Context, eventSlug, createdBy string) (*entity.InviteToken, error)
	Event(ctx context.Context, eventSlug string) (*entity.Event, error)
}

// Get returns the event document.
func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.event")
		eventSlug := chi.URLParam(r, "slug")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("slug", eventSlug),
		)

		ev, err := handler.Event(r.Context(), eventSlug)
		if err != nil {
			logger.Warn("get event", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		render.JSON(w, r, response.Ok(ev))
	}
}

// Participants lists an event's participants with roles and equity shares.
func Participants(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.event")
		eventSlug := chi.URLParam(r, "slug")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("slug", eventSlug),
		)

		participants, err := handler.EventParticipants(r.Context(), eventSlug)
		if err != nil {
			logger.Warn("list participants", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		render.JSON(w, r, response.Ok(participants))
	}
}

// Invite issues a fresh invite token; hosts and admins only.
func Invite(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.event")
		eventSlug := chi.URLParam(r, "slug")
		user := cont.GetUser(r.Context())

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("slug", eventSlug),
			slog.String("email", user.Email),
		)

		ev, err := handler.Event(r.Context(), eventSlug)
		if err != nil {
			logger.Warn("get event", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		if ev.Host != user.Email && !user.IsAdmin() {
			logger.Warn("invite denied: not host or admin")
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("Only the host can issue invites"))
			return
		}

		invite, err := handler.IssueInvite(r.Context(), eventSlug, user.Email)
		if err != nil {
			logger.Error("issue invite", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Info("invite issued")

		render.JSON(w, r, response.Ok(invite))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
