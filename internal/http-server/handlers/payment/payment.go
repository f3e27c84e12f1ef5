package payment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"evsync/entity"
	"evsync/lib/api/response"
	"evsync/lib/sl"
)

type Core interface {
	EquityPaymentLink(ctx context.Context, participantId string) (*entity.Payment, error)
}

// Equity creates a checkout link for a participant's outstanding equity
// share.
func Equity(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.payment")
		participantId := chi.URLParam(r, "id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("participant_id", participantId),
		)

		if handler == nil {
			logger.Error("stripe service not available")
			render.JSON(w, r, response.Error("Stripe service not available"))
			return
		}

		pm, err := handler.EquityPaymentLink(r.Context(), participantId)
		if err != nil {
			logger.Error("get payment link", sl.Err(err))
			status := http.StatusBadRequest
			if errors.Is(err, entity.ErrEventNotFound) {
				status = http.StatusNotFound
			}
			render.Status(r, status)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("equity payment link created")

		render.JSON(w, r, response.Ok(pm))
	}
}
