package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"evsync/internal/config"
	"evsync/internal/http-server/handlers/errors"
	"evsync/internal/http-server/handlers/event"
	"evsync/internal/http-server/handlers/join"
	"evsync/internal/http-server/handlers/payment"
	"evsync/internal/http-server/handlers/request"
	"evsync/internal/http-server/handlers/stripehandler"
	"evsync/internal/http-server/middleware/authenticate"
	"evsync/internal/http-server/middleware/timeout"
	"evsync/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	join.Core
	request.Core
	event.Core
	payment.Core
	stripehandler.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))
		rootApi.Route("/event", func(ev chi.Router) {
			ev.Post("/request", request.Create(log, handler))
			ev.Delete("/request/{slug}", request.Delete(log, handler))
			ev.Post("/join/{token}", join.Event(log, handler))
			ev.Get("/{slug}", event.Get(log, handler))
			ev.Get("/{slug}/participants", event.Participants(log, handler))
			ev.Post("/{slug}/invite", event.Invite(log, handler))
		})
		rootApi.Route("/pay", func(pay chi.Router) {
			pay.Post("/equity/{id}", payment.Equity(log, handler))
		})
	})
	router.Route("/webhook", func(rootWH chi.Router) {
		rootWH.Post("/event", stripehandler.Event(log, handler))
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
