// Package core orchestrates the event coordination workflows: invite
// redemption, participant registration, event requests, and equity
// payments. Storage and notification delivery are injected as capability
// interfaces so the package has no opinion about drivers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"evsync/entity"
	"evsync/internal/config"
	"evsync/internal/stripeclient"
	"evsync/lib/sl"
)

// Store interfaces are split along the external contracts; all absent rows
// come back as (nil, nil) and the core decides what absence means.

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
	SaveUser(ctx context.Context, user *entity.User) error
}

type EventStore interface {
	GetEvent(ctx context.Context, slug string) (*entity.Event, error)
	SaveEvent(ctx context.Context, event *entity.Event) error
}

type InviteStore interface {
	FindValidInvite(ctx context.Context, token string, now time.Time) (*entity.InviteToken, error)
	// IncrementRegistered performs the atomic compare-and-increment:
	// it must match only while the token is unexpired and below capacity,
	// and return (nil, nil) otherwise.
	IncrementRegistered(ctx context.Context, token string, now time.Time, capacity int) (*entity.InviteToken, error)
	CreateInvite(ctx context.Context, invite *entity.InviteToken) error
}

type ParticipantStore interface {
	GetParticipant(ctx context.Context, eventSlug, email string) (*entity.Participant, error)
	GetParticipantById(ctx context.Context, participantId string) (*entity.Participant, error)
	// CreateParticipant must be backed by a unique (event_slug, email)
	// constraint and return entity.ErrConflict on violation.
	CreateParticipant(ctx context.Context, participant *entity.Participant) error
	LinkParticipantUser(ctx context.Context, participantId, userId string) error
	ParticipantsForEvent(ctx context.Context, eventSlug string) ([]*entity.Participant, error)
	SetPaymentStatus(ctx context.Context, participantId string, status entity.PaymentStatus) error
}

type RequestStore interface {
	GetEventRequest(ctx context.Context, slug string) (*entity.EventRequest, error)
	CreateEventRequest(ctx context.Context, request *entity.EventRequest) error
	DeleteEventRequest(ctx context.Context, slug string) error
}

type Database interface {
	UserStore
	EventStore
	InviteStore
	ParticipantStore
	RequestStore
}

type AuthService interface {
	UserByToken(ctx context.Context, token string) (*entity.User, error)
}

// Notifier delivers a notification to recipients. Implementations must not
// propagate delivery failures; the core calls Send from a goroutine and
// never waits for it.
type Notifier interface {
	Send(n *entity.Notification, recipients []*entity.User)
}

// Directory is an optional read-only lookup into the legacy CRM, used to
// resolve display names for invited emails that have no account yet.
type Directory interface {
	ClientName(ctx context.Context, email string) (string, error)
}

type Core struct {
	db       Database
	conf     *config.Config
	sc       *stripeclient.StripeClient
	auth     AuthService
	notifier Notifier
	dir      Directory
	now      func() time.Time
	log      *slog.Logger
}

func New(conf *config.Config, db Database, log *slog.Logger) *Core {
	if db == nil {
		panic("database is nil")
	}
	return &Core{
		db:   db,
		conf: conf,
		now:  time.Now,
		log:  log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetNotifier(notifier Notifier) {
	c.notifier = notifier
}

func (c *Core) SetStripeClient(sc *stripeclient.StripeClient) {
	c.sc = sc
}

func (c *Core) SetDirectory(dir Directory) {
	c.dir = dir
}

func (c *Core) AuthenticateByToken(ctx context.Context, token string) (*entity.User, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.UserByToken(ctx, token)
}

func (c *Core) Event(ctx context.Context, slug string) (*entity.Event, error) {
	event, err := c.db.GetEvent(ctx, slug)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, entity.ErrEventNotFound
	}
	return event, nil
}

// notify dispatches after the transactional state change has committed.
// It runs detached with its own deadline so a slow gateway can neither
// block nor fail the caller's business operation.
func (c *Core) notify(n *entity.Notification, recipients []*entity.User) {
	if c.notifier == nil || len(recipients) == 0 {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("notification dispatch panicked", slog.Any("panic", r))
			}
		}()
		c.notifier.Send(n, recipients)
	}()
}
