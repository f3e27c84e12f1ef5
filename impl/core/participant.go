package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"evsync/entity"
	"evsync/impl/equity"
	"evsync/lib/sl"

	"github.com/google/uuid"
)

// JoinOrGet returns the participant for (event, email), creating it on
// first join. The (event_slug, email) pair is unique; a concurrent create
// that loses the unique-index race is recovered by re-reading, which turns
// the race into the idempotent path.
//
// The idempotent path returns the existing row together with
// entity.ErrAlreadyJoined so callers can tell re-entry from a first join;
// JoinEvent treats it as success. It re-links the user reference when the
// email has registered since the original pre-registration invite, and
// emits no notification and no equity recomputation.
func (c *Core) JoinOrGet(ctx context.Context, event *entity.Event, email string) (*entity.Participant, error) {
	existing, err := c.db.GetParticipant(ctx, event.Slug, email)
	if err != nil {
		return nil, err
	}

	user, err := c.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.UserId == "" && user != nil {
			if err := c.db.LinkParticipantUser(ctx, existing.Id, user.Id); err != nil {
				return nil, err
			}
			existing.UserId = user.Id
		}
		return existing, entity.ErrAlreadyJoined
	}

	role := entity.RoleMember
	if email == event.Host {
		role = entity.RoleHost
	}

	amount, err := equity.Allocate(event, role)
	if err != nil {
		return nil, fmt.Errorf("allocate equity for %s: %w", event.Slug, err)
	}

	now := c.now()
	participant := &entity.Participant{
		Id:            uuid.New().String(),
		EventSlug:     event.Slug,
		Email:         email,
		Role:          role,
		EquityAmount:  amount,
		PaymentStatus: entity.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if user != nil {
		participant.UserId = user.Id
	}

	err = c.db.CreateParticipant(ctx, participant)
	if errors.Is(err, entity.ErrConflict) {
		// Lost the insert race; the winner's row is the participant.
		again, readErr := c.db.GetParticipant(ctx, event.Slug, email)
		if readErr != nil {
			return nil, readErr
		}
		if again != nil {
			return again, entity.ErrAlreadyJoined
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	c.log.With(
		slog.String("event", event.Slug),
		slog.String("email", email),
		slog.String("role", string(role)),
		slog.Int64("equity", amount),
	).Info("participant joined")

	c.announceParticipant(ctx, event, participant, user)

	return participant, nil
}

// announceParticipant fans out the "new participant" notification to the
// event's subscribers. Runs after the row is committed; failures are logged
// by the gateway and never reach the join caller.
func (c *Core) announceParticipant(ctx context.Context, event *entity.Event, p *entity.Participant, user *entity.User) {
	name := c.displayName(ctx, p.Email, user)

	n := &entity.Notification{
		Title:     "New Participant",
		Message:   fmt.Sprintf("%s has joined as a %s to the event (%s).", name, p.Role, event.Slug),
		EmitEvent: entity.KindNewParticipant,
		EventSlug: event.Slug,
		Metadata: map[string]interface{}{
			"id":         p.Id,
			"role":       string(p.Role),
			"created_at": p.CreatedAt,
		},
		CreatedAt: c.now(),
	}

	recipients, err := c.eventSubscribers(ctx, event.Slug)
	if err != nil {
		c.log.With(slog.String("event", event.Slug)).Warn("resolve subscribers", sl.Err(err))
		return
	}
	c.notify(n, recipients)
}

// eventSubscribers resolves the registered users behind an event's
// participant rows; unregistered emails are skipped.
func (c *Core) eventSubscribers(ctx context.Context, eventSlug string) ([]*entity.User, error) {
	participants, err := c.db.ParticipantsForEvent(ctx, eventSlug)
	if err != nil {
		return nil, err
	}
	var users []*entity.User
	for _, p := range participants {
		user, err := c.db.GetUserByEmail(ctx, p.Email)
		if err != nil {
			return nil, err
		}
		if user != nil {
			users = append(users, user)
		}
	}
	return users, nil
}

// displayName prefers the registered account name, falls back to the legacy
// CRM directory, then to the raw email.
func (c *Core) displayName(ctx context.Context, email string, user *entity.User) string {
	if user != nil && user.FullName != "" {
		return user.FullName
	}
	if c.dir != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if name, err := c.dir.ClientName(lookupCtx, email); err == nil && name != "" {
			return name
		}
	}
	return email
}

func (c *Core) EventParticipants(ctx context.Context, eventSlug string) ([]*entity.Participant, error) {
	event, err := c.db.GetEvent(ctx, eventSlug)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, entity.ErrEventNotFound
	}
	return c.db.ParticipantsForEvent(ctx, eventSlug)
}
