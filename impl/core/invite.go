package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"evsync/entity"
	"evsync/lib/sl"

	"github.com/google/uuid"
)

// RedeemInvite validates a token and reserves one join slot on it.
// The reservation is a single conditional increment against storage, so two
// concurrent redemptions of a near-capacity token cannot both pass the
// bound. The increment is unconditional on the success path: there is no
// decrement if a later step fails. Tokens bound redemption attempts,
// participant rows stay exact.
func (c *Core) RedeemInvite(ctx context.Context, token string) (*entity.InviteToken, *entity.Event, error) {
	now := c.now()

	invite, err := c.db.FindValidInvite(ctx, token, now)
	if err != nil {
		return nil, nil, err
	}
	if invite == nil {
		return nil, nil, entity.ErrInviteInvalid
	}

	event, err := c.db.GetEvent(ctx, invite.EventSlug)
	if err != nil {
		return nil, nil, err
	}
	if event == nil {
		return nil, nil, entity.ErrEventNotFound
	}

	updated, err := c.db.IncrementRegistered(ctx, token, now, event.PassengerCount)
	if err != nil {
		return nil, nil, err
	}
	if updated == nil {
		// The conditional update matched nothing: either the token
		// expired between the two reads or the counter hit capacity.
		again, err := c.db.FindValidInvite(ctx, token, c.now())
		if err != nil {
			return nil, nil, err
		}
		if again == nil {
			return nil, nil, entity.ErrInviteInvalid
		}
		return nil, nil, entity.ErrCapacityExceeded
	}

	c.log.With(
		sl.Secret("token", token),
		slog.String("event", event.Slug),
		slog.Int("registered", updated.Registered),
		slog.Int("capacity", event.PassengerCount),
	).Debug("invite redeemed")

	return updated, event, nil
}

// JoinEvent composes redemption and registration: the ledger slot is
// reserved first, then the participant is created or returned. A repeated
// call with a still-valid token succeeds and still advances the redemption
// counter; Registered tracks token usage, not distinct participants.
func (c *Core) JoinEvent(ctx context.Context, token, email string) error {
	_, event, err := c.RedeemInvite(ctx, token)
	if err != nil {
		return err
	}
	_, err = c.JoinOrGet(ctx, event, email)
	if errors.Is(err, entity.ErrAlreadyJoined) {
		return nil
	}
	return err
}

// IssueInvite creates a fresh token for an event with the configured
// validity window. Only hosts and admins reach this through the API layer.
func (c *Core) IssueInvite(ctx context.Context, eventSlug, createdBy string) (*entity.InviteToken, error) {
	event, err := c.db.GetEvent(ctx, eventSlug)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, entity.ErrEventNotFound
	}

	ttl := 72 * time.Hour
	if c.conf != nil && c.conf.Invite.TTLHours > 0 {
		ttl = time.Duration(c.conf.Invite.TTLHours) * time.Hour
	}

	now := c.now()
	invite := &entity.InviteToken{
		Token:     uuid.New().String(),
		EventSlug: event.Slug,
		ExpiresAt: now.Add(ttl),
		CreatedBy: createdBy,
		CreatedAt: now,
	}
	if err := c.db.CreateInvite(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}
