package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"evsync/entity"
	"evsync/lib/slug"

	"github.com/google/uuid"
)

const slugAttempts = 3

// RequestEvent creates a pending event request on behalf of the host and
// notifies the administrator account. A missing administrator is a fatal
// misconfiguration and aborts before anything is persisted.
func (c *Core) RequestEvent(ctx context.Context, req *entity.EventRequest, hostEmail string) (*entity.EventRequest, error) {
	admin, err := c.admin(ctx)
	if err != nil {
		return nil, err
	}

	// Guards the allocator's precondition before the request can ever
	// become an event.
	if req.EquityDivision < 1 {
		return nil, entity.ErrInvalidEquityDivision
	}

	now := c.now()
	req.Id = uuid.New().String()
	req.Host = hostEmail
	req.Status = entity.RequestPending
	req.Participants = seedParticipants(hostEmail, req.Cohosts)
	req.CreatedAt = now
	req.UpdatedAt = now

	base := slug.Make(req.ClientName)
	if base == "" {
		base = "event"
	}
	req.Slug = base

	for attempt := 0; attempt < slugAttempts; attempt++ {
		err = c.db.CreateEventRequest(ctx, req)
		if !errors.Is(err, entity.ErrConflict) {
			break
		}
		req.Slug = slug.Disambiguate(base)
	}
	if err != nil {
		return nil, fmt.Errorf("create event request: %w", err)
	}

	c.log.With(
		slog.String("slug", req.Slug),
		slog.String("host", hostEmail),
		slog.String("client", req.ClientName),
	).Info("event requested")

	c.notify(&entity.Notification{
		Title:     "New Event Request",
		Message:   fmt.Sprintf("%s has requested an event (%s) for approval.", req.ClientName, req.Slug),
		EmitEvent: entity.KindEventRequest,
		EventSlug: req.Slug,
		Metadata: map[string]interface{}{
			"slug":       req.Slug,
			"id":         req.Id,
			"created_at": req.CreatedAt,
			"created_by": hostEmail,
		},
		CreatedAt: now,
	}, []*entity.User{admin})

	return req, nil
}

// EventRequest returns a pending request by slug; soft-deleted requests
// read as absent.
func (c *Core) EventRequest(ctx context.Context, requestSlug string) (*entity.EventRequest, error) {
	req, err := c.db.GetEventRequest(ctx, requestSlug)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, entity.ErrEventNotFound
	}
	return req, nil
}

// DeleteEventRequest soft-deletes a pending request. The API layer verifies
// the caller is the host or an admin before calling this.
func (c *Core) DeleteEventRequest(ctx context.Context, requestSlug string) error {
	req, err := c.db.GetEventRequest(ctx, requestSlug)
	if err != nil {
		return err
	}
	if req == nil {
		return entity.ErrEventNotFound
	}
	return c.db.DeleteEventRequest(ctx, requestSlug)
}

func (c *Core) admin(ctx context.Context) (*entity.User, error) {
	if c.conf == nil || c.conf.AdminEmail == "" {
		return nil, entity.ErrAdminNotConfigured
	}
	admin, err := c.db.GetUserByEmail(ctx, c.conf.AdminEmail)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, entity.ErrAdminNotConfigured
	}
	return admin, nil
}

// seedParticipants builds the initial participants list as host + cohosts,
// dropping duplicates and a cohost equal to the host.
func seedParticipants(host string, cohosts []string) []string {
	seen := map[string]bool{host: true}
	participants := []string{host}
	for _, email := range cohosts {
		if seen[email] {
			continue
		}
		seen[email] = true
		participants = append(participants, email)
	}
	return participants
}
