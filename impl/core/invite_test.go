package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"evsync/entity"
)

var fixedNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func seedEvent(db *fakeDB, slug string, capacity int) *entity.Event {
	event := &entity.Event{
		Slug:           slug,
		Name:           "Test Event",
		Host:           "host@x.com",
		PassengerCount: capacity,
		PendingAmount:  9000,
		DepositAmount:  2500,
		EquityDivision: 3,
		EventStatus:    entity.EventUpcoming,
	}
	_ = db.SaveEvent(context.Background(), event)
	return event
}

func seedInvite(db *fakeDB, token, eventSlug string, expiresAt time.Time) {
	_ = db.CreateInvite(context.Background(), &entity.InviteToken{
		Token:     token,
		EventSlug: eventSlug,
		ExpiresAt: expiresAt,
	})
}

func TestRedeemInviteSuccess(t *testing.T) {
	db := newFakeDB()
	seedEvent(db, "gala", 4)
	seedInvite(db, "tok-1", "gala", fixedNow.Add(time.Hour))
	c := newTestCore(db, nil, fixedNow)

	invite, event, err := c.RedeemInvite(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if invite.Registered != 1 {
		t.Fatalf("expected registered 1, got %d", invite.Registered)
	}
	if event.Slug != "gala" {
		t.Fatalf("expected event gala, got %q", event.Slug)
	}
}

func TestRedeemInviteUnknownToken(t *testing.T) {
	db := newFakeDB()
	seedEvent(db, "gala", 4)
	c := newTestCore(db, nil, fixedNow)

	_, _, err := c.RedeemInvite(context.Background(), "missing")
	if !errors.Is(err, entity.ErrInviteInvalid) {
		t.Fatalf("expected ErrInviteInvalid, got %v", err)
	}
}

func TestRedeemInviteExpiryBoundary(t *testing.T) {
	db := newFakeDB()
	seedEvent(db, "gala", 4)
	// expires_at == now counts as expired
	seedInvite(db, "tok-exact", "gala", fixedNow)
	seedInvite(db, "tok-next", "gala", fixedNow.Add(time.Second))
	c := newTestCore(db, nil, fixedNow)

	_, _, err := c.RedeemInvite(context.Background(), "tok-exact")
	if !errors.Is(err, entity.ErrInviteInvalid) {
		t.Fatalf("expected ErrInviteInvalid at exact expiry, got %v", err)
	}

	if _, _, err = c.RedeemInvite(context.Background(), "tok-next"); err != nil {
		t.Fatalf("one second before expiry should redeem: %v", err)
	}
}

func TestRedeemInviteEventGone(t *testing.T) {
	db := newFakeDB()
	seedInvite(db, "tok-1", "vanished", fixedNow.Add(time.Hour))
	c := newTestCore(db, nil, fixedNow)

	_, _, err := c.RedeemInvite(context.Background(), "tok-1")
	if !errors.Is(err, entity.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestRedeemInviteCapacityExhausted(t *testing.T) {
	db := newFakeDB()
	seedEvent(db, "gala", 2)
	seedInvite(db, "tok-1", "gala", fixedNow.Add(time.Hour))
	c := newTestCore(db, nil, fixedNow)

	for i := 0; i < 2; i++ {
		if _, _, err := c.RedeemInvite(context.Background(), "tok-1"); err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
	}

	_, _, err := c.RedeemInvite(context.Background(), "tok-1")
	if !errors.Is(err, entity.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if got := db.registered("tok-1"); got != 2 {
		t.Fatalf("rejected redemption must not advance counter: registered %d", got)
	}
}

func TestRedeemInviteConcurrentNearCapacity(t *testing.T) {
	db := newFakeDB()
	seedEvent(db, "gala", 5)
	seedInvite(db, "tok-1", "gala", fixedNow.Add(time.Hour))
	c := newTestCore(db, nil, fixedNow)

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.RedeemInvite(context.Background(), "tok-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, entity.ErrCapacityExceeded) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 5 {
		t.Fatalf("expected exactly 5 redemptions to pass, got %d", succeeded)
	}
	if got := db.registered("tok-1"); got != 5 {
		t.Fatalf("expected registered 5, got %d", got)
	}
}

func TestIssueInvite(t *testing.T) {
	db := newFakeDB()
	seedEvent(db, "gala", 4)
	c := newTestCore(db, nil, fixedNow)

	invite, err := c.IssueInvite(context.Background(), "gala", "host@x.com")
	if err != nil {
		t.Fatalf("issue invite: %v", err)
	}
	if invite.Token == "" {
		t.Fatal("expected a token")
	}
	if invite.EventSlug != "gala" {
		t.Fatalf("expected event gala, got %q", invite.EventSlug)
	}
	if want := fixedNow.Add(72 * time.Hour); !invite.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, invite.ExpiresAt)
	}

	if _, err = c.IssueInvite(context.Background(), "nope", "host@x.com"); !errors.Is(err, entity.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}
