package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"evsync/entity"
)

func seedUser(db *fakeDB, id, email string) *entity.User {
	user := &entity.User{Id: id, Email: email, Token: "tok-" + id}
	_ = db.SaveUser(context.Background(), user)
	return user
}

func TestJoinOrGetCreatesMember(t *testing.T) {
	db := newFakeDB()
	event := seedEvent(db, "gala", 4)
	seedUser(db, "user-1", "member@x.com")
	notifier := &fakeNotifier{}
	c := newTestCore(db, notifier, fixedNow)

	p, err := c.JoinOrGet(context.Background(), event, "member@x.com")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if p.Role != entity.RoleMember {
		t.Fatalf("expected member role, got %q", p.Role)
	}
	if p.EquityAmount != 3000 { // 9000 / 3
		t.Fatalf("expected equity 3000, got %d", p.EquityAmount)
	}
	if p.PaymentStatus != entity.PaymentPending {
		t.Fatalf("expected pending payment, got %q", p.PaymentStatus)
	}
	waitNotifications(t, notifier, 1)
	if got := notifier.last().notification.EmitEvent; got != entity.KindNewParticipant {
		t.Fatalf("expected new_participant notification, got %q", got)
	}
}

func TestJoinOrGetHostGetsDeposit(t *testing.T) {
	db := newFakeDB()
	event := seedEvent(db, "gala", 4)
	c := newTestCore(db, nil, fixedNow)

	p, err := c.JoinOrGet(context.Background(), event, "host@x.com")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if p.Role != entity.RoleHost {
		t.Fatalf("expected host role, got %q", p.Role)
	}
	if p.EquityAmount != event.DepositAmount {
		t.Fatalf("expected equity %d, got %d", event.DepositAmount, p.EquityAmount)
	}
}

func TestJoinOrGetIdempotent(t *testing.T) {
	db := newFakeDB()
	event := seedEvent(db, "gala", 4)
	seedUser(db, "user-1", "member@x.com")
	notifier := &fakeNotifier{}
	c := newTestCore(db, notifier, fixedNow)

	first, err := c.JoinOrGet(context.Background(), event, "member@x.com")
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	waitNotifications(t, notifier, 1)

	second, err := c.JoinOrGet(context.Background(), event, "member@x.com")
	if !errors.Is(err, entity.ErrAlreadyJoined) {
		t.Fatalf("re-entry must signal ErrAlreadyJoined, got %v", err)
	}
	if second.Id != first.Id {
		t.Fatalf("expected the same participant, got %q and %q", first.Id, second.Id)
	}
	// the idempotent path must not notify again
	waitNotifications(t, notifier, 1)
	if count := db.participantCount("gala"); count != 1 {
		t.Fatalf("expected 1 participant, got %d", count)
	}
}

func TestJoinOrGetRelinksRegisteredUser(t *testing.T) {
	db := newFakeDB()
	event := seedEvent(db, "gala", 4)
	c := newTestCore(db, nil, fixedNow)

	p, err := c.JoinOrGet(context.Background(), event, "late@x.com")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if p.UserId != "" {
		t.Fatalf("expected unlinked participant, got user %q", p.UserId)
	}

	// the email registers afterwards
	_ = db.SaveUser(context.Background(), &entity.User{
		Id:    "user-9",
		Email: "late@x.com",
		Token: "tok",
	})

	again, err := c.JoinOrGet(context.Background(), event, "late@x.com")
	if !errors.Is(err, entity.ErrAlreadyJoined) {
		t.Fatalf("re-entry must signal ErrAlreadyJoined, got %v", err)
	}
	if again.UserId != "user-9" {
		t.Fatalf("expected re-linked user user-9, got %q", again.UserId)
	}
}

func TestJoinOrGetConcurrentSameEmail(t *testing.T) {
	db := newFakeDB()
	seedEvent(db, "gala", 100)
	seedInvite(db, "tok-1", "gala", fixedNow.Add(time.Hour))
	seedUser(db, "user-1", "same@x.com")
	notifier := &fakeNotifier{}
	c := newTestCore(db, notifier, fixedNow)

	const joins = 10
	var wg sync.WaitGroup
	errs := make(chan error, joins)
	for i := 0; i < joins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.JoinEvent(context.Background(), "tok-1", "same@x.com")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}

	if count := db.participantCount("gala"); count != 1 {
		t.Fatalf("expected exactly 1 participant, got %d", count)
	}
	// every valid token use counts, distinct participants do not
	if got := db.registered("tok-1"); got != joins {
		t.Fatalf("expected registered %d, got %d", joins, got)
	}
	waitNotifications(t, notifier, 1)
}

func TestJoinEventEndToEnd(t *testing.T) {
	db := newFakeDB()
	event := seedEvent(db, "gala", 2)
	seedInvite(db, "tok-1", "gala", fixedNow.Add(time.Hour))
	c := newTestCore(db, &fakeNotifier{}, fixedNow)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, email := range []string{"a@x.com", "b@x.com"} {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			errs <- c.JoinEvent(context.Background(), "tok-1", email)
		}(email)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}
	if got := db.registered("tok-1"); got != 2 {
		t.Fatalf("expected registered 2, got %d", got)
	}

	wantShare := event.PendingAmount / event.EquityDivision
	for _, email := range []string{"a@x.com", "b@x.com"} {
		p, err := db.GetParticipant(context.Background(), "gala", email)
		if err != nil || p == nil {
			t.Fatalf("participant %s missing: %v", email, err)
		}
		if p.Role != entity.RoleMember {
			t.Fatalf("%s: expected member, got %q", email, p.Role)
		}
		if p.EquityAmount != wantShare {
			t.Fatalf("%s: expected equity %d, got %d", email, wantShare, p.EquityAmount)
		}
	}

	err := c.JoinEvent(context.Background(), "tok-1", "c@x.com")
	if !errors.Is(err, entity.ErrCapacityExceeded) {
		t.Fatalf("third join should hit the capacity bound, got %v", err)
	}
}

func TestJoinOrGetRecoversLostInsertRace(t *testing.T) {
	db := newFakeDB()
	event := seedEvent(db, "gala", 4)
	c := newTestCore(db, nil, fixedNow)

	// a competing writer sneaks the row in under us
	c.db = &racingDB{fakeDB: db}

	p, err := c.JoinOrGet(context.Background(), event, "raced@x.com")
	if !errors.Is(err, entity.ErrAlreadyJoined) {
		t.Fatalf("recovered conflict must signal ErrAlreadyJoined, got %v", err)
	}
	if p.Id != "winner" {
		t.Fatalf("expected the winner's row, got %q", p.Id)
	}
}

func TestJoinEventRepeatedCallSucceeds(t *testing.T) {
	db := newFakeDB()
	seedEvent(db, "gala", 4)
	seedInvite(db, "tok-1", "gala", fixedNow.Add(time.Hour))
	c := newTestCore(db, nil, fixedNow)

	for i := 0; i < 2; i++ {
		if err := c.JoinEvent(context.Background(), "tok-1", "member@x.com"); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	if count := db.participantCount("gala"); count != 1 {
		t.Fatalf("expected 1 participant, got %d", count)
	}
	// each redemption spends a slot even on re-entry
	if got := db.registered("tok-1"); got != 2 {
		t.Fatalf("expected registered 2, got %d", got)
	}
}

// racingDB simulates losing the unique-index race: the first existence check
// sees nothing, then the insert collides with a row created in between.
type racingDB struct {
	*fakeDB
	mu    sync.Mutex
	calls int
}

func (r *racingDB) GetParticipant(ctx context.Context, eventSlug, email string) (*entity.Participant, error) {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	r.mu.Unlock()
	if first {
		return nil, nil
	}
	return r.fakeDB.GetParticipant(ctx, eventSlug, email)
}

func (r *racingDB) CreateParticipant(ctx context.Context, participant *entity.Participant) error {
	winner := *participant
	winner.Id = "winner"
	_ = r.fakeDB.CreateParticipant(ctx, &winner)
	return entity.ErrConflict
}
