package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"evsync/entity"
	"evsync/internal/config"
)

// fakeDB is an in-memory Database. All methods copy on the way in and out
// and take the mutex, so tests can hammer it from many goroutines the same
// way the request layer would.
type fakeDB struct {
	mu           sync.Mutex
	users        map[string]*entity.User
	events       map[string]*entity.Event
	invites      map[string]*entity.InviteToken
	participants map[string]*entity.Participant
	requests     map[string]*entity.EventRequest
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:        make(map[string]*entity.User),
		events:       make(map[string]*entity.Event),
		invites:      make(map[string]*entity.InviteToken),
		participants: make(map[string]*entity.Participant),
		requests:     make(map[string]*entity.EventRequest),
	}
}

func participantKey(eventSlug, email string) string {
	return eventSlug + "|" + email
}

func (f *fakeDB) GetUserByEmail(_ context.Context, email string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[email]
	if !ok {
		return nil, nil
	}
	u := *user
	return &u, nil
}

func (f *fakeDB) SaveUser(_ context.Context, user *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := *user
	f.users[user.Email] = &u
	return nil
}

func (f *fakeDB) GetEvent(_ context.Context, slug string) (*entity.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[slug]
	if !ok {
		return nil, nil
	}
	e := *event
	return &e, nil
}

func (f *fakeDB) SaveEvent(_ context.Context, event *entity.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := *event
	f.events[event.Slug] = &e
	return nil
}

func (f *fakeDB) FindValidInvite(_ context.Context, token string, now time.Time) (*entity.InviteToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invite, ok := f.invites[token]
	if !ok || !invite.ExpiresAt.After(now) {
		return nil, nil
	}
	inv := *invite
	return &inv, nil
}

func (f *fakeDB) IncrementRegistered(_ context.Context, token string, now time.Time, capacity int) (*entity.InviteToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invite, ok := f.invites[token]
	if !ok || !invite.ExpiresAt.After(now) || invite.Registered >= capacity {
		return nil, nil
	}
	invite.Registered++
	inv := *invite
	return &inv, nil
}

func (f *fakeDB) CreateInvite(_ context.Context, invite *entity.InviteToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invites[invite.Token]; ok {
		return entity.ErrConflict
	}
	inv := *invite
	f.invites[invite.Token] = &inv
	return nil
}

func (f *fakeDB) GetParticipant(_ context.Context, eventSlug, email string) (*entity.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	participant, ok := f.participants[participantKey(eventSlug, email)]
	if !ok {
		return nil, nil
	}
	p := *participant
	return &p, nil
}

func (f *fakeDB) GetParticipantById(_ context.Context, participantId string) (*entity.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, participant := range f.participants {
		if participant.Id == participantId {
			p := *participant
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeDB) CreateParticipant(_ context.Context, participant *entity.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := participantKey(participant.EventSlug, participant.Email)
	if _, ok := f.participants[key]; ok {
		return fmt.Errorf("create participant: %w", entity.ErrConflict)
	}
	p := *participant
	f.participants[key] = &p
	return nil
}

func (f *fakeDB) LinkParticipantUser(_ context.Context, participantId, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, participant := range f.participants {
		if participant.Id == participantId {
			participant.UserId = userId
			return nil
		}
	}
	return fmt.Errorf("participant %s not found", participantId)
}

func (f *fakeDB) ParticipantsForEvent(_ context.Context, eventSlug string) ([]*entity.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var participants []*entity.Participant
	for _, participant := range f.participants {
		if participant.EventSlug == eventSlug {
			p := *participant
			participants = append(participants, &p)
		}
	}
	return participants, nil
}

func (f *fakeDB) SetPaymentStatus(_ context.Context, participantId string, status entity.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, participant := range f.participants {
		if participant.Id == participantId {
			participant.PaymentStatus = status
			return nil
		}
	}
	return fmt.Errorf("participant %s not found", participantId)
}

func (f *fakeDB) GetEventRequest(_ context.Context, slug string) (*entity.EventRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[slug]
	if !ok || request.DeletedAt != nil {
		return nil, nil
	}
	r := *request
	return &r, nil
}

func (f *fakeDB) CreateEventRequest(_ context.Context, request *entity.EventRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[request.Slug]; ok {
		return fmt.Errorf("create event request: %w", entity.ErrConflict)
	}
	r := *request
	f.requests[request.Slug] = &r
	return nil
}

func (f *fakeDB) DeleteEventRequest(_ context.Context, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[slug]
	if !ok {
		return nil
	}
	now := time.Now()
	request.DeletedAt = &now
	return nil
}

func (f *fakeDB) participantCount(eventSlug string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, participant := range f.participants {
		if participant.EventSlug == eventSlug {
			count++
		}
	}
	return count
}

func (f *fakeDB) registered(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	invite, ok := f.invites[token]
	if !ok {
		return -1
	}
	return invite.Registered
}

type sentNotification struct {
	notification *entity.Notification
	recipients   []*entity.User
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Send(n *entity.Notification, recipients []*entity.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{notification: n, recipients: recipients})
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeNotifier) last() sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

// waitNotifications polls until the notifier has seen want sends; dispatch
// is fire-and-forget, so assertions on it need a grace window.
func waitNotifications(t *testing.T, n *fakeNotifier, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n.count() >= want {
			// settle so an unexpected extra send can still arrive
			time.Sleep(20 * time.Millisecond)
			if got := n.count(); got != want {
				t.Fatalf("expected %d notifications, got %d", want, got)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d notifications, got %d", want, n.count())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		AdminEmail: "admin@evsync.test",
		Invite:     config.InviteConfig{TTLHours: 72},
	}
}

func newTestCore(db *fakeDB, notifier *fakeNotifier, fixed time.Time) *Core {
	c := New(testConfig(), db, testLogger())
	if notifier != nil {
		c.SetNotifier(notifier)
	}
	c.now = func() time.Time { return fixed }
	return c
}
