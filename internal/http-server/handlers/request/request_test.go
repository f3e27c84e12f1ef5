package request

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"evsync/entity"
	"evsync/lib/api/cont"
)

type fakeCore struct {
	request *entity.EventRequest
	deleted []string
}

func (f *fakeCore) RequestEvent(_ context.Context, req *entity.EventRequest, _ string) (*entity.EventRequest, error) {
	return req, nil
}

func (f *fakeCore) EventRequest(_ context.Context, requestSlug string) (*entity.EventRequest, error) {
	if f.request == nil || f.request.Slug != requestSlug {
		return nil, entity.ErrEventNotFound
	}
	req := *f.request
	return &req, nil
}

func (f *fakeCore) DeleteEventRequest(_ context.Context, requestSlug string) error {
	f.deleted = append(f.deleted, requestSlug)
	return nil
}

func doDelete(t *testing.T, core *fakeCore, user *entity.User, requestSlug string) *httptest.ResponseRecorder {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	router.Delete("/event/request/{slug}", Delete(log, core))

	req := httptest.NewRequest(http.MethodDelete, "/event/request/"+requestSlug, nil)
	req = req.WithContext(cont.PutUser(req.Context(), user))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDeleteByHost(t *testing.T) {
	core := &fakeCore{request: &entity.EventRequest{Slug: "jane-doe", Host: "host@x.com"}}
	user := &entity.User{Email: "host@x.com", Role: entity.RoleUser}

	w := doDelete(t, core, user, "jane-doe")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for the host, got %d", w.Code)
	}
	if len(core.deleted) != 1 || core.deleted[0] != "jane-doe" {
		t.Fatalf("expected jane-doe deleted, got %v", core.deleted)
	}
}

func TestDeleteByAdmin(t *testing.T) {
	core := &fakeCore{request: &entity.EventRequest{Slug: "jane-doe", Host: "host@x.com"}}
	user := &entity.User{Email: "admin@x.com", Role: entity.RoleAdmin}

	w := doDelete(t, core, user, "jane-doe")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for an admin, got %d", w.Code)
	}
	if len(core.deleted) != 1 {
		t.Fatalf("expected one deletion, got %v", core.deleted)
	}
}

func TestDeleteByStrangerForbidden(t *testing.T) {
	core := &fakeCore{request: &entity.EventRequest{Slug: "jane-doe", Host: "host@x.com"}}
	user := &entity.User{Email: "stranger@x.com", Role: entity.RoleUser}

	w := doDelete(t, core, user, "jane-doe")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-owner, got %d", w.Code)
	}
	if len(core.deleted) != 0 {
		t.Fatalf("nothing may be deleted on a denied call, got %v", core.deleted)
	}
}

func TestDeleteUnknownRequest(t *testing.T) {
	core := &fakeCore{}
	user := &entity.User{Email: "host@x.com", Role: entity.RoleUser}

	w := doDelete(t, core, user, "no-such-request")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if len(core.deleted) != 0 {
		t.Fatalf("nothing may be deleted, got %v", core.deleted)
	}
}
