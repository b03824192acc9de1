package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Perrohpta23/chatbot/internal/models"
)

type fakeUserStore struct {
	users   map[uuid.UUID]bool
	created int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]bool)}
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	user.ID = uuid.New()
	f.users[user.ID] = true
	f.created++
	return nil
}

func (f *fakeUserStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.users[id], nil
}

func identityCookie(res *http.Response) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func TestIdentity_MintsUserWithoutCookie(t *testing.T) {
	store := newFakeUserStore()
	identity := NewIdentity(store, false, zap.NewNop())

	var resolved uuid.UUID
	handler := identity.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = GetUserID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if store.created != 1 {
		t.Fatalf("expected 1 user created, got %d", store.created)
	}
	if resolved == uuid.Nil {
		t.Fatal("expected resolved user id in context")
	}

	cookie := identityCookie(rr.Result())
	if cookie == nil {
		t.Fatal("expected identity cookie on response")
	}
	if cookie.Value != resolved.String() {
		t.Errorf("cookie value %q does not match resolved id %q", cookie.Value, resolved)
	}
	if !cookie.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Error("cookie must be SameSite=Lax")
	}
	if cookie.MaxAge != cookieMaxAge {
		t.Errorf("expected MaxAge %d, got %d", cookieMaxAge, cookie.MaxAge)
	}
}

func TestIdentity_ReusesValidCookie(t *testing.T) {
	store := newFakeUserStore()
	identity := NewIdentity(store, false, zap.NewNop())

	existing := &models.User{}
	store.Create(context.Background(), existing)
	created := store.created

	var resolved uuid.UUID
	handler := identity.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = GetUserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: existing.ID.String()})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if resolved != existing.ID {
		t.Errorf("expected reuse of %s, resolved %s", existing.ID, resolved)
	}
	if store.created != created {
		t.Error("no new user should be created for a valid cookie")
	}
	if identityCookie(rr.Result()) != nil {
		t.Error("no Set-Cookie expected for an existing identity")
	}
}

func TestIdentity_RemintsOnBadCookie(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"garbage value", "not-a-uuid"},
		{"unknown user", uuid.NewString()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeUserStore()
			identity := NewIdentity(store, false, zap.NewNop())

			handler := identity.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: CookieName, Value: tc.value})
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if store.created != 1 {
				t.Fatalf("expected replacement user minted, created=%d", store.created)
			}
			cookie := identityCookie(rr.Result())
			if cookie == nil {
				t.Fatal("expected fresh identity cookie")
			}
			if cookie.Value == tc.value {
				t.Error("cookie must carry the new identity")
			}
		})
	}
}

func TestIdentity_SecureFlagFromConfig(t *testing.T) {
	store := newFakeUserStore()
	identity := NewIdentity(store, true, zap.NewNop())

	handler := identity.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	cookie := identityCookie(rr.Result())
	if cookie == nil {
		t.Fatal("expected identity cookie")
	}
	if !cookie.Secure {
		t.Error("cookie must be Secure when configured")
	}
}
