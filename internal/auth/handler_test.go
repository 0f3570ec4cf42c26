package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/stackit-qa/stackit/internal/auth"
	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
	"github.com/stackit-qa/stackit/internal/users"
	"github.com/stackit-qa/stackit/internal/view"
	_ "github.com/stackit-qa/stackit/testing"
)

type stubStore struct {
	user     *users.User
	sessions map[string]auth.SessionRecord
	touched  []string
}

func (s *stubStore) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubStore) Register(ctx context.Context, in users.RegisterInput) (*users.User, error) {
	if len(in.Password) < 6 {
		return nil, &users.ValidationError{Fields: map[string]string{"Password": "must be at least 6 characters"}}
	}
	if s.user != nil && strings.EqualFold(s.user.Email, in.Email) {
		return nil, users.ErrDuplicate
	}
	s.user = &users.User{ID: "bbbbbbbb-0000-0000-0000-000000000001", Username: in.Username, Email: in.Email, Role: rbac.RoleUser, IsActive: true}
	return s.user, nil
}

func (s *stubStore) TouchLastLogin(ctx context.Context, userID string) error {
	s.touched = append(s.touched, userID)
	return nil
}

func (s *stubStore) CreateSession(ctx context.Context, rec auth.SessionRecord) error {
	s.sessions[rec.ID] = rec
	return nil
}

func (s *stubStore) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func (s *stubStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, rec := range s.sessions {
		if rec.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func newStore(t *testing.T, password string) *stubStore {
	t.Helper()
	store := &stubStore{sessions: make(map[string]auth.SessionRecord)}
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		store.user = &users.User{ID: "bbbbbbbb-0000-0000-0000-000000000002", Username: "ada", Email: "ada@test.local", PasswordHash: string(hashed), Role: rbac.RoleUser, IsActive: true}
	}
	return store
}

func newAuthHandler(t *testing.T, store *stubStore) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	handler := auth.NewHandler(nil, auth.NewService(store, store, nil), templates, sessionManager, csrfManager)
	return handler, sessionManager
}

// serve runs handler with a session loaded from req and commits it afterwards.
func serve(t *testing.T, sm *shared.SessionManager, handler http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	handler(res, req)
	if err := sm.Commit(ctx, res, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return res, sess
}

func postForm(path string, values url.Values, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, newStore(t, ""))

	res, sess := serve(t, sessionManager, handler.ShowLoginForTest, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
	if token := sess.Get(shared.CSRFSessionKey); token == "" || !strings.Contains(res.Body.String(), token) {
		t.Fatalf("csrf token not rendered")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	store := newStore(t, "correctpass")
	handler, sessionManager := newAuthHandler(t, store)

	for _, creds := range [][2]string{
		{"ada@test.local", "wrongpass"},
		{"nobody@test.local", "correctpass"},
	} {
		form := url.Values{"email": {creds[0]}, "password": {creds[1]}}
		res, sess := serve(t, sessionManager, handler.HandleLoginForTest, postForm("/auth/login", form, nil))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", res.Code)
		}
		if !strings.Contains(res.Body.String(), "Invalid email or password") {
			t.Fatalf("expected error message in response")
		}
		if sess.User() != "" {
			t.Fatalf("session bound after failed login")
		}
	}
	if len(store.sessions) != 0 || len(store.touched) != 0 {
		t.Fatalf("failed logins must not record sessions")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := newStore(t, "correctpass")
	store.user.IsActive = false
	handler, sessionManager := newAuthHandler(t, store)

	form := url.Values{"email": {"ada@test.local"}, "password": {"correctpass"}}
	res, _ := serve(t, sessionManager, handler.HandleLoginForTest, postForm("/auth/login", form, nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestLoginRotatesSession(t *testing.T) {
	store := newStore(t, "correctpass")
	handler, sessionManager := newAuthHandler(t, store)

	_, anon := serve(t, sessionManager, handler.ShowLoginForTest, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	anonID := anon.ID
	cookie := &http.Cookie{Name: sessionManager.CookieName(), Value: anonID}

	form := url.Values{"email": {"ADA@test.local"}, "password": {"correctpass"}}
	res, sess := serve(t, sessionManager, handler.HandleLoginForTest, postForm("/auth/login", form, cookie))
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if sess.User() != store.user.ID {
		t.Fatalf("session not bound to user")
	}
	if sess.ID == anonID {
		t.Fatalf("session id not rotated on login")
	}
	if _, ok := store.sessions[sess.ID]; !ok {
		t.Fatalf("session record not created")
	}
	if len(store.touched) != 1 {
		t.Fatalf("last login not touched")
	}

	// The pre-login id no longer resolves to a stored session.
	stale, err := sessionManager.Load(context.Background(), postForm("/", nil, cookie))
	if err != nil {
		t.Fatalf("load stale: %v", err)
	}
	if stale.User() != "" || stale.Get(shared.CSRFSessionKey) != "" {
		t.Fatalf("stale session still usable")
	}
}

func TestRegister(t *testing.T) {
	store := newStore(t, "")
	handler, sessionManager := newAuthHandler(t, store)

	form := url.Values{"username": {"grace"}, "email": {"grace@test.local"}, "password": {"hopper123"}}
	res, sess := serve(t, sessionManager, handler.HandleRegisterForTest, postForm("/auth/register", form, nil))
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if sess.User() == "" {
		t.Fatalf("registration should sign the user in")
	}

	res, _ = serve(t, sessionManager, handler.HandleRegisterForTest, postForm("/auth/register", form, nil))
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", res.Code)
	}

	form.Set("email", "other@test.local")
	form.Set("password", "123")
	res, _ = serve(t, sessionManager, handler.HandleRegisterForTest, postForm("/auth/register", form, nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid input, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "at least 6 characters") {
		t.Fatalf("expected field error in body")
	}
}

func TestLogout(t *testing.T) {
	store := newStore(t, "correctpass")
	handler, sessionManager := newAuthHandler(t, store)

	form := url.Values{"email": {"ada@test.local"}, "password": {"correctpass"}}
	_, sess := serve(t, sessionManager, handler.HandleLoginForTest, postForm("/auth/login", form, nil))
	cookie := &http.Cookie{Name: sessionManager.CookieName(), Value: sess.ID}

	res, _ := serve(t, sessionManager, handler.HandleLogoutForTest, postForm("/auth/logout", url.Values{}, cookie))
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if len(store.sessions) != 0 {
		t.Fatalf("session record not removed")
	}
	after, err := sessionManager.Load(context.Background(), postForm("/", nil, cookie))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if after.User() != "" {
		t.Fatalf("session survived logout")
	}
}
