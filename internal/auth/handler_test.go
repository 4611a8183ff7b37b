package auth_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricedesk/pricedesk/internal/app"
	"github.com/pricedesk/pricedesk/internal/auth"
	"github.com/pricedesk/pricedesk/internal/backend"
	"github.com/pricedesk/pricedesk/internal/shared"
	"github.com/pricedesk/pricedesk/internal/view"
	_ "github.com/pricedesk/pricedesk/testing"
)

// fakeBackend answers the auth endpoints. Only alice/secret logs in; bob is
// unverified. The token "good" is accepted by /auth/users/me.
func fakeBackend(t *testing.T, meCalls *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		switch {
		case r.PostForm.Get("username") == "alice" && r.PostForm.Get("password") == "secret":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "good", "token_type": "bearer", "full_name": "Alice", "role": "supplier"})
		case r.PostForm.Get("username") == "bob":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"detail":"Email not verified"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
		}
	})
	mux.HandleFunc("/auth/users/me", func(w http.ResponseWriter, r *http.Request) {
		if meCalls != nil {
			*meCalls++
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"full_name": "Alice", "role": "supplier"})
	})
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] == "taken@example.com" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Email already registered"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"msg":"ok"}`))
	})
	mux.HandleFunc("/auth/verify-email", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "valid" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Invalid or expired token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"msg":"Email successfully verified"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	router   http.Handler
	sessions *shared.SessionManager
	csrf     *shared.CSRFManager
	service  *auth.Service
	cookie   *http.Cookie
}

func newHarness(t *testing.T, backendURL string) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	service := auth.NewService(backend.NewClient(backendURL, 2*time.Second))
	handler := auth.NewHandler(nil, service, templates, sessions, csrf)

	r := chi.NewRouter()
	r.Use(handler.Middleware)
	r.Route("/auth", handler.MountRoutes)
	r.With(auth.RequireLogin).Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello " + auth.StoreFromContext(r.Context()).User().Name))
	})
	return &harness{router: app.SessionMiddleware(sessions, slog.Default())(r), sessions: sessions, csrf: csrf, service: service}
}

// do runs one request through session load and commit, carrying the cookie
// between calls the way a browser would.
func (h *harness) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == h.sessions.CookieName() {
			if c.MaxAge < 0 {
				h.cookie = nil
			} else {
				h.cookie = c
			}
		}
	}
	return rec
}

func (h *harness) session(t *testing.T) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestLoginPage(t *testing.T) {
	h := newHarness(t, fakeBackend(t, nil).URL)
	res := h.do(t, http.MethodGet, "/auth/login", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
}

func TestLoginSuccessStoresToken(t *testing.T) {
	h := newHarness(t, fakeBackend(t, nil).URL)
	res := h.do(t, http.MethodPost, "/auth/login", url.Values{"email": {"alice"}, "password": {"secret"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	assert.Equal(t, "good", h.session(t).Get(auth.TokenKey))

	res = h.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "hello Alice", res.Body.String())
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t, fakeBackend(t, nil).URL)
	res := h.do(t, http.MethodPost, "/auth/login", url.Values{"email": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid username or password.")
	assert.Empty(t, h.session(t).Get(auth.TokenKey))
}

func TestLoginUnverifiedEmail(t *testing.T) {
	h := newHarness(t, fakeBackend(t, nil).URL)
	res := h.do(t, http.MethodPost, "/auth/login", url.Values{"email": {"bob"}, "password": {"secret"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Email not verified. Please check your email for verification link.")
}

func TestLoginBackendDownShowsGenericMessage(t *testing.T) {
	srv := fakeBackend(t, nil)
	h := newHarness(t, srv.URL)
	srv.Close()
	res := h.do(t, http.MethodPost, "/auth/login", url.Values{"email": {"alice"}, "password": {"secret"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Login failed. Please check your credentials.")
}

func TestLoginRequiresFields(t *testing.T) {
	h := newHarness(t, fakeBackend(t, nil).URL)
	res := h.do(t, http.MethodPost, "/auth/login", url.Values{"email": {""}, "password": {""}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "This field is required.")
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t, fakeBackend(t, nil).URL)
	h.do(t, http.MethodPost, "/auth/login", url.Values{"email": {"alice"}, "password": {"secret"}})

	for i := 0; i < 2; i++ {
		res := h.do(t, http.MethodPost, "/auth/logout", url.Values{})
		assert.Equal(t, http.StatusSeeOther, res.Code)
		assert.Empty(t, h.session(t).Get(auth.TokenKey))
	}
	res := h.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
}

func newStore(t *testing.T, backendURL string, token string) (*auth.Store, *shared.Session, *auth.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "s", time.Hour, false)
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	if token != "" {
		sess.Set(auth.TokenKey, token)
	}
	service := auth.NewService(backend.NewClient(backendURL, 2*time.Second))
	return auth.NewStore(service, sessions, sess), sess, service
}

func TestRestoreWithoutTokenIsLoggedOut(t *testing.T) {
	st, _, _ := newStore(t, fakeBackend(t, nil).URL, "")
	require.NoError(t, st.Init(context.Background()))
	assert.False(t, st.IsLoggedIn())
	assert.Equal(t, auth.User{}, st.User())
}

func TestRestoreValidToken(t *testing.T) {
	calls := 0
	st, _, _ := newStore(t, fakeBackend(t, &calls).URL, "good")
	require.NoError(t, st.Restore(context.Background()))
	assert.True(t, st.IsLoggedIn())
	assert.Equal(t, auth.User{Name: "Alice", Role: auth.RoleSupplier}, st.User())
	assert.True(t, st.CanMutate())

	// A recently validated user is trusted without another backend call.
	require.NoError(t, st.Restore(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestRestoreClearsRejectedToken(t *testing.T) {
	st, sess, _ := newStore(t, fakeBackend(t, nil).URL, "stale")
	err := st.Restore(context.Background())
	require.Error(t, err)
	assert.True(t, backend.IsUnauthorized(err))
	assert.False(t, st.IsLoggedIn())
	assert.Empty(t, sess.Get(auth.TokenKey))
}

func TestRestoreKeepsTokenWhenBackendUnreachable(t *testing.T) {
	srv := fakeBackend(t, nil)
	addr := srv.URL
	srv.Close()
	st, sess, _ := newStore(t, addr, "good")
	err := st.Restore(context.Background())
	require.ErrorIs(t, err, backend.ErrUnavailable)
	assert.False(t, st.IsLoggedIn())
	assert.Equal(t, "good", sess.Get(auth.TokenKey))
}

func TestRestoreClearsExpiredJWT(t *testing.T) {
	calls := 0
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	token, err := expired.SignedString([]byte("k"))
	require.NoError(t, err)

	st, sess, _ := newStore(t, fakeBackend(t, &calls).URL, token)
	require.NoError(t, st.Restore(context.Background()))
	assert.False(t, st.IsLoggedIn())
	assert.Empty(t, sess.Get(auth.TokenKey))
	assert.Zero(t, calls)
}

func TestStoreLoginFailureClearsPreviousState(t *testing.T) {
	st, sess, _ := newStore(t, fakeBackend(t, nil).URL, "good")
	require.NoError(t, st.Restore(context.Background()))
	require.True(t, st.IsLoggedIn())

	err := st.Login(context.Background(), "alice", "nope")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.False(t, st.IsLoggedIn())
	assert.Empty(t, sess.Get(auth.TokenKey))
}

func TestRegister(t *testing.T) {
	h := newHarness(t, fakeBackend(t, nil).URL)
	form := url.Values{
		"email":            {"new@example.com"},
		"password":         {"longenough"},
		"confirm_password": {"longenough"},
		"full_name":        {"New User"},
		"role":             {"supplier"},
	}
	res := h.do(t, http.MethodPost, "/auth/register", form)
	assert.Equal(t, http.StatusCreated, res.Code)

	form.Set("email", "taken@example.com")
	res = h.do(t, http.MethodPost, "/auth/register", form)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Email already registered")

	form.Set("confirm_password", "different")
	res = h.do(t, http.MethodPost, "/auth/register", form)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Passwords do not match.")
}

func TestVerifyEmail(t *testing.T) {
	h := newHarness(t, fakeBackend(t, nil).URL)
	res := h.do(t, http.MethodGet, "/auth/verify-email?token=valid", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Email successfully verified")

	res = h.do(t, http.MethodGet, "/auth/verify-email?token=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid or expired token")
}

func TestMessageMapping(t *testing.T) {
	assert.Equal(t, "Invalid username or password.", auth.Message(auth.ErrInvalidCredentials))
	assert.Equal(t, "Email not verified. Please check your email for verification link.", auth.Message(auth.ErrEmailNotVerified))
	assert.Equal(t, "Login failed. Please check your credentials.", auth.Message(assert.AnError))
}

func TestTokenExpiredIgnoresOpaqueTokens(t *testing.T) {
	service := auth.NewService(backend.NewClient("http://127.0.0.1:0", time.Second))
	assert.False(t, service.TokenExpired("opaque-token"))
	future := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	token, err := future.SignedString([]byte("k"))
	require.NoError(t, err)
	assert.False(t, service.TokenExpired(token))
	service.WithNow(func() time.Time { return time.Now().Add(2 * time.Hour) })
	assert.True(t, service.TokenExpired(token))
}
