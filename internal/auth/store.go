package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/pricedesk/pricedesk/internal/backend"
	"github.com/pricedesk/pricedesk/internal/shared"
)

const (
	// TokenKey is the session key holding the backend bearer token.
	TokenKey = "access_token"

	userKey      = "auth_user"
	checkedAtKey = "auth_checked_at"
)

// revalidateAfter bounds how long a hydrated user is trusted before the token
// is checked against the backend again.
const revalidateAfter = 5 * time.Minute

// Store is the login state of one browser session. It is built per request
// around the session record, which is where the token is persisted.
type Store struct {
	service  *Service
	sessions *shared.SessionManager
	sess     *shared.Session
	user     User
	loggedIn bool
}

// NewStore binds the service to a browser session.
func NewStore(service *Service, sessions *shared.SessionManager, sess *shared.Session) *Store {
	return &Store{service: service, sessions: sessions, sess: sess}
}

// Init reconstructs login state from the stored token. See Restore.
func (st *Store) Init(ctx context.Context) error {
	return st.Restore(ctx)
}

// Restore validates a stored token. Expired JWTs and tokens the backend
// rejects are cleared. When the backend cannot be reached the token is kept
// but the session counts as logged out for this request.
func (st *Store) Restore(ctx context.Context) error {
	st.loggedIn = false
	st.user = User{}
	token := st.Token()
	if token == "" {
		return nil
	}
	if st.service.TokenExpired(token) {
		st.clear()
		return nil
	}

	var cached User
	if st.sess.GetJSON(userKey, &cached) && st.fresh() {
		st.user = cached
		st.loggedIn = true
		return nil
	}

	user, err := st.service.Me(ctx, token)
	if err != nil {
		if errors.Is(err, backend.ErrUnavailable) {
			return err
		}
		st.clear()
		return err
	}
	st.remember(user)
	return nil
}

// Login authenticates and persists the token on success. On failure the
// previous state is cleared and the error maps through Message.
func (st *Store) Login(ctx context.Context, username, password string) error {
	user, token, err := st.service.Login(ctx, username, password)
	if err != nil {
		st.Logout()
		return err
	}
	st.sess.Set(TokenKey, token)
	st.remember(user)
	return nil
}

// Logout clears the stored token and resets state. Safe to call repeatedly.
func (st *Store) Logout() {
	st.clear()
}

// Teardown logs out and destroys the underlying browser session.
func (st *Store) Teardown() {
	st.clear()
	if st.sessions != nil {
		st.sessions.Destroy(st.sess)
	}
}

// IsLoggedIn reports whether a validated token is present.
func (st *Store) IsLoggedIn() bool {
	return st != nil && st.loggedIn
}

// User returns the current user; zero when logged out.
func (st *Store) User() User {
	if st == nil {
		return User{}
	}
	return st.user
}

// Token returns the stored bearer token.
func (st *Store) Token() string {
	if st == nil {
		return ""
	}
	return st.sess.Get(TokenKey)
}

// CanMutate reports whether the current user may change products.
func (st *Store) CanMutate() bool {
	return st.IsLoggedIn() && CanMutate(st.user.Role)
}

func (st *Store) remember(user User) {
	st.user = user
	st.loggedIn = true
	_ = st.sess.SetJSON(userKey, user)
	st.sess.Set(checkedAtKey, strconv.FormatInt(st.service.now().Unix(), 10))
}

func (st *Store) fresh() bool {
	ts, err := strconv.ParseInt(st.sess.Get(checkedAtKey), 10, 64)
	if err != nil {
		return false
	}
	return st.service.now().Sub(time.Unix(ts, 0)) < revalidateAfter
}

func (st *Store) clear() {
	st.loggedIn = false
	st.user = User{}
	st.sess.Delete(TokenKey)
	st.sess.Delete(userKey)
	st.sess.Delete(checkedAtKey)
}
