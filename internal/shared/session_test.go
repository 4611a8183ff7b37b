package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricedesk/pricedesk/internal/shared"
)

func newManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, "test_session", time.Hour, false), mr
}

func roundTrip(t *testing.T, sm *shared.SessionManager, sess *shared.Session) *shared.Session {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return loaded
}

func TestSessionPersistsValuesAcrossRequests(t *testing.T) {
	sm, mr := newManager(t)

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("access_token", "tok")
	require.NoError(t, sess.SetJSON("view", map[string]int{"page": 2}))
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "saved"})

	loaded := roundTrip(t, sm, sess)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "tok", loaded.Get("access_token"))

	var view map[string]int
	require.True(t, loaded.GetJSON("view", &view))
	assert.Equal(t, 2, view["page"])

	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "saved", flash.Message)
	assert.Nil(t, loaded.PopFlash())
	assert.True(t, mr.Exists("session:"+sess.ID))
}

func TestUnknownCookieYieldsFreshSession(t *testing.T) {
	sm, _ := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "forged"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "forged", sess.ID)
	assert.Empty(t, sess.Get("access_token"))
}

func TestDestroyRemovesRecordAndExpiresCookie(t *testing.T) {
	sm, mr := newManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("access_token", "tok")
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), sess))
	require.True(t, mr.Exists("session:"+sess.ID))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))
	assert.False(t, mr.Exists("session:"+sess.ID))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestCSRFTokens(t *testing.T) {
	sm, _ := newManager(t)
	csrf := shared.NewCSRFManager("secret")
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(sess, ""), shared.ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(sess, token+"x"), shared.ErrCSRFTokenMismatch)
	_, err = csrf.EnsureToken(nil)
	assert.ErrorIs(t, err, shared.ErrSessionMissing)
}

func TestPagination(t *testing.T) {
	p := shared.NewPagination(1, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	start, end := p.Bounds()
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)
	assert.Equal(t, 11, p.From)
	assert.Equal(t, 20, p.To)
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	last := shared.NewPagination(2, 10, 25)
	start, end = last.Bounds()
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)
	assert.False(t, last.HasNext())

	beyond := shared.NewPagination(9, 10, 25)
	start, end = beyond.Bounds()
	assert.Equal(t, start, end)
	assert.Zero(t, beyond.From)

	def := shared.NewPagination(-3, 0, 0)
	assert.Equal(t, 0, def.Page)
	assert.Equal(t, shared.DefaultPerPage, def.PerPage)
	assert.Equal(t, 0, def.TotalPages)
}
