package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pricedesk/pricedesk/internal/shared"
	"github.com/pricedesk/pricedesk/internal/view"
)

type storeContextKey struct{}

// ContextWithStore stores the login state in context.
func ContextWithStore(ctx context.Context, st *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, st)
}

// StoreFromContext extracts the login state; nil outside the middleware.
func StoreFromContext(ctx context.Context) *Store {
	st, _ := ctx.Value(storeContextKey{}).(*Store)
	return st
}

// Middleware builds the per-request Store from the browser session and
// restores it. It must run after the session middleware.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		st := NewStore(h.service, h.sessionManager, sess)
		if err := st.Init(r.Context()); err != nil {
			h.logger.Warn("restore session", slog.Any("error", err))
		}
		next.ServeHTTP(w, r.WithContext(ContextWithStore(r.Context(), st)))
	})
}

// RequireLogin redirects anonymous visitors to the login page.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !StoreFromContext(r.Context()).IsLoggedIn() {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireMutate rejects buyers.
func RequireMutate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !StoreFromContext(r.Context()).CanMutate() {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Expire handles a 401 seen on an authenticated backend call: the stored
// token is dropped and the user is sent back to the login page.
func Expire(w http.ResponseWriter, r *http.Request) {
	if st := StoreFromContext(r.Context()); st != nil {
		st.Logout()
	}
	shared.Flash(r.Context(), "warning", "Your session has expired. Please sign in again.")
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// HandleUnauthorized is the single place page handlers send a backend 401.
func (h *Handler) HandleUnauthorized(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("backend rejected session token", slog.String("path", r.URL.Path))
	Expire(w, r)
}

// ViewerFromContext describes the current user for templates.
func ViewerFromContext(ctx context.Context) view.Viewer {
	st := StoreFromContext(ctx)
	if !st.IsLoggedIn() {
		return view.Viewer{}
	}
	user := st.User()
	return view.Viewer{
		LoggedIn:  true,
		Name:      user.Name,
		Role:      string(user.Role),
		CanMutate: CanMutate(user.Role),
	}
}

// PageData assembles the values every page needs: CSRF token, pending flash
// and the viewer.
func PageData(r *http.Request, csrf *shared.CSRFManager, title string, data any) view.TemplateData {
	sess := shared.SessionFromContext(r.Context())
	token, _ := csrf.EnsureToken(sess)
	return view.TemplateData{
		Title:       title,
		CSRFToken:   token,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Viewer:      ViewerFromContext(r.Context()),
		Data:        data,
	}
}
