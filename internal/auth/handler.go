package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pricedesk/pricedesk/internal/backend"
	"github.com/pricedesk/pricedesk/internal/shared"
	"github.com/pricedesk/pricedesk/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Get("/verify-email", h.handleVerifyEmail)
}

type loginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if StoreFromContext(r.Context()).IsLoggedIn() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "pages/login.html", "Login", loginPageData{Errors: map[string]string{}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	errs := h.validationErrors(form)
	if len(errs) == 0 {
		st := StoreFromContext(r.Context())
		if st == nil {
			h.logger.Error("session missing during login")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		err := st.Login(r.Context(), form.Email, form.Password)
		if err == nil {
			shared.Flash(r.Context(), "success", "Welcome back, "+st.User().Name)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		if errors.Is(err, ErrLoginFailed) {
			h.logger.Warn("login failed", slog.Any("error", err))
		}
		errs["general"] = Message(err)
	}
	h.render(w, r, http.StatusBadRequest, "pages/login.html", "Login", loginPageData{Form: loginForm{Email: form.Email}, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if st := StoreFromContext(r.Context()); st != nil {
		st.Teardown()
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

type registerForm struct {
	RegisterInput
	Confirm string
}

type registerPageData struct {
	Form   registerForm
	Errors map[string]string
	Done   bool
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	data := registerPageData{Form: registerForm{RegisterInput: RegisterInput{Role: string(RoleBuyer)}}, Errors: map[string]string{}}
	h.render(w, r, http.StatusOK, "pages/register.html", "Register", data)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := registerForm{
		RegisterInput: RegisterInput{
			Email:    strings.TrimSpace(r.PostFormValue("email")),
			Password: r.PostFormValue("password"),
			FullName: strings.TrimSpace(r.PostFormValue("full_name")),
			Role:     string(NormalizeRole(r.PostFormValue("role"))),
		},
		Confirm: r.PostFormValue("confirm_password"),
	}
	errs := h.validationErrors(form.RegisterInput)
	if form.Password != form.Confirm {
		errs["Confirm"] = "Passwords do not match."
	}
	if len(errs) == 0 {
		err := h.service.Register(r.Context(), form.RegisterInput)
		if err == nil {
			data := registerPageData{Done: true, Form: registerForm{RegisterInput: RegisterInput{Email: form.Email}}}
			h.render(w, r, http.StatusCreated, "pages/register.html", "Register", data)
			return
		}
		h.logger.Warn("register failed", slog.Any("error", err))
		errs["general"] = backend.DetailOf(err)
	}
	form.Password, form.Confirm = "", ""
	h.render(w, r, http.StatusBadRequest, "pages/register.html", "Register", registerPageData{Form: form, Errors: errs})
}

type verifyPageData struct {
	OK      bool
	Message string
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	msg, err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.logger.Warn("verify email", slog.Any("error", err))
		h.render(w, r, http.StatusBadRequest, "pages/verify.html", "Email verification", verifyPageData{Message: VerifyMessage(err)})
		return
	}
	h.render(w, r, http.StatusOK, "pages/verify.html", "Email verification", verifyPageData{OK: true, Message: msg})
}

func (h *Handler) validationErrors(v any) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldMessage(fieldErr)
			}
		}
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Must be at least " + fe.Param() + " characters."
	case "oneof":
		return "Choose one of: " + fe.Param() + "."
	default:
		return fe.Error()
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	if err := h.templates.RenderStatus(w, status, name, PageData(r, h.csrfManager, title, data)); err != nil {
		h.logger.Error("render "+name, slog.Any("error", err))
	}
}
