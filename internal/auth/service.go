package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/pricedesk/pricedesk/internal/backend"
)

// Service wraps the backend authentication endpoints.
type Service struct {
	client *backend.Client
	group  singleflight.Group
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(client *backend.Client) *Service {
	return &Service{client: client, now: time.Now}
}

// WithNow overrides the clock used for token expiry checks.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	FullName    string `json:"full_name"`
	// Older backend builds spell it without the underscore.
	Fullname string `json:"fullname"`
	Role     string `json:"role"`
}

type meResponse struct {
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Login exchanges credentials for a bearer token using the password grant.
// The returned error is one of ErrInvalidCredentials, ErrEmailNotVerified or
// ErrLoginFailed, wrapped with the underlying cause.
func (s *Service) Login(ctx context.Context, username, password string) (User, string, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	var resp loginResponse
	if err := s.client.PostForm(ctx, "/auth/login", form, &resp); err != nil {
		switch backend.StatusOf(err) {
		case http.StatusUnauthorized:
			return User{}, "", fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		case http.StatusForbidden:
			return User{}, "", fmt.Errorf("%w: %w", ErrEmailNotVerified, err)
		default:
			return User{}, "", fmt.Errorf("%w: %w", ErrLoginFailed, err)
		}
	}
	if resp.AccessToken == "" {
		return User{}, "", fmt.Errorf("%w: empty access token", ErrLoginFailed)
	}

	name := resp.FullName
	if name == "" {
		name = resp.Fullname
	}
	if name != "" && resp.Role != "" {
		return User{Name: name, Role: NormalizeRole(resp.Role)}, resp.AccessToken, nil
	}
	user, err := s.Me(ctx, resp.AccessToken)
	if err != nil {
		return User{}, "", fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	return user, resp.AccessToken, nil
}

// Me validates token against the "who am I" endpoint. Concurrent calls for
// the same token share one backend request.
func (s *Service) Me(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNotLoggedIn
	}
	v, err, _ := s.group.Do(token, func() (interface{}, error) {
		var resp meResponse
		if err := s.client.WithToken(token).Get(ctx, "/auth/users/me", &resp); err != nil {
			return User{}, err
		}
		return User{Name: resp.FullName, Role: NormalizeRole(resp.Role)}, nil
	})
	if err != nil {
		return User{}, err
	}
	return v.(User), nil
}

// RegisterInput is the payload of POST /auth/register.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=buyer supplier"`
}

// Register creates an account. The backend answers 201 and sends a
// verification email; validation failures come back as 422 with a detail list.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if err := s.client.Post(ctx, "/auth/register", in, nil); err != nil {
		return fmt.Errorf("auth: register: %w", err)
	}
	return nil
}

// VerifyEmail confirms an email verification token and returns the backend
// message. Failures wrap ErrVerificationFailed; VerifyMessage renders them.
func (s *Service) VerifyEmail(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", ErrVerificationFailed)
	}
	var resp struct {
		Msg string `json:"msg"`
	}
	if err := s.client.Post(ctx, "/auth/verify-email?token="+url.QueryEscape(token), nil, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if resp.Msg == "" {
		resp.Msg = "Email successfully verified"
	}
	return resp.Msg, nil
}

// VerifyMessage returns the text shown when email verification fails.
func VerifyMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return "Verification failed."
}

// TokenExpired reports whether token is a JWT whose exp claim lies in the
// past. Opaque tokens and tokens without exp are never considered expired;
// the backend stays the authority on validity.
func (s *Service) TokenExpired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(claims.ExpiresAt.Time)
}
