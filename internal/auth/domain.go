package auth

import (
	"errors"
	"strings"
)

// Role is the account role issued by the backend.
type Role string

// Known roles. The backend treats role as an open string; anything that is
// not a buyer is allowed to manage products.
const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

// User is the identity hydrated from the backend for the current session.
type User struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// CanMutate reports whether role may create, edit or delete products.
func CanMutate(role Role) bool {
	return NormalizeRole(string(role)) != RoleBuyer
}

// CanForecast reports whether role may request demand forecasts. The backend
// restricts the forecast endpoint to the same roles as mutations.
func CanForecast(role Role) bool {
	return CanMutate(role)
}

// NormalizeRole lower-cases and trims a role; empty input maps to buyer, the
// least privileged role.
func NormalizeRole(raw string) Role {
	r := strings.ToLower(strings.TrimSpace(raw))
	if r == "" {
		return RoleBuyer
	}
	return Role(r)
}

var (
	// ErrInvalidCredentials is returned when the backend rejects the password grant with 401.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailNotVerified is returned when the backend answers the password grant with 403.
	ErrEmailNotVerified = errors.New("auth: email not verified")
	// ErrLoginFailed covers every other login failure.
	ErrLoginFailed = errors.New("auth: login failed")
	// ErrVerificationFailed wraps email verification failures.
	ErrVerificationFailed = errors.New("auth: email verification failed")
	// ErrNotLoggedIn is returned by operations that need a stored token.
	ErrNotLoggedIn = errors.New("auth: not logged in")
)

// Message maps a login error to the text shown on the login page.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, ErrEmailNotVerified):
		return "Email not verified. Please check your email for verification link."
	default:
		return "Login failed. Please check your credentials."
	}
}
