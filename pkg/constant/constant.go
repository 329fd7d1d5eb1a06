package constant

import "time"

const (
	// PasswordHashCost is the bcrypt cost used for every stored password.
	PasswordHashCost = 10

	DefaultTokenExpiry      = 24 * time.Hour
	DefaultRememberMeExpiry = 30 * 24 * time.Hour

	// UnknownClientIP is the limiter bucket for requests without a resolvable address.
	UnknownClientIP = "unknown"
)

const (
	AuthTokenCookie  = "auth-token"
	AuthStatusCookie = "auth-status"
)

const (
	ActivityLogin  = "login"
	ActivitySignup = "signup"
)

const (
	FailureReasonInvalidPassword = "invalid_password"
)
