package domain

import "time"

type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	RememberMe   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserUpdate lists the fields a partial update may change. Nil fields are left untouched.
type UserUpdate struct {
	FirstName  *string
	LastName   *string
	RememberMe *bool
}

// Activity is one append-only audit entry for a signup or login attempt.
type Activity struct {
	ID        string
	UserID    string
	Action    string
	Details   map[string]interface{}
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
