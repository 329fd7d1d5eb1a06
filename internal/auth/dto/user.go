package dto

import (
	"time"

	"github.com/mapofwonders/auth-service/internal/auth/domain"
)

// UserOutput is the public view of a user. The password hash never leaves the service.
type UserOutput struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func NewUserOutput(u *domain.User) UserOutput {
	return UserOutput{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// AuthResult is what signup and login hand back to the transport layer.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
	User      UserOutput
}

type AuthResponse struct {
	Success bool       `json:"success"`
	Token   string     `json:"token"`
	User    UserOutput `json:"user"`
}
