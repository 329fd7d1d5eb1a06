package domain

//go:generate mockgen -destination=../../mocks/mock_user_repository.go -package=mocks github.com/mapofwonders/auth-service/internal/auth/domain UserRepository

import "context"

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, id string, fields UserUpdate) error
	RecordActivity(ctx context.Context, activity *Activity) error
}
