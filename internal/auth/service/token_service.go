package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/mapofwonders/auth-service/internal/auth/service TokenGenerator

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenGenerator interface {
	Generate(userID, email string, rememberMe bool) (string, time.Time, error)
	Expiry(rememberMe bool) time.Duration
	Verify(tokenString string) (*JWTCustomClaims, error)
}

type TokenService struct {
	Secret           string
	DefaultExpiry    time.Duration
	RememberMeExpiry time.Duration
	now              func() time.Time
}

// JWTCustomClaims is the session token payload. SessionID is unique per
// issuance and exists for traceability only.
type JWTCustomClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	SessionID string `json:"sessionId"`
}

func NewTokenService(secret string, defaultExpiry, rememberMeExpiry time.Duration) *TokenService {
	return &TokenService{
		Secret:           secret,
		DefaultExpiry:    defaultExpiry,
		RememberMeExpiry: rememberMeExpiry,
		now:              time.Now,
	}
}

func (ts *TokenService) Expiry(rememberMe bool) time.Duration {
	if rememberMe {
		return ts.RememberMeExpiry
	}
	return ts.DefaultExpiry
}

func (ts *TokenService) Generate(userID, email string, rememberMe bool) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ts.Expiry(rememberMe))

	claims := JWTCustomClaims{
		UserID:    userID,
		Email:     email,
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}

	return token, expiresAt, nil
}

// Verify parses and validates the given session token.
func (ts *TokenService) Verify(tokenString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(ts.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
