package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mapofwonders/auth-service/internal/auth/domain"
	"github.com/mapofwonders/auth-service/internal/auth/dto"
	autherror "github.com/mapofwonders/auth-service/internal/errors"
	"github.com/mapofwonders/auth-service/internal/events"
	"github.com/mapofwonders/auth-service/internal/logger"
	"github.com/mapofwonders/auth-service/internal/ratelimit"
	"github.com/mapofwonders/auth-service/pkg/constant"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgSignupFieldsRequired = "First name, last name, email and password are required"
	msgLoginFieldsRequired  = "Email and password are required"
)

type UserService struct {
	repo      domain.UserRepository
	tokens    TokenGenerator
	limiter   ratelimit.Limiter
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewUserService(
	repo domain.UserRepository,
	tokens TokenGenerator,
	limiter ratelimit.Limiter,
	publisher events.Publisher,
	log *zap.Logger,
) *UserService {
	return &UserService{
		repo:      repo,
		tokens:    tokens,
		limiter:   limiter,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Signup creates an account and issues a default-lifetime session token.
// Signup is not rate limited and never honours remember-me.
func (s *UserService) Signup(ctx context.Context, input dto.SignupInput) (*dto.AuthResult, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	email := normalizeEmail(input.Email)
	if firstName == "" || lastName == "" || email == "" || input.Password == "" {
		return nil, autherror.NewValidationError(msgSignupFieldsRequired)
	}

	// Advisory only; the unique index on email decides.
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), constant.PasswordHashCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Generate(user.ID, user.Email, false)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, user.ID, constant.ActivitySignup,
		map[string]interface{}{"success": true}, input.IPAddress, input.UserAgent)

	s.log.Info("user signed up", zap.String("user_id", user.ID), zap.String("email", logger.MaskEmail(user.Email)))

	return &dto.AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		TTL:       s.tokens.Expiry(false),
		User:      dto.NewUserOutput(user),
	}, nil
}

// Login authenticates a user. Unknown email and wrong password produce the
// same ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, autherror.NewValidationError(msgLoginFieldsRequired)
	}

	key := input.IPAddress
	if key == "" {
		key = constant.UnknownClientIP
	}

	retryAfter, err := s.limiter.Check(ctx, key)
	if err != nil {
		// fail open
		s.log.Warn("rate limiter check failed", zap.String("ip", logger.MaskIP(key)), zap.Error(err))
	} else if retryAfter > 0 {
		s.log.Info("login rejected: locked out",
			zap.String("ip", logger.MaskIP(key)),
			zap.Duration("retry_after", retryAfter),
		)
		return nil, &autherror.TooManyAttemptsError{RetryAfter: retryAfter}
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		if err := s.limiter.RecordFailure(ctx, key); err != nil {
			s.log.Warn("failed to record login failure", zap.String("ip", logger.MaskIP(key)), zap.Error(err))
		}
		if user != nil {
			s.recordActivity(ctx, user.ID, constant.ActivityLogin, map[string]interface{}{
				"success": false,
				"reason":  constant.FailureReasonInvalidPassword,
			}, input.IPAddress, input.UserAgent)
		}
		s.log.Info("login failed", zap.String("email", logger.MaskEmail(email)), zap.String("ip", logger.MaskIP(key)))
		return nil, autherror.ErrInvalidCredentials
	}

	// Stored for audit only; later logins do not read it.
	rememberMe := input.RememberMe
	if err := s.repo.Update(ctx, user.ID, domain.UserUpdate{RememberMe: &rememberMe}); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Generate(user.ID, user.Email, rememberMe)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, user.ID, constant.ActivityLogin, map[string]interface{}{
		"success":    true,
		"rememberMe": rememberMe,
	}, input.IPAddress, input.UserAgent)

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.log.Warn("failed to reset login failures", zap.String("ip", logger.MaskIP(key)), zap.Error(err))
	}

	s.log.Info("user logged in", zap.String("user_id", user.ID), zap.Bool("remember_me", rememberMe))

	return &dto.AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		TTL:       s.tokens.Expiry(rememberMe),
		User:      dto.NewUserOutput(user),
	}, nil
}

// normalizeEmail trims and lower-cases with Unicode folding so that both
// storage backends see the same canonical address. SQLite NOCASE only folds
// ASCII.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// recordActivity is best-effort: failures are logged and never returned.
func (s *UserService) recordActivity(ctx context.Context, userID, action string, details map[string]interface{}, ip, userAgent string) {
	activity := &domain.Activity{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: s.now(),
	}

	if err := s.repo.RecordActivity(ctx, activity); err != nil {
		s.log.Warn("failed to record activity",
			zap.String("user_id", userID),
			zap.String("action", action),
			zap.Error(err),
		)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, activity); err != nil {
		s.log.Warn("failed to publish activity", zap.String("user_id", userID), zap.String("action", action), zap.Error(err))
	}
}
