package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mapofwonders/auth-service/internal/auth/domain"
	autherror "github.com/mapofwonders/auth-service/internal/errors"
)

const uniqueViolation = "23505"

// DBTX is the subset of pgxpool.Pool the repository needs. pgxmock pools satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db      DBTX
	builder sq.StatementBuilderType
	now     func() time.Time
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:     time.Now,
	}
}

// WithClock overrides the time source used for updated_at.
func (r *PostgresRepository) WithClock(now func() time.Time) *PostgresRepository {
	r.now = now
	return r
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, first_name, last_name, email, password_hash, remember_me, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
		LIMIT 1;
	`
	row := r.db.QueryRow(ctx, query, email)

	var user domain.User
	err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&user.PasswordHash, &user.RememberMe, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, remember_me, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash,
		user.RememberMe, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return autherror.ErrEmailAlreadyInUse
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, fields domain.UserUpdate) error {
	query := r.builder.Update("users")
	if fields.FirstName != nil {
		query = query.Set("first_name", *fields.FirstName)
	}
	if fields.LastName != nil {
		query = query.Set("last_name", *fields.LastName)
	}
	if fields.RememberMe != nil {
		query = query.Set("remember_me", *fields.RememberMe)
	}
	query = query.Set("updated_at", r.now().UTC()).Where(sq.Eq{"id": id})

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return autherror.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepository) RecordActivity(ctx context.Context, activity *domain.Activity) error {
	details := []byte("{}")
	if len(activity.Details) > 0 {
		encoded, err := json.Marshal(activity.Details)
		if err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
		details = encoded
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO user_activities (id, user_id, action, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, activity.ID, activity.UserID, activity.Action, string(details),
		activity.IPAddress, activity.UserAgent, activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}

	return nil
}
