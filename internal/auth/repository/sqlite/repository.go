package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mapofwonders/auth-service/internal/auth/domain"
	autherror "github.com/mapofwonders/auth-service/internal/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository stores users in SQLite. Email uniqueness and lookups rely
// on the NOCASE collation of the email column.
type SQLiteRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now:     time.Now,
	}
}

func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, remember_me, created_at, updated_at
		FROM users
		WHERE email = ?
		LIMIT 1`, email)

	var user domain.User
	err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&user.PasswordHash, &user.RememberMe, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, remember_me, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash,
		user.RememberMe, user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return autherror.ErrEmailAlreadyInUse
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, fields domain.UserUpdate) error {
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

	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return autherror.ErrUserNotFound
	}

	return nil
}

func (r *SQLiteRepository) RecordActivity(ctx context.Context, activity *domain.Activity) error {
	details := []byte("{}")
	if len(activity.Details) > 0 {
		encoded, err := json.Marshal(activity.Details)
		if err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
		details = encoded
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_activities (id, user_id, action, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activity.ID, activity.UserID, activity.Action, string(details),
		activity.IPAddress, activity.UserAgent, activity.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// extended result codes disabled
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
