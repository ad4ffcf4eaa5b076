package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// UserStore persists admin accounts.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*AdminUser, error)
	GetByID(ctx context.Context, id string) (*AdminUser, error)
	Create(ctx context.Context, user *AdminUser) error
	TouchLogin(ctx context.Context, id string) error
}

type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const userColumns = `id, email, name, role, password_hash, created_at, last_login_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*AdminUser, error) {
	var u AdminUser
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*AdminUser, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM admin_users WHERE LOWER(email) = LOWER($1)", strings.TrimSpace(email)))
}

func (s *PostgresUserStore) GetByID(ctx context.Context, id string) (*AdminUser, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM admin_users WHERE id = $1", id))
}

func (s *PostgresUserStore) Create(ctx context.Context, user *AdminUser) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO admin_users (id, email, name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		user.ID, user.Email, user.Name, user.Role, user.PasswordHash,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) TouchLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE admin_users SET last_login_at = NOW() WHERE id = $1", id)
	return err
}
