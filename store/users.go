package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
)

type UserStore struct {
	db *sqlx.DB
}

type userRow struct {
	ID           string        `db:"id"`
	Email        string        `db:"email"`
	Name         string        `db:"name"`
	PasswordHash string        `db:"password_hash"`
	Plan         string        `db:"plan"`
	IsActive     bool          `db:"is_active"`
	CreatedAt    int64         `db:"created_at"`
	UpdatedAt    int64         `db:"updated_at"`
	LastLogin    sql.NullInt64 `db:"last_login"`
}

func (row userRow) toModel() *model.User {
	return &model.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		Plan:         model.Plan(row.Plan),
		IsActive:     row.IsActive,
		CreatedAt:    fromMillis(row.CreatedAt),
		LastLogin:    fromNullMillis(row.LastLogin),
	}
}

// Create fails with ErrDuplicate when the e-mail address is taken.
func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	row := userRow{
		ID:           u.ID,
		Email:        strings.ToLower(u.Email),
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Plan:         string(u.Plan),
		IsActive:     u.IsActive,
		CreatedAt:    toMillis(u.CreatedAt),
		UpdatedAt:    toMillis(u.CreatedAt),
		LastLogin:    toNullMillis(u.LastLogin),
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO users (id, email, name, password_hash, plan, is_active, created_at, updated_at, last_login)
VALUES (:id, :email, :name, :password_hash, :plan, :is_active, :created_at, :updated_at, :last_login)`, row)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return errors.Wrap(err, "insert user")
}

// FindByEmail only returns active users.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.get(ctx, "SELECT * FROM users WHERE email = ? AND is_active = 1", strings.ToLower(email))
}

// FindByID only returns active users.
func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.get(ctx, "SELECT * FROM users WHERE id = ? AND is_active = 1", id)
}

func (s *UserStore) get(ctx context.Context, query string, args ...any) (*model.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "select user")
	}
	return row.toModel(), nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?",
		toMillis(at), toMillis(at), id)
	return errors.Wrap(err, "update last login")
}
