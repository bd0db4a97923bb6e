package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("unique violation")
	ErrLimitReached = errors.New("submission limit reached")
)

type Store struct {
	Forms       *FormStore
	Submissions *SubmissionStore
	Users       *UserStore
	Tokens      *TokenStore
}

func New(db *sqlx.DB) *Store {
	return &Store{
		Forms:       &FormStore{db: db},
		Submissions: &SubmissionStore{db: db},
		Users:       &UserStore{db: db},
		Tokens:      &TokenStore{db: db},
	}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// times are stored as unix milliseconds

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
