package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Concurrent writers queue on the busy timeout instead of failing with
// SQLITE_BUSY; _txlock=immediate takes the write lock at BEGIN so that a
// read-then-write transaction cannot deadlock.
const dsnParams = "_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + dsnParams
	}
	return path + "?" + dsnParams
}

func Open(path string) (db *sqlx.DB, err error) {
	raw, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return
	}

	// db tuning options
	raw.SetMaxOpenConns(20)
	raw.SetMaxIdleConns(10)
	raw.SetConnMaxIdleTime(5 * time.Minute)
	raw.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(raw)
	if err != nil {
		raw.Close()
		return
	}

	db = sqlx.NewDb(raw, "sqlite3")
	return
}
