package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS seen_reviews (
	key        TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL DEFAULT 0
)`

// sqliteStore keeps seen keys in a single SQLite table.
type sqliteStore struct {
	db       *sql.DB
	ttl      time.Duration
	firstRun bool
}

func openSQLite(path string, opts Options) (Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	firstRun, err := fileMissing(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	store := &sqliteStore{db: db, ttl: opts.TTL, firstRun: firstRun}
	if err := store.deleteExpired(time.Now()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *sqliteStore) Close() error   { return s.db.Close() }
func (s *sqliteStore) FirstRun() bool { return s.firstRun }

func (s *sqliteStore) Seen(key string) (bool, error) {
	var expiry int64
	err := s.db.QueryRow(`SELECT expires_at FROM seen_reviews WHERE key = ?`, key).Scan(&expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen %s: %w", key, err)
	}
	return alive(expiry, time.Now()), nil
}

func (s *sqliteStore) Mark(key string) error {
	_, err := s.db.Exec(
		`INSERT INTO seen_reviews (key, expires_at) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at`,
		key, expiryFor(time.Now(), s.ttl),
	)
	if err != nil {
		return fmt.Errorf("mark seen %s: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) deleteExpired(now time.Time) error {
	if s.ttl <= 0 {
		return nil
	}
	if _, err := s.db.Exec(`DELETE FROM seen_reviews WHERE expires_at != 0 AND expires_at <= ?`, now.Unix()); err != nil {
		return fmt.Errorf("delete expired: %w", err)
	}
	return nil
}
