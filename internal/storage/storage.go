package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Package storage keeps the durable set of review keys that were already delivered.

// Store tracks seen review keys.
type Store interface {
	Close() error
	Seen(key string) (bool, error)
	Mark(key string) error
	// FirstRun reports whether no seen-state existed when the store was opened.
	FirstRun() bool
}

// Options controls retention and backend connection settings.
type Options struct {
	// TTL of a seen key; zero keeps keys forever.
	TTL             time.Duration
	CleanupInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

const (
	TypeNone   = "none"
	TypeBBolt  = "bbolt"
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"

	boltFileName   = "reviews.db"
	sqliteFileName = "reviews.sqlite"

	defaultCleanupInterval = 12 * time.Hour
	defaultRedisPrefix     = "review-relay"
)

// NewStore creates the configured storage backend. File-based backends live in dir.
func NewStore(typ, dir string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeNone, "disabled":
		return noopStore{}, nil
	case TypeBBolt:
		if strings.TrimSpace(dir) == "" {
			return nil, fmt.Errorf("bbolt storage requires a directory")
		}
		return openBolt(filepath.Join(dir, boltFileName), opts)
	case TypeSQLite:
		if strings.TrimSpace(dir) == "" {
			return nil, fmt.Errorf("sqlite storage requires a directory")
		}
		return openSQLite(filepath.Join(dir, sqliteFileName), opts)
	case TypeRedis:
		return openRedis(opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL < 0 {
		opts.TTL = 0
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if strings.TrimSpace(opts.RedisPrefix) == "" {
		opts.RedisPrefix = defaultRedisPrefix
	}
	return opts
}

// expiryFor returns the unix expiry stored with a key; zero means never.
func expiryFor(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(ttl).Unix()
}

// alive reports whether a key stored with the given unix expiry is still valid at now.
func alive(expiry int64, now time.Time) bool {
	return expiry == 0 || expiry > now.Unix()
}

// noopStore never remembers anything. Every run looks like the first one.
type noopStore struct{}

func (noopStore) Close() error              { return nil }
func (noopStore) Seen(string) (bool, error) { return false, nil }
func (noopStore) Mark(string) error         { return nil }
func (noopStore) FirstRun() bool            { return true }
