// Package store persists named blobs for the local snapshot. Backends are
// plain key/value stores; nothing here is transactional across keys.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has never been set or was removed.
var ErrNotFound = errors.New("key not found")

// KV is a minimal key/value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver    string // "sqlite", "redis" or "memory"
	Path      string // sqlite file
	RedisURL  string
	Namespace string // key prefix for the redis backend
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch opts.Driver {
	case "", "sqlite":
		s, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		r, err := OpenRedis(ctx, opts.RedisURL, opts.Namespace)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
