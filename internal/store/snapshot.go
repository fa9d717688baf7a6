package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/matheuskafuri/postview/internal/model"
)

// Snapshot keys. Each is written independently; there is no cross-key atomicity.
const (
	KeyPosts    = "@posts_data"
	KeyUsers    = "@users_data"
	KeyLastSync = "@last_sync"
)

// Snapshots reads and writes the persisted copy of the canonical collections.
type Snapshots struct {
	kv KV
}

func NewSnapshots(kv KV) *Snapshots {
	return &Snapshots{kv: kv}
}

func (s *Snapshots) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, data)
}

func (s *Snapshots) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func (s *Snapshots) SavePosts(ctx context.Context, posts []model.Post) error {
	if posts == nil {
		posts = []model.Post{}
	}
	return s.setJSON(ctx, KeyPosts, posts)
}

// LoadPosts returns ErrNotFound when no posts were ever saved.
func (s *Snapshots) LoadPosts(ctx context.Context) ([]model.Post, error) {
	var posts []model.Post
	if err := s.getJSON(ctx, KeyPosts, &posts); err != nil {
		return nil, err
	}
	if posts == nil {
		return nil, ErrNotFound
	}
	return posts, nil
}

func (s *Snapshots) SaveUsers(ctx context.Context, users []model.User) error {
	if users == nil {
		users = []model.User{}
	}
	return s.setJSON(ctx, KeyUsers, users)
}

func (s *Snapshots) LoadUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.getJSON(ctx, KeyUsers, &users); err != nil {
		return nil, err
	}
	if users == nil {
		return nil, ErrNotFound
	}
	return users, nil
}

// SaveLastSync stores t as epoch milliseconds.
func (s *Snapshots) SaveLastSync(ctx context.Context, t time.Time) error {
	return s.kv.Set(ctx, KeyLastSync, []byte(strconv.FormatInt(t.UnixMilli(), 10)))
}

func (s *Snapshots) LoadLastSync(ctx context.Context) (time.Time, error) {
	data, err := s.kv.Get(ctx, KeyLastSync)
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decoding %s: %w", KeyLastSync, err)
	}
	return time.UnixMilli(ms), nil
}

// NeedsRefresh reports whether the last sync is missing or older than maxAge.
func (s *Snapshots) NeedsRefresh(ctx context.Context, maxAge time.Duration) bool {
	t, err := s.LoadLastSync(ctx)
	if err != nil {
		return true
	}
	return time.Since(t) > maxAge
}

// Clear removes the three snapshot keys, leaving anything else in the store.
func (s *Snapshots) Clear(ctx context.Context) error {
	var errs []error
	for _, k := range []string{KeyPosts, KeyUsers, KeyLastSync} {
		if err := s.kv.Remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
