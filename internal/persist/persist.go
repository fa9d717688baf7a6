// Package persist mirrors fetched data into the snapshot store and reads it
// back at startup.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matheuskafuri/postview/internal/model"
	"github.com/matheuskafuri/postview/internal/state"
	"github.com/matheuskafuri/postview/internal/store"
)

const defaultWriteTimeout = 5 * time.Second

// Writer is a session observer. After a page of posts or the user list lands
// it writes the canonical list and the sync time, each as an independent
// background write. A failed write is logged and otherwise ignored.
type Writer struct {
	snaps   *store.Snapshots
	logger  *slog.Logger
	timeout time.Duration

	mu       sync.Mutex
	pending  map[string]func(context.Context) error
	running  map[string]bool
	lastSync time.Time
	wg       sync.WaitGroup
}

func NewWriter(snaps *store.Snapshots, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{
		snaps:   snaps,
		logger:  logger,
		timeout: defaultWriteTimeout,
		pending: make(map[string]func(context.Context) error),
		running: make(map[string]bool),
	}
}

func (w *Writer) Observe(ev state.Event, st state.State) {
	switch ev := ev.(type) {
	case state.PostsFetched:
		posts := st.Posts
		w.write(store.KeyPosts, func(ctx context.Context) error { return w.snaps.SavePosts(ctx, posts) })
		w.writeLastSync(ev.At)
	case state.UsersFetched:
		users := st.Users
		w.write(store.KeyUsers, func(ctx context.Context) error { return w.snaps.SaveUsers(ctx, users) })
		w.writeLastSync(ev.At)
	}
}

// writeLastSync only ever moves the stored sync time forward.
func (w *Writer) writeLastSync(at time.Time) {
	w.mu.Lock()
	if !at.After(w.lastSync) {
		w.mu.Unlock()
		return
	}
	w.lastSync = at
	w.mu.Unlock()
	w.write(store.KeyLastSync, func(ctx context.Context) error { return w.snaps.SaveLastSync(ctx, at) })
}

// write queues fn as the next write for key. Each key has at most one write
// running; while it runs, newer values replace older queued ones, so a slow
// write can never land after the write of a later state.
func (w *Writer) write(key string, fn func(context.Context) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[key] = fn
	if w.running[key] {
		return
	}
	w.running[key] = true
	w.wg.Add(1)
	go w.drain(key)
}

func (w *Writer) drain(key string) {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		fn, ok := w.pending[key]
		if !ok {
			w.running[key] = false
			w.mu.Unlock()
			return
		}
		delete(w.pending, key)
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := fn(ctx)
		cancel()
		if err != nil {
			w.logger.Warn("snapshot write failed", "key", key, "error", err)
			continue
		}
		w.logger.Debug("snapshot written", "key", key)
	}
}

// Flush waits for every pending write or for ctx to end.
func (w *Writer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot is what was found on disk. A nil list was absent or unreadable.
type Snapshot struct {
	Posts    []model.Post
	Users    []model.User
	LastSync time.Time
}

func (s Snapshot) Empty() bool {
	return s.Posts == nil && s.Users == nil
}

// LoadSnapshot reads the three snapshot keys concurrently. Missing or corrupt
// keys come back absent; only a canceled ctx is reported as an error.
func LoadSnapshot(ctx context.Context, snaps *store.Snapshots, logger *slog.Logger) (Snapshot, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		posts, err := snaps.LoadPosts(gctx)
		if err != nil {
			return absent(gctx, logger, store.KeyPosts, err)
		}
		snap.Posts = posts
		return nil
	})
	g.Go(func() error {
		users, err := snaps.LoadUsers(gctx)
		if err != nil {
			return absent(gctx, logger, store.KeyUsers, err)
		}
		snap.Users = users
		return nil
	})
	g.Go(func() error {
		ts, err := snaps.LoadLastSync(gctx)
		if err != nil {
			return absent(gctx, logger, store.KeyLastSync, err)
		}
		snap.LastSync = ts
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func absent(ctx context.Context, logger *slog.Logger, key string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("snapshot key absent", "key", key)
		return nil
	}
	logger.Warn("snapshot key unreadable", "key", key, "error", err)
	return nil
}
