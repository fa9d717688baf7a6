// Package session owns the live State and runs fetches against the remote
// gateway. Every fetch dispatches FetchStarted synchronously, runs the call in
// its own goroutine and applies the outcome when it lands. Without explicit
// cancellation the last response to arrive wins.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/matheuskafuri/postview/internal/api"
	"github.com/matheuskafuri/postview/internal/model"
	"github.com/matheuskafuri/postview/internal/state"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Gateway is the subset of the API client the session drives.
type Gateway interface {
	GetPostPage(ctx context.Context, page, limit int) ([]model.Post, error)
	GetUsers(ctx context.Context) ([]model.User, error)
	GetUserByID(ctx context.Context, id int) (model.User, error)
}

// Observer is told about every applied event together with the resulting
// state. Observers run synchronously on the dispatching goroutine, in event
// order, and must not call back into mutating Session methods.
type Observer interface {
	Observe(ev state.Event, st state.State)
}

type ObserverFunc func(ev state.Event, st state.State)

func (f ObserverFunc) Observe(ev state.Event, st state.State) { f(ev, st) }

type Option func(*Session)

// WithSupersede makes a new fetch cancel any in-flight fetch of the same kind.
func WithSupersede() Option {
	return func(s *Session) { s.supersede = true }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithObserver(o Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, o) }
}

type Session struct {
	gw        Gateway
	logger    *slog.Logger
	now       func() time.Time
	supersede bool

	// notify serializes apply+notify so observers see events in order.
	notify sync.Mutex

	mu        sync.Mutex
	st        state.State
	inflight  map[*Task]struct{}
	latest    map[Kind]*Task
	observers []Observer

	wg sync.WaitGroup
}

func New(gw Gateway, pageSize int, opts ...Option) *Session {
	s := &Session{
		gw:       gw,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		st:       state.Initial(pageSize),
		inflight: make(map[*Task]struct{}),
		latest:   make(map[Kind]*Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers o for every event applied from now on.
func (s *Session) Subscribe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// State returns a copy of the current state.
func (s *Session) State() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

func (s *Session) Filtered() []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Post(nil), s.st.Filtered...)
}

func (s *Session) Status() state.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Status
}

// ErrorMessage is the last fetch failure, or "" once cleared or superseded.
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Error
}

func (s *Session) Pagination() state.Pagination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Pagination
}

// InFlight is the number of fetches that have started and not yet settled.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// RequestPostPage fetches one page of posts. Page 1 replaces the list and
// later pages append to it.
func (s *Session) RequestPostPage(ctx context.Context, page, pageSize int) (*Task, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d", ErrInvalidArgument, page)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("%w: page size %d", ErrInvalidArgument, pageSize)
	}
	t, _ := s.start(ctx, KindPosts, nil, s.postPage(page, pageSize))
	return t, nil
}

func (s *Session) RequestAllUsers(ctx context.Context) *Task {
	t, _ := s.start(ctx, KindUsers, nil, func(ctx context.Context) (state.Event, error) {
		users, err := s.gw.GetUsers(ctx)
		if err != nil {
			return nil, err
		}
		return state.UsersFetched{Users: users, At: s.now()}, nil
	})
	return t
}

// RequestUserByID fetches one user into the selected-user slot.
func (s *Session) RequestUserByID(ctx context.Context, id int) (*Task, error) {
	if id < 1 {
		return nil, fmt.Errorf("%w: user id %d", ErrInvalidArgument, id)
	}
	t, _ := s.start(ctx, KindUser, nil, func(ctx context.Context) (state.Event, error) {
		user, err := s.gw.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return state.UserFetched{User: user}, nil
	})
	return t, nil
}

// LoadMore requests the next page when the list allows it. The check and the
// start are atomic, so two concurrent calls never fetch the same page twice.
// It returns false when there was nothing to do.
func (s *Session) LoadMore(ctx context.Context) (*Task, bool) {
	var page, size int
	guard := func(st state.State) bool {
		if !state.CanLoadMore(st) {
			return false
		}
		page, size = st.NextPage(), st.Pagination.PageSize
		return true
	}
	return s.start(ctx, KindPosts, guard, func(ctx context.Context) (state.Event, error) {
		return s.postPage(page, size)(ctx)
	})
}

// Refresh fetches page 1 again. The loaded pages stay until it succeeds, so a
// failed refresh leaves the old list in place.
func (s *Session) Refresh(ctx context.Context) *Task {
	var size int
	guard := func(st state.State) bool {
		size = st.Pagination.PageSize
		return true
	}
	t, _ := s.start(ctx, KindPosts, guard, func(ctx context.Context) (state.Event, error) {
		return s.postPage(state.InitialPage, size)(ctx)
	})
	return t
}

func (s *Session) postPage(page, size int) func(context.Context) (state.Event, error) {
	return func(ctx context.Context) (state.Event, error) {
		posts, err := s.gw.GetPostPage(ctx, page, size)
		if err != nil {
			return nil, err
		}
		return state.PostsFetched{Posts: posts, Page: page, Limit: size, At: s.now()}, nil
	}
}

func (s *Session) SetSearchQuery(q string) { s.dispatch(state.QueryChanged{Query: q}) }

// Restore seeds the session from a snapshot. A nil slice leaves that list
// untouched; an empty one replaces it.
func (s *Session) Restore(posts []model.Post, users []model.User) {
	s.dispatch(state.SnapshotRestored{Posts: posts, Users: users})
}

// ResumePagination moves the cursor past posts restored from a snapshot, so
// the next LoadMore asks for the first page not yet loaded. A short last page
// means nothing more is expected.
func (s *Session) ResumePagination() {
	s.apply(func(st state.State) state.Event {
		n, size := len(st.Posts), st.Pagination.PageSize
		if n == 0 || size < 1 {
			return nil
		}
		page := (n + size - 1) / size
		more := n%size == 0
		return state.PaginationUpdated{Page: &page, TotalItems: &n, HasMore: &more}
	})
}

// ResetPagination drops the loaded pages. Users and the query are kept.
func (s *Session) ResetPagination() { s.dispatch(state.PaginationReset{}) }

func (s *Session) UpdatePagination(u state.PaginationUpdated) { s.dispatch(u) }

func (s *Session) SelectPost(p model.Post) { s.dispatch(state.PostSelected{Post: p}) }

func (s *Session) ClearSelectedPost() { s.dispatch(state.PostCleared{}) }

func (s *Session) SelectUser(u model.User) { s.dispatch(state.UserSelected{User: u}) }

func (s *Session) ClearSelectedUser() { s.dispatch(state.UserCleared{}) }

func (s *Session) ClearError() { s.dispatch(state.ErrorCleared{}) }

// ClearAll resets the session to its initial state. Fetches already in
// flight are not canceled and still land.
func (s *Session) ClearAll() { s.dispatch(state.Cleared{}) }

// CancelAll cancels every in-flight fetch.
func (s *Session) CancelAll() {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.inflight))
	for t := range s.inflight {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()
	for _, t := range tasks {
		t.Cancel()
	}
}

// Wait blocks until every fetch goroutine has returned or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels outstanding fetches and waits for them to settle.
func (s *Session) Close(ctx context.Context) error {
	s.CancelAll()
	return s.Wait(ctx)
}

func (s *Session) dispatch(ev state.Event) {
	s.apply(func(state.State) state.Event { return ev })
}

// apply runs decide under the state lock and reduces the event it returns.
// A nil event leaves the state alone and notifies nobody.
func (s *Session) apply(decide func(st state.State) state.Event) state.Event {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	ev := decide(s.st)
	if ev == nil {
		s.mu.Unlock()
		return nil
	}
	s.st = state.Reduce(s.st, ev)
	st := s.st
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o.Observe(ev, st)
	}
	return ev
}

// start registers a task and dispatches FetchStarted in one step. guard, when
// set, can veto the start by inspecting the current state.
func (s *Session) start(ctx context.Context, kind Kind, guard func(state.State) bool, fetch func(context.Context) (state.Event, error)) (*Task, bool) {
	t := newTask(ctx, kind)
	var superseded *Task

	started := s.apply(func(st state.State) state.Event {
		if guard != nil && !guard(st) {
			return nil
		}
		if s.supersede {
			superseded = s.latest[kind]
		}
		s.latest[kind] = t
		s.inflight[t] = struct{}{}
		return state.FetchStarted{}
	})
	if started == nil {
		t.cancel()
		return nil, false
	}
	if superseded != nil {
		s.logger.Debug("superseding fetch", "kind", kind)
		superseded.Cancel()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(t, fetch)
	}()
	return t, true
}

func (s *Session) run(t *Task, fetch func(context.Context) (state.Event, error)) {
	defer t.cancel()
	defer close(t.done)

	begin := time.Now()
	ev, err := fetch(t.ctx)

	s.apply(func(st state.State) state.Event {
		delete(s.inflight, t)
		if s.latest[t.kind] == t {
			delete(s.latest, t.kind)
		}

		if t.settle(err) {
			s.logger.Debug("fetch canceled", "kind", t.kind)
			if len(s.inflight) > 0 {
				return nil
			}
			return state.FetchCanceled{}
		}
		if err != nil {
			s.logger.Warn("fetch failed", "kind", t.kind, "error", err, "duration", time.Since(begin))
			return state.FetchFailed{Message: api.Message(err)}
		}
		s.logger.Debug("fetch done", "kind", t.kind, "duration", time.Since(begin))
		return ev
	})
}
