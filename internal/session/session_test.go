package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/matheuskafuri/postview/internal/api"
	"github.com/matheuskafuri/postview/internal/model"
	"github.com/matheuskafuri/postview/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	postPage func(ctx context.Context, page, limit int) ([]model.Post, error)
	users    func(ctx context.Context) ([]model.User, error)
	user     func(ctx context.Context, id int) (model.User, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		postPage: func(_ context.Context, page, limit int) ([]model.Post, error) {
			return makePosts((page-1)*limit+1, limit), nil
		},
		users: func(context.Context) ([]model.User, error) {
			return []model.User{{ID: 1, Name: "Leanne Graham"}, {ID: 2, Name: "Ervin Howell"}}, nil
		},
		user: func(_ context.Context, id int) (model.User, error) {
			return model.User{ID: id, Name: fmt.Sprintf("user %d", id)}, nil
		},
	}
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) GetPostPage(ctx context.Context, page, limit int) ([]model.Post, error) {
	f.record(fmt.Sprintf("posts %d/%d", page, limit))
	return f.postPage(ctx, page, limit)
}

func (f *fakeGateway) GetUsers(ctx context.Context) ([]model.User, error) {
	f.record("users")
	return f.users(ctx)
}

func (f *fakeGateway) GetUserByID(ctx context.Context, id int) (model.User, error) {
	f.record(fmt.Sprintf("user %d", id))
	return f.user(ctx, id)
}

func makePosts(from, n int) []model.Post {
	out := make([]model.Post, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, model.Post{ID: i, UserID: 1, Title: fmt.Sprintf("post %d", i)})
	}
	return out
}

func wait(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-task.Done():
	case <-ctx.Done():
		t.Fatalf("task %s did not settle", task.Kind())
	}
	return task.Wait(ctx)
}

func closeSession(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
}

func TestRequestPostPage(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := New(newFakeGateway(), 20, WithClock(func() time.Time { return now }))
	defer closeSession(t, s)

	task, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, KindPosts, task.Kind())
	require.NoError(t, wait(t, task))

	st := s.State()
	assert.Len(t, st.Posts, 20)
	assert.Equal(t, st.Posts, st.Filtered)
	assert.Equal(t, state.StatusSucceeded, st.Status)
	assert.Equal(t, state.Pagination{CurrentPage: 1, PageSize: 20, TotalItems: 20, HasMore: true}, st.Pagination)
	assert.True(t, st.LastFetch.Equal(now))
	assert.Equal(t, 0, s.InFlight())
}

func TestInvalidArguments(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, 20)
	defer closeSession(t, s)

	_, err := s.RequestPostPage(context.Background(), 0, 20)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.RequestPostPage(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.RequestUserByID(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, state.Initial(20), s.State())
	assert.Empty(t, gw.Calls())
}

func TestFetchStartedIsSynchronous(t *testing.T) {
	gate := make(chan struct{})
	gw := newFakeGateway()
	gw.postPage = func(_ context.Context, page, limit int) ([]model.Post, error) {
		<-gate
		return makePosts(1, limit), nil
	}
	s := New(gw, 20)
	defer closeSession(t, s)

	s.SetSearchQuery("x")
	s.ClearError()
	task, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)

	assert.Equal(t, state.StatusLoading, s.Status())
	assert.Equal(t, 1, s.InFlight())
	assert.Nil(t, task.Err())

	close(gate)
	require.NoError(t, wait(t, task))
	assert.Equal(t, state.StatusSucceeded, s.Status())
}

func TestFailureIsCapturedInState(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, 20)
	defer closeSession(t, s)

	task, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	gw.postPage = func(context.Context, int, int) ([]model.Post, error) {
		return nil, &api.Error{Message: "No internet connection", Code: api.CodeNetwork}
	}
	task, err = s.RequestPostPage(context.Background(), 2, 20)
	require.NoError(t, err)
	assert.ErrorIs(t, wait(t, task), api.ErrNetwork)

	st := s.State()
	assert.Equal(t, state.StatusFailed, st.Status)
	assert.Equal(t, "No internet connection", st.Error)
	assert.Equal(t, "No internet connection", s.ErrorMessage())
	assert.Len(t, st.Posts, 20)
	assert.Equal(t, 1, st.Pagination.CurrentPage)

	s.ClearError()
	assert.Empty(t, s.ErrorMessage())
}

func TestLastResponseWins(t *testing.T) {
	gates := map[int]chan struct{}{5: make(chan struct{}), 3: make(chan struct{})}
	gw := newFakeGateway()
	gw.postPage = func(_ context.Context, page, limit int) ([]model.Post, error) {
		<-gates[limit]
		return makePosts(1, limit), nil
	}
	s := New(gw, 20)
	defer closeSession(t, s)

	first, err := s.RequestPostPage(context.Background(), 1, 5)
	require.NoError(t, err)
	second, err := s.RequestPostPage(context.Background(), 1, 3)
	require.NoError(t, err)

	close(gates[3])
	require.NoError(t, wait(t, second))
	assert.Len(t, s.State().Posts, 3)

	close(gates[5])
	require.NoError(t, wait(t, first))
	assert.Len(t, s.State().Posts, 5)
}

func TestCanceledTaskNeverApplies(t *testing.T) {
	gate := make(chan struct{})
	gw := newFakeGateway()
	// ignores ctx so the response arrives after the cancel
	gw.postPage = func(_ context.Context, page, limit int) ([]model.Post, error) {
		<-gate
		return makePosts(1, limit), nil
	}
	var events []state.Event
	s := New(gw, 20, WithObserver(ObserverFunc(func(ev state.Event, _ state.State) {
		events = append(events, ev)
	})))
	defer closeSession(t, s)

	task, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	task.Cancel()
	close(gate)

	assert.ErrorIs(t, wait(t, task), context.Canceled)
	assert.True(t, task.Canceled())

	st := s.State()
	assert.Empty(t, st.Posts)
	assert.Equal(t, state.StatusIdle, st.Status)
	assert.Equal(t, []state.Event{state.FetchStarted{}, state.FetchCanceled{}}, events)
}

func TestCancelSettledTaskIsNoop(t *testing.T) {
	s := New(newFakeGateway(), 20)
	defer closeSession(t, s)

	task, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	task.Cancel()
	assert.False(t, task.Canceled())
	assert.NoError(t, task.Err())
	assert.Len(t, s.State().Posts, 20)
}

func TestCancelKeepsLoadingWhileOthersInFlight(t *testing.T) {
	usersGate := make(chan struct{})
	gw := newFakeGateway()
	gw.postPage = func(ctx context.Context, page, limit int) ([]model.Post, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	gw.users = func(context.Context) ([]model.User, error) {
		<-usersGate
		return []model.User{{ID: 1}}, nil
	}
	s := New(gw, 20)
	defer closeSession(t, s)

	posts, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	users := s.RequestAllUsers(context.Background())

	posts.Cancel()
	assert.ErrorIs(t, wait(t, posts), context.Canceled)
	assert.Equal(t, state.StatusLoading, s.Status())

	close(usersGate)
	require.NoError(t, wait(t, users))
	assert.Equal(t, state.StatusSucceeded, s.Status())
	assert.Len(t, s.State().Users, 1)
}

func TestParentContextCancels(t *testing.T) {
	gw := newFakeGateway()
	gw.users = func(ctx context.Context) ([]model.User, error) {
		<-ctx.Done()
		return nil, &api.Error{Message: "Request canceled", Code: api.CodeCanceled, Err: ctx.Err()}
	}
	s := New(gw, 20)
	defer closeSession(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	task := s.RequestAllUsers(ctx)
	cancel()

	assert.ErrorIs(t, wait(t, task), context.Canceled)
	assert.Equal(t, state.StatusIdle, s.Status())
	assert.Empty(t, s.ErrorMessage())
}

func TestSupersede(t *testing.T) {
	gw := newFakeGateway()
	gw.postPage = func(ctx context.Context, page, limit int) ([]model.Post, error) {
		if limit == 5 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return makePosts(1, limit), nil
	}
	s := New(gw, 20, WithSupersede())
	defer closeSession(t, s)

	first, err := s.RequestPostPage(context.Background(), 1, 5)
	require.NoError(t, err)
	second, err := s.RequestPostPage(context.Background(), 1, 3)
	require.NoError(t, err)

	assert.ErrorIs(t, wait(t, first), context.Canceled)
	require.NoError(t, wait(t, second))

	st := s.State()
	assert.Len(t, st.Posts, 3)
	assert.Equal(t, state.StatusSucceeded, st.Status)
}

func TestSupersedeIgnoresOtherKinds(t *testing.T) {
	gate := make(chan struct{})
	gw := newFakeGateway()
	gw.postPage = func(_ context.Context, page, limit int) ([]model.Post, error) {
		<-gate
		return makePosts(1, limit), nil
	}
	s := New(gw, 20, WithSupersede())
	defer closeSession(t, s)

	posts, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	users := s.RequestAllUsers(context.Background())
	require.NoError(t, wait(t, users))

	close(gate)
	require.NoError(t, wait(t, posts))
	assert.False(t, posts.Canceled())
	assert.Len(t, s.State().Posts, 20)
}

// The status field is shared by every fetch kind: a users fetch finishing
// reports succeeded while a page is still loading.
func TestStatusIsShared(t *testing.T) {
	gate := make(chan struct{})
	gw := newFakeGateway()
	gw.postPage = func(_ context.Context, page, limit int) ([]model.Post, error) {
		<-gate
		return makePosts(1, limit), nil
	}
	s := New(gw, 20)
	defer closeSession(t, s)

	posts, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	require.NoError(t, wait(t, s.RequestAllUsers(context.Background())))

	assert.Equal(t, state.StatusSucceeded, s.Status())
	assert.Equal(t, 1, s.InFlight())

	close(gate)
	require.NoError(t, wait(t, posts))
}

func TestRequestUserByID(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, 20)
	defer closeSession(t, s)

	require.NoError(t, wait(t, s.RequestAllUsers(context.Background())))
	task, err := s.RequestUserByID(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	st := s.State()
	require.NotNil(t, st.SelectedUser)
	assert.Equal(t, 7, st.SelectedUser.ID)
	assert.Len(t, st.Users, 2)
	assert.Equal(t, []string{"users", "user 7"}, gw.Calls())
}

func TestLoadMore(t *testing.T) {
	gate := make(chan struct{})
	gw := newFakeGateway()
	s := New(gw, 20)
	defer closeSession(t, s)

	task, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	gw.postPage = func(_ context.Context, page, limit int) ([]model.Post, error) {
		<-gate
		return makePosts((page-1)*limit+1, 4), nil
	}
	more, ok := s.LoadMore(context.Background())
	require.True(t, ok)

	// already loading
	_, ok = s.LoadMore(context.Background())
	assert.False(t, ok)

	close(gate)
	require.NoError(t, wait(t, more))

	st := s.State()
	assert.Len(t, st.Posts, 24)
	assert.Equal(t, 2, st.Pagination.CurrentPage)
	assert.False(t, st.Pagination.HasMore)

	// exhausted
	_, ok = s.LoadMore(context.Background())
	assert.False(t, ok)
	assert.Equal(t, []string{"posts 1/20", "posts 2/20"}, gw.Calls())
}

func TestLoadMoreBlockedWhileSearching(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, 20)
	defer closeSession(t, s)

	task, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	s.SetSearchQuery("post 1")
	_, ok := s.LoadMore(context.Background())
	assert.False(t, ok)

	s.SetSearchQuery("")
	more, ok := s.LoadMore(context.Background())
	require.True(t, ok)
	require.NoError(t, wait(t, more))
	assert.Len(t, s.State().Posts, 40)
}

func TestRefresh(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, 10)
	defer closeSession(t, s)

	task, err := s.RequestPostPage(context.Background(), 1, 10)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))
	more, ok := s.LoadMore(context.Background())
	require.True(t, ok)
	require.NoError(t, wait(t, more))
	require.Len(t, s.State().Posts, 20)

	require.NoError(t, wait(t, s.Refresh(context.Background())))
	st := s.State()
	assert.Len(t, st.Posts, 10)
	assert.Equal(t, 1, st.Pagination.CurrentPage)
	assert.Equal(t, []string{"posts 1/10", "posts 2/10", "posts 1/10"}, gw.Calls())
}

func TestFailedRefreshKeepsPosts(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, 10)
	defer closeSession(t, s)

	task, err := s.RequestPostPage(context.Background(), 1, 10)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))
	before := s.State().Posts

	gw.postPage = func(context.Context, int, int) ([]model.Post, error) {
		return nil, &api.Error{Message: "Request timeout", Code: api.CodeTimeout}
	}
	assert.ErrorIs(t, wait(t, s.Refresh(context.Background())), api.ErrTimeout)

	st := s.State()
	assert.Equal(t, before, st.Posts)
	assert.Len(t, st.Filtered, 10)
	assert.Equal(t, 10, st.Pagination.TotalItems)
	assert.Equal(t, state.StatusFailed, st.Status)
	assert.Equal(t, "Request timeout", st.Error)
}

func TestResumePagination(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, 20)
	defer closeSession(t, s)

	s.Restore(makePosts(1, 40), nil)
	s.ResumePagination()
	p := s.Pagination()
	assert.Equal(t, 2, p.CurrentPage)
	assert.Equal(t, 40, p.TotalItems)
	assert.True(t, p.HasMore)

	more, ok := s.LoadMore(context.Background())
	require.True(t, ok)
	require.NoError(t, wait(t, more))
	assert.Equal(t, []string{"posts 3/20"}, gw.Calls())
	posts := s.State().Posts
	require.Len(t, posts, 60)
	assert.Equal(t, 41, posts[40].ID)
}

func TestResumePaginationShortLastPage(t *testing.T) {
	s := New(newFakeGateway(), 20)
	defer closeSession(t, s)

	s.ResumePagination()
	assert.Equal(t, state.Initial(20).Pagination, s.Pagination())

	s.Restore(makePosts(1, 45), nil)
	s.ResumePagination()
	p := s.Pagination()
	assert.Equal(t, 3, p.CurrentPage)
	assert.False(t, p.HasMore)
	_, ok := s.LoadMore(context.Background())
	assert.False(t, ok)
}

func TestSynchronousOperations(t *testing.T) {
	s := New(newFakeGateway(), 20)
	defer closeSession(t, s)

	s.Restore(makePosts(1, 3), nil)
	assert.Len(t, s.State().Posts, 3)
	assert.Len(t, s.Filtered(), 3)
	assert.Empty(t, s.State().Users)

	s.Restore(nil, []model.User{{ID: 4}})
	assert.Len(t, s.State().Posts, 3)
	assert.Len(t, s.State().Users, 1)

	s.SetSearchQuery("post 2")
	require.Len(t, s.Filtered(), 1)
	assert.Equal(t, 2, s.Filtered()[0].ID)

	s.SelectPost(model.Post{ID: 2})
	s.SelectUser(model.User{ID: 4})
	st := s.State()
	require.NotNil(t, st.SelectedPost)
	require.NotNil(t, st.SelectedUser)
	s.ClearSelectedPost()
	s.ClearSelectedUser()
	st = s.State()
	assert.Nil(t, st.SelectedPost)
	assert.Nil(t, st.SelectedUser)

	hasMore := false
	s.UpdatePagination(state.PaginationUpdated{HasMore: &hasMore})
	assert.False(t, s.Pagination().HasMore)

	s.ResetPagination()
	assert.Empty(t, s.State().Posts)
	assert.True(t, s.Pagination().HasMore)

	s.ClearAll()
	assert.Equal(t, state.Initial(20), s.State())
}

func TestStateIsACopy(t *testing.T) {
	s := New(newFakeGateway(), 20)
	defer closeSession(t, s)

	s.Restore(makePosts(1, 2), nil)
	st := s.State()
	st.Posts[0].Title = "mutated"
	assert.Equal(t, "post 1", s.State().Posts[0].Title)
}

func TestObserversSeeEveryEventInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	s := New(newFakeGateway(), 20)
	defer closeSession(t, s)
	s.Subscribe(ObserverFunc(func(ev state.Event, st state.State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, fmt.Sprintf("%T %s", ev, st.Status))
	}))

	task, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))
	s.SetSearchQuery("q")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"state.FetchStarted loading",
		"state.PostsFetched succeeded",
		"state.QueryChanged succeeded",
	}, seen)
}

func TestCloseCancelsInFlight(t *testing.T) {
	gw := newFakeGateway()
	gw.postPage = func(ctx context.Context, page, limit int) ([]model.Post, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s := New(gw, 20)

	task, err := s.RequestPostPage(context.Background(), 1, 20)
	require.NoError(t, err)
	closeSession(t, s)

	assert.True(t, task.Canceled())
	assert.Equal(t, state.StatusIdle, s.Status())
	assert.Equal(t, 0, s.InFlight())
}
