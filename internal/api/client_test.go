package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheuskafuri/postview/internal/model"
)

func testClient(t *testing.T, handler http.Handler, mutate ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts := Options{
		BaseURL:       srv.URL,
		Timeout:       2 * time.Second,
		RetryAttempts: 0,
		RetryDelay:    time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func samplePosts(n, offset int) []model.Post {
	posts := make([]model.Post, n)
	for i := range posts {
		id := offset + i + 1
		posts[i] = model.Post{ID: id, UserID: id%10 + 1, Title: "post " + strconv.Itoa(id), Body: "body"}
	}
	return posts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	_, err = New(Options{BaseURL: "://bad"})
	assert.Error(t, err)
}

func TestGetPostPage(t *testing.T) {
	var gotQuery string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/posts", r.URL.Path)
		gotQuery = r.URL.RawQuery
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, samplePosts(20, 20))
	}))

	posts, err := c.GetPostPage(context.Background(), 2, 20)
	require.NoError(t, err)
	assert.Len(t, posts, 20)
	assert.Equal(t, 21, posts[0].ID)
	assert.Equal(t, "_limit=20&_page=2", gotQuery)
}

func TestGetUsersAndUserByID(t *testing.T) {
	users := []model.User{
		{ID: 1, Name: "Leanne Graham", Username: "Bret", Address: model.Address{City: "Gwenborough", Geo: model.Geo{Lat: "-37.3159", Lng: "81.1496"}}},
		{ID: 2, Name: "Ervin Howell", Username: "Antonette", Company: model.Company{Name: "Deckow-Crist"}},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, users) })
	mux.HandleFunc("/users/2", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, users[1]) })
	c := testClient(t, mux)

	got, err := c.GetUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, users, got)

	u, err := c.GetUserByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Deckow-Crist", u.Company.Name)
}

func TestGetPostsByUserAndComments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("userId"))
		writeJSON(w, []model.Post{{ID: 21, UserID: 3}})
	})
	mux.HandleFunc("/posts/21", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.Post{ID: 21, UserID: 3, Title: "t"})
	})
	mux.HandleFunc("/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "21", r.URL.Query().Get("postId"))
		writeJSON(w, []model.Comment{{PostID: 21, ID: 1, Email: "a@b.c"}})
	})
	c := testClient(t, mux)

	posts, err := c.GetPostsByUser(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	post, err := c.GetPostByID(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, "t", post.Title)

	comments, err := c.GetCommentsByPost(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", comments[0].Email)
}

func TestHTTPErrorShape(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.GetUserByID(context.Background(), 999)
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, CodeHTTP, apiErr.Code)
	assert.Equal(t, "HTTP 404: Not Found", apiErr.Message)
	assert.ErrorIs(t, err, ErrHTTP)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}), func(o *Options) { o.RetryAttempts = 3 })

	_, err := c.GetUsers(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, []model.User{{ID: 1}})
	}), func(o *Options) { o.RetryAttempts = 3 })

	users, err := c.GetUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), func(o *Options) { o.RetryAttempts = 2 })

	_, err := c.GetUsers(context.Background())
	require.Error(t, err)
	assert.Equal(t, "HTTP 502: Bad Gateway", Message(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestTimeoutShape(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}), func(o *Options) { o.Timeout = 50 * time.Millisecond })

	_, err := c.GetPostPage(context.Background(), 1, 20)
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeTimeout, apiErr.Code)
	assert.Equal(t, 408, apiErr.Status)
	assert.Equal(t, "Request timeout", apiErr.Message)
}

func TestNetworkErrorShape(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: baseURL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.GetUsers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "No internet connection", Message(err))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.Status)
}

func TestDecodeErrorShape(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))

	_, err := c.GetUsers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestCallerCancel(t *testing.T) {
	started := make(chan struct{})
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetPostPage(ctx, 1, 20)
		errCh <- err
	}()

	<-started
	cancel()

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentIdenticalRequestsShareOneRoundTrip(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		writeJSON(w, []model.User{{ID: 1}})
	}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			users, err := c.GetUsers(context.Background())
			assert.NoError(t, err)
			assert.Len(t, users, 1)
		}()
	}

	// Let every goroutine join the in-flight call before releasing it.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestRateLimit(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.User{ID: 1})
	}), func(o *Options) { o.RateLimit = 20 })

	start := time.Now()
	for i := 1; i <= 3; i++ {
		_, err := c.GetUserByID(context.Background(), i)
		require.NoError(t, err)
	}
	// burst of 1 at 20 rps: two waits of ~50ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Request timeout", Message(&Error{Message: "Request timeout", Code: CodeTimeout}))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
