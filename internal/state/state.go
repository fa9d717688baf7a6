// Package state holds the session state and the pure transitions applied to
// it. Nothing here performs I/O; internal/session owns a State and feeds it
// events as fetches start and finish.
package state

import (
	"strings"
	"time"

	"github.com/matheuskafuri/postview/internal/model"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const (
	DefaultPageSize = 20
	InitialPage     = 1
)

type Pagination struct {
	CurrentPage int
	PageSize    int
	TotalItems  int
	HasMore     bool
}

// State is the in-memory session. Filtered is always Filter(Posts, Query).
// Status is shared by every fetch kind, so a users fetch finishing can flip
// the status seen by a list that is still waiting on a page.
type State struct {
	Posts        []model.Post
	Users        []model.User
	Filtered     []model.Post
	SelectedPost *model.Post
	SelectedUser *model.User
	Pagination   Pagination
	Query        string
	Status       Status
	Error        string
	LastFetch    time.Time
}

// Initial returns the empty session for the given page size.
func Initial(pageSize int) State {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return State{
		Pagination: initialPagination(pageSize),
		Status:     StatusIdle,
	}
}

func initialPagination(pageSize int) Pagination {
	return Pagination{
		CurrentPage: InitialPage,
		PageSize:    pageSize,
		TotalItems:  0,
		HasMore:     true,
	}
}

// Filter returns the posts whose title or body contains query, ignoring
// case. An empty query keeps every post. Order is preserved.
func Filter(posts []model.Post, query string) []model.Post {
	if query == "" {
		return append([]model.Post(nil), posts...)
	}
	q := strings.ToLower(query)
	var out []model.Post
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Body), q) {
			out = append(out, p)
		}
	}
	return out
}

// CanLoadMore reports whether scrolling to the end of the list should fetch
// the next page: more pages are believed to exist, nothing is loading, and
// the list is not being searched.
func CanLoadMore(s State) bool {
	return s.Pagination.HasMore && s.Status != StatusLoading && s.Query == ""
}

// NextPage is the page a load-more would request.
func (s State) NextPage() int {
	return s.Pagination.CurrentPage + 1
}

// Clone returns a copy that shares nothing mutable with s.
func (s State) Clone() State {
	c := s
	c.Posts = append([]model.Post(nil), s.Posts...)
	c.Users = append([]model.User(nil), s.Users...)
	c.Filtered = append([]model.Post(nil), s.Filtered...)
	if s.SelectedPost != nil {
		p := *s.SelectedPost
		c.SelectedPost = &p
	}
	if s.SelectedUser != nil {
		u := *s.SelectedUser
		c.SelectedUser = &u
	}
	return c
}

// UserByID looks up a user in the canonical list.
func (s State) UserByID(id int) (model.User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}
