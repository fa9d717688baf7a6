package state

import (
	"time"

	"github.com/matheuskafuri/postview/internal/model"
)

// Event is anything Reduce knows how to apply.
type Event interface {
	event()
}

// FetchStarted is dispatched when any fetch kind begins.
type FetchStarted struct{}

// PostsFetched carries one page. Page 1 replaces the list, later pages append.
type PostsFetched struct {
	Posts []model.Post
	Page  int
	Limit int
	At    time.Time
}

type UsersFetched struct {
	Users []model.User
	At    time.Time
}

// UserFetched fills the selected-user slot only.
type UserFetched struct {
	User model.User
}

type FetchFailed struct {
	Message string
}

// FetchCanceled is dispatched when an explicitly canceled fetch was the last
// one in flight.
type FetchCanceled struct{}

type QueryChanged struct {
	Query string
}

// SnapshotRestored seeds the session from disk. A nil slice means that part
// of the snapshot was absent and leaves the canonical list alone.
type SnapshotRestored struct {
	Posts []model.Post
	Users []model.User
}

type PaginationReset struct{}

// PaginationUpdated merges the non-nil fields into the cursor.
type PaginationUpdated struct {
	Page       *int
	PageSize   *int
	TotalItems *int
	HasMore    *bool
}

type PostSelected struct{ Post model.Post }
type PostCleared struct{}
type UserSelected struct{ User model.User }
type UserCleared struct{}
type ErrorCleared struct{}

// Cleared drops everything back to the initial session.
type Cleared struct{}

func (FetchStarted) event()      {}
func (PostsFetched) event()      {}
func (UsersFetched) event()      {}
func (UserFetched) event()       {}
func (FetchFailed) event()       {}
func (FetchCanceled) event()     {}
func (QueryChanged) event()      {}
func (SnapshotRestored) event()  {}
func (PaginationReset) event()   {}
func (PaginationUpdated) event() {}
func (PostSelected) event()      {}
func (PostCleared) event()       {}
func (UserSelected) event()      {}
func (UserCleared) event()       {}
func (ErrorCleared) event()      {}
func (Cleared) event()           {}

// Reduce applies ev to s and returns the new state. s is not modified; any
// slice that changes is freshly allocated.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case FetchStarted:
		s.Status = StatusLoading
		s.Error = ""

	case PostsFetched:
		if ev.Page == 1 {
			s.Posts = append([]model.Post(nil), ev.Posts...)
		} else {
			// No de-duplication by ID: the remote list can shift between pages.
			merged := make([]model.Post, 0, len(s.Posts)+len(ev.Posts))
			merged = append(merged, s.Posts...)
			s.Posts = append(merged, ev.Posts...)
		}
		s.Filtered = Filter(s.Posts, s.Query)
		s.Pagination.CurrentPage = ev.Page
		s.Pagination.HasMore = len(ev.Posts) == ev.Limit
		s.Pagination.TotalItems = len(s.Posts)
		s.LastFetch = ev.At
		s.Status = StatusSucceeded

	case UsersFetched:
		s.Users = append([]model.User(nil), ev.Users...)
		s.LastFetch = ev.At
		s.Status = StatusSucceeded

	case UserFetched:
		u := ev.User
		s.SelectedUser = &u
		s.Status = StatusSucceeded

	case FetchFailed:
		s.Status = StatusFailed
		s.Error = ev.Message

	case FetchCanceled:
		if s.Status == StatusLoading {
			s.Status = StatusIdle
		}

	case QueryChanged:
		s.Query = ev.Query
		s.Filtered = Filter(s.Posts, s.Query)

	case SnapshotRestored:
		if ev.Posts != nil {
			s.Posts = append([]model.Post{}, ev.Posts...)
			s.Filtered = Filter(s.Posts, s.Query)
		}
		if ev.Users != nil {
			s.Users = append([]model.User{}, ev.Users...)
		}

	case PaginationReset:
		s.Posts = nil
		s.Filtered = nil
		s.Pagination = initialPagination(s.Pagination.PageSize)

	case PaginationUpdated:
		if ev.Page != nil {
			s.Pagination.CurrentPage = *ev.Page
		}
		if ev.PageSize != nil {
			s.Pagination.PageSize = *ev.PageSize
		}
		if ev.TotalItems != nil {
			s.Pagination.TotalItems = *ev.TotalItems
		}
		if ev.HasMore != nil {
			s.Pagination.HasMore = *ev.HasMore
		}

	case PostSelected:
		p := ev.Post
		s.SelectedPost = &p

	case PostCleared:
		s.SelectedPost = nil

	case UserSelected:
		u := ev.User
		s.SelectedUser = &u

	case UserCleared:
		s.SelectedUser = nil

	case ErrorCleared:
		s.Error = ""

	case Cleared:
		return Initial(s.Pagination.PageSize)
	}
	return s
}
