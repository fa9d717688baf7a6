package tui

import (
	"github.com/matheuskafuri/postview/internal/model"
	"github.com/matheuskafuri/postview/internal/session"
)

// taskDoneMsg arrives once a session fetch has settled; the outcome is
// already in the session state.
type taskDoneMsg struct {
	kind session.Kind
	err  error
}

type commentsLoadedMsg struct {
	postID   int
	comments []model.Comment
	err      error
}

// searchTickMsg fires after the debounce delay. Only the tick carrying the
// latest seq is applied.
type searchTickMsg struct {
	seq   int
	query string
}

type errMsg struct {
	err error
}
