package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matheuskafuri/postview/internal/browser"
	"github.com/matheuskafuri/postview/internal/model"
	"github.com/matheuskafuri/postview/internal/session"
	"github.com/matheuskafuri/postview/internal/state"
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeDetail
	modeProfile
	modeHelp
)

// loadMoreThreshold is how close to the end of the list the cursor gets
// before the next page is requested.
const loadMoreThreshold = 5

var errOffline = errors.New("offline: showing cached data only")

// CommentSource fetches a post's comments on demand.
type CommentSource interface {
	GetCommentsByPost(ctx context.Context, postID int) ([]model.Comment, error)
}

// RunOpts holds all parameters for launching the TUI.
type RunOpts struct {
	Session  *session.Session
	Comments CommentSource
	PageSize int
	Debounce time.Duration
	Timeout  time.Duration
	LastSync time.Time
	// SkipFetch starts from the restored snapshot without refetching page 1.
	SkipFetch     bool
	Offline       bool
	UpdateVersion string
	Logger        *slog.Logger
}

type App struct {
	sess          *session.Session
	comments      CommentSource
	logger        *slog.Logger
	pageSize      int
	timeout       time.Duration
	offline       bool
	skipFetch     bool
	updateVersion string

	ctx    context.Context
	cancel context.CancelFunc

	st            state.State
	mode          mode
	prevMode      mode
	cursor        int
	previewScroll int

	width  int
	height int

	searchInput textinput.Model
	spinner     spinner.Model
	search      searchDebounce

	pending        map[session.Kind]int
	usersRequested bool
	commentCache   map[int]commentsView
	lastSync       time.Time
	err            error
}

func NewApp(opts RunOpts) *App {
	ti := textinput.New()
	ti.Placeholder = "Search posts..."
	ti.Prompt = searchPromptStyle.Render("/ ")
	ti.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = state.DefaultPageSize
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if opts.SkipFetch || opts.Offline {
		opts.Session.ResumePagination()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		sess:          opts.Session,
		comments:      opts.Comments,
		logger:        logger,
		pageSize:      pageSize,
		timeout:       timeout,
		offline:       opts.Offline,
		skipFetch:     opts.SkipFetch,
		updateVersion: opts.UpdateVersion,
		ctx:           ctx,
		cancel:        cancel,
		st:            opts.Session.State(),
		searchInput:   ti,
		spinner:       sp,
		search:        newSearchDebounce(opts.Debounce),
		pending:       make(map[session.Kind]int),
		commentCache:  make(map[int]commentsView),
		lastSync:      opts.LastSync,
	}
}

func (a *App) Init() tea.Cmd {
	if a.offline {
		return nil
	}
	if !a.skipFetch {
		return a.fetchFirstPage()
	}
	return a.maybeFetchUsers()
}

// Close cancels fetches started by the app.
func (a *App) Close() {
	a.cancel()
}

// track turns a session task into a command that reports its completion.
func (a *App) track(t *session.Task) tea.Cmd {
	a.pending[t.Kind()]++
	a.st = a.sess.State()
	wait := func() tea.Msg {
		<-t.Done()
		return taskDoneMsg{kind: t.Kind(), err: t.Err()}
	}
	return tea.Batch(wait, a.spinner.Tick)
}

func (a *App) loading() bool {
	for _, n := range a.pending {
		if n > 0 {
			return true
		}
	}
	return false
}

func (a *App) fetchFirstPage() tea.Cmd {
	t, err := a.sess.RequestPostPage(a.ctx, state.InitialPage, a.pageSize)
	if err != nil {
		a.err = err
		return nil
	}
	return a.track(t)
}

// maybeFetchUsers requests the author list once posts are on screen.
func (a *App) maybeFetchUsers() tea.Cmd {
	if a.offline || a.usersRequested || len(a.st.Users) > 0 || len(a.st.Posts) == 0 {
		return nil
	}
	a.usersRequested = true
	return a.track(a.sess.RequestAllUsers(a.ctx))
}

func (a *App) maybeLoadMore() tea.Cmd {
	if a.offline {
		return nil
	}
	if a.cursor < len(a.visible())-loadMoreThreshold {
		return nil
	}
	if !state.CanLoadMore(a.st) {
		return nil
	}
	t, ok := a.sess.LoadMore(a.ctx)
	if !ok {
		return nil
	}
	a.logger.Debug("loading next page", "page", a.st.NextPage())
	return a.track(t)
}

func (a *App) refresh() tea.Cmd {
	if a.offline {
		a.err = errOffline
		return nil
	}
	a.cursor = 0
	a.previewScroll = 0
	return a.track(a.sess.Refresh(a.ctx))
}

func (a *App) loadComments(postID int) tea.Cmd {
	if c, ok := a.commentCache[postID]; ok && (c.loaded || c.loading) {
		return nil
	}
	if a.offline || a.comments == nil {
		a.commentCache[postID] = commentsView{err: errOffline}
		return nil
	}
	a.commentCache[postID] = commentsView{loading: true}

	src := a.comments
	parent := a.ctx
	timeout := a.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		comments, err := src.GetCommentsByPost(ctx, postID)
		return commentsLoadedMsg{postID: postID, comments: comments, err: err}
	}
}

func openBrowserCmd(site string) tea.Cmd {
	return func() tea.Msg {
		url, err := browser.WebsiteURL(site)
		if err != nil {
			return errMsg{err: err}
		}
		if err := browser.Open(url); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (a *App) visible() []model.Post {
	return a.st.Filtered
}

func (a *App) clampCursor() {
	if n := len(a.visible()); a.cursor >= n {
		a.cursor = max(0, n-1)
	}
}

func (a *App) applyQuery(q string) {
	a.sess.SetSearchQuery(q)
	a.st = a.sess.State()
	a.cursor = 0
	a.previewScroll = 0
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		// Clear sticky error on any keypress
		a.err = nil
		return a.handleKey(msg)

	case taskDoneMsg:
		if a.pending[msg.kind] > 0 {
			a.pending[msg.kind]--
		}
		a.st = a.sess.State()
		a.clampCursor()
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			a.logger.Debug("fetch settled with error", "kind", msg.kind, "error", msg.err)
			return a, nil
		}
		if msg.kind == session.KindPosts && msg.err == nil {
			a.lastSync = a.st.LastFetch
			return a, a.maybeFetchUsers()
		}
		return a, nil

	case commentsLoadedMsg:
		if msg.err != nil {
			a.commentCache[msg.postID] = commentsView{err: msg.err}
			return a, nil
		}
		a.commentCache[msg.postID] = commentsView{loaded: true, comments: msg.comments}
		return a, nil

	case searchTickMsg:
		if a.search.fire(msg) {
			a.applyQuery(msg.query)
		}
		return a, nil

	case errMsg:
		a.err = msg.err
		return a, nil

	case spinner.TickMsg:
		if a.loading() {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	switch a.mode {
	case modeSearch:
		return a.handleSearchKey(msg)
	case modeDetail:
		return a.handleDetailKey(msg)
	case modeProfile:
		return a.handleProfileKey(msg)
	case modeHelp:
		if msg.String() == "?" || msg.String() == "esc" || msg.String() == "q" {
			a.mode = modeList
		}
		return a, nil
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "j", "down":
		if a.cursor < len(a.visible())-1 {
			a.cursor++
			a.previewScroll = 0
		}
		return a, a.maybeLoadMore()
	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
			a.previewScroll = 0
		}
		return a, nil
	case "g", "home":
		a.cursor = 0
		a.previewScroll = 0
		return a, nil
	case "G", "end":
		a.cursor = max(0, len(a.visible())-1)
		a.previewScroll = 0
		return a, a.maybeLoadMore()
	case "enter", "l", "right":
		return a, a.openDetail()
	case "p":
		if post, ok := a.postUnderCursor(); ok {
			return a, a.openProfile(post.UserID)
		}
		return a, nil
	case "/":
		a.mode = modeSearch
		a.searchInput.SetValue(a.search.active())
		a.searchInput.CursorEnd()
		return a, a.searchInput.Focus()
	case "esc":
		if a.search.reset() {
			a.searchInput.SetValue("")
			a.applyQuery("")
		}
		return a, nil
	case "r":
		return a, a.refresh()
	case "?":
		a.mode = modeHelp
		return a, nil
	}
	return a, nil
}

func (a *App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeList
		a.searchInput.SetValue("")
		a.searchInput.Blur()
		if a.search.reset() {
			a.applyQuery("")
		}
		return a, nil
	case "enter":
		a.mode = modeList
		a.searchInput.Blur()
		if q, changed := a.search.flush(); changed {
			a.applyQuery(q)
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	// Only schedule a search on value changes, not cursor moves etc.
	return a, tea.Batch(cmd, a.search.changed(a.searchInput.Value()))
}

func (a *App) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "j", "down":
		a.previewScroll++
		return a, nil
	case "k", "up":
		if a.previewScroll > 0 {
			a.previewScroll--
		}
		return a, nil
	case "esc", "backspace", "h", "left":
		a.sess.ClearSelectedPost()
		a.st = a.sess.State()
		a.mode = modeList
		a.previewScroll = 0
		return a, nil
	case "p":
		if a.st.SelectedPost != nil {
			return a, a.openProfile(a.st.SelectedPost.UserID)
		}
		return a, nil
	case "?":
		a.mode = modeHelp
		return a, nil
	}
	return a, nil
}

func (a *App) handleProfileKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "esc", "backspace", "p":
		a.sess.ClearSelectedUser()
		a.st = a.sess.State()
		a.mode = a.prevMode
		return a, nil
	case "w", "o":
		if u := a.st.SelectedUser; u != nil && u.Website != "" {
			return a, openBrowserCmd(u.Website)
		}
		return a, nil
	}
	return a, nil
}

func (a *App) postUnderCursor() (model.Post, bool) {
	posts := a.visible()
	if a.cursor < 0 || a.cursor >= len(posts) {
		return model.Post{}, false
	}
	return posts[a.cursor], true
}

func (a *App) openDetail() tea.Cmd {
	post, ok := a.postUnderCursor()
	if !ok {
		return nil
	}
	a.sess.SelectPost(post)
	a.st = a.sess.State()
	a.mode = modeDetail
	a.previewScroll = 0
	return a.loadComments(post.ID)
}

// openProfile shows the author, from the loaded list when possible and from
// the API otherwise.
func (a *App) openProfile(userID int) tea.Cmd {
	a.prevMode = a.mode
	a.mode = modeProfile
	if u, ok := a.st.UserByID(userID); ok {
		a.sess.SelectUser(u)
		a.st = a.sess.State()
		return nil
	}
	a.sess.ClearSelectedUser()
	a.st = a.sess.State()
	if a.offline {
		return nil
	}
	t, err := a.sess.RequestUserByID(a.ctx, userID)
	if err != nil {
		a.err = err
		return nil
	}
	return a.track(t)
}

func (a *App) withBottomBar(content string, hints string) string {
	bar := renderBottomBar(hints, a.width)
	lines := strings.Split(content, "\n")
	for len(lines) < a.height-1 {
		lines = append(lines, "")
	}
	if len(lines) >= a.height {
		lines = lines[:max(0, a.height-1)]
	}
	lines = append(lines, bar)
	return strings.Join(lines, "\n")
}

func (a *App) authors() map[int]string {
	names := make(map[int]string, len(a.st.Users))
	for _, u := range a.st.Users {
		names[u.ID] = u.Name
	}
	return names
}

func (a *App) View() string {
	if a.width == 0 {
		return lipgloss.NewStyle().Foreground(colorAccent).Render("  postview")
	}

	switch a.mode {
	case modeHelp:
		return a.withBottomBar(a.renderHelp(), "? close  q quit")
	case modeProfile:
		postCount := 0
		if u := a.st.SelectedUser; u != nil {
			for _, p := range a.st.Posts {
				if p.UserID == u.ID {
					postCount++
				}
			}
		}
		errText := ""
		if a.st.Status == state.StatusFailed {
			errText = a.st.Error
		}
		view := renderProfile(a.st.SelectedUser, postCount, a.pending[session.KindUser] > 0, errText, a.width, a.height-1)
		return a.withBottomBar(view, "w website  esc back  q quit")
	}

	if len(a.st.Posts) == 0 {
		sp := splash{
			loading:       a.loading(),
			spinner:       a.spinner.View(),
			offline:       a.offline,
			updateVersion: a.updateVersion,
		}
		if a.st.Status == state.StatusFailed {
			sp.err = a.st.Error
		}
		return a.withBottomBar(renderHomeScreen(a.width, a.height-1, sp), "r refresh  q quit")
	}

	// Layout calculations
	headerHeight := 1
	searchHeight := 1
	statusHeight := 1
	contentHeight := a.height - headerHeight - searchHeight - statusHeight - 4 // borders

	listWidth := int(float64(a.width) * 0.35)
	previewWidth := a.width - listWidth - 1

	if contentHeight < 3 {
		contentHeight = 3
	}

	headerLeft := headerStyle.Render("postview")
	headerRight := headerMetaStyle.Render(fmt.Sprintf("page %d · %d loaded ", a.st.Pagination.CurrentPage, a.st.Pagination.TotalItems))
	headerGap := a.width - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight)
	if headerGap < 0 {
		headerGap = 0
	}
	header := headerLeft + fmt.Sprintf("%*s", headerGap, "") + headerRight

	var search string
	switch {
	case a.mode == modeSearch:
		search = a.searchInput.View()
	case a.st.Query != "":
		search = searchPromptStyle.Render("/ ") + a.st.Query + helpDimStyle.Render("  (esc to clear)")
	default:
		search = helpDimStyle.Render("/ to search")
	}
	search = searchBarStyle.Width(a.width).Render(search)

	posts := a.visible()
	footer := ""
	switch {
	case a.pending[session.KindPosts] > 0:
		footer = a.spinner.View() + " loading more..."
	case !a.st.Pagination.HasMore && a.st.Query == "":
		footer = "end of posts"
	}
	innerListW := listWidth - 4
	listContent := renderList(posts, a.authors(), a.cursor, contentHeight, innerListW, footer)

	var selected *model.Post
	if a.mode == modeDetail && a.st.SelectedPost != nil {
		selected = a.st.SelectedPost
	} else if post, ok := a.postUnderCursor(); ok {
		selected = &post
	}
	var author *model.User
	var comments commentsView
	if selected != nil {
		if u, ok := a.st.UserByID(selected.UserID); ok {
			author = &u
		}
		comments = a.commentCache[selected.ID]
	}
	innerPreviewW := previewWidth - 4
	previewContent := renderPreview(selected, author, comments, innerPreviewW, contentHeight, a.previewScroll)

	listStyle, previewStyle := listPaneActiveStyle, previewPaneStyle
	if a.mode == modeDetail {
		listStyle, previewStyle = listPaneStyle, previewPaneActiveStyle
	}
	listPane := listStyle.Width(listWidth - 2).Height(contentHeight).Render(listContent)
	previewPane := previewStyle.Width(previewWidth - 2).Height(contentHeight).Render(previewContent)

	content := lipgloss.JoinHorizontal(lipgloss.Top, listPane, previewPane)

	hints := "enter open  p author  / search  r refresh  ? help  q quit"
	switch a.mode {
	case modeSearch:
		hints = "esc cancel  enter search"
	case modeDetail:
		hints = "j/k scroll  p author  esc back  q quit"
	}
	info := statusInfo{
		shown:   len(posts),
		total:   len(a.st.Posts),
		query:   a.st.Query,
		status:  a.st.Status,
		offline: a.offline,
	}
	if !a.lastSync.IsZero() {
		info.lastSync = relativeTime(a.lastSync)
	}
	status := renderStatusBar(info, a.width, hints)

	if a.err != nil {
		status = errorStyle.Render(" " + a.err.Error())
	} else if a.st.Status == state.StatusFailed && a.st.Error != "" {
		status = errorStyle.Render(" "+a.st.Error) + helpDimStyle.Render("  r retry")
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, search, content, status)
}

func (a *App) renderHelp() string {
	title := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render("postview")
	dim := helpDimStyle

	help := title + dim.Render(" keyboard shortcuts") + "\n\n" +
		dim.Render("List") + "\n" +
		"  j/k, ↑/↓     Move through posts\n" +
		"  g/G           Jump to top / bottom\n" +
		"  enter         Open post and comments\n" +
		"  p             Show the author's profile\n" +
		"  /             Search titles and bodies\n" +
		"  esc           Clear the search\n" +
		"  r             Refresh from page 1\n\n" +
		dim.Render("Post") + "\n" +
		"  j/k           Scroll\n" +
		"  esc           Back to the list\n\n" +
		dim.Render("Profile") + "\n" +
		"  w             Open website in browser\n" +
		"  esc           Back\n\n" +
		dim.Render("General") + "\n" +
		"  ?             Toggle this help\n" +
		"  q, ctrl+c    Quit"

	card := helpCardStyle.Render(help)

	return lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, card)
}

// Run starts the TUI application.
func Run(opts RunOpts) error {
	app := NewApp(opts)
	defer app.Close()
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
