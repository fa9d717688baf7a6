package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/postview/internal/api"
	"github.com/matheuskafuri/postview/internal/model"
	"github.com/matheuskafuri/postview/internal/output"
	"github.com/matheuskafuri/postview/internal/persist"
	"github.com/matheuskafuri/postview/internal/state"
	"github.com/matheuskafuri/postview/internal/store"
)

var (
	flagPage      int
	flagQuery     string
	flagUserPosts bool
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List a page of posts",
	Long: `List one page of posts as a table. With --offline the page is cut from
the local snapshot instead of fetched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagPage < state.InitialPage {
			return fmt.Errorf("invalid --page %d: pages start at %d", flagPage, state.InitialPage)
		}
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		e, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		size := e.cfg.PageSize()
		var posts []model.Post
		if flagOffline {
			snap, err := persist.LoadSnapshot(cmd.Context(), e.snaps, e.logger)
			if err != nil {
				return err
			}
			posts = pageOf(snap.Posts, flagPage, size)
		} else {
			posts, err = e.client.GetPostPage(cmd.Context(), flagPage, size)
			if err != nil {
				return fmt.Errorf("fetching posts: %s", api.Message(err))
			}
		}
		posts = state.Filter(posts, flagQuery)

		if len(posts) == 0 {
			p.Info("No posts on page %d.", flagPage)
			return nil
		}
		t := output.NewTable(p.Out(), "ID", "USER", "TITLE")
		for _, post := range posts {
			t.AddRow(strconv.Itoa(post.ID), strconv.Itoa(post.UserID), output.Truncate(post.Title, 60))
		}
		if err := t.Render(); err != nil {
			return err
		}
		p.Print("%s", p.Dim(fmt.Sprintf("page %d · %d posts", flagPage, t.Len())))
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		e, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		users, err := loadUsers(cmd.Context(), e)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			p.Info("No users.")
			return nil
		}
		t := output.NewTable(p.Out(), "ID", "NAME", "USERNAME", "EMAIL", "COMPANY")
		for _, u := range users {
			t.AddRow(strconv.Itoa(u.ID), u.Name, "@"+u.Username, u.Email, output.Truncate(u.Company.Name, 24))
		}
		return t.Render()
	},
}

var userCmd = &cobra.Command{
	Use:   "user <id>",
	Short: "Show one user's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil || id < 1 {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		e, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		var u model.User
		if flagOffline {
			users, err := loadUsers(cmd.Context(), e)
			if err != nil {
				return err
			}
			found, ok := state.State{Users: users}.UserByID(id)
			if !ok {
				return fmt.Errorf("user %d is not in the local snapshot", id)
			}
			u = found
		} else {
			u, err = e.client.GetUserByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("fetching user %d: %s", id, api.Message(err))
			}
		}

		p.Header(u.Name + "  @" + u.Username)
		p.Field("Email", u.Email)
		p.Field("Phone", u.Phone)
		p.Field("Website", u.Website)
		p.Field("Address", joinNonEmpty(u.Address.Street+" "+u.Address.Suite, u.Address.City, u.Address.Zipcode))
		if g := u.Address.Geo; g.Lat != "" || g.Lng != "" {
			p.Field("Geo", g.Lat+", "+g.Lng)
		}
		p.Field("Company", u.Company.Name)
		p.Field("Catchphrase", u.Company.CatchPhrase)
		p.Field("BS", u.Company.BS)

		if !flagUserPosts {
			return nil
		}
		if err := online("user --posts"); err != nil {
			return err
		}
		posts, err := e.client.GetPostsByUser(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("fetching posts by user %d: %s", id, api.Message(err))
		}
		p.Header(fmt.Sprintf("Posts (%d)", len(posts)))
		t := output.NewTable(p.Out(), "ID", "TITLE")
		for _, post := range posts {
			t.AddRow(strconv.Itoa(post.ID), output.Truncate(post.Title, 70))
		}
		return t.Render()
	},
}

var postCmd = &cobra.Command{
	Use:   "post <id>",
	Short: "Show one post with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil || id < 1 {
			return fmt.Errorf("invalid post id %q", args[0])
		}
		if err := online("post"); err != nil {
			return err
		}
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		e, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		post, err := e.client.GetPostByID(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("fetching post %d: %s", id, api.Message(err))
		}
		comments, err := e.client.GetCommentsByPost(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("fetching comments: %s", api.Message(err))
		}

		p.Header(post.Title)
		p.Field("Post", strconv.Itoa(post.ID))
		p.Field("Author", "user "+strconv.Itoa(post.UserID))
		p.Print("\n%s", post.Body)
		p.Header(fmt.Sprintf("Comments (%d)", len(comments)))
		for _, c := range comments {
			p.Print("%s %s", p.Bold(c.Name), p.Dim("<"+c.Email+">"))
			p.Print("%s\n", c.Body)
		}
		return nil
	},
}

func init() {
	postsCmd.Flags().IntVar(&flagPage, "page", state.InitialPage, "page number, starting at 1")
	postsCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "only show posts whose title or body contains this text")
	userCmd.Flags().BoolVar(&flagUserPosts, "posts", false, "also list the user's posts")
}

func loadUsers(ctx context.Context, e *env) ([]model.User, error) {
	if !flagOffline {
		users, err := e.client.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching users: %s", api.Message(err))
		}
		return users, nil
	}
	users, err := e.snaps.LoadUsers(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("no users in the local snapshot; run postview sync first")
	}
	return users, err
}

// pageOf cuts page (1-based) of size items out of posts.
func pageOf(posts []model.Post, page, size int) []model.Post {
	start := (page - 1) * size
	if start >= len(posts) {
		return nil
	}
	return posts[start:min(start+size, len(posts))]
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}
