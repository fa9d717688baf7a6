package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matheuskafuri/postview/internal/api"
	"github.com/matheuskafuri/postview/internal/model"
)

const syncConcurrency = 4

var (
	flagSyncPages     int
	flagSyncOlderThan string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch posts and users into the local snapshot",
	Long: `Fetch the first N pages of posts and the user list and write them to the
local snapshot, so the browser and --offline have something to show.

With --if-older-than the sync is skipped while the last one is recent enough.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := online("sync"); err != nil {
			return err
		}
		if flagSyncPages < 1 {
			return fmt.Errorf("invalid --pages %d: must be at least 1", flagSyncPages)
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

		ctx := cmd.Context()
		if flagSyncOlderThan != "" {
			maxAge, err := parseAge(flagSyncOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --if-older-than value: %w", err)
			}
			if !e.snaps.NeedsRefresh(ctx, maxAge) {
				p.Info("Snapshot is newer than %s, nothing to do.", formatDuration(maxAge))
				return nil
			}
		}

		start := time.Now()
		posts, users, err := fetchAll(ctx, e.client, flagSyncPages, e.cfg.PageSize())
		if err != nil {
			return err
		}

		if err := e.snaps.SavePosts(ctx, posts); err != nil {
			return fmt.Errorf("saving posts: %w", err)
		}
		if err := e.snaps.SaveUsers(ctx, users); err != nil {
			return fmt.Errorf("saving users: %w", err)
		}
		if err := e.snaps.SaveLastSync(ctx, time.Now()); err != nil {
			return fmt.Errorf("saving sync time: %w", err)
		}

		e.logger.Debug("sync finished", "posts", len(posts), "users", len(users), "elapsed", time.Since(start))
		p.Success("Synced %d post(s) and %d user(s).", len(posts), len(users))
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&flagSyncPages, "pages", 1, "number of post pages to fetch")
	syncCmd.Flags().StringVar(&flagSyncOlderThan, "if-older-than", "", "only sync when the last sync is older than this (e.g. 1d, 30m)")
}

type postsUsersGateway interface {
	GetPostPage(ctx context.Context, page, limit int) ([]model.Post, error)
	GetUsers(ctx context.Context) ([]model.User, error)
}

// fetchAll fetches pages 1..pages and the user list concurrently. Posts come
// back in page order and stop at the first short page.
func fetchAll(ctx context.Context, gw postsUsersGateway, pages, size int) ([]model.Post, []model.User, error) {
	byPage := make([][]model.Post, pages)
	var users []model.User

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	g.Go(func() error {
		var err error
		users, err = gw.GetUsers(gctx)
		if err != nil {
			return fmt.Errorf("fetching users: %s", api.Message(err))
		}
		return nil
	})
	for i := range pages {
		g.Go(func() error {
			page, err := gw.GetPostPage(gctx, i+1, size)
			if err != nil {
				return fmt.Errorf("fetching page %d: %s", i+1, api.Message(err))
			}
			byPage[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	posts := []model.Post{}
	for _, page := range byPage {
		posts = append(posts, page...)
		if len(page) < size {
			break
		}
	}
	if users == nil {
		users = []model.User{}
	}
	return posts, users, nil
}

func parseAge(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
