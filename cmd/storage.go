package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/postview/internal/persist"
	"github.com/matheuskafuri/postview/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show snapshot statistics",
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
		ctx := cmd.Context()

		p.Header("Snapshot")
		driver := e.cfg.Storage.Driver
		if driver == "" {
			driver = "sqlite"
		}
		p.Field("Driver", driver)

		switch kv := e.kv.(type) {
		case *store.SQLite:
			count, size, err := kv.Stats(ctx)
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}
			p.Field("Path", kv.Path())
			p.Field("Keys", strconv.Itoa(count))
			p.Field("Size", formatBytes(size))
		default:
			keys, err := e.kv.Keys(ctx)
			if err != nil {
				return fmt.Errorf("listing keys: %w", err)
			}
			if driver == "redis" {
				p.Field("Namespace", e.cfg.Storage.Namespace)
			}
			p.Field("Keys", strconv.Itoa(len(keys)))
		}

		snap, err := persist.LoadSnapshot(ctx, e.snaps, e.logger)
		if err != nil {
			return err
		}
		p.Field("Posts", countLabel(snap.Posts != nil, len(snap.Posts)))
		p.Field("Users", countLabel(snap.Users != nil, len(snap.Users)))
		if snap.LastSync.IsZero() {
			p.Field("Last sync", "never")
			return nil
		}
		age := time.Since(snap.LastSync)
		last := fmt.Sprintf("%s (%s ago)", snap.LastSync.Local().Format(time.DateTime), formatDuration(age))
		if age > e.cfg.CacheExpirationDuration() {
			last += " " + p.Status("stale")
		}
		p.Field("Last sync", last)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the local snapshot",
	Long:  "Delete the cached posts, users and sync time. Other keys in the store are left alone.",
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

		if err := e.snaps.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clearing snapshot: %w", err)
		}
		p.Success("Snapshot cleared.")
		return nil
	},
}

func countLabel(present bool, n int) string {
	if !present {
		return "none"
	}
	return strconv.Itoa(n)
}

func formatDuration(d time.Duration) string {
	h := d.Hours()
	if days := int(h / 24); days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	if int(h) > 0 {
		return fmt.Sprintf("%dh", int(h))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
