package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/postview/internal/output"
	"github.com/matheuskafuri/postview/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagOffline  bool
	flagPageSize int
	flagVerbose  bool
	flagColor    string
)

var rootCmd = &cobra.Command{
	Use:   "postview",
	Short: "Terminal browser for a posts and users REST API",
	Long: `postview pages through a remote posts/users API, keeps a local snapshot
for offline use and lets you search, read comments and look up authors.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context(), false)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to config file")
	pf.BoolVar(&flagOffline, "offline", false, "use the local snapshot only, no network")
	pf.IntVar(&flagPageSize, "page-size", 0, "posts per page (overrides config)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&flagColor, "color", "auto", "colorize output: auto, always or never")

	versionCmd.Flags().BoolVar(&flagCheckUpdate, "check", false, "check GitHub for a newer release")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
}

var flagCheckUpdate bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		p.Print("postview %s (commit: %s, built: %s)", version, commit, date)
		if !flagCheckUpdate {
			return nil
		}
		if res := update.Check(cmd.Context(), version); res != nil {
			p.Warning("update available: v%s", res.LatestVersion)
		} else {
			p.Success("up to date")
		}
		return nil
	},
}

func printer(cmd *cobra.Command) (*output.Printer, error) {
	mode, err := output.ParseColorMode(flagColor)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode), nil
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		mode, perr := output.ParseColorMode(flagColor)
		if perr != nil {
			mode = output.ColorAuto
		}
		output.NewPrinter(os.Stdout, os.Stderr, mode).Error("%v", err)
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
