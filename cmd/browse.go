package cmd

import "github.com/spf13/cobra"

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Open the post list from the local snapshot",
	Long:  "Open postview straight into the post list. A cached snapshot is shown as is; page 1 is fetched only when nothing is cached.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context(), true)
	},
}
