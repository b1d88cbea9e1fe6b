package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/shotpost/internal/ingest"
)

var (
	rewriteLimit int
	rewriteAll   bool
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [key...]",
	Short: "Rewrite stored posts that have no article yet",
	Long: "Generate articles for stored posts that were never rewritten, oldest first. " +
		"With keys, rewrite exactly those posts again and replace their articles.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(false)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.rewriteOnly()
		if err != nil {
			return err
		}

		var res ingest.Result
		if len(args) > 0 {
			res, err = p.RewriteKeys(cmd.Context(), args)
		} else {
			limit := rewriteLimit
			if rewriteAll {
				limit = 0 // 0 means process all
			}
			res, err = p.RewritePending(cmd.Context(), limit)
		}
		printResult(res)
		if err != nil {
			return fmt.Errorf("rewrite failed: %w", err)
		}
		return res.Err()
	},
}

func init() {
	rewriteCmd.Flags().IntVarP(&rewriteLimit, "limit", "l", 20, "Number of posts to rewrite")
	rewriteCmd.Flags().BoolVarP(&rewriteAll, "all", "a", false, "Rewrite every pending post (overrides --limit)")
	rootCmd.AddCommand(rewriteCmd)
}
