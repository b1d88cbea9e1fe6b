package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/shotpost/internal/capture"
	"github.com/user/shotpost/internal/ingest"
)

var (
	fetchCount     int
	fetchForce     bool
	fetchNoRewrite bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [account...]",
	Short: "Capture, extract and store new posts",
	Long: "Ask the capture source for screenshots of each account, extract the posts, drop ads and " +
		"duplicates, store the rest and rewrite them. Accounts default to capture.accounts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(false)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := capture.FromConfig(env.cfg.Capture)
		if err != nil {
			return err
		}
		p, err := env.pipeline(!fetchNoRewrite)
		if err != nil {
			return err
		}

		accounts := args
		if len(accounts) == 0 {
			accounts = env.cfg.Capture.Accounts
		}
		count := fetchCount
		if count == 0 {
			count = env.cfg.Capture.Count
		}

		res, err := p.Fetch(cmd.Context(), src, ingest.FetchOptions{
			Accounts: accounts,
			Count:    count,
			Force:    fetchForce,
		})
		printResult(res)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		return res.Err()
	},
}

func init() {
	fetchCmd.Flags().IntVarP(&fetchCount, "count", "n", 0, "Screenshots per account (default: capture.count)")
	fetchCmd.Flags().BoolVarP(&fetchForce, "force", "f", false, "Ignore the last sync time and take everything the source has")
	fetchCmd.Flags().BoolVar(&fetchNoRewrite, "no-rewrite", false, "Store posts without rewriting them")
	rootCmd.AddCommand(fetchCmd)
}
