package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/shotpost/internal/ingest"
)

var syncRebuild bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Show or rebuild the sync watermark",
	Long: "Print the newest post timestamp processed and the time of the last completed fetch. " +
		"With --rebuild, recompute the watermark from the stored posts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			return err
		}
		defer env.Close()

		tracker := ingest.NewSyncTracker(env.store)
		if syncRebuild {
			ts, err := tracker.Rebuild(cmd.Context())
			if err != nil {
				return fmt.Errorf("rebuild failed: %w", err)
			}
			fmt.Printf("Watermark rebuilt from stored posts: %s\n", orNone(ts))
		}

		st, err := tracker.State(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Watermark: %s\n", orNone(st.LastSeenTimestamp))
		if st.LastSyncAt.IsZero() {
			fmt.Println("Last sync: never")
		} else {
			fmt.Printf("Last sync: %s\n", st.LastSyncAt.Local().Format(time.RFC3339))
		}
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	syncCmd.Flags().BoolVar(&syncRebuild, "rebuild", false, "Recompute the watermark from stored posts")
	rootCmd.AddCommand(syncCmd)
}
