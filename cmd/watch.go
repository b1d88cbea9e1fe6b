package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/shotpost/internal/capture"
	"github.com/user/shotpost/internal/ingest"
	"github.com/user/shotpost/internal/scheduler"
)

var (
	watchNow     bool
	watchTimeout time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Fetch on a schedule until interrupted",
	Long: "Run fetch for capture.accounts on the schedule.cron schedule. " +
		"A fetch still running when the next one is due is skipped.",
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
		p, err := env.pipeline(true)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		sched, err := scheduler.New(ctx, env.cfg.Schedule.Timezone, watchTimeout, env.logger)
		if err != nil {
			return err
		}

		fetch := func(ctx context.Context) error {
			res, err := p.Fetch(ctx, src, ingest.FetchOptions{
				Accounts: env.cfg.Capture.Accounts,
				Count:    env.cfg.Capture.Count,
			})
			if err != nil {
				return err
			}
			return res.Err()
		}

		if err := sched.AddJob("fetch", env.cfg.Schedule.Cron, fetch); err != nil {
			return err
		}
		if watchNow {
			if err := sched.RunNow("fetch", fetch); err != nil {
				env.logger.Error("initial fetch failed", "err", err)
			}
		}

		sched.Start()
		for _, j := range sched.ListJobs() {
			env.logger.Info("next run", "job", j.Name, "at", j.NextRun.Format(time.RFC3339))
		}

		<-ctx.Done()
		<-sched.Stop().Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Fetch once immediately before waiting for the schedule")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 30*time.Minute, "Maximum duration of one fetch")
	rootCmd.AddCommand(watchCmd)
}
