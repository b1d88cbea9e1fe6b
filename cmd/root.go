package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/shotpost/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "shotpost",
	Short: "Turn post screenshots into stored, rewritten articles",
	Long: "shotpost reads screenshots of social media posts with a vision model, drops ads and " +
		"duplicates, stores the posts and rewrites them as short articles for a target locale.\n\n" +
		"Without a subcommand it opens a browser over the stored posts.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(false)
		if err != nil {
			return err
		}
		defer env.Close()
		return tui.Run(env.store)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (default: ~/.shotpost)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}
