package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show counts of stored posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.store.Stats(cmd.Context(), time.Now())
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}
		if statsJSON {
			return outputJSON(st)
		}

		fmt.Printf("Total posts:   %d\n", st.Total)
		fmt.Printf("Last 24 hours: %d\n", st.Last24h)
		fmt.Printf("Rewritten:     %d\n", st.Rewritten)
		if len(st.ByHandle) > 0 {
			fmt.Println("\nBy handle:")
			for _, hc := range st.ByHandle {
				fmt.Printf("  @%-24s %d\n", hc.Handle, hc.Count)
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVarP(&statsJSON, "json", "j", false, "Output as JSON")
	rootCmd.AddCommand(statsCmd)
}
