package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	extractStore     bool
	extractNoRewrite bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>...",
	Short: "Extract posts from screenshots",
	Long: "Run extraction on the given screenshots and print the posts as JSON. " +
		"With --store, run them through the full pipeline instead.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(false)
		if err != nil {
			return err
		}
		defer env.Close()

		if extractStore {
			p, err := env.pipeline(!extractNoRewrite)
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context(), args)
			printResult(res)
			if err != nil {
				return err
			}
			return res.Err()
		}

		ex, err := env.extractor()
		if err != nil {
			return err
		}
		failed := 0
		for _, path := range args {
			p, err := ex.Extract(cmd.Context(), path)
			if err != nil {
				env.logger.Error("extraction failed", "path", path, "err", err)
				failed++
				continue
			}
			if err := outputJSON(p); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d screenshots could not be extracted", failed, len(args))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVarP(&extractStore, "store", "s", false, "Filter, deduplicate, store and rewrite the results")
	extractCmd.Flags().BoolVar(&extractNoRewrite, "no-rewrite", false, "With --store, skip rewriting")
	rootCmd.AddCommand(extractCmd)
}
