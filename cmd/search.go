package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/shotpost/internal/db"
)

var (
	jsonOutput      bool
	plaintextOutput bool
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored posts",
	Long:  "Search stored posts by handle, author, content and article text.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		env, err := setup(true)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.store.Search(cmd.Context(), query, searchLimit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if jsonOutput {
			return outputJSON(results)
		}
		if plaintextOutput {
			return outputPlaintext(results)
		}
		return outputDefault(results)
	},
}

func outputPlaintext(results []db.Record) error {
	for _, r := range results {
		fmt.Printf("%s\t%s\t%s\t%s\n", r.Key, r.Handle, r.Timestamp, truncate(r.Content, 200))
	}
	return nil
}

func outputDefault(results []db.Record) error {
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. %s @%s  %s\n", i+1, statusIcon(r), r.Handle, r.Timestamp)
		fmt.Printf("   %s\n", truncate(r.Content, 100))
		if r.Article != nil {
			fmt.Printf("   -> %s\n", r.Article.Title)
		}
		fmt.Printf("   key: %s\n\n", r.Key)
	}
	return nil
}

func statusIcon(r db.Record) string {
	if r.Rewritten {
		return "[✓]"
	}
	return "[ ]"
}

func init() {
	searchCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	searchCmd.Flags().BoolVarP(&plaintextOutput, "plaintext", "p", false, "Output as plaintext")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 20, "Maximum results")
	rootCmd.AddCommand(searchCmd)
}
