package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/shotpost/internal/ingest"
)

func printResult(res ingest.Result) {
	if res.Captured > 0 || res.Extracted > 0 {
		fmt.Printf("Screenshots: %d  extracted: %d  failed: %d\n", res.Captured, res.Extracted, res.ExtractFailed)
		fmt.Printf("Ads skipped: %d  duplicates: %d  stored: %d\n", res.Ads, res.Duplicates, res.Stored)
	}
	fmt.Printf("Rewritten: %d  rewrite failures: %d  store failures: %d\n", res.Rewritten, res.RewriteFailed, res.StoreFailed)
}

func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
