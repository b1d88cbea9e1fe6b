package db

import (
	"context"
	"strings"
)

// Search matches query against handle, author, content and the rewritten
// article. Handle and author hits rank above body hits; ties fall back to
// newest capture first. An empty query lists everything.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, FilterAll, limit)
	}

	pattern := "%" + escapeLike(query) + "%"
	sqlQuery := `
		SELECT ` + recordColumns + ` FROM records
		WHERE handle LIKE ?1 ESCAPE '\'
			OR author LIKE ?1 ESCAPE '\'
			OR content LIKE ?1 ESCAPE '\'
			OR rewritten_payload LIKE ?1 ESCAPE '\'
		ORDER BY
			CASE
				WHEN handle LIKE ?1 ESCAPE '\' OR author LIKE ?1 ESCAPE '\' THEN 0
				WHEN content LIKE ?1 ESCAPE '\' THEN 1
				ELSE 2
			END,
			captured_at DESC, key`
	return s.queryRecords(ctx, sqlQuery, limit, pattern)
}

// escapeLike makes LIKE wildcards in s match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
