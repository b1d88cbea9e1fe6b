package post

import (
	"strings"
	"time"
)

// Layouts a screenshot timestamp is commonly rendered in, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"3:04 PM · Jan 2, 2006",
	"3:04 PM Jan 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

// ParseTimestamp parses the absolute timestamp formats we know about.
// Relative values such as "2h" are not parseable.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CompareTimestamps orders two post timestamps. Parseable values rank above
// unparseable ones and compare chronologically, byte order breaking ties
// between equal instants. Unparseable values compare by byte order among
// themselves. The order is total, so a max over any set is well defined.
func CompareTimestamps(a, b string) int {
	ta, okA := ParseTimestamp(a)
	tb, okB := ParseTimestamp(b)
	switch {
	case okA && okB:
		if c := ta.Compare(tb); c != 0 {
			return c
		}
	case okA:
		return 1
	case okB:
		return -1
	}
	return strings.Compare(a, b)
}
