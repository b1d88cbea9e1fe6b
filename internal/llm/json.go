package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeObject decodes the JSON object carried by a model response into v.
// The whole response is tried first; failing that, the first balanced {...}
// span is decoded and surrounding prose is ignored.
func DecodeObject(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), v); err == nil {
			return nil
		}
	}

	span, ok := FirstObject(text)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

// FirstObject returns the first balanced {...} span in s. Braces inside JSON
// strings do not count towards the balance.
func FirstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// String reads a loosely typed JSON value as text: strings as-is, numbers
// and booleans as their literal, null or absent as "".
func String(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	lit := strings.TrimSpace(string(raw))
	if lit == "null" || strings.HasPrefix(lit, "{") || strings.HasPrefix(lit, "[") {
		return ""
	}
	return lit
}

// Bool reads a loosely typed JSON boolean; "true"/"yes" strings count as true.
func Bool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(String(raw))) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// Strings reads an array of strings, or a comma separated string.
func Strings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := String(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	s := String(raw)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
