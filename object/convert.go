package object

import "time"

// asTime parses the DATETIME value sqlite returns for a CURRENT_TIMESTAMP
// column. modernc.org/sqlite yields this as a string in "YYYY-MM-DD
// HH:MM:SS" form; a handful of formats are tried so a driver upgrade that
// switches representations doesn't silently zero out Created.
func asTime(v any) time.Time {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05Z"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// asInt64/asString/asTime normalise the dynamically-typed column values the
// storage adapter returns into the Go types the object engine uses,
// mirroring structure/convert.go for this package's own row shapes.
func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case []byte:
		return parseInt64(string(t))
	case string:
		return parseInt64(t)
	default:
		return 0
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

func parseInt64(s string) int64 {
	var n int64
	var neg bool
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int64(r-'0')
	}
	if neg {
		return -n
	}
	return n
}
