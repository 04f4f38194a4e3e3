package sqlite

import "time"

// SQLite has no native datetime type; timestamps are stored as
// RFC3339 TEXT so they sort lexicographically.

func nowRFC3339() string {
	return formatRFC3339(time.Now())
}

func formatRFC3339(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999999Z")
}
