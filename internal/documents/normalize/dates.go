package normalize

import (
	"strings"
	"time"
)

// Display layouts used on rendered documents.
const (
	DateLayout     = "02 Jan 2006"
	DateTimeLayout = "02 Jan 2006 15:04"
)

var (
	slashLayouts = []string{
		"2006/01/02 15:04:05",
		"2006/1/2 15:04:05",
		"2006/01/02 15:04",
		"2006/01/02",
		"2006/1/2",
	}
	isoLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// ParseTimestamp parses the slash-delimited or ISO-8601 encodings seen in
// records. hasTime reports whether the input carried a time of day.
func ParseTimestamp(raw string) (t time.Time, hasTime bool, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, false
	}
	layouts := isoLayouts
	if strings.Contains(raw, "/") {
		layouts = slashLayouts
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return parsed, strings.Contains(layout, ":"), true
	}
	return time.Time{}, false, false
}

// ParseDisplayDate returns the display form of raw: a date, or a date-time when
// the input had a time component. Unparsable input returns "".
func ParseDisplayDate(raw string) string {
	t, hasTime, ok := ParseTimestamp(raw)
	if !ok {
		return ""
	}
	if hasTime {
		return t.Format(DateTimeLayout)
	}
	return t.Format(DateLayout)
}
