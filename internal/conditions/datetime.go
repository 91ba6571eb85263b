// file: internal/conditions/datetime.go

package conditions

import (
	"strings"
	"time"
)

// isoLayouts are the ISO-8601 shapes accepted when no format is given.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// timeLayout is HH:mm:ss with a zone designator, e.g. 10:20:30Z.
const timeLayout = "15:04:05Z07:00"

// validDateTime parses s strictly. format is "" for ISO-8601, "time" for
// HH:mm:ssZ, or a moment-style layout such as "YYYY-MM-DD".
func validDateTime(s, format string) bool {
	switch format {
	case "":
		for _, layout := range isoLayouts {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
		return false
	case "time":
		_, err := time.Parse(timeLayout, s)
		return err == nil
	default:
		_, err := time.Parse(GoLayout(format), s)
		return err == nil
	}
}

// momentTokens are matched longest first.
var momentTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"dddd", "Monday"},
	{"MMM", "Jan"},
	{"ddd", "Mon"},
	{"SSS", "000"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"ZZ", "-0700"},
	{"M", "1"},
	{"D", "2"},
	{"H", "15"},
	{"h", "3"},
	{"m", "4"},
	{"s", "5"},
	{"A", "PM"},
	{"a", "pm"},
	{"Z", "-07:00"},
}

// GoLayout converts a moment-style date/time format into a time.Parse layout.
// Text inside [brackets] is copied literally.
func GoLayout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			if end := strings.IndexByte(format[i:], ']'); end > 0 {
				b.WriteString(format[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, t := range momentTokens {
			if strings.HasPrefix(format[i:], t.token) {
				b.WriteString(t.layout)
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}
