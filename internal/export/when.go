package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// ParseWhen parses a date bound for an export range: YYYY-MM-DD (local
// midnight), RFC3339, or natural language such as "last monday" or
// "3 days ago", resolved relative to now.
func ParseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
