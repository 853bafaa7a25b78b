package common

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the backend and the ledger.
const DateLayout = "2006-01-02"

var monthDayPattern = regexp.MustCompile(`^\d{2}-\d{2}$`)

// Clock reports wall time in a fixed location so that "today" matches the
// market the funds trade in rather than the host's zone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a Clock backed by time.Now in loc.
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: time.Now}
}

// NewFixedClock returns a Clock that always reports t. Used by tests.
func NewFixedClock(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current calendar date as YYYY-MM-DD.
func (c *Clock) Today() string {
	return c.Now().Format(DateLayout)
}

// Location returns the clock's timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// NormalizeNetValueDate expands the backend's short "MM-DD" form to
// YYYY-MM-DD using the year of today. Other inputs are returned trimmed.
func NormalizeNetValueDate(raw string, today time.Time) string {
	s := strings.TrimSpace(raw)
	if monthDayPattern.MatchString(s) {
		return fmt.Sprintf("%04d-%s", today.Year(), s)
	}
	return s
}

// AddDays adds n calendar days to a YYYY-MM-DD date.
func AddDays(date string, n int) (string, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d.AddDate(0, 0, n).Format(DateLayout), nil
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
