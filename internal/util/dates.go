package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"quantbts/internal/domain"
)

// DateFromTime encodes the calendar date of t (in t's location) as YYYYMMDD.
func DateFromTime(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// TimeFromDate decodes a YYYYMMDD date to midnight UTC. It does not validate;
// see ParseDate.
func TimeFromDate(date int) time.Time {
	return time.Date(date/10000, time.Month(date/100%100), date%100, 0, 0, 0, 0, time.UTC)
}

// ValidDate reports whether date is a real calendar day in YYYYMMDD form.
func ValidDate(date int) bool {
	if date < 10000101 || date > 99991231 {
		return false
	}
	return DateFromTime(TimeFromDate(date)) == date
}

// ParseDate accepts "20240102" or "2024-01-02".
func ParseDate(s string) (int, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return DateFromTime(t), nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || !ValidDate(v) {
		return 0, fmt.Errorf("%w: date %q is not YYYYMMDD or YYYY-MM-DD", domain.ErrInvalidInput, s)
	}
	return v, nil
}

// FormatDate renders a YYYYMMDD date as YYYY-MM-DD.
func FormatDate(date int) string {
	return fmt.Sprintf("%04d-%02d-%02d", date/10000, date/100%100, date%100)
}

// Yesterday returns the UTC calendar day before now as YYYYMMDD.
func Yesterday(now time.Time) int {
	return DateFromTime(now.UTC().AddDate(0, 0, -1))
}
