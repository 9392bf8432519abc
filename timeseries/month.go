package timeseries

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrInvalidMonth = errors.New("month key must be formatted as YYYY-MM")

// Month is a calendar month stored as the number of months since January of year 0. This
// keeps month arithmetic and ordering trivial while still printing as YYYY-MM.
type Month int

// NewMonth returns the Month for the given year and calendar month.
func NewMonth(year int, month time.Month) Month {
	return Month(year*12 + int(month) - 1)
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// ParseMonth parses a YYYY-MM month key.
func ParseMonth(s string) (Month, error) {
	if len(s) != 7 || s[4] != '-' {
		return 0, fmt.Errorf("%q, %w", s, ErrInvalidMonth)
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 0 {
		return 0, fmt.Errorf("%q, %w", s, ErrInvalidMonth)
	}
	mon, err := strconv.Atoi(s[5:])
	if err != nil || mon < 1 || mon > 12 {
		return 0, fmt.Errorf("%q, %w", s, ErrInvalidMonth)
	}
	return NewMonth(year, time.Month(mon)), nil
}

// MustParseMonth is ParseMonth that panics on malformed input. Intended for tests and constants.
func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Year returns the calendar year of the month.
func (m Month) Year() int {
	return int(m) / 12
}

// Num returns the calendar month number from 1 to 12.
func (m Month) Num() int {
	return int(m)%12 + 1
}

// Add returns the month n months after m. n may be negative.
func (m Month) Add(n int) Month {
	return m + Month(n)
}

// Sub returns the number of months between o and m.
func (m Month) Sub(o Month) int {
	return int(m - o)
}

// Time returns midnight UTC on the first day of the month.
func (m Month) Time() time.Time {
	return time.Date(m.Year(), time.Month(m.Num()), 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year(), m.Num())
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(data []byte) error {
	parsed, err := ParseMonth(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Range returns n consecutive months starting at start.
func Range(start Month, n int) []Month {
	if n <= 0 {
		return nil
	}
	months := make([]Month, n)
	for i := 0; i < n; i++ {
		months[i] = start.Add(i)
	}
	return months
}
