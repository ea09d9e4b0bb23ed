package parsing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a value matches none of the accepted date notations.
var ErrInvalidDate = errors.New("unrecognized date")

var (
	numericDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})$`)
	longDateRe    = regexp.MustCompile(`^(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})$`)
	monthYearRe   = regexp.MustCompile(`^(\p{L}+)\s*[/\-]?\s*(\d{4})$`)
)

// ParseDate reads the date notations found on the vendor documents and returns a UTC
// midnight time. Accepted forms:
//
//	DD/MM/YYYY, DD/MM/YY
//	DD de <mês> de YYYY
//	<mês> YYYY, <mês>/YYYY, <mês>-YYYY, <mês>YYYY  (full or abbreviated month, day set to 1)
func ParseDate(s string, loc Locale) (time.Time, error) {
	const op = "ParseDate"

	value := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if value == "" {
		return time.Time{}, fmt.Errorf("%s: empty value: %w", op, ErrInvalidDate)
	}

	if m := numericDateRe.FindStringSubmatch(value); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year = expandYear(year)
		}
		return buildDate(op, s, year, time.Month(month), day)
	}

	if m := longDateRe.FindStringSubmatch(value); m != nil {
		month, ok := loc.LookupMonth(m[2])
		if !ok {
			return time.Time{}, fmt.Errorf("%s: unknown month in %q: %w", op, s, ErrInvalidDate)
		}
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		return buildDate(op, s, year, month, day)
	}

	if m := monthYearRe.FindStringSubmatch(value); m != nil {
		month, ok := loc.LookupMonth(m[1])
		if !ok {
			return time.Time{}, fmt.Errorf("%s: unknown month in %q: %w", op, s, ErrInvalidDate)
		}
		year, _ := strconv.Atoi(m[2])
		return buildDate(op, s, year, month, 1)
	}

	return time.Time{}, fmt.Errorf("%s: %q: %w", op, s, ErrInvalidDate)
}

// FormatMonthLabel renders the billing month label, e.g. "mai-2024".
func FormatMonthLabel(t time.Time, loc Locale) string {
	return fmt.Sprintf("%s-%04d", loc.ShortMonth(t.Month()), t.Year())
}

// two-digit years pivot the same way strptime's %y does
func expandYear(yy int) int {
	if yy < 69 {
		return 2000 + yy
	}
	return 1900 + yy
}

func buildDate(op, raw string, year int, month time.Month, day int) (time.Time, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("%s: %q is not a calendar date: %w", op, raw, ErrInvalidDate)
	}
	return t, nil
}
