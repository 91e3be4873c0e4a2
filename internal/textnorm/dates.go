package textnorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// datePattern is the accepted shape of every stored date: YYYY, YYYY-MM or
// YYYY-MM-DD, optionally prefixed with '~' for approximate dates.
var datePattern = regexp.MustCompile(`^~?\d{4}(-(0[1-9]|1[0-2])(-(0[1-9]|[12]\d|3[01]))?)?$`)

var (
	dateYMD = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateYM  = regexp.MustCompile(`^\d{4}-\d{2}$`)
	dateY   = regexp.MustCompile(`^\d{4}$`)
)

// IsDate reports whether s is a well-formed stored date.
func IsDate(s string) bool {
	return datePattern.MatchString(s)
}

// NormalizeDate drops the approximation marker and surrounding blanks.
func NormalizeDate(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "~")
}

// PeriodBounds turns a partial date into the inclusive ISO calendar range it
// denotes: "1850" is 1850-01-01..1850-12-31, "1850-02" is
// 1850-02-01..1850-02-28 and a full date is its own range. Longer strings
// fall back to their month or year prefix. ok is false when nothing usable
// was found.
func PeriodBounds(s string) (start, end string, ok bool) {
	s = NormalizeDate(s)
	switch {
	case dateYMD.MatchString(s):
		return s, s, true
	case dateYM.MatchString(s):
		return monthBounds(s)
	case dateY.MatchString(s):
		return yearBounds(s)
	case len(s) >= 7 && dateYM.MatchString(s[:7]):
		return monthBounds(s[:7])
	case len(s) >= 4 && dateY.MatchString(s[:4]):
		return yearBounds(s[:4])
	}
	return "", "", false
}

// PeriodStart is the lower bound of PeriodBounds, or "" when s is unusable.
func PeriodStart(s string) string {
	start, _, _ := PeriodBounds(s)
	return start
}

// PeriodEnd is the upper bound of PeriodBounds, or "" when s is unusable.
func PeriodEnd(s string) string {
	_, end, _ := PeriodBounds(s)
	return end
}

func monthBounds(ym string) (string, string, bool) {
	y, _ := strconv.Atoi(ym[:4])
	m, _ := strconv.Atoi(ym[5:7])
	if m < 1 || m > 12 {
		return "", "", false
	}
	last := time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return fmt.Sprintf("%04d-%02d-01", y, m), fmt.Sprintf("%04d-%02d-%02d", y, m, last), true
}

func yearBounds(y string) (string, string, bool) {
	return y + "-01-01", y + "-12-31", true
}
