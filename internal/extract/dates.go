package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const datePattern = `(?:\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[/\-.]\d{1,2}[/\-.](?:\d{4}|\d{2})|(?i:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4})`

var (
	dateRe        = regexp.MustCompile(`\b` + datePattern + `\b`)
	isoDateRe     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	numericDateRe = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4}|\d{2})$`)
	textDateRe    = regexp.MustCompile(`^([A-Za-z]+)\.?\s+(\d{1,2}),?\s+(\d{4})$`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// NormalizeDate converts a recognized date to ISO 8601 (YYYY-MM-DD). Numeric
// dates are read month first. It returns "" when the text is not a real date.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return isoDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		year := atoi(m[3])
		if len(m[3]) == 2 {
			// same pivot as the time package's two-digit year
			if year < 69 {
				year += 2000
			} else {
				year += 1900
			}
		}
		return isoDate(year, atoi(m[1]), atoi(m[2]))
	}
	if m := textDateRe.FindStringSubmatch(s); m != nil && len(m[1]) >= 3 {
		month, ok := months[strings.ToLower(m[1][:3])]
		if !ok {
			return ""
		}
		return isoDate(atoi(m[3]), int(month), atoi(m[2]))
	}
	return ""
}

func isoDate(year, month, day int) string {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return ""
	}
	return t.Format("2006-01-02")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
