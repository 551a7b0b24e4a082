package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date formats recognised on statement lines, in the order they are tried.
const (
	FormatISO          = "iso"            // 2024-01-15
	FormatNumeric      = "numeric"        // 15/01/2024, 01-15-2024
	FormatDayMonthName = "day-month-name" // 15 Jan 2024, 15-Jan-24
	FormatMonthNameDay = "month-name-day" // Jan 15, 2024
	FormatNumericShort = "numeric-short"  // 15/01/24
)

const (
	minStatementYear  = 1990
	dateBaseScore     = 70
	monthNameBonus    = 20
	recentDateBonus   = 10
	maxScore          = 100
	twoDigitYearPivot = 50
	isoLayout         = "2006-01-02"
)

const monthNames = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	isoDatePattern          = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	numericDatePattern      = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})\b`)
	dayMonthNamePattern     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?[\s\-/]*` + monthNames + `\b\.?,?[\s\-/]*(\d{4}|\d{2})\b`)
	monthNameDayPattern     = regexp.MustCompile(`(?i)\b` + monthNames + `\b\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4}|\d{2})\b`)
	shortNumericDatePattern = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2})\b`)
)

// dateLayout is one entry of the ordered date pattern table. resolve turns
// the submatches into year, month and day without range checks.
type dateLayout struct {
	format  string
	pattern *regexp.Regexp
	score   int
	resolve func(m []string, dayFirst bool) (year, month, day int)
}

var dateLayouts = []dateLayout{
	{FormatISO, isoDatePattern, maxScore, resolveISO},
	{FormatNumeric, numericDatePattern, dateBaseScore, resolveNumeric},
	{FormatDayMonthName, dayMonthNamePattern, dateBaseScore + monthNameBonus, resolveDayMonthName},
	{FormatMonthNameDay, monthNameDayPattern, dateBaseScore + monthNameBonus, resolveMonthNameDay},
	{FormatNumericShort, shortNumericDatePattern, dateBaseScore, resolveNumeric},
}

// ExtractedDate is a date found on a line together with where it came from.
type ExtractedDate struct {
	Value      string // YYYY-MM-DD
	Original   string
	Format     string
	Confidence int
}

// ExtractDate returns the first calendar-valid date on the line. Layouts are
// tried in priority order; a later layout is only consulted when no match of
// an earlier one is a real date. dayFirst decides A/B/Year dates where
// neither A nor B exceeds 12.
func ExtractDate(line string, dayFirst bool, now time.Time) (ExtractedDate, bool) {
	for _, layout := range dateLayouts {
		for _, loc := range dateMatches(layout.pattern, line) {
			m := submatches(line, loc)
			year, month, day := layout.resolve(m, dayFirst)
			t, ok := calendarDate(year, month, day, now)
			if !ok {
				continue
			}

			score := layout.score
			if layout.format != FormatISO && isRecent(t, now) {
				score += recentDateBonus
			}
			if score > maxScore {
				score = maxScore
			}

			return ExtractedDate{
				Value:      t.Format(isoLayout),
				Original:   m[0],
				Format:     layout.format,
				Confidence: score,
			}, true
		}
	}
	return ExtractedDate{}, false
}

// hasDateShape reports whether any date layout matches, valid or not.
func hasDateShape(line string) bool {
	for _, layout := range dateLayouts {
		if len(dateMatches(layout.pattern, line)) > 0 {
			return true
		}
	}
	return false
}

// maskDates blanks every date-shaped substring so that its digits are not
// mistaken for amounts. Offsets into the line are preserved.
func maskDates(line string) string {
	b := []byte(line)
	for _, layout := range dateLayouts {
		for _, loc := range dateMatches(layout.pattern, line) {
			for i := loc[0]; i < loc[1]; i++ {
				b[i] = ' '
			}
		}
	}
	return string(b)
}

// dateMatches returns the submatch indices of every date-shaped match in
// text, minus matches whose year runs into a decimal or grouped number. In
// "JAN 14 25.00" the "25" is the integer part of an amount, not a year.
func dateMatches(pattern *regexp.Regexp, text string) [][]int {
	all := pattern.FindAllStringSubmatchIndex(text, -1)
	kept := all[:0]
	for _, loc := range all {
		if !runsIntoNumber(text, loc[1]) {
			kept = append(kept, loc)
		}
	}
	return kept
}

func runsIntoNumber(text string, end int) bool {
	if end+1 >= len(text) {
		return false
	}
	sep, next := text[end], text[end+1]
	return (sep == '.' || sep == ',') && next >= '0' && next <= '9'
}

// submatches turns submatch indices into strings; unmatched groups are empty.
func submatches(text string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

// dateStarts returns the sorted, non-overlapping start offsets of every
// date-shaped substring in text.
func dateStarts(text string) []int {
	var spans [][]int
	for _, layout := range dateLayouts {
		for _, loc := range dateMatches(layout.pattern, text) {
			spans = append(spans, loc[:2])
		}
	}
	sortSpans(spans)

	var starts []int
	end := -1
	for _, s := range spans {
		if s[0] < end {
			continue
		}
		starts = append(starts, s[0])
		end = s[1]
	}
	return starts
}

func resolveISO(m []string, _ bool) (int, int, int) {
	return atoi(m[1]), atoi(m[2]), atoi(m[3])
}

func resolveNumeric(m []string, dayFirst bool) (int, int, int) {
	a, b := atoi(m[1]), atoi(m[2])
	year := expandYear(m[3])
	switch {
	case a > 12:
		return year, b, a
	case b > 12:
		return year, a, b
	case dayFirst:
		return year, b, a
	default:
		return year, a, b
	}
}

func resolveDayMonthName(m []string, _ bool) (int, int, int) {
	return expandYear(m[3]), monthNumber(m[2]), atoi(m[1])
}

func resolveMonthNameDay(m []string, _ bool) (int, int, int) {
	return expandYear(m[3]), monthNumber(m[1]), atoi(m[2])
}

// calendarDate validates the parts and builds the date. The year must fall
// in [1990, now+1] and the day must survive a round trip through time.Date,
// which rejects e.g. 30 February.
func calendarDate(year, month, day int, now time.Time) (time.Time, bool) {
	if year < minStatementYear || year > now.Year()+1 {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// isRecent reports whether t lies between one year ago and one month ahead.
func isRecent(t, now time.Time) bool {
	today := truncateDay(now)
	return !t.Before(today.AddDate(-1, 0, 0)) && !t.After(today.AddDate(0, 1, 0))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// expandYear maps two-digit years below 50 to the 2000s and the rest to the 1900s.
func expandYear(s string) int {
	y := atoi(s)
	if len(s) != 2 {
		return y
	}
	if y < twoDigitYearPivot {
		return 2000 + y
	}
	return 1900 + y
}

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

func monthNumber(name string) int {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0
	}
	return monthIndex[name[:3]]
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
