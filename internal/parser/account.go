package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/insightdelivered/statement-parser/internal/models"
)

var (
	// Account number: 12345678
	accountNumberPattern = regexp.MustCompile(`(?i)\baccount\s*(?:number|no\.?|#)\s*:?\s*(\d{8})\b`)
	// Sort code: 12-34-56
	sortCodePattern = regexp.MustCompile(`(?i)\bsort\s*code\s*:?\s*(\d{2})[-\s](\d{2})[-\s](\d{2})\b`)
	periodLabel     = regexp.MustCompile(`(?i)\b(?:statement\s+period|period|statement\s+from|from)\b`)
)

// ExtractAccountInfo reads account details from the statement header. The
// header lines are dropped as noise by Normalize, so this works on the raw
// text.
func ExtractAccountInfo(text string, dayFirst bool, now time.Time) models.AccountInfo {
	var info models.AccountInfo
	if m := accountNumberPattern.FindStringSubmatch(text); m != nil {
		info.AccountNumber = m[1]
	}
	if m := sortCodePattern.FindStringSubmatch(text); m != nil {
		info.SortCode = m[1] + "-" + m[2] + "-" + m[3]
	}
	info.StatementPeriod = extractPeriod(text, dayFirst, now)
	return info
}

// extractPeriod finds the first labelled line carrying two dates and
// returns them as "YYYY-MM-DD to YYYY-MM-DD".
func extractPeriod(text string, dayFirst bool, now time.Time) string {
	for _, line := range strings.Split(text, "\n") {
		if !periodLabel.MatchString(line) {
			continue
		}
		line = NormalizeLine(line)
		from, ok := ExtractDate(line, dayFirst, now)
		if !ok {
			continue
		}
		to, ok := ExtractDate(blank(line, from.Original), dayFirst, now)
		if !ok {
			continue
		}
		return from.Value + " to " + to.Value
	}
	return ""
}
