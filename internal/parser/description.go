package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minDescriptionLength = 3
	maxDescriptionLength = 100
	fallbackWords        = 4
	minCodeLength        = 6
	ellipsis             = "..."
)

var (
	referencePattern   = regexp.MustCompile(`(?i)\b(?:REF|TXN|ID|TRACE|AUTH)\s*[:#]\s*[A-Z0-9\-/]+`)
	residualMoney      = regexp.MustCompile(`(?i)[-+]?[£$€]?\s?(?:` + groupedDigits + `|` + decimalDigits + `)(?:\s?(?:CR|DR)\b)?`)
	codePattern        = regexp.MustCompile(`[A-Za-z0-9*]*\d[A-Za-z0-9*]*`)
	alphaWordPattern   = regexp.MustCompile(`[A-Za-z]{2,}`)
	descriptionSpacing = regexp.MustCompile(`\s+`)
)

// ExtractDescription removes the date and amount substrings from the line
// by literal replacement, then strips reference codes, leftover money,
// and long alphanumeric codes. Short results fall back to the first
// alphabetic words of the line.
func ExtractDescription(line, dateOriginal string, amountOriginals []string) string {
	s := strings.Replace(line, dateOriginal, " ", 1)
	for _, orig := range amountOriginals {
		if orig != "" {
			s = strings.Replace(s, orig, " ", 1)
		}
	}

	s = referencePattern.ReplaceAllString(s, " ")
	s = residualMoney.ReplaceAllString(s, " ")
	s = codePattern.ReplaceAllStringFunc(s, func(code string) string {
		if len(code) >= minCodeLength {
			return " "
		}
		return code
	})
	s = descriptionSpacing.ReplaceAllString(s, " ")
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})

	if utf8.RuneCountInString(s) < minDescriptionLength {
		s = strings.Join(alphaWordPattern.FindAllString(line, fallbackWords), " ")
	}
	return truncate(s, maxDescriptionLength)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}
