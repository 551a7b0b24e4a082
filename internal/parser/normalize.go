package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/insightdelivered/statement-parser/internal/models"
)

const (
	minLineLength = 10
	maxLineLength = 300

	// Extraction that lost its line breaks shows up as a handful of very
	// long lines; such text is re-split at each date.
	collapsedMaxLines  = 5
	collapsedMinLength = 500
)

var (
	horizontalSpace  = regexp.MustCompile(`[ \t\f\v]+`)
	spaceBeforeColon = regexp.MustCompile(`[ \t]+:`)
	spaceAfterColon  = regexp.MustCompile(`:[ \t]+`)
	invisibleChars   = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "", "\u00ad", "")
	lineBreaks       = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// noisePatterns identify lines that are layout furniture rather than data.
var noisePatterns = []*regexp.Regexp{
	// Page 2 of 5, - 3 -, 2/5
	regexp.MustCompile(`(?i)^-?\s*page\s*\d+(?:\s*(?:of|/)\s*\d+)?\s*-?$`),
	regexp.MustCompile(`^-?\s*\d+\s*(?:of|/|-)?\s*\d*\s*-?$`),
	// Statement header labels
	regexp.MustCompile(`(?i)^(?:statement\s+(?:period|date|number|of\s+account)|account\s+(?:number|no\.?|name|holder|type|summary)|sort\s+code|iban|swift(?:bic)?|bic|branch|customer\s+(?:number|name)|your\s+statement)\b`),
	// Table header rows
	regexp.MustCompile(`(?i)^(?:(?:posting|transaction|value)\s+)?date\b.*\b(?:description|details|transaction|particulars|narrative)\b.*\b(?:amount|debit|credit|balance|paid|money|withdrawals?|deposits?)\b`),
	// Continuation markers
	regexp.MustCompile(`(?i)^\(?\s*continued\b|\bcontinued\s+(?:on|over|overleaf)\b|\(\s*continued\s*\)\s*$`),
	// Separator runs
	regexp.MustCompile(`^[\s\-=_*.~#+|:]{3,}$`),
	// All-caps legal boilerplate of 50 or more characters
	regexp.MustCompile(`^[A-Z][A-Z\s.,;:'&()/\-]{49,}$`),
}

// Normalize splits raw statement text into trimmed, denoised lines. Line
// numbers refer to positions in the split text, before noise is dropped.
func Normalize(text string) []models.RawLine {
	text = norm.NFKC.String(text)
	text = invisibleChars.Replace(lineBreaks.Replace(text))

	var lines []models.RawLine
	for i, raw := range SplitLines(text) {
		line := NormalizeLine(raw)
		if IsNoise(line) {
			continue
		}
		lines = append(lines, models.RawLine{Text: line, Number: i + 1})
	}
	return lines
}

// SplitLines breaks text on newlines. When that yields fewer than five
// lines from a long text, the text is also split at every date occurrence
// and whichever split has more lines is kept.
func SplitLines(text string) []string {
	naive := strings.Split(text, "\n")
	if countNonBlank(naive) >= collapsedMaxLines || len(text) <= collapsedMinLength {
		return naive
	}

	anchored := splitAtDates(text)
	if countNonBlank(anchored) > countNonBlank(naive) {
		return anchored
	}
	return naive
}

func splitAtDates(text string) []string {
	starts := dateStarts(text)
	if len(starts) == 0 {
		return []string{text}
	}

	var segments []string
	if head := text[:starts[0]]; strings.TrimSpace(head) != "" {
		segments = append(segments, head)
	}
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		segments = append(segments, strings.ReplaceAll(text[start:end], "\n", " "))
	}
	return segments
}

// NormalizeLine trims the line, collapses horizontal whitespace and
// tidies the spacing around colons.
func NormalizeLine(line string) string {
	line = strings.TrimSpace(line)
	line = horizontalSpace.ReplaceAllString(line, " ")
	line = spaceBeforeColon.ReplaceAllString(line, ":")
	line = spaceAfterColon.ReplaceAllString(line, ": ")
	return line
}

// IsNoise reports whether a normalized line should be dropped: too short,
// too long, or matching a header, footer, separator or boilerplate shape.
func IsNoise(line string) bool {
	n := utf8.RuneCountInString(line)
	if n < minLineLength || n > maxLineLength {
		return true
	}
	for _, re := range noisePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func countNonBlank(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.TrimFunc(l, unicode.IsSpace) != "" {
			n++
		}
	}
	return n
}
