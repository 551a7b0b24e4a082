package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount pattern identifiers, most specific first.
const (
	PatternMarked        = "marked"        // 6,063.00 CR
	PatternParenthesized = "parenthesized" // (125.50)
	PatternGrouped       = "grouped"       // -£1,234.56
	PatternDecimal       = "decimal"       // 125.50
	PatternCurrency      = "currency"      // £25
)

const (
	// maxAmountCandidates is how many right-most amounts a line keeps.
	// Statement rows end with the transaction amount and the running
	// balance, so anything further left is an account or card number.
	maxAmountCandidates = 3
)

var (
	maxTransactionAmount = decimal.NewFromInt(10_000_000)
	maxBalanceAmount     = decimal.NewFromInt(100_000_000)
)

// Each pattern captures the whole token in group 1, an optional sign in
// group 2 and the digits in group 3. The non-capturing prefix keeps the
// token from starting inside a word or another number.
const (
	amountPrefix  = `(?:^|[^\w.,])`
	groupedDigits = `\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?`
	decimalDigits = `\d+\.\d{2}`
)

var (
	markedAmountPattern        = regexp.MustCompile(`(?i)` + amountPrefix + `(([-+])?\s?[£$€]?\s?(` + groupedDigits + `|\d+(?:\.\d{2})?)\s?(CR|DR)\b)`)
	parenthesizedAmountPattern = regexp.MustCompile(amountPrefix + `(\(()\s?[£$€]?\s?(` + groupedDigits + `|` + decimalDigits + `)\s?\))`)
	groupedAmountPattern       = regexp.MustCompile(amountPrefix + `(([-+])?\s?[£$€]?\s?(` + groupedDigits + `))\b`)
	decimalAmountPattern       = regexp.MustCompile(amountPrefix + `(([-+])?\s?[£$€]?\s?(` + decimalDigits + `))\b`)
	currencyAmountPattern      = regexp.MustCompile(amountPrefix + `(([-+])?\s?[£$€]\s?(\d+))\b`)
)

type amountLayout struct {
	name    string
	pattern *regexp.Regexp
	score   int
}

var amountLayouts = []amountLayout{
	{PatternMarked, markedAmountPattern, 95},
	{PatternParenthesized, parenthesizedAmountPattern, 90},
	{PatternGrouped, groupedAmountPattern, 85},
	{PatternDecimal, decimalAmountPattern, 75},
	{PatternCurrency, currencyAmountPattern, 70},
}

// ExtractedAmount is a monetary value found on a line. IsDebit and IsCredit
// are both false when the token itself does not say which way money moved.
type ExtractedAmount struct {
	Value      decimal.Decimal
	Original   string
	IsDebit    bool
	IsCredit   bool
	Confidence int
	Pattern    string
	Start      int
	End        int
}

// SignResolved reports whether the token carried its own direction.
func (a ExtractedAmount) SignResolved() bool {
	return a.IsDebit || a.IsCredit
}

// amountToken is a raw pattern hit before value checks.
type amountToken struct {
	layout amountLayout
	start  int
	end    int
	sign   string
	digits string
}

// findAmountTokens scans text with every amount layout in priority order.
// A lower-priority hit overlapping an earlier one is dropped. Tokens come
// back sorted by position.
func findAmountTokens(text string) []amountToken {
	var tokens []amountToken
	for _, layout := range amountLayouts {
		for _, m := range layout.pattern.FindAllStringSubmatchIndex(text, -1) {
			tok := amountToken{layout: layout, start: m[2], end: m[3]}
			if m[4] >= 0 {
				tok.sign = text[m[4]:m[5]]
			}
			tok.digits = text[m[6]:m[7]]
			if overlapsAny(tokens, tok.start, tok.end) {
				continue
			}
			tokens = append(tokens, tok)
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].start < tokens[j].start })
	return tokens
}

// ExtractAmounts returns the right-most amounts on the line after the
// extracted date, and any other complete date on the line, has been blanked
// out. Values that are not positive or exceed the sanity ceiling are
// discarded before the right-edge cut.
func ExtractAmounts(line, dateOriginal string) []ExtractedAmount {
	text := maskDates(blank(line, dateOriginal))

	var amounts []ExtractedAmount
	for _, tok := range findAmountTokens(text) {
		value, err := parseAmount(tok.digits)
		if err != nil || !value.IsPositive() || value.GreaterThan(maxTransactionAmount) {
			continue
		}

		amt := ExtractedAmount{
			Value:      value,
			Original:   strings.TrimSpace(line[tok.start:tok.end]),
			Confidence: tok.layout.score,
			Pattern:    tok.layout.name,
			Start:      tok.start,
			End:        tok.end,
		}
		switch marker := strings.ToUpper(markerOf(line[tok.start:tok.end])); {
		case marker == "CR":
			amt.IsCredit = true
		case marker == "DR":
			amt.IsDebit = true
		case tok.layout.name == PatternParenthesized:
			amt.IsDebit = true
		case tok.sign == "-":
			amt.IsDebit = true
		case tok.sign == "+":
			amt.IsCredit = true
		}
		amounts = append(amounts, amt)
	}

	if len(amounts) > maxAmountCandidates {
		amounts = amounts[len(amounts)-maxAmountCandidates:]
	}
	return amounts
}

// ClassifyAmounts splits the retained amounts into the transaction amount
// and the running balance. With three or more, the first is the amount and
// the last the balance; anything between is not used.
func ClassifyAmounts(amounts []ExtractedAmount) (txn, balance *ExtractedAmount) {
	switch len(amounts) {
	case 0:
		return nil, nil
	case 1:
		return &amounts[0], nil
	default:
		return &amounts[0], &amounts[len(amounts)-1]
	}
}

// parseAmount converts a string like "1,234.56" or "£1,234.56" to a decimal.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("£", "", "$", "", "€", "", ",", "", " ", "").Replace(s)
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

var markerSuffix = regexp.MustCompile(`(?i)(CR|DR)$`)

func markerOf(token string) string {
	return markerSuffix.FindString(strings.TrimSpace(token))
}

// blank replaces the first occurrence of sub in s with spaces of equal length.
func blank(s, sub string) string {
	if sub == "" {
		return s
	}
	i := strings.Index(s, sub)
	if i < 0 {
		return s
	}
	return s[:i] + strings.Repeat(" ", len(sub)) + s[i+len(sub):]
}

func overlapsAny(tokens []amountToken, start, end int) bool {
	for _, t := range tokens {
		if start < t.end && t.start < end {
			return true
		}
	}
	return false
}

func sortSpans(spans [][]int) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i][0] != spans[j][0] {
			return spans[i][0] < spans[j][0]
		}
		return spans[i][1] > spans[j][1]
	})
}
