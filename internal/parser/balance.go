package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	balanceScoreMulti  = 80
	balanceScoreSingle = 60
)

// moneyTokenPattern matches any amount-shaped token, with or without a
// trailing CR/DR marker. Used where only the shape matters.
var moneyTokenPattern = regexp.MustCompile(`(?i)` + amountPrefix + `([-+]?\s?[£$€]?\s?(` + groupedDigits + `|` + decimalDigits + `)(?:\s?(?:CR|DR)\b)?)`)

// ExtractedBalance is a running balance read from a line.
type ExtractedBalance struct {
	Value      decimal.Decimal
	Original   string
	Confidence int
}

// ExtractBalance is the fallback used when amount classification produced
// no balance. It takes the last amount-shaped token that is neither part of
// the date nor the transaction amount, and accepts it when it lies within
// [0, 100,000,000]. Zero balances, which the amount extractor rejects, are
// found here.
func ExtractBalance(line string, date ExtractedDate, txn *ExtractedAmount) (ExtractedBalance, bool) {
	text := maskDates(blank(line, date.Original))
	total := len(moneyTokenPattern.FindAllStringIndex(text, -1))

	if txn != nil && txn.End <= len(text) {
		text = text[:txn.Start] + strings.Repeat(" ", txn.End-txn.Start) + text[txn.End:]
	}
	matches := moneyTokenPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return ExtractedBalance{}, false
	}

	last := matches[len(matches)-1]
	value, err := parseAmount(text[last[4]:last[5]])
	if err != nil || value.IsNegative() || value.GreaterThan(maxBalanceAmount) {
		return ExtractedBalance{}, false
	}

	score := balanceScoreSingle
	if total > 1 {
		score = balanceScoreMulti
	}
	return ExtractedBalance{
		Value:      value,
		Original:   strings.TrimSpace(line[last[2]:last[3]]),
		Confidence: score,
	}, true
}
