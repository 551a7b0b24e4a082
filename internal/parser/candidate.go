package parser

import (
	"strings"
	"unicode"

	"github.com/insightdelivered/statement-parser/internal/models"
)

const minStructuralTokens = 3

// Classify decides whether a normalized line plausibly holds a transaction.
// Amount shapes are looked for only after date substrings are blanked, so
// the digits of "15.01.2024" never count as an amount.
func Classify(line models.RawLine) models.CandidateLine {
	c := models.CandidateLine{
		Line:       line.Text,
		LineNumber: line.Number,
		HasDate:    hasDateShape(line.Text),
	}

	tokens := findAmountTokens(maskDates(line.Text))
	c.HasAmount = len(tokens) > 0
	c.HasBalance = len(tokens) >= 2

	c.LikelyTransaction = (c.HasDate && c.HasAmount) ||
		(isWellFormed(line.Text) && (c.HasDate || c.HasAmount))
	return c
}

// DetectCandidates classifies every line and returns both the full set and
// the subset flagged as likely transactions.
func DetectCandidates(lines []models.RawLine) (all, likely []models.CandidateLine) {
	all = make([]models.CandidateLine, 0, len(lines))
	for _, l := range lines {
		c := Classify(l)
		all = append(all, c)
		if c.LikelyTransaction {
			likely = append(likely, c)
		}
	}
	return all, likely
}

// isWellFormed requires at least three tokens and both letters and digits.
func isWellFormed(line string) bool {
	if len(strings.Fields(line)) < minStructuralTokens {
		return false
	}
	var letter, digit bool
	for _, r := range line {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
		if letter && digit {
			return true
		}
	}
	return false
}
