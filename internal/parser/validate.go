package parser

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// Dates further back than this, or more than a month ahead, are scored as
// out of range.
const reasonableYearsBack = 5

// Issue texts reported for failing factors.
const (
	IssueInvalidDate        = "invalid or missing date"
	IssueNoAmount           = "no debit or credit amount"
	IssueMissingDescription = "missing description"
	IssueDateOutOfRange     = "date out of range"
	IssueInvalidAmountSign  = "invalid amount sign"
)

// factorWeight ties one confidence factor to its weight and to the issue
// reported when it fails. An empty issue means the factor is optional.
type factorWeight struct {
	Name     string
	Weight   int
	Issue    string
	Critical bool
	holds    func(models.ConfidenceFactors) bool
}

var factorWeights = []factorWeight{
	{"validDate", 30, IssueInvalidDate, true, func(f models.ConfidenceFactors) bool { return f.ValidDate }},
	{"hasAmount", 25, IssueNoAmount, true, func(f models.ConfidenceFactors) bool { return f.HasAmount }},
	{"hasDescription", 15, IssueMissingDescription, false, func(f models.ConfidenceFactors) bool { return f.HasDescription }},
	{"hasBalance", 10, "", false, func(f models.ConfidenceFactors) bool { return f.HasBalance }},
	{"amountFormatValid", 10, IssueInvalidAmountSign, false, func(f models.ConfidenceFactors) bool { return f.AmountFormatValid }},
	{"dateInRange", 10, IssueDateOutOfRange, false, func(f models.ConfidenceFactors) bool { return f.DateInRange }},
}

// FactorWeights returns the factor name to weight table.
func FactorWeights() map[string]int {
	m := make(map[string]int, len(factorWeights))
	for _, fw := range factorWeights {
		m[fw.Name] = fw.Weight
	}
	return m
}

// ComputeFactors evaluates the six confidence factors for a transaction.
func ComputeFactors(txn models.Transaction, now time.Time) models.ConfidenceFactors {
	var f models.ConfidenceFactors

	if t, err := time.Parse(isoLayout, txn.Date); err == nil {
		f.ValidDate = t.Year() >= minStatementYear && t.Year() <= now.Year()+1
		today := truncateDay(now)
		f.DateInRange = f.ValidDate &&
			!t.Before(today.AddDate(-reasonableYearsBack, 0, 0)) &&
			!t.After(today.AddDate(0, 1, 0))
	}

	// An amount whose direction is unresolved still counts as present; only
	// its format fails.
	f.HasAmount = txn.Amount.IsPositive()
	f.HasDescription = utf8.RuneCountInString(strings.TrimSpace(txn.Description)) >= minDescriptionLength
	f.HasBalance = txn.Balance.Valid
	f.AmountFormatValid = txn.HasAmount() &&
		!txn.Amount.GreaterThan(maxTransactionAmount) &&
		txn.Amount.Exponent() >= -2
	return f
}

// Score sums the weights of the factors that hold.
func Score(f models.ConfidenceFactors) int {
	score := 0
	for _, fw := range factorWeights {
		if fw.holds(f) {
			score += fw.Weight
		}
	}
	return score
}

// Validate scores a tentative transaction and lists an issue for every
// failing factor that has one.
func Validate(txn models.Transaction, now time.Time) models.ParsedTransaction {
	f := ComputeFactors(txn, now)
	pt := models.ParsedTransaction{
		Transaction: txn,
		Factors:     f,
		Confidence:  Score(f),
	}
	for _, fw := range factorWeights {
		if !fw.holds(f) && fw.Issue != "" {
			pt.Issues = append(pt.Issues, fw.Issue)
		}
	}
	return pt
}

// IsValidTransaction accepts a scored transaction only when both critical
// factors hold and the score reaches minConfidence.
func IsValidTransaction(pt models.ParsedTransaction, minConfidence int) bool {
	return criticalFactorsHold(pt.Factors) && pt.Confidence >= minConfidence
}

func criticalFactorsHold(f models.ConfidenceFactors) bool {
	for _, fw := range factorWeights {
		if fw.Critical && !fw.holds(f) {
			return false
		}
	}
	return true
}
