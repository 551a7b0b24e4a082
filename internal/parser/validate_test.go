package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/insightdelivered/statement-parser/internal/models"
)

func completeTransaction() models.Transaction {
	return models.Transaction{
		Date:        "2024-01-15",
		Description: "Grocery Store",
		Kind:        models.KindDebit,
		Amount:      decimal.RequireFromString("125.50"),
		Balance:     decimal.NewNullDecimal(decimal.RequireFromString("2450.75")),
		RawLine:     "15/01/2024 Grocery Store -125.50 2450.75",
	}
}

func TestFactorWeights(t *testing.T) {
	weights := FactorWeights()
	assert.Equal(t, map[string]int{
		"validDate":         30,
		"hasAmount":         25,
		"hasDescription":    15,
		"hasBalance":        10,
		"amountFormatValid": 10,
		"dateInRange":       10,
	}, weights)

	total := 0
	for _, w := range weights {
		total += w
	}
	assert.Equal(t, 100, total)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*models.Transaction)
		confidence int
		issues     []string
		valid      bool
	}{
		{"complete", func(*models.Transaction) {}, 100, nil, true},
		{"no balance", func(tx *models.Transaction) { tx.Balance = decimal.NullDecimal{} }, 90, nil, true},
		{"no description", func(tx *models.Transaction) { tx.Description = "" }, 85, []string{IssueMissingDescription}, true},
		{"old date", func(tx *models.Transaction) { tx.Date = "2019-01-15" }, 90, []string{IssueDateOutOfRange}, true},
		{"future date", func(tx *models.Transaction) { tx.Date = "2027-01-15" }, 90, []string{IssueDateOutOfRange}, true},
		{"impossible date", func(tx *models.Transaction) { tx.Date = "2024-02-30" }, 60, []string{IssueInvalidDate, IssueDateOutOfRange}, false},
		{"date before 1990", func(tx *models.Transaction) { tx.Date = "1985-01-15" }, 60, []string{IssueInvalidDate, IssueDateOutOfRange}, false},
		{"unresolved sign", func(tx *models.Transaction) { tx.Kind = "" }, 90, []string{IssueInvalidAmountSign}, true},
		{"zero amount", func(tx *models.Transaction) { tx.Amount = decimal.Zero }, 65, []string{IssueNoAmount, IssueInvalidAmountSign}, false},
		{"three decimals", func(tx *models.Transaction) { tx.Amount = decimal.RequireFromString("1.005") }, 90, []string{IssueInvalidAmountSign}, true},
		{"over ceiling", func(tx *models.Transaction) { tx.Amount = decimal.NewFromInt(20_000_000) }, 90, []string{IssueInvalidAmountSign}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := completeTransaction()
			tt.mutate(&tx)

			pt := Validate(tx, testNow)
			assert.Equal(t, tt.confidence, pt.Confidence)
			assert.Equal(t, Score(pt.Factors), pt.Confidence)
			assert.Equal(t, tt.issues, pt.Issues)
			assert.Equal(t, tt.valid, IsValidTransaction(pt, models.DefaultMinConfidence))
		})
	}
}

func TestIsValidTransaction_CriticalGate(t *testing.T) {
	tx := completeTransaction()
	tx.Date = ""
	pt := Validate(tx, testNow)

	assert.Equal(t, 60, pt.Confidence)
	assert.False(t, IsValidTransaction(pt, 0), "missing date must fail even at threshold 0")

	tx = completeTransaction()
	tx.Kind = ""
	pt = Validate(tx, testNow)
	assert.False(t, IsValidTransaction(pt, 0), "missing amount must fail even at threshold 0")
}

func TestIsValidTransaction_Threshold(t *testing.T) {
	tx := completeTransaction()
	tx.Balance = decimal.NullDecimal{}
	pt := Validate(tx, testNow)

	assert.True(t, IsValidTransaction(pt, 90))
	assert.False(t, IsValidTransaction(pt, 91))
}
