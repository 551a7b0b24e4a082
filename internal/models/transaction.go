package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Kind is the monetary direction of a transaction.
type Kind string

const (
	KindDebit  Kind = "DEBIT"
	KindCredit Kind = "CREDIT"
)

// Transaction represents a single bank statement transaction.
//
// The amount is stored once as a non-negative magnitude plus a Kind.
// DebitAmount/CreditAmount and Payment/Receipt expose the two column
// conventions statements use for the same value.
type Transaction struct {
	Date        string              `json:"date"` // YYYY-MM-DD
	Description string              `json:"description"`
	Kind        Kind                `json:"type,omitempty"` // DEBIT or CREDIT
	Amount      decimal.Decimal     `json:"amount"`
	Balance     decimal.NullDecimal `json:"balance"`
	RawLine     string              `json:"rawLine"`
}

// HasAmount reports whether the transaction carries a usable debit or credit amount.
func (t Transaction) HasAmount() bool {
	return (t.Kind == KindDebit || t.Kind == KindCredit) && t.Amount.IsPositive()
}

// DebitAmount returns the amount when the transaction is a debit.
func (t Transaction) DebitAmount() (decimal.Decimal, bool) {
	if t.Kind == KindDebit && t.Amount.IsPositive() {
		return t.Amount, true
	}
	return decimal.Zero, false
}

// CreditAmount returns the amount when the transaction is a credit.
func (t Transaction) CreditAmount() (decimal.Decimal, bool) {
	if t.Kind == KindCredit && t.Amount.IsPositive() {
		return t.Amount, true
	}
	return decimal.Zero, false
}

// Payment is the statement-column name for DebitAmount ("Paid out").
func (t Transaction) Payment() (decimal.Decimal, bool) { return t.DebitAmount() }

// Receipt is the statement-column name for CreditAmount ("Paid in").
func (t Transaction) Receipt() (decimal.Decimal, bool) { return t.CreditAmount() }

// SignedAmount returns the amount negated for debits.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Kind == KindDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// transactionJSON is the wire shape of a Transaction. debitAmount and
// creditAmount are derived from Kind; exactly one is present once the
// direction is resolved.
type transactionJSON struct {
	Date         string              `json:"date"`
	Description  string              `json:"description"`
	Kind         Kind                `json:"type,omitempty"`
	Amount       decimal.Decimal     `json:"amount"`
	DebitAmount  *decimal.Decimal    `json:"debitAmount,omitempty"`
	CreditAmount *decimal.Decimal    `json:"creditAmount,omitempty"`
	Balance      decimal.NullDecimal `json:"balance"`
	RawLine      string              `json:"rawLine"`
}

func (t Transaction) wire() transactionJSON {
	out := transactionJSON{
		Date:        t.Date,
		Description: t.Description,
		Kind:        t.Kind,
		Amount:      t.Amount,
		Balance:     t.Balance,
		RawLine:     t.RawLine,
	}
	if d, ok := t.DebitAmount(); ok {
		out.DebitAmount = &d
	}
	if c, ok := t.CreditAmount(); ok {
		out.CreditAmount = &c
	}
	return out
}

// MarshalJSON adds the debitAmount/creditAmount pair to the stored fields.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.wire())
}

// ConfidenceFactors are the independent checks that make up a confidence score.
type ConfidenceFactors struct {
	ValidDate         bool `json:"validDate"`
	HasAmount         bool `json:"hasAmount"`
	HasDescription    bool `json:"hasDescription"`
	HasBalance        bool `json:"hasBalance"`
	AmountFormatValid bool `json:"amountFormatValid"`
	DateInRange       bool `json:"dateInRange"`
}

// SignSource records how the debit/credit direction of an amount was decided.
type SignSource string

const (
	SignPattern SignSource = "pattern" // marker token, sign or parentheses on the amount itself
	SignKeyword SignSource = "keyword"
	SignBalance SignSource = "balance"
	SignDefault SignSource = "default"
	SignNone    SignSource = ""
)

// ParsedTransaction is a Transaction carrying its scoring while it is validated.
type ParsedTransaction struct {
	Transaction
	LineNumber int               `json:"lineNumber"`
	Confidence int               `json:"confidence"`
	Factors    ConfidenceFactors `json:"factors"`
	Issues     []string          `json:"issues,omitempty"`
	SignSource SignSource        `json:"signSource,omitempty"`
	DateFormat string            `json:"dateFormat,omitempty"`
}

// MarshalJSON keeps the scoring fields next to the transaction fields, which
// the promoted Transaction.MarshalJSON would otherwise drop.
func (pt ParsedTransaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		transactionJSON
		LineNumber int               `json:"lineNumber"`
		Confidence int               `json:"confidence"`
		Factors    ConfidenceFactors `json:"factors"`
		Issues     []string          `json:"issues,omitempty"`
		SignSource SignSource        `json:"signSource,omitempty"`
		DateFormat string            `json:"dateFormat,omitempty"`
	}{
		transactionJSON: pt.Transaction.wire(),
		LineNumber:      pt.LineNumber,
		Confidence:      pt.Confidence,
		Factors:         pt.Factors,
		Issues:          pt.Issues,
		SignSource:      pt.SignSource,
		DateFormat:      pt.DateFormat,
	})
}

// SkippedLine is a candidate line that did not become a transaction.
type SkippedLine struct {
	Line       string `json:"line"`
	LineNumber int    `json:"lineNumber"`
	Reason     string `json:"reason"`
	Confidence int    `json:"confidence"`
}
