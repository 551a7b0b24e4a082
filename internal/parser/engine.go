package parser

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// Skip reasons recorded on SkippedLine.
const (
	reasonMissingFields = "Failed to extract required fields: missing %s"
	reasonLowConfidence = "Low confidence (%d/100)"
	reasonStrict        = "Strict mode: %s"
)

// balanceTolerance is how far a running balance may drift from
// previous ± amount and still count as a match.
var balanceTolerance = decimal.New(1, -2)

// Engine turns statement text into scored transactions. An Engine holds no
// state between calls and is safe for concurrent use.
type Engine struct {
	opts   models.Options
	vocabs []*Vocabulary
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock fixes the time used for date range checks and ParseDate.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger used for per-line debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithVocabularies replaces the built-in keyword vocabularies.
func WithVocabularies(v []*Vocabulary) Option {
	return func(e *Engine) {
		if len(v) > 0 {
			e.vocabs = v
		}
	}
}

// New returns an Engine for the given options. A MinConfidence of zero or
// less selects the default threshold; an empty DateFormat means auto.
func New(opts models.Options, options ...Option) *Engine {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = models.DefaultMinConfidence
	}
	if opts.MinConfidence > maxScore {
		opts.MinConfidence = maxScore
	}
	if opts.DateFormat == "" {
		opts.DateFormat = models.DateFormatAuto
	}

	e := &Engine{
		opts:   opts,
		vocabs: BuiltinVocabularies(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Parse runs the text through the engine with the given options.
func Parse(text string, opts models.Options) *models.ParsingResult {
	return New(opts).Parse(text)
}

// Options returns the effective options of the engine.
func (e *Engine) Options() models.Options {
	return e.opts
}

// ParsePages joins extracted pages and parses them as one text.
func (e *Engine) ParsePages(pages []string) *models.ParsingResult {
	return e.Parse(strings.Join(pages, "\n"))
}

// Parse normalizes the text and runs every likely transaction line through
// extraction and validation. Malformed input never fails the call; lines
// that cannot be used are reported in Skipped.
func (e *Engine) Parse(text string) *models.ParsingResult {
	now := e.now()
	dayFirst := e.opts.DateFormat.DayFirst()
	vocab := DetectVocabulary(text, e.vocabs)

	result := &models.ParsingResult{
		Transactions: []models.Transaction{},
		Skipped:      []models.SkippedLine{},
		Account:      ExtractAccountInfo(text, dayFirst, now),
	}
	if vocab.Name != DefaultVocabularyName {
		result.Account.Institution = vocab.Name
	}

	lines := Normalize(text)
	var parsed []models.ParsedTransaction
	candidates := 0

	for _, line := range lines {
		c := Classify(line)
		if !c.LikelyTransaction {
			c.Result = models.ResultNotCandidate
			e.debugLine(result, c)
			continue
		}
		candidates++

		pt, skip, ok := e.parseLine(line, vocab, dayFirst, now, &c)
		if ok {
			c.Result = models.ResultParsed
			parsed = append(parsed, pt)
		} else {
			c.Result = models.ResultSkipped
			result.Skipped = append(result.Skipped, skip)
			e.logger.Debug("skipped line",
				zap.Int("line", skip.LineNumber),
				zap.String("reason", skip.Reason),
				zap.Int("confidence", skip.Confidence))
		}
		e.debugLine(result, c)
	}

	if e.opts.InferSignFromBalance {
		inferSignsFromBalances(parsed)
	}

	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].Date < parsed[j].Date })

	total := 0
	for _, pt := range parsed {
		result.Transactions = append(result.Transactions, pt.Transaction)
		total += pt.Confidence
	}
	result.Parsed = parsed

	result.Metadata = models.Metadata{
		TotalLines:         len(lines),
		CandidateLines:     candidates,
		ParsedTransactions: len(parsed),
		SkippedLines:       len(result.Skipped),
		ParseDate:          now,
	}
	if len(parsed) > 0 {
		avg := float64(total) / float64(len(parsed))
		result.Metadata.AvgConfidence = math.Round(avg*100) / 100
	}

	e.logger.Debug("parse complete",
		zap.String("vocabulary", vocab.Name),
		zap.Int("lines", result.Metadata.TotalLines),
		zap.Int("candidates", candidates),
		zap.Int("transactions", len(parsed)),
		zap.Int("skipped", len(result.Skipped)))
	return result
}

// parseLine extracts and validates one candidate line. The candidate record
// is annotated with what matched for debug output.
func (e *Engine) parseLine(line models.RawLine, vocab *Vocabulary, dayFirst bool, now time.Time, c *models.CandidateLine) (models.ParsedTransaction, models.SkippedLine, bool) {
	skip := models.SkippedLine{Line: line.Text, LineNumber: line.Number}

	date, hasDate := ExtractDate(line.Text, dayFirst, now)
	amounts := ExtractAmounts(line.Text, date.Original)
	txnAmt, balAmt := ClassifyAmounts(amounts)

	c.DateFormat = date.Format
	for _, a := range amounts {
		c.AmountPatterns = append(c.AmountPatterns, a.Pattern)
	}

	switch {
	case !hasDate && txnAmt == nil:
		skip.Reason = fmt.Sprintf(reasonMissingFields, "date and amount")
		return models.ParsedTransaction{}, skip, false
	case !hasDate:
		skip.Reason = fmt.Sprintf(reasonMissingFields, "date")
		return models.ParsedTransaction{}, skip, false
	case txnAmt == nil:
		skip.Reason = fmt.Sprintf(reasonMissingFields, "amount")
		return models.ParsedTransaction{}, skip, false
	}

	kind, source := e.resolveSign(*txnAmt, line.Text, vocab)

	originals := make([]string, 0, len(amounts)+1)
	for _, a := range amounts {
		originals = append(originals, a.Original)
	}

	txn := models.Transaction{
		Date:    date.Value,
		Kind:    kind,
		Amount:  txnAmt.Value,
		RawLine: line.Text,
	}
	if balAmt != nil {
		txn.Balance = decimal.NewNullDecimal(balAmt.Value)
	} else if bal, ok := ExtractBalance(line.Text, date, txnAmt); ok {
		txn.Balance = decimal.NewNullDecimal(bal.Value)
		originals = append(originals, bal.Original)
	}
	txn.Description = ExtractDescription(line.Text, date.Original, originals)

	pt := Validate(txn, now)
	pt.LineNumber = line.Number
	pt.SignSource = source
	pt.DateFormat = date.Format

	if !IsValidTransaction(pt, e.opts.MinConfidence) {
		skip.Reason = fmt.Sprintf(reasonLowConfidence, pt.Confidence)
		if len(pt.Issues) > 0 {
			skip.Reason += ": " + strings.Join(pt.Issues, ", ")
		}
		skip.Confidence = pt.Confidence
		return models.ParsedTransaction{}, skip, false
	}
	if e.opts.Strict && len(pt.Issues) > 0 {
		skip.Reason = fmt.Sprintf(reasonStrict, strings.Join(pt.Issues, ", "))
		skip.Confidence = pt.Confidence
		return models.ParsedTransaction{}, skip, false
	}
	return pt, skip, true
}

// resolveSign decides the direction of an amount: the token's own marker
// or sign first, then the vocabulary. Outside strict mode an amount with no
// evidence either way is taken as a debit.
func (e *Engine) resolveSign(amt ExtractedAmount, line string, vocab *Vocabulary) (models.Kind, models.SignSource) {
	switch {
	case amt.IsDebit:
		return models.KindDebit, models.SignPattern
	case amt.IsCredit:
		return models.KindCredit, models.SignPattern
	}
	if kind, ok := vocab.Classify(line); ok {
		return kind, models.SignKeyword
	}
	if e.opts.Strict {
		return "", models.SignNone
	}
	return models.KindDebit, models.SignDefault
}

func (e *Engine) debugLine(result *models.ParsingResult, c models.CandidateLine) {
	if e.opts.Debug {
		result.Lines = append(result.Lines, c)
	}
}

// inferSignsFromBalances revisits defaulted signs using the running balance
// of the transaction before, in encounter order.
func inferSignsFromBalances(txns []models.ParsedTransaction) {
	var prev decimal.NullDecimal
	for i := range txns {
		t := &txns[i]
		if t.SignSource == models.SignDefault && prev.Valid && t.Balance.Valid {
			if kind, ok := classifyByBalance(t.Amount, t.Balance.Decimal, prev.Decimal); ok {
				t.Kind = kind
				t.SignSource = models.SignBalance
			}
		}
		prev = t.Balance
	}
}

// classifyByBalance reports whether moving from prev to bal by amt was a
// debit or a credit. When both fit, the closer one wins.
func classifyByBalance(amt, bal, prev decimal.Decimal) (models.Kind, bool) {
	debitDiff := prev.Sub(amt).Sub(bal).Abs()
	creditDiff := prev.Add(amt).Sub(bal).Abs()

	debitFits := debitDiff.LessThanOrEqual(balanceTolerance)
	creditFits := creditDiff.LessThanOrEqual(balanceTolerance)
	switch {
	case debitFits && creditFits:
		if debitDiff.LessThanOrEqual(creditDiff) {
			return models.KindDebit, true
		}
		return models.KindCredit, true
	case debitFits:
		return models.KindDebit, true
	case creditFits:
		return models.KindCredit, true
	}
	return "", false
}
