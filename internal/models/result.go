package models

import "time"

// DateFormat is the caller's hint for ambiguous numeric dates.
type DateFormat string

const (
	DateFormatDMY  DateFormat = "DD/MM/YYYY"
	DateFormatMDY  DateFormat = "MM/DD/YYYY"
	DateFormatAuto DateFormat = "auto"
)

// DayFirst reports whether ambiguous A/B/Year dates read A as the day.
// Auto resolves to day-first.
func (f DateFormat) DayFirst() bool {
	return f != DateFormatMDY
}

// ParseDateFormat maps user input to a DateFormat. Unknown values yield false.
func ParseDateFormat(s string) (DateFormat, bool) {
	switch s {
	case "", "auto", "AUTO":
		return DateFormatAuto, true
	case "DD/MM/YYYY", "dd/mm/yyyy", "dmy", "DMY":
		return DateFormatDMY, true
	case "MM/DD/YYYY", "mm/dd/yyyy", "mdy", "MDY":
		return DateFormatMDY, true
	}
	return "", false
}

// Options controls a single parse run.
type Options struct {
	MinConfidence        int        `json:"minConfidence"`
	DateFormat           DateFormat `json:"dateFormat"`
	Strict               bool       `json:"strict"`
	InferSignFromBalance bool       `json:"inferSignFromBalance"`
	Debug                bool       `json:"debug"`
}

// DefaultMinConfidence is the acceptance threshold used when none is given.
const DefaultMinConfidence = 60

// DefaultOptions returns the options used when the caller supplies none.
func DefaultOptions() Options {
	return Options{
		MinConfidence: DefaultMinConfidence,
		DateFormat:    DateFormatAuto,
	}
}

// RawLine is one line of source text and its 1-based position.
type RawLine struct {
	Text   string
	Number int
}

// Line outcomes recorded on CandidateLine.Result.
const (
	ResultParsed       = "parsed"
	ResultSkipped      = "skipped"
	ResultNotCandidate = "not-candidate"
)

// CandidateLine captures how the detector classified a line and what the
// pipeline then did with it.
type CandidateLine struct {
	Line              string   `json:"line"`
	LineNumber        int      `json:"lineNumber"`
	HasDate           bool     `json:"hasDate"`
	HasAmount         bool     `json:"hasAmount"`
	HasBalance        bool     `json:"hasBalance"`
	LikelyTransaction bool     `json:"likelyTransaction"`
	Result            string   `json:"result,omitempty"`
	DateFormat        string   `json:"dateFormat,omitempty"`
	AmountPatterns    []string `json:"amountPatterns,omitempty"`
}

// AccountInfo holds statement-level details found in the header text.
type AccountInfo struct {
	AccountNumber   string `json:"accountNumber,omitempty"`
	SortCode        string `json:"sortCode,omitempty"`
	StatementPeriod string `json:"statementPeriod,omitempty"`
	Institution     string `json:"institution,omitempty"`
}

// Metadata aggregates counts for a parse run.
type Metadata struct {
	TotalLines         int       `json:"totalLines"`
	CandidateLines     int       `json:"candidateLines"`
	ParsedTransactions int       `json:"parsedTransactions"`
	SkippedLines       int       `json:"skippedLines"`
	AvgConfidence      float64   `json:"avgConfidence"`
	ParseDate          time.Time `json:"parseDate"`
}

// ParsingResult is the output of one parse run.
type ParsingResult struct {
	Transactions []Transaction       `json:"transactions"`
	Parsed       []ParsedTransaction `json:"-"`
	Skipped      []SkippedLine       `json:"skipped"`
	Metadata     Metadata            `json:"metadata"`
	Account      AccountInfo         `json:"account"`
	Lines        []CandidateLine     `json:"debugLines,omitempty"`
}
