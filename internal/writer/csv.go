package writer

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// Columns is the transaction header shared by the tabular writers.
var Columns = []string{"Date", "Description", "Debit", "Credit", "Balance"}

// CSVWriter writes transactions to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the result to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, result *models.ParsingResult) error {
	return writeFile(path, func(out io.Writer) error { return w.Write(out, result) })
}

// Write writes the result in CSV format. With IncludeHeader set, run and
// account details come first as "# Name,value" rows.
func (w *CSVWriter) Write(out io.Writer, result *models.ParsingResult) error {
	cw := csv.NewWriter(out)

	if w.IncludeHeader {
		for _, kv := range metadataRows(result) {
			if err := cw.Write(kv); err != nil {
				return eris.Wrap(err, "write CSV metadata")
			}
		}
	}

	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "write CSV header")
	}

	for _, txn := range result.Transactions {
		debit, _ := txn.DebitAmount()
		credit, _ := txn.CreditAmount()
		row := []string{
			txn.Date,
			txn.Description,
			formatAmount(debit),
			formatAmount(credit),
			formatBalance(txn.Balance),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "write CSV row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "flush CSV")
}

func metadataRows(result *models.ParsingResult) [][]string {
	md := result.Metadata
	rows := [][]string{
		{"# Parse Date", md.ParseDate.Format(time.RFC3339)},
		{"# Transactions", strconv.Itoa(len(result.Transactions))},
		{"# Average Confidence", strconv.FormatFloat(md.AvgConfidence, 'f', 2, 64)},
	}

	acct := result.Account
	for _, kv := range [][2]string{
		{"# Institution", acct.Institution},
		{"# Account Number", acct.AccountNumber},
		{"# Sort Code", acct.SortCode},
		{"# Statement Period", acct.StatementPeriod},
	} {
		if kv[1] != "" {
			rows = append(rows, []string{kv[0], kv[1]})
		}
	}
	return rows
}

// formatAmount renders a magnitude with two decimals; zero means the
// column does not apply and is left empty.
func formatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func formatBalance(b decimal.NullDecimal) string {
	if !b.Valid {
		return ""
	}
	return b.Decimal.StringFixed(2)
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create output file %q", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "close output file %q", path)
		}
	}()
	return write(f)
}
