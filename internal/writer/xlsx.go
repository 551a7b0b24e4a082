package writer

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// Sheet names in the workbook.
const (
	SheetTransactions = "Transactions"
	SheetSkipped      = "Skipped"
)

const amountFormat = "#,##0.00"

// XLSXWriter writes a workbook with one sheet of transactions and one of
// skipped lines.
type XLSXWriter struct{}

// WriteToFile writes the workbook to path.
func (w *XLSXWriter) WriteToFile(path string, result *models.ParsingResult) error {
	f, err := w.build(result)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "save workbook %q", path)
}

// Write writes the workbook to out.
func (w *XLSXWriter) Write(out io.Writer, result *models.ParsingResult) error {
	f, err := w.build(result)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(out), "write workbook")
}

func (w *XLSXWriter) build(result *models.ParsingResult) (*xlsx.File, error) {
	f := xlsx.NewFile()

	txSheet, err := f.AddSheet(SheetTransactions)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add transactions sheet")
	}
	addHeader(txSheet, Columns)
	for _, txn := range result.Transactions {
		row := txSheet.AddRow()
		row.AddCell().SetString(txn.Date)
		row.AddCell().SetString(txn.Description)
		debit, _ := txn.DebitAmount()
		credit, _ := txn.CreditAmount()
		addAmountCell(row, debit, !debit.IsZero())
		addAmountCell(row, credit, !credit.IsZero())
		addAmountCell(row, txn.Balance.Decimal, txn.Balance.Valid)
	}

	skipSheet, err := f.AddSheet(SheetSkipped)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add skipped sheet")
	}
	addHeader(skipSheet, []string{"Line", "Reason", "Confidence", "Text"})
	for _, s := range result.Skipped {
		row := skipSheet.AddRow()
		row.AddCell().SetInt(s.LineNumber)
		row.AddCell().SetString(s.Reason)
		row.AddCell().SetInt(s.Confidence)
		row.AddCell().SetString(s.Line)
	}

	return f, nil
}

func addHeader(sheet *xlsx.Sheet, names []string) {
	row := sheet.AddRow()
	for _, name := range names {
		row.AddCell().SetString(name)
	}
}

// addAmountCell writes a numeric cell, or an empty one when the value does
// not apply.
func addAmountCell(row *xlsx.Row, d decimal.Decimal, present bool) {
	cell := row.AddCell()
	if !present {
		return
	}
	cell.SetFloatWithFormat(d.InexactFloat64(), amountFormat)
}
