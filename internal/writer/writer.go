package writer

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// Writer serializes a parse result.
type Writer interface {
	Write(out io.Writer, result *models.ParsingResult) error
	WriteToFile(path string, result *models.ParsingResult) error
}

// ForFormat returns the writer for format. includeHeader only affects CSV.
func ForFormat(format string, includeHeader bool) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return &CSVWriter{IncludeHeader: includeHeader}, nil
	case FormatXLSX:
		return &XLSXWriter{}, nil
	case FormatJSON:
		return &JSONWriter{Indent: true}, nil
	}
	return nil, eris.Errorf("unknown output format %q (use csv, xlsx or json)", format)
}

// JSONWriter writes the full parse result, skipped lines included.
type JSONWriter struct {
	Indent bool
}

// WriteToFile writes the result as JSON to path.
func (w *JSONWriter) WriteToFile(path string, result *models.ParsingResult) error {
	return writeFile(path, func(out io.Writer) error { return w.Write(out, result) })
}

// Write writes the result as JSON to out.
func (w *JSONWriter) Write(out io.Writer, result *models.ParsingResult) error {
	enc := json.NewEncoder(out)
	if w.Indent {
		enc.SetIndent("", "  ")
	}
	return eris.Wrap(enc.Encode(result), "encode JSON")
}
