package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-parser/internal/config"
)

const sampleStatement = `Account Number 12345678
Date Description Paid out Paid in Balance
15/01/2024 CARD PAYMENT TESCO -25.99 1234.56
16/01/2024 SALARY ACME LTD +2500.00 3734.56
`

func testConfig() *config.Config {
	return &config.Config{
		Parse:   config.ParseConfig{MinConfidence: 60, DateFormat: "auto"},
		Log:     config.LogConfig{Level: "info", Format: "json"},
		Server:  config.ServerConfig{Port: 8080, MaxUploadMB: 32},
		Output:  config.OutputConfig{Format: "csv", IncludeHeader: false},
		Convert: config.ConvertConfig{Concurrency: 2},
	}
}

func resetConvertFlags(t *testing.T) {
	t.Helper()
	saved := convertFlags
	t.Cleanup(func() { convertFlags = saved })
	convertFlags.output = ""
	convertFlags.debug = false
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConvertCommand_Flags(t *testing.T) {
	for _, name := range []string{"min-confidence", "date-format", "strict", "format", "header", "vocabulary", "concurrency", "output"} {
		assert.NotNil(t, convertCmd.Flags().Lookup(name), "convert should have --%s flag", name)
	}
	assert.Equal(t, "60", convertCmd.Flags().Lookup("min-confidence").DefValue)
	assert.Equal(t, "auto", convertCmd.Flags().Lookup("date-format").DefValue)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, explicit, format, want string
	}{
		{"statement.pdf", "", "csv", "statement.csv"},
		{"dir/jan.PDF", "", "xlsx", "dir/jan.xlsx"},
		{"notes.txt", "", "JSON", "notes.json"},
		{"statement.pdf", "out/custom.csv", "csv", "out/custom.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, outputPath(tt.input, tt.explicit, tt.format))
		})
	}
}

func TestRunConvert_TextFiles(t *testing.T) {
	resetConvertFlags(t)
	dir := t.TempDir()
	a := writeInput(t, dir, "a.txt", sampleStatement)
	b := writeInput(t, dir, "b.txt", sampleStatement)

	var out bytes.Buffer
	require.NoError(t, runConvert(context.Background(), testConfig(), []string{a, b}, &out))
	assert.Contains(t, out.String(), "2 transaction(s)")

	f, err := os.Open(filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Date", "Description", "Debit", "Credit", "Balance"},
		{"2024-01-15", "CARD PAYMENT TESCO", "25.99", "", "1234.56"},
		{"2024-01-16", "SALARY ACME LTD", "", "2500.00", "3734.56"},
	}, records)

	assert.FileExists(t, filepath.Join(dir, "b.csv"))
}

func TestRunConvert_ExplicitOutput(t *testing.T) {
	resetConvertFlags(t)
	dir := t.TempDir()
	in := writeInput(t, dir, "a.txt", sampleStatement)
	convertFlags.output = filepath.Join(dir, "result.json")

	c := testConfig()
	c.Output.Format = "json"
	require.NoError(t, runConvert(context.Background(), c, []string{in}, &bytes.Buffer{}))

	data, err := os.ReadFile(convertFlags.output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"parsedTransactions": 2`)
}

func TestRunConvert_OutputWithManyInputs(t *testing.T) {
	resetConvertFlags(t)
	convertFlags.output = "out.csv"

	err := runConvert(context.Background(), testConfig(), []string{"a.txt", "b.txt"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output")
}

func TestRunConvert_PartialFailure(t *testing.T) {
	resetConvertFlags(t)
	dir := t.TempDir()
	good := writeInput(t, dir, "good.txt", sampleStatement)
	bad := writeInput(t, dir, "bad.pdf", "not a pdf at all")
	missing := filepath.Join(dir, "missing.txt")
	wrongExt := writeInput(t, dir, "notes.docx", "x")

	var out bytes.Buffer
	err := runConvert(context.Background(), testConfig(), []string{good, bad, missing, wrongExt}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 of 4 file(s) failed")
	assert.Contains(t, out.String(), "not a valid PDF")
	assert.Contains(t, out.String(), "could not be loaded")
	assert.Contains(t, out.String(), `expected .pdf or .txt file, got ".docx"`)
	assert.FileExists(t, filepath.Join(dir, "good.csv"))
}

func TestRunConvert_InvalidConfig(t *testing.T) {
	resetConvertFlags(t)
	c := testConfig()
	c.Output.Format = "pdf"
	assert.Error(t, runConvert(context.Background(), c, []string{"a.txt"}, &bytes.Buffer{}))
}

func TestApplyConvertFlags(t *testing.T) {
	resetConvertFlags(t)
	require.NoError(t, convertCmd.ParseFlags([]string{
		"--min-confidence=80",
		"--date-format=MM/DD/YYYY",
		"--format=XLSX",
		"--concurrency=1",
	}))

	c := testConfig()
	applyConvertFlags(convertCmd, c)
	assert.Equal(t, 80, c.Parse.MinConfidence)
	assert.Equal(t, "MM/DD/YYYY", c.Parse.DateFormat)
	assert.Equal(t, "xlsx", c.Output.Format)
	assert.Equal(t, 1, c.Convert.Concurrency)
	assert.False(t, c.Parse.Strict)
	assert.False(t, c.Output.IncludeHeader)
}
