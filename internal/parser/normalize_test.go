package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  15/01/2024    Coffee\t\t3.50  ", "15/01/2024 Coffee 3.50"},
		{"Ref :  123", "Ref: 123"},
		{"Ref:123", "Ref:123"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLine(tt.input))
		})
	}
}

func TestIsNoise(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Page 2 of 5", true},
		{"page 3", true},
		{"- 3 of 12 -", true},
		{"Statement period: 01/01/2024 to 31/01/2024", true},
		{"Account number: 12345678", true},
		{"Sort code: 23-05-80", true},
		{"Date Description Paid out Paid in Balance", true},
		{"Continued on next page", true},
		{"-----------------------", true},
		{"==========", true},
		{"THIS STATEMENT IS ISSUED BY AN AUTHORISED BANK, REGISTERED IN ENGLAND", true},
		{"too short", true},
		{strings.Repeat("x", 301), true},
		{"15/01/2024 Grocery Store -125.50 2450.75", false},
		{"Miscellaneous fee applied 25.00", false},
		{"BANK CREDIT SALARY", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNoise(tt.line))
		})
	}
}

func TestNormalize(t *testing.T) {
	text := "Page 1 of 2\r\n\r\n15/01/2024   Grocery Store  -125.50 2450.75\r\n-----------\r\nMiscellaneous fee applied 25.00"

	lines := Normalize(text)
	require.Len(t, lines, 2)
	assert.Equal(t, "15/01/2024 Grocery Store -125.50 2450.75", lines[0].Text)
	assert.Equal(t, 3, lines[0].Number)
	assert.Equal(t, "Miscellaneous fee applied 25.00", lines[1].Text)
	assert.Equal(t, 5, lines[1].Number)
}

func TestNormalize_Unicode(t *testing.T) {
	lines := Normalize("\uff11\uff15/01/2024\u00a0Coffee\u200b shop 3.50")
	require.Len(t, lines, 1)
	assert.Equal(t, "15/01/2024 Coffee shop 3.50", lines[0].Text)
}

func TestNormalize_Empty(t *testing.T) {
	assert.Empty(t, Normalize(""))
	assert.Empty(t, Normalize("Page 2 of 5"))
}

func TestSplitLines_CollapsedText(t *testing.T) {
	var b strings.Builder
	for day := 1; day <= 12; day++ {
		fmt.Fprintf(&b, "%02d/01/2024 CARD PAYMENT TESCO STORES 25.99 1,234.56 ", day)
	}
	text := b.String()
	require.Greater(t, len(text), collapsedMinLength)

	lines := SplitLines(text)
	require.Len(t, lines, 12)
	assert.True(t, strings.HasPrefix(lines[0], "01/01/2024 CARD PAYMENT"))
	assert.True(t, strings.HasPrefix(lines[11], "12/01/2024 CARD PAYMENT"))

	normalized := Normalize(text)
	assert.Len(t, normalized, 12)
}

func TestSplitLines_ShortTextUntouched(t *testing.T) {
	text := "01/01/2024 A 1.00 02/01/2024 B 2.00"
	assert.Equal(t, []string{text}, SplitLines(text))
}
