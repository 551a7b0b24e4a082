package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/writer"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Parse.MinConfidence)
	assert.Equal(t, "auto", cfg.Parse.DateFormat)
	assert.False(t, cfg.Parse.Strict)
	assert.False(t, cfg.Parse.InferSignFromBalance)
	assert.Empty(t, cfg.Parse.VocabularyFile)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Server.MaxUploadMB)
	assert.Equal(t, writer.FormatCSV, cfg.Output.Format)
	assert.True(t, cfg.Output.IncludeHeader)
	assert.Equal(t, 4, cfg.Convert.Concurrency)
	assert.Equal(t, "pdftotext", cfg.Extract.PdftotextPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
parse:
  min_confidence: 75
  date_format: MM/DD/YYYY
  strict: true
log:
  level: debug
  format: console
server:
  port: 9090
output:
  format: xlsx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.Parse.MinConfidence)
	assert.Equal(t, "MM/DD/YYYY", cfg.Parse.DateFormat)
	assert.True(t, cfg.Parse.Strict)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, writer.FormatXLSX, cfg.Output.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Convert.Concurrency)

	opts := cfg.ParseOptions()
	assert.Equal(t, models.DateFormatMDY, opts.DateFormat)
	assert.Equal(t, 75, opts.MinConfidence)
	assert.True(t, opts.Strict)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
parse:
  min_confidence: 75
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("STATEMENT_PARSE_MIN_CONFIDENCE", "80")
	t.Setenv("STATEMENT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, 80, cfg.Parse.MinConfidence)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STATEMENT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("parse: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Parse:   ParseConfig{MinConfidence: 60, DateFormat: "auto"},
			Server:  ServerConfig{Port: 8080, MaxUploadMB: 32},
			Output:  OutputConfig{Format: writer.FormatCSV},
			Convert: ConvertConfig{Concurrency: 4},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"confidence too high", func(c *Config) { c.Parse.MinConfidence = 101 }, true},
		{"confidence negative", func(c *Config) { c.Parse.MinConfidence = -1 }, true},
		{"confidence zero", func(c *Config) { c.Parse.MinConfidence = 0 }, true},
		{"confidence one", func(c *Config) { c.Parse.MinConfidence = 1 }, false},
		{"unknown date format", func(c *Config) { c.Parse.DateFormat = "YYYY/DD/MM" }, true},
		{"unknown output format", func(c *Config) { c.Output.Format = "pdf" }, true},
		{"zero concurrency", func(c *Config) { c.Convert.Concurrency = 0 }, true},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }, true},
		{"json output", func(c *Config) { c.Output.Format = writer.FormatJSON }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
