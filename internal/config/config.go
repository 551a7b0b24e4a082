package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/writer"
)

// Config holds the full application configuration.
type Config struct {
	Parse   ParseConfig   `yaml:"parse" mapstructure:"parse"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Convert ConvertConfig `yaml:"convert" mapstructure:"convert"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
}

// ParseConfig configures the transaction parsing engine.
type ParseConfig struct {
	MinConfidence        int    `yaml:"min_confidence" mapstructure:"min_confidence"`
	DateFormat           string `yaml:"date_format" mapstructure:"date_format"`
	Strict               bool   `yaml:"strict" mapstructure:"strict"`
	InferSignFromBalance bool   `yaml:"infer_sign_from_balance" mapstructure:"infer_sign_from_balance"`
	VocabularyFile       string `yaml:"vocabulary_file" mapstructure:"vocabulary_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int `yaml:"port" mapstructure:"port"`
	MaxUploadMB int `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// OutputConfig configures converted file output.
type OutputConfig struct {
	Format        string `yaml:"format" mapstructure:"format"`
	IncludeHeader bool   `yaml:"include_header" mapstructure:"include_header"`
}

// ConvertConfig configures batch conversion.
type ConvertConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ExtractConfig configures document text extraction.
type ExtractConfig struct {
	PdftotextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STATEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("parse.min_confidence", models.DefaultMinConfidence)
	v.SetDefault("parse.date_format", string(models.DateFormatAuto))
	v.SetDefault("parse.strict", false)
	v.SetDefault("parse.infer_sign_from_balance", false)
	v.SetDefault("parse.vocabulary_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("output.format", writer.FormatCSV)
	v.SetDefault("output.include_header", true)
	v.SetDefault("convert.concurrency", 4)
	v.SetDefault("extract.pdftotext_path", "pdftotext")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	if c.Parse.MinConfidence < 1 || c.Parse.MinConfidence > 100 {
		return eris.Errorf("config: parse.min_confidence must be within 1..100, got %d", c.Parse.MinConfidence)
	}
	if _, ok := models.ParseDateFormat(c.Parse.DateFormat); !ok {
		return eris.Errorf("config: unknown parse.date_format %q", c.Parse.DateFormat)
	}
	switch c.Output.Format {
	case writer.FormatCSV, writer.FormatXLSX, writer.FormatJSON:
	default:
		return eris.Errorf("config: unknown output.format %q", c.Output.Format)
	}
	if c.Convert.Concurrency < 1 {
		return eris.Errorf("config: convert.concurrency must be at least 1, got %d", c.Convert.Concurrency)
	}
	if c.Server.MaxUploadMB < 1 {
		return eris.Errorf("config: server.max_upload_mb must be at least 1, got %d", c.Server.MaxUploadMB)
	}
	return nil
}

// ParseOptions converts the parse section into engine options.
func (c *Config) ParseOptions() models.Options {
	format, ok := models.ParseDateFormat(c.Parse.DateFormat)
	if !ok {
		format = models.DateFormatAuto
	}
	return models.Options{
		MinConfidence:        c.Parse.MinConfidence,
		DateFormat:           format,
		Strict:               c.Parse.Strict,
		InferSignFromBalance: c.Parse.InferSignFromBalance,
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
