package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/statement-parser/internal/config"
	"github.com/insightdelivered/statement-parser/internal/extractor"
	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/parser"
	"github.com/insightdelivered/statement-parser/internal/writer"
)

var convertFlags struct {
	minConfidence int
	dateFormat    string
	strict        bool
	inferSign     bool
	format        string
	header        bool
	vocabulary    string
	concurrency   int
	output        string
	debug         bool
}

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <file> [file...]",
	Short: "Convert statement PDFs or text files to CSV, XLSX or JSON",
	Example: `  # Convert with defaults (CSV next to the input)
  statement-parser convert statement.pdf

  # US-style dates, stricter acceptance
  statement-parser convert --date-format MM/DD/YYYY --min-confidence 80 statement.pdf

  # Several files at once as spreadsheets
  statement-parser convert --format xlsx jan.pdf feb.pdf mar.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyConvertFlags(cmd, cfg)
		return runConvert(ctx, cfg, args, cmd.OutOrStdout())
	},
}

func init() {
	f := convertCmd.Flags()
	f.IntVar(&convertFlags.minConfidence, "min-confidence", models.DefaultMinConfidence, "minimum confidence (0-100) for a line to be accepted")
	f.StringVar(&convertFlags.dateFormat, "date-format", string(models.DateFormatAuto), "ambiguous date order: DD/MM/YYYY, MM/DD/YYYY or auto")
	f.BoolVar(&convertFlags.strict, "strict", false, "reject any transaction with validation issues")
	f.BoolVar(&convertFlags.inferSign, "infer-sign", false, "use running balances to decide debit or credit for unmarked amounts")
	f.StringVar(&convertFlags.format, "format", writer.FormatCSV, "output format: csv, xlsx or json")
	f.BoolVar(&convertFlags.header, "header", true, "include metadata rows in CSV output")
	f.StringVar(&convertFlags.vocabulary, "vocabulary", "", "YAML file of institution keyword vocabularies")
	f.IntVar(&convertFlags.concurrency, "concurrency", 4, "files converted in parallel")
	f.StringVarP(&convertFlags.output, "output", "o", "", "output path (single input only)")
	f.BoolVar(&convertFlags.debug, "debug", false, "include per-line candidate records in JSON output")
	rootCmd.AddCommand(convertCmd)
}

// applyConvertFlags copies explicitly set flags over the loaded config.
func applyConvertFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("min-confidence") {
		c.Parse.MinConfidence = convertFlags.minConfidence
	}
	if f.Changed("date-format") {
		c.Parse.DateFormat = convertFlags.dateFormat
	}
	if f.Changed("strict") {
		c.Parse.Strict = convertFlags.strict
	}
	if f.Changed("infer-sign") {
		c.Parse.InferSignFromBalance = convertFlags.inferSign
	}
	if f.Changed("vocabulary") {
		c.Parse.VocabularyFile = convertFlags.vocabulary
	}
	if f.Changed("format") {
		c.Output.Format = strings.ToLower(convertFlags.format)
	}
	if f.Changed("header") {
		c.Output.IncludeHeader = convertFlags.header
	}
	if f.Changed("concurrency") {
		c.Convert.Concurrency = convertFlags.concurrency
	}
}

// runConvert converts every input, up to Convert.Concurrency at a time. A
// failing file is reported and does not stop the others.
func runConvert(ctx context.Context, c *config.Config, inputs []string, out io.Writer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if convertFlags.output != "" && len(inputs) > 1 {
		return eris.New("--output can only be used with a single input file")
	}

	vocabs, err := loadVocabularies(c.Parse.VocabularyFile)
	if err != nil {
		return err
	}

	opts := c.ParseOptions()
	opts.Debug = convertFlags.debug
	engine := parser.New(opts,
		parser.WithVocabularies(vocabs),
		parser.WithLogger(zap.L()))
	x := extractor.New(
		extractor.WithPdftotext(c.Extract.PdftotextPath),
		extractor.WithLogger(zap.L()))
	w, err := writer.ForFormat(c.Output.Format, c.Output.IncludeHeader)
	if err != nil {
		return err
	}

	zap.L().Info("converting files",
		zap.Int("files", len(inputs)),
		zap.Int("concurrency", c.Convert.Concurrency),
		zap.Int("min_confidence", engine.Options().MinConfidence),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Convert.Concurrency)

	var (
		mu                sync.Mutex
		succeeded, failed atomic.Int64
	)
	report := func(format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, a...)
	}

	for _, input := range inputs {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", input))

			dest := outputPath(input, convertFlags.output, c.Output.Format)
			result, err := convertFile(gctx, x, engine, w, input, dest)
			if err != nil {
				failed.Add(1)
				log.Error("conversion failed", zap.Error(err))
				report("%s: %s\n", input, describeError(err))
				return nil
			}

			succeeded.Add(1)
			md := result.Metadata
			log.Info("conversion complete",
				zap.String("output", dest),
				zap.Int("transactions", md.ParsedTransactions),
				zap.Int("skipped", md.SkippedLines),
				zap.Float64("avg_confidence", md.AvgConfidence),
			)
			report("%s: %d transaction(s), %d skipped, avg confidence %.1f -> %s\n",
				input, md.ParsedTransactions, md.SkippedLines, md.AvgConfidence, dest)
			if md.ParsedTransactions == 0 {
				report("  warning: no transactions found; try --date-format or a lower --min-confidence\n")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "convert")
	}

	zap.L().Info("convert complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	if n := failed.Load(); n > 0 {
		return eris.Errorf("%d of %d file(s) failed", n, len(inputs))
	}
	return nil
}

// convertFile extracts, parses and writes one input.
func convertFile(ctx context.Context, x *extractor.Extractor, engine *parser.Engine, w writer.Writer, input, dest string) (*models.ParsingResult, error) {
	ext := strings.ToLower(filepath.Ext(input))
	if ext != ".pdf" && ext != ".txt" {
		return nil, eris.Errorf("expected .pdf or .txt file, got %q", ext)
	}
	if _, err := os.Stat(input); err != nil {
		return nil, eris.Wrapf(extractor.ErrLoadFailed, "input file not found: %s", input)
	}

	doc, err := x.ExtractText(ctx, input, func(page, total int) {
		zap.L().Debug("extracted page", zap.String("file", input), zap.Int("page", page), zap.Int("total", total))
	})
	if err != nil {
		return nil, err
	}

	result := engine.Parse(doc.Text)
	if err := w.WriteToFile(dest, result); err != nil {
		return nil, err
	}
	return result, nil
}

// outputPath returns explicit when set, otherwise the input path with the
// format's extension.
func outputPath(input, explicit, format string) string {
	if explicit != "" {
		return explicit
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + "." + strings.ToLower(format)
}

func describeError(err error) string {
	for _, kind := range []error{
		extractor.ErrPasswordProtected,
		extractor.ErrCorruptDocument,
		extractor.ErrNoText,
		extractor.ErrCancelled,
		extractor.ErrLoadFailed,
	} {
		if eris.Is(err, kind) {
			return extractor.Describe(err)
		}
	}
	return err.Error()
}
