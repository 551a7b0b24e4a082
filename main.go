package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-parser/internal/config"
	"github.com/insightdelivered/statement-parser/internal/parser"
)

var version = "2.0.0"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "statement-parser",
	Short: "Bank statement transaction parser",
	Long: `Extracts transactions from bank statement PDFs and text exports.
Each candidate line is scored for confidence; accepted transactions are
written as CSV, XLSX or JSON and rejected lines are reported with a reason.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// loadVocabularies returns the configured vocabulary file, or nil for the
// built-in set.
func loadVocabularies(path string) ([]*parser.Vocabulary, error) {
	if path == "" {
		return nil, nil
	}
	vocabs, err := parser.LoadVocabulary(path)
	if err != nil {
		return nil, eris.Wrap(err, "load vocabulary")
	}
	zap.L().Info("loaded vocabularies", zap.String("file", path), zap.Int("count", len(vocabs)))
	return vocabs, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
