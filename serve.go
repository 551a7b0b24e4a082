package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-parser/internal/api"
	"github.com/insightdelivered/statement-parser/internal/extractor"
)

var (
	servePort   int
	serveStatic string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP conversion API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}
		vocabs, err := loadVocabularies(cfg.Parse.VocabularyFile)
		if err != nil {
			return err
		}

		h := &api.Handler{
			Options:      cfg.ParseOptions(),
			Vocabularies: vocabs,
			Extractor: extractor.New(
				extractor.WithPdftotext(cfg.Extract.PdftotextPath),
				extractor.WithLogger(zap.L())),
			IncludeHeader: cfg.Output.IncludeHeader,
			StaticDir:     serveStatic,
			Version:       version,
			Logger:        zap.L(),
		}
		app := api.NewApp(h, cfg.Server.MaxUploadMB)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			if err := app.Shutdown(); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("static", serveStatic))
		if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveStatic, "static", "", "directory of web UI files to serve at /")
	rootCmd.AddCommand(serveCmd)
}
