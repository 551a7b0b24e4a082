package api

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-parser/internal/extractor"
	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/parser"
	"github.com/insightdelivered/statement-parser/internal/writer"
)

// ConvertResponse is the JSON response from the /api/convert endpoint.
type ConvertResponse struct {
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
	RequestID    string                 `json:"requestId,omitempty"`
	Transactions []models.Transaction   `json:"transactions"`
	Skipped      []models.SkippedLine   `json:"skipped"`
	Metadata     *models.Metadata       `json:"metadata,omitempty"`
	Account      *models.AccountInfo    `json:"account,omitempty"`
	CSV          string                 `json:"csv,omitempty"`
	TotalDebit   decimal.Decimal        `json:"totalDebit"`
	TotalCredit  decimal.Decimal        `json:"totalCredit"`
	Count        int                    `json:"count"`
	Method       string                 `json:"method,omitempty"`
	PageCount    int                    `json:"pageCount,omitempty"`
	Version      string                 `json:"version,omitempty"`
	DebugLines   []models.CandidateLine `json:"debugLines,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Options       models.Options
	Vocabularies  []*parser.Vocabulary
	Extractor     *extractor.Extractor
	IncludeHeader bool
	StaticDir     string
	Version       string
	Logger        *zap.Logger
	Clock         func() time.Time
}

// NewApp returns a fiber app with the API routes registered.
func NewApp(h *Handler, maxUploadMB int) *fiber.App {
	if maxUploadMB < 1 {
		maxUploadMB = 32
	}
	app := fiber.New(fiber.Config{
		AppName:               "statement-parser",
		BodyLimit:             maxUploadMB << 20,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/convert", h.HandleConvert)

	// Serve the web UI, falling back to index.html for client-side routes.
	if h.StaticDir != "" {
		app.Static("/", h.StaticDir)
		app.Get("/*", func(c *fiber.Ctx) error {
			if strings.HasPrefix(c.Path(), "/api/") {
				return fiber.ErrNotFound
			}
			return c.SendFile(filepath.Join(h.StaticDir, "index.html"))
		})
	}
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.Version,
	})
}

// HandleConvert parses an uploaded statement, or raw text in the "text"
// field, and returns the transactions together with a CSV rendering.
func (h *Handler) HandleConvert(c *fiber.Ctx) error {
	reqID := requestID(c)
	log := h.logger().With(zap.String("request_id", reqID))

	opts, err := h.requestOptions(c)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, reqID, err.Error())
	}

	text := c.FormValue("text")
	var doc *extractor.Document
	if strings.TrimSpace(text) == "" {
		doc, err = h.extractUpload(c, log)
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return writeError(c, fe.Code, reqID, fe.Message)
			}
			return writeError(c, extractionStatus(err), reqID, extractor.Describe(err))
		}
		text = doc.Text
	}

	engine := parser.New(opts,
		parser.WithVocabularies(h.Vocabularies),
		parser.WithLogger(log),
		parser.WithClock(h.Clock))
	result := engine.Parse(text)

	var csvBuf bytes.Buffer
	csvWriter := &writer.CSVWriter{IncludeHeader: h.IncludeHeader}
	if err := csvWriter.Write(&csvBuf, result); err != nil {
		log.Error("csv generation failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, reqID, "CSV generation failed.")
	}

	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for _, txn := range result.Transactions {
		if d, ok := txn.DebitAmount(); ok {
			totalDebit = totalDebit.Add(d)
		}
		if cr, ok := txn.CreditAmount(); ok {
			totalCredit = totalCredit.Add(cr)
		}
	}

	resp := ConvertResponse{
		Success:      true,
		RequestID:    reqID,
		Transactions: result.Transactions,
		Skipped:      result.Skipped,
		Metadata:     &result.Metadata,
		CSV:          csvBuf.String(),
		TotalDebit:   totalDebit,
		TotalCredit:  totalCredit,
		Count:        len(result.Transactions),
		Version:      h.Version,
		DebugLines:   result.Lines,
	}
	if result.Account != (models.AccountInfo{}) {
		resp.Account = &result.Account
	}
	if doc != nil {
		resp.Method = doc.Method
		resp.PageCount = doc.PageCount
	}

	log.Info("converted statement",
		zap.Int("transactions", resp.Count),
		zap.Int("skipped", len(result.Skipped)),
		zap.Float64("avg_confidence", result.Metadata.AvgConfidence))
	return c.JSON(resp)
}

// requestOptions applies the optional form fields over the server defaults.
func (h *Handler) requestOptions(c *fiber.Ctx) (models.Options, error) {
	opts := h.Options

	if v := c.FormValue("minConfidence"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return opts, fiber.NewError(fiber.StatusBadRequest, "minConfidence must be an integer between 1 and 100.")
		}
		opts.MinConfidence = n
	}
	if v := c.FormValue("dateFormat"); v != "" {
		f, ok := models.ParseDateFormat(v)
		if !ok {
			return opts, fiber.NewError(fiber.StatusBadRequest, "dateFormat must be DD/MM/YYYY, MM/DD/YYYY or auto.")
		}
		opts.DateFormat = f
	}
	for field, dst := range map[string]*bool{
		"strict": &opts.Strict,
		"debug":  &opts.Debug,
	} {
		if v := c.FormValue(field); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return opts, fiber.NewError(fiber.StatusBadRequest, field+" must be true or false.")
			}
			*dst = b
		}
	}
	return opts, nil
}

// extractUpload stores the uploaded file in a temp file and extracts its
// text. Request problems come back as *fiber.Error.
func (h *Handler) extractUpload(c *fiber.Ctx, log *zap.Logger) (*extractor.Document, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "No file uploaded. Use form field 'file' or 'text'.")
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext != ".pdf" && ext != ".txt" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Only PDF and TXT files are supported.")
	}

	tmp, err := os.CreateTemp("", "statement-*"+ext)
	if err != nil {
		log.Error("create temp file", zap.Error(err))
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to create temp file.")
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.SaveFile(fh, tmpPath); err != nil {
		log.Error("save upload", zap.Error(err))
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to save uploaded file.")
	}

	x := h.Extractor
	if x == nil {
		x = extractor.New(extractor.WithLogger(log))
	}
	doc, err := x.ExtractText(c.UserContext(), tmpPath, nil)
	if err != nil {
		log.Warn("extraction failed", zap.String("file", fh.Filename), zap.Error(err))
		return nil, err
	}
	log.Debug("extracted text",
		zap.String("file", fh.Filename),
		zap.String("method", doc.Method),
		zap.Int("pages", doc.PageCount))
	return doc, nil
}

func extractionStatus(err error) int {
	switch {
	case errors.Is(err, extractor.ErrPasswordProtected),
		errors.Is(err, extractor.ErrCorruptDocument),
		errors.Is(err, extractor.ErrNoText):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, extractor.ErrCancelled):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

func writeError(c *fiber.Ctx, status int, reqID, msg string) error {
	return c.Status(status).JSON(ConvertResponse{
		Success:      false,
		Error:        msg,
		RequestID:    reqID,
		Transactions: []models.Transaction{},
		Skipped:      []models.SkippedLine{},
	})
}

// errorHandler renders errors that escape handlers (body limit, panics,
// unknown routes) in the same JSON shape.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error."
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, msg = fe.Code, fe.Message
	}
	return writeError(c, code, requestID(c), msg)
}
