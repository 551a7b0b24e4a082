package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Failure kinds surfaced to callers. Match with errors.Is.
var (
	ErrPasswordProtected = eris.New("document is password protected")
	ErrCorruptDocument   = eris.New("document is corrupt or not a valid PDF")
	ErrNoText            = eris.New("document has no extractable text")
	ErrCancelled         = eris.New("extraction cancelled")
	ErrLoadFailed        = eris.New("document could not be loaded")
)

// Extraction methods recorded on Document.Method.
const (
	MethodPlainFile   = "text"
	MethodRows        = "rows"
	MethodContent     = "content"
	MethodPagePlain   = "page-plain"
	MethodReaderPlain = "reader-plain"
	MethodPdftotext   = "pdftotext"
)

// columnGap is the horizontal distance, in points, treated as a column break
// when rows are rebuilt from positioned text.
const columnGap = 15

// ProgressFunc is called after each page is read.
type ProgressFunc func(page, total int)

// Document is the page-concatenated text of one statement file.
type Document struct {
	Text      string   `json:"text"`
	Pages     []string `json:"pages"`
	PageCount int      `json:"pageCount"`
	Method    string   `json:"method"`
}

// Extractor turns statement files into text.
type Extractor struct {
	pdftotext string
	logger    *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPdftotext sets the pdftotext binary used as the last fallback. An
// empty path disables the fallback.
func WithPdftotext(path string) Option {
	return func(x *Extractor) { x.pdftotext = path }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *Extractor) {
		if l != nil {
			x.logger = l
		}
	}
}

// New returns an Extractor. pdftotext is looked up on PATH by default.
func New(opts ...Option) *Extractor {
	x := &Extractor{pdftotext: "pdftotext", logger: zap.NewNop()}
	for _, o := range opts {
		o(x)
	}
	return x
}

// ExtractText reads path with a default Extractor.
func ExtractText(ctx context.Context, path string, progress ProgressFunc) (*Document, error) {
	return New().ExtractText(ctx, path, progress)
}

// ExtractText returns the text of a .txt or PDF file. PDFs are read with the
// PDF library first, trying several text methods, and then with pdftotext.
// PDF text that fails the readability check is never returned.
func (x *Extractor) ExtractText(ctx context.Context, path string, progress ProgressFunc) (*Document, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(ErrCancelled, err.Error())
	}

	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return readPlainFile(path, progress)
	}

	doc, libErr := x.extractWithLibrary(ctx, path, progress)
	if libErr == nil {
		return doc, nil
	}
	if errors.Is(libErr, ErrPasswordProtected) || errors.Is(libErr, ErrCancelled) || errors.Is(libErr, ErrLoadFailed) {
		return nil, libErr
	}
	x.logger.Debug("pdf library extraction failed, trying pdftotext",
		zap.String("file", path), zap.Error(libErr))

	doc, popplerErr := x.extractWithPdftotext(ctx, path, progress)
	if popplerErr == nil {
		return doc, nil
	}
	if errors.Is(popplerErr, ErrCancelled) {
		return nil, popplerErr
	}
	x.logger.Debug("pdftotext extraction failed",
		zap.String("file", path), zap.Error(popplerErr))

	return nil, libErr
}

func readPlainFile(path string, progress ProgressFunc) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(ErrLoadFailed, "read %s: %v", path, err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, eris.Wrapf(ErrNoText, "%s is empty", path)
	}
	progress(1, 1)
	return &Document{Text: text, Pages: []string{text}, PageCount: 1, Method: MethodPlainFile}, nil
}

// extractWithLibrary uses the ledongthuc/pdf library with multiple methods.
func (x *Extractor) extractWithLibrary(ctx context.Context, path string, progress ProgressFunc) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, eris.Wrapf(ErrCorruptDocument, "pdf library crashed: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(path)
	if openErr != nil {
		return nil, classifyOpenError(path, openErr)
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, eris.Wrapf(ErrCorruptDocument, "%s has no pages", path)
	}

	// Rows keep the layout best, so they are read with progress reporting;
	// the other methods only run when rows are unreadable.
	pages, err := extractByRow(ctx, r, numPages, progress)
	if err != nil {
		return nil, err
	}
	if isReadableText(pages) {
		return newDocument(pages, numPages, MethodRows), nil
	}

	methods := []struct {
		name string
		fn   func(*pdf.Reader, int) []string
	}{
		{MethodContent, extractByContent},
		{MethodPagePlain, extractByPagePlainText},
		{MethodReaderPlain, extractByReaderPlainText},
	}
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(ErrCancelled, err.Error())
		}
		if pages := m.fn(r, numPages); isReadableText(pages) {
			return newDocument(pages, numPages, m.name), nil
		}
	}
	return nil, eris.Wrapf(ErrNoText, "%s: no readable text (image-only or custom font encoding)", path)
}

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, pdf.ErrInvalidPassword):
		return eris.Wrapf(ErrPasswordProtected, "open %s", path)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return eris.Wrapf(ErrLoadFailed, "open %s: %v", path, err)
	default:
		return eris.Wrapf(ErrCorruptDocument, "open %s: %v", path, err)
	}
}

func newDocument(pages []string, pageCount int, method string) *Document {
	return &Document{
		Text:      strings.Join(pages, "\n"),
		Pages:     pages,
		PageCount: pageCount,
		Method:    method,
	}
}

// extractByRow uses GetTextByRow, which works best for well-structured PDFs.
func extractByRow(ctx context.Context, r *pdf.Reader, numPages int, progress ProgressFunc) ([]string, error) {
	var pages []string
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(ErrCancelled, "at page %d of %d: %v", i, numPages, err)
		}
		page := r.Page(i)
		if page.V.IsNull() {
			progress(i, numPages)
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			progress(i, numPages)
			continue
		}
		var lines []string
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				words = append(words, word.S)
			}
			if line := strings.TrimSpace(strings.Join(words, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
		progress(i, numPages)
	}
	return pages, nil
}

// extractByContent groups positioned text by Y coordinate to rebuild rows,
// then orders each row by X.
func extractByContent(r *pdf.Reader, numPages int) []string {
	type piece struct {
		x float64
		s string
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		rowsByY := make(map[int][]piece)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			y := int(math.Round(t.Y))
			rowsByY[y] = append(rowsByY[y], piece{x: t.X, s: t.S})
		}

		// PDF Y grows upwards, so the top row has the largest Y.
		ys := make([]int, 0, len(rowsByY))
		for y := range rowsByY {
			ys = append(ys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(ys)))

		var lines []string
		for _, y := range ys {
			row := rowsByY[y]
			sort.Slice(row, func(a, b int) bool { return row[a].x < row[b].x })

			var b strings.Builder
			for j, p := range row {
				if j > 0 && p.x-row[j-1].x > columnGap {
					b.WriteString("  ")
				}
				b.WriteString(p.s)
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByPagePlainText decodes each page with its own font map.
func extractByPagePlainText(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

// extractByReaderPlainText extracts the whole document in one pass.
func extractByReaderPlainText(r *pdf.Reader, _ int) []string {
	reader, err := r.GetPlainText()
	if err != nil {
		return nil
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	return []string{text}
}

// extractWithPdftotext runs poppler's pdftotext as a fallback for PDFs the
// library cannot decode. Pages come back separated by form feeds.
func (x *Extractor) extractWithPdftotext(ctx context.Context, path string, progress ProgressFunc) (*Document, error) {
	if x.pdftotext == "" {
		return nil, eris.New("pdftotext fallback disabled")
	}
	bin, err := exec.LookPath(x.pdftotext)
	if err != nil {
		return nil, eris.Wrapf(err, "pdftotext not available")
	}

	out, err := exec.CommandContext(ctx, bin, "-layout", path, "-").Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, eris.Wrap(ErrCancelled, ctxErr.Error())
	}
	if err != nil {
		return nil, eris.Wrap(err, "pdftotext failed")
	}

	pages := splitPages(string(out))
	for i := range pages {
		progress(i+1, len(pages))
	}
	if !isReadableText(pages) {
		return nil, eris.Wrapf(ErrNoText, "pdftotext: no readable text in %s", path)
	}
	return newDocument(pages, len(pages), MethodPdftotext), nil
}

// splitPages splits pdftotext output on form feeds, dropping empty pages.
func splitPages(out string) []string {
	var pages []string
	for _, p := range strings.Split(out, "\f") {
		if p = strings.TrimSpace(p); p != "" {
			pages = append(pages, p)
		}
	}
	return pages
}

// Readability gate: enough text, mostly plain characters, and at least one
// word every statement carries.
const (
	minReadableLength = 50
	minReadableRatio  = 0.6
)

// readablePunct is the punctuation counted as readable besides ASCII
// letters, digits and whitespace. Identity-encoded fonts produce accented
// garbage, so non-ASCII letters do not count.
const readablePunct = ".,-/:;()'\"£$€%&@#!?+=*"

var statementWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "sort code",
	"money", "paid", "opening", "closing", "transfer", "direct",
	"number", "page", "period",
}

// textQuality returns the share of readable characters, 0 to 1.
func textQuality(pages []string) float64 {
	total, readable := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			switch {
			case r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'):
				readable++
			case r == ' ' || r == '\n' || r == '\t' || r == '\r':
				readable++
			case strings.ContainsRune(readablePunct, r):
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

func containsStatementWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range statementWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

func isReadableText(pages []string) bool {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n > minReadableLength &&
		textQuality(pages) > minReadableRatio &&
		containsStatementWords(pages)
}

// IsReadableText reports whether extracted pages pass the readability gate.
func IsReadableText(pages []string) bool {
	return isReadableText(pages)
}

// Describe returns a user-facing message for an extraction failure.
func Describe(err error) string {
	switch {
	case errors.Is(err, ErrPasswordProtected):
		return "The document is password protected. Remove the password and try again."
	case errors.Is(err, ErrCorruptDocument):
		return "The file is not a valid PDF or is damaged."
	case errors.Is(err, ErrNoText):
		return "No text could be extracted. The document may be a scanned image."
	case errors.Is(err, ErrCancelled):
		return "Extraction was cancelled."
	case errors.Is(err, ErrLoadFailed):
		return "The document could not be loaded."
	default:
		return fmt.Sprintf("Text extraction failed: %v", err)
	}
}
