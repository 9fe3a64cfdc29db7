package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/chrome"
	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/render"
	apperrors "github.com/printdesk/printdesk/pkg/errors"
	"github.com/printdesk/printdesk/pkg/logger"
	"github.com/printdesk/printdesk/pkg/telemetry"
)

// readyPoll is how often the ready flag is checked while a document lays out
const readyPoll = 100 * time.Millisecond

// ChromeSink opens documents in headless Chrome and prints them to PDF.
type ChromeSink struct {
	Browser  chrome.Config
	Geometry layout.Geometry
	// Dir receives the HTML files Chrome navigates to
	Dir string
	// OutputDir, when set, also receives the printed PDF
	OutputDir string
	// ReadyTimeout bounds the wait for window.__printdeskReady. It should
	// exceed the client pagination timeout, which sets the flag on degrade.
	ReadyTimeout time.Duration
}

// NewChromeSink creates a sink printing on g's paper size
func NewChromeSink(browser chrome.Config, g layout.Geometry) *ChromeSink {
	return &ChromeSink{
		Browser:      browser,
		Geometry:     g,
		Dir:          filepath.Join(os.TempDir(), consts.ServiceName),
		ReadyTimeout: 2 * render.DefaultClientTimeout,
	}
}

// Name implements DocumentSink.
func (s *ChromeSink) Name() string { return "chrome" }

// Open implements DocumentSink. It stages the document for Print; no browser
// is started until then.
func (s *ChromeSink) Open(ctx context.Context, doc *render.Document) (*Handle, error) {
	if !s.Browser.Available() {
		telemetry.GetMetrics().RecordSinkOpen(ctx, s.Name(), false)
		return nil, apperrors.New(apperrors.ErrCodePrintUnsupported, "headless Chrome is not available; set chrome.path or CHROME_PATH")
	}
	path, err := writeDocument(s.Dir, doc)
	telemetry.GetMetrics().RecordSinkOpen(ctx, s.Name(), err == nil)
	if err != nil {
		return nil, err
	}
	return &Handle{ID: doc.ID, Location: path, Sink: s.Name(), doc: doc}, nil
}

// Print implements Printer. The browser waits for the document to finish
// laying out, then prints to the geometry's paper size honouring @page.
func (s *ChromeSink) Print(ctx context.Context, h *Handle) (*PrintResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "sink.print",
		trace.WithAttributes(telemetry.AttrDocumentID.String(h.ID), telemetry.AttrSink.String(s.Name())))
	defer span.End()

	res, err := s.print(ctx, h)
	telemetry.GetMetrics().RecordPDF(ctx, err == nil)
	if err != nil {
		telemetry.SetSpanError(span, err)
		logger.Error("Failed to print document",
			zap.String(logger.FieldDocumentID, h.ID),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, err
	}
	span.SetAttributes(telemetry.AttrPageCount.Int(res.Pages))
	telemetry.SetSpanOK(span)
	logger.Info("Document printed",
		zap.String(logger.FieldDocumentID, h.ID),
		zap.Int("pages", res.Pages),
		zap.Int("pdf_size", len(res.PDF)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (s *ChromeSink) print(ctx context.Context, h *Handle) (*PrintResult, error) {
	tab, stop, err := chrome.Start(ctx, s.Browser)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodePrintUnsupported, "headless Chrome could not be started", err)
	}
	defer stop()

	opCtx, cancel := chrome.WithTimeout(tab, s.Browser)
	defer cancel()

	var pdf []byte
	err = chromedp.Run(opCtx,
		chromedp.Navigate(fileURL(h.Location)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return s.waitReady(ctx, h.ID)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPaperWidth(s.Geometry.WidthInches()).
				WithPaperHeight(s.Geometry.HeightInches()).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, apperrors.ErrInternal("failed to print document", err)
	}

	pages, err := CountPages(pdf)
	if err != nil {
		return nil, apperrors.ErrInternal("printed PDF is invalid", err)
	}

	res := &PrintResult{PDF: pdf, Pages: pages}
	if s.OutputDir != "" {
		if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
		name := strings.TrimSuffix(filepath.Base(h.Location), ".html") + ".pdf"
		res.Path = filepath.Join(s.OutputDir, name)
		if err := os.WriteFile(res.Path, pdf, 0o644); err != nil {
			return nil, fmt.Errorf("write pdf: %w", err)
		}
	}
	return res, nil
}

// waitReady polls for window.__printdeskReady. Giving up after ReadyTimeout
// is not an error; the page is printed as it stands.
func (s *ChromeSink) waitReady(ctx context.Context, id string) error {
	timeout := s.ReadyTimeout
	if timeout <= 0 {
		timeout = 2 * render.DefaultClientTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		var ready bool
		if err := chromedp.Evaluate(`window.__printdeskReady === true`, &ready).Do(ctx); err != nil {
			return err
		}
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			logger.Warn("Document did not report ready before printing",
				zap.String(logger.FieldDocumentID, id),
				zap.Duration("timeout", timeout),
			)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPoll):
		}
	}
}

// PrintDocument opens doc and prints it
func (s *ChromeSink) PrintDocument(ctx context.Context, doc *render.Document) (*PrintResult, error) {
	h, err := s.Open(ctx, doc)
	if err != nil {
		return nil, err
	}
	defer os.Remove(h.Location)
	return s.Print(ctx, h)
}

// CountPages validates a PDF and returns its page count
func CountPages(pdf []byte) (int, error) {
	if len(pdf) == 0 {
		return 0, fmt.Errorf("empty pdf")
	}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}

func fileURL(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + filepath.ToSlash(path)
}
