package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/internal/sink"
	"github.com/printdesk/printdesk/pkg/errors"
	"github.com/printdesk/printdesk/pkg/logger"
)

// DocumentPrinter prints a composed document to PDF
type DocumentPrinter interface {
	PrintDocument(ctx context.Context, doc *render.Document) (*sink.PrintResult, error)
}

// DocumentHandler serves opened documents
type DocumentHandler struct {
	sink    *sink.MemorySink
	printer DocumentPrinter
}

// NewDocumentHandler creates a document handler. A nil printer disables PDF export.
func NewDocumentHandler(s *sink.MemorySink, printer DocumentPrinter) *DocumentHandler {
	return &DocumentHandler{sink: s, printer: printer}
}

// Show handles GET /documents/:id
func (h *DocumentHandler) Show(c *gin.Context) {
	doc, ok := h.lookup(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc.HTML))
}

// PDF handles GET /documents/:id/pdf
func (h *DocumentHandler) PDF(c *gin.Context) {
	if h.printer == nil {
		abortWith(c, errors.New(errors.ErrCodePrintUnsupported,
			"PDF export needs Chrome; set chrome.path or CHROME_PATH and restart the server"))
		return
	}
	doc, ok := h.lookup(c)
	if !ok {
		return
	}

	res, err := h.printer.PrintDocument(c.Request.Context(), doc)
	if err != nil {
		logger.WithDocument(doc.Kind, doc.ID).Error("PDF export failed", zap.Error(err))
		abortWith(c, err)
		return
	}

	name := strings.TrimSuffix(sink.FileName(doc), ".html") + ".pdf"
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	c.Header("X-Page-Count", fmt.Sprint(res.Pages))
	c.Data(http.StatusOK, "application/pdf", res.PDF)
}

func (h *DocumentHandler) lookup(c *gin.Context) (*render.Document, bool) {
	id := c.Param("id")
	doc, ok := h.sink.Get(id)
	if !ok {
		abortWith(c, errors.ErrNotFound("document"))
		return nil, false
	}
	return doc, true
}
