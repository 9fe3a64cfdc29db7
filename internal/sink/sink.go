// Package sink delivers rendered documents to a viewer: an in-memory store
// served over HTTP, a directory, the desktop browser or headless Chrome.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/printdesk/printdesk/internal/render"
	apperrors "github.com/printdesk/printdesk/pkg/errors"
)

// DocumentSink opens a rendered document where a user can view and print it.
type DocumentSink interface {
	// Name identifies the sink in logs and metrics
	Name() string
	// Open publishes doc and returns where it can be reached
	Open(ctx context.Context, doc *render.Document) (*Handle, error)
}

// Printer is implemented by sinks that can print an opened document.
type Printer interface {
	Print(ctx context.Context, h *Handle) (*PrintResult, error)
}

// Handle refers to an opened document
type Handle struct {
	// ID of the document
	ID string `json:"id"`
	// Location is a URL path or a file path, depending on the sink
	Location string `json:"location"`
	// Sink is the name of the sink that opened the document
	Sink string `json:"sink"`

	doc *render.Document
}

// Document returns the document the handle was opened for
func (h *Handle) Document() *render.Document {
	return h.doc
}

// PrintResult is a printed document
type PrintResult struct {
	PDF   []byte
	Pages int
	// Path is set when the PDF was also written to disk
	Path string
}

// ErrSinkFull is returned by MemorySink when it holds max_documents documents
var ErrSinkFull = apperrors.New(apperrors.ErrCodeSinkFull, "too many open documents; try again later")

// PopupBlocked reports that no browser window could be opened for a document.
// The message tells the user what to change.
func PopupBlocked(err error) *apperrors.AppError {
	return apperrors.Wrap(apperrors.ErrCodePopupBlocked,
		"could not open a browser window for the document; allow pop-ups for this site or configure a default browser (set BROWSER)",
		err)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName is the base name a document is written under
func FileName(doc *render.Document) string {
	kind := strings.Trim(unsafeName.ReplaceAllString(doc.Kind, "-"), ".-")
	if kind == "" {
		kind = "document"
	}
	id := unsafeName.ReplaceAllString(doc.ID, "")
	if id == "" {
		return kind + ".html"
	}
	return fmt.Sprintf("%s-%s.html", kind, id)
}

// writeDocument writes doc into dir and returns the absolute path
func writeDocument(dir string, doc *render.Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(dir, FileName(doc)))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(doc.HTML), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}
