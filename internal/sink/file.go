package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/pkg/logger"
	"github.com/printdesk/printdesk/pkg/telemetry"
)

// FileSink writes documents as standalone HTML files into Dir.
type FileSink struct {
	Dir string
}

// NewFileSink creates a sink writing into dir; empty means the working directory
func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = "."
	}
	return &FileSink{Dir: dir}
}

// Name implements DocumentSink.
func (s *FileSink) Name() string { return "file" }

// Open implements DocumentSink. The handle location is the file path.
func (s *FileSink) Open(ctx context.Context, doc *render.Document) (*Handle, error) {
	path, err := writeDocument(s.Dir, doc)
	telemetry.GetMetrics().RecordSinkOpen(ctx, s.Name(), err == nil)
	if err != nil {
		return nil, err
	}
	logger.Info("Document written", zap.String(logger.FieldDocumentID, doc.ID), zap.String("path", path))
	return &Handle{ID: doc.ID, Location: path, Sink: s.Name(), doc: doc}, nil
}
