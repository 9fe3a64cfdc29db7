package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the application
const TracerName = "github.com/printdesk/printdesk"

// Tracer returns the global tracer for the application
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a new span with the given name.
// The caller is responsible for calling span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// SetSpanError records an error on the span and sets its status to error
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanOK sets the span status to OK
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Common attribute keys for consistent naming
var (
	AttrDocumentID   = attribute.Key("document.id")
	AttrDocumentKind = attribute.Key("document.kind")
	AttrPageCount    = attribute.Key("document.pages")
	AttrDegraded     = attribute.Key("pagination.degraded")
	AttrBlockCount   = attribute.Key("pagination.blocks")
	AttrMeasurer     = attribute.Key("pagination.measurer")
	AttrSink         = attribute.Key("sink.name")
	AttrUpstreamPath = attribute.Key("upstream.path")
)

// WithDocumentAttributes returns span start options describing a document
func WithDocumentAttributes(kind, id string) trace.SpanStartOption {
	return trace.WithAttributes(
		AttrDocumentKind.String(kind),
		AttrDocumentID.String(id),
	)
}
