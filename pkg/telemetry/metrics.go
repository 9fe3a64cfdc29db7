package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/printdesk/printdesk/pkg/logger"
)

// MeterName is the default meter name for the application
const MeterName = "github.com/printdesk/printdesk"

// Metrics holds all application metrics
type Metrics struct {
	// Rendering
	DocumentsRendered   metric.Int64Counter
	PagesProduced       metric.Int64Counter
	RenderDuration      metric.Float64Histogram
	DegradedPaginations metric.Int64Counter
	MissingPlaceholders metric.Int64Counter

	// Sinks
	SinkOpens    metric.Int64Counter
	PDFsPrinted  metric.Int64Counter
	OpenInMemory metric.Int64UpDownCounter

	// Upstream school API
	UpstreamRequests metric.Int64Counter
	UpstreamDuration metric.Float64Histogram

	// HTTP
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance, initializing it if necessary.
// Instruments created before telemetry.New bind to the no-op provider.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		var err error
		globalMetrics, err = initMetrics(otel.Meter(MeterName))
		if err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			globalMetrics = &Metrics{}
		}
	})
	return globalMetrics
}

// metricBuilder accumulates the first instrument creation error.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil && b.err == nil {
		b.err = err
	}
	return c
}

func (b *metricBuilder) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil && b.err == nil {
		b.err = err
	}
	return c
}

func (b *metricBuilder) histogram(name, desc string, bounds ...float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	if err != nil && b.err == nil {
		b.err = err
	}
	return h
}

func initMetrics(meter metric.Meter) (*Metrics, error) {
	b := &metricBuilder{meter: meter}
	m := &Metrics{
		DocumentsRendered:   b.counter("printdesk_documents_rendered_total", "Total number of documents rendered", "{document}"),
		PagesProduced:       b.counter("printdesk_pages_total", "Total number of pages produced by pagination", "{page}"),
		RenderDuration:      b.histogram("printdesk_render_duration_seconds", "Time to compose a document", 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
		DegradedPaginations: b.counter("printdesk_pagination_degraded_total", "Paginations that fell back to a single page", "{document}"),
		MissingPlaceholders: b.counter("printdesk_placeholders_missing_total", "Placeholder tokens left unresolved", "{token}"),

		SinkOpens:    b.counter("printdesk_sink_opens_total", "Documents opened per sink", "{document}"),
		PDFsPrinted:  b.counter("printdesk_pdfs_printed_total", "PDFs produced by headless printing", "{pdf}"),
		OpenInMemory: b.upDown("printdesk_documents_open", "Documents currently held by the memory sink", "{document}"),

		UpstreamRequests: b.counter("printdesk_upstream_requests_total", "Requests made to the school API", "{request}"),
		UpstreamDuration: b.histogram("printdesk_upstream_request_duration_seconds", "Duration of school API requests", 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),

		HTTPRequestsTotal:   b.counter("printdesk_http_requests_total", "Total number of HTTP requests", "{request}"),
		HTTPRequestDuration: b.histogram("printdesk_http_request_duration_seconds", "Duration of HTTP requests", 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	}
	if b.err != nil {
		return nil, b.err
	}
	logger.Debug("Metrics initialized")
	return m, nil
}

// RecordRender records one composed document
func (m *Metrics) RecordRender(ctx context.Context, kind string, pages int, degraded bool, durationSeconds float64) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	if m.DocumentsRendered != nil {
		m.DocumentsRendered.Add(ctx, 1, attrs)
	}
	if m.PagesProduced != nil {
		m.PagesProduced.Add(ctx, int64(pages), attrs)
	}
	if m.RenderDuration != nil {
		m.RenderDuration.Record(ctx, durationSeconds, attrs)
	}
	if degraded && m.DegradedPaginations != nil {
		m.DegradedPaginations.Add(ctx, 1, attrs)
	}
}

// RecordMissingPlaceholders records tokens the field map did not resolve
func (m *Metrics) RecordMissingPlaceholders(ctx context.Context, kind string, count int) {
	if m.MissingPlaceholders == nil || count == 0 {
		return
	}
	m.MissingPlaceholders.Add(ctx, int64(count), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordSinkOpen records a document handed to a sink
func (m *Metrics) RecordSinkOpen(ctx context.Context, sink string, success bool) {
	if m.SinkOpens == nil {
		return
	}
	m.SinkOpens.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sink", sink),
		attribute.Bool("success", success),
	))
}

// RecordPDF records a headless print
func (m *Metrics) RecordPDF(ctx context.Context, success bool) {
	if m.PDFsPrinted == nil {
		return
	}
	m.PDFsPrinted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// AddOpenDocuments moves the in-memory document gauge by delta
func (m *Metrics) AddOpenDocuments(ctx context.Context, delta int64) {
	if m.OpenInMemory == nil {
		return
	}
	m.OpenInMemory.Add(ctx, delta)
}

// RecordUpstream records one school API request
func (m *Metrics) RecordUpstream(ctx context.Context, resource string, statusCode int, durationSeconds float64) {
	if m.UpstreamRequests != nil {
		m.UpstreamRequests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("resource", resource),
			attribute.Int("status_code", statusCode),
		))
	}
	if m.UpstreamDuration != nil {
		m.UpstreamDuration.Record(ctx, durationSeconds, metric.WithAttributes(attribute.String("resource", resource)))
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	if m.HTTPRequestsTotal != nil {
		m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
			attribute.Int("status_code", statusCode),
		))
	}
	if m.HTTPRequestDuration != nil {
		m.HTTPRequestDuration.Record(ctx, durationSeconds, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		))
	}
}
