package engine

import (
	"fmt"

	"github.com/printdesk/printdesk/internal/config"
	"github.com/printdesk/printdesk/internal/documents"
	"github.com/printdesk/printdesk/internal/documents/format"
	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/internal/sanitize"
	"github.com/printdesk/printdesk/internal/upstream"
)

// NewPipeline builds the render pipeline described by cfg. The returned
// closer releases the Chrome measurer, if one was started.
func NewPipeline(cfg *config.Config) (*render.Pipeline, func(), error) {
	g, err := cfg.Layout.Geometry()
	if err != nil {
		return nil, nil, err
	}

	r := render.NewRenderer(g)
	if cfg.Layout.PageLabel != "" {
		r.LabelFormat = cfg.Layout.PageLabel
	}
	if cfg.Layout.ClientTimeout > 0 {
		r.ClientTimeout = cfg.Layout.ClientTimeout
	}

	s, err := sanitize.New(cfg.Sanitizer.Mode)
	if err != nil {
		return nil, nil, err
	}

	closer := func() {}
	p := render.NewPipeline(r, s, nil)
	switch cfg.Layout.Measurer {
	case "", layout.MeasurerClient:
		p.Mode = render.ModeClientSide
	case layout.MeasurerMonospace:
		p.Measurer = layout.NewMonospaceMeasurer(g, cfg.Layout.CharWidth, cfg.Layout.LineHeight)
	case layout.MeasurerChrome:
		m := layout.NewChromeMeasurer(cfg.Chrome, g, r.Stylesheet(""))
		p.Measurer = m
		closer = m.Close
	default:
		return nil, nil, fmt.Errorf("unknown measurer %q", cfg.Layout.Measurer)
	}
	return p, closer, nil
}

// NewBuilder builds the document builder for the configured locale and QR endpoint
func NewBuilder(cfg *config.Config) *documents.Builder {
	return documents.NewBuilder(format.New(cfg.LocaleTag()), cfg.QR)
}

// NewClient builds the school API client. It returns nil when no base URL
// is configured, which disables the school documents. The configured token
// is not attached here; see WithDefaultToken.
func NewClient(cfg *config.Config) (*upstream.Client, error) {
	if cfg.Upstream.BaseURL == "" {
		return nil, nil
	}
	return upstream.New(cfg.Upstream.BaseURL,
		upstream.WithTimeout(cfg.Upstream.Timeout),
	)
}
