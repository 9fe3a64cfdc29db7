package render

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/normalize"
	"github.com/printdesk/printdesk/internal/paginate"
	"github.com/printdesk/printdesk/internal/placeholder"
	"github.com/printdesk/printdesk/internal/sanitize"
	apperrors "github.com/printdesk/printdesk/pkg/errors"
	"github.com/printdesk/printdesk/pkg/idgen"
	"github.com/printdesk/printdesk/pkg/logger"
	"github.com/printdesk/printdesk/pkg/telemetry"
)

// Input is everything a document needs, already fetched and formatted.
type Input struct {
	// Kind names the document type, such as consts.KindContract
	Kind     string
	Title    string
	Template string
	Fields   *placeholder.FieldMap
	// Styles is extra CSS placed in the document head
	Styles string
	// Paginate splits the body into labelled pages
	Paginate  bool
	AutoPrint bool
}

// Pipeline turns an Input into a Document:
// substitute, report missing tokens, normalize, sanitize, split, paginate, compose.
type Pipeline struct {
	Renderer  *Renderer
	Sanitizer sanitize.Sanitizer
	// Measurer enables server-side pagination. Nil leaves layout to the browser.
	Measurer layout.Measurer
	// Mode forces ModeServerSide or ModeClientSide for paginated inputs.
	// ModeNone picks server-side when a Measurer is set.
	Mode Mode
}

// NewPipeline creates a pipeline. A nil sanitizer uses the textual one.
func NewPipeline(r *Renderer, s sanitize.Sanitizer, m layout.Measurer) *Pipeline {
	if s == nil {
		s = sanitize.Textual{}
	}
	return &Pipeline{Renderer: r, Sanitizer: s, Measurer: m}
}

// PaginationMode is the mode used for inputs that ask for pagination
func (p *Pipeline) PaginationMode() Mode {
	switch p.Mode {
	case ModeServerSide, ModeClientSide:
		return p.Mode
	}
	if p.Measurer != nil {
		return ModeServerSide
	}
	return ModeClientSide
}

// Compose renders in. The template and field map are only read.
func (p *Pipeline) Compose(ctx context.Context, in Input) (*Document, error) {
	start := time.Now()
	kind := in.Kind
	if kind == "" {
		kind = consts.KindCustom
	}

	ctx, span := telemetry.StartSpan(ctx, "render.compose",
		trace.WithAttributes(telemetry.AttrDocumentKind.String(kind)))
	defer span.End()

	if strings.TrimSpace(in.Template) == "" {
		err := apperrors.New(apperrors.ErrCodeTemplateEmpty, "template is empty")
		telemetry.SetSpanError(span, err)
		return nil, err
	}

	body := placeholder.Substitute(in.Template, in.Fields)
	missing := placeholder.Missing(in.Template, in.Fields)
	if len(missing) > 0 {
		logger.Warn("Template placeholders left unresolved",
			zap.String(logger.FieldDocumentKind, kind),
			zap.Strings("placeholders", missing),
		)
		telemetry.GetMetrics().RecordMissingPlaceholders(ctx, kind, len(missing))
	}

	body = normalize.Normalize(body)
	body = p.sanitizer().Sanitize(body)

	var pagination *PaginationConfig
	switch {
	case in.Paginate:
		blocks, err := layout.SplitBlocks(body)
		if err != nil {
			appErr := apperrors.ErrInternal("failed to split document body", err)
			telemetry.SetSpanError(span, appErr)
			return nil, appErr
		}
		span.SetAttributes(telemetry.AttrBlockCount.Int(len(blocks)))

		if p.PaginationMode() == ModeServerSide {
			res := paginate.New(p.measurerFor(in), p.Renderer.Geometry).Paginate(ctx, blocks)
			pagination = &PaginationConfig{
				Mode:      ModeServerSide,
				Pages:     res.Pages,
				Degraded:  res.Degraded,
				AutoPrint: in.AutoPrint,
			}
		} else {
			pagination = &PaginationConfig{
				Mode:      ModeClientSide,
				Blocks:    blocks,
				AutoPrint: in.AutoPrint,
			}
		}
	case in.AutoPrint:
		pagination = &PaginationConfig{AutoPrint: true}
	}

	doc, err := p.Renderer.RenderDocument(in.Title, in.Styles, body, pagination)
	if err != nil {
		appErr := apperrors.ErrInternal("failed to compose document", err)
		telemetry.SetSpanError(span, appErr)
		return nil, appErr
	}
	doc.ID = idgen.NewDocumentID()
	doc.Kind = kind
	doc.Missing = missing

	span.SetAttributes(
		telemetry.AttrDocumentID.String(doc.ID),
		telemetry.AttrPageCount.Int(doc.Pages),
		telemetry.AttrDegraded.Bool(doc.Degraded),
	)
	telemetry.SetSpanOK(span)
	elapsed := time.Since(start)
	telemetry.GetMetrics().RecordRender(ctx, kind, doc.Pages, doc.Degraded, elapsed.Seconds())

	logger.WithDocument(kind, doc.ID).Info("Document composed",
		zap.Int("pages", doc.Pages),
		zap.Bool("degraded", doc.Degraded),
		zap.Int("missing", len(missing)),
		zap.Duration("duration", elapsed),
	)
	return doc, nil
}

func (p *Pipeline) sanitizer() sanitize.Sanitizer {
	if p.Sanitizer == nil {
		return sanitize.Textual{}
	}
	return p.Sanitizer
}

// measurerFor applies in.Styles to measurers that lay out with CSS
func (p *Pipeline) measurerFor(in Input) layout.Measurer {
	if sm, ok := p.Measurer.(layout.StyledMeasurer); ok && in.Styles != "" {
		return sm.WithStyles(in.Styles)
	}
	return p.Measurer
}
