// Package engine runs render jobs for PrintDesk.
// It fetches school data, builds the document input, composes it through the
// render pipeline, delivers it to a sink and writes the render log.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/documents"
	"github.com/printdesk/printdesk/internal/model"
	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/internal/sink"
	"github.com/printdesk/printdesk/internal/store"
	"github.com/printdesk/printdesk/internal/upstream"
	"github.com/printdesk/printdesk/pkg/errors"
	"github.com/printdesk/printdesk/pkg/logger"
)

// Job describes who asked for a document and where it goes
type Job struct {
	Source model.RenderSource
	// Token is forwarded to the school API as is. CLI jobs without one use
	// the configured default token; API jobs never do.
	Token string
	// Sink receives the composed document. Nil skips delivery.
	Sink sink.DocumentSink
}

// Result is a composed and delivered document
type Result struct {
	Document *render.Document
	// Handle is nil when the job had no sink
	Handle *sink.Handle
}

// Engine runs render jobs. It is safe for concurrent use.
type Engine struct {
	pipeline *render.Pipeline
	builder  *documents.Builder
	client   *upstream.Client
	logs     store.RenderLogStore
	// defaultToken authenticates CLI jobs that carry no token
	defaultToken string
}

// Option configures an Engine
type Option func(*Engine)

// WithClient sets the school API client used by the school documents
func WithClient(c *upstream.Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithDefaultToken sets the token used by CLI jobs that pass none
func WithDefaultToken(token string) Option {
	return func(e *Engine) { e.defaultToken = token }
}

// WithRenderLog records every job in logs
func WithRenderLog(logs store.RenderLogStore) Option {
	return func(e *Engine) { e.logs = logs }
}

// New creates an engine. A nil builder uses the pt-BR defaults.
func New(p *render.Pipeline, b *documents.Builder, opts ...Option) *Engine {
	if b == nil {
		b = documents.NewBuilder(nil, documents.QRConfig{})
	}
	e := &Engine{pipeline: p, builder: b}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pipeline returns the render pipeline
func (e *Engine) Pipeline() *render.Pipeline {
	return e.pipeline
}

// HasClient reports whether school documents can be fetched
func (e *Engine) HasClient() bool {
	return e.client != nil
}

// Render composes a caller-supplied template and field map
func (e *Engine) Render(ctx context.Context, job Job, in render.Input) (*Result, error) {
	if in.Kind == "" {
		in.Kind = consts.KindCustom
	}
	return e.run(ctx, job, in.Kind, "", false, func(context.Context, string, *model.School) (render.Input, error) {
		return in, nil
	})
}

// Contract renders the contract document for contract id
func (e *Engine) Contract(ctx context.Context, job Job, id string, opts documents.ContractOptions) (*Result, error) {
	return e.run(ctx, job, consts.KindContract, id, true, func(ctx context.Context, token string, school *model.School) (render.Input, error) {
		c, err := e.client.Contract(ctx, token, id)
		if err != nil {
			return render.Input{}, err
		}
		return e.builder.ContractInput(school, c, opts)
	})
}

// Booklet renders the payment slip for installment n of contract id
func (e *Engine) Booklet(ctx context.Context, job Job, id string, n int) (*Result, error) {
	return e.run(ctx, job, consts.KindBooklet, id, true, func(ctx context.Context, token string, school *model.School) (render.Input, error) {
		c, err := e.client.Contract(ctx, token, id)
		if err != nil {
			return render.Input{}, err
		}
		if _, ok := c.InstallmentByNumber(n); !ok {
			return render.Input{}, errors.New(errors.ErrCodeNotFound,
				fmt.Sprintf("installment %d not found in contract %s", n, id))
		}
		return e.builder.BookletInput(school, c, n)
	})
}

// Statement renders the financial statement of guardian id
func (e *Engine) Statement(ctx context.Context, job Job, id string) (*Result, error) {
	return e.run(ctx, job, consts.KindStatement, id, true, func(ctx context.Context, token string, school *model.School) (render.Input, error) {
		s, err := e.client.GuardianStatement(ctx, token, id)
		if err != nil {
			return render.Input{}, err
		}
		return e.builder.StatementInput(school, s)
	})
}

// Gradebook renders the class report of gradebook id
func (e *Engine) Gradebook(ctx context.Context, job Job, id string) (*Result, error) {
	return e.run(ctx, job, consts.KindGradebook, id, true, func(ctx context.Context, token string, school *model.School) (render.Input, error) {
		r, err := e.client.GradebookReport(ctx, token, id)
		if err != nil {
			return render.Input{}, err
		}
		return e.builder.GradebookInput(school, r)
	})
}

// ReportCard renders the report card of student id for year. Zero year
// asks the school API for the current one.
func (e *Engine) ReportCard(ctx context.Context, job Job, id string, year int) (*Result, error) {
	return e.run(ctx, job, consts.KindReportCard, id, true, func(ctx context.Context, token string, school *model.School) (render.Input, error) {
		r, err := e.client.StudentReport(ctx, token, id, year)
		if err != nil {
			return render.Input{}, err
		}
		return e.builder.ReportCardInput(school, r)
	})
}

// tokenFor returns the bearer token forwarded for job
func (e *Engine) tokenFor(job Job) string {
	if job.Token == "" && job.Source == model.RenderSourceCLI {
		return e.defaultToken
	}
	return job.Token
}

type buildFunc func(ctx context.Context, token string, school *model.School) (render.Input, error)

// run fetches the school when the document needs it, then composes,
// delivers and logs. Every error returned is an *errors.AppError.
func (e *Engine) run(ctx context.Context, job Job, kind, subjectID string, needSchool bool, build buildFunc) (*Result, error) {
	start := time.Now()
	entry := &model.RenderLog{
		Kind:      kind,
		SubjectID: subjectID,
		Source:    job.Source,
	}
	if entry.Source == "" {
		entry.Source = model.RenderSourceAPI
	}
	if job.Sink != nil {
		entry.Sink = job.Sink.Name()
	}

	res, err := e.compose(ctx, job, needSchool, build)
	entry.DurationMs = time.Since(start).Milliseconds()
	if res != nil {
		doc := res.Document
		entry.DocumentID = doc.ID
		entry.Title = doc.Title
		entry.Pages = doc.Pages
		entry.Degraded = doc.Degraded
		entry.Missing = model.StringArray(doc.Missing)
	}

	if err != nil {
		appErr := AsAppError(err)
		entry.Status = model.RenderStatusFailed
		entry.Error = appErr.Message
		e.record(entry)
		logger.Warn("Render job failed",
			zap.String(logger.FieldDocumentKind, kind),
			zap.String("subject_id", subjectID),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
		return nil, appErr
	}

	entry.Status = model.RenderStatusSuccess
	e.record(entry)
	return res, nil
}

func (e *Engine) compose(ctx context.Context, job Job, needSchool bool, build buildFunc) (*Result, error) {
	token := e.tokenFor(job)
	var school *model.School
	if needSchool {
		if e.client == nil {
			return nil, errors.New(errors.ErrCodeUpstreamUnreachable, "school API is not configured; set upstream.base_url")
		}
		s, err := e.client.School(ctx, token)
		if err != nil {
			return nil, err
		}
		school = s
	}

	in, err := build(ctx, token, school)
	if err != nil {
		return nil, err
	}

	doc, err := e.pipeline.Compose(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &Result{Document: doc}
	if job.Sink != nil {
		h, err := job.Sink.Open(ctx, doc)
		if err != nil {
			return res, err
		}
		res.Handle = h
	}
	return res, nil
}

func (e *Engine) record(entry *model.RenderLog) {
	if e.logs == nil {
		return
	}
	if err := e.logs.Create(entry); err != nil {
		logger.Warn("Failed to write render log", zap.String(logger.FieldDocumentKind, entry.Kind), zap.Error(err))
	}
}

// AsAppError maps err onto the error taxonomy. Upstream responses keep
// their text as the message.
func AsAppError(err error) *errors.AppError {
	var upErr *upstream.UpstreamError
	if stderrors.As(err, &upErr) {
		return upErr.AppError()
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	return errors.ErrInternal(fmt.Sprintf("render failed: %v", err), err)
}
