// Package render composes standalone, printable HTML documents.
package render

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/paginate"
	"github.com/printdesk/printdesk/internal/render/assets"
)

// Mode selects how a document body is laid out into pages
type Mode int

const (
	// ModeNone places the raw body inside a single .page box
	ModeNone Mode = iota
	// ModeServerSide uses pages already built by the paginator
	ModeServerSide
	// ModeClientSide ships the blocks to the browser, which paginates after load
	ModeClientSide
)

// String returns the mode name used in the document markup
func (m Mode) String() string {
	switch m {
	case ModeServerSide:
		return "server"
	case ModeClientSide:
		return "client"
	default:
		return "none"
	}
}

// DefaultClientTimeout bounds client-side pagination before the document
// falls back to the unpaginated source.
const DefaultClientTimeout = 3 * time.Second

// Pagination states written to <body data-pagination>
const (
	StateNone     = "none"
	StatePending  = "pending"
	StateDone     = "done"
	StateDegraded = "degraded"
)

// PaginationConfig describes how the body is split into pages.
// A nil config renders the raw body on one page without auto printing.
type PaginationConfig struct {
	Mode Mode
	// Pages are the paginator's output (ModeServerSide)
	Pages []paginate.PageBox
	// Blocks are laid out by the browser (ModeClientSide)
	Blocks []layout.Block
	// Degraded marks server-side pages that could not be measured
	Degraded bool
	// AutoPrint opens the print dialog once after layout
	AutoPrint bool
	// Timeout overrides the renderer's client-side safety timeout
	Timeout time.Duration
	// LabelFormat overrides the renderer's page label format
	LabelFormat string
}

// Document is one rendered, self-contained HTML document.
type Document struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	HTML      string    `json:"-"`
	Pages     int       `json:"pages"`
	Degraded  bool      `json:"degraded"`
	Missing   []string  `json:"missing,omitempty"`
	AutoPrint bool      `json:"auto_print"`
	CreatedAt time.Time `json:"created_at"`
}

// Renderer writes documents for one page geometry.
type Renderer struct {
	Geometry      layout.Geometry
	LabelFormat   string
	ClientTimeout time.Duration
	// PrintLabel is the toolbar button caption
	PrintLabel string
}

// NewRenderer creates a renderer with the default label, timeout and caption.
func NewRenderer(g layout.Geometry) *Renderer {
	return &Renderer{
		Geometry:      g,
		LabelFormat:   paginate.DefaultLabelFormat,
		ClientTimeout: DefaultClientTimeout,
		PrintLabel:    "Imprimir",
	}
}

var documentTemplate = template.Must(template.New("document").Parse(assets.DocumentTemplate))

type pageView struct {
	Number int
	HTML   template.HTML
	Label  string
}

type clientConfig struct {
	ContentHeight float64 `json:"contentHeight"`
	Label         string  `json:"label"`
	Timeout       int64   `json:"timeout"`
	AutoPrint     bool    `json:"autoPrint"`
}

type documentView struct {
	Lang       string
	Generator  string
	Title      string
	ScreenCSS  template.CSS
	PageCSS    template.CSS
	HeadStyles template.CSS
	PrintLabel string
	Mode       string
	State      string
	PageClass  string
	Body       template.HTML
	Pages      []pageView
	Blocks     []template.HTML
	Client     clientConfig
	PaginateJS template.JS
	AutoPrint  bool
}

// RenderDocument composes title, caller styles and an already sanitized body
// into a complete document. bodyHTML and headStyles are trusted as given.
func (r *Renderer) RenderDocument(title, headStyles, bodyHTML string, pagination *PaginationConfig) (*Document, error) {
	cfg := PaginationConfig{}
	if pagination != nil {
		cfg = *pagination
	}
	labelFormat := r.labelFormat(cfg.LabelFormat)

	view := documentView{
		Lang:       consts.DefaultLocale,
		Generator:  consts.ProjectName + " " + consts.Version,
		Title:      title,
		ScreenCSS:  template.CSS(assets.ScreenCSS),
		PageCSS:    template.CSS(r.PageCSS()),
		HeadStyles: template.CSS(headStyles),
		PrintLabel: r.printLabel(),
		Mode:       cfg.Mode.String(),
		State:      StateNone,
		AutoPrint:  cfg.AutoPrint,
	}

	doc := &Document{
		Title:     title,
		Pages:     1,
		AutoPrint: cfg.AutoPrint,
		CreatedAt: time.Now(),
	}

	switch cfg.Mode {
	case ModeServerSide:
		pages := cfg.Pages
		if len(pages) == 0 {
			pages = []paginate.PageBox{{Number: 1, Total: 1}}
		}
		view.State = StateDone
		view.PageClass = "page paginated"
		if cfg.Degraded {
			view.State = StateDegraded
			view.PageClass = "page unpaginated"
		}
		for _, p := range pages {
			view.Pages = append(view.Pages, pageView{
				Number: p.Number,
				HTML:   template.HTML(joinBlocks(p.Blocks)),
				Label:  p.Label(labelFormat),
			})
		}
		doc.Pages = len(pages)
		doc.Degraded = cfg.Degraded

	case ModeClientSide:
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = r.ClientTimeout
		}
		if timeout <= 0 {
			timeout = DefaultClientTimeout
		}
		view.State = StatePending
		view.PaginateJS = template.JS(assets.PaginateJS)
		view.Client = clientConfig{
			ContentHeight: r.Geometry.ContentHeightPx(),
			Label:         labelFormat,
			Timeout:       timeout.Milliseconds(),
			AutoPrint:     cfg.AutoPrint,
		}
		for _, b := range cfg.Blocks {
			view.Blocks = append(view.Blocks, template.HTML(b.HTML))
		}
		// The page count is only known to the browser.
		doc.Pages = 0

	default:
		view.Body = template.HTML(bodyHTML)
	}

	var sb strings.Builder
	if err := documentTemplate.Execute(&sb, view); err != nil {
		return nil, fmt.Errorf("execute document template: %w", err)
	}
	doc.HTML = sb.String()
	return doc, nil
}

// PageCSS sizes .page boxes and the printed sheet to the renderer's geometry.
func (r *Renderer) PageCSS() string {
	g := r.Geometry
	m := g.Margins
	labelBottom := m.Bottom / 2
	if labelBottom > 8 {
		labelBottom = 8
	}
	return fmt.Sprintf(`@page { size: %s; margin: 0; }
.page { width: %s; min-height: %s; padding: %s %s %s %s; }
.page.paginated { height: %s; }
.page.paginated .page-content { height: %s; }
.page.unpaginated { min-height: %s; height: auto; }
.page-label { bottom: %s; }
`,
		g.CSSPageSize(),
		mm(g.WidthMM), mm(g.HeightMM), mm(m.Top), mm(m.Right), mm(m.Bottom), mm(m.Left),
		mm(g.HeightMM),
		mm(g.ContentHeightMM()),
		mm(g.HeightMM),
		mm(labelBottom),
	)
}

// Stylesheet is the CSS that shapes page content: the base sheet, the page
// geometry and the caller's styles. Measurers load it to match the document.
func (r *Renderer) Stylesheet(headStyles string) string {
	return assets.ScreenCSS + "\n" + r.PageCSS() + "\n" + headStyles
}

func (r *Renderer) labelFormat(override string) string {
	if override != "" {
		return override
	}
	if r.LabelFormat != "" {
		return r.LabelFormat
	}
	return paginate.DefaultLabelFormat
}

func (r *Renderer) printLabel() string {
	if r.PrintLabel != "" {
		return r.PrintLabel
	}
	return "Imprimir"
}

func joinBlocks(blocks []layout.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(b.HTML)
	}
	return sb.String()
}

func mm(v float64) string {
	return fmt.Sprintf("%gmm", v)
}
