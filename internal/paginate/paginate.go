// Package paginate distributes document blocks across fixed-height pages.
package paginate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/pkg/logger"
)

// DefaultLabelFormat renders "Página 2 de 5"
const DefaultLabelFormat = "Página %d de %d"

// PageBox is one page of a laid out document.
type PageBox struct {
	// Number is the 1-based position of the page
	Number int `json:"number"`
	// Total is the page count of the whole document
	Total int `json:"total"`
	// Blocks are the blocks placed on this page, in document order
	Blocks []layout.Block `json:"blocks"`
}

// Label formats the page's position with format, which receives Number and
// Total as its two verbs. An empty format uses DefaultLabelFormat.
func (p PageBox) Label(format string) string {
	if format == "" {
		format = DefaultLabelFormat
	}
	return fmt.Sprintf(format, p.Number, p.Total)
}

// Result is the outcome of one pagination pass
type Result struct {
	Pages []PageBox `json:"pages"`
	// Degraded means no measurement was possible and every block was placed
	// on a single page
	Degraded bool `json:"degraded"`
}

// Paginator packs blocks greedily into pages of ContentHeight px.
type Paginator struct {
	Measurer      layout.Measurer
	ContentHeight float64
	// NewPage creates empty pages. Nil uses a zero PageBox.
	NewPage func() PageBox
}

// New creates a paginator for g's content box.
func New(m layout.Measurer, g layout.Geometry) *Paginator {
	return &Paginator{Measurer: m, ContentHeight: g.ContentHeightPx()}
}

func (p *Paginator) newPage() PageBox {
	if p.NewPage != nil {
		return p.NewPage()
	}
	return PageBox{}
}

// Paginate places blocks onto pages in order. A block goes onto the current
// page unless that makes the page taller than ContentHeight, in which case
// it starts a new page. A block that is alone on its page stays there even
// when it is taller than the page, so blocks are never split or dropped.
//
// When the measurer is missing or fails, every block is returned on one
// page and Result.Degraded is set. Partial layouts are never returned.
func (p *Paginator) Paginate(ctx context.Context, blocks []layout.Block) Result {
	if p.Measurer == nil || p.ContentHeight <= 0 {
		return p.degrade(blocks, fmt.Errorf("%w: no measurer configured", layout.ErrMeasurementUnavailable))
	}

	pages := []PageBox{p.newPage()}
	cur := &pages[0]

	for _, b := range blocks {
		if len(cur.Blocks) == 0 {
			// Alone on the page, so it stays regardless of height. Measuring
			// anyway would only detect that the block is over-tall.
			cur.Blocks = append(cur.Blocks, b)
			continue
		}

		candidate := append(cur.Blocks[:len(cur.Blocks):len(cur.Blocks)], b)
		height, err := p.Measurer.Measure(ctx, candidate)
		if err != nil {
			return p.degrade(blocks, err)
		}
		if height > p.ContentHeight {
			pages = append(pages, p.newPage())
			cur = &pages[len(pages)-1]
			cur.Blocks = append(cur.Blocks, b)
			continue
		}
		cur.Blocks = candidate
	}

	stamp(pages)
	return Result{Pages: pages}
}

func (p *Paginator) degrade(blocks []layout.Block, cause error) Result {
	logger.Warn("Pagination degraded to a single page",
		zap.Int("blocks", len(blocks)),
		zap.Error(cause),
	)
	page := p.newPage()
	page.Blocks = append(page.Blocks, blocks...)
	pages := []PageBox{page}
	stamp(pages)
	return Result{Pages: pages, Degraded: true}
}

// stamp numbers pages 1..N and records N on each
func stamp(pages []PageBox) {
	for i := range pages {
		pages[i].Number = i + 1
		pages[i].Total = len(pages)
	}
}

// Blocks flattens pages back into document order.
func (r Result) Blocks() []layout.Block {
	var out []layout.Block
	for _, p := range r.Pages {
		out = append(out, p.Blocks...)
	}
	return out
}
