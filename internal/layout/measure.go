package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/printdesk/printdesk/internal/chrome"
	"github.com/printdesk/printdesk/pkg/logger"
)

// ErrMeasurementUnavailable means no layout facility could measure the
// blocks. Pagination treats it as a signal to degrade, never as a failure.
var ErrMeasurementUnavailable = errors.New("layout measurement unavailable")

// Measurer reports the rendered height, in CSS pixels, of a page content
// box holding exactly the given blocks in order.
type Measurer interface {
	Measure(ctx context.Context, blocks []Block) (float64, error)
}

// StyledMeasurer is implemented by measurers whose results depend on CSS.
// WithStyles returns a Measurer that also applies css, which is usually a
// document's own extra styles.
type StyledMeasurer interface {
	Measurer
	WithStyles(css string) Measurer
}

// Measurer names accepted by configuration
const (
	MeasurerClient    = "client"
	MeasurerMonospace = "monospace"
	MeasurerChrome    = "chrome"
)

// MonospaceMeasurer approximates layout by treating every glyph as a fixed
// number of columns wide. It needs no browser and gives stable results,
// which makes it the default for server-side pagination.
type MonospaceMeasurer struct {
	// Width of the content box in px
	Width float64
	// CharWidth is the advance of one column in px
	CharWidth float64
	// LineHeight in px
	LineHeight float64
	// BlockSpacing is the vertical margin each block adds, in px
	BlockSpacing float64
}

// Monospace defaults tuned for 12px body text
const (
	DefaultCharWidth  = 7.2
	DefaultLineHeight = 19.2
)

// NewMonospaceMeasurer builds a measurer for g's content width. Zero values
// pick the defaults; block spacing is half a line.
func NewMonospaceMeasurer(g Geometry, charWidth, lineHeight float64) *MonospaceMeasurer {
	if charWidth <= 0 {
		charWidth = DefaultCharWidth
	}
	if lineHeight <= 0 {
		lineHeight = DefaultLineHeight
	}
	return &MonospaceMeasurer{
		Width:        g.ContentWidthPx(),
		CharWidth:    charWidth,
		LineHeight:   lineHeight,
		BlockSpacing: lineHeight / 2,
	}
}

// Columns is the number of glyph columns that fit across the content box
func (m *MonospaceMeasurer) Columns() int {
	if m.CharWidth <= 0 {
		return 0
	}
	return int(m.Width / m.CharWidth)
}

// Measure implements Measurer.
func (m *MonospaceMeasurer) Measure(ctx context.Context, blocks []Block) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMeasurementUnavailable, err)
	}
	cols := m.Columns()
	if cols < 1 || m.LineHeight <= 0 {
		return 0, fmt.Errorf("%w: content box has no columns", ErrMeasurementUnavailable)
	}

	var height float64
	for _, b := range blocks {
		height += float64(m.Lines(b.Text))*m.LineHeight + m.BlockSpacing
	}
	return height, nil
}

// Lines counts the wrapped lines text occupies. Text without visible
// characters (an image, a rule) still takes one line.
func (m *MonospaceMeasurer) Lines(text string) int {
	cols := m.Columns()
	if cols < 1 {
		cols = 1
	}
	n := 0
	for _, line := range strings.Split(text, "\n") {
		n += wrapLine(line, cols)
	}
	if n == 0 {
		n = 1
	}
	return n
}

func wrapLine(line string, cols int) int {
	words := strings.Fields(line)
	if len(words) == 0 {
		return 0
	}
	n, cur := 1, 0
	for _, word := range words {
		w := runewidth.StringWidth(word)
		switch {
		case cur == 0:
			cur = w
		case cur+1+w <= cols:
			cur += 1 + w
		default:
			n++
			cur = w
		}
		for cur > cols {
			n++
			cur -= cols
		}
	}
	return n
}

// ChromeMeasurer measures blocks in a real browser layout. The browser is
// started on first use and kept until Close; measurements are serialized.
type ChromeMeasurer struct {
	browser    chrome.Config
	geometry   Geometry
	stylesheet string

	mu      sync.Mutex
	tab     context.Context
	stopTab context.CancelFunc
}

// NewChromeMeasurer creates a measurer whose content box has g's width and
// carries stylesheet, which should be the document's own CSS.
func NewChromeMeasurer(browser chrome.Config, g Geometry, stylesheet string) *ChromeMeasurer {
	return &ChromeMeasurer{browser: browser, geometry: g, stylesheet: stylesheet}
}

const measureScript = `(function(){
	window.__measure = function(blocks, css) {
		document.getElementById('measure-styles').textContent = css || '';
		var box = document.getElementById('measure-box');
		box.innerHTML = blocks.join('');
		return box.getBoundingClientRect().height;
	};
	return true;
})()`

func (m *ChromeMeasurer) measuringPage() string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>%s
html,body{margin:0;padding:0;background:#fff}
#measure-box{width:%.3fpx;display:flow-root;box-sizing:border-box}
</style><style id="measure-styles"></style></head><body><div id="measure-box" class="page-content"></div></body></html>`,
		m.stylesheet, m.geometry.ContentWidthPx())
}

func (m *ChromeMeasurer) ensureTab() error {
	if m.tab != nil {
		return nil
	}
	tab, stop, err := chrome.Start(context.Background(), m.browser)
	if err != nil {
		return err
	}

	ctx, cancel := chrome.WithTimeout(tab, m.browser)
	defer cancel()

	var ready bool
	err = chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, m.measuringPage()).Do(ctx)
		}),
		chromedp.Evaluate(measureScript, &ready),
	)
	if err != nil {
		stop()
		return fmt.Errorf("prepare measuring page: %w", err)
	}

	m.tab, m.stopTab = tab, stop
	return nil
}

// Measure implements Measurer. Any browser failure is reported as
// ErrMeasurementUnavailable.
func (m *ChromeMeasurer) Measure(ctx context.Context, blocks []Block) (float64, error) {
	return m.measure(ctx, blocks, "")
}

// WithStyles implements StyledMeasurer. The returned measurer shares m's
// browser.
func (m *ChromeMeasurer) WithStyles(css string) Measurer {
	if css == "" {
		return m
	}
	return styledChrome{m: m, css: css}
}

type styledChrome struct {
	m   *ChromeMeasurer
	css string
}

func (s styledChrome) Measure(ctx context.Context, blocks []Block) (float64, error) {
	return s.m.measure(ctx, blocks, s.css)
}

func (m *ChromeMeasurer) measure(ctx context.Context, blocks []Block, css string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureTab(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMeasurementUnavailable, err)
	}

	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.HTML
	}
	arg, err := json.Marshal(parts)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMeasurementUnavailable, err)
	}
	cssArg, err := json.Marshal(css)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMeasurementUnavailable, err)
	}

	opCtx, cancel := chrome.WithTimeout(m.tab, m.browser)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var height float64
	if err := chromedp.Run(opCtx, chromedp.Evaluate("window.__measure("+string(arg)+","+string(cssArg)+")", &height)); err != nil {
		logger.Warn("Chrome measurement failed", zap.Int("blocks", len(blocks)), zap.Error(err))
		m.closeLocked()
		return 0, fmt.Errorf("%w: %v", ErrMeasurementUnavailable, err)
	}
	return height, nil
}

// Close terminates the browser, if one was started.
func (m *ChromeMeasurer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *ChromeMeasurer) closeLocked() {
	if m.stopTab != nil {
		m.stopTab()
	}
	m.tab, m.stopTab = nil, nil
}
