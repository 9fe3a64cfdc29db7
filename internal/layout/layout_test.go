package layout

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printdesk/printdesk/internal/chrome"
)

func TestSplitBlocks(t *testing.T) {
	blocks, err := SplitBlocks(`<h1>Contrato</h1>
<p>Cláusula <b>primeira</b></p>

<!-- nota -->
solto <i>inline</i>
<table><tr><td>A</td><td>B</td></tr></table>`)
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	assert.Equal(t, "<h1>Contrato</h1>", blocks[0].HTML)
	assert.Equal(t, "Contrato", blocks[0].Text)

	assert.Equal(t, "<p>Cláusula <b>primeira</b></p>", blocks[1].HTML)
	assert.Equal(t, "Cláusula primeira", blocks[1].Text)

	assert.Equal(t, "<p>\nsolto <i>inline</i>\n</p>", blocks[2].HTML)
	assert.Equal(t, "solto inline", blocks[2].Text)

	assert.Contains(t, blocks[3].HTML, "<table>")
	assert.Equal(t, "A B", blocks[3].Text)

	for i, b := range blocks {
		assert.Equal(t, i, b.Index)
	}
}

func TestSplitBlocks_Empty(t *testing.T) {
	blocks, err := SplitBlocks("  \n\t ")
	require.NoError(t, err)
	assert.Empty(t, blocks)

	blocks, err = SplitBlocks("")
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestSplitBlocks_NormalizedParagraphs(t *testing.T) {
	blocks, err := SplitBlocks("<p>Linha 1</p><p>Linha 2<br>Linha 3</p>")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Linha 2\nLinha 3", blocks[1].Text)
}

func TestGeometry(t *testing.T) {
	g := A4()
	assert.Equal(t, "a4", g.Paper)
	assert.InDelta(t, 170, g.ContentWidthMM(), 1e-9)
	assert.InDelta(t, 257, g.ContentHeightMM(), 1e-9)
	assert.InDelta(t, 170*96/25.4, g.ContentWidthPx(), 1e-9)
	assert.InDelta(t, 971.34, g.ContentHeightPx(), 0.01)
	assert.Equal(t, "210mm 297mm", g.CSSPageSize())
	assert.InDelta(t, 8.27, g.WidthInches(), 0.01)
	assert.InDelta(t, 11.69, g.HeightInches(), 0.01)

	letter, err := NewGeometry("Letter", Margins{Top: 10, Right: 10, Bottom: 10, Left: 10})
	require.NoError(t, err)
	assert.Equal(t, "215.9mm 279.4mm", letter.CSSPageSize())

	_, err = NewGeometry("a3", DefaultMargins)
	assert.Error(t, err)

	_, err = NewGeometry("a4", Margins{Top: 150, Bottom: 150})
	assert.Error(t, err)

	_, err = NewGeometry("a4", Margins{Top: -1})
	assert.Error(t, err)
}

func TestMonospaceMeasurer_Lines(t *testing.T) {
	m := &MonospaceMeasurer{Width: 100, CharWidth: 10, LineHeight: 20}
	require.Equal(t, 10, m.Columns())

	tests := []struct {
		text string
		want int
	}{
		{"", 1},
		{"aaaa bbbb", 1},
		{"aaaa bbbb cccc", 2},
		{"aaaaaaaaaaaaaaaaaaaaaaaaa", 3},
		{"one\ntwo\nthree", 3},
		{"日本語日本語", 2}, // wide glyphs take two columns each
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Lines(tt.text), "text %q", tt.text)
	}
}

func TestMonospaceMeasurer_Measure(t *testing.T) {
	m := &MonospaceMeasurer{Width: 100, CharWidth: 10, LineHeight: 20, BlockSpacing: 5}
	h, err := m.Measure(context.Background(), []Block{{Text: "short"}, {Text: "aaaa bbbb cccc"}})
	require.NoError(t, err)
	assert.Equal(t, float64(20+5+40+5), h)

	h, err = m.Measure(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, h)
}

func TestMonospaceMeasurer_Unavailable(t *testing.T) {
	m := &MonospaceMeasurer{Width: 5, CharWidth: 10, LineHeight: 20}
	_, err := m.Measure(context.Background(), []Block{{Text: "x"}})
	assert.True(t, errors.Is(err, ErrMeasurementUnavailable))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewMonospaceMeasurer(A4(), 0, 0).Measure(ctx, []Block{{Text: "x"}})
	assert.True(t, errors.Is(err, ErrMeasurementUnavailable))
}

func TestNewMonospaceMeasurer_Defaults(t *testing.T) {
	m := NewMonospaceMeasurer(A4(), 0, 0)
	assert.Equal(t, DefaultCharWidth, m.CharWidth)
	assert.Equal(t, DefaultLineHeight, m.LineHeight)
	assert.Equal(t, DefaultLineHeight/2, m.BlockSpacing)
	assert.Equal(t, int(math.Floor(A4().ContentWidthPx()/DefaultCharWidth)), m.Columns())
}

func TestChromeMeasurer_BadBinary(t *testing.T) {
	m := NewChromeMeasurer(chrome.Config{Path: "/nonexistent/chrome"}, A4(), "")
	defer m.Close()

	_, err := m.Measure(context.Background(), []Block{{HTML: "<p>x</p>"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMeasurementUnavailable))
}

func TestChromeMeasurer_Real(t *testing.T) {
	path := os.Getenv("CHROME_PATH")
	if path == "" {
		t.Skip("CHROME_PATH not set")
	}
	m := NewChromeMeasurer(chrome.Config{Path: path}, A4(), "p{margin:0;line-height:20px;font-size:12px}")
	defer m.Close()

	one, err := m.Measure(context.Background(), []Block{{HTML: "<p>a</p>"}})
	require.NoError(t, err)
	two, err := m.Measure(context.Background(), []Block{{HTML: "<p>a</p>"}, {HTML: "<p>b</p>"}})
	require.NoError(t, err)
	assert.InDelta(t, 20, one, 0.5)
	assert.InDelta(t, 40, two, 0.5)
}

func TestChromeMeasurer_WithStyles(t *testing.T) {
	m := NewChromeMeasurer(chrome.Config{Path: "/nonexistent/chrome"}, A4(), "")
	defer m.Close()

	var _ StyledMeasurer = m
	assert.Same(t, m, m.WithStyles(""))

	styled := m.WithStyles("p{font-size:20pt}")
	assert.Equal(t, styledChrome{m: m, css: "p{font-size:20pt}"}, styled)
	_, err := styled.Measure(context.Background(), []Block{{HTML: "<p>x</p>"}})
	assert.True(t, errors.Is(err, ErrMeasurementUnavailable))
	assert.Contains(t, m.measuringPage(), `<style id="measure-styles"></style>`)
}

func TestChromeMeasurer_RealWithStyles(t *testing.T) {
	path := os.Getenv("CHROME_PATH")
	if path == "" {
		t.Skip("CHROME_PATH not set")
	}
	m := NewChromeMeasurer(chrome.Config{Path: path}, A4(), "p{margin:0;line-height:20px;font-size:12px}")
	defer m.Close()

	blocks := []Block{{HTML: "<p>a</p>"}}
	styled, err := m.WithStyles("p{line-height:30px}").Measure(context.Background(), blocks)
	require.NoError(t, err)
	assert.InDelta(t, 30, styled, 0.5)

	plain, err := m.Measure(context.Background(), blocks)
	require.NoError(t, err)
	assert.InDelta(t, 20, plain, 0.5)
}
