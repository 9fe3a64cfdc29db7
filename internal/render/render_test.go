package render

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/paginate"
	"github.com/printdesk/printdesk/internal/placeholder"
	"github.com/printdesk/printdesk/internal/sanitize"
	apperrors "github.com/printdesk/printdesk/pkg/errors"
	"github.com/printdesk/printdesk/pkg/idgen"
)

type stubMeasurer struct {
	height float64
}

func (m stubMeasurer) Measure(_ context.Context, blocks []layout.Block) (float64, error) {
	return m.height * float64(len(blocks)), nil
}

// styledMeasurer doubles block heights once document styles are applied
type styledMeasurer struct {
	stubMeasurer
	css *string
}

func (m styledMeasurer) WithStyles(css string) layout.Measurer {
	*m.css = css
	return stubMeasurer{height: m.height * 2}
}

type brokenMeasurer struct{}

func (brokenMeasurer) Measure(context.Context, []layout.Block) (float64, error) {
	return 0, layout.ErrMeasurementUnavailable
}

func TestRenderDocument_Raw(t *testing.T) {
	r := NewRenderer(layout.A4())
	doc, err := r.RenderDocument("Carnê <1>", ".x{color:red}", "<p>Parcela 1</p>", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Pages)
	assert.False(t, doc.AutoPrint)
	assert.Contains(t, doc.HTML, "<!DOCTYPE html>")
	assert.Contains(t, doc.HTML, `<meta charset="utf-8">`)
	assert.Contains(t, doc.HTML, "<title>Carnê &lt;1&gt;</title>")
	assert.Contains(t, doc.HTML, ".x{color:red}")
	assert.Contains(t, doc.HTML, `<div class="page-content"><p>Parcela 1</p></div>`)
	assert.Contains(t, doc.HTML, `class="toolbar no-print"`)
	assert.Contains(t, doc.HTML, `data-pagination="none"`)
	assert.Contains(t, doc.HTML, "window.__printdeskReady = true;")
	assert.NotContains(t, doc.HTML, "window.print();", "printing waits for the button")
	assert.NotContains(t, doc.HTML, `id="source"`)
}

func TestRenderDocument_PrintSheet(t *testing.T) {
	doc, err := NewRenderer(layout.A4()).RenderDocument("t", "", "<p>x</p>", nil)
	require.NoError(t, err)

	assert.Contains(t, doc.HTML, "@page { size: 210mm 297mm; margin: 0; }")
	assert.Contains(t, doc.HTML, "@media print")
	assert.Contains(t, doc.HTML, ".no-print { display: none !important; }")
	assert.Contains(t, doc.HTML, "break-after: page;")
	assert.Contains(t, doc.HTML, ".page.paginated .page-content { height: 257mm; }")
}

func TestRenderDocument_AutoPrint(t *testing.T) {
	doc, err := NewRenderer(layout.A4()).RenderDocument("Diário", "", "<table></table>", &PaginationConfig{AutoPrint: true})
	require.NoError(t, err)
	assert.True(t, doc.AutoPrint)
	assert.Equal(t, 1, strings.Count(doc.HTML, "window.print();"))
}

func TestRenderDocument_ServerSide(t *testing.T) {
	pages := []paginate.PageBox{
		{Number: 1, Total: 2, Blocks: []layout.Block{{HTML: "<p>a</p>"}, {HTML: "<p>b</p>"}}},
		{Number: 2, Total: 2, Blocks: []layout.Block{{HTML: "<p>c</p>"}}},
	}
	doc, err := NewRenderer(layout.A4()).RenderDocument("Contrato", "", "", &PaginationConfig{
		Mode:  ModeServerSide,
		Pages: pages,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Pages)
	assert.Equal(t, 2, strings.Count(doc.HTML, `<section class="page paginated"`))
	assert.Contains(t, doc.HTML, `<div class="page-content"><p>a</p><p>b</p></div>`)
	assert.Contains(t, doc.HTML, "Página 1 de 2")
	assert.Contains(t, doc.HTML, "Página 2 de 2")
	assert.Contains(t, doc.HTML, `data-pagination="done"`)
}

func TestRenderDocument_ServerSideDegraded(t *testing.T) {
	doc, err := NewRenderer(layout.A4()).RenderDocument("Contrato", "", "", &PaginationConfig{
		Mode:     ModeServerSide,
		Pages:    []paginate.PageBox{{Number: 1, Total: 1, Blocks: []layout.Block{{HTML: "<p>a</p>"}}}},
		Degraded: true,
	})
	require.NoError(t, err)
	assert.True(t, doc.Degraded)
	assert.Contains(t, doc.HTML, `<section class="page unpaginated"`)
	assert.Contains(t, doc.HTML, `data-pagination="degraded"`)
}

func TestRenderDocument_ServerSideNoPages(t *testing.T) {
	doc, err := NewRenderer(layout.A4()).RenderDocument("t", "", "", &PaginationConfig{Mode: ModeServerSide})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages)
	assert.Contains(t, doc.HTML, "Página 1 de 1")
}

func TestRenderDocument_ClientSide(t *testing.T) {
	r := NewRenderer(layout.A4())
	r.LabelFormat = "%d / %d"
	doc, err := r.RenderDocument("Contrato", "", "", &PaginationConfig{
		Mode:    ModeClientSide,
		Blocks:  []layout.Block{{HTML: "<p>um</p>"}, {HTML: "<p>dois</p>"}},
		Timeout: 1500 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Contains(t, doc.HTML, `<div id="source" hidden>`)
	assert.Contains(t, doc.HTML, "<p>um</p>")
	assert.Contains(t, doc.HTML, "<p>dois</p>")
	assert.Contains(t, doc.HTML, `data-pagination="pending"`)
	assert.Contains(t, doc.HTML, `"timeout":1500`)
	assert.Contains(t, doc.HTML, `"label":"%d / %d"`)
	assert.Contains(t, doc.HTML, `"autoPrint":false`)
	assert.Contains(t, doc.HTML, "__printdeskConfig")
	assert.Contains(t, doc.HTML, "finish('degraded')")
	assert.Zero(t, doc.Pages)
}

func TestRenderDocument_ClientSideDefaultTimeout(t *testing.T) {
	doc, err := NewRenderer(layout.A4()).RenderDocument("t", "", "", &PaginationConfig{Mode: ModeClientSide})
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, fmt.Sprintf(`"timeout":%d`, DefaultClientTimeout.Milliseconds()))
}

func TestPageCSS_Letter(t *testing.T) {
	g, err := layout.NewGeometry("letter", layout.Margins{Top: 10, Right: 12, Bottom: 30, Left: 12})
	require.NoError(t, err)
	css := NewRenderer(g).PageCSS()

	assert.Contains(t, css, "size: 215.9mm 279.4mm")
	assert.Contains(t, css, "padding: 10mm 12mm 30mm 12mm")
	assert.Contains(t, css, ".page-label { bottom: 8mm; }")
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "none", ModeNone.String())
	assert.Equal(t, "server", ModeServerSide.String())
	assert.Equal(t, "client", ModeClientSide.String())
}

func TestCompose_SubstituteNormalizeSanitize(t *testing.T) {
	p := NewPipeline(NewRenderer(layout.A4()), nil, nil)
	fields := placeholder.NewFieldMap("student_name", "Ana", "school_name", "Escola <b>Sol</b>")

	doc, err := p.Compose(context.Background(), Input{
		Kind:     "custom",
		Title:    "Declaração",
		Template: "<p onclick=\"x()\">{{student_name}} - {{school_name}} {{unknown}}</p><script>alert(1)</script>",
		Fields:   fields,
	})
	require.NoError(t, err)

	assert.True(t, idgen.IsValid(doc.ID))
	assert.Equal(t, "custom", doc.Kind)
	assert.Equal(t, []string{"unknown"}, doc.Missing)
	assert.Contains(t, doc.HTML, "<p>Ana - Escola <b>Sol</b> {{unknown}}</p>")
	assert.NotContains(t, doc.HTML, "alert(1)")
	assert.NotContains(t, doc.HTML, "onclick=\"x()\"")
}

func TestCompose_PlainTextTemplate(t *testing.T) {
	p := NewPipeline(NewRenderer(layout.A4()), nil, nil)
	doc, err := p.Compose(context.Background(), Input{
		Template: "Linha 1\n\nLinha 2",
		Fields:   placeholder.NewFieldMap(),
	})
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, "<p>Linha 1</p><p>Linha 2</p>")
	assert.Equal(t, "custom", doc.Kind)
}

func TestCompose_EmptyTemplate(t *testing.T) {
	p := NewPipeline(NewRenderer(layout.A4()), nil, nil)
	_, err := p.Compose(context.Background(), Input{Template: "  \n "})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateEmpty))
}

func TestCompose_ServerSidePagination(t *testing.T) {
	g := layout.A4()
	p := NewPipeline(NewRenderer(g), sanitize.Textual{}, stubMeasurer{height: 90})

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "<p>Cláusula %d</p>", i+1)
	}
	doc, err := p.Compose(context.Background(), Input{Template: sb.String(), Paginate: true})
	require.NoError(t, err)

	assert.Equal(t, 5, doc.Pages)
	assert.False(t, doc.Degraded)
	assert.Contains(t, doc.HTML, "Página 5 de 5")
	assert.NotContains(t, doc.HTML, "Página 6 de")
}

func TestCompose_ServerSideMeasuresWithDocumentStyles(t *testing.T) {
	var css string
	p := NewPipeline(NewRenderer(layout.A4()), nil, styledMeasurer{stubMeasurer: stubMeasurer{height: 90}, css: &css})

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "<p>Cláusula %d</p>", i+1)
	}

	doc, err := p.Compose(context.Background(), Input{Template: sb.String(), Paginate: true})
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Pages)
	assert.Empty(t, css)

	styles := "p { font-size: 18pt; }"
	doc, err = p.Compose(context.Background(), Input{Template: sb.String(), Styles: styles, Paginate: true})
	require.NoError(t, err)
	assert.Equal(t, styles, css)
	assert.Equal(t, 10, doc.Pages)
	assert.Contains(t, doc.HTML, "Página 10 de 10")
}

func TestCompose_ServerSideDegraded(t *testing.T) {
	p := NewPipeline(NewRenderer(layout.A4()), nil, brokenMeasurer{})
	doc, err := p.Compose(context.Background(), Input{Template: "<p>a</p><p>b</p><p>c</p>", Paginate: true})
	require.NoError(t, err)

	assert.True(t, doc.Degraded)
	assert.Equal(t, 1, doc.Pages)
	assert.Contains(t, doc.HTML, "<p>a</p><p>b</p><p>c</p>")
}

func TestCompose_ClientSidePagination(t *testing.T) {
	p := NewPipeline(NewRenderer(layout.A4()), nil, nil)
	assert.Equal(t, ModeClientSide, p.PaginationMode())

	doc, err := p.Compose(context.Background(), Input{Template: "<p>a</p><p>b</p>", Paginate: true, AutoPrint: true})
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, `<div id="source" hidden>`)
	assert.Contains(t, doc.HTML, `"autoPrint":true`)
}

func TestCompose_ForcedClientMode(t *testing.T) {
	p := NewPipeline(NewRenderer(layout.A4()), nil, stubMeasurer{height: 1})
	p.Mode = ModeClientSide
	assert.Equal(t, ModeClientSide, p.PaginationMode())
}

func TestCompose_AutoPrintWithoutPagination(t *testing.T) {
	p := NewPipeline(NewRenderer(layout.A4()), nil, nil)
	doc, err := p.Compose(context.Background(), Input{Kind: "gradebook", Template: "<table></table>", AutoPrint: true})
	require.NoError(t, err)
	assert.True(t, doc.AutoPrint)
	assert.Contains(t, doc.HTML, "window.print();")
	assert.Contains(t, doc.HTML, `data-pagination="none"`)
}

func TestCompose_DoesNotMutateFields(t *testing.T) {
	p := NewPipeline(NewRenderer(layout.A4()), nil, nil)
	fields := placeholder.NewFieldMap("a", "1", "b", "2")
	_, err := p.Compose(context.Background(), Input{Template: "{{a}}{{b}}", Fields: fields})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fields.Keys())
}
