package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printdesk/printdesk/internal/chrome"
	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/render"
	apperrors "github.com/printdesk/printdesk/pkg/errors"
)

func testDoc(id string) *render.Document {
	return &render.Document{ID: id, Kind: "contract", Title: "Contrato", HTML: "<!DOCTYPE html><p>" + id + "</p>", Pages: 1}
}

func TestMemorySink_OpenGet(t *testing.T) {
	s := NewMemorySink("/documents/", time.Minute, 10)
	h, err := s.Open(context.Background(), testDoc("abc"))
	require.NoError(t, err)

	assert.Equal(t, "abc", h.ID)
	assert.Equal(t, "/documents/abc", h.Location)
	assert.Equal(t, "memory", h.Sink)
	assert.Equal(t, "abc", h.Document().ID)

	doc, ok := s.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "Contrato", doc.Title)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestMemorySink_Expiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewMemorySink("/d/", 10*time.Minute, 10)
	s.now = func() time.Time { return now }

	_, err := s.Open(context.Background(), testDoc("a"))
	require.NoError(t, err)

	now = now.Add(9 * time.Minute)
	_, ok := s.Get("a")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = s.Get("a")
	assert.False(t, ok, "documents expire after the ttl")
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Sweep())
	assert.Zero(t, s.Len())
}

func TestMemorySink_Full(t *testing.T) {
	now := time.Now()
	s := NewMemorySink("/d/", time.Minute, 2)
	s.now = func() time.Time { return now }

	for _, id := range []string{"a", "b"} {
		_, err := s.Open(context.Background(), testDoc(id))
		require.NoError(t, err)
	}
	_, err := s.Open(context.Background(), testDoc("c"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSinkFull))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSinkFull))

	// Expired documents free their slots
	now = now.Add(2 * time.Minute)
	_, err = s.Open(context.Background(), testDoc("c"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestMemorySink_Unlimited(t *testing.T) {
	s := NewMemorySink("/d/", time.Minute, -1)
	for i := 0; i < 50; i++ {
		_, err := s.Open(context.Background(), testDoc(string(rune('a'+i%26))+strings.Repeat("x", i)))
		require.NoError(t, err)
	}
	assert.Equal(t, 50, s.Len())
}

func TestMemorySink_Remove(t *testing.T) {
	s := NewMemorySink("/d/", 0, 0)
	_, err := s.Open(context.Background(), testDoc("a"))
	require.NoError(t, err)
	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestMemorySink_RunStopsWithContext(t *testing.T) {
	s := NewMemorySink("/d/", time.Millisecond, 0)
	_, err := s.Open(context.Background(), testDoc("a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewFileSink(dir)

	h, err := s.Open(context.Background(), testDoc("c9abc"))
	require.NoError(t, err)
	assert.Equal(t, "file", h.Sink)
	assert.Equal(t, filepath.Join(dir, "contract-c9abc.html"), h.Location)

	data, err := os.ReadFile(h.Location)
	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html><p>c9abc</p>", string(data))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "contract-abc.html", FileName(&render.Document{Kind: "contract", ID: "abc"}))
	assert.Equal(t, "report_card-x1.html", FileName(&render.Document{Kind: "report_card", ID: "x1"}))
	assert.Equal(t, "document-ab.html", FileName(&render.Document{Kind: "../", ID: "a/b"}))
	assert.Equal(t, "document.html", FileName(&render.Document{}))
}

func TestBrowserSink_Launches(t *testing.T) {
	var target string
	s := &BrowserSink{
		Dir: t.TempDir(),
		Launch: func(_ context.Context, u string) error {
			target = u
			return nil
		},
	}
	h, err := s.Open(context.Background(), testDoc("b1"))
	require.NoError(t, err)
	assert.Equal(t, "browser", h.Sink)
	assert.True(t, strings.HasPrefix(target, "file://"))
	assert.True(t, strings.HasSuffix(target, "contract-b1.html"))
	assert.FileExists(t, h.Location)
}

func TestBrowserSink_PopupBlocked(t *testing.T) {
	s := &BrowserSink{
		Dir: t.TempDir(),
		Launch: func(context.Context, string) error {
			return errors.New("exec: \"xdg-open\": executable file not found in $PATH")
		},
	}
	_, err := s.Open(context.Background(), testDoc("b2"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePopupBlocked))
	assert.Contains(t, err.Error(), "allow pop-ups")
	assert.Contains(t, err.Error(), "xdg-open")
}

func TestLaunchCommand(t *testing.T) {
	tests := []struct {
		goos, env string
		name      string
		args      []string
	}{
		{"linux", "", "xdg-open", nil},
		{"darwin", "", "open", nil},
		{"windows", "", "rundll32", []string{"url.dll,FileProtocolHandler"}},
		{"linux", "firefox --new-window", "firefox", []string{"--new-window"}},
		{"plan9", "", "", nil},
	}
	for _, tt := range tests {
		name, args := launchCommand(tt.goos, tt.env)
		assert.Equal(t, tt.name, name, tt.goos)
		assert.Equal(t, tt.args, args, tt.goos)
	}
}

func TestChromeSink_Unavailable(t *testing.T) {
	s := NewChromeSink(chrome.Config{Path: "/nonexistent/chrome"}, layout.A4())
	s.Dir = t.TempDir()
	_, err := s.Open(context.Background(), testDoc("p1"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePrintUnsupported))
}

func TestCountPages_Invalid(t *testing.T) {
	_, err := CountPages(nil)
	assert.Error(t, err)
	_, err = CountPages([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "file:///tmp/a.html", fileURL("/tmp/a.html"))
	assert.Equal(t, "file:///tmp/a.html", fileURL("file:///tmp/a.html"))
}

func TestChromeSink_PrintReal(t *testing.T) {
	path := os.Getenv("CHROME_PATH")
	if path == "" {
		t.Skip("CHROME_PATH not set")
	}
	g := layout.A4()
	pipeline := render.NewPipeline(render.NewRenderer(g), nil, layout.NewMonospaceMeasurer(g, 0, 0))

	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("<p>Cláusula com texto suficiente para ocupar uma linha inteira da página.</p>")
	}
	doc, err := pipeline.Compose(context.Background(), render.Input{Kind: "contract", Template: sb.String(), Paginate: true})
	require.NoError(t, err)

	s := NewChromeSink(chrome.Config{Path: path}, g)
	s.Dir = t.TempDir()
	s.OutputDir = t.TempDir()
	res, err := s.PrintDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, doc.Pages, res.Pages)
	assert.FileExists(t, res.Path)
}
