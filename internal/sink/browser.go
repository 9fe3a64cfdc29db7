package sink

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/pkg/logger"
	"github.com/printdesk/printdesk/pkg/telemetry"
)

// Launcher opens target in the user's browser
type Launcher func(ctx context.Context, target string) error

// BrowserSink writes the document to a temporary file and opens it in the
// desktop browser, the stand-in for a new window.
type BrowserSink struct {
	Dir    string
	Launch Launcher
}

// NewBrowserSink creates a sink using the platform launcher
func NewBrowserSink() *BrowserSink {
	return &BrowserSink{
		Dir:    filepath.Join(os.TempDir(), consts.ServiceName),
		Launch: SystemLauncher,
	}
}

// Name implements DocumentSink.
func (s *BrowserSink) Name() string { return "browser" }

// Open implements DocumentSink. A launch failure is reported as PopupBlocked.
func (s *BrowserSink) Open(ctx context.Context, doc *render.Document) (*Handle, error) {
	path, err := writeDocument(s.Dir, doc)
	if err != nil {
		telemetry.GetMetrics().RecordSinkOpen(ctx, s.Name(), false)
		return nil, err
	}

	launch := s.Launch
	if launch == nil {
		launch = SystemLauncher
	}
	if err := launch(ctx, "file://"+filepath.ToSlash(path)); err != nil {
		telemetry.GetMetrics().RecordSinkOpen(ctx, s.Name(), false)
		logger.Warn("Browser window could not be opened",
			zap.String(logger.FieldDocumentID, doc.ID),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, PopupBlocked(err)
	}

	telemetry.GetMetrics().RecordSinkOpen(ctx, s.Name(), true)
	return &Handle{ID: doc.ID, Location: path, Sink: s.Name(), doc: doc}, nil
}

// SystemLauncher opens target with $BROWSER, or the platform opener
// (xdg-open, open, rundll32).
func SystemLauncher(ctx context.Context, target string) error {
	name, args := launchCommand(runtime.GOOS, os.Getenv("BROWSER"))
	if name == "" {
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// The opener outlives the request that triggered it.
	cmd := exec.Command(name, append(args, target)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func launchCommand(goos, browserEnv string) (string, []string) {
	if fields := strings.Fields(browserEnv); len(fields) > 0 {
		return fields[0], fields[1:]
	}
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", nil
	default:
		return "", nil
	}
}
