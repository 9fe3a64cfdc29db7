// Package chrome starts headless Chrome instances for measuring and printing
// documents.
package chrome

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/printdesk/printdesk/pkg/logger"
)

// DefaultTimeout bounds a single browser operation
const DefaultTimeout = 60 * time.Second

// Config selects the browser binary and launch flags
type Config struct {
	// Path to the Chrome or Chromium binary. Empty uses CHROME_PATH, then the
	// binaries chromedp knows about.
	Path string `yaml:"path"`
	// Timeout bounds a single measure or print operation
	Timeout time.Duration `yaml:"timeout"`
	// Flags are extra command line switches, e.g. {"lang": "pt-BR"}
	Flags map[string]any `yaml:"flags"`
}

// candidates are probed by Available when no path is configured
var candidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

func (c Config) execPath() string {
	if c.Path != "" {
		return c.Path
	}
	return os.Getenv("CHROME_PATH")
}

// Available reports whether a browser binary can be located.
func (c Config) Available() bool {
	if p := c.execPath(); p != "" {
		_, err := os.Stat(p)
		return err == nil
	}
	for _, name := range candidates {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c Config) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("headless", true),
		chromedp.Flag("allow-file-access-from-files", true),
		// Slow CI machines need more than the 20s default
		chromedp.WSURLReadTimeout(60*time.Second),
	)
	for name, value := range c.Flags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if p := c.execPath(); p != "" {
		opts = append(opts, chromedp.ExecPath(p))
	}
	return opts
}

// Start launches a browser with one tab bound to the returned context.
// The cancel function closes the tab and terminates the browser process.
// No deadline is applied; see WithTimeout for per-operation bounds.
func Start(parent context.Context, cfg Config) (context.Context, context.CancelFunc, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, cfg.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf("chromedp: "+format, args...))
		}),
	)

	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// Run with no actions forces the browser to start so launch failures
	// surface here rather than on first use.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		logger.Warn("Failed to start headless Chrome", zap.String("path", cfg.execPath()), zap.Error(err))
		return nil, nil, fmt.Errorf("start chrome: %w", err)
	}
	logger.Debug("Headless Chrome started", zap.String("path", cfg.execPath()))
	return tabCtx, cancel, nil
}

// WithTimeout derives a per-operation context from a tab context.
func WithTimeout(tabCtx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(tabCtx, cfg.timeout())
}
