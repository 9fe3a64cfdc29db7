package check

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/printdesk/printdesk/internal/config"
	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/upstream"
)

// probeTimeout bounds the school API reachability probe
const probeTimeout = 5 * time.Second

// ValidationResult represents the result of a config validation
type ValidationResult struct {
	Path     string
	Valid    bool
	Error    error
	Warnings []string
}

// EnvironmentResult is the outcome of one environment probe
type EnvironmentResult struct {
	Name   string
	OK     bool
	Detail string
	// Required failures block rendering with the current configuration
	Required bool
}

// validateConfig loads and validates the configuration, recording the result
func (c *Checker) validateConfig() (*config.Config, error) {
	cfg, result := c.loadConfig()
	c.report.AddValidationResult(result)
	printValidationResult(result)
	if !result.Valid {
		return nil, result.Error
	}
	return cfg, nil
}

// loadConfig loads the configuration the way the commands do
func (c *Checker) loadConfig() (*config.Config, ValidationResult) {
	result := ValidationResult{Path: c.configPath}

	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		result.Error = fmt.Errorf("format error: %v", err)
		return nil, result
	}
	if vErr := cfg.Validate(); vErr != nil {
		result.Error = vErr
		return nil, result
	}

	result.Valid = true
	if !fileExists(c.configPath) {
		result.Warnings = append(result.Warnings, "file does not exist, defaults apply")
	}
	if cfg.Upstream.BaseURL == "" {
		result.Warnings = append(result.Warnings,
			"upstream.base_url is empty: only custom templates can be rendered")
	}
	return cfg, result
}

// checkEnvironment runs the environment probes and prints them
func (c *Checker) checkEnvironment(cfg *config.Config, probeUpstream bool) {
	for _, r := range c.environmentResults(cfg, probeUpstream) {
		c.report.AddEnvironmentResult(r)
		printEnvironmentResult(r)
	}
}

// environmentResults probes Chrome, the render log location and optionally
// the school API
func (c *Checker) environmentResults(cfg *config.Config, probeUpstream bool) []EnvironmentResult {
	results := []EnvironmentResult{checkChrome(cfg)}
	if cfg.RenderLog.Enabled {
		results = append(results, checkRenderLog(cfg))
	}
	if probeUpstream && cfg.Upstream.BaseURL != "" {
		results = append(results, checkUpstream(cfg))
	}
	return results
}

// checkChrome reports whether PDF export and Chrome measuring can work.
// Chrome is required only when it is the configured measurer.
func checkChrome(cfg *config.Config) EnvironmentResult {
	result := EnvironmentResult{
		Name:     "Chrome",
		Required: cfg.Layout.Measurer == layout.MeasurerChrome,
	}
	if cfg.Chrome.Available() {
		result.OK = true
		result.Detail = "available; PDF export enabled"
		return result
	}
	result.Detail = "not found; set chrome.path or CHROME_PATH to enable PDF export"
	if result.Required {
		result.Detail = "not found but layout.measurer is chrome; set chrome.path or CHROME_PATH"
	}
	return result
}

// checkRenderLog reports where the render log is stored
func checkRenderLog(cfg *config.Config) EnvironmentResult {
	result := EnvironmentResult{Name: "Render log", OK: true}
	dir := renderLogDir(cfg)
	if dirExists(dir) {
		result.Detail = cfg.RenderLog.Path
	} else {
		result.Detail = fmt.Sprintf("%s (directory %s will be created)", cfg.RenderLog.Path, dir)
	}
	return result
}

// checkUpstream calls GET /school. Any HTTP response proves the API is
// reachable; a rejected token is reported as a warning.
func checkUpstream(cfg *config.Config) EnvironmentResult {
	result := EnvironmentResult{Name: "School API"}

	client, err := upstream.New(cfg.Upstream.BaseURL,
		upstream.WithTimeout(probeTimeout),
		upstream.WithDefaultToken(cfg.Upstream.Token),
	)
	if err != nil {
		result.Detail = err.Error()
		return result
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	school, err := client.School(ctx, "")
	var upErr *upstream.UpstreamError
	switch {
	case err == nil:
		result.OK = true
		result.Detail = fmt.Sprintf("%s (%s)", cfg.Upstream.BaseURL, school.Name)
	case stderrors.As(err, &upErr):
		result.Detail = fmt.Sprintf("%s responded %d: %s", cfg.Upstream.BaseURL, upErr.Status, upErr.Message)
	default:
		result.Detail = fmt.Sprintf("%s: %v", cfg.Upstream.BaseURL, err)
	}
	return result
}

// printValidationResult prints a single validation result
func printValidationResult(result ValidationResult) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	if result.Valid {
		green.Printf("  ✓ %s\n", result.Path)
	} else {
		red.Printf("  ✗ %s: %v\n", result.Path, result.Error)
	}

	for _, warning := range result.Warnings {
		yellow.Printf("    └─ %s\n", warning)
	}
}

// printEnvironmentResult prints a single environment probe
func printEnvironmentResult(result EnvironmentResult) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	switch {
	case result.OK:
		green.Printf("  ✓ %s: %s\n", result.Name, result.Detail)
	case result.Required:
		red.Printf("  ✗ %s: %s\n", result.Name, result.Detail)
	default:
		yellow.Printf("  ⚠ %s: %s\n", result.Name, result.Detail)
	}
}
