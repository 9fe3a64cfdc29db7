// Package check provides interactive environment checking and initialization.
// It helps users set up their local PrintDesk configuration properly.
package check

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/printdesk/printdesk/internal/config"
)

// CheckResult represents the result of a non-interactive environment check
type CheckResult struct {
	// Success indicates whether all required checks passed
	Success bool
	// Errors contains critical errors that prevent rendering
	Errors []string
	// Warnings contains non-critical issues that don't block startup
	Warnings []string
	// Suggestions contains helpful tips for fixing issues
	Suggestions []string
}

// Checker handles environment checking and initialization
type Checker struct {
	// configPath is the configuration file being checked
	configPath string
	// report collects check results for final output
	report *Report
	// theme for consistent styling
	theme *huh.Theme
	// confirm asks before a file is created
	confirm func(path string) (bool, error)
}

// NewChecker creates a new environment checker for the configuration at
// configPath; empty uses config.DefaultConfigPath
func NewChecker(configPath string) *Checker {
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}
	c := &Checker{
		configPath: configPath,
		report:     NewReport(),
		theme:      huh.ThemeCharm(),
	}
	c.confirm = c.confirmCreate
	return c
}

// ConfigPath returns the path of the configuration file being checked
func (c *Checker) ConfigPath() string {
	return c.configPath
}

// Report returns the collected results
func (c *Checker) Report() *Report {
	return c.report
}

// Run executes the full interactive environment check
func (c *Checker) Run() error {
	c.printHeader()

	// Step 1: Check and create the configuration file
	fmt.Println()
	printSection("Checking configuration file")
	if err := c.checkFiles(); err != nil {
		return fmt.Errorf("file check failed: %w", err)
	}

	// Step 2: Validate the configuration
	fmt.Println()
	printSection("Validating configuration")
	cfg, err := c.validateConfig()
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Step 3: Probe Chrome, the school API and the render log
	fmt.Println()
	printSection("Checking environment")
	c.checkEnvironment(cfg, true)

	fmt.Println()
	c.report.Print()
	return nil
}

// Init writes the default configuration file without prompting. An existing
// file is kept unless force is set. It reports whether a file was written.
func (c *Checker) Init(force bool) (bool, error) {
	if fileExists(c.configPath) && !force {
		printFileStatus(c.configPath, true, false)
		return false, nil
	}
	if err := config.CreateDefault(c.configPath); err != nil {
		return false, err
	}
	printFileCreated(c.configPath)
	return true, nil
}

// printHeader prints the welcome header
func (c *Checker) printHeader() {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	fmt.Println(titleStyle.Render("🔍 PrintDesk Environment Check"))
}

// printSection prints a section header
func printSection(title string) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15"))
	fmt.Println(style.Render(title + "..."))
}

// confirmCreate asks user to confirm file creation
func (c *Checker) confirmCreate(path string) (bool, error) {
	var confirm bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Create %s with the default settings?", path)).
			Affirmative("Yes").
			Negative("No").
			Value(&confirm),
	)).WithTheme(c.theme).Run()
	if err != nil {
		return false, err
	}
	return confirm, nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// dirExists checks if a directory exists
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// RunNonInteractive performs a non-interactive environment check.
// Unlike Run(), this method does not prompt for user input, does not create
// files and does not call the school API.
func (c *Checker) RunNonInteractive() *CheckResult {
	result := &CheckResult{
		Success:     true,
		Errors:      make([]string, 0),
		Warnings:    make([]string, 0),
		Suggestions: make([]string, 0),
	}

	// A missing file is not fatal: defaults plus environment overrides apply
	if !fileExists(c.configPath) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Configuration file not found: %s (using defaults)", c.configPath))
		result.Suggestions = append(result.Suggestions,
			"Run 'printdesk check --init' to create it")
	}

	cfg, vr := c.loadConfig()
	if !vr.Valid {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid %s: %v", c.configPath, vr.Error))
		result.Suggestions = append(result.Suggestions,
			"Run 'printdesk check' for an interactive report")
		return result
	}

	for _, env := range c.environmentResults(cfg, false) {
		switch {
		case env.OK:
		case env.Required:
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", env.Name, env.Detail))
		default:
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", env.Name, env.Detail))
		}
	}
	return result
}

// PrintCheckResult prints the check result in a formatted way
func PrintCheckResult(result *CheckResult) {
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	if len(result.Errors) > 0 {
		fmt.Println()
		red.Println("[ERROR] Environment check failed")
		fmt.Println()
		for _, err := range result.Errors {
			red.Printf("  ✗ %s\n", err)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Println()
		yellow.Println("[WARNING] Configuration warnings:")
		fmt.Println()
		for _, warn := range result.Warnings {
			yellow.Printf("  ⚠ %s\n", warn)
		}
	}

	if len(result.Suggestions) > 0 {
		cyan.Println("\nTo fix these issues:")
		for _, suggestion := range result.Suggestions {
			fmt.Printf("  → %s\n", suggestion)
		}
	}

	fmt.Println()
}

// renderLogDir is the directory holding the render log database
func renderLogDir(cfg *config.Config) string {
	return filepath.Dir(cfg.RenderLog.Path)
}
