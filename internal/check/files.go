package check

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/printdesk/printdesk/internal/config"
)

// FileCheckResult represents the result of a file check
type FileCheckResult struct {
	Path        string
	Exists      bool
	Created     bool
	Description string
	Error       error
}

// checkFiles checks the configuration file, offering to create it
func (c *Checker) checkFiles() error {
	result := c.checkFile()
	c.report.AddFileResult(result)
	return result.Error
}

// checkFile checks the configuration file and prompts for creation if missing
func (c *Checker) checkFile() FileCheckResult {
	result := FileCheckResult{
		Path:        c.configPath,
		Description: "PrintDesk configuration (server, school API, layout, logging)",
	}

	if fileExists(c.configPath) {
		result.Exists = true
		printFileStatus(c.configPath, true, false)
		return result
	}

	printFileStatus(c.configPath, false, false)

	confirm, err := c.confirm(c.configPath)
	if err != nil {
		result.Error = fmt.Errorf("failed to get user confirmation: %w", err)
		return result
	}
	if !confirm {
		// Defaults still apply
		return result
	}

	if err := config.CreateDefault(c.configPath); err != nil {
		result.Error = fmt.Errorf("failed to create file %s: %w", c.configPath, err)
		return result
	}

	result.Exists = true
	result.Created = true
	printFileCreated(c.configPath)
	return result
}

// printFileStatus prints the status of a file check
func printFileStatus(path string, exists bool, created bool) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if exists {
		green.Printf("  ✓ %s\n", path)
	} else if created {
		green.Printf("  ✓ %s (created)\n", path)
	} else {
		yellow.Printf("  ⚠ %s does not exist\n", path)
	}
}

// printFileCreated prints a message when a file is created
func printFileCreated(path string) {
	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created %s\n", path)
}
