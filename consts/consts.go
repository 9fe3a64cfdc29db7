// Package consts defines cross-module constants used throughout the application.
package consts

import (
	"sync"
	"time"
)

// ServiceName is the application service name
const ServiceName = "printdesk"

// Project information constants
const (
	// ProjectName is the display name of the project
	ProjectName = "PrintDesk"

	// DefaultLocale is the locale used for formatted values and page labels
	DefaultLocale = "pt-BR"
)

// Document kinds produced by the renderer
const (
	KindCustom     = "custom"
	KindContract   = "contract"
	KindBooklet    = "booklet"
	KindStatement  = "statement"
	KindGradebook  = "gradebook"
	KindReportCard = "report_card"
)

// Build information - set via ldflags during build or programmatically
var (
	// Version is the application version
	Version = "dev"

	// BuildTime is the build timestamp
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

var (
	startedAt   time.Time
	startedOnce sync.Once
)

// SetStartedAt records the server start time (can only be called once)
func SetStartedAt(t time.Time) {
	startedOnce.Do(func() {
		startedAt = t
	})
}

// GetStartedAt returns the server start time
func GetStartedAt() time.Time {
	return startedAt
}

// GetUptime returns the duration since server started
func GetUptime() time.Duration {
	if startedAt.IsZero() {
		return 0
	}
	return time.Since(startedAt)
}
