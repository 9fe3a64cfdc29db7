package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/sanitize"
	"github.com/printdesk/printdesk/pkg/errors"
)

// Validate checks the configuration and returns the first problem found
func (c *Config) Validate() *errors.AppError {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if c.Server.PublicURL != "" {
		if err := validateURL(c.Server.PublicURL); err != nil {
			return invalid("server.public_url: %v", err)
		}
	}

	if c.Upstream.BaseURL != "" {
		if err := validateURL(c.Upstream.BaseURL); err != nil {
			return invalid("upstream.base_url: %v", err)
		}
	}
	if c.Upstream.Timeout < 0 {
		return invalid("upstream.timeout cannot be negative")
	}

	if err := c.Layout.Validate(); err != nil {
		return err
	}

	if _, err := sanitize.New(c.Sanitizer.Mode); err != nil {
		return invalid("sanitizer.mode: %v", err)
	}

	if c.Chrome.Timeout < 0 {
		return invalid("chrome.timeout cannot be negative")
	}
	if c.Render.DocumentTTL < 0 {
		return invalid("render.document_ttl cannot be negative")
	}
	if c.QR.Size < 0 {
		return invalid("qr.size cannot be negative")
	}
	if c.QR.Endpoint != "" {
		if err := validateURL(c.QR.Endpoint); err != nil {
			return invalid("qr.endpoint: %v", err)
		}
	}
	if c.RenderLog.RetentionDays < 0 {
		return invalid("render_log.retention_days cannot be negative")
	}
	if _, err := ParseLanguage(c.Locale); err != nil {
		return invalid("locale: %v", err)
	}
	return nil
}

// Validate checks the geometry, measurer and page label
func (l *LayoutConfig) Validate() *errors.AppError {
	if _, err := l.Geometry(); err != nil {
		return invalid("layout: %v", err)
	}
	switch l.Measurer {
	case "", layout.MeasurerClient, layout.MeasurerMonospace, layout.MeasurerChrome:
	default:
		return invalid("layout.measurer must be one of %s, %s or %s, got %q",
			layout.MeasurerClient, layout.MeasurerMonospace, layout.MeasurerChrome, l.Measurer)
	}
	if l.PageLabel != "" && strings.Count(l.PageLabel, "%d") != 2 {
		return invalid("layout.page_label must contain two %%d verbs (page, total), got %q", l.PageLabel)
	}
	if l.ClientTimeout < 0 {
		return invalid("layout.client_timeout cannot be negative")
	}
	if l.CharWidth < 0 || l.LineHeight < 0 {
		return invalid("layout.char_width and layout.line_height cannot be negative")
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}

func invalid(format string, args ...any) *errors.AppError {
	return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...))
}
