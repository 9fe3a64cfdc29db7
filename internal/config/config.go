// Package config provides configuration management for the application.
// It supports YAML configuration files with environment variable overrides.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/chrome"
	"github.com/printdesk/printdesk/internal/documents"
	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/paginate"
	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/internal/sanitize"
	"github.com/printdesk/printdesk/internal/sink"
	"github.com/printdesk/printdesk/internal/store"
	"github.com/printdesk/printdesk/pkg/logger"
	"github.com/printdesk/printdesk/pkg/telemetry"
)

// Default configuration values
const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8095
	defaultUpstreamTimeout = 30 * time.Second
	defaultOutputDir       = "./output"
	defaultRenderLogPath   = "./data/printdesk.db"
	defaultOTLPEndpoint    = "localhost:4317"
	defaultPrometheusPort  = 0
)

// DefaultConfigPath is where the CLI looks for the configuration file
const DefaultConfigPath = "config/printdesk.yaml"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	Upstream  UpstreamConfig     `yaml:"upstream"`
	Layout    LayoutConfig       `yaml:"layout"`
	Chrome    chrome.Config      `yaml:"chrome"`
	Sanitizer SanitizerConfig    `yaml:"sanitizer"`
	Render    RenderConfig       `yaml:"render"`
	QR        documents.QRConfig `yaml:"qr"`
	RenderLog RenderLogConfig    `yaml:"render_log"`
	// Locale drives number, currency and date formatting (BCP 47)
	Locale    string             `yaml:"locale"`
	Logging   logger.Config      `yaml:"logging"`
	Telemetry telemetry.Config   `yaml:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
	// PublicURL prefixes document links; empty derives it from the request
	PublicURL   string   `yaml:"public_url"`
	CORSOrigins []string `yaml:"cors_origins"` // Allowed CORS origins whitelist
}

// UpstreamConfig points at the school REST API
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
	// Token is used when a request carries none (CLI use)
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// LayoutConfig holds page geometry and pagination settings
type LayoutConfig struct {
	Paper   string         `yaml:"paper"` // a4, letter, legal
	Margins layout.Margins `yaml:"margins"`
	// Measurer selects pagination: client (browser side), monospace or chrome
	Measurer      string        `yaml:"measurer"`
	PageLabel     string        `yaml:"page_label"`
	ClientTimeout time.Duration `yaml:"client_timeout"`
	CharWidth     float64       `yaml:"char_width"`
	LineHeight    float64       `yaml:"line_height"`
}

// SanitizerConfig selects the template sanitizer
type SanitizerConfig struct {
	Mode string `yaml:"mode"` // textual, strict
}

// RenderConfig holds document delivery settings
type RenderConfig struct {
	DocumentTTL  time.Duration `yaml:"document_ttl"`
	MaxDocuments int           `yaml:"max_documents"`
	OutputDir    string        `yaml:"output_dir"`
}

// RenderLogConfig holds render log persistence settings
type RenderLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:  defaultHost,
			Port:  defaultPort,
			Debug: false,
		},
		Upstream: UpstreamConfig{
			Timeout: defaultUpstreamTimeout,
		},
		Layout: LayoutConfig{
			Paper:         "a4",
			Margins:       layout.DefaultMargins,
			Measurer:      layout.MeasurerClient,
			PageLabel:     paginate.DefaultLabelFormat,
			ClientTimeout: render.DefaultClientTimeout,
			CharWidth:     layout.DefaultCharWidth,
			LineHeight:    layout.DefaultLineHeight,
		},
		Chrome: chrome.Config{
			Timeout: chrome.DefaultTimeout,
		},
		Sanitizer: SanitizerConfig{
			Mode: sanitize.ModeTextual,
		},
		Render: RenderConfig{
			DocumentTTL:  sink.DefaultDocumentTTL,
			MaxDocuments: sink.DefaultMaxDocuments,
			OutputDir:    defaultOutputDir,
		},
		QR: documents.QRConfig{
			Endpoint: documents.DefaultQREndpoint,
			Size:     documents.DefaultQRSize,
		},
		RenderLog: RenderLogConfig{
			Enabled:       true,
			Path:          defaultRenderLogPath,
			RetentionDays: store.DefaultRetentionDays,
		},
		Locale: consts.DefaultLocale,
		Logging: logger.Config{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    100, // Max 100MB per log file
			MaxAge:     7,   // Retain logs for 7 days
			MaxBackups: 5,   // Keep 5 backup files
			Compress:   false,
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			ServiceName: consts.ServiceName,
			OTLP: telemetry.OTLPConfig{
				Enabled:  false,
				Endpoint: defaultOTLPEndpoint,
				Insecure: true,
			},
			Prometheus: telemetry.PrometheusConfig{
				Enabled: false,
				Port:    defaultPrometheusPort,
			},
		},
	}
}

// Load loads configuration from a YAML file with environment variable
// expansion, then applies PRINTDESK_* overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to defaults plus
// environment overrides otherwise
func LoadOrDefault(path string) (*Config, error) {
	if path == "" || !Exists(path) {
		cfg := Default()
		ApplyEnvOverrides(cfg)
		return cfg, nil
	}
	return Load(path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values
// Only matches ${VAR_NAME} format (not $VAR_NAME) so literal dollar signs in
// templates and currency labels survive
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]

		// Support default values: ${VAR_NAME:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]

		if value := os.Getenv(varName); value != "" {
			return value
		}
		if len(parts) > 1 {
			return parts[1]
		}
		return ""
	})
}

// ApplyEnvOverrides applies environment variable overrides:
//   - PRINTDESK_API_URL, PRINTDESK_API_TOKEN
//   - CHROME_PATH
//   - PRINTDESK_SERVER_HOST, PRINTDESK_SERVER_PORT, PRINTDESK_SERVER_DEBUG
//   - PRINTDESK_DB_PATH
//   - PRINTDESK_LOG_LEVEL, PRINTDESK_LOG_FORMAT
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRINTDESK_API_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("PRINTDESK_API_TOKEN"); v != "" {
		cfg.Upstream.Token = v
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		cfg.Chrome.Path = v
	}

	if v := os.Getenv("PRINTDESK_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PRINTDESK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PRINTDESK_SERVER_DEBUG"); v != "" {
		cfg.Server.Debug = parseBool(v)
	}

	if v := os.Getenv("PRINTDESK_DB_PATH"); v != "" {
		cfg.RenderLog.Path = v
	}

	if v := os.Getenv("PRINTDESK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PRINTDESK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// parseBool parses a boolean string value
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Geometry resolves the configured paper and margins
func (c *LayoutConfig) Geometry() (layout.Geometry, error) {
	return layout.NewGeometry(c.Paper, c.Margins)
}
