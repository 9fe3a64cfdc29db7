// Package main is the entry point for the PrintDesk application.
// PrintDesk renders school documents into paginated, printable HTML and PDF.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/api/router"
	"github.com/printdesk/printdesk/internal/check"
	"github.com/printdesk/printdesk/internal/config"
	"github.com/printdesk/printdesk/internal/database"
	"github.com/printdesk/printdesk/internal/engine"
	"github.com/printdesk/printdesk/internal/server"
	"github.com/printdesk/printdesk/internal/sink"
	"github.com/printdesk/printdesk/internal/store"
	"github.com/printdesk/printdesk/pkg/errors"
	"github.com/printdesk/printdesk/pkg/logger"
	"github.com/printdesk/printdesk/pkg/telemetry"
)

// Build information - set via ldflags during build
// These variables are linked to consts package for global access
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// init synchronizes build info to consts package for global access
func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit
}

// configPath holds the path to the configuration file
var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "printdesk",
	Short: "PrintDesk - school document rendering and pagination",
	Long: `PrintDesk turns school API data and HTML templates into paginated,
printable documents: contracts, payment booklets, statements, gradebooks
and report cards.`,
	SilenceUsage: true,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PrintDesk server",
	Long: `Start the HTTP server that renders documents for the school console.

Rendered documents are kept in memory and served at /documents/:id.
Run 'printdesk check' first to create and validate the configuration.`,
	Run: runServe,
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the configuration and environment",
	Long: `Interactively check the configuration file, Chrome and the school API.

Use --init to write the default configuration without prompting:
  printdesk check --init`,
	Run: runCheck,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("PrintDesk %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
	},
}

func init() {
	// Disable auto-generated completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		fmt.Sprintf("config file path (default: %s)", config.DefaultConfigPath))

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
	addDocumentCommands(rootCmd)

	// Serve command flags
	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
	serveCmd.Flags().Bool("debug", false, "enable debug mode")

	// Check command flags
	checkCmd.Flags().Bool("init", false, "write the default configuration file and exit")
	checkCmd.Flags().Bool("force", false, "with --init, overwrite an existing file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe starts the PrintDesk server
func runServe(cmd *cobra.Command, args []string) {
	// Run non-interactive basic check
	checker := check.NewChecker(resolvedConfigPath())
	result := checker.RunNonInteractive()
	if !result.Success {
		check.PrintCheckResult(result)
		os.Exit(errors.ExitCodeConfigValidation)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(os.Stderr, "[WARNING] %s\n", warn)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(os.Stderr)
	}

	// Record server start time
	consts.SetStartedAt(time.Now())

	cfg := mustLoadConfig(func(cfg *config.Config) {
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Server.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			cfg.Server.Debug = true
			cfg.Logging.Level = "debug"
			cfg.Logging.Format = "text"
		}
	})

	// Initialize logger
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting PrintDesk", zap.String("version", Version))

	// Initialize telemetry (OpenTelemetry traces and metrics)
	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}()

	logs, closeLogs := openRenderLog(cfg, true)
	defer closeLogs()

	eng, closeEngine, err := newEngine(cfg, logs)
	if err != nil {
		logger.Fatal("Failed to create render engine", zap.Error(err))
	}
	defer closeEngine()

	deps := router.Deps{
		Engine:  eng,
		Sink:    sink.NewMemorySink(documentBaseURL(cfg), cfg.Render.DocumentTTL, cfg.Render.MaxDocuments),
		Logs:    logs,
		Metrics: tel.MetricsHandler(),
	}
	if printer := newChromeSink(cfg); printer != nil {
		deps.Printer = printer
	} else {
		logger.Warn("Chrome not found, PDF export is disabled")
	}

	srv := server.New(cfg, deps)
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("PrintDesk server is running",
		zap.String("address", cfg.Server.Address()),
		zap.Bool("school_api", eng.HasClient()),
		zap.Stringer("pagination", eng.Pipeline().PaginationMode()),
	)

	// Log access URLs for user convenience
	port := cfg.Server.Port
	logger.Info(fmt.Sprintf("  Local:   http://localhost:%d/health", port))
	if lanIP := getLocalIP(); lanIP != "" {
		logger.Info(fmt.Sprintf("  Network: http://%s:%d/health", lanIP, port))
	}

	srv.WaitForShutdown()

	logger.Info("PrintDesk stopped")
}

// runCheck runs the interactive environment check or writes the default config
func runCheck(cmd *cobra.Command, args []string) {
	checker := check.NewChecker(resolvedConfigPath())

	if initOnly, _ := cmd.Flags().GetBool("init"); initOnly {
		force, _ := cmd.Flags().GetBool("force")
		if _, err := checker.Init(force); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write configuration: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := checker.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Environment check failed: %v\n", err)
		os.Exit(errors.ExitCodeConfigValidation)
	}
}

// resolvedConfigPath returns the --config flag or the default path
func resolvedConfigPath() string {
	if configPath == "" {
		return config.DefaultConfigPath
	}
	return configPath
}

// mustLoadConfig loads and validates the configuration, applying overrides
// before validation. It exits with ExitCodeConfigValidation on failure.
func mustLoadConfig(overrides ...func(*config.Config)) *config.Config {
	path := resolvedConfigPath()
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration %s: %v\n", path, err)
		os.Exit(errors.ExitCodeConfigValidation)
	}
	for _, o := range overrides {
		o(cfg)
	}
	if vErr := cfg.Validate(); vErr != nil {
		fmt.Fprintf(os.Stderr, "\n[ERROR] Configuration validation failed\n")
		fmt.Fprintf(os.Stderr, "Error Code: %s\n", vErr.Code)
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", vErr.Message)
		fmt.Fprintf(os.Stderr, "Run 'printdesk check' for a full report.\n")
		os.Exit(errors.ExitCodeConfigValidation)
	}
	return cfg
}

// openRenderLog opens the render log database when enabled. With cleanup set
// the retention service runs until the returned closer is called.
func openRenderLog(cfg *config.Config, cleanup bool) (store.RenderLogStore, func()) {
	if !cfg.RenderLog.Enabled {
		return nil, func() {}
	}
	if err := database.Init(cfg.RenderLog.Path); err != nil {
		// Rendering works without the log
		logger.Warn("Failed to open render log, continuing without it",
			zap.String("path", cfg.RenderLog.Path), zap.Error(err))
		return nil, func() {}
	}

	logs := store.NewStore(database.Get()).RenderLog()
	closers := []func(){func() { _ = database.Close() }}

	if cleanup {
		svc := store.NewCleanupService(logs, cfg.RenderLog.RetentionDays)
		if err := svc.Start(); err != nil {
			logger.Warn("Failed to start render log cleanup service", zap.Error(err))
		} else {
			closers = append([]func(){svc.Stop}, closers...)
		}
	}

	return logs, func() {
		for _, c := range closers {
			c()
		}
	}
}

// newEngine wires the pipeline, document builder and school API client
func newEngine(cfg *config.Config, logs store.RenderLogStore) (*engine.Engine, func(), error) {
	p, closePipeline, err := engine.NewPipeline(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := engine.NewClient(cfg)
	if err != nil {
		closePipeline()
		return nil, nil, err
	}

	opts := []engine.Option{engine.WithClient(client), engine.WithDefaultToken(cfg.Upstream.Token)}
	if logs != nil {
		opts = append(opts, engine.WithRenderLog(logs))
	}
	return engine.New(p, engine.NewBuilder(cfg), opts...), closePipeline, nil
}

// newChromeSink returns a PDF printer when Chrome can be found
func newChromeSink(cfg *config.Config) *sink.ChromeSink {
	if !cfg.Chrome.Available() {
		return nil
	}
	g, err := cfg.Layout.Geometry()
	if err != nil {
		return nil
	}
	s := sink.NewChromeSink(cfg.Chrome, g)
	if cfg.Layout.ClientTimeout > 0 {
		s.ReadyTimeout = 2 * cfg.Layout.ClientTimeout
	}
	return s
}

// documentBaseURL prefixes document IDs in the links the API returns
func documentBaseURL(cfg *config.Config) string {
	return strings.TrimRight(cfg.Server.PublicURL, "/") + "/documents/"
}

// getLocalIP returns the first non-loopback IPv4 address
func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}
