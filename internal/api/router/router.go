// Package router sets up the API routes for the application.
// This is used in server mode; the CLI renders without the API layer.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/api/handler"
	"github.com/printdesk/printdesk/internal/api/middleware"
	"github.com/printdesk/printdesk/internal/config"
	"github.com/printdesk/printdesk/internal/engine"
	"github.com/printdesk/printdesk/internal/sink"
	"github.com/printdesk/printdesk/internal/store"
)

// Deps are the components the routes are served by
type Deps struct {
	Engine *engine.Engine
	// Sink holds opened documents for GET /documents/:id
	Sink *sink.MemorySink
	// Printer enables GET /documents/:id/pdf when set
	Printer handler.DocumentPrinter
	// Logs enables the render log routes when set
	Logs store.RenderLogStore
	// Metrics is mounted at /metrics when set
	Metrics http.Handler
}

// Setup configures all API routes
func Setup(r *gin.Engine, d Deps, cfg *config.Config) {
	// Apply global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(&middleware.LoggerConfig{
		AccessLog: cfg.Logging.AccessLog,
	}))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.ErrorHandler(cfg.Server.Debug))
	r.Use(middleware.Metrics())

	// Apply OpenTelemetry tracing middleware
	r.Use(otelgin.Middleware(consts.ServiceName))

	// Health check endpoint (public)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"version":        consts.Version,
			"uptime_seconds": int64(consts.GetUptime().Seconds()),
			"open_documents": d.Sink.Len(),
			"school_api":     d.Engine.HasClient(),
			"pdf":            d.Printer != nil,
		})
	})

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	// ============== Documents (public by unguessable id) ==============

	documentHandler := handler.NewDocumentHandler(d.Sink, d.Printer)
	documents := r.Group("/documents")
	{
		documents.GET("/:id", documentHandler.Show)
		documents.GET("/:id/pdf", documentHandler.PDF)
	}

	// ============== API routes (bearer token forwarded upstream) ==============

	renderHandler := handler.NewRenderHandler(d.Engine, d.Sink)
	renderLogHandler := handler.NewRenderLogHandler(d.Logs)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.BearerToken())
	{
		v1.POST("/render", renderHandler.Render)

		v1.POST("/contracts/:id/document", renderHandler.Contract)
		v1.POST("/contracts/:id/installments/:n/booklet", renderHandler.Booklet)
		v1.POST("/guardians/:id/statement", renderHandler.Statement)
		v1.POST("/gradebooks/:id/report", renderHandler.Gradebook)
		v1.POST("/students/:id/report-card", renderHandler.ReportCard)

		v1.GET("/render-logs", renderLogHandler.List)
		v1.GET("/render-logs/:document_id", renderLogHandler.Get)
	}
}
