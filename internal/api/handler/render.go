package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printdesk/printdesk/internal/documents"
	"github.com/printdesk/printdesk/internal/engine"
	"github.com/printdesk/printdesk/internal/placeholder"
	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/internal/sink"
	"github.com/printdesk/printdesk/pkg/errors"
)

// RenderHandler handles document rendering requests
type RenderHandler struct {
	engine *engine.Engine
	sink   *sink.MemorySink
}

// NewRenderHandler creates a new render handler. Documents are opened in s.
func NewRenderHandler(e *engine.Engine, s *sink.MemorySink) *RenderHandler {
	return &RenderHandler{engine: e, sink: s}
}

// RenderRequest is the body of POST /api/v1/render
type RenderRequest struct {
	Title    string                `json:"title"`
	Template string                `json:"template"`
	Fields   *placeholder.FieldMap `json:"fields"`
	Styles   string                `json:"styles"`
	Paginate bool                  `json:"paginate"`
	// AutoPrint opens the print dialog once the document has loaded
	AutoPrint bool `json:"auto_print"`
}

// ContractRequest is the optional body of the contract document endpoint
type ContractRequest struct {
	Template        string `json:"template"`
	IncludeSchedule bool   `json:"include_schedule"`
}

// DocumentResponse describes an opened document
type DocumentResponse struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Pages    int      `json:"pages"`
	Degraded bool     `json:"degraded"`
	Missing  []string `json:"missing"`
}

// Render handles POST /api/v1/render
func (h *RenderHandler) Render(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errors.ErrValidation("invalid request body: "+err.Error()))
		return
	}
	if req.Fields == nil {
		req.Fields = placeholder.NewFieldMap()
	}

	res, err := h.engine.Render(c.Request.Context(), h.job(c), render.Input{
		Title:     req.Title,
		Template:  req.Template,
		Fields:    req.Fields,
		Styles:    req.Styles,
		Paginate:  req.Paginate,
		AutoPrint: req.AutoPrint,
	})
	h.respond(c, res, err)
}

// Contract handles POST /api/v1/contracts/:id/document
func (h *RenderHandler) Contract(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ContractRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		abortWith(c, err)
		return
	}

	res, err := h.engine.Contract(c.Request.Context(), h.job(c), id, documents.ContractOptions{
		Template:        req.Template,
		IncludeSchedule: req.IncludeSchedule,
	})
	h.respond(c, res, err)
}

// Booklet handles POST /api/v1/contracts/:id/installments/:n/booklet
func (h *RenderHandler) Booklet(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, ok := positiveInt(c.Param("n"))
	if !ok {
		abortWith(c, errors.ErrValidation("installment number must be a positive integer"))
		return
	}

	res, err := h.engine.Booklet(c.Request.Context(), h.job(c), id, n)
	h.respond(c, res, err)
}

// Statement handles POST /api/v1/guardians/:id/statement
func (h *RenderHandler) Statement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.engine.Statement(c.Request.Context(), h.job(c), id)
	h.respond(c, res, err)
}

// Gradebook handles POST /api/v1/gradebooks/:id/report
func (h *RenderHandler) Gradebook(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.engine.Gradebook(c.Request.Context(), h.job(c), id)
	h.respond(c, res, err)
}

// ReportCard handles POST /api/v1/students/:id/report-card?year=
func (h *RenderHandler) ReportCard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	year := 0
	if raw := c.Query("year"); raw != "" {
		y, ok := positiveInt(raw)
		if !ok {
			abortWith(c, errors.ErrValidation("year must be a positive integer"))
			return
		}
		year = y
	}

	res, err := h.engine.ReportCard(c.Request.Context(), h.job(c), id, year)
	h.respond(c, res, err)
}

func (h *RenderHandler) job(c *gin.Context) engine.Job {
	job := jobFor(c)
	job.Sink = h.sink
	return job
}

func (h *RenderHandler) respond(c *gin.Context, res *engine.Result, err error) {
	if err != nil {
		abortWith(c, err)
		return
	}

	doc := res.Document
	missing := doc.Missing
	if missing == nil {
		missing = []string{}
	}
	location := ""
	if res.Handle != nil {
		location = absoluteURL(c, res.Handle.Location)
	}
	c.JSON(http.StatusCreated, DocumentResponse{
		ID:       doc.ID,
		Kind:     doc.Kind,
		Title:    doc.Title,
		URL:      location,
		Pages:    doc.Pages,
		Degraded: doc.Degraded,
		Missing:  missing,
	})
}
