package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/printdesk/printdesk/internal/model"
	"github.com/printdesk/printdesk/internal/store"
	"github.com/printdesk/printdesk/pkg/errors"
)

// RenderLogHandler lists render log entries
type RenderLogHandler struct {
	logs store.RenderLogStore
}

// NewRenderLogHandler creates a render log handler. A nil store reports
// the log as disabled.
func NewRenderLogHandler(logs store.RenderLogStore) *RenderLogHandler {
	return &RenderLogHandler{logs: logs}
}

// RenderLogListResponse is a page of render log entries
type RenderLogListResponse struct {
	Items  []model.RenderLog `json:"items"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// List handles GET /api/v1/render-logs
func (h *RenderLogHandler) List(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	q, err := parseLogQuery(c)
	if err != nil {
		abortWith(c, err)
		return
	}

	items, total, err := h.logs.List(q)
	if err != nil {
		abortWith(c, errors.Wrap(errors.ErrCodeDBQuery, "failed to list render logs", err))
		return
	}
	if items == nil {
		items = []model.RenderLog{}
	}
	c.JSON(http.StatusOK, RenderLogListResponse{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset})
}

// Get handles GET /api/v1/render-logs/:document_id
func (h *RenderLogHandler) Get(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	id, ok := pathID(c, "document_id")
	if !ok {
		return
	}

	entry, err := h.logs.GetByDocumentID(id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			abortWith(c, errors.ErrNotFound("render log"))
			return
		}
		abortWith(c, errors.Wrap(errors.ErrCodeDBQuery, "failed to get render log", err))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *RenderLogHandler) enabled(c *gin.Context) bool {
	if h.logs == nil {
		abortWith(c, errors.New(errors.ErrCodeNotFound, "render log is disabled; set render_log.enabled"))
		return false
	}
	return true
}
