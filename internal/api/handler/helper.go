// Package handler provides HTTP handlers for the API.
package handler

import (
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/printdesk/printdesk/internal/api/middleware"
	"github.com/printdesk/printdesk/internal/engine"
	"github.com/printdesk/printdesk/internal/model"
	"github.com/printdesk/printdesk/internal/store"
	"github.com/printdesk/printdesk/pkg/errors"
)

// maxIDLength bounds path identifiers forwarded to the school API
const maxIDLength = 64

// validateID checks an identifier before it becomes part of an upstream
// path. Returns true if the id is safe, false otherwise.
func validateID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	if strings.Contains(id, "..") {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// pathID reads and validates a path parameter, pushing a validation error
// when it is unusable
func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if !validateID(id) {
		abortWith(c, errors.ErrValidation(fmt.Sprintf("invalid %s", name)))
		return "", false
	}
	return id, true
}

// positiveInt parses a 1-based number
func positiveInt(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// bindOptionalJSON binds a JSON body when one was sent. An empty body
// leaves obj untouched.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.ErrValidation(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// parseLogQuery reads limit, offset, kind and status query parameters
func parseLogQuery(c *gin.Context) (model.RenderLogQuery, error) {
	q := model.RenderLogQuery{
		Kind:   c.Query("kind"),
		Status: model.RenderStatus(c.Query("status")),
		Limit:  store.DefaultListLimit,
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, errors.ErrValidation("limit must be a positive integer")
		}
		q.Limit = min(n, store.MaxListLimit)
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, errors.ErrValidation("offset must be a non-negative integer")
		}
		q.Offset = n
	}
	switch q.Status {
	case "", model.RenderStatusSuccess, model.RenderStatusFailed:
	default:
		return q, errors.ErrValidation(fmt.Sprintf("unknown status %q", q.Status))
	}
	return q, nil
}

// absoluteURL prefixes location with the request's scheme and host unless
// it is already absolute
func absoluteURL(c *gin.Context, location string) string {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return location
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + location
}

// abortWith pushes err for the ErrorHandler middleware and stops the chain
func abortWith(c *gin.Context, err error) {
	_ = c.Error(engine.AsAppError(err))
	c.Abort()
}

// jobFor builds an API render job carrying the caller's bearer token
func jobFor(c *gin.Context) engine.Job {
	return engine.Job{
		Source: model.RenderSourceAPI,
		Token:  middleware.Token(c),
	}
}
