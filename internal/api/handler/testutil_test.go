package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printdesk/printdesk/internal/api/middleware"
)

// newTestRouter returns a gin engine with the recovery and error middleware
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.ErrorHandler(false))
	return r
}

// newJSONRequest encodes body as JSON when it is not nil
func newJSONRequest(method, url string, body any) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, url, nil)
	}
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// assertJSONFields checks the status and that every key in want has the
// given value. Other keys are ignored.
func assertJSONFields(t *testing.T, w *httptest.ResponseRecorder, status int, want map[string]any) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	body := decodeJSON(t, w)
	for k, v := range want {
		assert.Equal(t, v, body[k], "field %s", k)
	}
}

// assertAPIError checks the status and the code/message error envelope
func assertAPIError(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	body := decodeJSON(t, w)
	assert.NotEmpty(t, body["code"])
	assert.NotEmpty(t, body["message"])
}
