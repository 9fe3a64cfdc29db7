package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printdesk/printdesk/internal/config"
	"github.com/printdesk/printdesk/internal/engine"
	"github.com/printdesk/printdesk/internal/layout"
	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/internal/sink"
)

func setupRouter(t *testing.T, cfg *config.Config, d Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	if cfg == nil {
		cfg = config.Default()
	}
	if d.Engine == nil {
		d.Engine = engine.New(render.NewPipeline(render.NewRenderer(layout.A4()), nil, nil), nil)
	}
	if d.Sink == nil {
		d.Sink = sink.NewMemorySink("/documents/", 0, 0)
	}
	Setup(r, d, cfg)
	return r
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, nil, Deps{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["school_api"])
	assert.Equal(t, false, body["pdf"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProtectedRoutes(t *testing.T) {
	r := setupRouter(t, nil, Deps{})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/render"},
		{http.MethodPost, "/api/v1/contracts/1/document"},
		{http.MethodPost, "/api/v1/contracts/1/installments/1/booklet"},
		{http.MethodPost, "/api/v1/guardians/1/statement"},
		{http.MethodPost, "/api/v1/gradebooks/1/report"},
		{http.MethodPost, "/api/v1/students/1/report-card"},
		{http.MethodGet, "/api/v1/render-logs"},
	}
	for _, tt := range routes {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRenderAndServe(t *testing.T) {
	r := setupRouter(t, nil, Deps{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/render",
		strings.NewReader(`{"title": "Aviso", "template": "<p>Olá {{nome}}</p>", "fields": {"nome": "Ana"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasSuffix(resp.URL, "/documents/"+resp.ID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/"+resp.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Olá Ana")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/"+resp.ID+"/pdf", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestSchoolDocumentsWithoutUpstream(t *testing.T) {
	r := setupRouter(t, nil, Deps{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/guardians/9/statement", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "upstream.base_url")
}

func TestMetricsRoute(t *testing.T) {
	r := setupRouter(t, nil, Deps{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("printdesk_renders_total 1"))
	})})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "printdesk_renders_total")

	r = setupRouter(t, nil, Deps{})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.Server.CORSOrigins = []string{"http://localhost:3000", "https://console.escola.test"}
	r := setupRouter(t, cfg, Deps{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/render", nil)
	req.Header.Set("Origin", "https://console.escola.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://console.escola.test", w.Header().Get("Access-Control-Allow-Origin"))
}
