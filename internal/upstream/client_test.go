package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/printdesk/printdesk/pkg/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api/", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, srv
}

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))

	_, err = New("not a url")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))

	c, err := New("https://api.example.com/v1/", WithTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", c.BaseURL())
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
}

func TestClient_School(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/school", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 3, "name": "Escola Sol", "code": "ES01", "city": "Recife", "signature_name": "Maria Diretora"}`))
	})

	school, err := c.School(context.Background(), "Bearer tok-1")
	require.NoError(t, err)
	assert.Equal(t, "3", school.ID.String())
	assert.Equal(t, "Escola Sol", school.Name)
	assert.Equal(t, "Maria Diretora", school.SignatureName)
}

func TestClient_Paths(t *testing.T) {
	var paths []string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		_, _ = w.Write([]byte(`{}`))
	})
	ctx := context.Background()

	_, err := c.Contract(ctx, "t", "17")
	require.NoError(t, err)
	_, err = c.GradebookReport(ctx, "t", "g9")
	require.NoError(t, err)
	_, err = c.StudentReport(ctx, "t", "s1", 2025)
	require.NoError(t, err)
	_, err = c.StudentReport(ctx, "t", "s1", 0)
	require.NoError(t, err)
	_, err = c.GuardianStatement(ctx, "t", "a/b")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/financial/contracts/17",
		"/api/gradebooks/g9/report",
		"/api/students/s1/report?year=2025",
		"/api/students/s1/report",
		"/api/financial/guardians/a%2Fb/statement",
	}, paths)
}

func TestClient_ContractDecode(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"c1","student_name":"Ana","total_amount":"1200.00",
			"installments":[{"number":1,"due_date":"2025-02-10","amount":100,"pix_copy_paste":"000201"}]}`))
	})
	contract, err := c.Contract(context.Background(), "t", "c1")
	require.NoError(t, err)
	require.Len(t, contract.Installments, 1)
	assert.Equal(t, 1200.0, contract.TotalAmount.Value)
	assert.Equal(t, "000201", contract.Installments[0].PixCopyPaste)
}

func TestClient_ErrorUsesResponseText(t *testing.T) {
	var calls int32
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("  Contrato sem parcelas geradas\n"))
	})

	_, err := c.Contract(context.Background(), "t", "9")
	require.Error(t, err)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusUnprocessableEntity, upErr.Status)
	assert.Equal(t, "Contrato sem parcelas geradas", upErr.Message)
	assert.Equal(t, "Contrato sem parcelas geradas", err.Error())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retries")

	appErr := upErr.AppError()
	assert.Equal(t, apperrors.ErrCodeUpstream, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus())
	assert.Equal(t, "Contrato sem parcelas geradas", appErr.Message)
}

func TestClient_ErrorEmptyBody(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.School(context.Background(), "t")

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "Not Found", upErr.Message)
	assert.Equal(t, apperrors.ErrCodeNotFound, upErr.AppError().Code)
}

func TestUpstreamError_AppErrorCodes(t *testing.T) {
	tests := []struct {
		status int
		code   apperrors.ErrorCode
	}{
		{http.StatusUnauthorized, apperrors.ErrCodeUnauthorized},
		{http.StatusForbidden, apperrors.ErrCodeForbidden},
		{http.StatusNotFound, apperrors.ErrCodeNotFound},
		{http.StatusInternalServerError, apperrors.ErrCodeUpstream},
		{http.StatusBadRequest, apperrors.ErrCodeUpstream},
	}
	for _, tt := range tests {
		err := &UpstreamError{Status: tt.status, Message: "x"}
		assert.Equal(t, tt.code, err.AppError().Code, "status %d", tt.status)
	}
}

func TestClient_DecodeError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	})
	_, err := c.School(context.Background(), "t")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamDecode))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.School(context.Background(), "t")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnreachable))
}

func TestClient_DefaultToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithDefaultToken("cfg-token"))
	require.NoError(t, err)

	_, err = c.School(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Bearer cfg-token", got)

	_, err = c.School(context.Background(), "call-token")
	require.NoError(t, err)
	assert.Equal(t, "Bearer call-token", got)
}

func TestBearer(t *testing.T) {
	assert.Equal(t, "abc", bearer("Bearer abc", ""))
	assert.Equal(t, "abc", bearer("bearer  abc ", ""))
	assert.Equal(t, "def", bearer("", "def"))
	assert.Equal(t, "", bearer("", ""))
}
