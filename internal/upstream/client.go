// Package upstream fetches report data from the school REST API.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/model"
	apperrors "github.com/printdesk/printdesk/pkg/errors"
	"github.com/printdesk/printdesk/pkg/logger"
	"github.com/printdesk/printdesk/pkg/telemetry"
)

// DefaultTimeout bounds each upstream request
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response becomes the message
const maxErrorBody = 4096

// UpstreamError is a non-2xx response. Message is the response text.
type UpstreamError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// AppError converts the response into the API error taxonomy. The
// upstream text is kept as the message.
func (e *UpstreamError) AppError() *apperrors.AppError {
	code := apperrors.ErrCodeUpstream
	switch e.Status {
	case http.StatusNotFound:
		code = apperrors.ErrCodeNotFound
	case http.StatusUnauthorized:
		code = apperrors.ErrCodeUnauthorized
	case http.StatusForbidden:
		code = apperrors.ErrCodeForbidden
	}
	return apperrors.New(code, e.Message).WithDetails(map[string]any{
		"upstream_status": e.Status,
		"path":            e.Path,
	})
}

// Client calls the school API. The bearer token is supplied per call; the
// configured token is used when a call passes none.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	defaultToken string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithDefaultToken sets the token used when a call passes an empty one
func WithDefaultToken(token string) Option {
	return func(c *Client) { c.defaultToken = token }
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "upstream base_url is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, fmt.Sprintf("invalid upstream base_url %q", baseURL))
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// School fetches the current tenant
func (c *Client) School(ctx context.Context, token string) (*model.School, error) {
	var out model.School
	if err := c.get(ctx, token, "school", "/school", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Contract fetches a financial contract with its installments
func (c *Client) Contract(ctx context.Context, token, id string) (*model.Contract, error) {
	var out model.Contract
	if err := c.get(ctx, token, "contract", "/financial/contracts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GradebookReport fetches a gradebook class report
func (c *Client) GradebookReport(ctx context.Context, token, gradebookID string) (*model.GradebookReport, error) {
	var out model.GradebookReport
	if err := c.get(ctx, token, "gradebook_report", "/gradebooks/"+url.PathEscape(gradebookID)+"/report", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StudentReport fetches a student's report card for year; zero omits the
// year and lets the API pick the current one
func (c *Client) StudentReport(ctx context.Context, token, studentID string, year int) (*model.StudentReport, error) {
	var q url.Values
	if year > 0 {
		q = url.Values{"year": {strconv.Itoa(year)}}
	}
	var out model.StudentReport
	if err := c.get(ctx, token, "student_report", "/students/"+url.PathEscape(studentID)+"/report", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GuardianStatement fetches a guardian's financial statement
func (c *Client) GuardianStatement(ctx context.Context, token, guardianID string) (*model.GuardianStatement, error) {
	var out model.GuardianStatement
	if err := c.get(ctx, token, "guardian_statement", "/financial/guardians/"+url.PathEscape(guardianID)+"/statement", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	// path segments are already escaped
	u := c.baseURL.String() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get performs one request. It is never retried.
func (c *Client) get(ctx context.Context, token, resource, path string, query url.Values, out any) error {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "upstream."+resource,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.AttrUpstreamPath.String(path)),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return apperrors.ErrInternal("failed to create upstream request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", consts.ProjectName+"/"+consts.Version)
	if t := bearer(token, c.defaultToken); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	logger.Debug("Requesting upstream", zap.String("resource", resource), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.GetMetrics().RecordUpstream(ctx, resource, 0, time.Since(start).Seconds())
		telemetry.SetSpanError(span, err)
		logger.Warn("Upstream request failed", zap.String("path", path), zap.Error(err))
		return apperrors.Wrap(apperrors.ErrCodeUpstreamUnreachable, "school API is unreachable", err)
	}
	defer resp.Body.Close()

	telemetry.GetMetrics().RecordUpstream(ctx, resource, resp.StatusCode, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		upErr := &UpstreamError{Status: resp.StatusCode, Message: msg, Path: path}
		telemetry.SetSpanError(span, upErr)
		logger.Warn("Upstream returned an error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return upErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		telemetry.SetSpanError(span, err)
		return apperrors.Wrap(apperrors.ErrCodeUpstreamDecode, fmt.Sprintf("invalid %s payload from school API", resource), err)
	}
	telemetry.SetSpanOK(span)
	return nil
}

// bearer strips an optional "Bearer " prefix and falls back to def
func bearer(token, def string) string {
	t := strings.TrimSpace(token)
	if t == "" {
		t = strings.TrimSpace(def)
	}
	if len(t) > 7 && strings.EqualFold(t[:7], "bearer ") {
		t = strings.TrimSpace(t[7:])
	}
	return t
}
