package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kong/rosterctl/internal/log"
)

const (
	redactedValue = "[REDACTED]"
	maxBodyLog    = 4096

	// RequestIDHeader correlates a request with server side logs.
	RequestIDHeader = "X-Request-ID"

	logTypeRequest  = "request"
	logTypeResponse = "response"
)

// Doer is the part of *http.Client the backend needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// LoggingHTTPClient wraps an HTTP client; requests are logged at debug and
// bodies at trace, with credentials redacted.
type LoggingHTTPClient struct {
	wrapped *http.Client
	logger  *slog.Logger
}

// NewLoggingHTTPClient creates a logging client with the given timeout.
func NewLoggingHTTPClient(timeout time.Duration, logger *slog.Logger) *LoggingHTTPClient {
	return NewLoggingHTTPClientWithClient(&http.Client{Timeout: timeout}, logger)
}

// NewLoggingHTTPClientWithClient wraps an existing HTTP client
func NewLoggingHTTPClientWithClient(client *http.Client, logger *slog.Logger) *LoggingHTTPClient {
	if logger == nil {
		logger = log.Discard()
	}
	return &LoggingHTTPClient{wrapped: client, logger: logger}
}

func (c *LoggingHTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return c.wrapped.Do(req)
	}
	trace := c.logger.Enabled(ctx, log.LevelTrace)
	requestID := req.Header.Get(RequestIDHeader)

	attrs := []slog.Attr{
		slog.String("log_type", logTypeRequest),
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("route", req.URL.Path),
		slog.Any("query_params", redactQuery(req.URL.Query())),
	}
	if trace {
		attrs = append(attrs, slog.Any("request_headers", redactHeaders(req.Header)))
		if body, err := peekRequestBody(req); err == nil && body != "" {
			attrs = append(attrs, slog.String("request_body", body))
		}
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "HTTP request", attrs...)

	start := time.Now()
	resp, err := c.wrapped.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "HTTP request failed",
			slog.String("log_type", logTypeResponse),
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			slog.String("route", req.URL.Path),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	attrs = []slog.Attr{
		slog.String("log_type", logTypeResponse),
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("route", req.URL.Path),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", duration),
	}
	if trace {
		attrs = append(attrs, slog.Any("response_headers", redactHeaders(resp.Header)))
		if body, err := peekResponseBody(resp); err == nil && body != "" {
			attrs = append(attrs, slog.String("response_body", body))
		}
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "HTTP response", attrs...)
	return resp, nil
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	switch k {
	case "authorization", "proxy-authorization", "cookie", "set-cookie", "x-api-key", "password":
		return true
	}
	return strings.Contains(k, "token") || strings.Contains(k, "secret") ||
		strings.Contains(k, "api_key") || strings.Contains(k, "apikey")
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if isSensitiveKey(k) {
			out[k] = redactedValue
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func redactQuery(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if isSensitiveKey(k) {
			out[k] = redactedValue
			continue
		}
		out[k] = strings.Join(v, ",")
	}
	return out
}

// redactBody masks sensitive JSON fields; non JSON bodies are only truncated.
func redactBody(raw []byte) string {
	var doc any
	if err := json.Unmarshal(raw, &doc); err == nil {
		if b, err := json.Marshal(redactValue(doc)); err == nil {
			raw = b
		}
	}
	if len(raw) > maxBodyLog {
		return fmt.Sprintf("%s... [truncated, total %d bytes]", raw[:maxBodyLog], len(raw))
	}
	return string(raw)
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			if isSensitiveKey(k) {
				val[k] = redactedValue
				continue
			}
			val[k] = redactValue(inner)
		}
		return val
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
		return val
	}
	return v
}

func peekRequestBody(req *http.Request) (string, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return "", nil
	}
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return "", err
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	return redactBody(b), nil
}

func peekResponseBody(resp *http.Response) (string, error) {
	if resp.Body == nil {
		return "", nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	resp.Body = io.NopCloser(bytes.NewReader(b))
	return redactBody(b), nil
}
