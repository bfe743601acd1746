package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/kong/rosterctl/internal/config"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/httpclient"
	"github.com/kong/rosterctl/internal/log"
	"github.com/tidwall/gjson"
)

const maxErrorBody = 1000

// Client talks JSON to the admin API below a base URL.
type Client struct {
	baseURL *url.URL
	doer    httpclient.Doer
	logger  *slog.Logger
}

// NewClient builds a client. A nil doer uses http.DefaultClient.
func NewClient(baseURL string, doer httpclient.Doer, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{baseURL: u, doer: doer, logger: logger}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// StatusError is a non 2xx reply.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap exposes datatable.ErrPermissionDenied for 401 and 403 replies.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return datatable.ErrPermissionDenied
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path, query), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}
	return raw, nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(raw []byte) string {
	if gjson.ValidBytes(raw) {
		for _, key := range []string{"message", "error", "detail", "title"} {
			if r := gjson.GetBytes(raw, key); r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

type clientFactoryKey struct{}

// ClientFactoryKey holds the ClientFactory commands use to reach the backend.
var ClientFactoryKey = clientFactoryKey{}

// ClientFactory builds a Client from configuration.
type ClientFactory func(cfg config.Hook, logger *slog.Logger) (*Client, error)

// DefaultClientFactory reads base-url and request-timeout and logs
// traffic through the given logger.
func DefaultClientFactory(cfg config.Hook, logger *slog.Logger) (*Client, error) {
	baseURL := cfg.GetString(config.BaseURLConfigPath)
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	timeout := cfg.GetDuration(config.RequestTimeoutConfigPath)
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	return NewClient(baseURL, httpclient.NewLoggingHTTPClient(timeout, logger), logger)
}
