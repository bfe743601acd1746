package backend

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/itchyny/gojq"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/log"
)

// Query parameter names sent with every list request.
const (
	ParamSearch = "search"
	ParamSort   = "sort"
	ParamPage   = "page"
	ParamSize   = "size"
)

// Source is a datatable.DataSource reading one list endpoint.
type Source struct {
	client    *Client
	path      string
	envelope  Envelope
	rowsQuery *gojq.Code
	logger    *slog.Logger
}

// SourceOption configures a Source.
type SourceOption func(*Source) error

// WithRowsQuery applies a jq expression to each response before decoding.
func WithRowsQuery(expr string) SourceOption {
	return func(s *Source) error {
		if expr == "" {
			return nil
		}
		code, err := compileRowsQuery(expr)
		if err != nil {
			return err
		}
		s.rowsQuery = code
		return nil
	}
}

// WithEnvelope replaces the names probed when decoding responses.
func WithEnvelope(e Envelope) SourceOption {
	return func(s *Source) error {
		s.envelope = e
		return nil
	}
}

// NewSource returns a data source for the list endpoint at path.
func (c *Client) NewSource(path string, opts ...SourceOption) (*Source, error) {
	s := &Source{
		client:   c,
		path:     path,
		envelope: DefaultEnvelope,
		logger:   c.logger.With(slog.String("path", path)),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Fetch issues q as a GET. Filter keys are forwarded verbatim.
func (s *Source) Fetch(ctx context.Context, q datatable.Query) (datatable.FetchResult, error) {
	params := EncodeQuery(q)
	raw, err := s.client.do(ctx, http.MethodGet, s.path, params, nil)
	if err != nil {
		return nil, err
	}
	if s.rowsQuery != nil {
		if raw, err = applyRowsQuery(s.rowsQuery, raw); err != nil {
			return nil, err
		}
	}
	result, err := s.envelope.Decode(raw)
	if err != nil {
		return nil, err
	}
	result = fillPageCount(result, q.PageSize)
	log.Trace(ctx, s.logger, "decoded list response", slog.String("shape", shapeOf(result)))
	return result, nil
}

// fillPageCount derives the page count of a server page that only reported
// a total, using the requested page size.
func fillPageCount(r datatable.FetchResult, pageSize int) datatable.FetchResult {
	page, ok := r.(datatable.Paginated)
	if !ok || page.TotalPages > 0 || pageSize <= 0 || page.TotalElements <= len(page.Content) {
		return r
	}
	page.TotalPages = (page.TotalElements + pageSize - 1) / pageSize
	return page
}

// EncodeQuery renders a table query as URL parameters. Filters never
// override the reserved parameters.
func EncodeQuery(q datatable.Query) url.Values {
	params := url.Values{}
	if q.Search != "" {
		params.Set(ParamSearch, q.Search)
	}
	if q.SortKey != "" {
		params.Set(ParamSort, q.SortKey+","+string(q.SortDirection))
	}
	params.Set(ParamPage, strconv.Itoa(q.Page))
	if q.PageSize > 0 {
		params.Set(ParamSize, strconv.Itoa(q.PageSize))
	}
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if params.Has(k) {
			continue
		}
		params.Set(k, q.Filters[k])
	}
	return params
}

func shapeOf(r datatable.FetchResult) string {
	switch r.(type) {
	case datatable.Paginated:
		return "paginated"
	case datatable.Flat:
		return "flat"
	}
	return "unknown"
}
