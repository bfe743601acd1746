package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/tidwall/gjson"
)

// Envelope lists the names probed, in order, to find rows and page metadata
// in a response object.
type Envelope struct {
	Rows          []string
	TotalElements []string
	TotalPages    []string
	PageSize      []string
	// Meta names objects that may hold the metadata instead of the top level.
	Meta []string
	// Wrappers names objects that may hold the whole envelope.
	Wrappers []string
}

// DefaultEnvelope covers Spring style pages and the common list wrappers.
var DefaultEnvelope = Envelope{
	Rows:          []string{"content", "items", "data", "records", "results", "rows"},
	TotalElements: []string{"totalElements", "total_elements", "totalRecords", "total_records", "totalItems", "total"},
	TotalPages:    []string{"totalPages", "total_pages", "pageCount", "page_count"},
	PageSize:      []string{"size", "pageSize", "page_size", "limit"},
	Meta:          []string{"page", "pagination", "meta"},
	Wrappers:      []string{"data", "result"},
}

// ErrNoRows means a response held no recognizable row list.
var ErrNoRows = errors.New("response holds no row list")

// Decode turns a response body into a fetch result. A bare array, or an
// object without page metadata, is a Flat result.
func (e Envelope) Decode(raw []byte) (datatable.FetchResult, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("response is not valid JSON")
	}
	return e.decode(gjson.ParseBytes(raw), 1)
}

func (e Envelope) decode(root gjson.Result, depth int) (datatable.FetchResult, error) {
	if root.IsArray() {
		rows, err := toRows(root)
		if err != nil {
			return nil, err
		}
		return datatable.Flat{Rows: rows}, nil
	}
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: unexpected %s", ErrNoRows, root.Type)
	}

	list, ok := firstArray(root, e.Rows)
	if !ok {
		if depth > 0 {
			for _, w := range e.Wrappers {
				if inner := root.Get(gjson.Escape(w)); inner.IsObject() {
					return e.decode(inner, depth-1)
				}
			}
		}
		return nil, ErrNoRows
	}
	rows, err := toRows(list)
	if err != nil {
		return nil, err
	}

	holders := []gjson.Result{root}
	for _, m := range e.Meta {
		if h := root.Get(gjson.Escape(m)); h.IsObject() {
			holders = append(holders, h)
		}
	}
	total, hasTotal := firstInt(holders, e.TotalElements)
	pages, hasPages := firstInt(holders, e.TotalPages)
	if !hasTotal && !hasPages {
		return datatable.Flat{Rows: rows}, nil
	}
	if !hasPages {
		if size, ok := firstInt(holders, e.PageSize); ok && size > 0 {
			pages = (total + size - 1) / size
		}
	}
	return datatable.Paginated{Content: rows, TotalElements: total, TotalPages: pages}, nil
}

func firstArray(obj gjson.Result, names []string) (gjson.Result, bool) {
	for _, n := range names {
		if r := obj.Get(gjson.Escape(n)); r.IsArray() {
			return r, true
		}
	}
	return gjson.Result{}, false
}

func firstInt(holders []gjson.Result, names []string) (int, bool) {
	for _, h := range holders {
		for _, n := range names {
			if r := h.Get(gjson.Escape(n)); r.Type == gjson.Number {
				return int(r.Int()), true
			}
		}
	}
	return 0, false
}

func toRows(list gjson.Result) ([]datatable.Row, error) {
	items := list.Array()
	rows := make([]datatable.Row, 0, len(items))
	for i, item := range items {
		m, ok := item.Value().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d is %s, not an object", i, item.Type)
		}
		rows = append(rows, datatable.Row(m))
	}
	return rows, nil
}

var rowsQueryCache sync.Map

func compileRowsQuery(expr string) (*gojq.Code, error) {
	if code, ok := rowsQueryCache.Load(expr); ok {
		return code.(*gojq.Code), nil
	}
	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid rows query: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rows query: %w", err)
	}
	rowsQueryCache.Store(expr, code)
	return code, nil
}

// applyRowsQuery runs a jq expression over the body and returns its first
// output re-encoded as JSON.
func applyRowsQuery(code *gojq.Code, raw []byte) ([]byte, error) {
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	iter := code.Run(input)
	v, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("%w: rows query produced no output", ErrNoRows)
	}
	if err, isErr := v.(error); isErr {
		return nil, fmt.Errorf("rows query failed: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rows query output: %w", err)
	}
	return out, nil
}
