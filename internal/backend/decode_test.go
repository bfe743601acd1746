package backend

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeDecode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want datatable.FetchResult
	}{
		{
			name: "bare array is flat",
			body: `[{"id":1},{"id":2}]`,
			want: datatable.Flat{Rows: []datatable.Row{{"id": 1.0}, {"id": 2.0}}},
		},
		{
			name: "spring page",
			body: `{"content":[{"id":1}],"totalElements":21,"totalPages":3}`,
			want: datatable.Paginated{Content: []datatable.Row{{"id": 1.0}}, TotalElements: 21, TotalPages: 3},
		},
		{
			name: "snake case records",
			body: `{"records":[{"id":"a"}],"total_records":40,"total_pages":4}`,
			want: datatable.Paginated{Content: []datatable.Row{{"id": "a"}}, TotalElements: 40, TotalPages: 4},
		},
		{
			name: "metadata in nested page object",
			body: `{"items":[{"id":1}],"page":{"totalElements":30,"size":10}}`,
			want: datatable.Paginated{Content: []datatable.Row{{"id": 1.0}}, TotalElements: 30, TotalPages: 3},
		},
		{
			name: "rows without metadata are flat",
			body: `{"items":[{"id":1}]}`,
			want: datatable.Flat{Rows: []datatable.Row{{"id": 1.0}}},
		},
		{
			name: "wrapped envelope",
			body: `{"data":{"content":[{"id":1}],"totalElements":1,"totalPages":1}}`,
			want: datatable.Paginated{Content: []datatable.Row{{"id": 1.0}}, TotalElements: 1, TotalPages: 1},
		},
		{
			name: "empty page",
			body: `{"content":[],"totalElements":0,"totalPages":0}`,
			want: datatable.Paginated{Content: []datatable.Row{}, TotalElements: 0, TotalPages: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultEnvelope.Decode([]byte(tt.body))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFillPageCount(t *testing.T) {
	rows := make([]datatable.Row, 10)
	for i := range rows {
		rows[i] = datatable.Row{"id": i}
	}

	got := fillPageCount(datatable.Paginated{Content: rows, TotalElements: 50}, 10)
	assert.Equal(t, 5, got.(datatable.Paginated).TotalPages)

	res := datatable.Resolve(got, 1, 10)
	assert.Equal(t, datatable.ModeServer, res.State.Mode)
	assert.Equal(t, 1, res.State.Page)
	assert.Equal(t, 5, res.State.TotalPages)
	assert.True(t, res.State.HasNext())
	assert.False(t, res.Refetch)

	reported := datatable.Paginated{Content: rows, TotalElements: 50, TotalPages: 2}
	assert.Equal(t, reported, fillPageCount(reported, 10))

	whole := datatable.Paginated{Content: rows, TotalElements: 10}
	assert.Equal(t, whole, fillPageCount(whole, 10))

	flat := datatable.Flat{Rows: rows}
	assert.Equal(t, flat, fillPageCount(flat, 10))
}

func TestEnvelopeDecodeErrors(t *testing.T) {
	_, err := DefaultEnvelope.Decode([]byte(`{"content":`))
	require.Error(t, err)

	_, err = DefaultEnvelope.Decode([]byte(`{"status":"ok"}`))
	require.ErrorIs(t, err, ErrNoRows)

	_, err = DefaultEnvelope.Decode([]byte(`[1,2]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0")
}

func TestRowsQuery(t *testing.T) {
	code, err := compileRowsQuery(`.payload.people`)
	require.NoError(t, err)

	again, err := compileRowsQuery(`.payload.people`)
	require.NoError(t, err)
	assert.Same(t, code, again)

	out, err := applyRowsQuery(code, []byte(`{"payload":{"people":[{"id":7}]}}`))
	require.NoError(t, err)
	got, err := DefaultEnvelope.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, datatable.Flat{Rows: []datatable.Row{{"id": 7.0}}}, got)

	_, err = compileRowsQuery(`.payload[`)
	require.Error(t, err)

	empty, err := compileRowsQuery(`empty`)
	require.NoError(t, err)
	_, err = applyRowsQuery(empty, []byte(`{}`))
	require.ErrorIs(t, err, ErrNoRows)
}

func TestDecodeBulkResponse(t *testing.T) {
	resp, err := DecodeBulkResponse([]byte(`{"updated":[{"userId":1,"email_sent":true}],"failed":[{"id":2,"error":"SMTP timeout"},{"employeeId":"3","reason":"bounced"},{"id":4}]}`))
	require.NoError(t, err)
	assert.Equal(t, []datatable.Row{{"userId": 1.0, "email_sent": true}}, resp.Updated)
	assert.Equal(t, []datatable.FailureRecord{
		{ID: "2", Error: "SMTP timeout"},
		{ID: "3", Error: "bounced"},
		{ID: "4", Error: "unknown error"},
	}, resp.Failed)

	resp, err = DecodeBulkResponse([]byte(`{"status":"accepted","failed":[]}`))
	require.NoError(t, err)
	assert.Nil(t, resp.Updated, "missing updated stays nil")
	assert.Empty(t, resp.Failed)

	resp, err = DecodeBulkResponse([]byte(`{"updated":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, resp.Updated)
	assert.Empty(t, resp.Updated)

	resp, err = DecodeBulkResponse([]byte(`[{"id":1}]`))
	require.NoError(t, err)
	assert.Len(t, resp.Updated, 1)

	_, err = DecodeBulkResponse([]byte(`nope`))
	require.Error(t, err)
}

func TestEncodeQuery(t *testing.T) {
	params := EncodeQuery(datatable.Query{
		Search:        "ada",
		Filters:       map[string]string{"department": "Engineering", "page": "9"},
		SortKey:       "name",
		SortDirection: datatable.SortDesc,
		Page:          2,
		PageSize:      25,
	})
	assert.Equal(t, "ada", params.Get(ParamSearch))
	assert.Equal(t, "name,desc", params.Get(ParamSort))
	assert.Equal(t, "2", params.Get(ParamPage))
	assert.Equal(t, "25", params.Get(ParamSize))
	assert.Equal(t, "Engineering", params.Get("department"))

	params = EncodeQuery(datatable.Query{})
	assert.False(t, params.Has(ParamSearch))
	assert.False(t, params.Has(ParamSort))
	assert.Equal(t, "0", params.Get(ParamPage))
}

func TestBulkBody(t *testing.T) {
	body, err := bulkBody([]datatable.ID{"1", "2"}, map[string]string{"subject": "Hi", "ids": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, []datatable.ID{"1", "2"}, body["ids"])
	assert.Equal(t, "Hi", body["subject"])

	body, err = bulkBody([]datatable.ID{"1"}, "plain")
	require.NoError(t, err)
	assert.Contains(t, body, "payload")

	body, err = bulkBody([]datatable.ID{"1"}, nil)
	require.NoError(t, err)
	assert.Len(t, body, 1)
}

func TestStatusError(t *testing.T) {
	forbidden := &StatusError{Method: "GET", Path: "/payroll", StatusCode: 403, Message: "nope"}
	assert.ErrorIs(t, forbidden, datatable.ErrPermissionDenied)
	assert.Equal(t, "GET /payroll: 403 Forbidden: nope", forbidden.Error())

	failed := &StatusError{Method: "GET", Path: "/employees", StatusCode: 500}
	assert.NotErrorIs(t, failed, datatable.ErrPermissionDenied)
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient("", nil, nil)
	require.Error(t, err)
	_, err = NewClient("ftp://host", nil, nil)
	require.Error(t, err)

	c, err := NewClient("http://host/api/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://host/api/employees?page=1", c.resolve("/employees", map[string][]string{"page": {"1"}}))
}

func TestErrorMessageTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxErrorBody-1) + "é" + "tail"
	got := errorMessage([]byte(body))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxErrorBody-1)+"...", got)

	assert.Equal(t, "short", errorMessage([]byte("  short  ")))
	assert.Equal(t, "no access", errorMessage([]byte(`{"message":"no access"}`)))
}
