package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kong/rosterctl/internal/backend"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/fixture"
	testConfig "github.com/kong/rosterctl/test/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureClient(t *testing.T, opts fixture.Options) *backend.Client {
	t.Helper()
	opts.Now = func() time.Time { return time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(fixture.NewRouter(fixture.NewStore(fixture.DefaultSeed()), opts))
	t.Cleanup(srv.Close)

	cfg := testConfig.NewMapConfigHook(map[string]any{
		"base-url":        srv.URL + "/api",
		"request-timeout": "5s",
	})
	client, err := backend.DefaultClientFactory(cfg, nil)
	require.NoError(t, err)
	return client
}

func TestSourceFetchesServerPages(t *testing.T) {
	client := newFixtureClient(t, fixture.Options{})
	src, err := client.NewSource("/employees")
	require.NoError(t, err)

	result, err := src.Fetch(context.Background(), datatable.Query{
		SortKey: "id", SortDirection: datatable.SortAsc, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	page, ok := result.(datatable.Paginated)
	require.True(t, ok, "got %T", result)
	assert.Equal(t, 23, page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Content, 10)
	id, _ := page.Content[0].ID()
	assert.Equal(t, datatable.ID("11"), id)
}

func TestSourceFlatEndpoint(t *testing.T) {
	client := newFixtureClient(t, fixture.Options{})
	src, err := client.NewSource("/candidates")
	require.NoError(t, err)

	result, err := src.Fetch(context.Background(), datatable.Query{Page: 0, PageSize: 10})
	require.NoError(t, err)
	flat, ok := result.(datatable.Flat)
	require.True(t, ok, "got %T", result)
	assert.Len(t, flat.Rows, 12)
}

func TestSourceRowsQuery(t *testing.T) {
	client := newFixtureClient(t, fixture.Options{})
	src, err := client.NewSource("/employees", backend.WithRowsQuery(`{items: .content}`))
	require.NoError(t, err)

	result, err := src.Fetch(context.Background(), datatable.Query{PageSize: 10})
	require.NoError(t, err)
	flat, ok := result.(datatable.Flat)
	require.True(t, ok, "metadata dropped by the query makes the result flat")
	assert.Len(t, flat.Rows, 10)

	_, err = client.NewSource("/employees", backend.WithRowsQuery(`.[`))
	require.Error(t, err)
}

func TestSourceDerivesPagesFromTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items := make([]map[string]any, 10)
		for i := range items {
			items[i] = map[string]any{"id": r.URL.Query().Get(backend.ParamPage) + "-" + string(rune('a'+i))}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "total": 50})
	}))
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL, http.DefaultClient, nil)
	require.NoError(t, err)
	src, err := client.NewSource("/people")
	require.NoError(t, err)

	ctrl := datatable.New(src, datatable.WithPageSize(10))
	require.NoError(t, ctrl.Refresh(context.Background()))
	snap := ctrl.Snapshot()
	assert.Equal(t, datatable.ModeServer, snap.Pagination.Mode)
	assert.Equal(t, 5, snap.Pagination.TotalPages)
	assert.True(t, snap.Pagination.HasNext())

	require.True(t, ctrl.NextPage())
	require.NoError(t, ctrl.Refresh(context.Background()))
	snap = ctrl.Snapshot()
	assert.Equal(t, 1, snap.Pagination.Page)
	id, _ := snap.Rows[0].ID()
	assert.Equal(t, datatable.ID("1-a"), id)
}

func TestSourcePermissionDenied(t *testing.T) {
	client := newFixtureClient(t, fixture.Options{})
	src, err := client.NewSource("/payroll")
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), datatable.Query{})
	require.ErrorIs(t, err, datatable.ErrPermissionDenied)

	fe := datatable.ClassifyFetchError(err)
	assert.Equal(t, datatable.FailurePermissionDenied, fe.Kind)
	assert.Equal(t, datatable.PermissionDeniedMessage, fe.UserMessage())
}

func TestControllerOverFixture(t *testing.T) {
	client := newFixtureClient(t, fixture.Options{})
	src, err := client.NewSource("/recipients")
	require.NoError(t, err)
	ctrl := datatable.New(src,
		datatable.WithName("recipients"),
		datatable.WithGateway(client.NewGateway("/recipients/send-email")),
	)

	require.NoError(t, ctrl.Refresh(context.Background()))
	snap := ctrl.Snapshot()
	assert.Equal(t, datatable.ModeClient, snap.Pagination.Mode)
	assert.Equal(t, 3, snap.Pagination.TotalPages)
	assert.Len(t, snap.Rows, 10)

	ids := []datatable.ID{"1002", "1003", "1004", "1005"}
	summary, err := ctrl.RunBulkAction(context.Background(), ids, map[string]string{"subject": "Hello"})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "Sent 3, Failed 1", summary.Message)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, datatable.FailureRecord{ID: "1005", Error: "mailbox unavailable"}, summary.Failures[0])

	byID := map[datatable.ID]datatable.Row{}
	for _, r := range ctrl.Rows() {
		id, _ := r.ID()
		byID[id] = r
	}
	for _, id := range []datatable.ID{"1002", "1003", "1004"} {
		assert.Equal(t, true, byID[id]["emailSent"], id)
		assert.Equal(t, "Sent", byID[id]["emailStatus"], id)
		assert.Equal(t, "2026-10-01T09:00:00Z", byID[id]["lastEmailDate"], id)
		assert.NotContains(t, byID[id], "email_sent", id)
		assert.NotContains(t, byID[id], "meta", id)
	}
}

func TestControllerRefetchesAfterLegacyReply(t *testing.T) {
	client := newFixtureClient(t, fixture.Options{OmitUpdated: true})
	src, err := client.NewSource("/recipients")
	require.NoError(t, err)
	ctrl := datatable.New(src, datatable.WithGateway(client.NewGateway("/recipients/send-email")))
	require.NoError(t, ctrl.Refresh(context.Background()))

	summary, err := ctrl.RunBulkAction(context.Background(), []datatable.ID{"1002", "1005"}, nil)
	require.NoError(t, err)
	assert.True(t, summary.Refetched)
	assert.Equal(t, "Sent 1, Failed 1", summary.Message)

	for _, r := range ctrl.Rows() {
		if id, _ := r.ID(); id == "1002" {
			assert.Equal(t, "Sent", r["emailStatus"])
		}
	}
}
