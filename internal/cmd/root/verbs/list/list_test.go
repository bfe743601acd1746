package list

import (
	"encoding/json"
	"strings"
	"testing"

	cmdpkg "github.com/kong/rosterctl/internal/cmd"
	"github.com/kong/rosterctl/internal/cmd/common"
	"github.com/kong/rosterctl/internal/datatable"
	testCmd "github.com/kong/rosterctl/test/cmd"
	testConfig "github.com/kong/rosterctl/test/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRun(t *testing.T, screen string, format common.OutputFormat, values map[string]any, flags ...string) *testCmd.FixtureRun {
	t.Helper()
	c, err := NewListCmd()
	require.NoError(t, err)
	require.NoError(t, c.Flags().Parse(flags))
	if values == nil {
		values = map[string]any{}
	}
	return testCmd.NewFixtureRun(t, c, []string{screen}, testConfig.NewMapConfigHook(values), format)
}

type document struct {
	Screen     string                    `json:"screen"`
	Pagination datatable.PaginationState `json:"pagination"`
	View       struct {
		SearchText    string            `json:"searchText"`
		ActiveFilters map[string]string `json:"activeFilters"`
		Sort          datatable.Sort    `json:"sort"`
	} `json:"view"`
	Rows []map[string]any `json:"rows"`
}

func decode(t *testing.T, fx *testCmd.FixtureRun) document {
	t.Helper()
	var doc document
	require.NoError(t, json.Unmarshal(fx.Out.Bytes(), &doc), fx.Out.String())
	return doc
}

func TestListPagesAreOneBased(t *testing.T) {
	fx := newRun(t, "employees", common.JSON, nil, "--page", "3", "--page-size", "10")
	require.NoError(t, validate(fx.Helper))
	require.NoError(t, run(fx.Helper))

	doc := decode(t, fx)
	assert.Equal(t, "employees", doc.Screen)
	assert.Equal(t, datatable.ModeServer, doc.Pagination.Mode)
	assert.Equal(t, 2, doc.Pagination.Page, "page 3 is the third page")
	assert.Equal(t, 3, doc.Pagination.TotalPages)
	assert.Equal(t, 23, doc.Pagination.TotalItems)
	assert.Len(t, doc.Rows, 3)
	assert.Equal(t, datatable.Sort{Key: "name", Direction: datatable.SortAsc}, doc.View.Sort)
}

func TestListValidatesPageFlags(t *testing.T) {
	var cfgErr *cmdpkg.ConfigurationError

	fx := newRun(t, "employees", common.JSON, nil, "--page", "0")
	require.ErrorAs(t, validate(fx.Helper), &cfgErr)

	fx = newRun(t, "employees", common.JSON, nil, "--page-size", "0")
	require.ErrorAs(t, validate(fx.Helper), &cfgErr)
}

func TestListColumnsProjectRows(t *testing.T) {
	fx := newRun(t, "candidates", common.JSON, nil, "--columns", "name,email")
	require.NoError(t, run(fx.Helper))

	doc := decode(t, fx)
	require.NotEmpty(t, doc.Rows)
	for _, r := range doc.Rows {
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		assert.ElementsMatch(t, []string{"id", "name", "email"}, keys)
	}
}

func TestListFilterAllClearsFilter(t *testing.T) {
	fx := newRun(t, "candidates", common.JSON, nil, "--filter", "emailSent=false")
	require.NoError(t, run(fx.Helper))
	doc := decode(t, fx)
	assert.Equal(t, datatable.ModeClient, doc.Pagination.Mode)
	assert.Equal(t, 8, doc.Pagination.TotalItems)
	assert.Equal(t, map[string]string{"emailSent": "false"}, doc.View.ActiveFilters)

	fx = newRun(t, "candidates", common.JSON, nil, "--filter", "emailSent=false,emailSent=all")
	require.NoError(t, run(fx.Helper))
	doc = decode(t, fx)
	assert.Equal(t, 12, doc.Pagination.TotalItems)
	assert.Empty(t, doc.View.ActiveFilters)
}

func TestListJQ(t *testing.T) {
	fx := newRun(t, "candidates", common.JSON, nil,
		"--filter", "emailSent=false", "--jq", "[.rows[].id]")
	require.NoError(t, run(fx.Helper))

	var ids []string
	require.NoError(t, json.Unmarshal(fx.Out.Bytes(), &ids), fx.Out.String())
	assert.Len(t, ids, 8)
	assert.Contains(t, ids, "C-102")
	assert.NotContains(t, ids, "C-101")
}

func TestListJMESPath(t *testing.T) {
	fx := newRun(t, "employees", common.JSON, nil,
		"--filter", "department=Engineering", "--jmespath", "rows[].department")
	require.NoError(t, run(fx.Helper))

	var departments []string
	require.NoError(t, json.Unmarshal(fx.Out.Bytes(), &departments), fx.Out.String())
	require.Len(t, departments, 5)
	for _, d := range departments {
		assert.Equal(t, "Engineering", d)
	}
}

func TestListRejectsJMESPathWithJQ(t *testing.T) {
	fx := newRun(t, "employees", common.JSON, nil, "--jq", ".rows", "--jmespath", "rows")
	var cfgErr *cmdpkg.ConfigurationError
	require.ErrorAs(t, run(fx.Helper), &cfgErr)
}

func TestListTextOutput(t *testing.T) {
	fx := newRun(t, "employees", common.TEXT, nil, "--search", "lovelace")
	require.NoError(t, run(fx.Helper))

	out := fx.Out.String()
	assert.Contains(t, out, "Employees")
	assert.Contains(t, out, "Ada Lovelace")
	assert.False(t, strings.Contains(out, "Grace Hopper"))
}

func TestNewResultKeepsID(t *testing.T) {
	snap := datatable.Snapshot{
		Name:    "candidates",
		Rows:    []datatable.Row{{"id": "C-1", "name": "Ada", "stage": "Offer"}},
		Columns: []datatable.ColumnDescriptor{{Key: "name", Label: "Name", Visible: true}},
	}
	got := NewResult(snap)
	assert.Equal(t, []map[string]any{{"id": "C-1", "name": "Ada"}}, got.Rows)
	assert.Equal(t, "candidates", got.Screen)
}
