package tableview

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kong/rosterctl/internal/campaign"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/screens"
	"github.com/kong/rosterctl/internal/theme"
)

func recipientRows() []datatable.Row {
	return []datatable.Row{
		{"id": 1, "name": "Ada Lovelace", "email": "ada@example.com", "group": "Employee", "emailStatus": datatable.StatusNotSent},
		{"id": 2, "name": "Grace Hopper", "email": "grace@example.com", "group": "Candidate", "emailStatus": datatable.StatusNotSent},
		{"id": 3, "name": "Alan Turing", "email": "alan@example.com", "group": "Employee", "emailStatus": datatable.StatusSent},
		{"id": 4, "name": "Edsger Dijkstra", "email": "edsger@example.com", "group": "Candidate", "emailStatus": datatable.StatusNotSent},
		{"id": 5, "name": "Barbara Liskov", "email": "barbara@example.com", "group": "Employee", "emailStatus": datatable.StatusNotSent},
	}
}

type recordingGateway struct {
	mu       sync.Mutex
	ids      []datatable.ID
	payload  any
	response datatable.BulkResponse
}

func (g *recordingGateway) Execute(_ context.Context, ids []datatable.ID, payload any) (datatable.BulkResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ids = ids
	g.payload = payload
	return g.response, nil
}

func newTestModel(t *testing.T, source datatable.DataSource, gw datatable.BulkActionGateway,
	opts ...Option,
) *model {
	t.Helper()
	screen, err := screens.Lookup("recipients")
	require.NoError(t, err)
	ctrlOpts := []datatable.Option{
		datatable.WithName(screen.Name),
		datatable.WithColumns(screen.Columns...),
		datatable.WithPageSize(2),
		datatable.WithEmptyFilterValues(screens.AllValues),
		datatable.WithDefaultSort(screen.DefaultSort),
	}
	if gw != nil {
		ctrlOpts = append(ctrlOpts, datatable.WithGateway(gw))
	}
	ctrl := datatable.New(source, ctrlOpts...)
	light, ok := theme.Get(theme.DefaultName)
	require.True(t, ok)
	opts = append([]Option{WithPalette(light), WithSize(100, 30)}, opts...)
	return newModel(context.Background(), ctrl, screen, opts...)
}

func flatSource(rows []datatable.Row) datatable.DataSource {
	return datatable.DataSourceFunc(func(context.Context, datatable.Query) (datatable.FetchResult, error) {
		out := make([]datatable.Row, len(rows))
		for i, r := range rows {
			out[i] = r.Clone()
		}
		return datatable.Flat{Rows: out}, nil
	})
}

// executeCmd runs cmd and every command it produces, feeding the messages
// back into the model. Spinner ticks are dropped.
func executeCmd(t *testing.T, m *model, cmd tea.Cmd) *model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == nil {
			continue
		}
		msg := current()
		switch v := msg.(type) {
		case tea.BatchMsg:
			queue = append(queue, []tea.Cmd(v)...)
			continue
		case spinner.TickMsg, nil:
			continue
		}
		updated, next := m.Update(msg)
		bm, ok := updated.(*model)
		require.True(t, ok)
		m = bm
		if next != nil {
			queue = append(queue, next)
		}
	}
	return m
}

func press(t *testing.T, m *model, keys ...string) *model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		updated, cmd := m.Update(msg)
		m = executeCmd(t, updated.(*model), cmd)
	}
	return m
}

// typeText feeds runes to the search input. Cursor blink commands are
// discarded.
func typeText(t *testing.T, m *model, text string) *model {
	t.Helper()
	for _, r := range text {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = updated.(*model)
	}
	return m
}

func startSearch(t *testing.T, m *model) *model {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	m = updated.(*model)
	require.True(t, m.searching)
	return m
}

func TestInitLoadsFirstPage(t *testing.T) {
	m := newTestModel(t, flatSource(recipientRows()), nil)
	m = executeCmd(t, m, m.Init())

	assert.False(t, m.loading)
	assert.Equal(t, datatable.ModeClient, m.snap.Pagination.Mode)
	assert.Equal(t, 3, m.snap.Pagination.TotalPages)
	require.Len(t, m.table.Rows(), 2)
	// sorted by name, hidden id column excluded, marker first
	assert.Equal(t, "[ ]", m.table.Rows()[0][0])
	assert.Equal(t, "Ada Lovelace", m.table.Rows()[0][1])
	assert.Equal(t, "Alan Turing", m.table.Rows()[1][1])
	assert.Len(t, m.table.Columns(), len(m.snap.Columns)+1)

	view := m.View()
	assert.Contains(t, view, "Email recipients")
	assert.Contains(t, view, "Page 1 of 3")
}

func TestPagingInClientModeNeedsNoFetch(t *testing.T) {
	calls := 0
	src := datatable.DataSourceFunc(func(ctx context.Context, q datatable.Query) (datatable.FetchResult, error) {
		calls++
		return flatSource(recipientRows()).Fetch(ctx, q)
	})
	m := newTestModel(t, src, nil)
	m = executeCmd(t, m, m.Init())
	require.Equal(t, 1, calls)

	m = press(t, m, "n")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, m.snap.Pagination.Page)
	assert.Equal(t, "Barbara Liskov", m.table.Rows()[0][1])

	m = press(t, m, "p")
	assert.Equal(t, 0, m.snap.Pagination.Page)
}

func TestSearchIsPushedAsControlledInput(t *testing.T) {
	m := newTestModel(t, flatSource(recipientRows()), nil)
	m = executeCmd(t, m, m.Init())

	m = startSearch(t, m)
	m = typeText(t, m, "grace")
	m = press(t, m, "enter")

	assert.False(t, m.searching)
	assert.Equal(t, "grace", m.snap.View.SearchText)
	require.Len(t, m.table.Rows(), 1)
	assert.Equal(t, "Grace Hopper", m.table.Rows()[0][1])

	// esc abandons the edit
	m = startSearch(t, m)
	m = typeText(t, m, "zzz")
	m = press(t, m, "esc")
	assert.Equal(t, "grace", m.snap.View.SearchText)
}

func TestPanelsToggleOnCounterChanges(t *testing.T) {
	m := newTestModel(t, flatSource(recipientRows()), nil)
	m = executeCmd(t, m, m.Init())

	m = press(t, m, "f")
	assert.True(t, m.snap.FiltersOpen)
	assert.Equal(t, focusFilters, m.focus)
	assert.Equal(t, int64(1), m.counters.OpenFilters)

	m = press(t, m, "c")
	assert.True(t, m.snap.FiltersOpen)
	assert.True(t, m.snap.SettingsOpen)
	assert.Equal(t, focusSettings, m.focus)
	assert.Contains(t, m.View(), "Columns")

	m = press(t, m, "tab")
	assert.Equal(t, focusTable, m.focus)

	m = press(t, m, "f")
	assert.False(t, m.snap.FiltersOpen)

	m = press(t, m, "esc")
	assert.False(t, m.snap.SettingsOpen)
	assert.Equal(t, focusTable, m.focus)
}

func TestFilterCyclingRefreshes(t *testing.T) {
	m := newTestModel(t, flatSource(recipientRows()), nil)
	m = executeCmd(t, m, m.Init())

	m = press(t, m, "f", "right")
	assert.Equal(t, "Employee", m.snap.View.ActiveFilters["group"])
	assert.Equal(t, 3, m.snap.Pagination.TotalItems)

	m = press(t, m, "down", "right")
	assert.Equal(t, datatable.StatusSent, m.snap.View.ActiveFilters[datatable.FieldEmailStatus])
	require.Len(t, m.snap.Rows, 1)
	assert.Equal(t, "Alan Turing", m.snap.Rows[0]["name"])

	// cycling past the last value wraps to the sentinel
	m = press(t, m, "right", "right")
	_, active := m.snap.View.ActiveFilters[datatable.FieldEmailStatus]
	assert.False(t, active)

	m = press(t, m, "R")
	assert.Empty(t, m.snap.View.ActiveFilters)
	assert.Equal(t, "View reset", m.status)
}

func TestResetClearsSearchSoItCanBeReentered(t *testing.T) {
	m := newTestModel(t, flatSource(recipientRows()), nil)
	m = executeCmd(t, m, m.Init())

	m = startSearch(t, m)
	m = typeText(t, m, "alan")
	m = press(t, m, "enter", "R")
	assert.Empty(t, m.snap.View.SearchText)

	m = startSearch(t, m)
	m = typeText(t, m, "alan")
	m = press(t, m, "enter")
	assert.Equal(t, "alan", m.snap.View.SearchText)
	assert.Len(t, m.snap.Rows, 1)
}

func TestSortByColumnNumber(t *testing.T) {
	m := newTestModel(t, flatSource(recipientRows()), nil)
	m = executeCmd(t, m, m.Init())

	// first visible column is name, already ascending: toggles to desc
	m = press(t, m, "1")
	assert.Equal(t, datatable.SortDesc, m.snap.View.Sort.Direction)
	assert.Equal(t, "Grace Hopper", m.snap.Rows[0]["name"])
	assert.Contains(t, m.table.Columns()[1].Title, "▼")

	// out of range numbers are ignored
	m = press(t, m, "9")
	assert.Equal(t, "name", m.snap.View.Sort.Key)
}

func TestColumnSettings(t *testing.T) {
	m := newTestModel(t, flatSource(recipientRows()), nil)
	m = executeCmd(t, m, m.Init())
	before := len(m.snap.Columns)

	// cursor starts on the hidden id column
	m = press(t, m, "c", " ")
	assert.Len(t, m.snap.Columns, before+1)
	assert.Equal(t, "id", m.snap.Columns[0].Key)

	m = press(t, m, ">")
	assert.Equal(t, "name", m.snap.View.Columns[0].Key)
	assert.Equal(t, "id", m.snap.View.Columns[1].Key)
	assert.Equal(t, 1, m.settingsCursor)
}

func TestSelectionAndSend(t *testing.T) {
	gw := &recordingGateway{response: datatable.BulkResponse{
		Updated: []datatable.Row{{"id": 1, "emailSent": true, "lastEmailDate": "2026-10-01T09:00:00Z"}},
		Failed:  []datatable.FailureRecord{{ID: "3", Error: "mailbox unavailable"}},
	}}
	cp, err := campaign.Compile(campaign.Template{Subject: "Welcome", Body: "Hi {{ .name }}"})
	require.NoError(t, err)
	m := newTestModel(t, flatSource(recipientRows()), gw, WithCampaign(cp))
	m = executeCmd(t, m, m.Init())

	m = press(t, m, "a")
	assert.Len(t, m.snap.Selection, 2)
	assert.Equal(t, "[x]", m.table.Rows()[0][0])

	m = press(t, m, "x", " ")
	require.Len(t, m.snap.Selection, 1)
	m = press(t, m, "down", " ")
	require.Len(t, m.snap.Selection, 2)

	m = press(t, m, "e")
	assert.True(t, m.confirmSend)
	assert.Contains(t, m.status, `"Welcome"`)

	m = press(t, m, "e")
	assert.False(t, m.confirmSend)
	assert.Equal(t, []datatable.ID{"1", "3"}, gw.ids)
	assert.Equal(t, campaign.Template{Subject: "Welcome", Body: "Hi {{ .name }}"}, gw.payload)
	assert.Equal(t, "Sent 1, Failed 1", m.status)
	assert.True(t, m.statusErr)
	assert.Equal(t, datatable.StatusSent, m.snap.Rows[0][datatable.FieldEmailStatus])
}

func TestSendNeedsConfirmation(t *testing.T) {
	gw := &recordingGateway{}
	m := newTestModel(t, flatSource(recipientRows()), gw)
	m = executeCmd(t, m, m.Init())

	m = press(t, m, "e")
	assert.Equal(t, "Select at least one row to send", m.status)

	m = press(t, m, " ", "e", "q")
	assert.Equal(t, "Send cancelled", m.status)
	assert.Nil(t, gw.ids)
}

func TestCopyEmail(t *testing.T) {
	var copied string
	m := newTestModel(t, flatSource(recipientRows()), nil, WithClipboard(func(s string) error {
		copied = s
		return nil
	}))
	m = executeCmd(t, m, m.Init())

	m = press(t, m, "y")
	assert.Equal(t, "ada@example.com", copied)
	assert.Equal(t, "Copied ada@example.com", m.status)
}

func TestPermissionDeniedIsShown(t *testing.T) {
	src := datatable.DataSourceFunc(func(context.Context, datatable.Query) (datatable.FetchResult, error) {
		return nil, errors.New("403 Forbidden")
	})
	m := newTestModel(t, src, nil)
	m = executeCmd(t, m, m.Init())

	assert.True(t, m.snap.PermissionDenied)
	assert.Equal(t, datatable.PermissionDeniedMessage, m.status)
	assert.Contains(t, m.View(), datatable.PermissionDeniedMessage)
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, flatSource(nil), nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRenderStatic(t *testing.T) {
	m := newTestModel(t, flatSource(recipientRows()), nil)
	m = executeCmd(t, m, m.Init())
	m.ctrl.ToggleSelection("1")

	var out bytes.Buffer
	require.NoError(t, RenderStatic(&out, "Recipients", m.ctrl.Snapshot(), 80))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Recipients", lines[0])
	assert.Contains(t, lines[1], "NAME ▲")
	assert.True(t, strings.HasPrefix(lines[2], "*"))
	assert.Contains(t, lines[2], "ada@example.com")
	assert.Equal(t, "Page 1 of 3 · 5 total · 1 selected", lines[4])
}

func TestRenderStaticTruncates(t *testing.T) {
	ctrl := datatable.New(flatSource([]datatable.Row{
		{"id": 1, "note": strings.Repeat("x", 200)},
	}))
	require.NoError(t, ctrl.Refresh(context.Background()))

	var out bytes.Buffer
	require.NoError(t, RenderStatic(&out, "", ctrl.Snapshot(), 40))
	for _, line := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 60)
	}
	assert.Contains(t, out.String(), "…")
}

func TestRenderStaticEmpty(t *testing.T) {
	ctrl := datatable.New(flatSource(nil))
	require.NoError(t, ctrl.Refresh(context.Background()))

	var out bytes.Buffer
	require.NoError(t, RenderStatic(&out, "", ctrl.Snapshot(), 80))
	assert.Equal(t, "No data to display.\n", out.String())
}

func TestCalculateColumnWidths(t *testing.T) {
	widths, minWidths := calculateColumnWidths(
		[]string{"ID", "NAME"},
		[][]string{{"1", strings.Repeat("n", 100)}},
		30,
	)
	assert.Equal(t, []int{4, 4}, minWidths)
	assert.Equal(t, 4, widths[0])
	assert.Equal(t, 26, widths[1])
}

func TestStaleRefreshKeepsSpinnerForNewerFetch(t *testing.T) {
	m := newTestModel(t, flatSource(recipientRows()), nil)
	m = executeCmd(t, m, m.Init())

	m.loading = true
	m.ctrl.BeginFetch()
	updated, _ := m.Update(refreshedMsg{stale: true})
	m = updated.(*model)
	assert.True(t, m.loading, "the newer fetch has not completed")

	m = executeCmd(t, m, m.refresh())
	assert.False(t, m.loading)

	updated, _ = m.Update(refreshedMsg{stale: true})
	m = updated.(*model)
	assert.False(t, m.loading)
}
