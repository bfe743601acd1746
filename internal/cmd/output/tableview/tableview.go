// Package tableview is the interactive terminal host of a table controller.
package tableview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kong/rosterctl/internal/campaign"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/iostreams"
	"github.com/kong/rosterctl/internal/screens"
	"github.com/kong/rosterctl/internal/theme"
)

const (
	defaultWidth  = 120
	defaultHeight = 24
)

type focusArea int

const (
	focusTable focusArea = iota
	focusFilters
	focusSettings
)

type refreshedMsg struct {
	err   error
	stale bool
}

type bulkDoneMsg struct {
	summary datatable.BulkSummary
	err     error
}

type config struct {
	logger   *slog.Logger
	campaign *campaign.Campaign
	palette  *theme.Palette
	copy     func(string) error
	width    int
	height   int
}

type Option func(*config)

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithCampaign sets the template sent as bulk action payload.
func WithCampaign(cp *campaign.Campaign) Option { return func(c *config) { c.campaign = cp } }

func WithPalette(p theme.Palette) Option { return func(c *config) { c.palette = &p } }

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option { return func(c *config) { c.copy = fn } }

// WithSize sets the initial terminal size until the first resize event.
func WithSize(width, height int) Option {
	return func(c *config) {
		c.width = width
		c.height = height
	}
}

type model struct {
	ctx      context.Context
	ctrl     *datatable.Controller
	screen   screens.Screen
	campaign *campaign.Campaign
	logger   *slog.Logger
	palette  theme.Palette
	keys     keyMap
	copy     func(string) error

	table   table.Model
	search  textinput.Model
	spinner spinner.Model
	snap    datatable.Snapshot

	// host owned inputs pushed into the controller
	counters   datatable.TriggerCounters
	searchText string

	focus          focusArea
	filterCursor   int
	settingsCursor int
	searching      bool
	confirmSend    bool
	loading        bool
	status         string
	statusErr      bool
	width          int
	height         int
}

func newModel(ctx context.Context, ctrl *datatable.Controller, screen screens.Screen, opts ...Option) *model {
	cfg := config{
		copy:   clipboard.WriteAll,
		width:  defaultWidth,
		height: defaultHeight,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	palette := theme.FromContext(ctx)
	if cfg.palette != nil {
		palette = *cfg.palette
	}

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search"
	search.CharLimit = 128

	m := &model{
		ctx:      ctx,
		ctrl:     ctrl,
		screen:   screen,
		campaign: cfg.campaign,
		logger:   cfg.logger,
		keys:     defaultKeyMap(),
		copy:     cfg.copy,
		search:   search,
		width:    cfg.width,
		height:   cfg.height,
		table: table.New(
			table.WithFocused(true),
			table.WithKeyMap(tableKeyMap()),
		),
	}
	m.applyPalette(palette)
	m.observe()
	m.sync()
	return m
}

// Run shows the table until the user quits.
func Run(ctx context.Context, streams *iostreams.IOStreams, ctrl *datatable.Controller,
	screen screens.Screen, opts ...Option,
) error {
	if streams == nil || streams.Out == nil {
		return errors.New("tableview: output stream is not available")
	}
	width, height := defaultWidth, defaultHeight
	if w := streams.TerminalWidth(); w > 0 {
		width = w
	}
	opts = append([]Option{WithSize(width, height)}, opts...)
	m := newModel(ctx, ctrl, screen, opts...)
	program := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(streams.In),
		tea.WithOutput(streams.Out),
		tea.WithAltScreen(),
	)
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (m *model) applyPalette(p theme.Palette) {
	m.palette = p
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Foreground(p.Adaptive(theme.ColorTextPrimary)).
		Background(p.Adaptive(theme.ColorSurface)).
		Bold(true)
	styles.Cell = styles.Cell.
		Foreground(p.Adaptive(theme.ColorTextPrimary))
	styles.Selected = styles.Selected.
		Foreground(p.Adaptive(theme.ColorAccentText)).
		Background(p.Adaptive(theme.ColorAccent))
	m.table.SetStyles(styles)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = p.ForegroundStyle(theme.ColorAccent)
	m.spinner = s
}

func (m *model) Init() tea.Cmd {
	return m.refresh()
}

func (m *model) refresh() tea.Cmd {
	m.loading = true
	ctrl, ctx := m.ctrl, m.ctx
	fetch := func() tea.Msg {
		err := ctrl.Refresh(ctx)
		if errors.Is(err, datatable.ErrStaleResult) {
			return refreshedMsg{stale: true}
		}
		return refreshedMsg{err: err}
	}
	return tea.Batch(m.spinner.Tick, fetch)
}

func (m *model) send(ids []datatable.ID) tea.Cmd {
	m.loading = true
	ctrl, ctx := m.ctrl, m.ctx
	var payload any
	if m.campaign != nil {
		payload = m.campaign.Template()
	}
	run := func() tea.Msg {
		summary, err := ctrl.RunBulkAction(ctx, ids, payload)
		return bulkDoneMsg{summary: summary, err: err}
	}
	return tea.Batch(m.spinner.Tick, run)
}

// observe pushes the host owned counters and search text into the
// controller and follows the panel toggles with the focus.
func (m *model) observe() tea.Cmd {
	search := m.searchText
	eff, fetch := m.ctrl.Observe(datatable.Inputs{Triggers: m.counters, Search: &search})
	m.sync()
	for _, p := range eff.Toggled {
		open := m.snap.FiltersOpen
		target := focusFilters
		if p == datatable.PanelSettings {
			open = m.snap.SettingsOpen
			target = focusSettings
		}
		switch {
		case open:
			m.focus = target
		case m.focus == target:
			m.focus = focusTable
		}
	}
	if eff.Reset {
		m.setStatus("View reset", false)
	}
	if fetch {
		return m.refresh()
	}
	return nil
}

func (m *model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) { //nolint:ireturn
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sync()
		return m, nil
	case refreshedMsg:
		if msg.stale && m.ctrl.Snapshot().Loading {
			// a newer fetch is still in flight
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			fe := datatable.ClassifyFetchError(msg.err)
			m.setStatus(fe.UserMessage(), true)
			m.logger.Debug("refresh failed", "error", msg.err)
		} else if m.statusErr {
			m.setStatus("", false)
		}
		m.sync()
		return m, nil
	case bulkDoneMsg:
		m.loading = false
		if msg.err != nil {
			text := msg.summary.Message
			if text == "" {
				text = msg.err.Error()
			}
			m.setStatus(text, true)
		} else {
			m.setStatus(msg.summary.Message, msg.summary.Failed > 0)
		}
		m.sync()
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) { //nolint:ireturn
	if m.searching {
		return m, m.handleSearchKey(msg)
	}
	if m.confirmSend {
		m.confirmSend = false
		if key.Matches(msg, m.keys.Send) {
			ids := m.ctrl.Selected()
			m.setStatus(fmt.Sprintf("Sending to %d recipients...", len(ids)), false)
			return m, m.send(ids)
		}
		m.setStatus("Send cancelled", false)
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(m.snap.View.SearchText)
		m.search.CursorEnd()
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Filters):
		m.counters.OpenFilters++
		return m, m.observe()
	case key.Matches(msg, m.keys.Settings):
		m.counters.OpenSettings++
		return m, m.observe()
	case key.Matches(msg, m.keys.Reset):
		m.counters.Reset++
		m.searchText = ""
		return m, m.observe()
	case key.Matches(msg, m.keys.Close):
		m.ctrl.ClosePanels()
		m.focus = focusTable
		m.sync()
		return m, nil
	case key.Matches(msg, m.keys.Focus):
		m.cycleFocus()
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	}

	switch m.focus {
	case focusFilters:
		return m, m.handleFiltersKey(msg)
	case focusSettings:
		return m, m.handleSettingsKey(msg)
	}
	return m.handleTableKey(msg)
}

func (m *model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.searchText = strings.TrimSpace(m.search.Value())
		return m.observe()
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue(m.searchText)
		return nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return cmd
}

func (m *model) cycleFocus() {
	order := []focusArea{focusTable}
	if m.snap.FiltersOpen {
		order = append(order, focusFilters)
	}
	if m.snap.SettingsOpen {
		order = append(order, focusSettings)
	}
	for i, f := range order {
		if f == m.focus {
			m.focus = order[(i+1)%len(order)]
			return
		}
	}
	m.focus = focusTable
}

func (m *model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) { //nolint:ireturn
	switch {
	case key.Matches(msg, m.keys.Select):
		if id, ok := m.cursorID(); ok {
			m.ctrl.ToggleSelection(id)
			m.sync()
		}
		return m, nil
	case key.Matches(msg, m.keys.All):
		m.ctrl.SelectAll()
		m.sync()
		return m, nil
	case key.Matches(msg, m.keys.None):
		m.ctrl.ClearSelection()
		m.sync()
		return m, nil
	case key.Matches(msg, m.keys.NextPage):
		return m, m.afterPageChange(m.ctrl.NextPage())
	case key.Matches(msg, m.keys.PrevPage):
		return m, m.afterPageChange(m.ctrl.PrevPage())
	case key.Matches(msg, m.keys.Sort):
		n := int(msg.String()[0] - '1')
		if n >= len(m.snap.Columns) {
			return m, nil
		}
		m.ctrl.SetSort(m.snap.Columns[n].Key)
		return m, m.refresh()
	case key.Matches(msg, m.keys.Send):
		return m, m.askSend()
	case key.Matches(msg, m.keys.Copy):
		m.copyEmail()
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) afterPageChange(fetch bool) tea.Cmd {
	if fetch {
		return m.refresh()
	}
	m.sync()
	return nil
}

func (m *model) askSend() tea.Cmd {
	if !m.screen.HasBulkAction() {
		m.setStatus(fmt.Sprintf("%s has no bulk email action", m.screen.Title), true)
		return nil
	}
	n := len(m.snap.Selection)
	if n == 0 {
		m.setStatus("Select at least one row to send", true)
		return nil
	}
	subject := ""
	if m.campaign != nil {
		subject = fmt.Sprintf(" %q", m.campaign.Template().Subject)
	}
	m.confirmSend = true
	m.setStatus(fmt.Sprintf("Send%s to %d recipients? Press e again to confirm", subject, n), false)
	return nil
}

func (m *model) copyEmail() {
	row, ok := m.cursorRow()
	if !ok {
		return
	}
	email, ok := row.Email()
	if !ok {
		m.setStatus("Row has no email address", true)
		return
	}
	if err := m.copy(email); err != nil {
		m.setStatus(fmt.Sprintf("Unable to copy: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("Copied %s", email), false)
}

func (m *model) handleFiltersKey(msg tea.KeyMsg) tea.Cmd {
	filters := m.screen.Filters
	if len(filters) == 0 {
		return nil
	}
	switch {
	case key.Matches(msg, m.keys.Up):
		m.filterCursor = max(m.filterCursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.filterCursor = min(m.filterCursor+1, len(filters)-1)
	case key.Matches(msg, m.keys.Left):
		return m.cycleFilter(-1)
	case key.Matches(msg, m.keys.Right), key.Matches(msg, m.keys.Select):
		return m.cycleFilter(1)
	}
	return nil
}

func (m *model) cycleFilter(step int) tea.Cmd {
	f := m.screen.Filters[m.filterCursor]
	current := m.filterValue(f)
	idx := 0
	for i, v := range f.Values {
		if strings.EqualFold(v, current) {
			idx = i
			break
		}
	}
	n := len(f.Values)
	next := f.Values[((idx+step)%n+n)%n]
	if !m.ctrl.SetFilter(f.Key, next) {
		return nil
	}
	return m.refresh()
}

func (m *model) filterValue(f screens.Filter) string {
	if v, ok := m.snap.View.ActiveFilters[f.Key]; ok {
		return v
	}
	return screens.AllValues
}

func (m *model) handleSettingsKey(msg tea.KeyMsg) tea.Cmd {
	cols := m.snap.View.Columns
	if len(cols) == 0 {
		return nil
	}
	cur := clamp(m.settingsCursor, 0, len(cols)-1)
	switch {
	case key.Matches(msg, m.keys.Up):
		m.settingsCursor = max(cur-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.settingsCursor = min(cur+1, len(cols)-1)
	case key.Matches(msg, m.keys.Select):
		m.ctrl.ToggleColumnVisibility(cols[cur].Key)
	case key.Matches(msg, m.keys.MoveLeft):
		if cur > 0 && m.ctrl.ReorderColumn(cur, cur-1) == nil {
			m.settingsCursor = cur - 1
		}
	case key.Matches(msg, m.keys.MoveRight):
		if cur < len(cols)-1 && m.ctrl.ReorderColumn(cur, cur+1) == nil {
			m.settingsCursor = cur + 1
		}
	}
	m.sync()
	return nil
}

func (m *model) cursorRow() (datatable.Row, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.snap.Rows) {
		return nil, false
	}
	return m.snap.Rows[i], true
}

func (m *model) cursorID() (datatable.ID, bool) {
	row, ok := m.cursorRow()
	if !ok {
		return "", false
	}
	return row.ID()
}

// sync copies the controller snapshot into the table component.
func (m *model) sync() {
	m.snap = m.ctrl.Snapshot()
	headers := Headers(m.snap)
	cells := m.snap.Cells()

	// cell padding of the default styles plus the box frame
	avail := m.width - 4 - 2*(len(headers)+1) - markerWidth
	widths, _ := calculateColumnWidths(headers, cells, avail)

	columns := make([]table.Column, 0, len(headers)+1)
	columns = append(columns, table.Column{Title: " ", Width: markerWidth})
	for i, h := range headers {
		columns = append(columns, table.Column{Title: h, Width: widths[i]})
	}
	rows := make([]table.Row, len(cells))
	for i, line := range cells {
		marker := "[ ]"
		if id, ok := m.snap.Rows[i].ID(); ok && m.snap.IsSelected(id) {
			marker = "[x]"
		}
		rows[i] = append(table.Row{marker}, line...)
	}

	cursor := m.table.Cursor()
	// rows must never be wider than the columns the table renders
	m.table.SetRows(nil)
	m.table.SetColumns(columns)
	m.table.SetRows(rows)
	m.table.SetWidth(sum(widths) + markerWidth + 2*len(columns))
	m.table.SetHeight(clamp(len(rows)+1, 3, max(m.height-m.reservedHeight(), 3)))
	if len(rows) > 0 {
		m.table.SetCursor(clamp(cursor, 0, len(rows)-1))
	}
}

func (m *model) reservedHeight() int {
	// title, search, status, footer and the table frame
	reserved := 7
	if m.snap.FiltersOpen || m.snap.SettingsOpen {
		reserved += 2 + max(len(m.screen.Filters), len(m.snap.View.Columns))
	}
	return reserved
}

func (m *model) View() string {
	var sections []string

	title := m.palette.ForegroundStyle(theme.ColorAccent).Bold(true).Render(m.screen.Title)
	if m.loading {
		title += " " + m.spinner.View()
	}
	sections = append(sections, title)

	if m.searching {
		sections = append(sections, m.search.View())
	} else if m.snap.View.SearchText != "" {
		sections = append(sections, m.muted("search: "+m.snap.View.SearchText))
	}

	if panels := m.renderPanels(); panels != "" {
		sections = append(sections, panels)
	}

	body := m.table.View()
	switch {
	case m.snap.PermissionDenied:
		body = m.palette.ForegroundStyle(theme.ColorDanger).Render(m.snap.Error)
	case len(m.snap.Rows) == 0 && !m.loading:
		body = m.muted("No data to display.")
	}
	boxStyle := newBoxStyle(m.palette)
	if m.focus == focusTable {
		boxStyle = newFocusedBoxStyle(m.palette)
	}
	sections = append(sections, boxStyle.Render(body))

	sections = append(sections, m.muted(FooterText(m.snap)))
	if m.status != "" {
		token := theme.ColorSuccess
		if m.statusErr {
			token = theme.ColorDanger
		}
		sections = append(sections, m.palette.ForegroundStyle(token).Render(m.status))
	}
	sections = append(sections, m.muted(m.helpLine()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *model) muted(s string) string {
	return m.palette.ForegroundStyle(theme.ColorTextMuted).Render(s)
}

func (m *model) helpLine() string {
	var parts []string
	for _, b := range m.keys.helpBindings() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

func (m *model) renderPanels() string {
	var panels []string
	if m.snap.FiltersOpen {
		panels = append(panels, m.panelBox(m.focus == focusFilters, "Filters", m.filterLines()))
	}
	if m.snap.SettingsOpen {
		panels = append(panels, m.panelBox(m.focus == focusSettings, "Columns", m.settingsLines()))
	}
	if len(panels) == 0 {
		return ""
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panels...)
}

func (m *model) panelBox(focused bool, title string, lines []string) string {
	style := newBoxStyle(m.palette)
	if focused {
		style = newFocusedBoxStyle(m.palette)
	}
	head := m.palette.ForegroundStyle(theme.ColorTextSecondary).Bold(true).Render(title)
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, append([]string{head}, lines...)...))
}

func (m *model) filterLines() []string {
	if len(m.screen.Filters) == 0 {
		return []string{m.muted("No filters")}
	}
	lines := make([]string, len(m.screen.Filters))
	for i, f := range m.screen.Filters {
		lines[i] = m.cursorLine(m.focus == focusFilters && i == m.filterCursor,
			fmt.Sprintf("%s: ‹ %s ›", f.Label, m.filterValue(f)))
	}
	return lines
}

func (m *model) settingsLines() []string {
	cols := m.snap.View.Columns
	lines := make([]string, len(cols))
	for i, c := range cols {
		box := "[ ]"
		if c.Visible {
			box = "[x]"
		}
		lines[i] = m.cursorLine(m.focus == focusSettings && i == m.settingsCursor, box+" "+c.Label)
	}
	return lines
}

func (m *model) cursorLine(active bool, text string) string {
	if active {
		return m.palette.ForegroundStyle(theme.ColorAccent).Render("> " + text)
	}
	return "  " + text
}
