package datatable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// MaxReportedFailures bounds the failures listed individually in a BulkSummary.
const MaxReportedFailures = 10

var (
	ErrNoGateway      = errors.New("table has no bulk action configured")
	ErrEmptySelection = errors.New("no rows selected")
)

type settings struct {
	name        string
	gateway     BulkActionGateway
	columns     []ColumnDescriptor
	pageSize    int
	empty       []string
	defaultSort Sort
	logger      *slog.Logger
	now         func() time.Time
	upsert      bool
	aliases     Aliases
	localRefine bool
	bulkVerb    string
	triggers    TriggerCounters
}

// Option configures a Controller.
type Option func(*settings)

// WithName labels the table in log records.
func WithName(name string) Option { return func(s *settings) { s.name = name } }

// WithGateway sets the bulk action collaborator.
func WithGateway(g BulkActionGateway) Option { return func(s *settings) { s.gateway = g } }

// WithColumns sets the column descriptors. Without them columns are derived
// from the first non-empty load.
func WithColumns(cols ...ColumnDescriptor) Option {
	return func(s *settings) { s.columns = append(s.columns, cols...) }
}

func WithPageSize(n int) Option { return func(s *settings) { s.pageSize = n } }

// WithEmptyFilterValues adds filter values that clear a filter, such as "all".
func WithEmptyFilterValues(values ...string) Option {
	return func(s *settings) { s.empty = append(s.empty, values...) }
}

func WithDefaultSort(sort Sort) Option { return func(s *settings) { s.defaultSort = sort } }

func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.logger = l } }

// WithClock sets the clock used to stamp sent rows lacking a timestamp.
func WithClock(now func() time.Time) Option { return func(s *settings) { s.now = now } }

// WithUpsert makes bulk updates that match no row prepend a new row. On a
// server page the visible rows stay capped at the page size.
func WithUpsert(enabled bool) Option { return func(s *settings) { s.upsert = enabled } }

func WithAliases(a Aliases) Option { return func(s *settings) { s.aliases = a } }

// WithLocalRefinement toggles applying search, filters and sort to fully
// loaded lists in client mode. Enabled by default.
func WithLocalRefinement(enabled bool) Option { return func(s *settings) { s.localRefine = enabled } }

// WithBulkVerb sets the word used for successes in the bulk summary.
func WithBulkVerb(verb string) Option { return func(s *settings) { s.bulkVerb = verb } }

// WithTriggers primes the panel edge detectors with the host's initial counters.
func WithTriggers(t TriggerCounters) Option { return func(s *settings) { s.triggers = t } }

// Controller is the state of one table: view state, selection, panels,
// pagination and the loaded rows. It is safe for concurrent use; data
// source and gateway calls are made without holding the lock.
type Controller struct {
	mu sync.Mutex

	name        string
	source      DataSource
	gateway     BulkActionGateway
	view        *ViewState
	selection   *Selection
	panels      *PanelSync
	reconciler  *Reconciler
	logger      *slog.Logger
	localRefine bool
	bulkVerb    string

	page       int
	pageSize   int
	pagination PaginationState

	seq     uint64
	loading bool
	rows    []Row
	visible []Row
	err     *FetchError

	controlledSearch *string
}

// New creates a controller reading from source.
func New(source DataSource, opts ...Option) *Controller {
	s := settings{
		pageSize:    DefaultPageSize,
		aliases:     DefaultAliases,
		now:         time.Now,
		localRefine: true,
		bulkVerb:    "Sent",
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.name != "" {
		s.logger = s.logger.With("table", s.name)
	}

	return &Controller{
		name:        s.name,
		source:      source,
		gateway:     s.gateway,
		view:        NewViewState(s.columns, s.defaultSort, s.empty...),
		selection:   NewSelection(),
		panels:      NewPanelSync(s.triggers),
		reconciler:  &Reconciler{Aliases: s.aliases, Upsert: s.upsert, Now: s.now},
		logger:      s.logger,
		localRefine: s.localRefine,
		bulkVerb:    s.bulkVerb,
		pageSize:    s.pageSize,
		pagination:  PaginationState{Mode: ModeServer, PageSize: s.pageSize},
		rows:        []Row{},
		visible:     []Row{},
	}
}

func (c *Controller) Name() string { return c.name }

// Ticket identifies one issued fetch.
type Ticket struct {
	Seq   uint64
	Query Query
}

// Outcome reports what ApplyFetch did with a result.
type Outcome struct {
	// Stale is set when a newer fetch was issued; nothing was applied.
	Stale bool
	// Refetch asks for another fetch: the requested page was out of range
	// and the page was clamped.
	Refetch bool
	// Err is the classified failure, if the fetch failed.
	Err *FetchError
	// DroppedSelection counts selected ids no longer present.
	DroppedSelection int
}

// BeginFetch issues a new fetch ticket for the current state. Any ticket
// issued before it becomes stale.
func (c *Controller) BeginFetch() Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.loading = true
	t := Ticket{Seq: c.seq, Query: c.view.Query(c.page, c.pageSize)}
	c.logger.Debug("fetch issued", "seq", t.Seq, "page", t.Query.Page,
		"search", t.Query.Search, "sort", t.Query.SortKey)
	return t
}

// ApplyFetch applies the result of the fetch identified by t. Results of
// stale tickets are discarded.
func (c *Controller) ApplyFetch(t Ticket, result FetchResult, err error) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.Seq != c.seq {
		c.logger.Debug("discarding stale fetch result", "seq", t.Seq, "latest", c.seq)
		return Outcome{Stale: true}
	}

	if err != nil {
		fe := ClassifyFetchError(err)
		c.loading = false
		c.err = fe
		c.rows = []Row{}
		c.visible = []Row{}
		c.pagination = PaginationState{Mode: ModeServer, PageSize: c.pageSize, TotalPages: 1}
		dropped := c.selection.ReconcileAfterLoad(c.rows)
		c.logger.Error("fetch failed", "seq", t.Seq, "kind", fe.Kind.String(), "error", fe.Err)
		return Outcome{Err: fe, DroppedSelection: dropped}
	}

	res := Resolve(result, t.Query.Page, c.pageSize)
	if res.Refetch {
		c.page = res.State.Page
		c.pagination = res.State
		c.logger.Debug("requested page out of range, refetching",
			"seq", t.Seq, "requested", t.Query.Page, "page", c.page)
		return Outcome{Refetch: true}
	}

	c.loading = false
	c.err = nil
	c.rows = res.Rows
	c.pagination = res.State
	c.page = res.State.Page
	if len(c.view.columns) == 0 && len(c.rows) > 0 {
		c.view.columns = normalizeColumns(ColumnsFromRows(c.rows))
	}
	c.recomputeLocked()
	dropped := c.selection.ReconcileAfterLoad(c.rows)

	c.logger.Debug("fetch applied", "seq", t.Seq, "mode", string(c.pagination.Mode),
		"page", c.pagination.Page, "total_pages", c.pagination.TotalPages,
		"rows", len(c.rows), "dropped_selection", dropped)
	return Outcome{DroppedSelection: dropped}
}

// Refresh fetches the current state synchronously, following page clamps.
func (c *Controller) Refresh(ctx context.Context) error {
	for attempt := 0; attempt < 3; attempt++ {
		t := c.BeginFetch()
		result, err := c.source.Fetch(ctx, t.Query)
		out := c.ApplyFetch(t, result, err)
		switch {
		case out.Stale:
			return ErrStaleResult
		case out.Err != nil:
			return out.Err
		case !out.Refetch:
			return nil
		}
	}
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	return fmt.Errorf("page did not settle after repeated clamps")
}

// recomputeLocked derives the visible slice from the held rows.
func (c *Controller) recomputeLocked() {
	if c.pagination.Mode != ModeClient {
		c.visible = c.rows
		return
	}
	rows := c.rows
	if c.localRefine {
		rows = Refine(rows, c.view.Query(0, c.pageSize))
	}
	res := Repaginate(rows, c.page, c.pageSize)
	c.pagination = res.State
	c.page = res.State.Page
	c.visible = res.Visible
}

// SetSearch replaces the search text. It reports whether a fetch is needed.
func (c *Controller) SetSearch(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == c.view.SearchText() {
		return false
	}
	c.view.SetSearch(text)
	c.page = 0
	return true
}

// SetFilter replaces one filter value. It reports whether a fetch is needed.
func (c *Controller) SetFilter(key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, had := c.view.Filter(key)
	c.view.SetFilter(key, value)
	now, has := c.view.Filter(key)
	if had == has && prev == now {
		return false
	}
	c.page = 0
	return true
}

// SetSort toggles the sort on key. It always needs a fetch.
func (c *Controller) SetSort(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.SetSort(key)
	return true
}

// ResetAll clears search and filters in one step; the caller fetches once.
func (c *Controller) ResetAll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return true
}

func (c *Controller) resetLocked() {
	c.view.ResetAll()
	c.page = 0
	c.logger.Debug("view reset")
}

// SetPage moves to page. In client mode the page is sliced locally and no
// fetch is needed.
func (c *Controller) SetPage(page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pagination.Mode == ModeClient {
		c.page = ClampPage(page, c.pagination.TotalPages)
		c.recomputeLocked()
		return false
	}
	if page < 0 {
		page = 0
	}
	if c.pagination.TotalPages > 0 && page > c.pagination.TotalPages-1 {
		page = c.pagination.TotalPages - 1
	}
	if page == c.page {
		return false
	}
	c.page = page
	return true
}

// NextPage and PrevPage step the page by one.
func (c *Controller) NextPage() bool { return c.SetPage(c.Pagination().Page + 1) }

func (c *Controller) PrevPage() bool { return c.SetPage(c.Pagination().Page - 1) }

// SetPageSize changes the page size and returns to the first page.
func (c *Controller) SetPageSize(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n == c.pageSize {
		return false
	}
	c.pageSize = n
	c.page = 0
	if c.pagination.Mode == ModeClient {
		c.recomputeLocked()
		return false
	}
	return true
}

func (c *Controller) ToggleColumnVisibility(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.ToggleColumnVisibility(key)
}

func (c *Controller) SetColumnsVisible(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.SetColumnsVisible(keys)
}

func (c *Controller) RenameColumn(key, label string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.RenameColumn(key, label)
}

func (c *Controller) ReorderColumn(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.ReorderColumn(from, to)
}

// ToggleSelection flips the selection of id.
func (c *Controller) ToggleSelection(id ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Toggle(id)
}

// SelectAll selects exactly the rows currently displayed.
func (c *Controller) SelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.SelectAll(c.visible)
}

func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Clear()
}

func (c *Controller) Selected() []ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.IDs()
}

// Inputs are the values the host pushes into the table on every cycle.
type Inputs struct {
	Triggers TriggerCounters
	// Search is the controlled search text; nil leaves search to the table.
	Search *string
}

// Observe applies host inputs. It returns the panel effects and whether a
// fetch is needed. Several changes in one observation need one fetch.
func (c *Controller) Observe(in Inputs) (PanelEffects, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fetch := false
	eff := c.panels.Observe(in.Triggers)
	if eff.Reset {
		c.resetLocked()
		fetch = true
	}
	if in.Search != nil {
		changed := c.controlledSearch == nil || *c.controlledSearch != *in.Search
		if changed {
			value := *in.Search
			c.controlledSearch = &value
			if value != c.view.SearchText() {
				c.view.SetSearch(value)
				c.page = 0
				fetch = true
			}
		}
	}
	return eff, fetch
}

// ClosePanels closes both panels, as a click outside of them does.
func (c *Controller) ClosePanels() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panels.CloseAll()
}

// ClosePanel closes one panel.
func (c *Controller) ClosePanel(p Panel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panels.Close(p)
}

func (c *Controller) Pagination() PaginationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pagination
}

// Query returns the query the next fetch would issue.
func (c *Controller) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Query(c.page, c.pageSize)
}

// Rows returns every row the table holds, in order.
func (c *Controller) Rows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Row(nil), c.rows...)
}

// Snapshot is the state exposed to the host for rendering.
type Snapshot struct {
	Name             string
	Rows             []Row
	Columns          []ColumnDescriptor
	View             ViewSnapshot
	Selection        []ID
	Pagination       PaginationState
	Loading          bool
	Error            string
	PermissionDenied bool
	FiltersOpen      bool
	SettingsOpen     bool
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Name:         c.name,
		Rows:         append([]Row(nil), c.visible...),
		Columns:      c.view.VisibleColumns(),
		View:         c.view.Snapshot(),
		Selection:    c.selection.IDs(),
		Pagination:   c.pagination,
		Loading:      c.loading,
		FiltersOpen:  c.panels.FiltersOpen(),
		SettingsOpen: c.panels.SettingsOpen(),
	}
	if c.err != nil {
		s.Error = c.err.UserMessage()
		s.PermissionDenied = c.err.Kind == FailurePermissionDenied
	}
	return s
}

// Cells renders the visible rows through the visible columns.
func (s Snapshot) Cells() [][]string {
	out := make([][]string, 0, len(s.Rows))
	for _, r := range s.Rows {
		line := make([]string, len(s.Columns))
		for i, col := range s.Columns {
			line[i] = col.Display(r)
		}
		out = append(out, line)
	}
	return out
}

// IsSelected reports whether id is part of the snapshot selection.
func (s Snapshot) IsSelected(id ID) bool {
	for _, v := range s.Selection {
		if v == id {
			return true
		}
	}
	return false
}

// BulkSummary is the outcome of a bulk action.
type BulkSummary struct {
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	// Failures lists at most MaxReportedFailures failures.
	Failures []FailureRecord `json:"failures,omitempty" yaml:"failures,omitempty"`
	// OmittedFailures counts failures beyond the reported ones.
	OmittedFailures int `json:"omittedFailures,omitempty" yaml:"omittedFailures,omitempty"`
	// Skipped counts update records that could not be correlated to a row.
	Skipped  int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Inserted int `json:"inserted,omitempty" yaml:"inserted,omitempty"`
	// Refetched is set when the reply carried no update records and the
	// table was reloaded instead.
	Refetched bool   `json:"refetched,omitempty" yaml:"refetched,omitempty"`
	Message   string `json:"message" yaml:"message"`
}

// RunBulkAction executes the configured bulk action for ids and merges the
// reply into the held rows.
func (c *Controller) RunBulkAction(ctx context.Context, ids []ID, payload any) (BulkSummary, error) {
	if c.gateway == nil {
		return BulkSummary{}, ErrNoGateway
	}
	if len(ids) == 0 {
		return BulkSummary{}, ErrEmptySelection
	}

	c.logger.Info("running bulk action", "ids", len(ids))
	resp, err := c.gateway.Execute(ctx, ids, payload)
	if err != nil {
		c.logger.Error("bulk action failed", "error", err)
		return BulkSummary{
			Failed:  len(ids),
			Message: fmt.Sprintf("Bulk action failed: %v", err),
		}, fmt.Errorf("bulk action: %w", err)
	}

	summary := BulkSummary{Failed: len(resp.Failed)}
	summary.Failures = resp.Failed
	if len(summary.Failures) > MaxReportedFailures {
		summary.OmittedFailures = len(summary.Failures) - MaxReportedFailures
		summary.Failures = summary.Failures[:MaxReportedFailures]
	}
	for _, f := range summary.Failures {
		c.logger.Warn("bulk action item failed", "id", string(f.ID), "reason", f.Error)
	}

	if resp.Updated == nil {
		summary.Succeeded = len(ids) - len(resp.Failed)
		if summary.Succeeded < 0 {
			summary.Succeeded = 0
		}
		summary.Refetched = true
		summary.Message = c.summaryText(summary)
		c.logger.Debug("bulk reply carried no updates, refetching")
		if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResult) {
			return summary, fmt.Errorf("refetch after bulk action: %w", err)
		}
		return summary, nil
	}

	c.mu.Lock()
	held := len(c.visible)
	result := c.reconciler.Reconcile(c.rows, resp.Updated)
	c.rows = result.Rows
	if len(c.view.columns) == 0 && len(c.rows) > 0 {
		c.view.columns = normalizeColumns(ColumnsFromRows(c.rows))
	}
	c.recomputeLocked()
	if c.pagination.Mode == ModeServer && result.Inserted > 0 {
		// inserted rows lead the page, rows pushed past it return on the next fetch
		if limit := max(c.pageSize, held); len(c.visible) > limit {
			c.visible = c.visible[:limit]
		}
	}
	c.mu.Unlock()

	if result.Skipped > 0 {
		c.logger.Debug("skipped uncorrelated update records", "skipped", result.Skipped)
	}
	summary.Succeeded = result.Matched + result.Inserted
	for _, id := range result.UnmatchedIDs {
		// sent, but the row is not held, such as one on another server page
		if slices.Contains(ids, id) {
			summary.Succeeded++
		}
	}
	summary.Skipped = result.Skipped
	summary.Inserted = result.Inserted
	summary.Message = c.summaryText(summary)
	c.logger.Info("bulk action finished", "succeeded", summary.Succeeded,
		"failed", summary.Failed, "matched", result.Matched, "unmatched", result.Unmatched)
	return summary, nil
}

func (c *Controller) summaryText(s BulkSummary) string {
	return fmt.Sprintf("%s %d, Failed %d", c.bulkVerb, s.Succeeded, s.Failed)
}
