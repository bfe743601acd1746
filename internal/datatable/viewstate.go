package datatable

import (
	"fmt"
	"sort"
	"strings"
)

// SortDirection is the direction of the active sort.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Flip returns the opposite direction.
func (d SortDirection) Flip() SortDirection {
	if d == SortDesc {
		return SortAsc
	}
	return SortDesc
}

// ParseSortDirection accepts "asc"/"desc" in any case; anything else is asc.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// Sort is the active sort key and direction. An empty key means unsorted.
type Sort struct {
	Key       string        `json:"key" yaml:"key"`
	Direction SortDirection `json:"direction" yaml:"direction"`
}

// ViewState owns the search text, filters, sort and column configuration
// of one table. Column mutations are display only.
type ViewState struct {
	searchText    string
	activeFilters map[string]string
	sort          Sort
	defaultSort   Sort

	columns      []ColumnDescriptor
	emptyFilters map[string]struct{}
}

// NewViewState creates the state for a table from its column descriptors.
// emptySentinels lists filter values, besides "", that mean "no filter".
func NewViewState(columns []ColumnDescriptor, defaultSort Sort, emptySentinels ...string) *ViewState {
	if defaultSort.Key != "" && defaultSort.Direction == "" {
		defaultSort.Direction = SortAsc
	}
	vs := &ViewState{
		activeFilters: map[string]string{},
		sort:          defaultSort,
		defaultSort:   defaultSort,
		columns:       normalizeColumns(columns),
		emptyFilters:  map[string]struct{}{"": {}},
	}
	for _, s := range emptySentinels {
		vs.emptyFilters[strings.TrimSpace(s)] = struct{}{}
	}
	return vs
}

func (v *ViewState) SearchText() string { return v.searchText }

func (v *ViewState) Sort() Sort { return v.sort }

// SetSearch replaces the search text. Each call is authoritative.
func (v *ViewState) SetSearch(text string) {
	v.searchText = text
}

// IsEmptyFilter reports whether value clears a filter.
func (v *ViewState) IsEmptyFilter(value string) bool {
	_, ok := v.emptyFilters[strings.TrimSpace(value)]
	return ok
}

// SetFilter replaces a single filter, keeping every other filter. An empty
// value, or one of the configured sentinels, removes the filter.
func (v *ViewState) SetFilter(key, value string) {
	if v.IsEmptyFilter(value) {
		delete(v.activeFilters, key)
		return
	}
	v.activeFilters[key] = value
}

// Filter returns the active value for key.
func (v *ViewState) Filter(key string) (string, bool) {
	val, ok := v.activeFilters[key]
	return val, ok
}

// ActiveFilters returns a copy of the active filters.
func (v *ViewState) ActiveFilters() map[string]string {
	out := make(map[string]string, len(v.activeFilters))
	for k, val := range v.activeFilters {
		out[k] = val
	}
	return out
}

// SetSort toggles the direction when key is already the sort key, and
// otherwise sorts ascending by key.
func (v *ViewState) SetSort(key string) {
	if key == v.sort.Key && key != "" {
		v.sort.Direction = v.sort.Direction.Flip()
		return
	}
	v.sort = Sort{Key: key, Direction: SortAsc}
}

// ResetAll clears the search text, every filter and the sort in one step.
func (v *ViewState) ResetAll() {
	v.searchText = ""
	v.activeFilters = map[string]string{}
	v.sort = v.defaultSort
}

// Columns returns the column descriptors in display order, including hidden ones.
func (v *ViewState) Columns() []ColumnDescriptor {
	out := make([]ColumnDescriptor, len(v.columns))
	copy(out, v.columns)
	return out
}

// VisibleColumns returns the visible columns in display order.
func (v *ViewState) VisibleColumns() []ColumnDescriptor {
	out := make([]ColumnDescriptor, 0, len(v.columns))
	for _, c := range v.columns {
		if c.Visible {
			out = append(out, c)
		}
	}
	return out
}

// Column returns the descriptor for key.
func (v *ViewState) Column(key string) (ColumnDescriptor, bool) {
	i := v.columnIndex(key)
	if i < 0 {
		return ColumnDescriptor{}, false
	}
	return v.columns[i], true
}

func (v *ViewState) columnIndex(key string) int {
	for i, c := range v.columns {
		if c.Key == key {
			return i
		}
	}
	return -1
}

// ToggleColumnVisibility flips the visibility of a column. The sort is kept
// even when the sorted column is hidden.
func (v *ViewState) ToggleColumnVisibility(key string) bool {
	i := v.columnIndex(key)
	if i < 0 {
		return false
	}
	v.columns[i].Visible = !v.columns[i].Visible
	return true
}

// SetColumnsVisible shows exactly the listed columns, hiding the rest.
// Unknown keys are ignored.
func (v *ViewState) SetColumnsVisible(keys []string) {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[strings.TrimSpace(k)] = struct{}{}
	}
	for i := range v.columns {
		_, ok := want[v.columns[i].Key]
		v.columns[i].Visible = ok
	}
}

// RenameColumn overrides a column label. An empty label restores the default.
func (v *ViewState) RenameColumn(key, label string) bool {
	i := v.columnIndex(key)
	if i < 0 {
		return false
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultLabel(key)
	}
	v.columns[i].Label = label
	return true
}

// ReorderColumn moves the column at from to index to, shifting the others.
func (v *ViewState) ReorderColumn(from, to int) error {
	n := len(v.columns)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("column index out of range: from=%d to=%d (columns=%d)", from, to, n)
	}
	if from == to {
		return nil
	}
	moved := v.columns[from]
	cols := append(v.columns[:from:from], v.columns[from+1:]...)
	cols = append(cols[:to], append([]ColumnDescriptor{moved}, cols[to:]...)...)
	for i := range cols {
		cols[i].Order = i
	}
	v.columns = cols
	return nil
}

// Query builds the data source query for the current state.
func (v *ViewState) Query(page, pageSize int) Query {
	return Query{
		Search:        v.searchText,
		Filters:       v.ActiveFilters(),
		SortKey:       v.sort.Key,
		SortDirection: v.sort.Direction,
		Page:          page,
		PageSize:      pageSize,
	}
}

// ViewSnapshot is a read-only copy of the view state.
type ViewSnapshot struct {
	SearchText    string             `json:"searchText" yaml:"searchText"`
	ActiveFilters map[string]string  `json:"activeFilters" yaml:"activeFilters"`
	Sort          Sort               `json:"sort" yaml:"sort"`
	Columns       []ColumnDescriptor `json:"-" yaml:"-"`
}

func (v *ViewState) Snapshot() ViewSnapshot {
	return ViewSnapshot{
		SearchText:    v.searchText,
		ActiveFilters: v.ActiveFilters(),
		Sort:          v.sort,
		Columns:       v.Columns(),
	}
}

// FilterKeys returns the active filter keys sorted.
func (s ViewSnapshot) FilterKeys() []string {
	keys := make([]string, 0, len(s.ActiveFilters))
	for k := range s.ActiveFilters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
