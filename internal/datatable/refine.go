package datatable

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Refine applies search, filters and sort to a fully loaded list. It backs
// client mode, where the server returned everything and may have ignored
// the query. Filter keys a row does not carry are left to the server.
func Refine(rows []Row, q Query) []Row {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if search != "" && !rowContains(r, search) {
			continue
		}
		if !rowMatchesFilters(r, q.Filters) {
			continue
		}
		out = append(out, r)
	}
	if q.SortKey != "" {
		SortRows(out, q.SortKey, q.SortDirection)
	}
	return out
}

func rowContains(r Row, needle string) bool {
	for _, v := range r {
		if strings.Contains(strings.ToLower(FormatValue(v)), needle) {
			return true
		}
	}
	return false
}

func rowMatchesFilters(r Row, filters map[string]string) bool {
	for k, want := range filters {
		v, ok := r[k]
		if !ok {
			continue
		}
		if !valueMatches(v, want) {
			return false
		}
	}
	return true
}

func valueMatches(v any, want string) bool {
	want = strings.TrimSpace(want)
	if strings.EqualFold(FormatValue(v), want) {
		return true
	}
	if b, ok := v.(bool); ok {
		if parsed, err := strconv.ParseBool(want); err == nil {
			return parsed == b
		}
	}
	return strings.EqualFold(fmt.Sprint(v), want)
}

// SortRows stable-sorts rows in place by key. Numbers compare numerically,
// everything else by its display text ignoring case. Rows missing the key
// sort last in either direction.
func SortRows(rows []Row, key string, dir SortDirection) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := rows[i][key]
		b, bok := rows[j][key]
		if aok != bok || a == nil || b == nil {
			return (aok && a != nil) && !(bok && b != nil)
		}
		c := compareValues(a, b)
		if dir == SortDesc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(strings.ToLower(FormatValue(a)), strings.ToLower(FormatValue(b)))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
