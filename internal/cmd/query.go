package cmd

import (
	"fmt"
	"strings"

	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/util"
	"github.com/spf13/pflag"
)

const (
	SearchFlagName = "search"
	FilterFlagName = "filter"
	SortFlagName   = "sort"
	DescFlagName   = "desc"
)

// AddQueryFlags adds the flags narrowing a screen's rows.
func AddQueryFlags(flags *pflag.FlagSet) {
	flags.String(SearchFlagName, "", "Free text search over every column.")
	flags.StringArray(FilterFlagName, nil,
		`Filter on a field, as key=value. Repeat or comma separate for several.
The value 'all' clears the filter.`)
	flags.String(SortFlagName, "", "Field to sort by. Defaults to the screen's default sort.")
	flags.Bool(DescFlagName, false, "Sort in descending order.")
}

// ParseFilters turns key=value pairs into a map. Later keys win.
func ParseFilters(values []string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range util.SplitList(values...) {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// ApplyQueryFlags pushes the query flags into ctrl. It does not fetch.
func ApplyQueryFlags(flags *pflag.FlagSet, ctrl *datatable.Controller) error {
	search, err := flags.GetString(SearchFlagName)
	if err != nil {
		return err
	}
	ctrl.SetSearch(strings.TrimSpace(search))

	raw, err := flags.GetStringArray(FilterFlagName)
	if err != nil {
		return err
	}
	filters, err := ParseFilters(raw)
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	for k, v := range filters {
		ctrl.SetFilter(k, v)
	}

	key, err := flags.GetString(SortFlagName)
	if err != nil {
		return err
	}
	desc, err := flags.GetBool(DescFlagName)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = ctrl.Query().SortKey
		if key == "" {
			return nil
		}
		if !flags.Changed(DescFlagName) {
			return nil
		}
	}
	want := datatable.SortAsc
	if desc {
		want = datatable.SortDesc
	}
	// SetSort toggles, at most two calls reach any direction
	for i := 0; i < 2; i++ {
		q := ctrl.Query()
		if q.SortKey == key && q.SortDirection == want {
			return nil
		}
		ctrl.SetSort(key)
	}
	return nil
}
