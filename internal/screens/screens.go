// Package screens defines the list screens of the admin app and wires each
// one to a table controller.
package screens

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kong/rosterctl/internal/backend"
	"github.com/kong/rosterctl/internal/config"
	"github.com/kong/rosterctl/internal/datatable"
)

// AllValues is the filter sentinel meaning "no filter".
const AllValues = "all"

// Filter is a filter key with the values offered to the user. The first
// value is always AllValues.
type Filter struct {
	Key    string   `json:"key" yaml:"key"`
	Label  string   `json:"label" yaml:"label"`
	Values []string `json:"values" yaml:"values"`
}

// Screen is the static definition of a list screen.
type Screen struct {
	Name        string
	Title       string
	Path        string
	BulkPath    string
	BulkVerb    string
	Columns     []datatable.ColumnDescriptor
	Filters     []Filter
	DefaultSort datatable.Sort
	// Upsert inserts bulk update records that match no loaded row.
	Upsert bool
}

// HasBulkAction reports whether the screen can send emails.
func (s Screen) HasBulkAction() bool { return s.BulkPath != "" }

// Filter returns the filter definition for key.
func (s Screen) Filter(key string) (Filter, bool) {
	for _, f := range s.Filters {
		if f.Key == key {
			return f, true
		}
	}
	return Filter{}, false
}

func filter(key string, values ...string) Filter {
	return Filter{Key: key, Label: datatable.DefaultLabel(key), Values: append([]string{AllValues}, values...)}
}

func column(key string, order int, visible bool) datatable.ColumnDescriptor {
	return datatable.ColumnDescriptor{Key: key, Label: datatable.DefaultLabel(key), Order: order, Visible: visible}
}

func emailColumns(from int) []datatable.ColumnDescriptor {
	sent := column(datatable.FieldEmailStatus, from, true)
	sent.ClassTag = "status"
	date := column(datatable.FieldLastEmailDate, from+1, true)
	date.Render = renderTimestamp
	return []datatable.ColumnDescriptor{sent, date}
}

// renderTimestamp shortens RFC 3339 timestamps to minutes.
func renderTimestamp(v any, _ datatable.Row) string {
	s, ok := v.(string)
	if !ok {
		return datatable.FormatValue(v)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format("2006-01-02 15:04")
}

var registry = map[string]Screen{
	"employees": {
		Name:  "employees",
		Title: "Employees",
		Path:  "/employees",
		Columns: []datatable.ColumnDescriptor{
			column("id", 0, true),
			column("name", 1, true),
			column("email", 2, true),
			column("department", 3, true),
			column("role", 4, true),
			column("status", 5, true),
			column("startDate", 6, false),
		},
		Filters: []Filter{
			filter("department", "Engineering", "People", "Finance", "Sales", "Support"),
			filter("status", "Active", "On Leave"),
		},
		DefaultSort: datatable.Sort{Key: "name", Direction: datatable.SortAsc},
	},
	"candidates": {
		Name:     "candidates",
		Title:    "Candidates",
		Path:     "/candidates",
		BulkPath: "/candidates/send-email",
		BulkVerb: "Sent",
		Columns: append([]datatable.ColumnDescriptor{
			column("id", 0, true),
			column("name", 1, true),
			column("email", 2, true),
			column("position", 3, true),
			column("stage", 4, true),
		}, emailColumns(5)...),
		Filters: []Filter{
			filter("stage", "Applied", "Screening", "Interview", "Offer"),
			filter(datatable.FieldEmailSent, "true", "false"),
		},
		DefaultSort: datatable.Sort{Key: "id", Direction: datatable.SortAsc},
	},
	"recipients": {
		Name:     "recipients",
		Title:    "Email recipients",
		Path:     "/recipients",
		BulkPath: "/recipients/send-email",
		BulkVerb: "Sent",
		Columns: append([]datatable.ColumnDescriptor{
			column("id", 0, false),
			column("name", 1, true),
			column("email", 2, true),
			column("group", 3, true),
		}, emailColumns(4)...),
		Filters: []Filter{
			filter("group", "Employee", "Candidate"),
			filter(datatable.FieldEmailStatus, datatable.StatusSent, datatable.StatusNotSent),
		},
		DefaultSort: datatable.Sort{Key: "name", Direction: datatable.SortAsc},
		Upsert:      true,
	},
	"payroll": {
		Name:  "payroll",
		Title: "Payroll",
		Path:  "/payroll",
		Columns: []datatable.ColumnDescriptor{
			column("id", 0, true),
			column("name", 1, true),
			column("salary", 2, true),
		},
	},
}

// Names returns the screen names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the screen called name.
func Lookup(name string) (Screen, error) {
	s, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Screen{}, fmt.Errorf("unknown screen %q, must be one of %v", name, Names())
	}
	// column slices are shared by the registry
	s.Columns = append([]datatable.ColumnDescriptor(nil), s.Columns...)
	return s, nil
}

// WithOverrides applies the screens.<name>.* configuration settings.
func (s Screen) WithOverrides(cfg config.Hook) Screen {
	if p := cfg.GetString(config.ScreenPathConfigPath(s.Name)); p != "" {
		s.Path = p
	}
	if p := cfg.GetString(config.ScreenBulkPathConfigPath(s.Name)); p != "" {
		s.BulkPath = p
	}
	return s
}

// Open builds the controller for the screen. Extra options are applied
// after the screen's own.
func (s Screen) Open(client *backend.Client, cfg config.Hook, logger *slog.Logger,
	extra ...datatable.Option,
) (*datatable.Controller, error) {
	s = s.WithOverrides(cfg)
	src, err := client.NewSource(s.Path,
		backend.WithRowsQuery(cfg.GetString(config.ScreenRowsQueryConfigPath(s.Name))))
	if err != nil {
		return nil, fmt.Errorf("screen %s: %w", s.Name, err)
	}

	opts := []datatable.Option{
		datatable.WithName(s.Name),
		datatable.WithColumns(s.Columns...),
		datatable.WithPageSize(cfg.GetIntOrElse(config.PageSizeConfigPath, datatable.DefaultPageSize)),
		datatable.WithEmptyFilterValues(AllValues),
		datatable.WithDefaultSort(s.DefaultSort),
		datatable.WithUpsert(s.Upsert),
	}
	if logger != nil {
		opts = append(opts, datatable.WithLogger(logger))
	}
	if s.HasBulkAction() {
		opts = append(opts, datatable.WithGateway(client.NewGateway(s.BulkPath)))
		if s.BulkVerb != "" {
			opts = append(opts, datatable.WithBulkVerb(s.BulkVerb))
		}
	}
	return datatable.New(src, append(opts, extra...)...), nil
}
