package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// Attribute keys the friendly handler renders specially.
const (
	ErrorKey      = "error"
	SuggestionKey = "suggestion"
	TableKey      = "table"
)

// NewFriendlyErrorHandler renders error records for a console reader:
//
//	Error: [employees] fetch failed
//	  suggestion: check the base-url setting
//	  status: 500
func NewFriendlyErrorHandler(w io.Writer) slog.Handler {
	return &friendlyHandler{w: w}
}

type friendlyHandler struct {
	w      io.Writer
	attrs  []slog.Attr
	groups []string
}

type field struct {
	key   string
	value string
}

func (h *friendlyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *friendlyHandler) Handle(_ context.Context, record slog.Record) error {
	fields := h.fields(record)
	lookup := func(key string) string {
		for _, f := range fields {
			if f.key == key {
				return f.value
			}
		}
		return ""
	}

	summary := strings.TrimSpace(record.Message)
	if summary == "" {
		summary = lookup(ErrorKey)
	}
	if summary == "" {
		summary = "an unknown error occurred"
	}
	if table := lookup(TableKey); table != "" {
		summary = fmt.Sprintf("[%s] %s", table, summary)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", summary)
	if s := lookup(SuggestionKey); s != "" {
		fmt.Fprintf(&sb, "  %s: %s\n", SuggestionKey, s)
	}

	rest := make([]field, 0, len(fields))
	for _, f := range fields {
		switch f.key {
		case ErrorKey, SuggestionKey, TableKey:
			continue
		}
		if f.value != "" {
			rest = append(rest, f)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].key < rest[j].key })
	for _, f := range rest {
		writeField(&sb, f)
	}

	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *friendlyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *friendlyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *friendlyHandler) fields(record slog.Record) []field {
	out := make([]field, 0, len(h.attrs)+record.NumAttrs())
	add := func(a slog.Attr) bool {
		key := a.Key
		if len(h.groups) > 0 {
			key = strings.Join(append(append([]string{}, h.groups...), key), ".")
		}
		out = append(out, field{key: key, value: render(a.Value.Resolve())})
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	record.Attrs(add)
	return out
}

func render(val slog.Value) string {
	switch val.Kind() {
	case slog.KindGroup:
		parts := make([]string, 0, len(val.Group()))
		for _, a := range val.Group() {
			parts = append(parts, a.Key+"="+render(a.Value.Resolve()))
		}
		return strings.Join(parts, ", ")
	case slog.KindAny:
		if err, ok := val.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(val.Any())
	default:
		return val.String()
	}
}

func writeField(sb *strings.Builder, f field) {
	lines := strings.Split(strings.TrimSpace(f.value), "\n")
	fmt.Fprintf(sb, "  %s: %s\n", f.key, strings.TrimSpace(lines[0]))
	for _, line := range lines[1:] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			fmt.Fprintf(sb, "    %s\n", trimmed)
		}
	}
}
