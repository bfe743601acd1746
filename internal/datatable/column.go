package datatable

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RenderFunc converts a cell value into its display form.
type RenderFunc func(value any, row Row) string

// ColumnDescriptor describes one table column. Order defines the display
// sequence and is mutable independently from Visible.
type ColumnDescriptor struct {
	Key      string
	Label    string
	Visible  bool
	Order    int
	ClassTag string
	Render   RenderFunc
}

// Display renders the column value of row.
func (c ColumnDescriptor) Display(row Row) string {
	v := row[c.Key]
	if c.Render != nil {
		return c.Render(v, row)
	}
	return FormatValue(v)
}

// DefaultLabel derives a human readable label from a field key, e.g.
// "lastEmailDate" and "last_email_date" both become "Last Email Date".
func DefaultLabel(key string) string {
	words := splitKey(key)
	if len(words) == 0 {
		return key
	}
	title := cases.Title(language.English)
	for i, w := range words {
		if isAcronym(w) {
			words[i] = strings.ToUpper(w)
			continue
		}
		words[i] = title.String(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

func isAcronym(w string) bool {
	switch strings.ToLower(w) {
	case "id", "url", "api", "hr":
		return true
	}
	return false
}

func splitKey(key string) []string {
	var words []string
	var current []rune
	runes := []rune(key)
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && len(current) > 0:
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				flush()
			}
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return words
}

// normalizeColumns copies descriptors, fills missing labels, and assigns a
// stable order. Descriptors without an explicit order keep their position.
// Duplicate keys after the first are dropped.
func normalizeColumns(in []ColumnDescriptor) []ColumnDescriptor {
	out := make([]ColumnDescriptor, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, c := range in {
		if c.Key == "" {
			continue
		}
		if _, dup := seen[c.Key]; dup {
			continue
		}
		seen[c.Key] = struct{}{}
		if c.Label == "" {
			c.Label = DefaultLabel(c.Key)
		}
		if c.Order == 0 {
			c.Order = i
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		out[i].Order = i
	}
	return out
}

// ColumnsFromRows infers descriptors from the keys of the first row, with
// "id" first and the rest alphabetically. Used when a table is configured
// without columns.
func ColumnsFromRows(rows []Row) []ColumnDescriptor {
	if len(rows) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		if k == FieldID {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if _, ok := rows[0][FieldID]; ok {
		keys = append([]string{FieldID}, keys...)
	}
	cols := make([]ColumnDescriptor, 0, len(keys))
	for i, k := range keys {
		cols = append(cols, ColumnDescriptor{Key: k, Label: DefaultLabel(k), Visible: true, Order: i})
	}
	return cols
}
