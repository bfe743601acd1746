package datatable

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// FieldID is the canonical identifier field of every row.
	FieldID = "id"
	// FieldEmail is the secondary correlation key used when an update carries no id.
	FieldEmail = "email"

	FieldEmailSent     = "emailSent"
	FieldEmailStatus   = "emailStatus"
	FieldLastEmailDate = "lastEmailDate"

	StatusSent    = "Sent"
	StatusNotSent = "Not Sent"
)

// Row is an opaque record keyed by field name. Only "id" (required) and
// "email" (optional) carry meaning for the table.
type Row map[string]any

// ID is the comparable form of a row identifier.
type ID string

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the normalized identifier of the row.
func (r Row) ID() (ID, bool) {
	return ToID(r[FieldID])
}

// Email returns the lower-cased, trimmed email of the row.
func (r Row) Email() (string, bool) {
	return normalizeEmail(r[FieldEmail])
}

// ToID converts a raw identifier value into an ID. Numbers with an integral
// value render without a fraction so 1, 1.0, "1" and json.Number("1") are
// the same identifier.
func ToID(v any) (ID, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case ID:
		return val, val != ""
	case string:
		s := strings.TrimSpace(val)
		return ID(s), s != ""
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return ID(strconv.FormatInt(i, 10)), true
		}
		if f, err := val.Float64(); err == nil {
			return floatID(f)
		}
		return ID(val.String()), val.String() != ""
	case float64:
		return floatID(val)
	case float32:
		return floatID(float64(val))
	case int:
		return ID(strconv.Itoa(val)), true
	case int32:
		return ID(strconv.FormatInt(int64(val), 10)), true
	case int64:
		return ID(strconv.FormatInt(val, 10)), true
	case uint:
		return ID(strconv.FormatUint(uint64(val), 10)), true
	case uint32:
		return ID(strconv.FormatUint(uint64(val), 10)), true
	case uint64:
		return ID(strconv.FormatUint(val, 10)), true
	case bool:
		return "", false
	case fmt.Stringer:
		s := strings.TrimSpace(val.String())
		return ID(s), s != ""
	default:
		return "", false
	}
}

func floatID(f float64) (ID, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return ID(strconv.FormatInt(int64(f), 10)), true
	}
	return ID(strconv.FormatFloat(f, 'f', -1, 64)), true
}

func normalizeEmail(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s, s != ""
}

// IDs returns the identifiers of rows in order, skipping rows without one.
func IDs(rows []Row) []ID {
	out := make([]ID, 0, len(rows))
	for _, r := range rows {
		if id, ok := r.ID(); ok {
			out = append(out, id)
		}
	}
	return out
}

// FormatValue renders a raw cell value for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e18 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
