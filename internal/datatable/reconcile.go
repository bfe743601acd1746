package datatable

import (
	"strings"
	"time"
)

// Aliases lists, per canonical field, the source field names probed in
// priority order when normalizing an update record.
type Aliases struct {
	ID        []string `json:"id" yaml:"id"`
	Timestamp []string `json:"timestamp" yaml:"timestamp"`
	Sent      []string `json:"sent" yaml:"sent"`
	// Nested names an object probed with the Timestamp aliases when the
	// top level carries none.
	Nested string `json:"nested" yaml:"nested"`
}

// DefaultAliases covers the field names used by the employee, candidate
// and recipient endpoints.
var DefaultAliases = Aliases{
	ID:        []string{"id", "userId", "employeeId", "candidateId"},
	Timestamp: []string{"lastEmailDate", "emailSentAt", "email_sent_at", "sentAt", "sent_at", "last_email_date"},
	Sent:      []string{"emailSent", "email_sent", "sent"},
	Nested:    "meta",
}

// aliasKeys are the names folded into canonical fields; they are not copied
// verbatim onto merged rows.
func (a Aliases) aliasKeys() map[string]struct{} {
	keys := make(map[string]struct{}, len(a.ID)+len(a.Timestamp)+len(a.Sent)+1)
	for _, group := range [][]string{a.ID, a.Timestamp, a.Sent} {
		for _, k := range group {
			keys[k] = struct{}{}
		}
	}
	if a.Nested != "" {
		keys[a.Nested] = struct{}{}
	}
	for _, canonical := range []string{FieldID, FieldEmailSent, FieldLastEmailDate} {
		delete(keys, canonical)
	}
	return keys
}

// Normalized is an update record reduced to its canonical fields.
type Normalized struct {
	ID           ID
	HasID        bool
	Email        string
	HasEmail     bool
	Timestamp    any
	HasTimestamp bool
	Sent         bool
	// Fields holds the non-alias fields of the record, merged onto rows.
	Fields Row
}

// Normalize derives the canonical id, timestamp and sent flag of record.
func (a Aliases) Normalize(record Row) Normalized {
	n := Normalized{Fields: Row{}}

	for _, k := range a.ID {
		if id, ok := ToID(record[k]); ok {
			n.ID, n.HasID = id, true
			break
		}
	}
	n.Email, n.HasEmail = normalizeEmail(record[FieldEmail])

	n.Timestamp, n.HasTimestamp = probeTimestamp(record, a.Timestamp)
	if !n.HasTimestamp && a.Nested != "" {
		if nested, ok := asRow(record[a.Nested]); ok {
			n.Timestamp, n.HasTimestamp = probeTimestamp(nested, a.Timestamp)
		}
	}

	for _, k := range a.Sent {
		if b, ok := record[k].(bool); ok && b {
			n.Sent = true
			break
		}
	}
	if n.HasTimestamp {
		n.Sent = true
	}

	skip := a.aliasKeys()
	for k, v := range record {
		if _, alias := skip[k]; alias {
			continue
		}
		n.Fields[k] = v
	}
	return n
}

func probeTimestamp(record Row, names []string) (any, bool) {
	for _, k := range names {
		v, ok := record[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func asRow(v any) (Row, bool) {
	switch m := v.(type) {
	case Row:
		return m, true
	case map[string]any:
		return Row(m), true
	}
	return nil, false
}

// merge folds other into n; later values win.
func (n Normalized) merge(other Normalized) Normalized {
	out := Normalized{
		ID:           n.ID,
		HasID:        n.HasID || other.HasID,
		Email:        n.Email,
		HasEmail:     n.HasEmail,
		Timestamp:    n.Timestamp,
		HasTimestamp: n.HasTimestamp,
		Sent:         n.Sent || other.Sent,
		Fields:       n.Fields.Clone(),
	}
	if other.HasID {
		out.ID = other.ID
	}
	if other.HasEmail {
		out.Email, out.HasEmail = other.Email, true
	}
	if other.HasTimestamp {
		out.Timestamp, out.HasTimestamp = other.Timestamp, true
	}
	for k, v := range other.Fields {
		out.Fields[k] = v
	}
	return out
}

// Reconciler merges bulk action update records into a row collection.
type Reconciler struct {
	Aliases Aliases
	// Upsert prepends id-bearing records that match no row.
	Upsert bool
	// Now stamps sent rows whose update carries no timestamp.
	Now func() time.Time
}

// NewReconciler returns a reconciler using DefaultAliases.
func NewReconciler() *Reconciler {
	return &Reconciler{Aliases: DefaultAliases, Now: time.Now}
}

// ReconcileResult reports the merged rows and per-record accounting.
type ReconcileResult struct {
	Rows []Row
	// Matched counts rows that received an update.
	Matched int
	// Inserted counts records prepended in upsert mode.
	Inserted int
	// Unmatched counts usable records that matched no row and were dropped.
	Unmatched int
	// UnmatchedIDs lists the ids of dropped id-bearing records, in reply order.
	UnmatchedIDs []ID
	// Skipped counts records with neither a usable id nor a usable email.
	Skipped int
}

// Reconcile merges updates into rows. Rows keep their order, no row is
// removed and no id is duplicated. Applying the same updates twice yields
// the same rows as applying them once.
func (r *Reconciler) Reconcile(rows []Row, updates []Row) ReconcileResult {
	aliases := r.Aliases
	if len(aliases.ID) == 0 {
		aliases = DefaultAliases
	}

	byID := map[ID]Normalized{}
	byEmail := map[string]Normalized{}
	var idOrder []ID
	res := ReconcileResult{}

	for _, rec := range updates {
		if rec == nil {
			res.Skipped++
			continue
		}
		n := aliases.Normalize(rec)
		switch {
		case n.HasID:
			if prev, ok := byID[n.ID]; ok {
				byID[n.ID] = prev.merge(n)
				continue
			}
			byID[n.ID] = n
			idOrder = append(idOrder, n.ID)
		case n.HasEmail:
			if prev, ok := byEmail[n.Email]; ok {
				byEmail[n.Email] = prev.merge(n)
				continue
			}
			byEmail[n.Email] = n
		default:
			res.Skipped++
		}
	}

	usedIDs := map[ID]struct{}{}
	usedEmails := map[string]struct{}{}
	existing := map[ID]struct{}{}
	out := make([]Row, 0, len(rows))

	for _, row := range rows {
		rowID, hasID := row.ID()
		if hasID {
			existing[rowID] = struct{}{}
		}
		var match Normalized
		var found bool
		if hasID {
			if match, found = byID[rowID]; found {
				usedIDs[rowID] = struct{}{}
			}
		}
		if !found {
			if email, ok := row.Email(); ok {
				if match, found = byEmail[email]; found {
					usedEmails[email] = struct{}{}
				}
			}
		}
		if !found {
			out = append(out, row)
			continue
		}
		out = append(out, r.apply(row, match))
		res.Matched++
	}

	var inserted []Row
	for _, id := range idOrder {
		if _, used := usedIDs[id]; used {
			continue
		}
		if _, dup := existing[id]; dup {
			continue
		}
		if !r.Upsert {
			res.Unmatched++
			res.UnmatchedIDs = append(res.UnmatchedIDs, id)
			continue
		}
		n := byID[id]
		row := r.apply(Row{FieldID: string(id)}, n)
		if raw, ok := n.Fields[FieldID]; ok {
			row[FieldID] = raw
		}
		inserted = append(inserted, row)
		existing[id] = struct{}{}
	}
	for email := range byEmail {
		if _, used := usedEmails[email]; !used {
			res.Unmatched++
		}
	}

	if len(inserted) > 0 {
		res.Inserted = len(inserted)
		out = append(inserted, out...)
	}
	res.Rows = out
	return res
}

func (r *Reconciler) apply(old Row, n Normalized) Row {
	merged := old.Clone()
	for k, v := range n.Fields {
		merged[k] = v
	}
	if _, ok := old.ID(); ok {
		merged[FieldID] = old[FieldID]
	}

	merged[FieldEmailSent] = n.Sent
	if n.Sent {
		merged[FieldEmailStatus] = StatusSent
		switch {
		case n.HasTimestamp:
			merged[FieldLastEmailDate] = n.Timestamp
		case alreadySent(old):
			merged[FieldLastEmailDate] = old[FieldLastEmailDate]
		default:
			merged[FieldLastEmailDate] = r.now().UTC().Format(time.RFC3339)
		}
		return merged
	}

	if status, ok := old[FieldEmailStatus].(string); ok && status != "" {
		merged[FieldEmailStatus] = status
	} else {
		merged[FieldEmailStatus] = StatusNotSent
	}
	if v, ok := old[FieldLastEmailDate]; ok {
		merged[FieldLastEmailDate] = v
	} else {
		delete(merged, FieldLastEmailDate)
	}
	return merged
}

func alreadySent(row Row) bool {
	sent, _ := row[FieldEmailSent].(bool)
	if !sent {
		return false
	}
	_, has := probeTimestamp(row, []string{FieldLastEmailDate})
	return has
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
