// Package fixture is an in-memory admin backend used by the serve command
// and by transport tests.
package fixture

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kong/rosterctl/internal/datatable"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// Seed is the data set a Store starts from.
type Seed struct {
	Employees  []datatable.Row `yaml:"employees"`
	Candidates []datatable.Row `yaml:"candidates"`
	Recipients []datatable.Row `yaml:"recipients"`
	Bounce     []string        `yaml:"bounce"`
}

// LoadSeed parses a YAML seed document.
func LoadSeed(raw []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed data: %w", err)
	}
	for name, rows := range map[string][]datatable.Row{
		"employees": s.Employees, "candidates": s.Candidates, "recipients": s.Recipients,
	} {
		for i, r := range rows {
			if _, ok := r.ID(); !ok {
				return Seed{}, fmt.Errorf("%s[%d] has no id", name, i)
			}
		}
	}
	return s, nil
}

// DefaultSeed returns the embedded seed data.
func DefaultSeed() Seed {
	s, err := LoadSeed(seedYAML)
	if err != nil {
		panic(err)
	}
	return s
}

// Store holds the mutable collections behind the fixture endpoints.
type Store struct {
	mu         sync.RWMutex
	collection map[string][]datatable.Row
	bounce     map[string]struct{}
	now        func() time.Time
}

// NewStore copies seed into a new store.
func NewStore(seed Seed) *Store {
	s := &Store{
		collection: map[string][]datatable.Row{
			CollectionEmployees:  cloneRows(seed.Employees),
			CollectionCandidates: cloneRows(seed.Candidates),
			CollectionRecipients: cloneRows(seed.Recipients),
		},
		bounce: map[string]struct{}{},
		now:    time.Now,
	}
	for _, e := range seed.Bounce {
		s.bounce[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return s
}

// Collection names.
const (
	CollectionEmployees  = "employees"
	CollectionCandidates = "candidates"
	CollectionRecipients = "recipients"
)

// Rows returns a copy of a collection.
func (s *Store) Rows(collection string) []datatable.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRows(s.collection[collection])
}

// Has reports whether collection exists.
func (s *Store) Has(collection string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collection[collection]
	return ok
}

// Bounces reports whether mail to email fails.
func (s *Store) Bounces(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bounce[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// sendResult is the outcome of marking one row as mailed.
type sendResult struct {
	ID     datatable.ID
	Row    datatable.Row
	Found  bool
	Err    string
	SentAt string
}

// markSent records a sent email for each id in collection.
func (s *Store) markSent(collection string, ids []datatable.ID) []sendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.collection[collection]
	index := make(map[datatable.ID]int, len(rows))
	for i, r := range rows {
		if id, ok := r.ID(); ok {
			index[id] = i
		}
	}
	sentAt := s.now().UTC().Format(time.RFC3339)
	out := make([]sendResult, 0, len(ids))
	for _, id := range ids {
		i, ok := index[id]
		if !ok {
			out = append(out, sendResult{ID: id, Err: "recipient not found"})
			continue
		}
		row := rows[i]
		email, _ := row.Email()
		if _, bounced := s.bounce[email]; bounced {
			out = append(out, sendResult{ID: id, Row: row.Clone(), Found: true, Err: "mailbox unavailable"})
			continue
		}
		row[datatable.FieldEmailSent] = true
		row[datatable.FieldEmailStatus] = datatable.StatusSent
		row[datatable.FieldLastEmailDate] = sentAt
		out = append(out, sendResult{ID: id, Row: row.Clone(), Found: true, SentAt: sentAt})
	}
	return out
}

func cloneRows(rows []datatable.Row) []datatable.Row {
	out := make([]datatable.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
