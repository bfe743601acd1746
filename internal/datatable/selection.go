package datatable

// Selection is the set of selected row ids. Iteration follows insertion order.
type Selection struct {
	order []ID
	set   map[ID]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{set: map[ID]struct{}{}}
}

// Toggle adds id when absent and removes it otherwise. It reports whether
// id is selected afterwards.
func (s *Selection) Toggle(id ID) bool {
	if _, ok := s.set[id]; ok {
		s.remove(id)
		return false
	}
	s.add(id)
	return true
}

// Has reports whether id is selected.
func (s *Selection) Has(id ID) bool {
	_, ok := s.set[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Selection) Len() int { return len(s.order) }

// IDs returns the selected ids in the order they were selected.
func (s *Selection) IDs() []ID {
	out := make([]ID, len(s.order))
	copy(out, s.order)
	return out
}

// SelectAll sets the selection to exactly the ids of rows.
func (s *Selection) SelectAll(rows []Row) {
	s.Clear()
	for _, id := range IDs(rows) {
		s.add(id)
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.order = nil
	s.set = map[ID]struct{}{}
}

// ReconcileAfterLoad drops every selected id that is not present in rows and
// returns how many were dropped. Ids are never added.
func (s *Selection) ReconcileAfterLoad(rows []Row) int {
	if len(s.order) == 0 {
		return 0
	}
	present := make(map[ID]struct{}, len(rows))
	for _, id := range IDs(rows) {
		present[id] = struct{}{}
	}
	kept := s.order[:0]
	dropped := 0
	for _, id := range s.order {
		if _, ok := present[id]; ok {
			kept = append(kept, id)
			continue
		}
		delete(s.set, id)
		dropped++
	}
	s.order = kept
	return dropped
}

func (s *Selection) add(id ID) {
	if _, ok := s.set[id]; ok {
		return
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *Selection) remove(id ID) {
	delete(s.set, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
