package datatable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rowsWithIDs(ids ...int) []Row {
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, Row{"id": float64(id)})
	}
	return rows
}

func TestSelectionToggle(t *testing.T) {
	s := NewSelection()
	assert.True(t, s.Toggle("1"))
	assert.True(t, s.Toggle("2"))
	assert.False(t, s.Toggle("1"))
	assert.Equal(t, []ID{"2"}, s.IDs())
	assert.True(t, s.Has("2"))
	assert.False(t, s.Has("1"))
}

func TestSelectionSelectAllAndClear(t *testing.T) {
	s := NewSelection()
	s.Toggle("9")
	s.SelectAll(rowsWithIDs(1, 2, 3))
	assert.Equal(t, []ID{"1", "2", "3"}, s.IDs())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.IDs())
}

func TestSelectionReconcileAfterLoadKeepsSubset(t *testing.T) {
	s := NewSelection()
	for _, id := range []ID{"1", "2", "3"} {
		s.Toggle(id)
	}

	dropped := s.ReconcileAfterLoad(rowsWithIDs(2, 3, 4))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []ID{"2", "3"}, s.IDs())
	assert.False(t, s.Has("4"), "reconcile never adds ids")
}

func TestSelectionSurvivesReorder(t *testing.T) {
	s := NewSelection()
	s.Toggle("1")
	s.Toggle("3")

	assert.Zero(t, s.ReconcileAfterLoad(rowsWithIDs(3, 2, 1)))
	assert.Equal(t, []ID{"1", "3"}, s.IDs())
}
