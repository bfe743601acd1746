package datatable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func people() []Row {
	return []Row{
		{"id": float64(1), "name": "Grace", "role": "engineer", "active": true, "age": float64(45)},
		{"id": float64(2), "name": "ada", "role": "manager", "active": false, "age": float64(36)},
		{"id": float64(3), "name": "Linus", "role": "engineer", "active": true},
	}
}

func TestRefineSearchIsCaseInsensitive(t *testing.T) {
	out := Refine(people(), Query{Search: "ADA"})
	assert.Equal(t, []ID{"2"}, IDs(out))
}

func TestRefineFilters(t *testing.T) {
	out := Refine(people(), Query{Filters: map[string]string{"role": "Engineer", "active": "true"}})
	assert.Equal(t, []ID{"1", "3"}, IDs(out))

	// keys no row carries are left to the server
	out = Refine(people(), Query{Filters: map[string]string{"department": "sales"}})
	assert.Len(t, out, 3)
}

func TestRefineSort(t *testing.T) {
	out := Refine(people(), Query{SortKey: "name", SortDirection: SortAsc})
	assert.Equal(t, []ID{"2", "1", "3"}, IDs(out))

	out = Refine(people(), Query{SortKey: "age", SortDirection: SortDesc})
	assert.Equal(t, []ID{"1", "2", "3"}, IDs(out), "missing values sort last")
}

func TestRefineKeepsInputOrder(t *testing.T) {
	in := people()
	_ = Refine(in, Query{SortKey: "name", SortDirection: SortDesc})
	assert.Equal(t, []ID{"1", "2", "3"}, IDs(in))
}
