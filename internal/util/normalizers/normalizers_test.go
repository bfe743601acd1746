package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLongDesc(t *testing.T) {
	assert.Equal(t, "Use list to print.\n\nMore.", LongDesc("\n  Use list to print.\n\nMore.\n\t"))
}

func TestExamples(t *testing.T) {
	in := `
		# First page
		rosterctl list employees
		`
	assert.Equal(t, "  # First page\n  rosterctl list employees", Examples(in))
	assert.Equal(t, "", Examples("  \n "))
}
