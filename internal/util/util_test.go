package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDirCreatesParent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "config.yaml")

	require.NoError(t, InitDir(path, 0o755))
	info, err := os.Stat(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"id", "email", "name"}, SplitList("id, email", " ,name,"))
	assert.Nil(t, SplitList(""))
}
