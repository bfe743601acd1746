package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// CheckError prints err and exits. Only used during command tree setup,
// before any command runs.
func CheckError(err error) {
	cobra.CheckErr(err)
}

// InitDir creates the parent directory of path with the given mode
func InitDir(path string, mode fs.FileMode) error {
	expandedDir := os.ExpandEnv(path)
	fullPath := filepath.Dir(expandedDir)
	return os.MkdirAll(fullPath, mode)
}

// SplitList splits a comma separated flag value, dropping blanks.
func SplitList(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
