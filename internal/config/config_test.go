package config

import (
	"path/filepath"
	"testing"
	"time"

	utilviper "github.com/kong/rosterctl/internal/util/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProfiledConfig_ProfileEnvWithDashes(t *testing.T) {
	t.Setenv("ROSTERCTL_TEAM_A_B_C_BASE_URL", "http://hr.example")

	profile := "team-a-b-c"
	mainv := utilviper.NewViper("nonexistent.yaml")
	mainv.Set(profile, map[string]any{})

	cfg := BuildProfiledConfig(profile, "nonexistent.yaml", mainv)
	assert.Equal(t, "http://hr.example", cfg.GetString(BaseURLConfigPath))
}

func TestBuildProfiledConfig_MissingProfileReadsEnv(t *testing.T) {
	t.Setenv("ROSTERCTL_STAGING_TABLE_PAGE_SIZE", "50")

	cfg := BuildProfiledConfig("staging", "nonexistent.yaml", utilviper.NewViper("nonexistent.yaml"))
	assert.Equal(t, 50, cfg.GetIntOrElse(PageSizeConfigPath, 10))
	assert.Equal(t, 7, cfg.GetIntOrElse("table.unknown", 7))
}

func TestGetConfigInitializesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rosterctl", "config.yaml")

	cfg, err := GetConfig(path, DefaultProfile, path)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.GetString(OutputConfigPath))
	assert.Equal(t, DefaultBaseURL, cfg.GetString(BaseURLConfigPath))
	assert.Equal(t, 10, cfg.GetInt(PageSizeConfigPath))
	assert.Equal(t, DefaultRequestTimeout, cfg.GetDuration(RequestTimeoutConfigPath))
	assert.Equal(t, filepath.Join(filepath.Dir(path), "logs", "rosterctl.log"), cfg.GetString(LogFileConfigPath))
	assert.Equal(t, DefaultProfile, cfg.GetProfile())
	assert.Equal(t, path, cfg.GetPath())
	assert.Equal(t, 30*time.Second, cfg.GetDuration(RequestTimeoutConfigPath))
}

func TestGetConfigRejectsMissingCustomPath(t *testing.T) {
	dir := t.TempDir()
	_, err := GetConfig(filepath.Join(dir, "custom.yaml"), DefaultProfile, filepath.Join(dir, "default.yaml"))
	assert.Error(t, err)
}

func TestScreenConfigPaths(t *testing.T) {
	assert.Equal(t, "screens.employees.path", ScreenPathConfigPath("employees"))
	assert.Equal(t, "screens.candidates.rows-query", ScreenRowsQueryConfigPath("candidates"))
}
