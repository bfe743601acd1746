package jq

import (
	"bytes"
	"testing"

	cmdcommon "github.com/kong/rosterctl/internal/cmd/common"
	testConfig "github.com/kong/rosterctl/test/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newCommand() *cobra.Command {
	command := &cobra.Command{Use: "test"}
	AddFlags(command.Flags())
	return command
}

func TestResolveSettingsDefaults(t *testing.T) {
	settings, err := ResolveSettings(newCommand(), nil)
	require.NoError(t, err)
	require.False(t, settings.Enabled())
	require.Equal(t, cmdcommon.ColorModeAuto, settings.ColorMode)
	require.Equal(t, DefaultTheme, settings.Theme)
}

func TestResolveSettingsEmptyFlagIsIdentity(t *testing.T) {
	command := newCommand()
	require.NoError(t, command.Flags().Set(FlagName, ""))

	cfg := testConfig.NewMapConfigHook(map[string]any{DefaultExpressionConfigPath: ".[].name"})
	settings, err := ResolveSettings(command, cfg)
	require.NoError(t, err)
	require.Equal(t, ".", settings.Filter)
}

func TestResolveSettingsShortRawFlagWithoutConfig(t *testing.T) {
	command := newCommand()
	require.NoError(t, command.Flags().Parse([]string{"-r"}))

	settings, err := ResolveSettings(command, nil)
	require.NoError(t, err)
	require.True(t, settings.RawOutput)
}

func TestResolveSettingsFromConfig(t *testing.T) {
	cfg := testConfig.NewMapConfigHook(map[string]any{
		DefaultExpressionConfigPath: ".[].email",
		ColorConfigPath:             "always",
		ThemeConfigPath:             "github",
		RawOutputConfigPath:         true,
	})

	settings, err := ResolveSettings(newCommand(), cfg)
	require.NoError(t, err)
	require.Equal(t, ".[].email", settings.Filter)
	require.Equal(t, cmdcommon.ColorModeAlways, settings.ColorMode)
	require.Equal(t, "github", settings.Theme)
	require.True(t, settings.RawOutput)
}

func TestResolveSettingsFlagWinsOverConfig(t *testing.T) {
	command := newCommand()
	require.NoError(t, command.Flags().Set(FlagName, ".foo"))
	cfg := testConfig.NewMapConfigHook(map[string]any{DefaultExpressionConfigPath: ".bar"})

	settings, err := ResolveSettings(command, cfg)
	require.NoError(t, err)
	require.Equal(t, ".foo", settings.Filter)
}

func TestResolveSettingsRejectsBadColor(t *testing.T) {
	cfg := testConfig.NewMapConfigHook(map[string]any{ColorConfigPath: "rainbow"})
	_, err := ResolveSettings(newCommand(), cfg)
	require.Error(t, err)
}

func TestResolveSettingsWithoutJQFlag(t *testing.T) {
	cfg := testConfig.NewMapConfigHook(map[string]any{DefaultExpressionConfigPath: ".[].name"})
	settings, err := ResolveSettings(&cobra.Command{Use: "test"}, cfg)
	require.NoError(t, err)
	require.False(t, settings.Enabled())
}

func TestValidate(t *testing.T) {
	err := Settings{Filter: "."}.Validate(cmdcommon.TEXT)
	require.ErrorContains(t, err, "only supported")

	err = Settings{RawOutput: true}.Validate(cmdcommon.JSON)
	require.ErrorContains(t, err, "requires")

	err = Settings{Filter: ".", RawOutput: true}.Validate(cmdcommon.YAML)
	require.ErrorContains(t, err, "--output json")

	require.NoError(t, Settings{Filter: "."}.Validate(cmdcommon.YAML))
	require.NoError(t, Settings{}.Validate(cmdcommon.TEXT))
}

func TestApplyReturnsFilteredValue(t *testing.T) {
	rows := []map[string]any{
		{"id": 1, "email": "ada@example.com"},
		{"id": 2, "email": "grace@example.com"},
	}
	settings := Settings{Filter: "[.[] | .email]", ColorMode: cmdcommon.ColorModeNever}

	result, written, err := settings.Apply(rows, cmdcommon.YAML, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, written)
	require.Equal(t, []any{"ada@example.com", "grace@example.com"}, result)
}

func TestApplyWithoutFilterPassesThrough(t *testing.T) {
	value := map[string]any{"a": 1}
	result, written, err := Settings{}.Apply(value, cmdcommon.TEXT, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, written)
	require.Equal(t, value, result)
}

func TestApplyColorizedWritesDirectly(t *testing.T) {
	settings := Settings{Filter: ".", ColorMode: cmdcommon.ColorModeAlways, Theme: DefaultTheme}

	buf := &bytes.Buffer{}
	result, written, err := settings.Apply(map[string]any{"id": 1}, cmdcommon.JSON, buf)
	require.NoError(t, err)
	require.True(t, written)
	require.Nil(t, result)
	require.Contains(t, buf.String(), "\x1b[")
}

func TestApplyRawOutput(t *testing.T) {
	rows := []map[string]any{{"name": "Ada"}, {"name": "Grace"}, {"name": 7}}
	settings := Settings{Filter: ".[].name", RawOutput: true}

	buf := &bytes.Buffer{}
	_, written, err := settings.Apply(rows, cmdcommon.JSON, buf)
	require.NoError(t, err)
	require.True(t, written)
	require.Equal(t, "Ada\nGrace\n7\n", buf.String())
}

func TestFilter(t *testing.T) {
	out, err := Filter([]byte(`{"items":[1,2,3]}`), ".items[] | select(. > 1)")
	require.NoError(t, err)
	require.JSONEq(t, `[2,3]`, string(out))

	out, err = Filter([]byte(`{"items":[]}`), ".items[]")
	require.NoError(t, err)
	require.Equal(t, "null", string(out))

	_, err = Filter([]byte(`{"foo":1}`), ".foo[")
	require.ErrorContains(t, err, "invalid jq expression")

	_, err = Filter([]byte(`not json`), ".")
	require.ErrorContains(t, err, "not valid JSON")
}
