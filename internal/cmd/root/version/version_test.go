package version

import (
	"encoding/json"
	"testing"

	"github.com/kong/rosterctl/internal/build"
	"github.com/kong/rosterctl/internal/cmd/common"
	"github.com/kong/rosterctl/internal/config"
	"github.com/kong/rosterctl/internal/iostreams"
	"github.com/kong/rosterctl/test/cmd"
	testConfig "github.com/kong/rosterctl/test/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHelper(format common.OutputFormat, showCommit bool) (*cmd.MockHelper, *iostreams.IOStreams) {
	all, _, _, _ := iostreams.NewTestIOStreams()
	return &cmd.MockHelper{
		GetOutputFormatMock: func() (common.OutputFormat, error) { return format, nil },
		GetConfigMock: func() (config.Hook, error) {
			return testConfig.NewMapConfigHook(map[string]any{ShowCommitConfigPath: showCommit}), nil
		},
		GetStreamsMock: func() *iostreams.IOStreams { return &all },
		GetBuildInfoMock: func() (*build.Info, error) {
			return &build.Info{Version: "1.2.0", Commit: "abc123", Date: "2026-10-01"}, nil
		},
	}, &all
}

func Test_VersionCmd(t *testing.T) {
	helper, streams := newHelper(common.TEXT, false)
	require.NoError(t, run(helper))
	assert.Equal(t, "1.2.0\n", streams.Out.(interface{ String() string }).String())
}

func Test_VersionCmdShowCommit(t *testing.T) {
	helper, streams := newHelper(common.TEXT, true)
	require.NoError(t, run(helper))
	assert.Equal(t, "1.2.0 (abc123, 2026-10-01)\n", streams.Out.(interface{ String() string }).String())
}

func Test_VersionCmdJsonOutput(t *testing.T) {
	helper, streams := newHelper(common.JSON, false)
	require.NoError(t, run(helper))

	var actual map[string]any
	require.NoError(t, json.Unmarshal([]byte(streams.Out.(interface{ String() string }).String()), &actual))
	assert.Equal(t, map[string]any{"version": "1.2.0"}, actual)
}
