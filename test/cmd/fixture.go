package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kong/rosterctl/internal/backend"
	"github.com/kong/rosterctl/internal/build"
	"github.com/kong/rosterctl/internal/cmd/common"
	"github.com/kong/rosterctl/internal/config"
	"github.com/kong/rosterctl/internal/fixture"
	"github.com/kong/rosterctl/internal/iostreams"
	"github.com/kong/rosterctl/internal/log"
	"github.com/spf13/cobra"
)

// FixtureRun is a MockHelper wired to an in-process fixture backend.
type FixtureRun struct {
	Helper *MockHelper
	Store  *fixture.Store
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
	In     *bytes.Buffer
}

// NewFixtureRun starts a fixture server for the test and returns a helper
// whose backend, streams, config and logger point at it. The format
// defaults to TEXT.
func NewFixtureRun(t testing.TB, c *cobra.Command, args []string, cfg config.Hook,
	format common.OutputFormat,
) *FixtureRun {
	t.Helper()
	store := fixture.NewStore(fixture.DefaultSeed())
	srv := httptest.NewServer(fixture.NewRouter(store, fixture.Options{}))
	t.Cleanup(srv.Close)

	streams, in, out, errOut := iostreams.NewTestIOStreams()
	logger := log.Discard()
	if c.Context() == nil {
		c.SetContext(context.Background())
	}

	helper := &MockHelper{
		GetCmdMock:          func() *cobra.Command { return c },
		GetArgsMock:         func() []string { return args },
		GetStreamsMock:      func() *iostreams.IOStreams { return &streams },
		GetConfigMock:       func() (config.Hook, error) { return cfg, nil },
		GetOutputFormatMock: func() (common.OutputFormat, error) { return format, nil },
		GetLoggerMock:       func() (*slog.Logger, error) { return logger, nil },
		GetBuildInfoMock:    func() (*build.Info, error) { return &build.Info{Version: "dev"}, nil },
		GetContextMock:      func() context.Context { return c.Context() },
		GetBackendMock: func(config.Hook, *slog.Logger) (*backend.Client, error) {
			return backend.NewClient(srv.URL+"/api", http.DefaultClient, logger)
		},
	}
	return &FixtureRun{Helper: helper, Store: store, Out: out, ErrOut: errOut, In: in}
}
