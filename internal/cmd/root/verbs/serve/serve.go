package serve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/kong/rosterctl/internal/cmd"
	"github.com/kong/rosterctl/internal/cmd/root/verbs"
	"github.com/kong/rosterctl/internal/fixture"
	"github.com/kong/rosterctl/internal/meta"
	"github.com/kong/rosterctl/internal/util/i18n"
	"github.com/kong/rosterctl/internal/util/normalizers"
	"github.com/spf13/cobra"
)

const (
	Verb = verbs.Serve

	AddrFlagName   = "addr"
	LegacyFlagName = "legacy"
	SeedFlagName   = "seed"

	DefaultAddr     = "127.0.0.1:8080"
	shutdownTimeout = 5 * time.Second
)

var (
	serveShort = i18n.T("root.verbs.serve.serveShort", "Run the development backend")

	serveLong = normalizers.LongDesc(i18n.T("root.verbs.serve.serveLong",
		`Serve seeded employee, candidate and recipient data with the same
response shapes as the production backend.

Employees are paginated by the server, candidates come back as a plain
array, recipients claim a single page and payroll always answers 403.
The send-email endpoints mark rows as sent and fail for bouncing
addresses.`))

	serveExamples = normalizers.Examples(i18n.T("root.verbs.serve.serveExamples",
		fmt.Sprintf(`
		# Serve the built-in seed data on the default address
		%[1]s serve
		# Reply to send-email without update records, like the legacy mailer
		%[1]s serve --addr :9090 --legacy
		`, meta.CLIName)))
)

func NewServeCmd() (*cobra.Command, error) {
	c := &cobra.Command{
		Use:     Verb.String(),
		Short:   serveShort,
		Long:    serveLong,
		Example: serveExamples,
		Args:    cobra.NoArgs,
		PersistentPreRun: func(c *cobra.Command, _ []string) {
			c.SetContext(context.WithValue(c.Context(), verbs.Verb, Verb))
		},
		RunE: func(c *cobra.Command, args []string) error {
			return run(cmd.BuildHelper(c, args))
		},
	}
	c.Flags().String(AddrFlagName, DefaultAddr, "Address to listen on.")
	c.Flags().Bool(LegacyFlagName, false, "Reply to send-email without update records.")
	c.Flags().String(SeedFlagName, "", "YAML file replacing the built-in seed data.")
	return c, nil
}

func loadStore(path string) (*fixture.Store, error) {
	if path == "" {
		return fixture.NewStore(fixture.DefaultSeed()), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := fixture.LoadSeed(raw)
	if err != nil {
		return nil, err
	}
	return fixture.NewStore(seed), nil
}

func run(helper cmd.Helper) error {
	flags := helper.GetCmd().Flags()
	addr, _ := flags.GetString(AddrFlagName)
	legacy, _ := flags.GetBool(LegacyFlagName)
	seedPath, _ := flags.GetString(SeedFlagName)

	logger, err := helper.GetLogger()
	if err != nil {
		return err
	}
	store, err := loadStore(seedPath)
	if err != nil {
		return &cmd.ConfigurationError{Err: fmt.Errorf("loading seed: %w", err)}
	}

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           fixture.NewRouter(store, fixture.Options{OmitUpdated: legacy, Logger: logger}),
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return cmd.PrepareExecutionError("failed to start the development backend", err, helper.GetCmd())
	}

	serveErrCh := make(chan error, 1)
	go func() {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErrCh <- err
	}()

	fmt.Fprintf(helper.GetStreams().Out, "Serving on http://%s/api (legacy=%t)\n", listener.Addr(), legacy)
	logger.Info("development backend started", "addr", listener.Addr().String(), "legacy", legacy)

	ctx := helper.GetContext()
	select {
	case <-ctx.Done():
		logger.Debug("received shutdown signal for development backend")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return cmd.PrepareExecutionError("development backend shutdown failed", err, helper.GetCmd())
		}
		return nil
	case err := <-serveErrCh:
		if err == nil {
			return nil
		}
		return cmd.PrepareExecutionError("development backend stopped unexpectedly", err, helper.GetCmd())
	}
}
