package cmd

import (
	"errors"
	"log/slog"

	"github.com/kong/rosterctl/internal/config"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/screens"
)

var errMissingScreen = errors.New("a screen name is required")

// ScreenSession bundles what a command needs to work on one screen.
type ScreenSession struct {
	Screen     screens.Screen
	Controller *datatable.Controller
	Config     config.Hook
	Logger     *slog.Logger
}

// OpenScreen resolves the screen named by the first argument and builds its
// controller against the configured backend.
func OpenScreen(helper Helper, extra ...datatable.Option) (*ScreenSession, error) {
	args := helper.GetArgs()
	if len(args) == 0 {
		return nil, &ConfigurationError{Err: errMissingScreen}
	}
	screen, err := screens.Lookup(args[0])
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	cfg, err := helper.GetConfig()
	if err != nil {
		return nil, err
	}
	logger, err := helper.GetLogger()
	if err != nil {
		return nil, err
	}
	client, err := helper.GetBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctrl, err := screen.Open(client, cfg, logger, extra...)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return &ScreenSession{
		Screen:     screen.WithOverrides(cfg),
		Controller: ctrl,
		Config:     cfg,
		Logger:     logger,
	}, nil
}

// FetchError converts a controller fetch failure into an ExecutionError
// carrying the text shown to users.
func FetchError(helper Helper, err error) error {
	if err == nil {
		return nil
	}
	fe := datatable.ClassifyFetchError(err)
	return PrepareExecutionErrorWithHelper(helper, fe.UserMessage(), fe, "kind", fe.Kind.String())
}
