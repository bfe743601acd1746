package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Options configures the process logger.
type Options struct {
	// Level is a config level string: trace, debug, info, warn or error.
	Level string
	// File receives every enabled record. Empty means ErrOut only.
	File string
	// ErrOut receives friendly renderings of error records.
	ErrOut io.Writer
}

// New builds the CLI logger: a text handler writing to the log file, with
// error records mirrored to ErrOut in a friendly format. The returned
// closer releases the log file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := ConfigLevelStringToSlogLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	var secondary slog.Handler
	if opts.ErrOut != nil {
		secondary = NewFriendlyErrorHandler(opts.ErrOut)
	}

	if opts.File == "" {
		return slog.New(NewDualHandler(nil, secondary)), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	primary := slog.NewTextHandler(f, handlerOpts)
	return slog.New(NewDualHandler(primary, secondary)), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
