// Package jq filters structured command output with jq expressions.
package jq

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/itchyny/gojq"
	cmdpkg "github.com/kong/rosterctl/internal/cmd"
	cmdcommon "github.com/kong/rosterctl/internal/cmd/common"
	"github.com/kong/rosterctl/internal/config"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	FlagName           = "jq"
	ColorFlagName      = "jq-color"
	RawOutputFlagName  = "jq-raw-output"
	RawOutputFlagShort = "r"

	DefaultExpressionConfigPath = "jq.default-expression"
	ColorConfigPath             = "jq.color"
	ThemeConfigPath             = "jq.theme"
	RawOutputConfigPath         = "jq.raw-output"

	DefaultTheme = "friendly"
)

var queries sync.Map

// Settings are the resolved jq options of one command execution.
type Settings struct {
	Filter    string
	ColorMode cmdcommon.ColorMode
	Theme     string
	RawOutput bool
}

// Enabled reports whether a filter expression is set.
func (s Settings) Enabled() bool {
	return strings.TrimSpace(s.Filter) != ""
}

func AddFlags(flags *pflag.FlagSet) {
	flags.String(FlagName, "",
		fmt.Sprintf(`Filter the JSON output with a jq expression.
- Config path: [ %s ] (used when the flag is not set)`, DefaultExpressionConfigPath))

	color := cmdpkg.NewEnum([]string{
		cmdcommon.ColorModeAuto.String(),
		cmdcommon.ColorModeAlways.String(),
		cmdcommon.ColorModeNever.String(),
	}, cmdcommon.DefaultColorMode)
	flags.Var(color, ColorFlagName,
		fmt.Sprintf(`Colorize jq results.
- Config path: [ %s ]
- Allowed    : [ auto|always|never ]`, ColorConfigPath))

	flags.BoolP(RawOutputFlagName, RawOutputFlagShort, false,
		fmt.Sprintf(`Print string results without quotes, like jq -r.
- Config path: [ %s ]`, RawOutputConfigPath))
}

// BindFlags binds the jq flags to their configuration paths.
func BindFlags(cfg config.Hook, flags *pflag.FlagSet) error {
	if cfg == nil || flags == nil {
		return nil
	}
	for flag, path := range map[string]string{
		ColorFlagName:     ColorConfigPath,
		RawOutputFlagName: RawOutputConfigPath,
	} {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := cfg.BindFlag(path, f); err != nil {
			return err
		}
	}
	return nil
}

// ResolveSettings reads the jq flags of command, falling back on cfg.
// Commands without a --jq flag never filter.
func ResolveSettings(command *cobra.Command, cfg config.Hook) (Settings, error) {
	settings := Settings{Theme: DefaultTheme}
	if command == nil || command.Flags().Lookup(FlagName) == nil {
		return settings, nil
	}
	flags := command.Flags()

	filter, err := flags.GetString(FlagName)
	if err != nil {
		return Settings{}, err
	}
	filter = strings.TrimSpace(filter)
	switch {
	case flags.Changed(FlagName) && filter == "":
		filter = "."
	case !flags.Changed(FlagName) && cfg != nil:
		filter = strings.TrimSpace(cfg.GetString(DefaultExpressionConfigPath))
	}
	settings.Filter = filter

	if cfg == nil {
		if flags.Lookup(RawOutputFlagName) != nil {
			settings.RawOutput, err = flags.GetBool(RawOutputFlagName)
		}
		return settings, err
	}

	mode, err := cmdcommon.ColorModeStringToIota(strings.ToLower(strings.TrimSpace(cfg.GetString(ColorConfigPath))))
	if err != nil {
		return Settings{}, err
	}
	settings.ColorMode = mode
	if theme := strings.TrimSpace(cfg.GetString(ThemeConfigPath)); theme != "" {
		settings.Theme = theme
	}
	settings.RawOutput = cfg.GetBool(RawOutputConfigPath)
	return settings, nil
}

// Validate rejects option combinations the output format cannot honor.
func (s Settings) Validate(outType cmdcommon.OutputFormat) error {
	if s.RawOutput && !s.Enabled() {
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("--%s requires --%s", RawOutputFlagName, FlagName),
		}
	}
	if s.RawOutput && outType != cmdcommon.JSON {
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("--%s is only supported with --output json", RawOutputFlagName),
		}
	}
	if s.Enabled() && outType == cmdcommon.TEXT {
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("--%s is only supported with --output json or --output yaml", FlagName),
		}
	}
	return nil
}

// Apply filters value. When the result was written to out already, as raw
// or colorized output, written is true and the caller prints nothing.
func (s Settings) Apply(value any, outType cmdcommon.OutputFormat, out io.Writer) (result any, written bool, err error) {
	if !s.Enabled() {
		return value, false, nil
	}
	if err := s.Validate(outType); err != nil {
		return nil, false, err
	}

	body, err := json.Marshal(value)
	if err != nil {
		return nil, false, fmt.Errorf("encoding output for jq: %w", err)
	}
	results, err := evaluate(body, s.Filter)
	if err != nil {
		return nil, false, err
	}

	if s.RawOutput {
		return nil, true, writeRaw(results, out)
	}

	filtered, err := encode(results)
	if err != nil {
		return nil, false, err
	}
	if outType == cmdcommon.JSON && ShouldUseColor(s.ColorMode, out) {
		_, err := fmt.Fprintln(out, strings.TrimRight(Colorize(filtered, s.Theme), "\n"))
		return nil, true, err
	}

	var decoded any
	if err := json.Unmarshal(filtered, &decoded); err != nil {
		return nil, false, fmt.Errorf("decoding jq result: %w", err)
	}
	return decoded, false, nil
}

// Filter evaluates filter against a JSON document and encodes the results:
// null for none, the value for one, an array for several.
func Filter(body []byte, filter string) ([]byte, error) {
	results, err := evaluate(body, filter)
	if err != nil {
		return nil, err
	}
	return encode(results)
}

func evaluate(body []byte, filter string) ([]any, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		filter = "."
	}
	if len(body) == 0 {
		return nil, errors.New("output is empty, cannot apply jq filter")
	}

	var input any
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w", err)
	}
	code, err := compile(filter)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq filter failed: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

func compile(filter string) (*gojq.Code, error) {
	if code, ok := queries.Load(filter); ok {
		return code.(*gojq.Code), nil
	}
	parsed, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	queries.Store(filter, code)
	return code, nil
}

func encode(results []any) ([]byte, error) {
	var v any
	switch len(results) {
	case 0:
	case 1:
		v = results[0]
	default:
		v = results
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding jq result: %w", err)
	}
	return out, nil
}

func writeRaw(results []any, out io.Writer) error {
	for _, r := range results {
		line, ok := r.(string)
		if !ok {
			encoded, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encoding jq result: %w", err)
			}
			line = string(encoded)
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

var terminalDetector = func(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ShouldUseColor resolves mode for out. Auto honors NO_COLOR and only
// colors terminals.
func ShouldUseColor(mode cmdcommon.ColorMode, out io.Writer) bool {
	switch mode {
	case cmdcommon.ColorModeAlways:
		return true
	case cmdcommon.ColorModeNever:
		return false
	}
	if _, disabled := os.LookupEnv("NO_COLOR"); disabled {
		return false
	}
	if fw, ok := out.(interface{ Fd() uintptr }); ok {
		return terminalDetector(fw.Fd())
	}
	return false
}

// Colorize pretty prints a JSON document with a chroma style. Input that
// fails to tokenize is returned indented but uncolored.
func Colorize(body []byte, theme string) string {
	formatted := string(body)
	var indented bytes.Buffer
	if err := json.Indent(&indented, body, "", "  "); err == nil {
		formatted = indented.String()
	}

	lexer := lexers.Get("json")
	formatter := formatters.Get("terminal256")
	if lexer == nil || formatter == nil {
		return formatted
	}
	iterator, err := lexer.Tokenise(nil, formatted)
	if err != nil {
		return formatted
	}
	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return formatted
	}
	return buf.String()
}
