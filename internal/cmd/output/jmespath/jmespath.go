// Package jmespath selects parts of structured command output with JMESPath
// expressions.
package jmespath

import (
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath/go-jmespath"
	cmdpkg "github.com/kong/rosterctl/internal/cmd"
	cmdcommon "github.com/kong/rosterctl/internal/cmd/common"
	"github.com/kong/rosterctl/internal/cmd/output/jq"
	"github.com/spf13/pflag"
)

const FlagName = "jmespath"

func AddFlags(flags *pflag.FlagSet) {
	flags.String(FlagName, "",
		fmt.Sprintf(`Select from the JSON or YAML output with a JMESPath expression.
Cannot be combined with --%s.`, jq.FlagName))
}

// Expression returns the trimmed --jmespath value, empty when unset.
func Expression(flags *pflag.FlagSet) (string, error) {
	if flags.Lookup(FlagName) == nil {
		return "", nil
	}
	expr, err := flags.GetString(FlagName)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(expr), nil
}

// Validate rejects an expression the output settings cannot honor.
func Validate(expr string, outType cmdcommon.OutputFormat, jqSettings jq.Settings) error {
	if expr == "" {
		return nil
	}
	if jqSettings.Enabled() {
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("--%s and --%s are mutually exclusive", FlagName, jq.FlagName),
		}
	}
	if outType == cmdcommon.TEXT {
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("--%s is only supported with --output json or --output yaml", FlagName),
		}
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return &cmdpkg.ConfigurationError{Err: fmt.Errorf("invalid jmespath expression: %w", err)}
	}
	return nil
}

// Apply evaluates expr against the JSON form of value. An empty expression
// returns value unchanged.
func Apply(value any, expr string) (any, error) {
	if expr == "" {
		return value, nil
	}
	body, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding output for jmespath: %w", err)
	}
	var input any
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, fmt.Errorf("decoding output for jmespath: %w", err)
	}
	result, err := jmespath.Search(expr, input)
	if err != nil {
		return nil, fmt.Errorf("jmespath search failed: %w", err)
	}
	return result, nil
}
