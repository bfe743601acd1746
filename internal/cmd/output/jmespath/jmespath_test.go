package jmespath

import (
	"testing"

	cmdpkg "github.com/kong/rosterctl/internal/cmd"
	cmdcommon "github.com/kong/rosterctl/internal/cmd/common"
	"github.com/kong/rosterctl/internal/cmd/output/jq"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func TestApply(t *testing.T) {
	doc := map[string]any{
		"screen": "candidates",
		"rows":   []row{{Name: "Ada", Email: "ada@example.com"}, {Name: "Hedy", Email: "hedy@example.com"}},
	}

	got, err := Apply(doc, "rows[].email")
	require.NoError(t, err)
	assert.Equal(t, []any{"ada@example.com", "hedy@example.com"}, got)

	got, err = Apply(doc, "rows[?name=='Hedy'] | [0].name")
	require.NoError(t, err)
	assert.Equal(t, "Hedy", got)

	got, err = Apply(doc, "")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestValidate(t *testing.T) {
	var cfgErr *cmdpkg.ConfigurationError

	require.NoError(t, Validate("", cmdcommon.TEXT, jq.Settings{}))
	require.NoError(t, Validate("rows", cmdcommon.YAML, jq.Settings{}))

	err := Validate("rows", cmdcommon.TEXT, jq.Settings{})
	require.ErrorAs(t, err, &cfgErr)

	err = Validate("rows", cmdcommon.JSON, jq.Settings{Filter: ".rows"})
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "mutually exclusive")

	err = Validate("rows[", cmdcommon.JSON, jq.Settings{})
	require.ErrorAs(t, err, &cfgErr)
}

func TestExpression(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	expr, err := Expression(flags)
	require.NoError(t, err)
	assert.Empty(t, expr)

	AddFlags(flags)
	require.NoError(t, flags.Parse([]string{"--jmespath", "  rows[0] "}))
	expr, err = Expression(flags)
	require.NoError(t, err)
	assert.Equal(t, "rows[0]", expr)
}
