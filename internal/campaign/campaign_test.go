package campaign

import (
	"testing"

	"github.com/kong/rosterctl/internal/datatable"
	testConfig "github.com/kong/rosterctl/test/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	c, err := Compile(Template{
		Subject: `Welcome {{ .name | default "friend" }}`,
		Body:    `Hi {{ .name | upper }}, your team is {{ .department }}.{{ .missing }}`,
	})
	require.NoError(t, err)

	msg, err := c.Render(datatable.Row{"id": 3.0, "name": "Ada", "email": " Ada@Example.com ", "department": "Engineering"})
	require.NoError(t, err)
	assert.Equal(t, Message{
		ID:      "3",
		To:      "ada@example.com",
		Subject: "Welcome Ada",
		Body:    "Hi ADA, your team is Engineering.",
	}, msg)

	fallback, err := Compile(Template{Subject: `Welcome {{ .name | default "friend" }}`, Body: "plain"})
	require.NoError(t, err)
	msg, err = fallback.Render(datatable.Row{"id": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome friend", msg.Subject)
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(Template{Subject: " "})
	require.Error(t, err)

	_, err = Compile(Template{Subject: "{{ .name", Body: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid campaign subject")
}

func TestRenderAll(t *testing.T) {
	c, err := Compile(Template{Subject: "{{ .name }}", Body: "{{ .id }}"})
	require.NoError(t, err)

	msgs, err := c.RenderAll([]datatable.Row{{"id": 1.0, "name": "a"}, {"id": 2.0, "name": "b"}})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[1].Subject)

	broken, err := Compile(Template{Subject: "x", Body: `{{ fail "boom" }}`})
	require.NoError(t, err)
	_, err = broken.RenderAll([]datatable.Row{{"id": 9.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 9")
}

func TestFromConfig(t *testing.T) {
	cfg := testConfig.NewMapConfigHook(map[string]any{
		"campaign.subject":  "S",
		"campaign.template": "B",
	})
	assert.Equal(t, Template{Subject: "S", Body: "B"}, FromConfig(cfg))
}
