package generate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndjc/forge/internal/contract"
)

func TestBuildPrompt(t *testing.T) {
	req := Request{
		RunID: "run-1", Template: "circle-basic",
		AppName: "Night Notes", PackageID: "app.ndjc.notes.x",
		Description: "a dark-mode note taking app",
		Locales:     []string{"en", "zh"},
	}
	prompt := BuildPrompt(req)

	assert.Contains(t, prompt, `metadata.template must be "circle-basic"`)
	assert.Contains(t, prompt, `metadata.packageId must be "app.ndjc.notes.x"`)
	assert.Contains(t, prompt, `metadata.appName must be "Night Notes"`)
	assert.Contains(t, prompt, "metadata.locales must be [en, zh]")
	assert.Contains(t, prompt, "a dark-mode note taking app")
	assert.Contains(t, prompt, "never under res/layout/")
	assert.Contains(t, prompt, "PERMISSIONS")
	assert.Contains(t, prompt, `"anchors"`)
	assert.Contains(t, prompt, `metadata.mode is "B" when you emit companion files`,
		"companion files belong to mode B")
	assert.Contains(t, prompt, `"manifestPermissions"`,
		"the shown shape must match the decoder's patches fields")
	assert.NotContains(t, prompt, `"permissions"`)
}

func TestBuildPrompt_DefaultLocale(t *testing.T) {
	prompt := BuildPrompt(Request{Template: "circle-basic"})
	assert.Contains(t, prompt, "metadata.locales must be [en]")
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n ", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestStripCodeFences_RoundTripsContract(t *testing.T) {
	fenced := "```json\n" + `{
		"metadata": {"runId": "r", "mode": "B", "template": "circle-basic",
			"appName": "Demo", "packageId": "app.ndjc.demo.x"},
		"anchors": {"text": {"APP_LABEL": "Demo"}}
	}` + "\n```"

	ct, err := contract.Decode(strings.NewReader(StripCodeFences(fenced)))
	require.NoError(t, err)
	assert.Equal(t, "circle-basic", ct.Metadata.Template)
	assert.Equal(t, "Demo", ct.Anchors.Text["APP_LABEL"])
}
