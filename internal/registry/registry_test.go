package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndjc/forge/internal/anchor"
)

func TestDefault(t *testing.T) {
	r := Default()
	assert.Equal(t, "circle-basic", r.Template)

	assert.True(t, r.Allows(anchor.Text("APP_LABEL")))
	assert.True(t, r.Allows(anchor.Block("PERMISSIONS")))
	assert.True(t, r.Allows(anchor.List("ROUTES")))
	assert.True(t, r.Allows(anchor.If("DARK_MODE")))
	assert.True(t, r.Allows(anchor.HookKotlinImports))
	assert.False(t, r.Allows(anchor.Text("NOT_A_THING")))

	// Resource keys are path-scoped, never whitelist-gated.
	assert.True(t, r.Allows(anchor.Res("drawable/icon.png")))

	assert.Equal(t, "packageId", r.RequiredText["PACKAGE_NAME"])
	assert.Equal(t, "literal:Start", r.RequiredText["MAIN_BUTTON"])
	assert.Contains(t, r.RequiredBlocks, "PERMISSIONS")
	assert.Contains(t, r.Critical, "BLOCK:INTENT_FILTERS")
}

func TestResolveListAlias(t *testing.T) {
	r := Default()
	assert.Equal(t, "ROUTES", r.ResolveListAlias("ROUTE"))
	assert.Equal(t, "ROUTES", r.ResolveListAlias("ROUTES"))
	assert.Equal(t, "UNMAPPED", r.ResolveListAlias("UNMAPPED"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reg.yaml")
	doc := `
template: custom
text:
  keys: [TITLE]
  required:
    TITLE: appName
block:
  keys: [MAIN]
  required: [MAIN]
list:
  keys: [ITEMS]
  aliases: {ITEM: ITEMS}
if:
  keys: [FLAG]
hooks: [KOTLIN_IMPORTS]
critical: [TITLE]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", r.Template)
	assert.True(t, r.Allows(anchor.Text("TITLE")))
	assert.True(t, r.Allows(anchor.List("ITEMS")))
	assert.Equal(t, "ITEMS", r.ResolveListAlias("ITEM"))
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("text: {keys: [A]}"), 0o644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestForTemplate(t *testing.T) {
	_, err := ForTemplate("circle-basic", "")
	require.NoError(t, err)

	_, err = ForTemplate("no-such-template", "")
	require.ErrorIs(t, err, ErrUnknownTemplate)
}
