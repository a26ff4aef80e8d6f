package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndjc/forge/internal/anchor"
	"github.com/ndjc/forge/internal/plan"
	"github.com/ndjc/forge/internal/validate"
)

func TestApply_RelocatesImportsAndDeclarations(t *testing.T) {
	p := plan.New()
	k := anchor.Block("ROUTE_HOME")
	p.Block[k] = "import a.b.C\nfun f() {}"

	issues := Apply(p, Options{}, nil)

	assert.Contains(t, p.Hooks[anchor.HookKotlinImports], "import a.b.C")
	assert.Contains(t, p.Hooks[anchor.HookKotlinTopLevel], "fun f() {}")
	assert.Empty(t, p.Block[k], "original block must end up empty")

	// Emptied block is a warning by default.
	require.Len(t, issues, 1)
	assert.Equal(t, validate.CodeBlockRelocated, issues[0].Code)
	assert.Equal(t, validate.SevWarning, issues[0].Severity)
}

func TestApply_EmptiedBlockCanBeError(t *testing.T) {
	p := plan.New()
	p.Block[anchor.Block("ROUTE_HOME")] = "fun f() {}"

	issues := Apply(p, Options{EmptiedBlockIsError: true}, nil)
	require.Len(t, issues, 1)
	assert.Equal(t, validate.CodeBlockEmptied, issues[0].Code,
		"the escalated issue must carry an E_ code")
	assert.Equal(t, validate.SevCritical, issues[0].Severity)
}

func TestApply_PackageLinesDropped(t *testing.T) {
	p := plan.New()
	k := anchor.Block("ROUTE_HOME")
	p.Block[k] = "package app.ndjc.demo\nnavController.navigate(\"home\")"

	Apply(p, Options{}, nil)

	assert.Equal(t, `navController.navigate("home")`, p.Block[k])
	assert.Empty(t, p.Hooks[anchor.HookKotlinImports])
}

func TestApply_ImportsSortedAndDeduplicated(t *testing.T) {
	p := plan.New()
	p.Block[anchor.Block("ROUTE_HOME")] = "import z.Last\nimport a.First\ndoThing()"
	p.Block[anchor.Block("ROUTE_DETAIL")] = "import a.First\nother()"
	p.AppendHook(anchor.HookKotlinImports, "import m.Middle", "import a.First")

	Apply(p, Options{}, nil)

	assert.Equal(t,
		[]string{"import a.First", "import m.Middle", "import z.Last"},
		p.Hooks[anchor.HookKotlinImports])
}

func TestApply_TopLevelHookResanitized(t *testing.T) {
	p := plan.New()
	p.Hooks[anchor.HookKotlinTopLevel] = []string{
		"package app.ndjc.demo",
		"import a.b.C",
		"fun seeded() {}",
	}

	Apply(p, Options{}, nil)

	assert.Equal(t, []string{"fun seeded() {}"}, p.Hooks[anchor.HookKotlinTopLevel])
	assert.Equal(t, []string{"import a.b.C"}, p.Hooks[anchor.HookKotlinImports])
}

func TestApply_StatementsUntouched(t *testing.T) {
	p := plan.New()
	k := anchor.Block("ROUTE_HOME")
	p.Block[k] = "doThing()\nother()"

	issues := Apply(p, Options{}, nil)
	assert.Empty(t, issues)
	assert.Equal(t, "doThing()\nother()", p.Block[k])
}
