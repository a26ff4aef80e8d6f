package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Canonicalization(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		def  Group
		want Key
		ok   bool
	}{
		{"bare text key", "app_label", GroupText, Key{GroupText, "APP_LABEL"}, true},
		{"prefixed key", "BLOCK:permissions", GroupText, Key{GroupBlock, "PERMISSIONS"}, true},
		{"lowercase prefix", "list:routes", GroupText, Key{GroupList, "ROUTES"}, true},
		{"whitespace collapse", "  home   title ", GroupText, Key{GroupText, "HOME_TITLE"}, true},
		{"res dot alias", "res.drawable/icon.png", GroupText, Key{GroupRes, "drawable/icon.png"}, true},
		{"hook dot alias", "hook.kotlin_imports", GroupText, Key{GroupHook, "KOTLIN_IMPORTS"}, true},
		{"ndjc marker prefix", "NDJC:APP_LABEL", GroupText, Key{GroupText, "APP_LABEL"}, true},
		{"res keeps case", "RES:drawable/MyIcon.png", GroupText, Key{GroupRes, "drawable/MyIcon.png"}, true},
		{"empty", "   ", GroupText, Key{}, false},
		{"default group applies", "dark_mode", GroupIf, Key{GroupIf, "DARK_MODE"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw, tt.def)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	raws := []string{
		"app label", "BLOCK:route home", "res.drawable/Icon.PNG",
		"hook.kotlin imports", "IF:dark_mode", "LIST:routes",
	}
	for _, raw := range raws {
		first, ok := Parse(raw, GroupText)
		require.True(t, ok, raw)
		second, ok := Parse(first.String(), GroupBlock) // default must not matter
		require.True(t, ok, raw)
		assert.Equal(t, first, second, "canonicalization must be idempotent for %q", raw)
	}
}

func TestKey_TextRoundTrip(t *testing.T) {
	k := Block("ROUTE_HOME")
	b, err := k.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "BLOCK:ROUTE_HOME", string(b))

	var back Key
	require.NoError(t, back.UnmarshalText(b))
	assert.Equal(t, k, back)
}

func TestMarkerName(t *testing.T) {
	assert.Equal(t, "APP_LABEL", MarkerName("NDJC:APP_LABEL"))
	assert.Equal(t, "BLOCK:PERMISSIONS", MarkerName("<!-- NDJC:BLOCK:PERMISSIONS -->"))
}

func TestStripMarkers(t *testing.T) {
	in := "<resources>\n" +
		"  <!-- NDJC:BLOCK:EXTRA_STRINGS -->\n" +
		"  <string name=\"x\">NDJC:LEFTOVER</string>\n" +
		"  // NDJC:HOOK_NOTE\n" +
		"</resources>\n"
	out := StripMarkers(in)
	assert.False(t, ContainsMarker(out))
	assert.Contains(t, out, "<string name=\"x\">")
	assert.NotContains(t, out, "EXTRA_STRINGS")
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want LineClass
	}{
		{"", LineBlank},
		{"   \t", LineBlank},
		{"package app.ndjc.demo", LinePackage},
		{"import androidx.compose.runtime.Composable", LineImport},
		{"fun main() {}", LineDeclaration},
		{"class HomeScreen", LineDeclaration},
		{"data class Route(val name: String)", LineDeclaration},
		{"@Composable fun Home() {}", LineDeclaration},
		{"private val count = 0", LineDeclaration},
		{"  import nested.looks.like.statement", LineStatement},
		{"navController.navigate(\"home\")", LineStatement},
		{"    Text(title)", LineStatement},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyLine(tt.line), "line %q", tt.line)
	}
}

func TestClassifyFragment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want FragmentKind
	}{
		{"empty", "\n  \n", FragmentEmpty},
		{"imports only", "import a.b.C\nimport x.y.Z", FragmentImports},
		{"top level", "fun f() {}\n", FragmentTopLevel},
		{"statements", "doThing()\nother()", FragmentStatements},
		{"mixed import and statement", "import a.b.C\ndoThing()", FragmentMixed},
		{"declaration wins over imports", "import a.b.C\nfun f() {}", FragmentTopLevel},
		{"package only is mixed", "package app.x", FragmentMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFragment(tt.in))
		})
	}
}
