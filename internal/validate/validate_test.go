package validate

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndjc/forge/internal/contract"
	"github.com/ndjc/forge/internal/registry"
)

func goodContract() *contract.Contract {
	return &contract.Contract{
		Metadata: contract.Metadata{
			Mode:      contract.ModeA,
			Template:  "circle-basic",
			AppName:   "Demo",
			PackageID: "app.ndjc.demo.x",
		},
		Anchors: contract.Anchors{
			Text: map[string]string{
				"PACKAGE_NAME": "app.ndjc.demo.x",
				"APP_LABEL":    "Demo",
			},
			Block: map[string]string{
				"PERMISSIONS":    `<uses-permission android:name="android.permission.INTERNET" />`,
				"INTENT_FILTERS": `<action android:name="android.intent.action.MAIN" />`,
			},
			List:   map[string]any{"ROUTES": []any{"home"}},
			If:     map[string]bool{},
			Gradle: contract.GradleAnchors{ApplicationID: "app.ndjc.demo.x"},
		},
	}
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	return New(registry.Default(), Limits{}, nil)
}

func hasCode(issues []Issue, code string) bool {
	for _, is := range issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

func TestCheck_OKContract(t *testing.T) {
	res := newValidator(t).Check(goodContract())
	assert.True(t, res.OK)
	for _, is := range res.Issues {
		assert.Equal(t, SevWarning, is.Severity, "issue %+v should be a warning", is)
	}
}

func TestCheck_SchemaShortCircuits(t *testing.T) {
	c := goodContract()
	c.Metadata.Mode = "C"
	c.Metadata.PackageID = "com.not.ndjc" // would be E_PACKAGE_PREFIX, but must not be reached

	res := newValidator(t).Check(c)
	require.False(t, res.OK)
	for _, is := range res.Issues {
		assert.Equal(t, CodeSchema, is.Code)
	}
}

func TestCheck_Limits(t *testing.T) {
	t.Run("file count", func(t *testing.T) {
		c := goodContract()
		c.Metadata.Mode = contract.ModeB
		for i := 0; i < 3; i++ {
			c.Files = append(c.Files, contract.File{
				Path: "app/src/main/res/raw/seed.json", Kind: contract.KindRaw, Content: "{}",
			})
		}
		v := New(registry.Default(), Limits{MaxFiles: 2}, nil)
		res := v.Check(c)
		assert.False(t, res.OK)
		assert.True(t, hasCode(res.Issues, CodeLimitsFileCount))
	})

	t.Run("base64 size approximated at 3/4", func(t *testing.T) {
		c := goodContract()
		c.Metadata.Mode = contract.ModeB
		// 2048 raw bytes -> ~2731 encoded; with a 1 KB cap the 3/4
		// approximation must still trip.
		payload := base64.StdEncoding.EncodeToString(make([]byte, 2048))
		c.Files = []contract.File{{
			Path: "app/src/main/res/raw/blob.bin", Kind: contract.KindRaw,
			Encoding: contract.EncodingBase64, Content: payload,
		}}
		v := New(registry.Default(), Limits{MaxFileKB: 1}, nil)
		res := v.Check(c)
		assert.True(t, hasCode(res.Issues, CodeLimitsFileSize))
	})

	t.Run("anchor payload cap", func(t *testing.T) {
		c := goodContract()
		c.Anchors.Block["PERMISSIONS"] = strings.Repeat("x", 4096)
		v := New(registry.Default(), Limits{MaxAnchorBytes: 1024}, nil)
		res := v.Check(c)
		assert.True(t, hasCode(res.Issues, CodeLimitsAnchorBytes))
	})

	t.Run("metadata can only tighten", func(t *testing.T) {
		v := New(registry.Default(), Limits{MaxFiles: 2}, nil)
		eff := v.effective(contract.Metadata{MaxFiles: 100})
		assert.Equal(t, 2, eff.MaxFiles)
		eff = v.effective(contract.Metadata{MaxFiles: 1})
		assert.Equal(t, 1, eff.MaxFiles)
	})
}

func TestCheck_Security(t *testing.T) {
	t.Run("forbidden permission", func(t *testing.T) {
		c := goodContract()
		c.Patches.ManifestPermissions = []string{"android.permission.SEND_SMS"}
		res := newValidator(t).Check(c)
		assert.False(t, res.OK)
		assert.True(t, hasCode(res.Issues, CodeSecurityPermission))
	})

	t.Run("hard-coded IP in block", func(t *testing.T) {
		c := goodContract()
		c.Anchors.Block["PERMISSIONS"] = `val endpoint = "http://10.0.0.1/upload"`
		res := newValidator(t).Check(c)
		assert.True(t, hasCode(res.Issues, CodeSecurityNetwork))
	})

	t.Run("reflection in file", func(t *testing.T) {
		c := goodContract()
		c.Metadata.Mode = contract.ModeB
		c.Files = []contract.File{{
			Path: "app/src/main/java/app/ndjc/demo/X.kt", Kind: contract.KindSource,
			Content: `val c = Class.forName("dalvik.system.DexClassLoader")`,
		}}
		res := newValidator(t).Check(c)
		assert.True(t, hasCode(res.Issues, CodeSecurityReflection))
		assert.True(t, hasCode(res.Issues, CodeSecurityDynCode))
	})

	t.Run("exec", func(t *testing.T) {
		c := goodContract()
		c.Anchors.Block["INTENT_FILTERS"] = `Runtime.getRuntime().exec("rm -rf /")`
		res := newValidator(t).Check(c)
		assert.True(t, hasCode(res.Issues, CodeSecurityExec))
	})
}

func TestCheck_Paths(t *testing.T) {
	t.Run("package prefix", func(t *testing.T) {
		c := goodContract()
		c.Metadata.PackageID = "com.evil.app"
		c.Anchors.Text["PACKAGE_NAME"] = "com.evil.app"
		c.Anchors.Gradle.ApplicationID = "com.evil.app"
		res := newValidator(t).Check(c)
		assert.False(t, res.OK)
		assert.True(t, hasCode(res.Issues, CodePackagePrefix))
	})

	t.Run("traversal", func(t *testing.T) {
		c := goodContract()
		c.Metadata.Mode = contract.ModeB
		c.Files = []contract.File{{Path: "app/../../etc/passwd", Kind: contract.KindRaw, Content: "x"}}
		res := newValidator(t).Check(c)
		assert.True(t, hasCode(res.Issues, CodePathTraversal))
	})

	t.Run("layout forbidden", func(t *testing.T) {
		c := goodContract()
		c.Metadata.Mode = contract.ModeB
		c.Files = []contract.File{{Path: "app/src/main/res/layout/main.xml", Kind: contract.KindValues, Content: "x"}}
		res := newValidator(t).Check(c)
		assert.True(t, hasCode(res.Issues, CodePathLayout))
	})

	t.Run("grammar per kind", func(t *testing.T) {
		c := goodContract()
		c.Metadata.Mode = contract.ModeB
		c.Files = []contract.File{{Path: "app/src/main/res/raw/notes.txt", Kind: contract.KindValues, Content: "x"}}
		res := newValidator(t).Check(c)
		assert.True(t, hasCode(res.Issues, CodePathGrammar))
	})

	t.Run("app id mismatch", func(t *testing.T) {
		c := goodContract()
		c.Anchors.Gradle.ApplicationID = "app.ndjc.other"
		res := newValidator(t).Check(c)
		assert.False(t, res.OK)
		assert.True(t, hasCode(res.Issues, CodeAppIDMismatch))
	})
}

func TestCheck_Completeness(t *testing.T) {
	t.Run("mode A with files is critical", func(t *testing.T) {
		c := goodContract()
		c.Files = []contract.File{{Path: "app/src/main/res/raw/x", Kind: contract.KindRaw, Content: "x"}}
		res := newValidator(t).Check(c)
		assert.False(t, res.OK)
		assert.True(t, hasCode(res.Issues, CodeModeAFiles))
	})

	t.Run("mode B without files is a warning", func(t *testing.T) {
		c := goodContract()
		c.Metadata.Mode = contract.ModeB
		res := newValidator(t).Check(c)
		assert.True(t, res.OK)
		assert.True(t, hasCode(res.Issues, CodeModeBNoFiles))
	})

	t.Run("required block missing warns, not fail", func(t *testing.T) {
		c := goodContract()
		delete(c.Anchors.Block, "PERMISSIONS")
		res := newValidator(t).Check(c)
		assert.True(t, res.OK, "auto-filled block anchors must not reject the contract")
		assert.True(t, hasCode(res.Issues, CodeBlockAutofill))
	})

	t.Run("missing lists warn, not fail", func(t *testing.T) {
		c := goodContract()
		c.Anchors.List = map[string]any{}
		res := newValidator(t).Check(c)
		assert.True(t, res.OK)
		assert.True(t, hasCode(res.Issues, CodeListAutofill))
	})
}
