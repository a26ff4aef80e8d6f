package materialize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndjc/forge/internal/anchor"
	"github.com/ndjc/forge/internal/plan"
)

var criticalMarkers = []string{
	"PACKAGE_NAME", "APP_LABEL", "HOME_TITLE", "MAIN_BUTTON",
	"BLOCK:PERMISSIONS", "BLOCK:INTENT_FILTERS",
}

// writeTemplate lays out a minimal circle-basic template tree under dir.
func writeTemplate(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"app/src/main/res/values/strings.xml": `<resources>
    <string name="app_name">NDJC:APP_LABEL</string>
    <string name="home_title">NDJC:HOME_TITLE</string>
    <string name="main_button">NDJC:MAIN_BUTTON</string>
    <!-- NDJC:BLOCK:EXTRA_STRINGS -->
</resources>
`,
		"app/src/main/AndroidManifest.xml": `<manifest xmlns:android="http://schemas.android.com/apk/res/android"
    package="NDJC:PACKAGE_NAME">
    <!-- NDJC:BLOCK:PERMISSIONS -->
    <application android:label="@string/app_name">
        <activity android:name=".MainActivity">
            <!-- NDJC:BLOCK:INTENT_FILTERS -->
            <!-- END_BLOCK:INTENT_FILTERS -->
        </activity>
    </application>
</manifest>
`,
		"app/build.gradle.kts": `android {
    defaultConfig {
        applicationId = "NDJC:PACKAGE_NAME"
        // resConfigs("en")
    }
}
dependencies {
    NDJC:DEPENDENCIES
}
`,
		"app/src/main/java/app/ndjc/template/MainActivity.kt": `package app.ndjc.template

import android.os.Bundle

class MainActivity {
    fun home() {
        <!-- NDJC:BLOCK:ROUTE_HOME -->
    }
}
`,
		// build caches must never be copied
		"app/build/junk.txt": "never copied",
	}
	for rel, content := range files {
		abs := filepath.Join(dir, "circle-basic", filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func demoPlan() *plan.Plan {
	p := plan.New()
	p.Meta = plan.Meta{
		Template: "circle-basic", AppName: "Demo",
		PackageID: "app.ndjc.demo.x", Mode: "A",
		Locales: []string{"en", "zh"},
	}
	p.Text[anchor.Text("PACKAGE_NAME")] = "app.ndjc.demo.x"
	p.Text[anchor.Text("APP_LABEL")] = "Demo"
	p.Text[anchor.Text("HOME_TITLE")] = "Demo Home"
	p.Text[anchor.Text("MAIN_BUTTON")] = "Start"
	p.Block[anchor.Block("PERMISSIONS")] = `<uses-permission android:name="android.permission.INTERNET" />`
	p.Block[anchor.Block("INTENT_FILTERS")] = `<intent-filter><action android:name="android.intent.action.MAIN" /></intent-filter>`
	p.Block[anchor.Block("ROUTE_HOME")] = `navigate("home")`
	p.Gradle.ApplicationID = "app.ndjc.demo.x"
	p.If[anchor.If("DARK_MODE")] = true
	return p
}

func newMaterializer(t *testing.T) (*Materializer, string) {
	t.Helper()
	templates := t.TempDir()
	work := t.TempDir()
	writeTemplate(t, templates)
	return New(templates, work, criticalMarkers, nil), work
}

func readOut(t *testing.T, m *Materializer, runID, rel string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(m.OutDir(runID), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(raw)
}

func TestApply_FullPlan(t *testing.T) {
	m, _ := newMaterializer(t)
	p := demoPlan()
	p.AppendHook(anchor.HookKotlinImports, "import androidx.navigation.NavHost")
	p.AppendHook(anchor.HookKotlinTopLevel, "fun helper() {}")
	p.Resources["app/src/main/res/raw/seed.json"] = "{}"

	result, err := m.Apply("run-1", p)
	require.NoError(t, err)

	strings_ := readOut(t, m, "run-1", "app/src/main/res/values/strings.xml")
	assert.Contains(t, strings_, ">Demo<")
	assert.Contains(t, strings_, ">Demo Home<")
	assert.False(t, anchor.ContainsMarker(strings_))

	manifest := readOut(t, m, "run-1", "app/src/main/AndroidManifest.xml")
	assert.Contains(t, manifest, `package="app.ndjc.demo.x"`)
	assert.Contains(t, manifest, "android.permission.INTERNET")
	assert.Contains(t, manifest, "<intent-filter>")
	assert.False(t, anchor.ContainsMarker(manifest))

	main := readOut(t, m, "run-1", "app/src/main/java/app/ndjc/template/MainActivity.kt")
	assert.Contains(t, main, `navigate("home")`)
	assert.Contains(t, main, "import androidx.navigation.NavHost")
	assert.Contains(t, main, "fun helper() {}")
	// New imports land after the existing import section.
	assert.Less(t,
		strings.Index(main, "import android.os.Bundle"),
		strings.Index(main, "import androidx.navigation.NavHost"))

	// Aux artifacts.
	locales := readOut(t, m, "run-1", "app/src/main/res/xml/locales_config.xml")
	assert.Contains(t, locales, `android:name="en"`)
	assert.Contains(t, locales, `android:name="zh"`)
	flags := readOut(t, m, "run-1", "app/src/main/res/values/feature_flags.xml")
	assert.Contains(t, flags, `<bool name="dark_mode">true</bool>`)
	assert.Equal(t, "{}", readOut(t, m, "run-1", "app/src/main/res/raw/seed.json"))

	// Build caches were never copied.
	_, err = os.Stat(filepath.Join(m.OutDir("run-1"), "app", "build"))
	assert.True(t, os.IsNotExist(err))

	// Audit trail.
	assert.Positive(t, result.CriticalReplacements)
	var appLabel *AnchorChange
	for _, fc := range result.Files {
		for i := range fc.Changes {
			if fc.Changes[i].Marker == "NDJC:APP_LABEL" {
				appLabel = &fc.Changes[i]
			}
		}
	}
	require.NotNil(t, appLabel)
	assert.True(t, appLabel.Found)
	assert.GreaterOrEqual(t, appLabel.ReplacedCount, 1)
	assert.Contains(t, appLabel.BeforeSample, "NDJC:APP_LABEL")
	assert.Contains(t, appLabel.AfterSample, "Demo")
}

func TestApply_GradleStabilized(t *testing.T) {
	m, _ := newMaterializer(t)
	p := demoPlan()
	p.Gradle.Dependencies = []string{"androidx.core:core-ktx:1.12.0"}

	_, err := m.Apply("run-g", p)
	require.NoError(t, err)

	gradle := readOut(t, m, "run-g", "app/build.gradle.kts")
	assert.Contains(t, gradle, `applicationId = "app.ndjc.demo.x"`)
	assert.Contains(t, gradle, `implementation("androidx.core:core-ktx:1.12.0")`)
	assert.Contains(t, gradle, `resConfigs("en", "zh")`)
	assert.NotContains(t, gradle, "// resConfigs")

	opens := strings.Count(gradle, "{")
	closes := strings.Count(gradle, "}")
	assert.Equal(t, opens, closes, "stabilizer must balance braces")
}

func TestApply_FuseAbortsOnZeroCriticalReplacements(t *testing.T) {
	templates := t.TempDir()
	work := t.TempDir()
	// A template with no markers at all: nothing can be replaced.
	abs := filepath.Join(templates, "circle-basic", "app", "src", "main", "res", "values", "strings.xml")
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte("<resources></resources>\n"), 0o644))

	m := New(templates, work, criticalMarkers, nil)
	result, err := m.Apply("run-f", demoPlan())
	require.ErrorIs(t, err, ErrNoCriticalReplacements)
	require.NotNil(t, result, "audit evidence must survive the abort")
	assert.Zero(t, result.CriticalReplacements)

	// No publishable output may remain.
	_, statErr := os.Stat(m.OutDir("run-f"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApply_MissingTemplate(t *testing.T) {
	m := New(t.TempDir(), t.TempDir(), criticalMarkers, nil)
	_, err := m.Apply("run-x", demoPlan())
	require.ErrorIs(t, err, ErrTemplateMissing)
}

func TestApply_RunsAreIsolated(t *testing.T) {
	m, _ := newMaterializer(t)
	_, err := m.Apply("run-a", demoPlan())
	require.NoError(t, err)

	p2 := demoPlan()
	p2.Text[anchor.Text("APP_LABEL")] = "Other"
	_, err = m.Apply("run-b", p2)
	require.NoError(t, err)

	assert.Contains(t, readOut(t, m, "run-a", "app/src/main/res/values/strings.xml"), ">Demo<")
	assert.Contains(t, readOut(t, m, "run-b", "app/src/main/res/values/strings.xml"), ">Other<")
}

func TestStabilizeGradle_Braces(t *testing.T) {
	t.Run("appends missing closers", func(t *testing.T) {
		out := stabilizeGradle("android {\n    defaultConfig {\n", nil)
		assert.Equal(t, strings.Count(out, "{"), strings.Count(out, "}"))
	})
	t.Run("drops surplus trailing closers", func(t *testing.T) {
		out := stabilizeGradle("android {\n}\n}\n", nil)
		assert.Equal(t, strings.Count(out, "{"), strings.Count(out, "}"))
	})
	t.Run("braces in strings are ignored", func(t *testing.T) {
		out := stabilizeGradle("val s = \"{{{\"\n", nil)
		assert.Equal(t, "val s = \"{{{\"\n", out)
	})
}
