package materialize

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ndjc/forge/internal/anchor"
	"github.com/ndjc/forge/internal/plan"
)

// replacement is one {marker, value} pair to apply to a file.
type replacement struct {
	marker string // literal text marker, or block open marker
	value  string
	block  bool
	name   string // block name, set when block is true
}

// fileTarget lists the replacements planned for one file, identified by its
// path relative to the run workspace.
type fileTarget struct {
	rel string
	ops []replacement
}

// Well-known template files.
const (
	relStrings  = "app/src/main/res/values/strings.xml"
	relManifest = "app/src/main/AndroidManifest.xml"
	relThemes   = "app/src/main/res/values/themes.xml"
	relGradle   = "app/build.gradle.kts"
	relProguard = "app/proguard-rules.pro"
)

// buildFilePlan maps plan anchors onto the template files that carry their
// markers. Text anchors are grouped by destination; route blocks and hooks
// target the main activity source, which is located by name in the copied
// tree.
func buildFilePlan(p *plan.Plan, runDir string) []fileTarget {
	var targets []fileTarget

	// strings.xml: every text anchor except the package name, plus the
	// extra-strings block.
	strOps := textOps(p, func(name string) bool { return name != "PACKAGE_NAME" })
	strOps = append(strOps, blockOps(p, "EXTRA_STRINGS")...)
	targets = append(targets, fileTarget{rel: relStrings, ops: strOps})

	// AndroidManifest.xml: package name plus the manifest blocks.
	manOps := textOps(p, func(name string) bool { return name == "PACKAGE_NAME" })
	manOps = append(manOps, blockOps(p, "PERMISSIONS", "INTENT_FILTERS")...)
	targets = append(targets, fileTarget{rel: relManifest, ops: manOps})

	// themes.xml: colors and theme overrides.
	themeOps := textOps(p, func(name string) bool {
		return strings.HasSuffix(name, "_COLOR")
	})
	themeOps = append(themeOps, blockOps(p, "THEME_OVERRIDES")...)
	targets = append(targets, fileTarget{rel: relThemes, ops: themeOps})

	// Gradle build file: application id, version name, dependency lines,
	// proguard block.
	gradleOps := []replacement{
		{marker: anchor.TextMarker("PACKAGE_NAME"), value: p.Gradle.ApplicationID},
	}
	if v, ok := p.Text[anchor.Text("VERSION_NAME")]; ok {
		gradleOps = append(gradleOps, replacement{marker: anchor.TextMarker("VERSION_NAME"), value: v})
	}
	if len(p.Gradle.Dependencies) > 0 {
		gradleOps = append(gradleOps, replacement{
			marker: anchor.TextMarker("DEPENDENCIES"),
			value:  dependencyLines(p.Gradle.Dependencies),
		})
	}
	targets = append(targets, fileTarget{rel: relGradle, ops: gradleOps})

	if ops := blockOps(p, "PROGUARD_RULES"); len(ops) > 0 {
		targets = append(targets, fileTarget{rel: relProguard, ops: ops})
	}

	// Main activity: package name, route blocks. Hooks are injected
	// programmatically, not marker-matched.
	if main := findMainActivity(runDir); main != "" {
		ops := textOps(p, func(name string) bool {
			return name == "PACKAGE_NAME" || name == "HOME_TITLE" || name == "MAIN_BUTTON"
		})
		var routeNames []string
		for k := range p.Block {
			if strings.HasPrefix(k.Name, "ROUTE_") {
				routeNames = append(routeNames, k.Name)
			}
		}
		sort.Strings(routeNames)
		ops = append(ops, blockOps(p, routeNames...)...)
		targets = append(targets, fileTarget{rel: main, ops: ops})
	}

	return targets
}

func textOps(p *plan.Plan, keep func(name string) bool) []replacement {
	var names []string
	for k := range p.Text {
		if keep(k.Name) {
			names = append(names, k.Name)
		}
	}
	sort.Strings(names) // deterministic apply order for the audit log
	ops := make([]replacement, 0, len(names))
	for _, n := range names {
		ops = append(ops, replacement{
			marker: anchor.TextMarker(n),
			value:  p.Text[anchor.Text(n)],
		})
	}
	return ops
}

func blockOps(p *plan.Plan, names ...string) []replacement {
	var ops []replacement
	for _, n := range names {
		v, ok := p.Block[anchor.Block(n)]
		if !ok {
			continue
		}
		ops = append(ops, replacement{
			marker: anchor.BlockMarkerOpen(n),
			value:  v,
			block:  true,
			name:   n,
		})
	}
	return ops
}

func dependencyLines(deps []string) string {
	lines := make([]string, 0, len(deps))
	for _, d := range deps {
		lines = append(lines, "implementation(\""+strings.TrimSpace(d)+"\")")
	}
	return strings.Join(lines, "\n    ")
}

// findMainActivity locates the template's main activity source relative to
// the run workspace.
func findMainActivity(runDir string) string {
	var found string
	root := filepath.Join(runDir, "app", "src", "main", "java")
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || found != "" {
			return filepath.SkipAll
		}
		if !d.IsDir() && d.Name() == "MainActivity.kt" {
			if rel, relErr := filepath.Rel(runDir, path); relErr == nil {
				found = filepath.ToSlash(rel)
			}
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
