// Package materialize applies a validated plan to a fresh copy of the
// template tree. State machine: fresh workspace → build file plan → apply
// replacements → auxiliary files → cleanup → stabilize → critical-anchor
// fuse → (abort | finalize). The fuse is the system's core correctness
// guarantee: a run whose critical markers were never replaced must never
// ship a bare template as if it were a generated app.
package materialize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ndjc/forge/internal/anchor"
	"github.com/ndjc/forge/internal/plan"
)

var (
	// ErrNoCriticalReplacements aborts a run whose combined replacement count
	// over the critical markers is zero. This check is unconditional and not
	// configurable.
	ErrNoCriticalReplacements = errors.New("materialize: no critical anchor was replaced")

	ErrTemplateMissing = errors.New("materialize: template tree missing")
)

// textLikeExts are the extensions swept by the marker cleanup pass.
var textLikeExts = map[string]struct{}{
	".kt": {}, ".java": {}, ".xml": {}, ".gradle": {}, ".kts": {},
	".pro": {}, ".properties": {}, ".txt": {}, ".json": {}, ".toml": {},
}

// Materializer applies plans against templates under templatesDir, producing
// run-scoped workspaces under workDir.
type Materializer struct {
	templatesDir string
	workDir      string
	critical     []string
	log          *zap.Logger
}

// New builds a materializer. critical is the registry's critical marker name
// list ("PACKAGE_NAME", "BLOCK:PERMISSIONS", ...).
func New(templatesDir, workDir string, critical []string, log *zap.Logger) *Materializer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Materializer{
		templatesDir: templatesDir,
		workDir:      workDir,
		critical:     append([]string(nil), critical...),
		log:          log,
	}
}

// OutDir returns the run-scoped output directory for a run id.
func (m *Materializer) OutDir(runID string) string {
	return filepath.Join(m.workDir, runID, "out")
}

// Apply materializes the plan. On fuse abort the output directory is
// destroyed and ErrNoCriticalReplacements is returned alongside the audit
// result so callers can persist the evidence.
func (m *Materializer) Apply(runID string, p *plan.Plan) (*ApplyResult, error) {
	outDir := m.OutDir(runID)
	log := m.log.With(zap.String("runId", runID), zap.String("template", p.Meta.Template))

	templateDir := filepath.Join(m.templatesDir, p.Meta.Template)
	if err := freshWorkspace(templateDir, outDir); err != nil {
		return nil, err
	}
	log.Info("workspace prepared", zap.String("dir", outDir))

	result := &ApplyResult{RunID: runID, GeneratedAt: time.Now().UTC()}

	for _, target := range buildFilePlan(p, outDir) {
		fc, err := m.applyTarget(outDir, target)
		if err != nil {
			return nil, err
		}
		if fc != nil {
			result.Files = append(result.Files, *fc)
		}
	}

	if err := m.writeAuxFiles(outDir, p, result); err != nil {
		return nil, err
	}
	if err := m.injectHooks(outDir, p, result); err != nil {
		return nil, err
	}
	if err := m.cleanupMarkers(outDir); err != nil {
		return nil, err
	}
	if err := m.stabilize(outDir, p); err != nil {
		return nil, err
	}

	result.CriticalReplacements = m.countCritical(result)
	if result.CriticalReplacements == 0 {
		log.Error("critical-anchor fuse tripped; destroying output",
			zap.Strings("critical", m.critical))
		_ = os.RemoveAll(outDir)
		return result, fmt.Errorf("%w (run %s)", ErrNoCriticalReplacements, runID)
	}

	log.Info("plan materialized",
		zap.Int("files", len(result.Files)),
		zap.Int("replacements", result.TotalReplacements()),
		zap.Int("critical", result.CriticalReplacements))
	return result, nil
}

func (m *Materializer) applyTarget(outDir string, target fileTarget) (*FileChanges, error) {
	abs := filepath.Join(outDir, filepath.FromSlash(target.rel))
	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// Templates may legitimately omit a target (no themes override,
			// no gradle kts). Record nothing; the fuse judges the sum.
			m.log.Debug("target file absent in template", zap.String("file", target.rel))
			return nil, nil
		}
		return nil, fmt.Errorf("materialize: read %s: %w", target.rel, err)
	}

	content := string(raw)
	fc := &FileChanges{File: target.rel}
	for _, op := range target.ops {
		var change AnchorChange
		content, change = applyToContent(content, op)
		change.File = target.rel
		fc.Changes = append(fc.Changes, change)
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("materialize: write %s: %w", target.rel, err)
	}
	return fc, nil
}

// writeAuxFiles emits derived artifacts not expressed as markers: contract
// resources, companions, the locale config and boolean feature flags.
func (m *Materializer) writeAuxFiles(outDir string, p *plan.Plan, result *ApplyResult) error {
	write := func(rel, content string) error {
		abs := filepath.Join(outDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("materialize: aux %s: %w", rel, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return fmt.Errorf("materialize: aux %s: %w", rel, err)
		}
		result.AuxFiles = append(result.AuxFiles, rel)
		return nil
	}

	for rel, content := range p.Resources {
		if err := write(rel, content); err != nil {
			return err
		}
	}
	for _, f := range p.Companions {
		if err := write(f.Path, f.Content); err != nil {
			return err
		}
	}

	if len(p.Meta.Locales) > 0 {
		if err := write("app/src/main/res/xml/locales_config.xml", localesConfigXML(p.Meta.Locales)); err != nil {
			return err
		}
	}
	if len(p.If) > 0 {
		if err := write("app/src/main/res/values/feature_flags.xml", featureFlagsXML(p)); err != nil {
			return err
		}
	}
	return nil
}

// injectHooks places hook lines into the main activity source: imports after
// the existing import section, top-level declarations at end of file. Hooks
// never appear as literal markers in templates.
func (m *Materializer) injectHooks(outDir string, p *plan.Plan, result *ApplyResult) error {
	imports := p.Hooks[anchor.HookKotlinImports]
	toplevel := p.Hooks[anchor.HookKotlinTopLevel]
	if len(imports) == 0 && len(toplevel) == 0 {
		return nil
	}

	rel := findMainActivity(outDir)
	if rel == "" {
		m.log.Warn("no main activity found; hook content dropped")
		return nil
	}
	abs := filepath.Join(outDir, filepath.FromSlash(rel))
	raw, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("materialize: hooks: %w", err)
	}

	lines := anchor.Lines(string(raw))
	if len(imports) > 0 {
		lines = spliceImports(lines, imports)
	}
	if len(toplevel) > 0 {
		lines = append(lines, "")
		lines = append(lines, toplevel...)
	}

	if err := os.WriteFile(abs, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("materialize: hooks: %w", err)
	}

	fc := FileChanges{File: rel}
	for _, imp := range imports {
		fc.Changes = append(fc.Changes, AnchorChange{
			File: rel, Marker: anchor.HookKotlinImports.String(), Found: true,
			ReplacedCount: 1, AfterSample: imp,
		})
	}
	if len(toplevel) > 0 {
		fc.Changes = append(fc.Changes, AnchorChange{
			File: rel, Marker: anchor.HookKotlinTopLevel.String(), Found: true,
			ReplacedCount: len(toplevel), AfterSample: toplevel[0],
		})
	}
	result.Files = append(result.Files, fc)
	return nil
}

// spliceImports inserts new import lines after the last existing import (or
// after the package line), skipping duplicates.
func spliceImports(lines, imports []string) []string {
	existing := make(map[string]struct{})
	insertAt := 0
	for i, line := range lines {
		switch anchor.ClassifyLine(line) {
		case anchor.LinePackage:
			if insertAt == 0 {
				insertAt = i + 1
			}
		case anchor.LineImport:
			existing[strings.TrimSpace(line)] = struct{}{}
			insertAt = i + 1
		}
	}

	var add []string
	for _, imp := range imports {
		if _, dup := existing[imp]; !dup {
			add = append(add, imp)
		}
	}
	if len(add) == 0 {
		return lines
	}

	out := make([]string, 0, len(lines)+len(add))
	out = append(out, lines[:insertAt]...)
	out = append(out, add...)
	out = append(out, lines[insertAt:]...)
	return out
}

// cleanupMarkers strips every surviving marker token from text-like files so
// no internal marker ever reaches the shipped app.
func (m *Materializer) cleanupMarkers(outDir string) error {
	return filepath.WalkDir(outDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if _, ok := textLikeExts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !anchor.ContainsMarker(string(raw)) {
			return nil
		}
		cleaned := anchor.StripMarkers(string(raw))
		return os.WriteFile(path, []byte(cleaned), 0o644)
	})
}

func (m *Materializer) stabilize(outDir string, p *plan.Plan) error {
	abs := filepath.Join(outDir, filepath.FromSlash(relGradle))
	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	resConfigs := p.Gradle.ResConfigs
	if len(resConfigs) == 0 {
		resConfigs = p.Meta.Locales
	}
	out := stabilizeGradle(string(raw), resConfigs)
	return os.WriteFile(abs, []byte(out), 0o644)
}

// countCritical sums replacement counts across changes whose marker belongs
// to the critical set.
func (m *Materializer) countCritical(result *ApplyResult) int {
	criticalSet := make(map[string]struct{}, len(m.critical))
	for _, name := range m.critical {
		criticalSet[name] = struct{}{}
	}
	n := 0
	for _, f := range result.Files {
		for _, c := range f.Changes {
			if _, ok := criticalSet[anchor.MarkerName(c.Marker)]; ok {
				n += c.ReplacedCount
			}
		}
	}
	return n
}

func localesConfigXML(locales []string) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<locale-config xmlns:android=\"http://schemas.android.com/apk/res/android\">\n")
	for _, l := range locales {
		fmt.Fprintf(&b, "    <locale android:name=%q />\n", l)
	}
	b.WriteString("</locale-config>\n")
	return b.String()
}

func featureFlagsXML(p *plan.Plan) string {
	names := make([]string, 0, len(p.If))
	byName := make(map[string]bool, len(p.If))
	for k, v := range p.If {
		names = append(names, k.Name)
		byName[k.Name] = v
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<resources>\n")
	for _, n := range names {
		fmt.Fprintf(&b, "    <bool name=%q>%t</bool>\n", strings.ToLower(n), byName[n])
	}
	b.WriteString("</resources>\n")
	return b.String()
}
