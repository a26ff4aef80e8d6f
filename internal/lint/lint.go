// Package lint is the last, authoritative gate before any file is touched.
// It only reads the plan. With fail-close enabled (the default) any critical
// violation makes the run fatal; with it disabled the report is advisory.
package lint

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ndjc/forge/internal/anchor"
	"github.com/ndjc/forge/internal/plan"
)

// ErrCriticalViolations is returned when fail-close is enabled and the report
// carries at least one critical violation.
var ErrCriticalViolations = errors.New("lint: critical violations")

// Violation codes.
const (
	CodeMetaMissing        = "V-META-MISSING"
	CodeCompanionSource    = "V-COMPANION-SOURCE-FORBIDDEN"
	CodeBlockPackage       = "V-BLOCK-PACKAGE"
	CodeBlockImport        = "V-BLOCK-IMPORT"
	CodeBlockDeclaration   = "V-BLOCK-DECLARATION"
	CodeBlockUnclassified  = "V-BLOCK-UNCLASSIFIED"
	CodeHookImportsImpure  = "V-HOOK-IMPORTS-IMPURE"
	CodeHookTopLevelImpure = "V-HOOK-TOPLEVEL-IMPURE"
	CodeHookTopLevelEmpty  = "V-HOOK-TOPLEVEL-EMPTY"
)

// Severities.
const (
	SevCritical = "critical"
	SevWarning  = "warning"
)

// Violation is one linter finding.
type Violation struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Anchor   string `json:"anchor,omitempty"`
	Where    string `json:"where,omitempty"`
	Reason   string `json:"reason"`
	Sample   string `json:"sample,omitempty"`
}

// Report is the persisted violation summary.
type Report struct {
	RunID       string      `json:"runId,omitempty"`
	Total       int         `json:"total"`
	Critical    int         `json:"critical"`
	Warnings    int         `json:"warnings"`
	Violations  []Violation `json:"violations"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// Options controls linter policy. Both default to the safe side: fail closed,
// no source companions.
type Options struct {
	FailClose          bool
	AllowCompanionCode bool
}

// Run lints the plan and produces the report.
func Run(p *plan.Plan, opts Options, log *zap.Logger) *Report {
	if log == nil {
		log = zap.NewNop()
	}
	var vs []Violation

	vs = append(vs, checkMeta(p)...)
	vs = append(vs, checkCompanions(p, opts)...)
	vs = append(vs, checkBlocks(p)...)
	vs = append(vs, checkHooks(p)...)

	r := &Report{
		Total:       len(vs),
		Violations:  vs,
		GeneratedAt: time.Now().UTC(),
	}
	for _, v := range vs {
		if v.Severity == SevCritical {
			r.Critical++
		} else {
			r.Warnings++
		}
	}
	log.Info("plan linted",
		zap.Int("total", r.Total),
		zap.Int("critical", r.Critical),
		zap.Int("warnings", r.Warnings))
	return r
}

// Err returns ErrCriticalViolations when fail-close applies to this report.
func (r *Report) Err(failClose bool) error {
	if failClose && r.Critical > 0 {
		return fmt.Errorf("%w: %d critical of %d total", ErrCriticalViolations, r.Critical, r.Total)
	}
	return nil
}

func checkMeta(p *plan.Plan) []Violation {
	var vs []Violation
	missing := func(field string) {
		vs = append(vs, Violation{
			Code: CodeMetaMissing, Severity: SevCritical, Where: field,
			Reason: field + " is required",
		})
	}
	if p.Meta.Template == "" {
		missing("meta.template")
	}
	if p.Meta.PackageID == "" {
		missing("meta.packageId")
	}
	if p.Gradle.ApplicationID == "" {
		missing("gradle.applicationId")
	}
	return vs
}

// checkCompanions rejects source-extension companions unless the explicit
// override is set: companions are for inert resources, not code.
func checkCompanions(p *plan.Plan, opts Options) []Violation {
	if opts.AllowCompanionCode {
		return nil
	}
	var vs []Violation
	for _, f := range p.Companions {
		switch strings.ToLower(path.Ext(f.Path)) {
		case ".kt", ".java":
			vs = append(vs, Violation{
				Code: CodeCompanionSource, Severity: SevCritical,
				Where:  f.Path,
				Reason: "companion files may not carry source code without the explicit override",
				Sample: firstLine(f.Content),
			})
		}
	}
	return vs
}

// checkBlocks verifies every block holds only statements. A violation here
// means the sanitizer did not run or could not fully clean the content.
func checkBlocks(p *plan.Plan) []Violation {
	var vs []Violation
	for k, body := range p.Block {
		for _, line := range anchor.Lines(body) {
			switch anchor.ClassifyLine(line) {
			case anchor.LinePackage:
				vs = append(vs, blockViolation(CodeBlockPackage, k, line, "package line inside block"))
			case anchor.LineImport:
				vs = append(vs, blockViolation(CodeBlockImport, k, line, "import line inside block"))
			case anchor.LineDeclaration:
				vs = append(vs, blockViolation(CodeBlockDeclaration, k, line, "top-level declaration inside block"))
			}
		}
		if anchor.ClassifyFragment(body) == anchor.FragmentMixed {
			vs = append(vs, Violation{
				Code: CodeBlockUnclassified, Severity: SevWarning, Anchor: k.String(),
				Reason: "block content could not be fully classified; passed through as-is",
				Sample: firstLine(body),
			})
		}
	}
	return vs
}

func blockViolation(code string, k anchor.Key, line, reason string) Violation {
	return Violation{
		Code: code, Severity: SevCritical, Anchor: k.String(),
		Reason: reason, Sample: firstLine(line),
	}
}

func checkHooks(p *plan.Plan) []Violation {
	var vs []Violation

	for _, line := range p.Hooks[anchor.HookKotlinImports] {
		if anchor.ClassifyLine(line) != anchor.LineImport {
			vs = append(vs, Violation{
				Code: CodeHookImportsImpure, Severity: SevCritical,
				Anchor: anchor.HookKotlinImports.String(),
				Reason: "imports hook may contain only import lines",
				Sample: firstLine(line),
			})
		}
	}

	if lines, ok := p.Hooks[anchor.HookKotlinTopLevel]; ok && len(lines) > 0 {
		decls := 0
		for _, line := range lines {
			switch anchor.ClassifyLine(line) {
			case anchor.LinePackage, anchor.LineImport:
				vs = append(vs, Violation{
					Code: CodeHookTopLevelImpure, Severity: SevCritical,
					Anchor: anchor.HookKotlinTopLevel.String(),
					Reason: "top-level hook may not carry package or import lines",
					Sample: firstLine(line),
				})
			case anchor.LineDeclaration:
				decls++
			}
		}
		if decls == 0 {
			vs = append(vs, Violation{
				Code: CodeHookTopLevelEmpty, Severity: SevCritical,
				Anchor: anchor.HookKotlinTopLevel.String(),
				Reason: "top-level hook has content but no recognizable declaration",
			})
		}
	}

	return vs
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	const max = 80
	if len(line) > max {
		return line[:max] + "…"
	}
	return line
}
