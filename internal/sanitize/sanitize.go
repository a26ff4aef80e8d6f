// Package sanitize rewrites code-shaped plan fragments so statements,
// imports and top-level declarations land in their correct slots. Blocks keep
// only executable statements; import lines accumulate in the
// HOOK:KOTLIN_IMPORTS hook (deduplicated and sorted so import order is never
// a source of non-determinism); whole top-level bodies relocate to
// HOOK:KOTLIN_TOPLEVEL.
package sanitize

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ndjc/forge/internal/anchor"
	"github.com/ndjc/forge/internal/plan"
	"github.com/ndjc/forge/internal/validate"
)

// Options controls sanitizer strictness.
type Options struct {
	// EmptiedBlockIsError makes a block that was fully relocated into the
	// top-level hook a critical issue instead of a warning.
	EmptiedBlockIsError bool
}

// Apply sanitizes the plan in place and returns any issues found. The plan is
// always left in its cleanest reachable state, even when issues are reported.
func Apply(p *plan.Plan, opts Options, log *zap.Logger) []validate.Issue {
	if log == nil {
		log = zap.NewNop()
	}
	var issues []validate.Issue

	var importAcc []string
	for k, body := range p.Block {
		cleaned, imports := stripImpure(body)
		importAcc = append(importAcc, imports...)

		if anchor.ClassifyFragment(cleaned) == anchor.FragmentTopLevel {
			// The whole body is declaration-shaped: relocate it and empty
			// the block.
			p.AppendHook(anchor.HookKotlinTopLevel, nonBlankLines(cleaned)...)
			cleaned = ""
			code, sev := validate.CodeBlockRelocated, validate.SevWarning
			if opts.EmptiedBlockIsError {
				code, sev = validate.CodeBlockEmptied, validate.SevCritical
			}
			issues = append(issues, validate.Issue{
				Code:     code,
				Severity: sev,
				Anchor:   k.String(),
				Reason:   fmt.Sprintf("block %s held top-level declarations; moved to %s", k, anchor.HookKotlinTopLevel),
			})
			log.Debug("relocated block body to top-level hook", zap.String("anchor", k.String()))
		}
		p.Block[k] = cleaned
	}

	// The top-level hook may itself have been seeded with impure content;
	// re-apply the package-strip/import-extract pass to it.
	if lines, ok := p.Hooks[anchor.HookKotlinTopLevel]; ok {
		cleaned, imports := stripImpure(strings.Join(lines, "\n"))
		importAcc = append(importAcc, imports...)
		p.Hooks[anchor.HookKotlinTopLevel] = nonBlankLines(cleaned)
	}

	// Merge accumulated imports into the hook, then dedupe and sort.
	p.AppendHook(anchor.HookKotlinImports, importAcc...)
	if imports, ok := p.Hooks[anchor.HookKotlinImports]; ok {
		p.Hooks[anchor.HookKotlinImports] = dedupeSorted(imports)
	}

	return issues
}

// stripImpure removes package lines outright and extracts import lines,
// returning the remaining body and the imports found.
func stripImpure(body string) (string, []string) {
	var kept []string
	var imports []string
	for _, line := range anchor.Lines(body) {
		switch anchor.ClassifyLine(line) {
		case anchor.LinePackage:
			// dropped
		case anchor.LineImport:
			imports = append(imports, strings.TrimSpace(line))
		default:
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), imports
}

func nonBlankLines(s string) []string {
	var out []string
	for _, line := range anchor.Lines(s) {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
