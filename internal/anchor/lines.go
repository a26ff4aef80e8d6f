package anchor

import (
	"regexp"
	"strings"
)

// Line classification for Kotlin-shaped fragments. The pipeline never parses
// source; it tags each line with one of a closed set of categories and every
// downstream decision (sanitizer relocation, linter purity checks, companion
// routing) is expressed over those tags.

// LineClass is the category of a single line.
type LineClass int

const (
	LineBlank LineClass = iota
	LinePackage
	LineImport
	LineDeclaration
	LineStatement
)

func (c LineClass) String() string {
	switch c {
	case LineBlank:
		return "blank"
	case LinePackage:
		return "package"
	case LineImport:
		return "import"
	case LineDeclaration:
		return "declaration"
	case LineStatement:
		return "statement"
	}
	return "unknown"
}

var (
	packageLine = regexp.MustCompile(`^package\s+[\w.]+`)
	importLine  = regexp.MustCompile(`^import\s+\S+`)

	// A top-level declaration: a fun/class/object/interface/val/var/typealias
	// keyword at column 0, optionally behind annotations and modifiers.
	declLine = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s+)*` +
		`(?:(?:public|private|internal|protected|open|abstract|final|sealed|data|enum|annotation|inline|suspend|const|external|expect|actual)\s+)*` +
		`(?:fun|class|object|interface|val|var|typealias)\b`)
)

// ClassifyLine tags one line. Package and import lines are recognized only at
// column 0; indented occurrences are statements, which is what keeps nested
// code inside blocks from being relocated.
func ClassifyLine(line string) LineClass {
	if strings.TrimSpace(line) == "" {
		return LineBlank
	}
	if packageLine.MatchString(line) {
		return LinePackage
	}
	if importLine.MatchString(line) {
		return LineImport
	}
	if declLine.MatchString(line) {
		return LineDeclaration
	}
	return LineStatement
}

// FragmentKind summarizes a multi-line fragment.
type FragmentKind int

const (
	FragmentEmpty FragmentKind = iota
	// FragmentImports: every non-blank line is an import.
	FragmentImports
	// FragmentTopLevel: contains at least one column-0 declaration.
	FragmentTopLevel
	// FragmentStatements: only statement lines, safe to inject into a block.
	FragmentStatements
	// FragmentMixed: anything else (imports or package lines interleaved with
	// statements, no declaration). The sanitizer relocates what it can; the
	// linter reports what remains.
	FragmentMixed
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentEmpty:
		return "empty"
	case FragmentImports:
		return "imports"
	case FragmentTopLevel:
		return "toplevel"
	case FragmentStatements:
		return "statements"
	case FragmentMixed:
		return "mixed"
	}
	return "unknown"
}

// ClassifyFragment tags a whole fragment from its line classes.
func ClassifyFragment(s string) FragmentKind {
	var imports, packages, decls, stmts int
	for _, line := range strings.Split(s, "\n") {
		switch ClassifyLine(line) {
		case LineImport:
			imports++
		case LinePackage:
			packages++
		case LineDeclaration:
			decls++
		case LineStatement:
			stmts++
		}
	}
	switch {
	case imports+packages+decls+stmts == 0:
		return FragmentEmpty
	case decls > 0:
		return FragmentTopLevel
	case imports > 0 && packages == 0 && stmts == 0:
		return FragmentImports
	case imports == 0 && packages == 0:
		return FragmentStatements
	default:
		return FragmentMixed
	}
}

// Lines splits a fragment into lines, normalizing CRLF.
func Lines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
