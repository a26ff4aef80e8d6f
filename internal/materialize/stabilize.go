package materialize

import (
	"regexp"
	"strings"
)

// The stabilizer makes defensive, idiomatic-syntax repairs on the Gradle
// build file after replacement. Marker substitution can leave structurally
// invalid Gradle when upstream content is malformed; this pass balances
// braces, re-enables a commented resConfigs line and normalizes line
// endings. It deliberately stays line-textual: the build file is not modeled
// as an AST here.

var commentedResConfigs = regexp.MustCompile(`(?m)^(\s*)//\s*(resConfigs\s*\(.*\))\s*$`)

func stabilizeGradle(content string, resConfigs []string) string {
	out := strings.ReplaceAll(content, "\r\n", "\n")

	if len(resConfigs) > 0 {
		quoted := make([]string, len(resConfigs))
		for i, rc := range resConfigs {
			quoted[i] = `"` + rc + `"`
		}
		line := "resConfigs(" + strings.Join(quoted, ", ") + ")"
		if commentedResConfigs.MatchString(out) {
			out = commentedResConfigs.ReplaceAllString(out, "${1}"+line)
		}
	}

	out = balanceBraces(out)

	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

// balanceBraces appends missing closers and drops surplus trailing closers.
// Counting ignores string literals crudely by skipping quoted spans on each
// line; nested or multi-line strings in a Gradle file are rare enough that a
// line scan holds up.
func balanceBraces(content string) string {
	opens, closes := 0, 0
	for _, line := range strings.Split(content, "\n") {
		stripped := stripQuoted(line)
		opens += strings.Count(stripped, "{")
		closes += strings.Count(stripped, "}")
	}

	switch {
	case opens > closes:
		out := strings.TrimRight(content, "\n")
		for i := 0; i < opens-closes; i++ {
			out += "\n}"
		}
		return out + "\n"
	case closes > opens:
		lines := strings.Split(content, "\n")
		excess := closes - opens
		for i := len(lines) - 1; i >= 0 && excess > 0; i-- {
			if strings.TrimSpace(lines[i]) == "}" {
				lines = append(lines[:i], lines[i+1:]...)
				excess--
			}
		}
		return strings.Join(lines, "\n")
	default:
		return content
	}
}

func stripQuoted(line string) string {
	var b strings.Builder
	inStr := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '"' && (i == 0 || line[i-1] != '\\') {
			inStr = !inStr
			continue
		}
		if !inStr {
			b.WriteByte(c)
		}
	}
	return b.String()
}
