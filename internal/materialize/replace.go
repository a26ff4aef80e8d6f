package materialize

import (
	"strings"

	"github.com/ndjc/forge/internal/anchor"
)

// contextRadius is the number of characters of surrounding context captured
// in before/after audit samples.
const contextRadius = 40

// applyToContent applies one replacement to file content and records the
// change. Text markers are replaced by literal substring match, counting
// occurrences. Block markers are matched by their comment pair and replaced
// in one piece; a missing closing comment degrades to replacing the opening
// marker alone.
func applyToContent(content string, op replacement) (string, AnchorChange) {
	change := AnchorChange{Marker: op.marker}

	if !op.block {
		idx := strings.Index(content, op.marker)
		if idx < 0 {
			return content, change
		}
		change.Found = true
		change.ReplacedCount = strings.Count(content, op.marker)
		change.BeforeSample = sampleAround(content, idx, len(op.marker))
		out := strings.ReplaceAll(content, op.marker, op.value)
		change.AfterSample = sampleAround(out, idx, len(op.value))
		return out, change
	}

	open := op.marker
	start := strings.Index(content, open)
	if start < 0 {
		return content, change
	}
	change.Found = true

	end := start + len(open)
	closing := anchor.BlockMarkerClose(op.name)
	if ci := strings.Index(content[end:], closing); ci >= 0 {
		end += ci + len(closing)
	}

	change.ReplacedCount = 1
	change.BeforeSample = sampleAround(content, start, end-start)
	out := content[:start] + op.value + content[end:]
	change.AfterSample = sampleAround(out, start, len(op.value))
	return out, change
}

// sampleAround returns the replaced span and contextRadius characters of
// context on each side.
func sampleAround(s string, idx, width int) string {
	lo := idx - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := idx + width + contextRadius
	if hi > len(s) {
		hi = len(s)
	}
	return s[lo:hi]
}
