package anchor

import (
	"regexp"
	"strings"
)

// Marker grammar: text anchors appear in template files as bare NDJC:<NAME>
// tokens and are replaced by literal substring match. Block anchors appear as
// an HTML-comment pair and are replaced as a unit. List/if/hook/resource
// anchors never appear literally in templates.

// TextMarker returns the literal token for a text anchor.
func TextMarker(name string) string { return "NDJC:" + name }

// BlockMarkerOpen returns the opening comment for a block anchor.
func BlockMarkerOpen(name string) string { return "<!-- NDJC:BLOCK:" + name + " -->" }

// BlockMarkerClose returns the optional closing comment for a block anchor.
func BlockMarkerClose(name string) string { return "<!-- END_BLOCK:" + name + " -->" }

// MarkerName extracts the anchor name from a recorded marker string
// ("NDJC:APP_LABEL" -> "APP_LABEL", "<!-- NDJC:BLOCK:PERMISSIONS -->" ->
// "BLOCK:PERMISSIONS"). Used by the critical-anchor fuse to match recorded
// changes against the registry's critical list.
func MarkerName(marker string) string {
	s := strings.TrimSpace(marker)
	s = strings.TrimPrefix(s, "<!--")
	s = strings.TrimSuffix(s, "-->")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "NDJC:")
	return s
}

var (
	// markerCommentLine matches whole lines whose only purpose is to carry a
	// marker inside an HTML or line comment.
	markerCommentLine = regexp.MustCompile(`(?m)^[ \t]*(<!--[^\n]*(?:NDJC:|END_BLOCK)[^\n]*-->|//[ \t]*(?:NDJC:|END_BLOCK)[^\n]*|#[ \t]*(?:NDJC:|END_BLOCK)[^\n]*)[ \t]*\r?\n?`)

	// bareMarker matches any surviving marker token embedded in other text.
	bareMarker = regexp.MustCompile(`(?:NDJC:|END_BLOCK:)[A-Za-z0-9_:./-]*`)

	// inlineMarkerComment matches marker-bearing HTML comments embedded
	// mid-line.
	inlineMarkerComment = regexp.MustCompile(`<!--[^\n]*?(?:NDJC:|END_BLOCK)[^\n]*?-->`)
)

// StripMarkers removes every remaining marker token and marker-bearing
// comment from content. The materializer runs this over all text-like files
// after replacement so no internal marker ever ships.
func StripMarkers(content string) string {
	out := markerCommentLine.ReplaceAllString(content, "")
	out = inlineMarkerComment.ReplaceAllString(out, "")
	out = bareMarker.ReplaceAllString(out, "")
	return out
}

// ContainsMarker reports whether content still carries any marker token.
func ContainsMarker(content string) bool {
	return strings.Contains(content, "NDJC:") || strings.Contains(content, "END_BLOCK:")
}
