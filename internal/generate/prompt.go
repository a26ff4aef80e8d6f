package generate

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the contract-generation prompt. The model sees the
// exact JSON shape it must produce plus the request's hard identity fields,
// so its only degree of freedom is the anchor content.
func BuildPrompt(req Request) string {
	locales := strings.Join(req.Locales, ", ")
	if locales == "" {
		locales = "en"
	}

	var b strings.Builder
	b.WriteString("You are generating a build contract for an Android app template.\n")
	b.WriteString("Reply with a single JSON object and nothing else.\n\n")

	fmt.Fprintf(&b, "App request: %s\n\n", strings.TrimSpace(req.Description))

	b.WriteString("Hard constraints:\n")
	fmt.Fprintf(&b, "- metadata.template must be %q\n", req.Template)
	fmt.Fprintf(&b, "- metadata.packageId must be %q\n", req.PackageID)
	fmt.Fprintf(&b, "- metadata.appName must be %q\n", req.AppName)
	fmt.Fprintf(&b, "- metadata.locales must be [%s]\n", locales)
	b.WriteString("- metadata.mode is \"B\" when you emit companion files, \"A\" when files is empty\n")
	b.WriteString("- file paths are relative, forward-slash, never under res/layout/\n")
	b.WriteString("- never request dangerous permissions (SMS, camera, microphone, contacts, call log, overlays, package installs)\n")
	b.WriteString("- no reflection, dynamic code loading, or process execution in source content\n\n")

	b.WriteString("JSON shape:\n")
	b.WriteString(contractShape)
	b.WriteString("\nAnchor guidance:\n")
	b.WriteString("- anchors.text keys: APP_LABEL, HOME_TITLE, MAIN_BUTTON, HOME_SUBTITLE, PRIMARY_COLOR, ACCENT_COLOR, VERSION_NAME\n")
	b.WriteString("- anchors.block keys: PERMISSIONS, INTENT_FILTERS, ROUTE_HOME, ROUTE_DETAIL, ROUTE_SETTINGS, THEME_OVERRIDES, EXTRA_STRINGS\n")
	b.WriteString("- anchors.list keys: ROUTES, FEATURES, LOCALES, DEPENDENCIES\n")
	b.WriteString("- anchors.if keys: DARK_MODE, ANALYTICS, OFFLINE_CACHE, EDGE_TO_EDGE\n")
	b.WriteString("- block content must be pure fragments: no package lines, declarations stay out of statement blocks\n")
	return b.String()
}

const contractShape = `{
  "metadata": {
    "runId": "", "mode": "A|B", "template": "", "appName": "",
    "packageId": "", "locales": ["en"]
  },
  "anchors": {
    "text": {"APP_LABEL": "..."},
    "block": {"PERMISSIONS": "<uses-permission ... />"},
    "list": {"ROUTES": ["home"]},
    "if": {"DARK_MODE": true},
    "gradle": {"applicationId": "", "resConfigs": [], "dependencies": []}
  },
  "patches": {"manifestPermissions": [], "gradle": {"dependencies": []}},
  "files": [
    {"path": "app/src/main/res/values/extra.xml", "kind": "values",
     "encoding": "utf8", "content": "..."}
  ]
}
`
