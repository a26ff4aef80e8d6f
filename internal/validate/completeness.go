package validate

import (
	"fmt"

	"github.com/ndjc/forge/internal/anchor"
	"github.com/ndjc/forge/internal/contract"
	"github.com/ndjc/forge/internal/registry"
)

// checkCompleteness enforces mode rules and required anchors. Missing list
// and block anchors are warnings (the compiler auto-fills them); missing
// required text anchors that cannot be defaulted from metadata are critical.
func checkCompleteness(c *contract.Contract, reg *registry.Registry) []Issue {
	var issues []Issue

	switch c.Metadata.Mode {
	case contract.ModeA:
		if len(c.Files) > 0 {
			is := critical(CodeModeAFiles,
				fmt.Sprintf("mode A contracts must carry zero files, got %d", len(c.Files)))
			is.Where = "files"
			issues = append(issues, is)
		}
	case contract.ModeB:
		if len(c.Files) == 0 {
			is := warning(CodeModeBNoFiles, "mode B contract carries no files")
			is.Where = "files"
			issues = append(issues, is)
		}
	}

	// Required text anchors must be non-empty unless the registry can default
	// them from metadata.
	for name, source := range reg.RequiredText {
		if v, ok := c.Anchors.Text[name]; ok && v != "" {
			continue
		}
		if defaultable(source, c.Metadata) {
			continue
		}
		is := critical(CodeTextRequiredEmpty, fmt.Sprintf("required text anchor %s is empty", name))
		is.Anchor = name
		issues = append(issues, is)
	}

	// Required block anchors the contract omitted are seeded with an empty
	// placeholder by the compiler, mirroring the list auto-fill.
	for _, name := range reg.RequiredBlocks {
		if v, ok := c.Anchors.Block[name]; !ok || v == "" {
			is := warning(CodeBlockAutofill, fmt.Sprintf("required block anchor %s missing, auto-filled empty", name))
			is.Anchor = name
			issues = append(issues, is)
		}
	}

	// Whitelisted list anchors the contract does not mention will be
	// auto-filled with [] by the compiler; surface that as a warning so the
	// caller can see the gap.
	seen := make(map[string]struct{}, len(c.Anchors.List))
	for raw := range c.Anchors.List {
		if k, ok := anchor.Parse(raw, anchor.GroupList); ok {
			seen[reg.ResolveListAlias(k.Name)] = struct{}{}
		}
	}
	for _, name := range missingListKeys(reg, seen) {
		is := warning(CodeListAutofill, fmt.Sprintf("list anchor %s missing, auto-filled with []", name))
		is.Anchor = name
		issues = append(issues, is)
	}

	return issues
}

func defaultable(source string, md contract.Metadata) bool {
	switch source {
	case "packageId":
		return md.PackageID != ""
	case "appName", "":
		return md.AppName != ""
	case "template":
		return md.Template != ""
	default: // literal:<value>
		return true
	}
}

func missingListKeys(reg *registry.Registry, seen map[string]struct{}) []string {
	var missing []string
	for _, name := range reg.ListKeys() {
		if _, ok := seen[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
