package validate

import (
	"fmt"

	"github.com/ndjc/forge/internal/contract"
)

// checkSchema verifies structural conformance: required fields present,
// enum-valued fields in range, anchor maps non-nil. Every finding carries the
// single E_SCHEMA code; a non-empty result terminates validation.
func checkSchema(c *contract.Contract) []Issue {
	var issues []Issue
	fail := func(where, reason string) {
		is := critical(CodeSchema, reason)
		is.Where = where
		issues = append(issues, is)
	}

	md := c.Metadata
	if md.Mode != contract.ModeA && md.Mode != contract.ModeB {
		fail("metadata.mode", fmt.Sprintf("mode must be %q or %q, got %q", contract.ModeA, contract.ModeB, md.Mode))
	}
	if md.Template == "" {
		fail("metadata.template", "template is required")
	}
	if md.AppName == "" {
		fail("metadata.appName", "appName is required")
	}
	if md.PackageID == "" {
		fail("metadata.packageId", "packageId is required")
	}

	if c.Anchors.Text == nil {
		fail("anchors.text", "text anchor map is required")
	}
	if c.Anchors.Block == nil {
		fail("anchors.block", "block anchor map is required")
	}
	if c.Anchors.List == nil {
		fail("anchors.list", "list anchor map is required")
	}
	if c.Anchors.If == nil {
		fail("anchors.if", "if anchor map is required")
	}

	for i, f := range c.Files {
		where := fmt.Sprintf("files[%d]", i)
		if f.Path == "" {
			fail(where+".path", "path is required")
		}
		if !contract.ValidKind(f.Kind) {
			fail(where+".kind", fmt.Sprintf("unknown kind %q", f.Kind))
		}
		if !contract.ValidEncoding(f.Encoding) {
			fail(where+".encoding", fmt.Sprintf("unknown encoding %q", f.Encoding))
		}
	}

	return issues
}
