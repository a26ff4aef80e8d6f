package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ndjc/forge/internal/contract"
)

// PackagePrefix is the fixed namespace every generated app lives under.
const PackagePrefix = "app.ndjc."

// Per-kind path grammars. Source goes under java/, resources under their
// matching res/ subfolder, manifest patches target the manifest itself.
var pathGrammar = map[string]*regexp.Regexp{
	contract.KindSource:        regexp.MustCompile(`^app/src/main/java/[A-Za-z0-9_/.-]+\.(kt|java)$`),
	contract.KindValues:        regexp.MustCompile(`^app/src/main/res/values(-[A-Za-z0-9-]+)?/[A-Za-z0-9_.-]+\.xml$`),
	contract.KindDrawable:      regexp.MustCompile(`^app/src/main/res/drawable(-[A-Za-z0-9-]+)?/[A-Za-z0-9_.-]+$`),
	contract.KindRaw:           regexp.MustCompile(`^app/src/main/res/raw/[A-Za-z0-9_.-]+$`),
	contract.KindManifestPatch: regexp.MustCompile(`^app/src/main/AndroidManifest\.xml$`),
}

// checkPaths enforces the package namespace, the per-kind path grammar, the
// layout ban, traversal safety, and applicationId agreement.
func checkPaths(c *contract.Contract) []Issue {
	var issues []Issue

	if !strings.HasPrefix(c.Metadata.PackageID, PackagePrefix) {
		is := critical(CodePackagePrefix,
			fmt.Sprintf("packageId %q must start with %q", c.Metadata.PackageID, PackagePrefix))
		is.Where = "metadata.packageId"
		issues = append(issues, is)
	}

	for i, f := range c.Files {
		where := fmt.Sprintf("files[%d] %s", i, f.Path)

		if strings.HasPrefix(f.Path, "/") || strings.Contains(f.Path, "..") || strings.Contains(f.Path, "\\") {
			is := critical(CodePathTraversal, "absolute paths and traversal segments are rejected")
			is.Where = where
			issues = append(issues, is)
			continue
		}
		if strings.Contains(f.Path, "res/layout/") {
			is := critical(CodePathLayout, "res/layout/ is forbidden; screens are anchor-driven")
			is.Where = where
			issues = append(issues, is)
			continue
		}
		if re, ok := pathGrammar[f.Kind]; ok && !re.MatchString(f.Path) {
			is := critical(CodePathGrammar,
				fmt.Sprintf("path does not match the %s grammar", f.Kind))
			is.Where = where
			issues = append(issues, is)
		}
	}

	// applicationId, the PACKAGE_NAME text anchor and metadata.packageId must
	// agree. The compiler can repair a missing one, but a conflicting one is
	// a contract error.
	pkg := c.Metadata.PackageID
	if appID := c.Anchors.Gradle.ApplicationID; appID != "" && appID != pkg {
		is := critical(CodeAppIDMismatch,
			fmt.Sprintf("gradle.applicationId %q != metadata.packageId %q", appID, pkg))
		is.Where = "anchors.gradle.applicationId"
		issues = append(issues, is)
	}
	if txt, ok := c.Anchors.Text["PACKAGE_NAME"]; ok && txt != "" && txt != pkg {
		is := critical(CodeAppIDMismatch,
			fmt.Sprintf("text PACKAGE_NAME %q != metadata.packageId %q", txt, pkg))
		is.Anchor = "PACKAGE_NAME"
		issues = append(issues, is)
	}

	return issues
}
