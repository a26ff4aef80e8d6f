package validate

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ndjc/forge/internal/contract"
)

// forbiddenPermissions are never granted to generated apps, regardless of
// what the contract asks for.
var forbiddenPermissions = map[string]struct{}{
	"android.permission.SEND_SMS":                 {},
	"android.permission.RECEIVE_SMS":              {},
	"android.permission.READ_SMS":                 {},
	"android.permission.CAMERA":                   {},
	"android.permission.RECORD_AUDIO":             {},
	"android.permission.SYSTEM_ALERT_WINDOW":      {},
	"android.permission.READ_CONTACTS":            {},
	"android.permission.WRITE_CONTACTS":           {},
	"android.permission.READ_CALL_LOG":            {},
	"android.permission.PROCESS_OUTGOING_CALLS":   {},
	"android.permission.REQUEST_INSTALL_PACKAGES": {},
}

// securityPattern pairs an issue code with the regex that detects it.
type securityPattern struct {
	code string
	re   *regexp.Regexp
	why  string
}

var securityPatterns = []securityPattern{
	{CodeSecurityNetwork,
		regexp.MustCompile(`https?://[0-9]{1,3}(?:\.[0-9]{1,3}){3}`),
		"hard-coded IP network target"},
	{CodeSecurityNetwork,
		regexp.MustCompile(`\bhttps?://[A-Za-z0-9.-]+\.[A-Za-z]{2,}[^\s"']*`),
		"hard-coded URL"},
	{CodeSecurityReflection,
		regexp.MustCompile(`Class\.forName|getDeclaredMethod|getDeclaredField|java\.lang\.reflect|kotlin\.reflect\.full`),
		"reflection API usage"},
	{CodeSecurityDynCode,
		regexp.MustCompile(`DexClassLoader|PathClassLoader|InMemoryDexClassLoader|defineClass|System\.load(Library)?\(`),
		"dynamic class loading"},
	{CodeSecurityExec,
		regexp.MustCompile(`Runtime\.getRuntime\(\)\.exec|ProcessBuilder\(|/system/bin/sh|\bsu\s+-c\b`),
		"shell or process execution"},
}

// checkSecurity scans manifest permissions, file content and block anchors
// for forbidden patterns. Every hit is critical.
func checkSecurity(c *contract.Contract) []Issue {
	var issues []Issue

	for _, p := range c.Patches.ManifestPermissions {
		if _, bad := forbiddenPermissions[strings.TrimSpace(p)]; bad {
			is := critical(CodeSecurityPermission, fmt.Sprintf("permission %s is forbidden", p))
			is.Where = "patches.manifestPermissions"
			issues = append(issues, is)
		}
	}

	for i, f := range c.Files {
		content := f.Content
		if f.Encoding == contract.EncodingBase64 {
			decoded, err := base64.StdEncoding.DecodeString(f.Content)
			if err != nil || !utf8.Valid(decoded) {
				continue // binary payloads are size-capped, not text-scanned
			}
			content = string(decoded)
		}
		issues = append(issues, scanContent(content, fmt.Sprintf("files[%d] %s", i, f.Path), "")...)
	}

	for name, body := range c.Anchors.Block {
		issues = append(issues, scanContent(body, "anchors.block", name)...)
	}

	return issues
}

func scanContent(content, where, anchorName string) []Issue {
	var issues []Issue
	for _, p := range securityPatterns {
		m := p.re.FindString(content)
		if m == "" {
			continue
		}
		is := critical(p.code, p.why)
		is.Where = where
		is.Anchor = anchorName
		is.Sample = sample(m)
		issues = append(issues, is)
	}
	return issues
}
