package validate

// Severity of an issue. Critical issues block the pipeline; warnings are
// informational and never block on their own.
type Severity string

const (
	SevCritical Severity = "critical"
	SevWarning  Severity = "warning"
)

// Issue codes. E_-prefixed codes are always critical; W_-prefixed codes are
// warnings. Codes are stable: callers render feedback from them.
const (
	CodeSchema = "E_SCHEMA"

	CodeLimitsFileCount   = "E_LIMITS_FILE_COUNT"
	CodeLimitsFileSize    = "E_LIMITS_FILE_SIZE"
	CodeLimitsAnchorBytes = "E_LIMITS_ANCHOR_BYTES"

	CodeSecurityPermission = "E_SECURITY_PERMISSION"
	CodeSecurityNetwork    = "E_SECURITY_NETWORK"
	CodeSecurityReflection = "E_SECURITY_REFLECTION"
	CodeSecurityDynCode    = "E_SECURITY_DYNCODE"
	CodeSecurityExec       = "E_SECURITY_EXEC"

	CodePackagePrefix = "E_PACKAGE_PREFIX"
	CodePathGrammar   = "E_PATH_GRAMMAR"
	CodePathLayout    = "E_PATH_LAYOUT"
	CodePathTraversal = "E_PATH_TRAVERSAL"
	CodeAppIDMismatch = "E_PATH_APPID_MISMATCH"

	CodeModeAFiles        = "E_MODE_A_FILES"
	CodeTextRequiredEmpty = "E_TEXT_REQUIRED_EMPTY"
	CodeBlockEmptied      = "E_BLOCK_EMPTIED"

	CodeModeBNoFiles   = "W_MODE_B_NO_FILES"
	CodeListAutofill   = "W_LIST_AUTOFILLED"
	CodeBlockAutofill  = "W_BLOCK_AUTOFILLED"
	CodeBlockRelocated = "W_BLOCK_RELOCATED"
)

// Issue is one validator finding. Anchor and Where are optional locators;
// Sample carries a short excerpt of the offending content.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Anchor   string   `json:"anchor,omitempty"`
	Where    string   `json:"where,omitempty"`
	Reason   string   `json:"reason"`
	Sample   string   `json:"sample,omitempty"`
}

func critical(code, reason string) Issue {
	return Issue{Code: code, Severity: SevCritical, Reason: reason}
}

func warning(code, reason string) Issue {
	return Issue{Code: code, Severity: SevWarning, Reason: reason}
}

// sample trims content to a short excerpt for issue reporting.
func sample(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
