// Package validate decides whether a contract may proceed, and if not,
// explains exactly why. Checks run in a fixed order: schema, limits,
// security, paths, completeness. A schema failure short-circuits everything
// else; all other findings are aggregated so a caller sees every problem in
// one pass.
package validate

import (
	"go.uber.org/zap"

	"github.com/ndjc/forge/internal/contract"
	"github.com/ndjc/forge/internal/registry"
)

// Limits caps contract size. Zero values fall back to defaults.
type Limits struct {
	MaxFiles       int
	MaxFileKB      int
	MaxAnchorBytes int
}

// DefaultLimits mirror the production caps.
var DefaultLimits = Limits{
	MaxFiles:       40,
	MaxFileKB:      256,
	MaxAnchorBytes: 512 * 1024,
}

// Result is the validator verdict. OK is true only when no critical issue was
// produced; warnings do not block.
type Result struct {
	OK     bool    `json:"ok"`
	Issues []Issue `json:"issues"`
}

// Validator runs the full check sequence against contracts.
type Validator struct {
	reg    *registry.Registry
	limits Limits
	log    *zap.Logger
}

// New builds a validator. A nil logger is replaced with a no-op one.
func New(reg *registry.Registry, limits Limits, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	limits = limits.withDefaults()
	return &Validator{reg: reg, limits: limits, log: log}
}

func (l Limits) withDefaults() Limits {
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultLimits.MaxFiles
	}
	if l.MaxFileKB <= 0 {
		l.MaxFileKB = DefaultLimits.MaxFileKB
	}
	if l.MaxAnchorBytes <= 0 {
		l.MaxAnchorBytes = DefaultLimits.MaxAnchorBytes
	}
	return l
}

// effective tightens configured limits with per-contract constraints.
func (v *Validator) effective(md contract.Metadata) Limits {
	l := v.limits
	if md.MaxFiles > 0 && md.MaxFiles < l.MaxFiles {
		l.MaxFiles = md.MaxFiles
	}
	if md.MaxFileKB > 0 && md.MaxFileKB < l.MaxFileKB {
		l.MaxFileKB = md.MaxFileKB
	}
	if md.MaxAnchorBytes > 0 && md.MaxAnchorBytes < l.MaxAnchorBytes {
		l.MaxAnchorBytes = md.MaxAnchorBytes
	}
	return l
}

// Check validates the contract and returns the aggregated verdict.
func (v *Validator) Check(c *contract.Contract) *Result {
	if issues := checkSchema(c); len(issues) > 0 {
		// Structurally invalid documents get no semantic checks at all.
		v.log.Warn("contract failed schema check", zap.Int("issues", len(issues)))
		return &Result{OK: false, Issues: issues}
	}

	var issues []Issue
	issues = append(issues, checkLimits(c, v.effective(c.Metadata))...)
	issues = append(issues, checkSecurity(c)...)
	issues = append(issues, checkPaths(c)...)
	issues = append(issues, checkCompleteness(c, v.reg)...)

	res := &Result{OK: true, Issues: issues}
	for _, is := range issues {
		if is.Severity == SevCritical {
			res.OK = false
			break
		}
	}
	v.log.Info("contract validated",
		zap.Bool("ok", res.OK),
		zap.Int("issues", len(issues)),
		zap.String("packageId", c.Metadata.PackageID))
	return res
}
