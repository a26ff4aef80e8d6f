// Package contract defines the v1 contract document consumed from the
// LLM/orchestration layer. A contract is decoded once per run and never
// mutated; the compiler reads it into a plan.
package contract

import (
	"encoding/json"
	"fmt"
	"io"
)

// Mode selects how much of the app the contract carries.
// Mode A is anchors-only; mode B may add companion files.
const (
	ModeA = "A"
	ModeB = "B"
)

// File kinds.
const (
	KindSource        = "source"
	KindValues        = "values"
	KindDrawable      = "drawable"
	KindRaw           = "raw"
	KindManifestPatch = "manifest_patch"
)

// Content encodings.
const (
	EncodingUTF8   = "utf8"
	EncodingBase64 = "base64"
)

// Metadata identifies the run and carries per-run constraints.
type Metadata struct {
	RunID     string   `json:"runId,omitempty"`
	Mode      string   `json:"mode"`
	Template  string   `json:"template"`
	AppName   string   `json:"appName"`
	PackageID string   `json:"packageId"`
	Locales   []string `json:"locales,omitempty"`

	// Optional per-run tightening of the configured limits. Zero means
	// "use the configured default".
	MaxFiles       int `json:"maxFiles,omitempty"`
	MaxFileKB      int `json:"maxFileKB,omitempty"`
	MaxAnchorBytes int `json:"maxAnchorBytes,omitempty"`
}

// GradlePatch carries build-file deltas.
type GradlePatch struct {
	MinSDK        int      `json:"minSdk,omitempty"`
	TargetSDK     int      `json:"targetSdk,omitempty"`
	CompileSDK    int      `json:"compileSdk,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	ProguardExtra []string `json:"proguardExtra,omitempty"`
}

// Patches groups all declarative deltas outside the anchor system.
type Patches struct {
	Gradle              GradlePatch `json:"gradle,omitempty"`
	ManifestPermissions []string    `json:"manifestPermissions,omitempty"`
}

// File is one contract-supplied file.
type File struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Encoding string `json:"encoding,omitempty"` // "" means utf8
	Content  string `json:"content"`
}

// GradleAnchors is the gradle sub-object of the anchors payload.
type GradleAnchors struct {
	ApplicationID string   `json:"applicationId"`
	ResConfigs    []string `json:"resConfigs,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
}

// Anchors is the raw, possibly aliased anchor payload. List values may arrive
// as arrays or as comma/newline-delimited strings, so they decode loosely;
// the compiler coerces them.
type Anchors struct {
	Text   map[string]string `json:"text"`
	Block  map[string]string `json:"block"`
	List   map[string]any    `json:"list"`
	If     map[string]bool   `json:"if"`
	Gradle GradleAnchors     `json:"gradle"`
}

// Contract is the full v1 document.
type Contract struct {
	Metadata Metadata `json:"metadata"`
	Patches  Patches  `json:"patches,omitempty"`
	Files    []File   `json:"files"`
	Anchors  Anchors  `json:"anchors"`
}

// Decode reads a contract from JSON. Unknown anchor keys must survive decode
// so the compiler can drop them against the whitelist, so no field-level
// strictness is applied here; structural problems surface as schema issues in
// the validator, not decode errors.
func Decode(r io.Reader) (*Contract, error) {
	var c Contract
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("contract: decode: %w", err)
	}
	return &c, nil
}

// ValidKind reports whether k is a known file kind.
func ValidKind(k string) bool {
	switch k {
	case KindSource, KindValues, KindDrawable, KindRaw, KindManifestPatch:
		return true
	}
	return false
}

// ValidEncoding reports whether e is a known encoding ("" counts as utf8).
func ValidEncoding(e string) bool {
	switch e {
	case "", EncodingUTF8, EncodingBase64:
		return true
	}
	return false
}
