// Package plan defines the internal, generator-facing normalization of a
// contract. A plan is produced once by the compiler, mutated in place by the
// sanitizer, read by the linter and consumed by the materializer.
package plan

import (
	"github.com/ndjc/forge/internal/anchor"
)

// Meta carries the run-identifying fields every stage needs.
type Meta struct {
	Template  string   `json:"template"`
	AppName   string   `json:"appName"`
	PackageID string   `json:"packageId"`
	Mode      string   `json:"mode"`
	Locales   []string `json:"locales,omitempty"`
}

// Gradle summarizes the build-file deltas the materializer applies.
type Gradle struct {
	ApplicationID string   `json:"applicationId"`
	ResConfigs    []string `json:"resConfigs,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	MinSDK        int      `json:"minSdk,omitempty"`
	TargetSDK     int      `json:"targetSdk,omitempty"`
}

// CompanionFile is an extra file written outside the anchor system.
// Mode B only; restricted to inert resource kinds unless explicitly
// overridden.
type CompanionFile struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// Plan is the canonicalized, whitelisted, template-ready form of a contract.
// All anchor maps are keyed by typed keys; anchor.Key implements
// encoding.TextMarshaler so persisted plans keep the PREFIX:NAME form.
type Plan struct {
	Meta       Meta                    `json:"meta"`
	Text       map[anchor.Key]string   `json:"text"`
	Block      map[anchor.Key]string   `json:"block"`
	Lists      map[anchor.Key][]string `json:"lists"`
	If         map[anchor.Key]bool     `json:"if"`
	Resources  map[string]string       `json:"resources,omitempty"`
	Hooks      map[anchor.Key][]string `json:"hooks,omitempty"`
	Gradle     Gradle                  `json:"gradle"`
	Companions []CompanionFile         `json:"companions,omitempty"`
}

// New returns an empty plan with all maps allocated.
func New() *Plan {
	return &Plan{
		Text:      make(map[anchor.Key]string),
		Block:     make(map[anchor.Key]string),
		Lists:     make(map[anchor.Key][]string),
		If:        make(map[anchor.Key]bool),
		Resources: make(map[string]string),
		Hooks:     make(map[anchor.Key][]string),
	}
}

// AppendHook appends lines to a named hook.
func (p *Plan) AppendHook(k anchor.Key, lines ...string) {
	if len(lines) == 0 {
		return
	}
	p.Hooks[k] = append(p.Hooks[k], lines...)
}
