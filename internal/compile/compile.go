// Package compile turns a validated contract into the canonical plan. Keys
// are canonicalized and intersected against the template registry; unknown
// keys are dropped (logged, never errored — unknown anchors are inert).
// Required anchors are defaulted from metadata, list values are coerced to
// string arrays, routes seed their companion block placeholders, and
// companion source is routed into hooks by the line classifier.
package compile

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ndjc/forge/internal/anchor"
	"github.com/ndjc/forge/internal/contract"
	"github.com/ndjc/forge/internal/plan"
	"github.com/ndjc/forge/internal/registry"
)

// Options controls compilation policy.
type Options struct {
	// AllowCompanionCode mirrors the lint gate override. When set, source
	// companions that classify cleanly as imports-only or top-level
	// declarations are absorbed into hooks. When unset (the default) source
	// files always stay companions so the lint gate sees and rejects them.
	AllowCompanionCode bool
}

// Compiler compiles contracts against one template registry.
type Compiler struct {
	reg  *registry.Registry
	opts Options
	log  *zap.Logger
}

// New builds a compiler. A nil logger is replaced with a no-op one.
func New(reg *registry.Registry, opts Options, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{reg: reg, opts: opts, log: log}
}

// Compile produces the plan for a contract. The contract is not mutated.
func (c *Compiler) Compile(ct *contract.Contract) (*plan.Plan, error) {
	if ct.Metadata.Template != c.reg.Template {
		return nil, fmt.Errorf("compile: contract targets template %q, registry is for %q",
			ct.Metadata.Template, c.reg.Template)
	}

	p := plan.New()
	p.Meta = plan.Meta{
		Template:  ct.Metadata.Template,
		AppName:   ct.Metadata.AppName,
		PackageID: ct.Metadata.PackageID,
		Mode:      ct.Metadata.Mode,
		Locales:   append([]string(nil), ct.Metadata.Locales...),
	}

	c.compileText(ct, p)
	c.compileBlocks(ct, p)
	c.compileLists(ct, p)
	c.compileIf(ct, p)
	c.compileGradle(ct, p)
	c.applyDefaults(ct, p)
	c.seedRequiredBlocks(p)
	c.seedRouteBlocks(p)
	if err := c.compileFiles(ct, p); err != nil {
		return nil, err
	}

	// Hard invariant: applicationId, PACKAGE_NAME and metadata.packageId
	// agree after compilation. The validator rejects conflicts; here we
	// repair omissions with metadata as the source of truth.
	p.Text[anchor.Text("PACKAGE_NAME")] = ct.Metadata.PackageID
	p.Gradle.ApplicationID = ct.Metadata.PackageID

	c.log.Info("contract compiled",
		zap.String("template", p.Meta.Template),
		zap.Int("text", len(p.Text)),
		zap.Int("blocks", len(p.Block)),
		zap.Int("lists", len(p.Lists)),
		zap.Int("companions", len(p.Companions)))
	return p, nil
}

func (c *Compiler) compileText(ct *contract.Contract, p *plan.Plan) {
	for raw, val := range ct.Anchors.Text {
		k, ok := anchor.Parse(raw, anchor.GroupText)
		if !ok || !c.reg.Allows(k) {
			c.log.Debug("dropping unknown text anchor", zap.String("key", raw))
			continue
		}
		if k.Group == anchor.GroupRes {
			p.Resources[k.Name] = val
			continue
		}
		p.Text[k] = val
	}
}

func (c *Compiler) compileBlocks(ct *contract.Contract, p *plan.Plan) {
	for raw, val := range ct.Anchors.Block {
		k, ok := anchor.Parse(raw, anchor.GroupBlock)
		if !ok || !c.reg.Allows(k) {
			c.log.Debug("dropping unknown block anchor", zap.String("key", raw))
			continue
		}
		p.Block[k] = val
	}
}

func (c *Compiler) compileLists(ct *contract.Contract, p *plan.Plan) {
	for raw, val := range ct.Anchors.List {
		k, ok := anchor.Parse(raw, anchor.GroupList)
		if !ok {
			continue
		}
		k.Name = c.reg.ResolveListAlias(k.Name)
		if !c.reg.Allows(k) {
			c.log.Debug("dropping unknown list anchor", zap.String("key", raw))
			continue
		}
		p.Lists[k] = coerceList(val)
	}
	// Whitelisted lists the contract omitted are auto-filled with [].
	for _, name := range c.reg.ListKeys() {
		k := anchor.List(name)
		if _, ok := p.Lists[k]; !ok {
			p.Lists[k] = []string{}
		}
	}
}

func (c *Compiler) compileIf(ct *contract.Contract, p *plan.Plan) {
	for raw, val := range ct.Anchors.If {
		k, ok := anchor.Parse(raw, anchor.GroupIf)
		if !ok || !c.reg.Allows(k) {
			c.log.Debug("dropping unknown if anchor", zap.String("key", raw))
			continue
		}
		p.If[k] = val
	}
}

func (c *Compiler) compileGradle(ct *contract.Contract, p *plan.Plan) {
	p.Gradle = plan.Gradle{
		ApplicationID: ct.Anchors.Gradle.ApplicationID,
		ResConfigs:    append([]string(nil), ct.Anchors.Gradle.ResConfigs...),
		Dependencies:  append([]string(nil), ct.Anchors.Gradle.Dependencies...),
		MinSDK:        ct.Patches.Gradle.MinSDK,
		TargetSDK:     ct.Patches.Gradle.TargetSDK,
	}
	p.Gradle.Dependencies = append(p.Gradle.Dependencies, ct.Patches.Gradle.Dependencies...)

	// Manifest permissions from patches compose the PERMISSIONS block when
	// the contract supplied none.
	if len(ct.Patches.ManifestPermissions) > 0 {
		k := anchor.Block("PERMISSIONS")
		if p.Block[k] == "" {
			var b strings.Builder
			for _, perm := range ct.Patches.ManifestPermissions {
				fmt.Fprintf(&b, "<uses-permission android:name=%q />\n", strings.TrimSpace(perm))
			}
			p.Block[k] = strings.TrimRight(b.String(), "\n")
		}
	}
}

// applyDefaults fills required text anchors from their registry-declared
// metadata source when the contract left them empty.
func (c *Compiler) applyDefaults(ct *contract.Contract, p *plan.Plan) {
	for name, source := range c.reg.RequiredText {
		k := anchor.Text(name)
		if p.Text[k] != "" {
			continue
		}
		switch {
		case source == "packageId":
			p.Text[k] = ct.Metadata.PackageID
		case source == "template":
			p.Text[k] = ct.Metadata.Template
		case strings.HasPrefix(source, "literal:"):
			p.Text[k] = strings.TrimPrefix(source, "literal:")
		default: // appName
			p.Text[k] = ct.Metadata.AppName
		}
	}
}

// seedRequiredBlocks fills registry-required block anchors the contract
// omitted with an empty placeholder, so their markers are still consumed
// during materialization. The validator surfaces the gap as a warning.
func (c *Compiler) seedRequiredBlocks(p *plan.Plan) {
	for _, name := range c.reg.RequiredBlocks {
		k, ok := anchor.Parse(name, anchor.GroupBlock)
		if !ok {
			continue
		}
		if _, exists := p.Block[k]; !exists {
			p.Block[k] = ""
		}
	}
}

// seedRouteBlocks guarantees each route has a block placeholder, even empty,
// so the materializer always finds a slot for route content.
func (c *Compiler) seedRouteBlocks(p *plan.Plan) {
	for _, route := range p.Lists[anchor.List("ROUTES")] {
		k, ok := anchor.Parse("ROUTE_"+route, anchor.GroupBlock)
		if !ok {
			continue
		}
		if _, exists := p.Block[k]; !exists {
			p.Block[k] = ""
		}
	}
}

// compileFiles routes contract files: resources land in the resources map,
// source files are classified and either absorbed into hooks or kept as
// companions, manifest patches stay companions.
func (c *Compiler) compileFiles(ct *contract.Contract, p *plan.Plan) error {
	for _, f := range ct.Files {
		content := f.Content
		if f.Encoding == contract.EncodingBase64 {
			decoded, err := base64.StdEncoding.DecodeString(f.Content)
			if err != nil {
				return fmt.Errorf("compile: file %s: bad base64: %w", f.Path, err)
			}
			if !utf8.Valid(decoded) && f.Kind == contract.KindSource {
				return fmt.Errorf("compile: file %s: source content is not text", f.Path)
			}
			content = string(decoded)
		}

		switch f.Kind {
		case contract.KindValues, contract.KindDrawable, contract.KindRaw:
			p.Resources[f.Path] = content
		case contract.KindSource:
			if !c.opts.AllowCompanionCode {
				// Without the override, source files stay companions so the
				// lint gate can reject them; absorbing them into hooks would
				// smuggle code past the gate.
				p.Companions = append(p.Companions, plan.CompanionFile{
					Path: f.Path, Kind: f.Kind, Content: content,
				})
				continue
			}
			switch anchor.ClassifyFragment(content) {
			case anchor.FragmentImports:
				p.AppendHook(anchor.HookKotlinImports, importLines(content)...)
			case anchor.FragmentTopLevel:
				p.AppendHook(anchor.HookKotlinTopLevel, anchor.Lines(content)...)
			default:
				// Neither imports-only nor top-level: keep as companion and
				// let the linter decide its fate.
				p.Companions = append(p.Companions, plan.CompanionFile{
					Path: f.Path, Kind: f.Kind, Content: content,
				})
			}
		default:
			p.Companions = append(p.Companions, plan.CompanionFile{
				Path: f.Path, Kind: f.Kind, Content: content,
			})
		}
	}
	return nil
}

// coerceList turns a loosely-decoded list value into a string slice. Arrays
// pass through; strings split on commas and newlines.
func coerceList(v any) []string {
	switch val := v.(type) {
	case []string:
		return trimmed(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			out = append(out, fmt.Sprint(e))
		}
		return trimmed(out)
	case string:
		split := strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == '\n' })
		return trimmed(split)
	case nil:
		return []string{}
	default:
		return []string{fmt.Sprint(val)}
	}
}

func trimmed(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func importLines(content string) []string {
	var out []string
	for _, line := range anchor.Lines(content) {
		if anchor.ClassifyLine(line) == anchor.LineImport {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}
