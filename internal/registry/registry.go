// Package registry loads the per-template anchor registry: the closed
// whitelist of anchor keys, alias tables, required anchors with their default
// sources, and the critical marker list for the materializer fuse. A registry
// is loaded once per run and treated as immutable input.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ndjc/forge/internal/anchor"
)

var (
	ErrUnknownTemplate = errors.New("registry: unknown template")
	ErrInvalid         = errors.New("registry: invalid registry file")
)

//go:embed circle-basic.yaml
var circleBasicYAML []byte

// file is the on-disk YAML shape.
type file struct {
	Template string `yaml:"template"`
	Text     struct {
		Keys     []string          `yaml:"keys"`
		Required map[string]string `yaml:"required"` // name -> default source
	} `yaml:"text"`
	Block struct {
		Keys     []string `yaml:"keys"`
		Required []string `yaml:"required"`
	} `yaml:"block"`
	List struct {
		Keys    []string          `yaml:"keys"`
		Aliases map[string]string `yaml:"aliases"`
	} `yaml:"list"`
	If struct {
		Keys []string `yaml:"keys"`
	} `yaml:"if"`
	Hooks    []string `yaml:"hooks"`
	Critical []string `yaml:"critical"`
}

// Registry is the immutable, canonicalized registry for one template.
type Registry struct {
	Template string

	allowed map[anchor.Key]struct{}

	// RequiredText maps required text anchor names to their default source:
	// "packageId", "appName", "template", or "literal:<value>".
	RequiredText map[string]string

	// RequiredBlocks lists block anchor names that must be non-empty.
	RequiredBlocks []string

	// ListAliases maps alias names to canonical list names (ROUTE -> ROUTES).
	ListAliases map[string]string

	// Critical lists the marker names whose combined replacement count must be
	// non-zero for a run to publish ("PACKAGE_NAME", "BLOCK:PERMISSIONS", ...).
	Critical []string
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return parse(data)
}

// Default returns the embedded registry for the circle-basic template.
func Default() *Registry {
	r, err := parse(circleBasicYAML)
	if err != nil {
		// The embedded registry is part of the build; failing to parse it is
		// a programming error, not a runtime condition.
		panic(fmt.Sprintf("registry: embedded circle-basic registry invalid: %v", err))
	}
	return r
}

func parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if f.Template == "" {
		return nil, fmt.Errorf("%w: missing template name", ErrInvalid)
	}

	r := &Registry{
		Template:       f.Template,
		allowed:        make(map[anchor.Key]struct{}),
		RequiredText:   make(map[string]string),
		RequiredBlocks: append([]string(nil), f.Block.Required...),
		ListAliases:    make(map[string]string),
		Critical:       append([]string(nil), f.Critical...),
	}

	add := func(group anchor.Group, names []string) error {
		for _, n := range names {
			k, ok := anchor.Parse(n, group)
			if !ok {
				return fmt.Errorf("%w: bad %s key %q", ErrInvalid, group, n)
			}
			r.allowed[k] = struct{}{}
		}
		return nil
	}
	if err := add(anchor.GroupText, f.Text.Keys); err != nil {
		return nil, err
	}
	if err := add(anchor.GroupBlock, f.Block.Keys); err != nil {
		return nil, err
	}
	if err := add(anchor.GroupList, f.List.Keys); err != nil {
		return nil, err
	}
	if err := add(anchor.GroupIf, f.If.Keys); err != nil {
		return nil, err
	}
	if err := add(anchor.GroupHook, f.Hooks); err != nil {
		return nil, err
	}

	for name, source := range f.Text.Required {
		k, ok := anchor.Parse(name, anchor.GroupText)
		if !ok {
			return nil, fmt.Errorf("%w: bad required text key %q", ErrInvalid, name)
		}
		r.RequiredText[k.Name] = source
		r.allowed[k] = struct{}{}
	}
	for alias, target := range f.List.Aliases {
		ak, ok := anchor.Parse(alias, anchor.GroupList)
		if !ok {
			return nil, fmt.Errorf("%w: bad list alias %q", ErrInvalid, alias)
		}
		tk, ok := anchor.Parse(target, anchor.GroupList)
		if !ok {
			return nil, fmt.Errorf("%w: bad list alias target %q", ErrInvalid, target)
		}
		r.ListAliases[ak.Name] = tk.Name
		r.allowed[tk] = struct{}{}
	}

	return r, nil
}

// Allows reports whether the key is on the template's whitelist. Resource
// keys are path-scoped and validated by the path rules instead, so they are
// always allowed here.
func (r *Registry) Allows(k anchor.Key) bool {
	if k.Group == anchor.GroupRes {
		return true
	}
	_, ok := r.allowed[k]
	return ok
}

// ListKeys returns the whitelisted canonical list anchor names in sorted
// order.
func (r *Registry) ListKeys() []string {
	var names []string
	for k := range r.allowed {
		if k.Group == anchor.GroupList {
			names = append(names, k.Name)
		}
	}
	sort.Strings(names)
	return names
}

// ResolveListAlias maps an aliased list name to its canonical name, or
// returns the name unchanged.
func (r *Registry) ResolveListAlias(name string) string {
	if target, ok := r.ListAliases[name]; ok {
		return target
	}
	return name
}

// ForTemplate returns the registry for the named template. With no explicit
// path only the embedded default is available.
func ForTemplate(template, path string) (*Registry, error) {
	if path != "" {
		r, err := Load(path)
		if err != nil {
			return nil, err
		}
		if r.Template != template {
			return nil, fmt.Errorf("%w: registry is for %q, contract wants %q", ErrUnknownTemplate, r.Template, template)
		}
		return r, nil
	}
	def := Default()
	if def.Template != template {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}
	return def, nil
}
