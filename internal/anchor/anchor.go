// Package anchor defines the typed anchor key model and the marker grammar
// shared by every pipeline stage. Raw contract keys are parsed into a Key
// exactly once, at the compiler boundary; downstream stages never re-parse
// prefix strings.
package anchor

import (
	"strings"
)

// Group identifies which anchor family a key belongs to.
type Group int

const (
	GroupText Group = iota
	GroupBlock
	GroupList
	GroupIf
	GroupRes
	GroupHook
)

// groupPrefixes maps canonical prefixes to groups. The reverse mapping is
// Group.Prefix.
var groupPrefixes = map[string]Group{
	"TEXT":  GroupText,
	"BLOCK": GroupBlock,
	"LIST":  GroupList,
	"IF":    GroupIf,
	"RES":   GroupRes,
	"HOOK":  GroupHook,
}

// Prefix returns the canonical key prefix for the group.
func (g Group) Prefix() string {
	switch g {
	case GroupText:
		return "TEXT"
	case GroupBlock:
		return "BLOCK"
	case GroupList:
		return "LIST"
	case GroupIf:
		return "IF"
	case GroupRes:
		return "RES"
	case GroupHook:
		return "HOOK"
	}
	return "UNKNOWN"
}

func (g Group) String() string { return g.Prefix() }

// Key is the discriminated form of an anchor identifier. Name is upper-cased
// with whitespace collapsed to underscores, except for resource keys, whose
// name is a case-sensitive path under res/.
type Key struct {
	Group Group
	Name  string
}

// String renders the canonical PREFIX:NAME form.
func (k Key) String() string {
	return k.Group.Prefix() + ":" + k.Name
}

// MarshalText lets Keys serve as JSON object keys in persisted plans.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the canonical form back. Unknown prefixes fail.
func (k *Key) UnmarshalText(b []byte) error {
	parsed, ok := Parse(string(b), GroupText)
	if !ok {
		return &ParseError{Raw: string(b)}
	}
	*k = parsed
	return nil
}

// ParseError reports an anchor key that could not be canonicalized.
type ParseError struct{ Raw string }

func (e *ParseError) Error() string { return "anchor: cannot canonicalize key " + e.Raw }

// Text, Block, List, If, Res and Hook are shorthand constructors for
// already-canonical names.
func Text(name string) Key  { return Key{GroupText, canonName(name)} }
func Block(name string) Key { return Key{GroupBlock, canonName(name)} }
func List(name string) Key  { return Key{GroupList, canonName(name)} }
func If(name string) Key    { return Key{GroupIf, canonName(name)} }
func Res(path string) Key   { return Key{GroupRes, strings.TrimSpace(path)} }
func Hook(name string) Key  { return Key{GroupHook, canonName(name)} }

// Well-known hook keys.
var (
	HookKotlinImports  = Hook("KOTLIN_IMPORTS")
	HookKotlinTopLevel = Hook("KOTLIN_TOPLEVEL")
)

// Parse canonicalizes a raw contract key into a Key. def is the group assumed
// for bare keys (keys without a recognized prefix). Returns false for keys
// that cannot be canonicalized (empty after trimming).
//
// Canonicalization is idempotent: Parse(k.String(), g) == k for any g.
func Parse(raw string, def Group) (Key, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Key{}, false
	}

	// Shorthand aliases: "res.drawable/icon.png" -> RES:drawable/icon.png,
	// "hook.kotlin_imports" -> HOOK:KOTLIN_IMPORTS.
	if rest, ok := cutFold(s, "res."); ok {
		return Key{GroupRes, strings.TrimSpace(rest)}, rest != ""
	}
	if rest, ok := cutFold(s, "hook."); ok {
		return Key{GroupHook, canonName(rest)}, rest != ""
	}

	// Strip a leading NDJC: marker prefix so marker-shaped keys round-trip.
	if rest, ok := cutFold(s, "NDJC:"); ok {
		s = rest
	}

	group := def
	if prefix, rest, found := strings.Cut(s, ":"); found {
		if g, ok := groupPrefixes[strings.ToUpper(strings.TrimSpace(prefix))]; ok {
			group = g
			s = rest
		}
	}

	if group == GroupRes {
		name := strings.TrimSpace(s)
		return Key{GroupRes, name}, name != ""
	}
	name := canonName(s)
	return Key{group, name}, name != ""
}

// canonName upper-cases and collapses whitespace runs to single underscores.
func canonName(s string) string {
	fields := strings.Fields(strings.ToUpper(strings.TrimSpace(s)))
	return strings.Join(fields, "_")
}

func cutFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
