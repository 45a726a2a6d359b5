// Package pathrw rewrites path strings embedded in structured documents
// (database cells, JSON, XML, link files) against an ordered table of
// prefix mappings, and resolves migration target paths.
//
// Prefix matching uses path-segment semantics: a mapping source is an
// ancestor of a value only when the match ends on a separator boundary.
// Both separator styles are understood on input; output uses the table's
// configured separator.
package pathrw

import (
	"fmt"
	"sort"
	"strings"
)

// Slash is the separator used when re-serializing rewritten paths.
type Slash string

const (
	SlashUnix    Slash = "/"
	SlashWindows Slash = `\`
)

// ParseSlash validates a configured separator string.
func ParseSlash(s string) (Slash, error) {
	switch s {
	case "", "/":
		return SlashUnix, nil
	case `\`:
		return SlashWindows, nil
	default:
		return "", fmt.Errorf("invalid target separator %q (must be / or \\)", s)
	}
}

// Mapping is one ordered source→target prefix pair.
type Mapping struct {
	Source string
	Target string
}

// Table is an ordered prefix replacement table. Lookup is first match in
// declared order; virtual path entries (e.g. "%AppDataPath%") are consulted
// after the configured mappings. Tables are built once from configuration
// and never mutated afterwards.
type Table struct {
	Mappings     []Mapping
	Slash        Slash
	VirtualPaths map[string]string

	// NoWarnings suppresses the unmatched-path warning for every value
	// rewritten against this table.
	NoWarnings bool
}

// ordered returns mappings followed by virtual path entries, in a stable
// order.
func (t *Table) ordered() []Mapping {
	if len(t.VirtualPaths) == 0 {
		return t.Mappings
	}
	out := make([]Mapping, 0, len(t.Mappings)+len(t.VirtualPaths))
	out = append(out, t.Mappings...)
	for _, name := range sortedKeys(t.VirtualPaths) {
		out = append(out, Mapping{Source: name, Target: t.VirtualPaths[name]})
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// rewrite applies the first matching mapping to p. The boolean reports
// whether any mapping matched.
func (t *Table) rewrite(p string) (string, bool) {
	segs := splitSegments(p)
	if len(segs) == 0 {
		return p, false
	}
	for _, m := range t.ordered() {
		src := splitSegments(m.Source)
		if !segmentsHavePrefix(segs, src) {
			continue
		}
		dst := splitSegments(m.Target)
		out := make([]string, 0, len(dst)+len(segs)-len(src))
		out = append(out, dst...)
		out = append(out, segs[len(src):]...)
		return joinSegments(out, t.Slash), true
	}
	return p, false
}

// splitSegments splits a path on both separator styles. An absolute unix
// path keeps a leading empty segment so that absolute and relative prefixes
// never match each other.
func splitSegments(p string) []string {
	if p == "" {
		return nil
	}
	norm := strings.ReplaceAll(p, `\`, "/")
	segs := strings.Split(norm, "/")
	// Trailing separators carry no information.
	for len(segs) > 1 && segs[len(segs)-1] == "" {
		segs = segs[:len(segs)-1]
	}
	return segs
}

func joinSegments(segs []string, slash Slash) string {
	if slash == "" {
		slash = SlashUnix
	}
	return strings.Join(segs, string(slash))
}

// segmentsHavePrefix reports whether prefix is a segment-aligned ancestor of
// segs (or equal to it).
func segmentsHavePrefix(segs, prefix []string) bool {
	if len(prefix) == 0 || len(prefix) > len(segs) {
		return false
	}
	for i, s := range prefix {
		if segs[i] != s {
			return false
		}
	}
	return true
}

// looksLikeURL reports values that are web URLs rather than filesystem
// paths; these never get an unmatched-path warning.
func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http:") || strings.HasPrefix(s, "https:")
}

// countSegments reports how many path segments a value has, ignoring
// leading/trailing separators.
func countSegments(s string) int {
	n := 0
	for _, seg := range splitSegments(s) {
		if seg != "" {
			n++
		}
	}
	return n
}
