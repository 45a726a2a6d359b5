package pathrw

import (
	"strings"

	"github.com/jellytools/jfmigrate/internal/logger"
)

// Stats counts rewrite outcomes, aggregated bottom-up through nested
// documents and across rows and tables.
type Stats struct {
	Modified int
	Ignored  int
}

// Add merges other into s.
func (s *Stats) Add(other Stats) {
	s.Modified += other.Modified
	s.Ignored += other.Ignored
}

// Rewriter rewrites scalars and documents. Implemented by Engine (prefix
// mappings) and IDEngine (identifier segments).
type Rewriter interface {
	RewriteString(s string) (string, Stats)
	RewriteNode(n Node) (Node, Stats)
}

// Engine applies a prefix replacement table. Rewrites are idempotent: once a
// value carries a target prefix, no source prefix matches it again.
type Engine struct {
	table *Table
	log   logger.Logger
}

// NewEngine builds an engine over table, logging unmatched paths through
// log.
func NewEngine(table *Table, log logger.Logger) *Engine {
	return &Engine{table: table, log: log}
}

// RewriteString rewrites one path-like value. Unmatched values are returned
// unchanged and counted as ignored; a warning is emitted unless the table
// suppresses warnings, the value is a URL, or it has at most one segment
// (heuristically not a path).
func (e *Engine) RewriteString(s string) (string, Stats) {
	out, ok := e.table.rewrite(s)
	if ok {
		return out, Stats{Modified: 1}
	}
	if !e.table.NoWarnings && countSegments(s) >= 2 && !looksLikeURL(s) {
		e.log.Warnf("no mapping for path: %s", s)
	}
	return s, Stats{Ignored: 1}
}

// RewriteNode rewrites every string scalar of a document.
func (e *Engine) RewriteNode(n Node) (Node, Stats) {
	return n.walk(e.RewriteString)
}

// Apply rewrites a single path without warning on a miss. Convenience for
// target resolution, where unmatched values are expected.
func (e *Engine) Apply(s string) string {
	out, _ := e.table.rewrite(s)
	return out
}

// IDTable maps textual identifiers (all variants mixed) to their
// replacements, for values where identifiers appear as path segments.
type IDTable struct {
	Replacements map[string]string
	Slash        Slash
}

// IDEngine rewrites identifier-bearing path segments. Sharded layouts store
// artifacts under a folder named by the identifier's leading hex characters;
// when the identifier segment is replaced, such a shard-prefix folder is
// renamed to the matching prefix of the new identifier.
type IDEngine struct {
	table IDTable
	log   logger.Logger
}

// NewIDEngine builds an engine over table.
func NewIDEngine(table IDTable, log logger.Logger) *IDEngine {
	return &IDEngine{table: table, log: log}
}

// RewriteString rewrites one path-like value. The filename stem is checked
// first; failing that, intermediate segments are scanned for an identifier.
func (e *IDEngine) RewriteString(s string) (string, Stats) {
	segs := splitSegments(s)
	if len(segs) == 0 {
		return s, Stats{Ignored: 1}
	}

	// Filename stem.
	last := segs[len(segs)-1]
	stem, ext := splitStem(last)
	if isIDLike(stem) {
		if repl, ok := e.table.Replacements[stem]; ok {
			segs[len(segs)-1] = repl + ext
			return joinSegments(segs, e.table.Slash), Stats{Modified: 1}
		}
	}

	// Intermediate segments.
	for i := 0; i < len(segs)-1; i++ {
		seg := segs[i]
		if !isIDLike(seg) {
			continue
		}
		repl, ok := e.table.Replacements[seg]
		if !ok {
			continue
		}
		segs[i] = repl
		if i > 0 && isShardPrefix(segs[i-1], seg, repl) {
			segs[i-1] = repl[:len(segs[i-1])]
		}
		return joinSegments(segs, e.table.Slash), Stats{Modified: 1}
	}

	return s, Stats{Ignored: 1}
}

// RewriteNode rewrites every string scalar of a document.
func (e *IDEngine) RewriteNode(n Node) (Node, Stats) {
	return n.walk(e.RewriteString)
}

// isShardPrefix reports whether parent is the shard folder of oldID: a
// proper leading slice of the identifier, short enough to take the same
// slice of the replacement.
func isShardPrefix(parent, oldID, newID string) bool {
	return parent != "" && len(parent) < len(newID) && strings.HasPrefix(oldID, parent)
}

// isIDLike reports strings made only of hex digits and dashes, the alphabet
// of every textual identifier variant.
func isIDLike(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && r != '-' {
			return false
		}
	}
	return true
}

// splitStem splits a path segment into stem and extension (the extension
// keeps its dot). Segments without a dot are all stem.
func splitStem(seg string) (string, string) {
	if i := strings.LastIndex(seg, "."); i > 0 {
		return seg[:i], seg[i:]
	}
	return seg, ""
}
