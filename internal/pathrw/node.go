package pathrw

import "sort"

type nodeKind int

const (
	kindString nodeKind = iota
	kindOther
	kindSeq
	kindMap
)

// Node is one value of a structured document: a scalar, a sequence, or a
// string-keyed mapping. The variant is closed; rewrites only ever touch
// string scalars, and mapping keys are never rewritten.
type Node struct {
	kind    nodeKind
	str     string
	other   any
	seq     []Node
	entries []MapEntry
}

// MapEntry is one key/value pair of a mapping node, in document order.
type MapEntry struct {
	Key   string
	Value Node
}

// String builds a string scalar node.
func String(s string) Node { return Node{kind: kindString, str: s} }

// Scalar builds a non-string scalar node; its value passes through rewrites
// untouched.
func Scalar(v any) Node { return Node{kind: kindOther, other: v} }

// Seq builds a sequence node.
func Seq(items ...Node) Node { return Node{kind: kindSeq, seq: items} }

// Map builds a mapping node from entries in the given order.
func Map(entries ...MapEntry) Node { return Node{kind: kindMap, entries: entries} }

// FromValue converts a decoded JSON value (map[string]any, []any, string, or
// any other scalar) into a Node. Mapping keys are ordered lexically so the
// conversion is deterministic.
func FromValue(v any) Node {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]MapEntry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, MapEntry{Key: k, Value: FromValue(t[k])})
		}
		return Map(entries...)
	case []any:
		items := make([]Node, 0, len(t))
		for _, item := range t {
			items = append(items, FromValue(item))
		}
		return Seq(items...)
	case string:
		return String(t)
	default:
		return Scalar(t)
	}
}

// ToValue converts a Node back into the shape encoding/json expects.
func (n Node) ToValue() any {
	switch n.kind {
	case kindString:
		return n.str
	case kindSeq:
		out := make([]any, 0, len(n.seq))
		for _, item := range n.seq {
			out = append(out, item.ToValue())
		}
		return out
	case kindMap:
		out := make(map[string]any, len(n.entries))
		for _, e := range n.entries {
			out[e.Key] = e.Value.ToValue()
		}
		return out
	default:
		return n.other
	}
}

// walk applies fn to every string scalar, rebuilding the document bottom-up
// and aggregating the per-scalar stats.
func (n Node) walk(fn func(string) (string, Stats)) (Node, Stats) {
	var total Stats
	switch n.kind {
	case kindString:
		out, st := fn(n.str)
		return String(out), st
	case kindSeq:
		items := make([]Node, len(n.seq))
		for i, item := range n.seq {
			out, st := item.walk(fn)
			items[i] = out
			total.Add(st)
		}
		return Seq(items...), total
	case kindMap:
		entries := make([]MapEntry, len(n.entries))
		for i, e := range n.entries {
			out, st := e.Value.walk(fn)
			entries[i] = MapEntry{Key: e.Key, Value: out}
			total.Add(st)
		}
		return Map(entries...), total
	default:
		return n, Stats{}
	}
}
