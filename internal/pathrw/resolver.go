package pathrw

import "strings"

// Resolver computes concrete destination paths for migration jobs. A job's
// target is either an explicit path, "auto" (derive from the replacement
// tables), or "auto-existing" (same derivation, but the caller must not copy
// a new file, only rewrite the one already there).
type Resolver struct {
	SourceRoot   string // where files are read from
	OriginalRoot string // where the original installation lived
	TargetRoot   string // where migrated files are written

	Paths *Engine // replacement table as seen by the server
	FS    *Engine // replacement table for the local filesystem
}

// Resolve computes the destination for source given the job's target mode.
// skipCopy reports the auto-existing mode.
//
// Auto derivation reconstructs the path as it existed in the original
// installation, applies the path table, then the filesystem table, and
// finally re-roots the result under TargetRoot.
func (r *Resolver) Resolve(source, target string) (resolved string, skipCopy bool) {
	if !strings.HasPrefix(target, "auto") {
		return target, false
	}
	skipCopy = target == "auto-existing"

	orig := rebase(source, r.SourceRoot, r.OriginalRoot)
	out := r.Paths.Apply(orig)
	out = r.FS.Apply(out)
	return r.reroot(out), skipCopy
}

// ResolveFS maps a path as stored in the database to the local filesystem,
// for steps that need to stat the actual file.
func (r *Resolver) ResolveFS(stored string) string {
	return r.reroot(r.FS.Apply(stored))
}

// rebase re-roots path from fromRoot to toRoot; paths outside fromRoot are
// returned unchanged.
func rebase(path, fromRoot, toRoot string) string {
	segs := splitSegments(path)
	root := splitSegments(fromRoot)
	if !segmentsHavePrefix(segs, root) {
		return path
	}
	out := append(splitSegments(toRoot), segs[len(root):]...)
	return joinSegments(out, SlashUnix)
}

// reroot places a derived path under TargetRoot. Paths already under the
// target root and drive-lettered or UNC paths are kept; anything else,
// slash-rooted or relative, is joined beneath the root.
func (r *Resolver) reroot(s string) string {
	segs := splitSegments(s)
	root := splitSegments(r.TargetRoot)
	if segmentsHavePrefix(segs, root) {
		return joinSegments(segs, SlashUnix)
	}
	if hasDrive(s) {
		return joinSegments(segs, SlashUnix)
	}
	for len(segs) > 0 && segs[0] == "" {
		segs = segs[1:]
	}
	return joinSegments(append(root, segs...), SlashUnix)
}

// hasDrive reports Windows drive-lettered or UNC paths.
func hasDrive(s string) bool {
	if strings.HasPrefix(s, `\\`) {
		return true
	}
	if len(s) >= 2 && s[1] == ':' {
		c := s[0]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	return false
}
