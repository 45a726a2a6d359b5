package ids

// Kind names a stored identifier representation. The values match the column
// role names used in the migration configuration.
type Kind string

const (
	KindHex            Kind = "str"
	KindDashed         Kind = "str-dash"
	KindAncestorHex    Kind = "ancestor-str"
	KindAncestorDashed Kind = "ancestor-str-dash"
	KindBinary         Kind = "bin"
)

// Replacements maps old identifiers to their recomputed values. The mapping
// is stored once in binary form; the textual projections are expanded on
// first use and shared afterwards.
type Replacements struct {
	bin map[ID]ID

	hex            map[string]string
	dashed         map[string]string
	ancestorHex    map[string]string
	ancestorDashed map[string]string
	ancestorBin    map[ID]ID
}

// NewReplacements builds a replacement set from a binary old→new mapping.
func NewReplacements(bin map[ID]ID) *Replacements {
	if bin == nil {
		bin = map[ID]ID{}
	}
	return &Replacements{bin: bin}
}

// Len reports the number of identifier mappings.
func (r *Replacements) Len() int { return len(r.bin) }

// Binary returns the old→new mapping in raw byte form.
func (r *Replacements) Binary() map[ID]ID { return r.bin }

// AncestorBinary returns the old→new mapping with both sides in ancestor
// byte order.
func (r *Replacements) AncestorBinary() map[ID]ID {
	r.expand()
	return r.ancestorBin
}

// Strings returns the old→new mapping for a textual kind. KindBinary has no
// textual projection and yields nil.
func (r *Replacements) Strings(kind Kind) map[string]string {
	r.expand()
	switch kind {
	case KindHex:
		return r.hex
	case KindDashed:
		return r.dashed
	case KindAncestorHex:
		return r.ancestorHex
	case KindAncestorDashed:
		return r.ancestorDashed
	default:
		return nil
	}
}

// PathStrings returns the union of all four textual projections, keyed the
// way identifiers appear as path segments. This is the table handed to the
// path engine's identifier entry point.
func (r *Replacements) PathStrings() map[string]string {
	r.expand()
	out := make(map[string]string, 4*len(r.bin))
	for _, m := range []map[string]string{r.ancestorHex, r.ancestorDashed, r.hex, r.dashed} {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func (r *Replacements) expand() {
	if r.hex != nil {
		return
	}
	n := len(r.bin)
	r.hex = make(map[string]string, n)
	r.dashed = make(map[string]string, n)
	r.ancestorHex = make(map[string]string, n)
	r.ancestorDashed = make(map[string]string, n)
	r.ancestorBin = make(map[ID]ID, n)
	for old, repl := range r.bin {
		r.hex[old.Hex()] = repl.Hex()
		r.dashed[old.Dashed()] = repl.Dashed()
		oldAnc, newAnc := old.Ancestor(), repl.Ancestor()
		r.ancestorHex[oldAnc.Hex()] = newAnc.Hex()
		r.ancestorDashed[oldAnc.Dashed()] = newAnc.Dashed()
		r.ancestorBin[oldAnc] = newAnc
	}
}

// Collision is a pair of old identifiers whose recomputed values coincide.
// Collisions mean two old paths now map to the same item; the database
// updater resolves them by keeping a single row.
type Collision struct {
	OldA ID
	OldB ID
	New  ID
}

// CheckCollisions reports every pair of old identifiers that map to the same
// new identifier.
func (r *Replacements) CheckCollisions() []Collision {
	seen := make(map[ID]ID, len(r.bin))
	var out []Collision
	for old, repl := range r.bin {
		if first, ok := seen[repl]; ok {
			out = append(out, Collision{OldA: first, OldB: old, New: repl})
			continue
		}
		seen[repl] = old
	}
	return out
}
