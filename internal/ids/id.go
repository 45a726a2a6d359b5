// Package ids implements the media server's item identifier scheme: 16-byte
// MD5-derived values with several textual encodings, plus the machinery to
// recompute them after path migration.
//
// An identifier appears in four textual forms:
//   - 32-character lowercase hex: "833addde992893e93d0572907f8b4cad"
//   - dashed 8-4-4-4-12 grouping: "833addde-9928-93e9-3d05-72907f8b4cad"
//   - "ancestor" variants of both, with the first 8 bytes regrouped
//
// Identifiers are derived as MD5 over the UTF-16-LE encoding of the item
// type concatenated with the item path.
package ids

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// ID is a 16-byte item identifier.
type ID [16]byte

// FormatError reports a malformed textual identifier.
type FormatError struct {
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid identifier %q: %s", e.Value, e.Reason)
}

// FromHex parses a 32-character hex identifier.
func FromHex(s string) (ID, error) {
	if len(s) != 32 {
		return ID{}, &FormatError{Value: s, Reason: "must be 32 hex characters"}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, &FormatError{Value: s, Reason: "not valid hex"}
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// FromDashed parses the dashed 8-4-4-4-12 form.
func FromDashed(s string) (ID, error) {
	if len(s) != 36 {
		return ID{}, &FormatError{Value: s, Reason: "must be 36 characters with dashes"}
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, &FormatError{Value: s, Reason: "not a dashed identifier"}
	}
	return ID(u), nil
}

// FromBytes converts a 16-byte value to an ID.
func FromBytes(b []byte) (ID, error) {
	if len(b) != 16 {
		return ID{}, &FormatError{Value: fmt.Sprintf("%x", b), Reason: "must be 16 bytes"}
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// Hex returns the 32-character lowercase hex form.
func (id ID) Hex() string { return hex.EncodeToString(id[:]) }

// Dashed returns the dashed 8-4-4-4-12 form.
func (id ID) Dashed() string { return uuid.UUID(id).String() }

// Bytes returns a copy of the raw 16 bytes.
func (id ID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

func (id ID) String() string { return id.Hex() }

// ancestorOrder regroups the first eight bytes into the order used by
// ancestor-keyed columns. Applying the regrouping twice restores the
// original value.
var ancestorOrder = [8]int{3, 2, 1, 0, 5, 4, 7, 6}

// Ancestor returns the identifier in ancestor byte order. The operation is
// its own inverse.
func (id ID) Ancestor() ID {
	var out ID
	for i, j := range ancestorOrder {
		out[i] = id[j]
	}
	copy(out[8:], id[8:])
	return out
}

// AncestorHex regroups a 32-character hex identifier without going through
// the caller's hands as bytes.
func AncestorHex(s string) (string, error) {
	id, err := FromHex(s)
	if err != nil {
		return "", err
	}
	return id.Ancestor().Hex(), nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Hash derives the identifier for an item: MD5 over the UTF-16-LE encoding
// of itemType immediately followed by path, with no separator.
func Hash(itemType, path string) ID {
	b, err := utf16le.NewEncoder().Bytes([]byte(itemType + path))
	if err != nil {
		// The UTF-16 encoder only fails on invalid UTF-8; hash the raw
		// input instead so the result is still deterministic.
		b = []byte(itemType + path)
	}
	return ID(md5.Sum(b))
}
