package isg

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the 64-bit identity of an entity, derived from its canonical
// signature. Equal signatures always produce equal fingerprints; distinct
// signatures collide only with negligible probability.
type Fingerprint uint64

// FromSignature hashes a canonical signature with unseeded xxHash64, so the
// same signature maps to the same Fingerprint in every process on every machine.
func FromSignature(signature string) Fingerprint {
	return Fingerprint(xxhash.Sum64String(signature))
}

// String returns the fingerprint as 16 lowercase hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	v, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFingerprint parses the hex form produced by String. A leading "0x" is accepted.
func ParseFingerprint(s string) (Fingerprint, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s) > 16 {
		return 0, fmt.Errorf("invalid fingerprint %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}

// FingerprintSet is an owned set of fingerprints returned by set-valued queries.
type FingerprintSet map[Fingerprint]struct{}

// NewFingerprintSet builds a set from the given fingerprints.
func NewFingerprintSet(fps ...Fingerprint) FingerprintSet {
	s := make(FingerprintSet, len(fps))
	for _, fp := range fps {
		s[fp] = struct{}{}
	}
	return s
}

// Has reports whether fp is in the set.
func (s FingerprintSet) Has(fp Fingerprint) bool {
	_, ok := s[fp]
	return ok
}

// Len returns the number of fingerprints in the set.
func (s FingerprintSet) Len() int {
	return len(s)
}

// Sorted returns the members in ascending numeric order.
func (s FingerprintSet) Sorted() []Fingerprint {
	out := make([]Fingerprint, 0, len(s))
	for fp := range s {
		out = append(out, fp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
