package isg

import (
	"fmt"
	"strings"
)

// Lookup resolves a user-facing reference to a fingerprint. ref may be the
// hex form of a fingerprint of a live node, or the name of exactly one node.
// A reference that is both valid hex and a name ("add") prefers the node
// whose fingerprint it spells, if any.
func (g *Graph) Lookup(ref string) (Fingerprint, error) {
	if fp, err := ParseFingerprint(ref); err == nil {
		if _, err := g.GetNode(fp); err == nil {
			return fp, nil
		}
	}

	matches := g.FindByName(ref).Sorted()
	switch len(matches) {
	case 0:
		return 0, fmt.Errorf("%w: %q", ErrNodeNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		fps := make([]string, len(matches))
		for i, fp := range matches {
			fps[i] = fp.String()
		}
		return 0, fmt.Errorf("%w: %q matches %s", ErrAmbiguousName, ref, strings.Join(fps, ", "))
	}
}
