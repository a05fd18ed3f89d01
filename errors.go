package isg

import (
	"errors"
	"fmt"
)

// ErrNodeNotFound is the sentinel matched by every NodeNotFoundError.
var ErrNodeNotFound = errors.New("node not found")

// ErrAmbiguousName is returned by Lookup when a name matches several nodes.
var ErrAmbiguousName = errors.New("ambiguous name")

// NodeNotFoundError reports a fingerprint that has no node in the graph.
// It is the only error the graph's mutations and queries produce.
type NodeNotFoundError struct {
	Fingerprint Fingerprint
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node not found: %s", e.Fingerprint)
}

// Is lets errors.Is(err, ErrNodeNotFound) match.
func (e *NodeNotFoundError) Is(target error) bool {
	return target == ErrNodeNotFound
}

func nodeNotFound(fp Fingerprint) error {
	return &NodeNotFoundError{Fingerprint: fp}
}
