package isg

import (
	"fmt"
	"sort"
)

// EntityKind classifies a code entity.
type EntityKind uint8

const (
	KindFunction EntityKind = iota
	KindStruct
	KindTrait
)

var entityKindNames = [...]string{
	KindFunction: "function",
	KindStruct:   "struct",
	KindTrait:    "trait",
}

// String returns the lowercase name of the entity kind, as used in signatures
// and JSON.
func (k EntityKind) String() string {
	if int(k) < len(entityKindNames) {
		return entityKindNames[k]
	}
	return fmt.Sprintf("EntityKind(%d)", uint8(k))
}

// ParseEntityKind is the inverse of EntityKind.String.
func ParseEntityKind(s string) (EntityKind, error) {
	for i, name := range entityKindNames {
		if name == s {
			return EntityKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind %q", s)
}

// MarshalText encodes k by name. Unknown values are an error.
func (k EntityKind) MarshalText() ([]byte, error) {
	if int(k) >= len(entityKindNames) {
		return nil, fmt.Errorf("unknown entity kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (k *EntityKind) UnmarshalText(text []byte) error {
	v, err := ParseEntityKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// RelationKind is the type of a directed edge. Direction is fixed per kind:
// Calls is caller→callee, Uses is user→used type, Implements is
// implementor→trait.
type RelationKind uint8

const (
	RelationCalls RelationKind = iota
	RelationImplements
	RelationUses
)

// AllRelationKinds lists every relation kind in declaration order.
var AllRelationKinds = []RelationKind{RelationCalls, RelationImplements, RelationUses}

var relationKindNames = [...]string{
	RelationCalls:      "calls",
	RelationImplements: "implements",
	RelationUses:       "uses",
}

// String returns the lowercase name of the relation kind, as used in signatures
// and JSON.
func (k RelationKind) String() string {
	if int(k) < len(relationKindNames) {
		return relationKindNames[k]
	}
	return fmt.Sprintf("RelationKind(%d)", uint8(k))
}

// ParseRelationKind is the inverse of RelationKind.String.
func ParseRelationKind(s string) (RelationKind, error) {
	for i, name := range relationKindNames {
		if name == s {
			return RelationKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown relation kind %q", s)
}

// MarshalText encodes k by name. Unknown values are an error.
func (k RelationKind) MarshalText() ([]byte, error) {
	if int(k) >= len(relationKindNames) {
		return nil, fmt.Errorf("unknown relation kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (k *RelationKind) UnmarshalText(text []byte) error {
	v, err := ParseRelationKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// EntityRecord is the payload of one graph node. Its identity is the
// Fingerprint; every other field may change on re-ingestion.
type EntityRecord struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Kind        EntityKind  `json:"kind"`
	Name        string      `json:"name"`
	Signature   string      `json:"signature"`
	FilePath    string      `json:"file_path"`
	Line        int         `json:"line"`
}

// Relation is the flat form of one edge.
type Relation struct {
	From Fingerprint  `json:"from"`
	To   Fingerprint  `json:"to"`
	Kind RelationKind `json:"kind"`
}

// Snapshot is a whole-graph flat representation used for persistence and export.
type Snapshot struct {
	Nodes []EntityRecord `json:"nodes"`
	Edges []Relation     `json:"edges"`
}

// recordLess is the ordering used by every multi-record query: name, then
// file path, then line, then fingerprint.
func recordLess(a, b EntityRecord) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.FilePath != b.FilePath {
		return a.FilePath < b.FilePath
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Fingerprint < b.Fingerprint
}

func sortRecords(records []EntityRecord) {
	sort.Slice(records, func(i, j int) bool { return recordLess(records[i], records[j]) })
}
