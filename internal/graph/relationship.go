package graph

import (
	"fmt"
	"strings"
)

// Relationship is the kind of a directed edge between two items
type Relationship uint8

const (
	// Uses: the source refers to the target. Any number per node, cycles allowed.
	Uses Relationship = iota
	// Owns: the source structurally contains the target. At most one owner per node.
	Owns
)

// Relationships lists every relationship in declaration order
var Relationships = []Relationship{Uses, Owns}

// DisplayName returns the short lowercase name ("uses", "owns")
func (r Relationship) DisplayName() string {
	switch r {
	case Uses:
		return "uses"
	case Owns:
		return "owns"
	}
	return fmt.Sprintf("relationship(%d)", uint8(r))
}

// String returns the long capitalised name ("Uses", "Owns")
func (r Relationship) String() string {
	switch r {
	case Uses:
		return "Uses"
	case Owns:
		return "Owns"
	}
	return fmt.Sprintf("Relationship(%d)", uint8(r))
}

// Valid reports whether r is one of the defined relationships
func (r Relationship) Valid() bool {
	return r == Uses || r == Owns
}

// ParseRelationship accepts either display form, case-insensitively
func ParseRelationship(s string) (Relationship, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uses":
		return Uses, nil
	case "owns":
		return Owns, nil
	}
	return 0, fmt.Errorf("unknown relationship %q", s)
}

// MarshalText encodes the relationship by its short name
func (r Relationship) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid relationship %d", uint8(r))
	}
	return []byte(r.DisplayName()), nil
}

// UnmarshalText decodes either display form
func (r *Relationship) UnmarshalText(text []byte) error {
	parsed, err := ParseRelationship(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
