// Package graph provides the item/relationship graph: a tombstoning arena
// store, a validating builder that turns an item catalog into an immutable
// graph, and a lazy walker that streams the ownership forest as events.
//
// # Ownership
//
// Owns edges form a forest: every node has at most one owner and no node
// owns itself transitively. The builder enforces this before a Graph exists.
// Uses edges are unconstrained and may form cycles.
//
// # Lifecycle
//
// A Builder is single-use. Build hands its store to the returned Graph and
// any later call on the Builder fails with ErrBuilderConsumed. A Graph is
// read-only and safe for concurrent use.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateItem is matched by *DuplicateItemError.
	ErrDuplicateItem = errors.New("duplicate item")

	// ErrDanglingReference is matched by *DanglingReferenceError.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrMultipleOwners is matched by *MultipleOwnersError.
	ErrMultipleOwners = errors.New("multiple owners")

	// ErrStructuralCycle is matched by *StructuralCycleError.
	ErrStructuralCycle = errors.New("structural cycle")

	// ErrNodeNotFound is returned when an item or node ID is not in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrBuilderConsumed is returned by a Builder after Build succeeded.
	ErrBuilderConsumed = errors.New("builder already consumed")
)

// Side names which end of a relation failed to resolve
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
	SideRoot   Side = "root"
)

// DuplicateItemError reports an item ID that appears more than once.
// First and Second are the zero-based input positions of the two entries.
type DuplicateItemError struct {
	Item   ItemID
	First  int
	Second int
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("duplicate item %q at positions %d and %d", e.Item, e.First, e.Second)
}

func (e *DuplicateItemError) Unwrap() error { return ErrDuplicateItem }

// DanglingReferenceError reports a relation endpoint that names no item
type DanglingReferenceError struct {
	Side Side
	Item ItemID
	Kind Relationship
}

func (e *DanglingReferenceError) Error() string {
	if e.Side == SideRoot {
		return fmt.Sprintf("prune root %q is not a known item", e.Item)
	}
	return fmt.Sprintf("%s relation %s %q is not a known item", e.Kind.DisplayName(), e.Side, e.Item)
}

func (e *DanglingReferenceError) Unwrap() error { return ErrDanglingReference }

// MultipleOwnersError reports an item that would get a second owner.
// When Owner == Item the new Owns edge would close an ownership loop.
type MultipleOwnersError struct {
	Item      ItemID
	Owner     ItemID
	Candidate ItemID
}

func (e *MultipleOwnersError) Error() string {
	if e.Owner == e.Item {
		return fmt.Sprintf("item %q cannot be owned by %q: ownership would form a cycle", e.Item, e.Candidate)
	}
	return fmt.Sprintf("item %q is owned by both %q and %q", e.Item, e.Owner, e.Candidate)
}

func (e *MultipleOwnersError) Unwrap() error { return ErrMultipleOwners }

// StructuralCycleError reports a node reached twice along Owns edges during a walk
type StructuralCycleError struct {
	Item ItemID
	Path []ItemID
}

func (e *StructuralCycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = string(id)
	}
	return fmt.Sprintf("item %q reached twice via owns: %s", e.Item, strings.Join(parts, " -> "))
}

func (e *StructuralCycleError) Unwrap() error { return ErrStructuralCycle }
