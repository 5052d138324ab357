package graph

// NodeKind represents the type of an item
type NodeKind string

const (
	NodeKindPackage   NodeKind = "package"
	NodeKindFunc      NodeKind = "func"
	NodeKindMethod    NodeKind = "method"
	NodeKindStruct    NodeKind = "struct"
	NodeKindInterface NodeKind = "interface"
	NodeKindType      NodeKind = "type"
	NodeKindField     NodeKind = "field"
	NodeKindVar       NodeKind = "var"
	NodeKindConst     NodeKind = "const"
)

// Visibility of an item outside its package
type Visibility string

const (
	VisibilityPublic   Visibility = "pub"
	VisibilityPrivate  Visibility = "priv"
	VisibilityExternal Visibility = "extern"
)

// ItemID is the caller-supplied identity of an item, unique within a catalog
type ItemID string

// Item is a named element of a program: a package, type, function, etc.
type Item struct {
	ID         ItemID     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"` // short name
	Path       string     `json:"path" yaml:"path"` // fully qualified path
	Kind       NodeKind   `json:"kind" yaml:"kind"`
	Visibility Visibility `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	File       string     `json:"file,omitempty" yaml:"file,omitempty"`
	Line       int        `json:"line,omitempty" yaml:"line,omitempty"`
	Signature  string     `json:"signature,omitempty" yaml:"signature,omitempty"`
	Doc        string     `json:"doc,omitempty" yaml:"doc,omitempty"`
}

// Triple is a directed relation between two catalog items
type Triple struct {
	Source ItemID       `json:"source" yaml:"source"`
	Target ItemID       `json:"target" yaml:"target"`
	Kind   Relationship `json:"kind" yaml:"kind"`
}

// Catalog is the builder input: items and relations, both in caller order
type Catalog struct {
	Items     []Item   `json:"items" yaml:"items"`
	Relations []Triple `json:"relations" yaml:"relations"`
}

// NodeID addresses a node slot in a graph. IDs start at 1 and are never reused.
type NodeID int64

// Node is a live node of a built graph
type Node struct {
	ID   NodeID `json:"node_id" yaml:"node_id"`
	Item Item   `json:"item" yaml:"item"`
}
