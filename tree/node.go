package tree

import (
	"encoding/json"
	"fmt"
)

// Node is an assembled tree node. Children is never nil once a node has been
// produced by an Assembler; leaves carry an empty slice.
type Node[K comparable, E Entity[K]] struct {
	Entity   E
	Children []*Node[K, E]

	// childrenField is the JSON key children are encoded under.
	childrenField string
}

// ID returns the entity's identifier.
func (n *Node[K, E]) ID() K {
	return n.Entity.TreeID()
}

// IsLeaf reports whether the node has no children.
func (n *Node[K, E]) IsLeaf() bool {
	return len(n.Children) == 0
}

// ChildrenField returns the name children are encoded under.
func (n *Node[K, E]) ChildrenField() string {
	if n.childrenField == "" {
		return DefaultChildrenField
	}
	return n.childrenField
}

// Walk visits n and its descendants depth-first, parents before children.
// depth is 0 for n. A non-nil error from fn stops the walk and is returned.
func (n *Node[K, E]) Walk(fn func(node *Node[K, E], depth int) error) error {
	return n.walk(fn, 0)
}

func (n *Node[K, E]) walk(fn func(*Node[K, E], int) error, depth int) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := child.walk(fn, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of nodes in the tree rooted at n.
func (n *Node[K, E]) Size() int {
	count := 0
	_ = n.Walk(func(*Node[K, E], int) error {
		count++
		return nil
	})
	return count
}

// MarshalJSON encodes the entity's JSON object with the children added under
// the configured children field. An entity already encoding that key returns
// ErrFieldCollision.
func (n *Node[K, E]) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(n.Entity)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("arbor: entity %v does not encode as a JSON object: %w", n.ID(), err)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	if _, ok := obj[n.ChildrenField()]; ok {
		return nil, fmt.Errorf("%w: entity %v already encodes %q", ErrFieldCollision, n.ID(), n.ChildrenField())
	}

	children := n.Children
	if children == nil {
		children = []*Node[K, E]{}
	}
	encoded, err := json.Marshal(children)
	if err != nil {
		return nil, err
	}
	obj[n.ChildrenField()] = encoded

	return json.Marshal(obj)
}
