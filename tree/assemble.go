package tree

import "fmt"

// OrphanPolicy decides how assembly treats a node whose parent is missing
// from the fetched set.
type OrphanPolicy int

const (
	// OrphanError fails the assembly with ErrInconsistentData.
	OrphanError OrphanPolicy = iota

	// OrphanPromote detaches the orphan, with whatever subtree hangs below it,
	// as a secondary root. Assemble drops secondary roots; AssembleWithOrphans
	// returns them.
	OrphanPromote
)

// String returns the policy name used in configuration files.
func (p OrphanPolicy) String() string {
	switch p {
	case OrphanPromote:
		return "promote"
	default:
		return "error"
	}
}

// ParseOrphanPolicy parses "error" or "promote". Empty means "error".
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch s {
	case "", "error":
		return OrphanError, nil
	case "promote":
		return OrphanPromote, nil
	default:
		return OrphanError, fmt.Errorf("unknown orphan policy %q", s)
	}
}

// Assembler links a flat, unordered node set into a tree.
type Assembler[K comparable, E Entity[K]] struct {
	// ChildrenField is the JSON key assembled nodes encode children under.
	ChildrenField string

	// Orphans is the policy for nodes whose parent is not in the set.
	Orphans OrphanPolicy
}

// Assemble returns the node with id rootID, with every other node in nodes
// linked below its parent. Children keep the order of nodes.
//
// The root's own parent is never looked up, so nodes may come from a subtree
// below a non-root node. Entities are not modified; every call builds fresh
// nodes, so assembling the same input twice yields identical trees.
//
// It fails with ErrNotFound if rootID is not in nodes and with ErrDuplicateID
// if two nodes share an id.
func (a Assembler[K, E]) Assemble(nodes []E, rootID K) (*Node[K, E], error) {
	root, _, err := a.AssembleWithOrphans(nodes, rootID)
	return root, err
}

// AssembleWithOrphans is Assemble that also returns the secondary roots
// detached under OrphanPromote, in input order.
func (a Assembler[K, E]) AssembleWithOrphans(nodes []E, rootID K) (*Node[K, E], []*Node[K, E], error) {
	index := make(map[K]*Node[K, E], len(nodes))
	ordered := make([]*Node[K, E], 0, len(nodes))

	for _, e := range nodes {
		id := e.TreeID()
		if _, dup := index[id]; dup {
			return nil, nil, fmt.Errorf("%w: %v", ErrDuplicateID, id)
		}
		n := &Node[K, E]{
			Entity:        e,
			Children:      []*Node[K, E]{},
			childrenField: a.ChildrenField,
		}
		index[id] = n
		ordered = append(ordered, n)
	}

	root, ok := index[rootID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: root %v is not in the fetched set", ErrNotFound, rootID)
	}

	var orphans []*Node[K, E]
	for _, n := range ordered {
		if n == root {
			continue
		}

		parentID, hasParent := n.Entity.TreeParentID()
		var parent *Node[K, E]
		if hasParent {
			parent = index[parentID]
		}
		if parent != nil {
			parent.Children = append(parent.Children, n)
			continue
		}

		if a.Orphans != OrphanPromote {
			if !hasParent {
				return nil, nil, fmt.Errorf("%w: node %v has no parent but is not root %v", ErrInconsistentData, n.ID(), rootID)
			}
			return nil, nil, fmt.Errorf("%w: node %v references parent %v", ErrInconsistentData, n.ID(), parentID)
		}
		orphans = append(orphans, n)
	}

	return root, orphans, nil
}
