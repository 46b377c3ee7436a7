// Package tree provides read access to tree-shaped data stored in relational
// tables using the adjacency-list pattern.
//
// Each row of such a table holds its own identifier and the identifier of its
// parent; rows without a parent are roots. The package finds roots, fetches
// every descendant of a node with a single recursive query, and reassembles
// the flat result into nested [Node] values.
//
// # Key Features
//
//   - One round trip per traversal (WITH RECURSIVE closure with an optional depth bound)
//   - Order-independent tree assembly with an explicit orphan policy
//   - Forests built concurrently on a bounded worker pool, returned in root order
//   - Static, validated table mappings instead of runtime metadata
//   - Pluggable executors: database/sql, pgx and the Aurora Data API
//
// # Entity Interface
//
// Hydrated rows must implement [Entity]:
//
//	type Entity[K comparable] interface {
//	    TreeID() K
//	    TreeParentID() (K, bool)
//	}
//
// # Mappings
//
// A [Mapping] names the table, the id and parent columns and the field under
// which children are rendered. [NewMapping] fills the conventional defaults:
//
//	m := tree.NewMapping("categories") // id, parent_id, children
//	m.ChildrenField = "subcategories"
//
// A [Registry] holds mappings per entity type for callers that resolve them
// by name.
//
// # Configuration
//
// Use [DefaultConfig] and raise Concurrency to match the executor's pool:
//
//	cfg := tree.DefaultConfig()
//	cfg.Concurrency = 16
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - the requested node has no hydrated row
//   - [ErrInconsistentData] - a fetched node's parent is missing from the fetched set
//   - [ErrDuplicateID] - two nodes in an assembly share an id
//   - [ErrInvalidDepth] - a negative depth bound was requested
//   - [ErrInvalidMapping] - a mapping failed validation
//   - [ErrUnknownRelation] - an eager relation was requested that no loader serves
//
// Executor errors are returned unchanged or wrapped with %w; nothing is retried.
package tree
