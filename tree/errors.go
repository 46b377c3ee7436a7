package tree

import "errors"

var (
	// ErrNotFound is returned when a requested node has no hydrated row.
	ErrNotFound = errors.New("arbor: node not found")

	// ErrInconsistentData is returned when a fetched node's parent is missing
	// from the fetched set and the orphan policy is OrphanError.
	ErrInconsistentData = errors.New("arbor: parent missing from fetched set")

	// ErrDuplicateID is returned when two nodes passed to an assembly share an id.
	ErrDuplicateID = errors.New("arbor: duplicate node id")

	// ErrInvalidDepth is returned for a negative depth bound.
	ErrInvalidDepth = errors.New("arbor: depth must be non-negative")

	// ErrInvalidMapping is returned when a mapping fails validation.
	ErrInvalidMapping = errors.New("arbor: invalid mapping")

	// ErrUnknownRelation is returned when an eager relation has no loader.
	ErrUnknownRelation = errors.New("arbor: unknown relation")

	// ErrInvalidID is returned when an identifier cannot be converted to the
	// mapping's IDType.
	ErrInvalidID = errors.New("arbor: invalid id")

	// ErrFieldCollision is returned when encoding would put two values under
	// one JSON key.
	ErrFieldCollision = errors.New("arbor: field name collision")

	// ErrUnknownEntityType is returned by Registry lookups for unregistered types.
	ErrUnknownEntityType = errors.New("arbor: unknown entity type")
)
