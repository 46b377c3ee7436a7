package tree

import (
	"context"
	"fmt"
	"time"
)

// Executor runs parameterized statements against a relational store.
type Executor interface {
	// Query runs stmt and returns every result row.
	Query(ctx context.Context, stmt Statement) ([]Row, error)

	// Dialect returns the SQL dialect statements must be written in.
	Dialect() Dialect
}

// Finder loads hydrated entities matching a predicate.
type Finder[E any] interface {
	// Find returns the entities matching where, with relations hydrated.
	Find(ctx context.Context, where Where, relations []string) ([]E, error)
}

// DecodeFunc converts a raw row into an entity.
type DecodeFunc[E any] func(Row) (E, error)

// RelationLoader hydrates one named relation on a batch of entities in place.
// E is normally a pointer type so the loader can attach what it loads.
type RelationLoader[E any] func(ctx context.Context, entities []E) error

// TableFinder is a Finder reading whole rows of a mapped table through an
// Executor.
type TableFinder[E any] struct {
	exec      Executor
	mapping   Mapping
	decode    DecodeFunc[E]
	relations map[string]RelationLoader[E]
}

// NewTableFinder creates a TableFinder decoding rows with decode.
func NewTableFinder[E any](exec Executor, mapping Mapping, decode DecodeFunc[E]) *TableFinder[E] {
	return &TableFinder[E]{
		exec:      exec,
		mapping:   mapping,
		decode:    decode,
		relations: make(map[string]RelationLoader[E]),
	}
}

// WithRelation registers the loader serving the named relation.
func (f *TableFinder[E]) WithRelation(name string, loader RelationLoader[E]) *TableFinder[E] {
	f.relations[name] = loader
	return f
}

// Find implements Finder.
func (f *TableFinder[E]) Find(ctx context.Context, where Where, relations []string) ([]E, error) {
	for _, rel := range relations {
		if _, ok := f.relations[rel]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRelation, rel)
		}
	}

	ids, err := f.mapping.bindIDs(where.IDs)
	if err != nil {
		return nil, err
	}
	where.IDs = ids

	stmt := SelectStatement(f.mapping, f.exec.Dialect(), where)
	start := time.Now()
	rows, err := f.exec.Query(ctx, stmt)
	recordQuery(ctx, "hydrate", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	entities := make([]E, 0, len(rows))
	for i, row := range rows {
		e, err := f.decode(row)
		if err != nil {
			return nil, fmt.Errorf("decode %s row %d: %w", f.mapping.Table, i, err)
		}
		entities = append(entities, e)
	}

	seen := make(map[string]bool, len(relations))
	for _, rel := range relations {
		if seen[rel] {
			continue
		}
		seen[rel] = true
		if err := f.relations[rel](ctx, entities); err != nil {
			return nil, fmt.Errorf("load relation %q: %w", rel, err)
		}
	}

	return entities, nil
}
