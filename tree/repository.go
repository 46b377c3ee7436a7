package tree

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Repository reads trees of one entity type from an adjacency-list table.
// It is safe for concurrent use.
type Repository[K comparable, E Entity[K]] struct {
	exec      Executor
	finder    Finder[E]
	mapping   Mapping
	config    Config
	assembler Assembler[K, E]
	logger    *slog.Logger
}

// New creates a Repository. exec runs traversal queries and finder hydrates
// entities; both usually share a connection pool. A nil logger uses
// slog.Default().
func New[K comparable, E Entity[K]](exec Executor, finder Finder[E], mapping Mapping, config Config, logger *slog.Logger) (*Repository[K, E], error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository[K, E]{
		exec:    exec,
		finder:  finder,
		mapping: mapping,
		config:  config,
		assembler: Assembler[K, E]{
			ChildrenField: mapping.ChildrenField,
			Orphans:       config.Orphans,
		},
		logger: logger,
	}, nil
}

// Mapping returns the table mapping.
func (r *Repository[K, E]) Mapping() Mapping {
	return r.mapping
}

// Config returns the effective configuration.
func (r *Repository[K, E]) Config() Config {
	return r.config
}

// FindRoots returns every node without a parent, in the finder's order.
func (r *Repository[K, E]) FindRoots(ctx context.Context, opts FindOptions) ([]E, error) {
	return r.finder.Find(ctx, Where{ParentIsNull: true}, opts.Relations)
}

// FindByID returns the node with the given id, or ErrNotFound. The database
// decides equality, so an id spelled differently from the decoded one ("01"
// for an integer key 1) still finds its row.
func (r *Repository[K, E]) FindByID(ctx context.Context, id K, opts FindOptions) (E, error) {
	var zero E
	found, err := r.finder.Find(ctx, Where{IDs: []any{id}}, opts.Relations)
	if err != nil {
		return zero, err
	}
	for _, e := range found {
		if e.TreeID() == id {
			return e, nil
		}
	}
	if len(found) == 1 {
		return found[0], nil
	}
	return zero, fmt.Errorf("%w: %v", ErrNotFound, id)
}

// FindDescendants returns root and its descendants up to opts.Depth
// generations, in no particular order. It issues one traversal query and one
// hydration query. Nodes deleted between the two are absent from the result.
func (r *Repository[K, E]) FindDescendants(ctx context.Context, root E, opts FindOptions) (nodes []E, err error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	rootID := root.TreeID()
	ctx, span := startSpan(ctx, "tree.FindDescendants",
		attribute.String("arbor.table", r.mapping.Table),
		attribute.String("arbor.root", fmt.Sprint(rootID)),
	)
	defer func() { endSpan(span, err) }()

	ids, err := r.closure(ctx, rootID, opts.Depth)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("arbor.closure_size", len(ids)))
	if len(ids) == 0 {
		return []E{}, nil
	}

	return r.finder.Find(ctx, Where{IDs: ids}, opts.Relations)
}

// closure runs the traversal query and returns the deduplicated identifiers.
func (r *Repository[K, E]) closure(ctx context.Context, rootID K, depth *int) ([]any, error) {
	bound, err := r.mapping.BindID(rootID)
	if err != nil {
		return nil, err
	}
	stmt := ClosureStatement(r.mapping, r.exec.Dialect(), bound, depth)

	start := time.Now()
	rows, err := r.exec.Query(ctx, stmt)
	recordQuery(ctx, "closure", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	seen := make(map[any]bool, len(rows))
	ids := make([]any, 0, len(rows))
	var maxDepth int64
	for i, row := range rows {
		if row.IsNull(ClosureIDColumn) {
			return nil, fmt.Errorf("closure row %d: missing %s", i, ClosureIDColumn)
		}
		id := row.Value(ClosureIDColumn)
		if d, err := row.Int64(ClosureDepthColumn); err == nil && d > maxDepth {
			maxDepth = d
		}
		key := idKey(id)
		if seen[key] {
			continue
		}
		seen[key] = true
		ids = append(ids, id)
	}

	recordClosure(ctx, len(ids), depth != nil)
	r.logger.Debug("closure computed",
		"table", r.mapping.Table,
		"root", rootID,
		"nodes", len(ids),
		"maxDepth", maxDepth,
		"bounded", depth != nil,
	)
	return ids, nil
}

// FindDescendantsTree returns root with its descendants up to opts.Depth
// assembled below it.
func (r *Repository[K, E]) FindDescendantsTree(ctx context.Context, root E, opts FindOptions) (*Node[K, E], error) {
	nodes, err := r.FindDescendants(ctx, root, opts)
	if err != nil {
		return nil, err
	}

	tree, orphans, err := r.assembler.AssembleWithOrphans(nodes, root.TreeID())
	if err != nil {
		return nil, err
	}
	if len(orphans) > 0 {
		recordOrphans(ctx, len(orphans))
		orphanIDs := make([]K, len(orphans))
		for i, o := range orphans {
			orphanIDs[i] = o.ID()
		}
		r.logger.Warn("detached nodes whose parent was not fetched",
			"table", r.mapping.Table,
			"root", root.TreeID(),
			"orphans", orphanIDs,
		)
	}
	return tree, nil
}

// FindDescendantsTreeByID loads the node with the given id and returns its
// assembled tree.
func (r *Repository[K, E]) FindDescendantsTreeByID(ctx context.Context, id K, opts FindOptions) (*Node[K, E], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	root, err := r.FindByID(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	return r.FindDescendantsTree(ctx, root, opts)
}

// FindTrees returns one assembled tree per root, in FindRoots order.
// Per-root pipelines run concurrently, at most Config.Concurrency at a time.
// The first failure cancels the remaining pipelines and is returned.
func (r *Repository[K, E]) FindTrees(ctx context.Context, opts FindOptions) (trees []*Node[K, E], err error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "tree.FindTrees",
		attribute.String("arbor.table", r.mapping.Table),
	)
	defer func() { endSpan(span, err) }()

	roots, err := r.FindRoots(ctx, opts)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("arbor.roots", len(roots)))

	trees = make([]*Node[K, E], len(roots))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for i, root := range roots {
		i, root := i, root
		g.Go(func() error {
			t, err := r.FindDescendantsTree(gCtx, root, opts)
			if err != nil {
				return fmt.Errorf("tree for root %v: %w", root.TreeID(), err)
			}
			trees[i] = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Debug("forest assembled",
		"table", r.mapping.Table,
		"trees", len(trees),
	)
	return trees, nil
}
