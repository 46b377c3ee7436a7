package tree_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacentio/arbor/tree"
)

// --- Test Entity ---

// category is a tree entity with an optional relation.
type category struct {
	ID       int64    `json:"id"`
	ParentID *int64   `json:"parentId,omitempty"`
	Name     string   `json:"name"`
	Tags     []string `json:"tags,omitempty"`
}

func (c *category) TreeID() int64 { return c.ID }

func (c *category) TreeParentID() (int64, bool) {
	if c.ParentID == nil {
		return 0, false
	}
	return *c.ParentID, true
}

func parent(id int64) *int64 { return &id }

// cat builds a category; parentID 0 means root.
func cat(id, parentID int64) *category {
	c := &category{ID: id, Name: fmt.Sprintf("node-%d", id)}
	if parentID != 0 {
		c.ParentID = parent(parentID)
	}
	return c
}

func decodeCategory(row tree.Row) (*category, error) {
	id, err := row.Int64("id")
	if err != nil {
		return nil, err
	}
	name, err := row.String("name")
	if err != nil {
		return nil, err
	}
	c := &category{ID: id, Name: name}
	if pid, ok, err := row.NullableInt64("parent_id"); err != nil {
		return nil, err
	} else if ok {
		c.ParentID = parent(pid)
	}
	return c, nil
}

// shape renders a tree as "1[2[4],3]".
func shape(n *tree.Node[int64, *category]) string {
	if n == nil {
		return "<nil>"
	}
	if len(n.Children) == 0 {
		return fmt.Sprint(n.ID())
	}
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = shape(c)
	}
	return fmt.Sprintf("%d[%s]", n.ID(), strings.Join(parts, ","))
}

func sortedIDs(nodes []*category) []int64 {
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// --- Fake Executor ---

// memExecutor evaluates the statements built by tree.ClosureStatement and
// tree.SelectStatement against an in-memory table.
type memExecutor struct {
	mu    sync.Mutex
	rows  []*category
	stmts []tree.Statement

	// failOn makes statements containing the substring fail with err.
	failOn string
	err    error

	// afterClosure runs after each closure query, before hydration.
	afterClosure func(m *memExecutor)

	// delay holds every query open so overlapping calls can be observed in
	// inFlight and peak.
	delay    time.Duration
	inFlight atomic.Int64
	peak     atomic.Int64
}

var errConnectivity = errors.New("connection refused")

func newMemExecutor(rows ...*category) *memExecutor {
	return &memExecutor{rows: rows}
}

func (m *memExecutor) Dialect() tree.Dialect { return tree.SQLite }

func (m *memExecutor) delete(id int64) {
	for i, r := range m.rows {
		if r.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return
		}
	}
}

func (m *memExecutor) count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.stmts {
		if strings.HasPrefix(s.SQL, prefix) {
			n++
		}
	}
	return n
}

func (m *memExecutor) Query(ctx context.Context, stmt tree.Statement) ([]tree.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.delay > 0 {
		n := m.inFlight.Add(1)
		defer m.inFlight.Add(-1)
		for {
			p := m.peak.Load()
			if n <= p || m.peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stmts = append(m.stmts, stmt)

	if m.failOn != "" && strings.Contains(stmt.SQL, m.failOn) {
		return nil, m.err
	}

	if strings.HasPrefix(stmt.SQL, "WITH RECURSIVE") {
		rows := m.closure(stmt)
		if m.afterClosure != nil {
			m.afterClosure(m)
		}
		return rows, nil
	}
	return m.selectRows(stmt), nil
}

func (m *memExecutor) closure(stmt tree.Statement) []tree.Row {
	rootID := stmt.Args[0].(int64)
	maxDepth := int64(-1)
	if len(stmt.Args) > 1 {
		maxDepth = stmt.Args[1].(int64)
	}

	depth := map[int64]int64{}
	for _, r := range m.rows {
		if r.ID == rootID {
			depth[rootID] = 0
		}
	}
	frontier := []int64{}
	if _, ok := depth[rootID]; ok {
		frontier = append(frontier, rootID)
	}
	for gen := int64(1); len(frontier) > 0 && (maxDepth < 0 || gen <= maxDepth); gen++ {
		var next []int64
		for _, p := range frontier {
			for _, r := range m.rows {
				if r.ParentID != nil && *r.ParentID == p {
					if _, seen := depth[r.ID]; !seen {
						depth[r.ID] = gen
						next = append(next, r.ID)
					}
				}
			}
		}
		frontier = next
	}

	rows := make([]tree.Row, 0, len(depth))
	for id, d := range depth {
		rows = append(rows, tree.Row{"id": id, "depth": d})
	}
	return rows
}

func (m *memExecutor) selectRows(stmt tree.Statement) []tree.Row {
	want := map[int64]bool{}
	for _, a := range stmt.Args {
		want[a.(int64)] = true
	}
	rootsOnly := strings.Contains(stmt.SQL, "IS NULL")

	var rows []tree.Row
	for _, r := range m.rows {
		if rootsOnly && r.ParentID != nil {
			continue
		}
		if !rootsOnly && !want[r.ID] {
			continue
		}
		row := tree.Row{"id": r.ID, "name": r.Name, "parent_id": nil}
		if r.ParentID != nil {
			row["parent_id"] = *r.ParentID
		}
		rows = append(rows, row)
	}
	return rows
}

// sampleRows is the table {(1,null),(2,1),(3,1),(4,2)}.
func sampleRows() []*category {
	return []*category{cat(1, 0), cat(2, 1), cat(3, 1), cat(4, 2)}
}
