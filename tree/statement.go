package tree

import (
	"fmt"
	"strings"
)

// Columns of the rows returned by ClosureStatement.
const (
	ClosureIDColumn    = "id"
	ClosureDepthColumn = "depth"
)

// ClosureStatement returns the recursive traversal computing the identifiers
// of rootID and its descendants. Each result row carries the node id and its
// generation (0 for the root) in the ClosureIDColumn and ClosureDepthColumn
// columns. A non-nil depth stops the recursion after that many generations.
//
// The mapping must have been validated; identifiers are quoted, not escaped.
func ClosureStatement(m Mapping, d Dialect, rootID any, depth *int) Statement {
	table := d.Ident(m.Table)
	id := d.Ident(m.IDColumn)
	parent := d.Ident(m.ParentColumn)

	args := []any{rootID}

	var b strings.Builder
	b.WriteString("WITH RECURSIVE subtree (id, depth) AS (\n")
	fmt.Fprintf(&b, "    SELECT t.%s, 0\n", id)
	fmt.Fprintf(&b, "    FROM %s t\n", table)
	fmt.Fprintf(&b, "    WHERE t.%s = %s\n", id, d.Placeholder(1))
	b.WriteString("  UNION\n")
	fmt.Fprintf(&b, "    SELECT c.%s, subtree.depth + 1\n", id)
	fmt.Fprintf(&b, "    FROM %s c\n", table)
	fmt.Fprintf(&b, "    JOIN subtree ON c.%s = subtree.id\n", parent)
	if depth != nil {
		args = append(args, int64(*depth))
		fmt.Fprintf(&b, "    WHERE subtree.depth < %s\n", d.Placeholder(2))
	}
	b.WriteString(")\n")
	b.WriteString("SELECT id, MIN(depth) AS depth FROM subtree GROUP BY id")

	return Statement{SQL: b.String(), Args: args}
}

// SelectStatement returns the query loading full rows of the mapped table
// that match where, ordered by the mapping's order column. An empty IDs list
// selects nothing.
func SelectStatement(m Mapping, d Dialect, where Where) Statement {
	var b strings.Builder
	var args []any

	fmt.Fprintf(&b, "SELECT * FROM %s", d.Ident(m.Table))

	var conditions []string
	if where.ParentIsNull {
		conditions = append(conditions, d.Ident(m.ParentColumn)+" IS NULL")
	}
	if where.IDs != nil {
		if len(where.IDs) == 0 {
			conditions = append(conditions, "1 = 0")
		} else {
			placeholders := make([]string, len(where.IDs))
			for i, id := range where.IDs {
				args = append(args, id)
				placeholders[i] = d.Placeholder(len(args))
			}
			conditions = append(conditions,
				fmt.Sprintf("%s IN (%s)", d.Ident(m.IDColumn), strings.Join(placeholders, ", ")))
		}
	}
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s", d.Ident(m.orderColumn()))

	return Statement{SQL: b.String(), Args: args}
}
