package tree

import (
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
)

// Entity is implemented by every type stored in a tree table.
type Entity[K comparable] interface {
	// TreeID returns the node's unique identifier.
	TreeID() K

	// TreeParentID returns the parent's identifier.
	// The boolean is false for root nodes.
	TreeParentID() (K, bool)
}

// Row is a raw result row keyed by column name.
type Row map[string]any

// Statement is a parameterized SQL statement.
type Statement struct {
	// SQL is the statement text with dialect-specific placeholders.
	SQL string

	// Args are the bind values, in placeholder order.
	Args []any
}

// Where selects the rows a Finder returns.
type Where struct {
	// ParentIsNull selects root rows.
	ParentIsNull bool

	// IDs selects rows by identifier. Values are passed to the executor as
	// bind arguments unchanged.
	IDs []any
}

// FindOptions configures read operations.
type FindOptions struct {
	// Relations names related attributes to hydrate eagerly.
	// They are passed to the Finder as-is.
	Relations []string

	// Depth bounds descendant traversal: 0 returns the node alone, d returns
	// nodes at most d edges away. Nil means unbounded.
	Depth *int
}

// Depth returns a pointer to d for use in FindOptions.
func Depth(d int) *int {
	return &d
}

func (o FindOptions) validate() error {
	if o.Depth != nil && *o.Depth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, *o.Depth)
	}
	return nil
}

// Value returns the raw value of col, or nil if absent.
func (r Row) Value(col string) any {
	return r[col]
}

// IsNull reports whether col is absent or NULL.
func (r Row) IsNull(col string) bool {
	v, ok := r[col]
	return !ok || v == nil
}

// Int64 returns col as an int64.
func (r Row) Int64(col string) (int64, error) {
	v, ok := r[col]
	if !ok {
		return 0, fmt.Errorf("column %q: missing", col)
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", col, err)
	}
	return n, nil
}

// NullableInt64 returns col as an int64; the boolean is false for NULL.
func (r Row) NullableInt64(col string) (int64, bool, error) {
	if r.IsNull(col) {
		return 0, false, nil
	}
	n, err := r.Int64(col)
	return n, err == nil, err
}

// String returns col as a string. Numbers are formatted in base 10 and
// 16-byte UUID values in their canonical form.
func (r Row) String(col string) (string, error) {
	v, ok := r[col]
	if !ok {
		return "", fmt.Errorf("column %q: missing", col)
	}
	s, err := toString(v)
	if err != nil {
		return "", fmt.Errorf("column %q: %w", col, err)
	}
	return s, nil
}

// NullableString returns col as a string; the boolean is false for NULL.
func (r Row) NullableString(col string) (string, bool, error) {
	if r.IsNull(col) {
		return "", false, nil
	}
	s, err := r.String(col)
	return s, err == nil, err
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not integral", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case [16]byte:
		return uuid.UUID(s).String(), nil
	case uuid.UUID:
		return s.String(), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	if n, err := toInt64(v); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v)
}

// idKey makes an identifier usable as a map key.
func idKey(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
