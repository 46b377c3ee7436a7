// Package record provides a schema-less tree entity whose columns are only
// known from configuration. Both binaries read trees of Records.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jacentio/arbor/internal/sqlident"
	"github.com/jacentio/arbor/tree"
)

// Record is one row of a mapped table. Identifiers are kept in their string
// form so tables keyed by integers, text or uuids are handled alike.
type Record struct {
	ID        string
	ParentID  string
	HasParent bool

	// Fields holds every column of the row, including the id and parent columns.
	Fields map[string]any

	// Relations holds eagerly loaded related rows by relation name.
	Relations map[string][]map[string]any
}

// TreeID implements tree.Entity.
func (r *Record) TreeID() string { return r.ID }

// TreeParentID implements tree.Entity.
func (r *Record) TreeParentID() (string, bool) { return r.ParentID, r.HasParent }

// MarshalJSON encodes the columns and loaded relations as one object. A
// relation named like a column is an ErrFieldCollision.
func (r *Record) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Fields)+len(r.Relations))
	for k, v := range r.Fields {
		obj[k] = v
	}
	for name, rows := range r.Relations {
		if _, ok := obj[name]; ok {
			return nil, fmt.Errorf("%w: relation %q of record %s is also a column", tree.ErrFieldCollision, name, r.ID)
		}
		obj[name] = rows
	}
	return json.Marshal(obj)
}

// Decoder returns a tree.DecodeFunc reading the id and parent columns of m.
func Decoder(m tree.Mapping) tree.DecodeFunc[*Record] {
	return func(row tree.Row) (*Record, error) {
		id, err := row.String(m.IDColumn)
		if err != nil {
			return nil, err
		}
		parent, ok, err := row.NullableString(m.ParentColumn)
		if err != nil {
			return nil, err
		}

		fields := make(map[string]any, len(row))
		for col, v := range row {
			fields[col] = jsonValue(v)
		}
		return &Record{ID: id, ParentID: parent, HasParent: ok, Fields: fields}, nil
	}
}

// jsonValue renders driver values that do not encode as readable JSON.
func jsonValue(v any) any {
	switch b := v.(type) {
	case []byte:
		return string(b)
	case [16]byte:
		s, _ := tree.Row{"v": b}.String("v")
		return s
	}
	return v
}

var relationValidate = validator.New()

func init() {
	_ = relationValidate.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlident.Valid(fl.Field().String())
	})
}

// Relation is a one-to-many association from a tree table to another table
// whose ForeignKey column references the tree's id column. Name is the JSON
// key the related rows are encoded under; it must not name a column of the
// tree table or its children field.
type Relation struct {
	Name       string `yaml:"name" validate:"required,printascii"`
	Table      string `yaml:"table" validate:"required,sqlident"`
	ForeignKey string `yaml:"foreign_key" validate:"required,sqlident"`
	OrderBy    string `yaml:"order_by" validate:"omitempty,sqlident"`
}

// Validate checks the relation's identifiers.
func (rel Relation) Validate() error {
	if err := relationValidate.Struct(rel); err != nil {
		return fmt.Errorf("relation %q: %v", rel.Name, err)
	}
	return nil
}

// statement selects the related rows of ids.
func (rel Relation) statement(d tree.Dialect, ids []any) tree.Statement {
	placeholders := make([]string, len(ids))
	for i := range ids {
		placeholders[i] = d.Placeholder(i + 1)
	}
	order := rel.OrderBy
	if order == "" {
		order = rel.ForeignKey
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s) ORDER BY %s",
		d.Ident(rel.Table), d.Ident(rel.ForeignKey), strings.Join(placeholders, ", "), d.Ident(order))
	return tree.Statement{SQL: sql, Args: ids}
}

// Loader returns a tree.RelationLoader that attaches the related rows of
// every record with one query. Records without related rows get an empty list.
// Record ids are bound as m.IDType.
func Loader(exec tree.Executor, m tree.Mapping, rel Relation) tree.RelationLoader[*Record] {
	return func(ctx context.Context, records []*Record) error {
		if len(records) == 0 {
			return nil
		}

		ids := make([]any, len(records))
		for i, r := range records {
			id, err := m.BindID(r.ID)
			if err != nil {
				return err
			}
			ids[i] = id
		}
		rows, err := exec.Query(ctx, rel.statement(exec.Dialect(), ids))
		if err != nil {
			return err
		}

		byParent := make(map[string][]map[string]any, len(records))
		for i, row := range rows {
			key, err := row.String(rel.ForeignKey)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", rel.Table, i, err)
			}
			fields := make(map[string]any, len(row))
			for col, v := range row {
				fields[col] = jsonValue(v)
			}
			byParent[key] = append(byParent[key], fields)
		}

		for _, r := range records {
			if r.Relations == nil {
				r.Relations = make(map[string][]map[string]any)
			}
			related := byParent[r.ID]
			if related == nil {
				related = []map[string]any{}
			}
			r.Relations[rel.Name] = related
		}
		return nil
	}
}

// NewRepository builds a tree.Repository of Records for m, with a loader
// registered for every relation.
func NewRepository(exec tree.Executor, m tree.Mapping, relations []Relation, config tree.Config, logger *slog.Logger) (*tree.Repository[string, *Record], error) {
	finder := tree.NewTableFinder(exec, m, Decoder(m))
	for _, rel := range relations {
		if err := rel.Validate(); err != nil {
			return nil, err
		}
		if rel.Name == m.ChildrenField {
			return nil, fmt.Errorf("%w: relation %q is the children field of %s", tree.ErrFieldCollision, rel.Name, m.Table)
		}
		finder.WithRelation(rel.Name, Loader(exec, m, rel))
	}
	return tree.New[string](exec, finder, m, config, logger)
}
