package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jacentio/arbor/internal/sqlident"
)

// Conventional column and field names used by NewMapping.
const (
	DefaultIDColumn      = "id"
	DefaultParentColumn  = "parent_id"
	DefaultChildrenField = "children"
)

// mappingValidate is shared by all mapping validations.
var mappingValidate *validator.Validate

func init() {
	mappingValidate = validator.New()
	_ = mappingValidate.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlident.Valid(fl.Field().String())
	})
}

// IDType is the SQL type of a mapping's id and parent columns. It decides how
// identifiers are converted before they are bound as statement arguments.
type IDType string

const (
	// IDAny binds identifiers as they are given.
	IDAny     IDType = ""
	// IDText binds identifiers as strings.
	IDText    IDType = "text"
	// IDInteger binds identifiers as int64.
	IDInteger IDType = "integer"
	// IDUUID binds identifiers as uuid.UUID.
	IDUUID    IDType = "uuid"
)

// Mapping binds an entity type to its adjacency-list table.
type Mapping struct {
	// Table is the table identifier, optionally schema-qualified ("public.categories").
	Table string `yaml:"table" validate:"required,sqlident"`

	// IDColumn holds each row's identifier.
	IDColumn string `yaml:"id_column" validate:"required,sqlident"`

	// ParentColumn references the parent row's identifier; NULL marks a root.
	ParentColumn string `yaml:"parent_column" validate:"required,sqlident,nefield=IDColumn"`

	// ChildrenField is the name children are rendered under when a Node is
	// encoded. An entity that already encodes a key of that name fails to
	// encode with ErrFieldCollision.
	ChildrenField string `yaml:"children_field" validate:"required,printascii,excludesall=\"\\"`

	// OrderColumn orders rows returned by TableFinder. Empty means IDColumn.
	OrderColumn string `yaml:"order_column" validate:"omitempty,sqlident"`

	// IDType is the column type identifiers are bound as. Drivers that send
	// untyped strings, such as the Aurora Data API, need it for integer and
	// uuid keys.
	IDType IDType `yaml:"id_type" validate:"omitempty,oneof=text integer uuid"`
}

// NewMapping returns a mapping for table with the conventional column and
// field names.
func NewMapping(table string) Mapping {
	return Mapping{
		Table:         table,
		IDColumn:      DefaultIDColumn,
		ParentColumn:  DefaultParentColumn,
		ChildrenField: DefaultChildrenField,
	}
}

// WithDefaults fills empty fields with the conventional names.
func (m Mapping) WithDefaults() Mapping {
	if m.IDColumn == "" {
		m.IDColumn = DefaultIDColumn
	}
	if m.ParentColumn == "" {
		m.ParentColumn = DefaultParentColumn
	}
	if m.ChildrenField == "" {
		m.ChildrenField = DefaultChildrenField
	}
	return m
}

// Validate checks that every identifier is safe to interpolate into SQL.
func (m Mapping) Validate() error {
	if err := mappingValidate.Struct(m); err != nil {
		return fmt.Errorf("%w: table %q: %v", ErrInvalidMapping, m.Table, err)
	}
	return nil
}

func (m Mapping) orderColumn() string {
	if m.OrderColumn != "" {
		return m.OrderColumn
	}
	return m.IDColumn
}

// BindID converts an identifier to the Go type matching m.IDType. Values that
// cannot represent such an identifier return ErrInvalidID.
func (m Mapping) BindID(id any) (any, error) {
	switch m.IDType {
	case IDText:
		switch v := id.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case [16]byte:
			return uuid.UUID(v).String(), nil
		default:
			return fmt.Sprint(v), nil
		}
	case IDInteger:
		switch v := id.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case string:
			n, err := parseInteger(v)
			if err != nil {
				return nil, err
			}
			return n, nil
		case []byte:
			n, err := parseInteger(string(v))
			if err != nil {
				return nil, err
			}
			return n, nil
		}
	case IDUUID:
		switch v := id.(type) {
		case uuid.UUID:
			return v, nil
		case [16]byte:
			return uuid.UUID(v), nil
		case string:
			u, err := uuid.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a uuid", ErrInvalidID, v)
			}
			return u, nil
		case []byte:
			u, err := uuid.ParseBytes(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a uuid", ErrInvalidID, v)
			}
			return u, nil
		}
	default:
		return id, nil
	}
	return nil, fmt.Errorf("%w: %T for %s key", ErrInvalidID, id, m.IDType)
}

func parseInteger(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidID, s)
	}
	return n, nil
}

// bindIDs converts every identifier with BindID.
func (m Mapping) bindIDs(ids []any) ([]any, error) {
	if m.IDType == IDAny || ids == nil {
		return ids, nil
	}
	bound := make([]any, len(ids))
	for i, id := range ids {
		v, err := m.BindID(id)
		if err != nil {
			return nil, err
		}
		bound[i] = v
	}
	return bound, nil
}
