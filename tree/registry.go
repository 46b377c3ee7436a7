package tree

import "fmt"

// Registry holds the mapping of every known entity type.
type Registry struct {
	mappings map[string]Mapping
	order    []string
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		mappings: make(map[string]Mapping),
	}
}

// Register validates m and binds it to entityType, replacing any earlier
// mapping for the same type.
func (r *Registry) Register(entityType string, m Mapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("register %q: %w", entityType, err)
	}
	if _, exists := r.mappings[entityType]; !exists {
		r.order = append(r.order, entityType)
	}
	r.mappings[entityType] = m
	return nil
}

// Lookup returns the mapping registered for entityType.
func (r *Registry) Lookup(entityType string) (Mapping, bool) {
	m, ok := r.mappings[entityType]
	return m, ok
}

// MappingFor returns the mapping registered for entityType or ErrUnknownEntityType.
func (r *Registry) MappingFor(entityType string) (Mapping, error) {
	m, ok := r.mappings[entityType]
	if !ok {
		return Mapping{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	return m, nil
}

// EntityTypes returns registered entity types in registration order.
func (r *Registry) EntityTypes() []string {
	return append([]string(nil), r.order...)
}

// TableIdentifier returns the table path of entityType.
func (r *Registry) TableIdentifier(entityType string) (string, error) {
	m, err := r.MappingFor(entityType)
	return m.Table, err
}

// ParentColumnName returns the parent-reference column of entityType.
func (r *Registry) ParentColumnName(entityType string) (string, error) {
	m, err := r.MappingFor(entityType)
	return m.ParentColumn, err
}

// ChildrenFieldName returns the children field name of entityType.
func (r *Registry) ChildrenFieldName(entityType string) (string, error) {
	m, err := r.MappingFor(entityType)
	return m.ChildrenField, err
}
