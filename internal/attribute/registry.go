package attribute

import "fmt"

// Registry is the ordered, name-indexed collection of registered attributes.
// It is populated at startup and read-only afterwards, so it needs no
// locking: the consumer and control plane only ever call Lookup and Names.
type Registry struct {
	ordered []*Definition
	byName  map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Definition),
	}
}

// Register adds a definition to the registry. Registration order is
// preserved and becomes the evaluation order for event predicates.
// Returns a DuplicateAttributeError if the name is already registered.
func (r *Registry) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("attribute name cannot be empty")
	}
	if def.Matches == nil {
		return fmt.Errorf("attribute %q has no predicate", def.Name)
	}

	if _, exists := r.byName[def.Name]; exists {
		return &DuplicateAttributeError{Name: def.Name}
	}

	r.ordered = append(r.ordered, def)
	r.byName[def.Name] = def
	return nil
}

// Lookup returns the definition registered under name.
// Returns an UnknownAttributeError if the name is not registered.
func (r *Registry) Lookup(name string) (*Definition, error) {
	def, ok := r.byName[name]
	if !ok {
		return nil, &UnknownAttributeError{Name: name}
	}
	return def, nil
}

// Names returns the registered attribute names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, def := range r.ordered {
		names[i] = def.Name
	}
	return names
}

// DuplicateAttributeError indicates a Register call with a name that is
// already registered.
type DuplicateAttributeError struct {
	Name string
}

func (e *DuplicateAttributeError) Error() string {
	return fmt.Sprintf("attribute %q is already registered", e.Name)
}

// IsDuplicate returns true if the error is a DuplicateAttributeError.
func IsDuplicate(err error) bool {
	_, ok := err.(*DuplicateAttributeError)
	return ok
}

// UnknownAttributeError indicates a reference to an attribute name that is
// not registered.
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute %q", e.Name)
}

// IsUnknown returns true if the error is an UnknownAttributeError.
func IsUnknown(err error) bool {
	_, ok := err.(*UnknownAttributeError)
	return ok
}
