package mango

// fieldRegistry is a schema's ordered, name-keyed view of its declared
// fields. It is rebuilt whenever a field is added so that reads and writes
// always resolve against the schema's current field set. Identity (the
// field's unique id) is tracked alongside names so a field shared between
// schemas can be located on either, but all lookup is by name, scoped to
// the owning schema.
type fieldRegistry struct {
	ordered []*Field
	byName  map[string]*Field
	byID    map[uint64]string
}

func newFieldRegistry(fields []*Field) *fieldRegistry {
	r := &fieldRegistry{
		byName: make(map[string]*Field, len(fields)),
		byID:   make(map[uint64]string, len(fields)),
	}
	for _, f := range fields {
		r.add(f)
	}
	return r
}

// add registers a field, replacing any earlier field declared under the
// same name while keeping its position in declaration order.
func (r *fieldRegistry) add(f *Field) {
	if old, ok := r.byName[f.name]; ok {
		for i, existing := range r.ordered {
			if existing == old {
				r.ordered[i] = f
				break
			}
		}
		delete(r.byID, old.id)
	} else {
		r.ordered = append(r.ordered, f)
	}
	r.byName[f.name] = f
	r.byID[f.id] = f.name
}

func (r *fieldRegistry) lookup(name string) (*Field, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// nameOf resolves a field's attribute name on this registry by identity.
func (r *fieldRegistry) nameOf(f *Field) (string, bool) {
	name, ok := r.byID[f.id]
	return name, ok
}

// names returns the attribute names in declaration order.
func (r *fieldRegistry) names() []string {
	out := make([]string, len(r.ordered))
	for i, f := range r.ordered {
		out[i] = f.name
	}
	return out
}
