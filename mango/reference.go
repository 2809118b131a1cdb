package mango

// Ref is the stored form of a cross-document reference: the referenced
// collection's name plus the referenced document's id. It round-trips
// through storage without losing id fidelity; JSON backends may hand it
// back as a plain map, which asRef normalizes.
type Ref struct {
	Collection string      `bson:"$ref" json:"$ref"`
	ID         interface{} `bson:"$id" json:"$id"`
}

// asRef recognizes the storage forms a reference can come back as.
func asRef(v interface{}) (Ref, bool) {
	switch r := v.(type) {
	case Ref:
		return r, true
	case *Ref:
		if r != nil {
			return *r, true
		}
	case M:
		if c, ok := r["$ref"].(string); ok {
			return Ref{Collection: c, ID: r["$id"]}, true
		}
	}
	return Ref{}, false
}

// refRecord converts, for storage, any *Model value into its reference
// record; other values pass through.
func refRecord(v interface{}) interface{} {
	if m, ok := v.(*Model); ok {
		return m.Ref()
	}
	return v
}

// NewReferenceField declares a field holding a reference to a document of
// the target schema. Writes accept a *Model of the target's collection (or
// nil) and store its reference record; reads resolve the record with a
// point lookup against the target's collection on every access, so a read
// always reflects the store's current state. A custom get or set callback
// supplied in opts replaces the corresponding behavior entirely.
func NewReferenceField(name string, target *Schema, opts ...FieldOption) *Field {
	f := NewField(name, opts...)
	if f.setCB == nil {
		f.setCB = func(m *Model, value interface{}) (interface{}, error) {
			if value == nil {
				return nil, nil
			}
			mv, ok := value.(*Model)
			if !ok {
				return nil, &FieldTypeError{
					Field:    f.name,
					Expected: "*mango.Model (" + target.Name() + ")",
					Actual:   typeName(value),
				}
			}
			if mv.CollectionName() != target.Name() {
				return nil, &FieldTypeError{
					Field:    f.name,
					Expected: "*mango.Model (" + target.Name() + ")",
					Actual:   "*mango.Model (" + mv.CollectionName() + ")",
				}
			}
			return mv.Ref(), nil
		}
	}
	if f.getCB == nil {
		f.getCB = func(m *Model, stored interface{}) (interface{}, error) {
			ref, ok := asRef(stored)
			if !ok {
				return nil, nil
			}
			resolved, err := target.FindOne(M{target.idKey(): ref.ID})
			if err != nil {
				return nil, err
			}
			if resolved == nil {
				return nil, nil
			}
			return resolved, nil
		}
	}
	return f
}
