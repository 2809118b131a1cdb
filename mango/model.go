package mango

import (
	"fmt"
	"reflect"
	"sort"
)

// Model is one document bound to its schema: a backing mapping of storage
// keys to values. Field access goes through Get and Set (or the generic
// GetField/SetField wrappers), which route through the declared fields'
// validation and callbacks; the Key methods operate on the raw mapping
// directly.
type Model struct {
	schema *Schema
	doc    M
}

// Schema returns the schema the document was constructed by. For
// polymorphic documents this is the concrete registered child.
func (m *Model) Schema() *Schema { return m.schema }

// CollectionName returns the effective collection name.
func (m *Model) CollectionName() string { return m.schema.Name() }

// ID returns the document's id, or nil when it has never been saved.
func (m *Model) ID() interface{} { return m.doc[m.schema.idField] }

// Ref returns the document's reference record.
func (m *Model) Ref() Ref {
	return Ref{Collection: m.CollectionName(), ID: m.ID()}
}

// Get reads a declared field through its read path: defaults populate on
// first access, required-but-unset fails, and the get callback applies.
func (m *Model) Get(name string) (interface{}, error) {
	f, ok := m.schema.fields().lookup(name)
	if !ok {
		return nil, &UnknownFieldError{Field: name}
	}
	return f.read(m)
}

// Lookup reads a declared field without populating defaults. The boolean
// reports presence; an explicit nil value is present.
func (m *Model) Lookup(name string) (interface{}, bool, error) {
	f, ok := m.schema.fields().lookup(name)
	if !ok {
		return nil, false, &UnknownFieldError{Field: name}
	}
	return f.lookup(m)
}

// Set writes a declared field through its write path (type check, one
// coercion pass, validators, set callback). Unknown names are registered
// as ad hoc untyped fields when the auto-creation policy allows it.
func (m *Model) Set(name string, value interface{}) error {
	f, ok := m.schema.fields().lookup(name)
	if !ok {
		if !m.schema.autoCreateEnabled() {
			return &UnknownFieldError{Field: name}
		}
		f = NewField(name)
		m.schema.AddField(f)
	}
	return f.write(m, value)
}

// GetKey reads a raw storage key from the backing mapping.
func (m *Model) GetKey(key string) (interface{}, bool) {
	v, ok := m.doc[key]
	return v, ok
}

// SetKey writes a raw storage key, bypassing field validation.
func (m *Model) SetKey(key string, value interface{}) {
	m.setStored(key, value)
}

// DeleteKey removes a raw storage key from the backing mapping.
func (m *Model) DeleteKey(key string) {
	delete(m.doc, key)
}

// Has reports whether the backing mapping contains the storage key.
func (m *Model) Has(key string) bool {
	_, ok := m.doc[key]
	return ok
}

// Len returns the number of storage keys in the backing mapping.
func (m *Model) Len() int { return len(m.doc) }

// Keys returns the backing mapping's storage keys, sorted.
func (m *Model) Keys() []string {
	keys := make([]string, 0, len(m.doc))
	for k := range m.doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copy returns a shallow copy of the backing mapping.
func (m *Model) Copy() M { return copyM(m.doc) }

func (m *Model) setStored(key string, value interface{}) {
	m.doc[key] = value
}

// persistable returns the document as it should be stored: a copy with
// any Model values converted to reference records.
func (m *Model) persistable() M {
	body := make(M, len(m.doc))
	for k, v := range m.doc {
		body[k] = refRecord(v)
	}
	return body
}

// CheckRequired verifies that the named fields (all declared fields when
// none are given) are present when required, in registry order. The first
// missing required field fails with EmptyRequiredFieldError.
func (m *Model) CheckRequired(names ...string) error {
	reg := m.schema.fields()
	if len(names) == 0 {
		names = reg.names()
	}
	for _, name := range names {
		f, ok := reg.lookup(name)
		if !ok {
			continue
		}
		if f.IsRequired() && f.state(m) == stateUnset {
			return &EmptyRequiredFieldError{Field: name}
		}
	}
	return nil
}

// Save persists the document: a document without an id is inserted and
// adopts the store-assigned id, an already-persisted one is replaced
// (upserting). Required fields are checked first. Returns the id.
func (m *Model) Save() (interface{}, error) {
	coll, err := m.schema.Collection()
	if err != nil {
		return nil, err
	}
	if err := m.CheckRequired(); err != nil {
		return nil, err
	}
	body := m.persistable()
	if m.ID() == nil {
		id, err := coll.Insert(body)
		if err != nil {
			return nil, err
		}
		m.doc[m.schema.idField] = id
	} else {
		filter := M{m.schema.idField: m.ID()}
		if err := coll.Replace(filter, body, true); err != nil {
			return nil, err
		}
	}
	return m.ID(), nil
}

// Update applies a partial update: each kwarg naming a declared field goes
// through the field's write path and contributes its resolved storage key
// and post-write value; other kwargs are written into the mapping
// directly. A single $set with exactly those pairs is then issued against
// the document's id. Fails with ErrInvalidUpdate when the document has
// never been saved. The class-level counterpart is Schema.Update.
func (m *Model) Update(kwargs M) (*UpdateResult, error) {
	if m.ID() == nil {
		return nil, ErrInvalidUpdate
	}
	reg := m.schema.fields()
	body := M{}
	var declared []string
	for _, k := range sortedKeys(kwargs) {
		v := kwargs[k]
		if f, ok := reg.lookup(k); ok {
			if err := f.write(m, v); err != nil {
				return nil, err
			}
			body[f.StorageKey()] = m.doc[f.StorageKey()]
			declared = append(declared, k)
		} else {
			m.doc[k] = v
			body[k] = v
		}
	}
	if err := m.CheckRequired(declared...); err != nil {
		return nil, err
	}
	coll, err := m.schema.Collection()
	if err != nil {
		return nil, err
	}
	filter := M{m.schema.idField: m.ID()}
	return coll.Update(filter, M{"$set": body}, false)
}

// Delete removes the document from the backing store by id.
func (m *Model) Delete() error {
	if m.ID() == nil {
		return ErrNoID
	}
	coll, err := m.schema.Collection()
	if err != nil {
		return err
	}
	_, err = coll.Delete(M{m.schema.idField: m.ID()}, false)
	return err
}

// Equal reports whether two models address the same stored document: same
// effective collection name and the same non-empty id. A model never
// equals nil.
func (m *Model) Equal(other *Model) bool {
	if other == nil {
		return false
	}
	if m.CollectionName() != other.CollectionName() {
		return false
	}
	a, b := m.ID(), other.ID()
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func (m *Model) String() string {
	return fmt.Sprintf("<Model:%s id:%v>", m.CollectionName(), m.ID())
}
