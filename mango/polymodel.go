package mango

// polyInfo links a schema into a polymorphic family. The family root
// carries the discriminator key and the registry of children; each
// registered child carries its display name and discriminator value.
type polyInfo struct {
	root     *Schema
	key      string
	children map[interface{}]*Schema

	// set on registered children only
	name  string
	value interface{}
}

// DiscriminatorKey makes the schema the root of a polymorphic family: the
// named document key selects which registered child schema a document is
// constructed as. Declaring a field under the key with a default gives the
// family a default subtype.
func DiscriminatorKey(key string) SchemaOption {
	return func(s *Schema) {
		s.poly = &polyInfo{
			root:     s,
			key:      key,
			children: make(map[interface{}]*Schema),
		}
	}
}

// RegisterOption configures a polymorphic child registration.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	value    interface{}
	hasValue bool
	fields   []*Field
}

// WithValue sets the child's discriminator value explicitly; without it
// the registered name is the value.
func WithValue(v interface{}) RegisterOption {
	return func(o *registerOpts) {
		o.value = v
		o.hasValue = true
	}
}

// WithFields declares extra fields on the child, replacing same-named
// inherited fields (typically the discriminator field with a new default).
func WithFields(fields ...*Field) RegisterOption {
	return func(o *registerOpts) { o.fields = append(o.fields, fields...) }
}

// Register derives a child schema for the polymorphic family and inserts
// it into the family registry under its discriminator value. The child
// inherits the receiver's fields and configuration, reports the family
// root's collection name, and scopes its queries to its discriminator
// value. Registering an already-used value replaces the earlier child.
func (s *Schema) Register(name string, opts ...RegisterOption) (*Schema, error) {
	root := s.familyRoot()
	if root == nil {
		return nil, ErrNoDiscriminator
	}
	ro := registerOpts{value: name}
	for _, opt := range opts {
		opt(&ro)
	}
	s.mu.Lock()
	declared := append([]*Field(nil), s.declared...)
	s.mu.Unlock()
	child := &Schema{
		name:       name,
		idField:    s.idField,
		idCoerce:   s.idCoerce,
		cfg:        s.cfg,
		session:    s.session,
		autoCreate: s.autoCreate,
		declared:   declared,
	}
	for _, f := range ro.fields {
		child.AddField(f)
	}
	child.poly = &polyInfo{
		root:  root,
		key:   root.poly.key,
		name:  name,
		value: ro.value,
	}
	root.poly.children[ro.value] = child
	return child, nil
}

// MustRegister is Register for declaration-time use; it panics on a
// configuration error.
func (s *Schema) MustRegister(name string, opts ...RegisterOption) *Schema {
	child, err := s.Register(name, opts...)
	if err != nil {
		panic(err)
	}
	return child
}

// familyRoot returns the polymorphic family root, nil when the schema is
// not polymorphic.
func (s *Schema) familyRoot() *Schema {
	if s.poly == nil {
		return nil
	}
	return s.poly.root
}

// isRegisteredChild reports whether the schema is a registered child (as
// opposed to a family root or a plain schema).
func (s *Schema) isRegisteredChild() bool {
	return s.poly != nil && s.poly.root != s
}

// dispatch picks the concrete schema to construct a document as. The
// explicit discriminator value in kwargs wins; otherwise the calling
// schema's discriminator field default is consulted; an unregistered or
// absent value falls back to the calling schema.
func (s *Schema) dispatch(kwargs M) *Schema {
	root := s.familyRoot()
	if root == nil {
		return s
	}
	key := root.poly.key
	var value interface{}
	if kwargs != nil {
		value = kwargs[key]
	}
	if value == nil {
		if f, ok := s.fields().lookup(key); ok {
			if dv, err := f.defaultValue(); err == nil {
				value = dv
			}
		}
	}
	if value != nil {
		if child, ok := root.poly.children[value]; ok {
			return child
		}
	}
	return s
}

// injectDiscriminator scopes a filter to a registered child's value unless
// the caller's filter already names the discriminator key. The caller's
// map is never mutated. Family roots and plain schemas pass filters
// through untouched, so querying the root returns the whole family.
func (s *Schema) injectDiscriminator(filter M) M {
	if !s.isRegisteredChild() {
		return filter
	}
	key := s.poly.key
	if filter == nil {
		return M{key: s.poly.value}
	}
	if _, ok := filter[key]; ok {
		return filter
	}
	out := copyM(filter)
	out[key] = s.poly.value
	return out
}

// injectPipeline scopes an aggregation pipeline to a registered child's
// value: merged into a leading $match stage when one exists (without
// overriding a caller-specified discriminator), otherwise prepended as a
// new $match stage.
func (s *Schema) injectPipeline(pipeline []M) []M {
	if !s.isRegisteredChild() {
		return pipeline
	}
	key := s.poly.key
	if len(pipeline) > 0 {
		if match, ok := pipeline[0]["$match"].(M); ok {
			if _, exists := match[key]; exists {
				return pipeline
			}
			newMatch := copyM(match)
			newMatch[key] = s.poly.value
			out := append([]M(nil), pipeline...)
			out[0] = M{"$match": newMatch}
			for k, v := range pipeline[0] {
				if k != "$match" {
					out[0][k] = v
				}
			}
			return out
		}
	}
	out := make([]M, 0, len(pipeline)+1)
	out = append(out, M{"$match": M{key: s.poly.value}})
	return append(out, pipeline...)
}
