package mango

import (
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDCoerceFunc converts a caller-supplied id into the form the schema's
// collection stores (Grab and MakeRef run ids through it).
type IDCoerceFunc func(id interface{}) (interface{}, error)

// defaultIDCoerce turns 24-character hex strings into ObjectIDs and leaves
// everything else untouched, so ObjectID-keyed and string-keyed backends
// both work without configuration.
func defaultIDCoerce(id interface{}) (interface{}, error) {
	if s, ok := id.(string); ok {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid, nil
		}
	}
	return id, nil
}

// Schema is the declarative description of one document type: its
// collection name, ordered field registry, id handling, configuration and
// lazily resolved collection handle. All class-level operations live here;
// per-document operations live on Model. A schema is built once and safe
// for concurrent use afterwards; AddField and Register are the intended
// mutation paths.
type Schema struct {
	name       string
	idField    string
	idCoerce   IDCoerceFunc
	cfg        *Config
	session    Session
	autoCreate *bool
	declared   []*Field
	poly       *polyInfo

	mu   sync.Mutex
	reg  *fieldRegistry
	coll Collection
}

// SchemaOption configures a Schema at construction time.
type SchemaOption func(*Schema)

// Fields declares the schema's fields in order.
func Fields(fields ...*Field) SchemaOption {
	return func(s *Schema) { s.declared = append(s.declared, fields...) }
}

// WithConfig binds the schema to a configuration instead of DefaultConfig.
func WithConfig(cfg *Config) SchemaOption {
	return func(s *Schema) { s.cfg = cfg }
}

// WithSession binds the schema to a session, overriding the config's.
func WithSession(sess Session) SchemaOption {
	return func(s *Schema) { s.session = sess }
}

// AutoCreate overrides the auto-creation policy for this schema only.
func AutoCreate(enabled bool) SchemaOption {
	return func(s *Schema) { s.autoCreate = &enabled }
}

// IDField overrides the document key holding the id (default "_id").
func IDField(key string) SchemaOption {
	return func(s *Schema) { s.idField = key }
}

// IDCoerce overrides how Grab and MakeRef coerce caller-supplied ids.
func IDCoerce(fn IDCoerceFunc) SchemaOption {
	return func(s *Schema) { s.idCoerce = fn }
}

// NewSchema declares a document type stored in the named collection.
func NewSchema(name string, opts ...SchemaOption) *Schema {
	s := &Schema{
		name:     name,
		idField:  "_id",
		idCoerce: defaultIDCoerce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the effective collection name. Registered polymorphic
// children report their family root's collection so the whole family
// shares one physical collection.
func (s *Schema) Name() string {
	if s.poly != nil && s.poly.root != s {
		return s.poly.root.name
	}
	return s.name
}

func (s *Schema) idKey() string { return s.idField }

func (s *Schema) config() *Config {
	if s.cfg != nil {
		return s.cfg
	}
	return DefaultConfig
}

func (s *Schema) autoCreateEnabled() bool {
	if s.autoCreate != nil {
		return *s.autoCreate
	}
	return s.config().AutoCreateFields
}

// fields returns the registry, building it lazily on first access so a
// read can never observe a schema without one.
func (s *Schema) fields() *fieldRegistry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reg == nil {
		s.reg = newFieldRegistry(s.declared)
	}
	return s.reg
}

// AddField registers an additional field on the schema and rebuilds the
// registry immediately, so documents constructed afterwards resolve it.
// A field with an already-declared name replaces the earlier declaration.
func (s *Schema) AddField(f *Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declared = append(s.declared, f)
	s.reg = newFieldRegistry(s.declared)
}

// FieldByName returns the named field, if declared.
func (s *Schema) FieldByName(name string) (*Field, bool) {
	return s.fields().lookup(name)
}

// FieldNames returns the declared field names in declaration order.
func (s *Schema) FieldNames() []string {
	return s.fields().names()
}

// Collection resolves and caches the schema's collection handle. The
// resolution is idempotent; racing first resolutions at worst waste one.
func (s *Schema) Collection() (Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coll != nil {
		return s.coll, nil
	}
	sess := s.session
	if sess == nil {
		sess = s.config().Session
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	coll, err := sess.Collection(s.Name())
	if err != nil {
		return nil, fmt.Errorf("resolving collection %q: %w", s.Name(), err)
	}
	s.coll = coll
	return coll, nil
}

// UseSession returns a copy of the schema bound to the given session, with
// its own empty collection cache. The receiver is untouched. A rebound
// family root is itself a root: its polyInfo is rebuilt to point at the
// clone (sharing the family's child registry), so the clone never
// misidentifies as a registered child. A rebound child keeps its family
// linkage as is.
func (s *Schema) UseSession(sess Session) *Schema {
	s.mu.Lock()
	declared := append([]*Field(nil), s.declared...)
	s.mu.Unlock()
	clone := &Schema{
		name:       s.name,
		idField:    s.idField,
		idCoerce:   s.idCoerce,
		cfg:        s.cfg,
		session:    sess,
		autoCreate: s.autoCreate,
		declared:   declared,
	}
	if s.poly != nil {
		if s.poly.root == s {
			clone.poly = &polyInfo{
				root:     clone,
				key:      s.poly.key,
				children: s.poly.children,
			}
		} else {
			clone.poly = s.poly
		}
	}
	return clone
}

// New constructs a document. When kwargs contains the id key the document
// is a reconstruction from the store: values are written directly without
// field validation. Otherwise each key must name a declared field (or the
// auto-creation policy must allow registering it as an untyped field) and
// is written through the field's validation path. In both cases every
// declared field then gets the chance to populate its default, without
// overwriting anything already set. For polymorphic schemas the concrete
// schema is chosen by discriminator before any of this runs, and a
// registered child stamps its discriminator value on the new document.
func (s *Schema) New(kwargs M) (*Model, error) {
	return s.dispatch(kwargs).newModel(kwargs)
}

func (s *Schema) newModel(kwargs M) (*Model, error) {
	reg := s.fields()
	m := &Model{schema: s, doc: M{}}
	if kwargs != nil {
		if _, ok := kwargs[s.idField]; ok {
			// From the store: trust it.
			for k, v := range kwargs {
				m.doc[k] = v
			}
		} else {
			for _, k := range sortedKeys(kwargs) {
				f, ok := reg.lookup(k)
				if !ok {
					// The discriminator key is always writable even
					// without a declared field under it.
					if s.poly != nil && k == s.poly.key {
						m.doc[k] = kwargs[k]
						continue
					}
					if !s.autoCreateEnabled() {
						return nil, &UnknownFieldError{Field: k}
					}
					f = NewField(k)
					s.AddField(f)
					reg = s.fields()
				}
				if err := f.write(m, kwargs[k]); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, f := range reg.ordered {
		if err := f.setDefault(m); err != nil {
			return nil, err
		}
	}
	if s.isRegisteredChild() {
		if _, ok := m.doc[s.poly.key]; !ok {
			m.doc[s.poly.key] = s.poly.value
		}
	}
	return m, nil
}

// FindOne returns the first matching document wrapped in a Model, or nil
// when nothing matches. Registered polymorphic children restrict the
// filter to their own discriminator value.
func (s *Schema) FindOne(filter M) (*Model, error) {
	coll, err := s.Collection()
	if err != nil {
		return nil, err
	}
	filter = s.injectDiscriminator(filter)
	if filter == nil {
		filter = M{}
	}
	raw, err := coll.FindOne(filter, nil)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return s.New(raw)
}

// Find returns a lazy cursor over matching documents. A nil filter matches
// everything but marks the cursor as filterless, which blocks Update and
// Change on it; pass an explicit M{} to allow collection-wide updates.
func (s *Schema) Find(filter M) *Cursor {
	return &Cursor{schema: s, filter: s.injectDiscriminator(filter)}
}

// Search builds an equality filter from kwargs and delegates to Find.
// Model values become their reference records, and keys naming declared
// fields are remapped to those fields' storage keys.
func (s *Schema) Search(kwargs M) *Cursor {
	reg := s.fields()
	filter := M{}
	for k, v := range kwargs {
		v = refRecord(v)
		if f, ok := reg.lookup(k); ok {
			k = f.StorageKey()
		}
		filter[k] = v
	}
	return s.Find(filter)
}

// SearchOrCreate returns the first document matching kwargs, creating and
// saving one from kwargs when nothing matches.
func (s *Schema) SearchOrCreate(kwargs M) (*Model, error) {
	m, err := s.Search(kwargs).First()
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}
	m, err = s.New(kwargs)
	if err != nil {
		return nil, err
	}
	if _, err := m.Save(); err != nil {
		return nil, err
	}
	return m, nil
}

// First returns the first document matching kwargs, or nil.
func (s *Schema) First(kwargs M) (*Model, error) {
	return s.Search(kwargs).First()
}

// Grab fetches one document by id, coercing the id first.
func (s *Schema) Grab(id interface{}) (*Model, error) {
	coerced, err := s.coerceID(id)
	if err != nil {
		return nil, err
	}
	return s.FindOne(M{s.idField: coerced})
}

// Count counts the schema's documents. It routes through Find so that
// polymorphic filter injection applies.
func (s *Schema) Count() (int64, error) {
	return s.Find(nil).Count()
}

// Distinct returns the distinct values stored under key, routed through
// Find for the same reason as Count.
func (s *Schema) Distinct(key string) ([]interface{}, error) {
	return s.Find(nil).Distinct(key)
}

// Update is the class-level update: a direct passthrough of filter and
// modifier to the collection.
func (s *Schema) Update(filter, modifier M, multi bool) (*UpdateResult, error) {
	coll, err := s.Collection()
	if err != nil {
		return nil, err
	}
	return coll.Update(filter, modifier, multi)
}

// Remove deletes matching documents. A nil filter is rejected so a typo
// cannot silently wipe a collection; pass an explicit M{} to do that on
// purpose.
func (s *Schema) Remove(filter M, multi bool) (*DeleteResult, error) {
	if filter == nil {
		return nil, ErrMissingFilter
	}
	coll, err := s.Collection()
	if err != nil {
		return nil, err
	}
	return coll.Delete(filter, multi)
}

// Drop discards the schema's entire backing collection.
func (s *Schema) Drop() error {
	coll, err := s.Collection()
	if err != nil {
		return err
	}
	return coll.Drop()
}

// CreateIndex creates an index over the given keys.
func (s *Schema) CreateIndex(keys ...SortKey) (string, error) {
	coll, err := s.Collection()
	if err != nil {
		return "", err
	}
	return coll.CreateIndex(keys)
}

// DropIndexes drops all indexes on the schema's collection.
func (s *Schema) DropIndexes() error {
	coll, err := s.Collection()
	if err != nil {
		return err
	}
	return coll.DropIndexes()
}

// Aggregate runs an aggregation pipeline. Registered polymorphic children
// scope the pipeline to their discriminator value: the value is merged
// into a leading $match stage, or a new $match stage is prepended.
func (s *Schema) Aggregate(pipeline []M) ([]M, error) {
	coll, err := s.Collection()
	if err != nil {
		return nil, err
	}
	return coll.Aggregate(s.injectPipeline(pipeline))
}

// MakeRef builds a reference record for the given id after coercion.
func (s *Schema) MakeRef(id interface{}) (Ref, error) {
	coerced, err := s.coerceID(id)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Collection: s.Name(), ID: coerced}, nil
}

func (s *Schema) coerceID(id interface{}) (interface{}, error) {
	if s.idCoerce == nil {
		return id, nil
	}
	return s.idCoerce(id)
}

func sortedKeys(m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyM(m M) M {
	out := make(M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
