package mango

// M is the document and filter mapping type used throughout the package.
// Filters are opaque to this layer and passed through to the collection.
type M = map[string]interface{}

// Sort directions for cursor ordering and index keys.
const (
	ASC  = 1
	DESC = -1
)

// SortKey is one component of a compound sort order or index.
type SortKey struct {
	Key string
	Dir int
}

// FindOptions carries the query options a cursor hands to the collection.
type FindOptions struct {
	Sort  []SortKey
	Skip  int64
	Limit int64
}

// UpdateResult reports the outcome of an update operation.
type UpdateResult struct {
	Matched    int64
	Modified   int64
	UpsertedID interface{}
}

// DeleteResult reports the outcome of a delete operation.
type DeleteResult struct {
	Deleted int64
}

// Iterator yields raw documents lazily from a collection query.
type Iterator interface {
	// Next returns the next document, or false when the result set is
	// exhausted. Check Err after Next returns false.
	Next() (M, bool)
	Err() error
	Close() error
}

// Collection is the capability a schema needs from the backing store.
// Implementations own all actual I/O; this layer never touches the wire.
type Collection interface {
	// FindOne returns the first matching document, or nil when no
	// document matches.
	FindOne(filter M, opts *FindOptions) (M, error)
	// Find returns a lazy iterator over matching raw documents.
	Find(filter M, opts *FindOptions) (Iterator, error)
	// Insert stores a new document and returns the store-assigned id.
	Insert(doc M) (interface{}, error)
	// Replace overwrites the document matching filter with doc,
	// inserting it when upsert is true and nothing matches.
	Replace(filter M, doc M, upsert bool) error
	Update(filter M, modifier M, multi bool) (*UpdateResult, error)
	Delete(filter M, multi bool) (*DeleteResult, error)
	CountDocuments(filter M) (int64, error)
	Distinct(key string, filter M) ([]interface{}, error)
	CreateIndex(keys []SortKey) (string, error)
	DropIndexes() error
	Drop() error
	Aggregate(pipeline []M) ([]M, error)
	Name() string
}

// Session resolves collection handles by name from one backing connection.
type Session interface {
	Collection(name string) (Collection, error)
}

// Config is the plain-data configuration a schema consults when it has no
// override of its own. There is no ambient global state beyond
// DefaultConfig, and every knob can be overridden per schema.
type Config struct {
	// AutoCreateFields permits unknown constructor keys to become ad hoc
	// untyped fields instead of failing with UnknownFieldError.
	AutoCreateFields bool
	// Session supplies collection handles to schemas that were not bound
	// to a session explicitly.
	Session Session
}

// DefaultConfig is the fallback configuration for schemas constructed
// without WithConfig or WithSession.
var DefaultConfig = &Config{}
