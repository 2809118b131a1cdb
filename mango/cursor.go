package mango

import "fmt"

// Cursor is a lazy view over a query's results, bound to the schema that
// issued it. Nothing touches the collection until the first consuming
// call (Next, First, All, At, Count, Distinct). Raw documents are wrapped
// back through the schema's construction path, so polymorphic results come
// back as their concrete subtypes.
//
// A cursor built from a nil filter matches everything but refuses Update
// and Change; build it from an explicit M{} to modify a whole collection
// on purpose.
type Cursor struct {
	schema *Schema
	filter M
	opts   FindOptions
	order  []SortKey

	it    Iterator
	cache []*Model
	pos   int
	done  bool
	err   error
}

// Sort replaces the cursor's sort order with the given compound key.
func (c *Cursor) Sort(keys ...SortKey) *Cursor {
	if c.started() {
		c.fail(ErrCursorStarted)
		return c
	}
	c.opts.Sort = keys
	return c
}

// Order adds one key to the accumulated order and applies the whole
// accumulated compound order atomically, so repeated calls build up one
// sort and only the latest full order takes effect.
func (c *Cursor) Order(key string, dir int) *Cursor {
	if dir != ASC && dir != DESC {
		c.fail(fmt.Errorf("mango: order direction for %q must be ASC or DESC", key))
		return c
	}
	if c.started() {
		c.fail(ErrCursorStarted)
		return c
	}
	c.order = append(c.order, SortKey{Key: key, Dir: dir})
	c.opts.Sort = append([]SortKey(nil), c.order...)
	return c
}

// Skip sets how many matching documents to skip.
func (c *Cursor) Skip(n int64) *Cursor {
	if c.started() {
		c.fail(ErrCursorStarted)
		return c
	}
	c.opts.Skip = n
	return c
}

// Limit caps how many documents the cursor yields.
func (c *Cursor) Limit(n int64) *Cursor {
	if c.started() {
		c.fail(ErrCursorStarted)
		return c
	}
	c.opts.Limit = n
	return c
}

func (c *Cursor) started() bool { return c.it != nil }

func (c *Cursor) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Cursor) materialize() error {
	if c.err != nil {
		return c.err
	}
	if c.it != nil || c.done {
		return nil
	}
	coll, err := c.schema.Collection()
	if err != nil {
		c.fail(err)
		return err
	}
	filter := c.filter
	if filter == nil {
		filter = M{}
	}
	it, err := coll.Find(filter, &c.opts)
	if err != nil {
		c.fail(err)
		return err
	}
	c.it = it
	return nil
}

// pull advances the underlying iterator until the cache holds n documents
// or the result set is exhausted. n < 0 drains it.
func (c *Cursor) pull(n int) error {
	if err := c.materialize(); err != nil {
		return err
	}
	for !c.done && (n < 0 || len(c.cache) < n) {
		raw, ok := c.it.Next()
		if !ok {
			c.done = true
			if err := c.it.Err(); err != nil {
				c.fail(err)
				return err
			}
			break
		}
		m, err := c.schema.New(copyM(raw))
		if err != nil {
			c.fail(err)
			return err
		}
		c.cache = append(c.cache, m)
	}
	return nil
}

// Next returns the next document. The boolean is false once the result
// set is exhausted.
func (c *Cursor) Next() (*Model, bool, error) {
	if err := c.pull(c.pos + 1); err != nil {
		return nil, false, err
	}
	if c.pos >= len(c.cache) {
		return nil, false, nil
	}
	m := c.cache[c.pos]
	c.pos++
	return m, true, nil
}

// All drains the cursor and returns every document.
func (c *Cursor) All() ([]*Model, error) {
	if err := c.pull(-1); err != nil {
		return nil, err
	}
	return append([]*Model(nil), c.cache...), nil
}

// At returns the i-th document of the result set.
func (c *Cursor) At(i int) (*Model, error) {
	if i < 0 {
		return nil, fmt.Errorf("mango: cursor index %d out of range", i)
	}
	if err := c.pull(i + 1); err != nil {
		return nil, err
	}
	if i >= len(c.cache) {
		return nil, fmt.Errorf("mango: cursor index %d out of range", i)
	}
	return c.cache[i], nil
}

// First returns the first document, or nil when the result set is empty.
func (c *Cursor) First() (*Model, error) {
	if err := c.pull(1); err != nil {
		return nil, err
	}
	if len(c.cache) == 0 {
		return nil, nil
	}
	return c.cache[0], nil
}

// Count counts the documents matching the cursor's filter. It asks the
// collection directly rather than draining the cursor, so skip and limit
// do not apply.
func (c *Cursor) Count() (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	coll, err := c.schema.Collection()
	if err != nil {
		return 0, err
	}
	filter := c.filter
	if filter == nil {
		filter = M{}
	}
	return coll.CountDocuments(filter)
}

// Distinct returns the distinct values stored under key among the
// cursor's matches.
func (c *Cursor) Distinct(key string) ([]interface{}, error) {
	if c.err != nil {
		return nil, c.err
	}
	coll, err := c.schema.Collection()
	if err != nil {
		return nil, err
	}
	filter := c.filter
	if filter == nil {
		filter = M{}
	}
	return coll.Distinct(key, filter)
}

// Update applies a modifier to every document matching the cursor's
// filter, via the schema's class-level update. A filterless cursor
// refuses: pass an explicit M{} to Find to modify everything.
func (c *Cursor) Update(modifier M) error {
	if c.filter == nil {
		return ErrMissingFilter
	}
	_, err := c.schema.Update(c.filter, modifier, true)
	return err
}

// Change is Update with kwargs wrapped in a $set modifier.
func (c *Cursor) Change(kwargs M) error {
	return c.Update(M{"$set": kwargs})
}

// Rewind restarts iteration from the first document. Already-fetched
// documents are served from the cursor's cache.
func (c *Cursor) Rewind() *Cursor {
	c.pos = 0
	return c
}

// Close releases the underlying iterator.
func (c *Cursor) Close() error {
	if c.it == nil {
		return nil
	}
	return c.it.Close()
}

// Err returns the first error the cursor encountered.
func (c *Cursor) Err() error { return c.err }
