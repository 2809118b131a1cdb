// Package memstore is an embedded collection backend for mango: an
// in-memory document store with optional JSON file persistence, guarded
// across processes with a file lock. It implements enough of the
// collection contract (equality filters, $in, $set/$unset/$inc modifiers,
// compound sort, skip/limit, $match aggregation) to back tests and small
// embedded deployments; it is not a query engine.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/mango-odm/mango/mango"
)

const idKey = "_id"

// Store holds any number of named collections. It implements
// mango.Session. The zero value is not usable; construct with New or Open.
type Store struct {
	mu       sync.RWMutex
	path     string // "" means memory only
	fileLock *flock.Flock
	data     *storeData
	indexes  map[string][]string
	timeFunc func() time.Time
}

type storeData struct {
	Collections map[string][]mango.M `json:"collections"`
	Metadata    metadata             `json:"metadata"`
}

type metadata struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a memory-only store.
func New() *Store {
	now := time.Now()
	return &Store{
		data: &storeData{
			Collections: make(map[string][]mango.M),
			Metadata: metadata{
				Version:   "1.0",
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
		indexes:  make(map[string][]string),
		timeFunc: time.Now,
	}
}

// Open creates a store backed by a JSON file, loading existing data under
// a cross-process file lock. Every mutation is persisted back to the file.
func Open(path string) (*Store, error) {
	s := New()
	s.path = path
	s.fileLock = flock.New(path + ".lock")
	if err := s.loadWithLock(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return s, nil
}

// SetTimeFunc overrides the clock used for persistence metadata, for
// deterministic tests.
func (s *Store) SetTimeFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeFunc = fn
}

// Collection implements mango.Session. Collections spring into existence
// on first write, like the database they stand in for.
func (s *Store) Collection(name string) (mango.Collection, error) {
	return &collection{store: s, name: name}, nil
}

// Close persists any pending state for a file-backed store.
func (s *Store) Close() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

// collection is one named document list inside a Store.
type collection struct {
	store *Store
	name  string
}

func (c *collection) Name() string { return c.name }

func (c *collection) FindOne(filter mango.M, opts *mango.FindOptions) (mango.M, error) {
	it, err := c.Find(filter, opts)
	if err != nil {
		return nil, err
	}
	doc, ok := it.Next()
	if !ok {
		return nil, it.Err()
	}
	return doc, nil
}

func (c *collection) Find(filter mango.M, opts *mango.FindOptions) (mango.Iterator, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	var out []mango.M
	for _, doc := range c.store.data.Collections[c.name] {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, copyDoc(doc))
		}
	}
	if opts != nil {
		if len(opts.Sort) > 0 {
			sortDocs(out, opts.Sort)
		}
		if opts.Skip > 0 {
			if opts.Skip >= int64(len(out)) {
				out = nil
			} else {
				out = out[opts.Skip:]
			}
		}
		if opts.Limit > 0 && int64(len(out)) > opts.Limit {
			out = out[:opts.Limit]
		}
	}
	return &sliceIterator{docs: out}, nil
}

func (c *collection) Insert(doc mango.M) (interface{}, error) {
	stored := copyDoc(doc)
	id, ok := stored[idKey]
	if !ok || id == nil {
		id = uuid.NewString()
		stored[idKey] = id
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.data.Collections[c.name] = append(c.store.data.Collections[c.name], stored)
	if err := c.store.persistLocked(); err != nil {
		return nil, err
	}
	return id, nil
}

func (c *collection) Replace(filter mango.M, doc mango.M, upsert bool) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	docs := c.store.data.Collections[c.name]
	for i, existing := range docs {
		ok, err := matches(existing, filter)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		replacement := copyDoc(doc)
		if _, has := replacement[idKey]; !has {
			replacement[idKey] = existing[idKey]
		}
		docs[i] = replacement
		return c.store.persistLocked()
	}
	if !upsert {
		return nil
	}
	inserted := copyDoc(doc)
	if _, has := inserted[idKey]; !has {
		if fid, ok := filter[idKey]; ok {
			inserted[idKey] = fid
		} else {
			inserted[idKey] = uuid.NewString()
		}
	}
	c.store.data.Collections[c.name] = append(docs, inserted)
	return c.store.persistLocked()
}

func (c *collection) Update(filter, modifier mango.M, multi bool) (*mango.UpdateResult, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	res := &mango.UpdateResult{}
	for _, doc := range c.store.data.Collections[c.name] {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		res.Matched++
		changed, err := applyModifier(doc, modifier)
		if err != nil {
			return nil, err
		}
		if changed {
			res.Modified++
		}
		if !multi {
			break
		}
	}
	if res.Modified > 0 {
		if err := c.store.persistLocked(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (c *collection) Delete(filter mango.M, multi bool) (*mango.DeleteResult, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	res := &mango.DeleteResult{}
	docs := c.store.data.Collections[c.name]
	kept := docs[:0]
	for _, doc := range docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok && (multi || res.Deleted == 0) {
			res.Deleted++
			continue
		}
		kept = append(kept, doc)
	}
	c.store.data.Collections[c.name] = kept
	if res.Deleted > 0 {
		if err := c.store.persistLocked(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (c *collection) CountDocuments(filter mango.M) (int64, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	var n int64
	for _, doc := range c.store.data.Collections[c.name] {
		ok, err := matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (c *collection) Distinct(key string, filter mango.M) ([]interface{}, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	var out []interface{}
	for _, doc := range c.store.data.Collections[c.name] {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		v, has := doc[key]
		if !has {
			continue
		}
		seen := false
		for _, existing := range out {
			if valuesEqual(existing, v) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *collection) CreateIndex(keys []mango.SortKey) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("memstore: index needs at least one key")
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s_%d", k.Key, k.Dir)
	}
	name := strings.Join(parts, "_")
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.indexes[c.name] = append(c.store.indexes[c.name], name)
	return name, nil
}

func (c *collection) DropIndexes() error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.indexes, c.name)
	return nil
}

func (c *collection) Drop() error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.data.Collections, c.name)
	delete(c.store.indexes, c.name)
	return c.store.persistLocked()
}

// Aggregate supports $match stages only; the model layer uses it for
// discriminator-scoped matching.
func (c *collection) Aggregate(pipeline []mango.M) ([]mango.M, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	var out []mango.M
	for _, doc := range c.store.data.Collections[c.name] {
		out = append(out, copyDoc(doc))
	}
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("memstore: aggregation stages must have exactly one operator")
		}
		match, ok := stage["$match"].(mango.M)
		if !ok {
			return nil, fmt.Errorf("memstore: unsupported aggregation stage (only $match is supported)")
		}
		kept := out[:0]
		for _, doc := range out {
			ok, err := matches(doc, match)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, doc)
			}
		}
		out = kept
	}
	return out, nil
}

// sliceIterator walks a snapshot of matching documents.
type sliceIterator struct {
	docs []mango.M
	i    int
}

func (it *sliceIterator) Next() (mango.M, bool) {
	if it.i >= len(it.docs) {
		return nil, false
	}
	doc := it.docs[it.i]
	it.i++
	return doc, true
}

func (it *sliceIterator) Err() error   { return nil }
func (it *sliceIterator) Close() error { return nil }

// File lock tuning. The lock only guards load and persist, so contention
// windows are short; a few quick retries cover a concurrent writer.
const (
	lockTimeout    = 3 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond
)

// acquireLock takes the cross-process lock on the backing file.
func (s *Store) acquireLock(ctx context.Context) error {
	for i := 0; i < lockMaxRetries; i++ {
		locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("memstore: locking %s: %w", s.path, err)
		}
		if locked {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return fmt.Errorf("memstore: %s is locked by another process", s.path)
}

func (s *Store) releaseLock() {
	_ = s.fileLock.Unlock()
}
