// Package mongodb adapts a MongoDB database to the mango.Session and
// mango.Collection contracts using the official driver.
package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mango-odm/mango/mango"
)

const defaultTimeout = 10 * time.Second

// Session wraps a mongo.Database. Each operation runs under its own
// context with the session timeout.
type Session struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// Timeout sets the per-operation timeout. The default is ten seconds.
func Timeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = d
	}
}

// Connect dials a MongoDB deployment and selects a database. The
// connection is verified with a ping before the session is returned.
func Connect(ctx context.Context, uri, database string, opts ...SessionOption) (*Session, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s := &Session{client: client, db: client.Database(database), timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Wrap builds a Session around an already connected database.
func Wrap(db *mongo.Database, opts ...SessionOption) *Session {
	s := &Session{client: db.Client(), db: db, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection returns the named collection of the wrapped database.
func (s *Session) Collection(name string) (mango.Collection, error) {
	return &collection{sess: s, coll: s.db.Collection(name)}, nil
}

// Database exposes the underlying mongo.Database for operations the
// mango contract does not cover.
func (s *Session) Database() *mongo.Database {
	return s.db
}

// Close disconnects the underlying client.
func (s *Session) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Session) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

type collection struct {
	sess *Session
	coll *mongo.Collection
}

func (c *collection) Name() string {
	return c.coll.Name()
}

func (c *collection) FindOne(filter mango.M, fo *mango.FindOptions) (mango.M, error) {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	opts := options.FindOne()
	if fo != nil {
		if len(fo.Sort) > 0 {
			opts.SetSort(sortDoc(fo.Sort))
		}
		if fo.Skip > 0 {
			opts.SetSkip(fo.Skip)
		}
	}
	var doc mango.M
	err := c.coll.FindOne(ctx, filterDoc(filter), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *collection) Find(filter mango.M, fo *mango.FindOptions) (mango.Iterator, error) {
	ctx, cancel := c.sess.opContext()

	opts := options.Find()
	if fo != nil {
		if len(fo.Sort) > 0 {
			opts.SetSort(sortDoc(fo.Sort))
		}
		if fo.Skip > 0 {
			opts.SetSkip(fo.Skip)
		}
		if fo.Limit > 0 {
			opts.SetLimit(fo.Limit)
		}
	}
	cur, err := c.coll.Find(ctx, filterDoc(filter), opts)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cursorIterator{ctx: ctx, cancel: cancel, cur: cur}, nil
}

func (c *collection) Insert(doc mango.M) (interface{}, error) {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (c *collection) Replace(filter, doc mango.M, upsert bool) error {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	opts := options.Replace().SetUpsert(upsert)
	_, err := c.coll.ReplaceOne(ctx, filterDoc(filter), doc, opts)
	return err
}

func (c *collection) Update(filter, modifier mango.M, multi bool) (*mango.UpdateResult, error) {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	var (
		res *mongo.UpdateResult
		err error
	)
	if multi {
		res, err = c.coll.UpdateMany(ctx, filterDoc(filter), modifier)
	} else {
		res, err = c.coll.UpdateOne(ctx, filterDoc(filter), modifier)
	}
	if err != nil {
		return nil, err
	}
	return &mango.UpdateResult{
		Matched:    res.MatchedCount,
		Modified:   res.ModifiedCount,
		UpsertedID: res.UpsertedID,
	}, nil
}

func (c *collection) Delete(filter mango.M, multi bool) (*mango.DeleteResult, error) {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	var (
		res *mongo.DeleteResult
		err error
	)
	if multi {
		res, err = c.coll.DeleteMany(ctx, filterDoc(filter))
	} else {
		res, err = c.coll.DeleteOne(ctx, filterDoc(filter))
	}
	if err != nil {
		return nil, err
	}
	return &mango.DeleteResult{Deleted: res.DeletedCount}, nil
}

func (c *collection) CountDocuments(filter mango.M) (int64, error) {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	return c.coll.CountDocuments(ctx, filterDoc(filter))
}

func (c *collection) Distinct(key string, filter mango.M) ([]interface{}, error) {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	return c.coll.Distinct(ctx, key, filterDoc(filter))
}

func (c *collection) CreateIndex(keys []mango.SortKey) (string, error) {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	model := mongo.IndexModel{Keys: sortDoc(keys)}
	return c.coll.Indexes().CreateOne(ctx, model)
}

func (c *collection) DropIndexes() error {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	_, err := c.coll.Indexes().DropAll(ctx)
	return err
}

func (c *collection) Drop() error {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	return c.coll.Drop(ctx)
}

func (c *collection) Aggregate(pipeline []mango.M) ([]mango.M, error) {
	ctx, cancel := c.sess.opContext()
	defer cancel()

	stages := make(mongo.Pipeline, 0, len(pipeline))
	for _, stage := range pipeline {
		d := bson.D{}
		for k, v := range stage {
			d = append(d, bson.E{Key: k, Value: v})
		}
		stages = append(stages, d)
	}
	cur, err := c.coll.Aggregate(ctx, stages)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []mango.M
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// cursorIterator keeps the find context alive until the iterator is
// closed.
type cursorIterator struct {
	ctx    context.Context
	cancel context.CancelFunc
	cur    *mongo.Cursor
	err    error
}

func (it *cursorIterator) Next() (mango.M, bool) {
	if !it.cur.Next(it.ctx) {
		return nil, false
	}
	var doc mango.M
	if err := it.cur.Decode(&doc); err != nil {
		it.err = err
		return nil, false
	}
	return doc, true
}

func (it *cursorIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.cur.Err()
}

func (it *cursorIterator) Close() error {
	defer it.cancel()
	return it.cur.Close(it.ctx)
}

func filterDoc(filter mango.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

func sortDoc(keys []mango.SortKey) bson.D {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k.Key, Value: k.Dir})
	}
	return d
}
