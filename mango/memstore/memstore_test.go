package memstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mango-odm/mango/mango"
)

func newTestCollection(t *testing.T) mango.Collection {
	t.Helper()
	coll, err := New().Collection("things")
	if err != nil {
		t.Fatal(err)
	}
	return coll
}

func seed(t *testing.T, coll mango.Collection, docs ...mango.M) {
	t.Helper()
	for _, doc := range docs {
		if _, err := coll.Insert(doc); err != nil {
			t.Fatal(err)
		}
	}
}

func drain(t *testing.T, it mango.Iterator) []mango.M {
	t.Helper()
	var out []mango.M
	for {
		doc, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, doc)
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestInsertAssignsID(t *testing.T) {
	coll := newTestCollection(t)

	id, err := coll.Insert(mango.M{"name": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if id == nil || id == "" {
		t.Fatal("expected a generated id")
	}

	t.Run("caller-supplied id is kept", func(t *testing.T) {
		id, err := coll.Insert(mango.M{"_id": "given", "name": "b"})
		if err != nil {
			t.Fatal(err)
		}
		if id != "given" {
			t.Errorf("expected given, got %v", id)
		}
	})

	t.Run("stored document is a copy", func(t *testing.T) {
		doc := mango.M{"name": "c"}
		if _, err := coll.Insert(doc); err != nil {
			t.Fatal(err)
		}
		doc["name"] = "mutated"
		found, err := coll.FindOne(mango.M{"name": "mutated"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if found != nil {
			t.Error("caller mutation must not reach the store")
		}
	})
}

func TestMatching(t *testing.T) {
	coll := newTestCollection(t)
	seed(t, coll,
		mango.M{"name": "a", "size": 1},
		mango.M{"name": "b", "size": 2},
		mango.M{"name": "c", "size": 2},
	)

	t.Run("equality", func(t *testing.T) {
		n, err := coll.CountDocuments(mango.M{"size": 2})
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("expected 2, got %d", n)
		}
	})

	t.Run("numeric forms are interchangeable", func(t *testing.T) {
		n, err := coll.CountDocuments(mango.M{"size": float64(2)})
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("expected float filter to match int values, got %d", n)
		}
	})

	t.Run("in operator", func(t *testing.T) {
		n, err := coll.CountDocuments(mango.M{"name": mango.M{"$in": []interface{}{"a", "c"}}})
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("expected 2, got %d", n)
		}
	})

	t.Run("unknown operator errors", func(t *testing.T) {
		_, err := coll.CountDocuments(mango.M{"size": mango.M{"$gt": 1}})
		if err == nil {
			t.Fatal("expected unsupported operator error")
		}
	})

	t.Run("empty filter matches all", func(t *testing.T) {
		n, err := coll.CountDocuments(mango.M{})
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Errorf("expected 3, got %d", n)
		}
	})
}

func TestFindSortSkipLimit(t *testing.T) {
	coll := newTestCollection(t)
	seed(t, coll,
		mango.M{"name": "b", "size": 2},
		mango.M{"name": "a", "size": 1},
		mango.M{"name": "d", "size": 2},
		mango.M{"name": "c", "size": 1},
	)

	t.Run("compound sort", func(t *testing.T) {
		it, err := coll.Find(mango.M{}, &mango.FindOptions{
			Sort: []mango.SortKey{
				{Key: "size", Dir: mango.ASC},
				{Key: "name", Dir: mango.DESC},
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		docs := drain(t, it)
		var names []string
		for _, d := range docs {
			names = append(names, d["name"].(string))
		}
		want := []string{"c", "a", "d", "b"}
		if diff := cmp.Diff(want, names); diff != "" {
			t.Errorf("sort mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("skip and limit", func(t *testing.T) {
		it, err := coll.Find(mango.M{}, &mango.FindOptions{
			Sort:  []mango.SortKey{{Key: "name", Dir: mango.ASC}},
			Skip:  1,
			Limit: 2,
		})
		if err != nil {
			t.Fatal(err)
		}
		docs := drain(t, it)
		if len(docs) != 2 || docs[0]["name"] != "b" || docs[1]["name"] != "c" {
			t.Errorf("unexpected window: %v", docs)
		}
	})

	t.Run("skip past the end", func(t *testing.T) {
		it, err := coll.Find(mango.M{}, &mango.FindOptions{Skip: 10})
		if err != nil {
			t.Fatal(err)
		}
		if docs := drain(t, it); len(docs) != 0 {
			t.Errorf("expected nothing, got %v", docs)
		}
	})
}

func TestModifiers(t *testing.T) {
	newDoc := func(t *testing.T) (mango.Collection, interface{}) {
		coll := newTestCollection(t)
		id, err := coll.Insert(mango.M{"name": "a", "size": 1})
		if err != nil {
			t.Fatal(err)
		}
		return coll, id
	}

	t.Run("set", func(t *testing.T) {
		coll, id := newDoc(t)
		res, err := coll.Update(mango.M{"_id": id}, mango.M{"$set": mango.M{"size": 5}}, false)
		if err != nil {
			t.Fatal(err)
		}
		if res.Matched != 1 || res.Modified != 1 {
			t.Errorf("unexpected result %+v", res)
		}
		doc, _ := coll.FindOne(mango.M{"_id": id}, nil)
		if doc["size"] != 5 {
			t.Errorf("expected 5, got %v", doc["size"])
		}
	})

	t.Run("set to the same value modifies nothing", func(t *testing.T) {
		coll, id := newDoc(t)
		res, err := coll.Update(mango.M{"_id": id}, mango.M{"$set": mango.M{"size": 1}}, false)
		if err != nil {
			t.Fatal(err)
		}
		if res.Matched != 1 || res.Modified != 0 {
			t.Errorf("expected matched without modified, got %+v", res)
		}
	})

	t.Run("unset", func(t *testing.T) {
		coll, id := newDoc(t)
		if _, err := coll.Update(mango.M{"_id": id}, mango.M{"$unset": mango.M{"size": ""}}, false); err != nil {
			t.Fatal(err)
		}
		doc, _ := coll.FindOne(mango.M{"_id": id}, nil)
		if _, has := doc["size"]; has {
			t.Error("expected size removed")
		}
	})

	t.Run("inc", func(t *testing.T) {
		coll, id := newDoc(t)
		if _, err := coll.Update(mango.M{"_id": id}, mango.M{"$inc": mango.M{"size": 2}}, false); err != nil {
			t.Fatal(err)
		}
		doc, _ := coll.FindOne(mango.M{"_id": id}, nil)
		if doc["size"] != float64(3) {
			t.Errorf("expected 3, got %v", doc["size"])
		}
	})

	t.Run("bare document replaces but keeps the id", func(t *testing.T) {
		coll, id := newDoc(t)
		if _, err := coll.Update(mango.M{"_id": id}, mango.M{"other": true}, false); err != nil {
			t.Fatal(err)
		}
		doc, _ := coll.FindOne(mango.M{"_id": id}, nil)
		if doc == nil {
			t.Fatal("document lost its id on replacement")
		}
		if _, has := doc["name"]; has {
			t.Error("expected old keys gone")
		}
		if doc["other"] != true {
			t.Errorf("expected replacement content, got %v", doc)
		}
	})

	t.Run("unknown operator errors", func(t *testing.T) {
		coll, id := newDoc(t)
		if _, err := coll.Update(mango.M{"_id": id}, mango.M{"$rename": mango.M{"a": "b"}}, false); err == nil {
			t.Fatal("expected unsupported operator error")
		}
	})

	t.Run("multi touches every match", func(t *testing.T) {
		coll := newTestCollection(t)
		seed(t, coll, mango.M{"size": 1}, mango.M{"size": 1}, mango.M{"size": 2})
		res, err := coll.Update(mango.M{"size": 1}, mango.M{"$set": mango.M{"size": 9}}, true)
		if err != nil {
			t.Fatal(err)
		}
		if res.Matched != 2 || res.Modified != 2 {
			t.Errorf("expected 2 matched and modified, got %+v", res)
		}
	})
}

func TestReplace(t *testing.T) {
	coll := newTestCollection(t)
	id, err := coll.Insert(mango.M{"name": "a"})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("existing document keeps its id", func(t *testing.T) {
		if err := coll.Replace(mango.M{"_id": id}, mango.M{"name": "b"}, false); err != nil {
			t.Fatal(err)
		}
		doc, _ := coll.FindOne(mango.M{"_id": id}, nil)
		if doc == nil || doc["name"] != "b" {
			t.Errorf("expected replaced document under the same id, got %v", doc)
		}
	})

	t.Run("upsert adopts the filter id", func(t *testing.T) {
		if err := coll.Replace(mango.M{"_id": "fresh"}, mango.M{"name": "c"}, true); err != nil {
			t.Fatal(err)
		}
		doc, _ := coll.FindOne(mango.M{"_id": "fresh"}, nil)
		if doc == nil {
			t.Fatal("expected upserted document")
		}
	})

	t.Run("no match without upsert is a no-op", func(t *testing.T) {
		if err := coll.Replace(mango.M{"_id": "missing"}, mango.M{"name": "d"}, false); err != nil {
			t.Fatal(err)
		}
		doc, _ := coll.FindOne(mango.M{"_id": "missing"}, nil)
		if doc != nil {
			t.Errorf("expected nothing inserted, got %v", doc)
		}
	})
}

func TestDelete(t *testing.T) {
	coll := newTestCollection(t)
	seed(t, coll, mango.M{"size": 1}, mango.M{"size": 1}, mango.M{"size": 2})

	t.Run("single", func(t *testing.T) {
		res, err := coll.Delete(mango.M{"size": 1}, false)
		if err != nil {
			t.Fatal(err)
		}
		if res.Deleted != 1 {
			t.Errorf("expected 1, got %d", res.Deleted)
		}
	})

	t.Run("multi", func(t *testing.T) {
		res, err := coll.Delete(mango.M{}, true)
		if err != nil {
			t.Fatal(err)
		}
		if res.Deleted != 2 {
			t.Errorf("expected 2, got %d", res.Deleted)
		}
	})
}

func TestDistinct(t *testing.T) {
	coll := newTestCollection(t)
	seed(t, coll,
		mango.M{"size": 1, "kind": "x"},
		mango.M{"size": 2, "kind": "x"},
		mango.M{"size": 2, "kind": "y"},
		mango.M{"kind": "z"},
	)
	vals, err := coll.Distinct("size", mango.M{})
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 2 {
		t.Errorf("expected 2 distinct sizes, got %v", vals)
	}

	vals, err = coll.Distinct("kind", mango.M{"size": 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 2 {
		t.Errorf("expected 2 kinds among size=2, got %v", vals)
	}
}

func TestAggregate(t *testing.T) {
	coll := newTestCollection(t)
	seed(t, coll,
		mango.M{"size": 1, "kind": "x"},
		mango.M{"size": 2, "kind": "x"},
		mango.M{"size": 2, "kind": "y"},
	)

	t.Run("chained match stages", func(t *testing.T) {
		out, err := coll.Aggregate([]mango.M{
			{"$match": mango.M{"kind": "x"}},
			{"$match": mango.M{"size": 2}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != 1 {
			t.Errorf("expected 1, got %d", len(out))
		}
	})

	t.Run("unsupported stage errors", func(t *testing.T) {
		_, err := coll.Aggregate([]mango.M{{"$group": mango.M{}}})
		if err == nil {
			t.Fatal("expected unsupported stage error")
		}
	})
}

func TestFilePersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.SetTimeFunc(func() time.Time { return fixed })

	coll, err := store.Collection("things")
	if err != nil {
		t.Fatal(err)
	}
	id, err := coll.Insert(mango.M{"name": "a", "size": 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	t.Run("reload sees the data", func(t *testing.T) {
		reloaded, err := Open(path)
		if err != nil {
			t.Fatal(err)
		}
		coll, err := reloaded.Collection("things")
		if err != nil {
			t.Fatal(err)
		}
		doc, err := coll.FindOne(mango.M{"_id": id}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if doc == nil {
			t.Fatal("expected the document back after reload")
		}
		if doc["name"] != "a" {
			t.Errorf("expected name a, got %v", doc["name"])
		}
		// JSON numbers come back as float64; filters still match.
		n, err := coll.CountDocuments(mango.M{"size": 1})
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("expected the int filter to match the reloaded float, got %d", n)
		}
	})

	t.Run("metadata carries the clock", func(t *testing.T) {
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(raw) == 0 {
			t.Fatal("expected file content")
		}
	})

	t.Run("missing file opens empty", func(t *testing.T) {
		fresh, err := Open(filepath.Join(dir, "absent.json"))
		if err != nil {
			t.Fatal(err)
		}
		coll, _ := fresh.Collection("things")
		n, err := coll.CountDocuments(mango.M{})
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("expected empty store, got %d", n)
		}
	})
}

func TestNormalize(t *testing.T) {
	t.Run("reference records match their map form", func(t *testing.T) {
		ref := mango.Ref{Collection: "things", ID: "abc"}
		asMap := map[string]interface{}{"$ref": "things", "$id": "abc"}
		if !valuesEqual(ref, asMap) {
			t.Error("Ref and its reloaded map form must compare equal")
		}
	})

	t.Run("numeric widths collapse", func(t *testing.T) {
		if !valuesEqual(int32(5), float64(5)) {
			t.Error("int32 and float64 of the same value must compare equal")
		}
	})

	t.Run("nested containers normalize", func(t *testing.T) {
		a := mango.M{"list": []interface{}{1, 2}}
		b := mango.M{"list": []interface{}{float64(1), float64(2)}}
		if diff := cmp.Diff(normalize(a), normalize(b)); diff != "" {
			t.Errorf("normalized forms differ:\n%s", diff)
		}
	})
}
