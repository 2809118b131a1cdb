package mango_test

import (
	"errors"
	"testing"

	"github.com/mango-odm/mango/mango"
	"github.com/mango-odm/mango/mango/memstore"
)

func seedPeople(t *testing.T, s *mango.Schema, names map[string]int) {
	t.Helper()
	for name, age := range names {
		m, err := s.New(mango.M{"name": name, "age": age})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Save(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSchemaSearch(t *testing.T) {
	s := newPeopleSchema(t)
	seedPeople(t, s, map[string]int{"Ada": 36, "Bob": 36, "Eve": 50})

	t.Run("search by equality", func(t *testing.T) {
		all, err := s.Search(mango.M{"age": 36}).All()
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 matches, got %d", len(all))
		}
	})

	t.Run("search remaps storage keys", func(t *testing.T) {
		s := mango.NewSchema("people",
			mango.WithSession(memstore.New()),
			mango.Fields(
				mango.NewField("name", mango.Typed[string](), mango.StorageKey("n")),
			),
		)
		m, err := s.New(mango.M{"name": "Ada"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Save(); err != nil {
			t.Fatal(err)
		}
		found, err := s.Search(mango.M{"name": "Ada"}).First()
		if err != nil {
			t.Fatal(err)
		}
		if found == nil {
			t.Fatal("expected the attribute name to be remapped to its storage key")
		}
	})

	t.Run("first returns nil on no match", func(t *testing.T) {
		found, err := s.First(mango.M{"name": "Nobody"})
		if err != nil {
			t.Fatal(err)
		}
		if found != nil {
			t.Errorf("expected nil, got %v", found)
		}
	})
}

func TestSchemaSearchOrCreate(t *testing.T) {
	s := newPeopleSchema(t)

	first, err := s.SearchOrCreate(mango.M{"name": "Ada", "age": 36})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID() == nil {
		t.Fatal("created document should be saved")
	}

	again, err := s.SearchOrCreate(mango.M{"name": "Ada", "age": 36})
	if err != nil {
		t.Fatal(err)
	}
	if !again.Equal(first) {
		t.Error("second call should find the first document, not create")
	}

	n, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected a single document, got %d", n)
	}
}

func TestSchemaCountAndDistinct(t *testing.T) {
	s := newPeopleSchema(t)
	seedPeople(t, s, map[string]int{"Ada": 36, "Bob": 36, "Eve": 50})

	n, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}

	ages, err := s.Distinct("age")
	if err != nil {
		t.Fatal(err)
	}
	if len(ages) != 2 {
		t.Errorf("expected 2 distinct ages, got %v", ages)
	}
}

func TestSchemaRemove(t *testing.T) {
	s := newPeopleSchema(t)
	seedPeople(t, s, map[string]int{"Ada": 36, "Bob": 36, "Eve": 50})

	t.Run("nil filter refuses", func(t *testing.T) {
		_, err := s.Remove(nil, true)
		if !errors.Is(err, mango.ErrMissingFilter) {
			t.Fatalf("expected ErrMissingFilter, got %v", err)
		}
	})

	t.Run("filtered multi remove", func(t *testing.T) {
		res, err := s.Remove(mango.M{"age": 36}, true)
		if err != nil {
			t.Fatal(err)
		}
		if res.Deleted != 2 {
			t.Errorf("expected 2 deleted, got %d", res.Deleted)
		}
	})

	t.Run("explicit empty filter clears everything", func(t *testing.T) {
		res, err := s.Remove(mango.M{}, true)
		if err != nil {
			t.Fatal(err)
		}
		if res.Deleted != 1 {
			t.Errorf("expected 1 deleted, got %d", res.Deleted)
		}
		n, _ := s.Count()
		if n != 0 {
			t.Errorf("expected empty collection, got %d", n)
		}
	})
}

func TestSchemaAddField(t *testing.T) {
	t.Run("documents resolve fields added later", func(t *testing.T) {
		s := newPeopleSchema(t)
		m, err := s.New(mango.M{"name": "Ada"})
		if err != nil {
			t.Fatal(err)
		}
		s.AddField(mango.NewField("nickname", mango.Typed[string]()))
		if err := m.Set("nickname", "ada"); err != nil {
			t.Fatalf("expected existing document to see the new field, got %v", err)
		}
	})

	t.Run("schemas do not share registries", func(t *testing.T) {
		a := newPeopleSchema(t)
		b := newPeopleSchema(t)
		a.AddField(mango.NewField("nickname", mango.Typed[string]()))
		m, err := b.New(mango.M{"name": "Ada"})
		if err != nil {
			t.Fatal(err)
		}
		err = m.Set("nickname", "ada")
		var unknownErr *mango.UnknownFieldError
		if !errors.As(err, &unknownErr) {
			t.Fatalf("expected sibling schema to reject the field, got %v", err)
		}
	})

	t.Run("same name replaces in declaration order", func(t *testing.T) {
		s := newPeopleSchema(t)
		s.AddField(mango.NewField("age", mango.Typed[int](), mango.Default(21)))
		names := s.FieldNames()
		if len(names) != 2 || names[0] != "name" || names[1] != "age" {
			t.Errorf("expected [name age], got %v", names)
		}
		m, err := s.New(nil)
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := m.Get("age"); v != 21 {
			t.Errorf("expected replacement field's default 21, got %v", v)
		}
	})
}

func TestSchemaSessions(t *testing.T) {
	t.Run("no session anywhere", func(t *testing.T) {
		s := mango.NewSchema("people",
			mango.WithConfig(&mango.Config{}),
			mango.Fields(mango.NewField("name", mango.Typed[string]())),
		)
		m, err := s.New(mango.M{"name": "Ada"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Save(); !errors.Is(err, mango.ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("config session is the fallback", func(t *testing.T) {
		cfg := &mango.Config{Session: memstore.New()}
		s := mango.NewSchema("people",
			mango.WithConfig(cfg),
			mango.Fields(mango.NewField("name", mango.Typed[string]())),
		)
		m, _ := s.New(mango.M{"name": "Ada"})
		if _, err := m.Save(); err != nil {
			t.Fatalf("expected config session to serve, got %v", err)
		}
	})

	t.Run("UseSession rebinds without touching the receiver", func(t *testing.T) {
		first := memstore.New()
		second := memstore.New()
		s := mango.NewSchema("people",
			mango.WithSession(first),
			mango.Fields(mango.NewField("name", mango.Typed[string]())),
		)
		m, _ := s.New(mango.M{"name": "Ada"})
		if _, err := m.Save(); err != nil {
			t.Fatal(err)
		}

		rebound := s.UseSession(second)
		n, err := rebound.Count()
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("rebound schema should see the empty second store, got %d", n)
		}
		n, err = s.Count()
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("original schema should still see its store, got %d", n)
		}
	})
}

func TestSchemaIndexes(t *testing.T) {
	s := newPeopleSchema(t)
	name, err := s.CreateIndex(mango.SortKey{Key: "name", Dir: mango.ASC})
	if err != nil {
		t.Fatal(err)
	}
	if name == "" {
		t.Error("expected a generated index name")
	}
	if err := s.DropIndexes(); err != nil {
		t.Fatal(err)
	}
}

func TestSchemaMakeRef(t *testing.T) {
	s := newPeopleSchema(t)
	ref, err := s.MakeRef("abc")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Collection != "people" || ref.ID != "abc" {
		t.Errorf("unexpected ref %+v", ref)
	}

	t.Run("hex strings coerce to object ids", func(t *testing.T) {
		ref, err := s.MakeRef("5f2d8c9e1c4ae3b2a1d0e9f8")
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := ref.ID.(string); ok {
			t.Error("expected a 24-hex id to be coerced away from string form")
		}
	})
}

func TestSchemaDrop(t *testing.T) {
	s := newPeopleSchema(t)
	seedPeople(t, s, map[string]int{"Ada": 36})
	if err := s.Drop(); err != nil {
		t.Fatal(err)
	}
	n, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected dropped collection to be empty, got %d", n)
	}
}
