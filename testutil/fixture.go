// Package testutil provides a shared fixture universe for tests: a set of
// schemas covering references, enums and discriminated families, plus a
// populated in-memory store.
package testutil

import (
	"testing"

	"github.com/mango-odm/mango/mango"
	"github.com/mango-odm/mango/mango/memstore"
)

// Universe provides typed access to the fixture data.
type Universe struct {
	Companies *mango.Schema
	People    *mango.Schema

	// Discriminated task family. Tasks is the root; Chores and
	// Meetings are registered under it.
	Tasks    *mango.Schema
	Chores   *mango.Schema
	Meetings *mango.Schema

	Acme    *mango.Model // company "Acme"
	Initech *mango.Model // company "Initech"

	Alice *mango.Model // employed at Acme
	Bob   *mango.Model // employed at Acme
	Carol *mango.Model // employed at Initech
	Dave  *mango.Model // no employer

	Laundry  *mango.Model // chore, pending
	Dishes   *mango.Model // chore, done
	Standup  *mango.Model // meeting, pending
	Planning *mango.Model // meeting, done
}

// NewSchemas builds the fixture schemas against the given session.
func NewSchemas(t *testing.T, sess mango.Session) *Universe {
	t.Helper()

	companies := mango.NewSchema("companies",
		mango.WithSession(sess),
		mango.Fields(
			mango.NewField("name", mango.Typed[string](), mango.Required()),
			mango.NewField("founded", mango.Typed[int]()),
		),
	)

	people := mango.NewSchema("people",
		mango.WithSession(sess),
		mango.Fields(
			mango.NewField("name", mango.Typed[string](), mango.Required()),
			mango.NewField("age", mango.Typed[int]()),
		),
	)
	people.AddField(mango.NewReferenceField("employer", companies))

	tasks := mango.NewSchema("tasks",
		mango.WithSession(sess),
		mango.DiscriminatorKey("kind"),
		mango.Fields(
			mango.NewField("title", mango.Typed[string](), mango.Required()),
			mango.NewEnumField("status",
				mango.StaticChoices("pending", "done"),
				mango.Default("pending")),
		),
	)
	chores, err := tasks.Register("chore",
		mango.WithFields(mango.NewField("room", mango.Typed[string]())))
	if err != nil {
		t.Fatal(err)
	}
	meetings, err := tasks.Register("meeting",
		mango.WithFields(mango.NewField("attendees", mango.Typed[int]())))
	if err != nil {
		t.Fatal(err)
	}

	return &Universe{
		Companies: companies,
		People:    people,
		Tasks:     tasks,
		Chores:    chores,
		Meetings:  meetings,
	}
}

// LoadUniverse returns a fresh in-memory store populated with the
// fixture documents.
func LoadUniverse(t *testing.T) (*memstore.Store, *Universe) {
	t.Helper()

	store := memstore.New()
	u := NewSchemas(t, store)

	u.Acme = mustSave(t, u.Companies, mango.M{"name": "Acme", "founded": 1990})
	u.Initech = mustSave(t, u.Companies, mango.M{"name": "Initech", "founded": 1999})

	u.Alice = mustSave(t, u.People, mango.M{"name": "Alice", "age": 34, "employer": u.Acme})
	u.Bob = mustSave(t, u.People, mango.M{"name": "Bob", "age": 28, "employer": u.Acme})
	u.Carol = mustSave(t, u.People, mango.M{"name": "Carol", "age": 45, "employer": u.Initech})
	u.Dave = mustSave(t, u.People, mango.M{"name": "Dave", "age": 52})

	u.Laundry = mustSave(t, u.Chores, mango.M{"title": "Laundry", "room": "basement"})
	u.Dishes = mustSave(t, u.Chores, mango.M{"title": "Dishes", "room": "kitchen", "status": "done"})
	u.Standup = mustSave(t, u.Meetings, mango.M{"title": "Standup", "attendees": 5})
	u.Planning = mustSave(t, u.Meetings, mango.M{"title": "Planning", "attendees": 8, "status": "done"})

	return store, u
}

func mustSave(t *testing.T, s *mango.Schema, kwargs mango.M) *mango.Model {
	t.Helper()
	m, err := s.New(kwargs)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Save(); err != nil {
		t.Fatal(err)
	}
	return m
}

// AssertCount fails the test when a schema's document count differs
// from the expected value.
func AssertCount(t *testing.T, s *mango.Schema, want int64) {
	t.Helper()
	got, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("%s: expected %d documents, got %d", s.Name(), want, got)
	}
}

// AssertFieldEquals fails the test when a model field does not hold the
// expected value.
func AssertFieldEquals(t *testing.T, m *mango.Model, field string, want interface{}) {
	t.Helper()
	got, err := m.Get(field)
	if err != nil {
		t.Fatalf("get %q: %v", field, err)
	}
	if got != want {
		t.Errorf("field %q: expected %v, got %v", field, want, got)
	}
}
