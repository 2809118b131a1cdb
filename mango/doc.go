// Package mango is an object-document mapping layer for document databases.
//
// Applications declare schemas out of field specifications and work with
// stored documents through attribute-style accessors instead of raw maps,
// while all network I/O, wire encoding and query execution stay with the
// backing collection implementation (see the memstore and mongodb
// sub-packages).
//
// A schema plays the role the model class plays in a dynamic ODM: it owns
// the ordered field registry, the per-schema configuration and the lazily
// resolved collection handle, and exposes every class-level operation
// (Find, FindOne, Search, Update, Remove, Drop, ...). A Model is a single
// document bound to its schema; instance-level operations (Save, Delete,
// Update) live on it. Keeping the two on separate types is what makes
// collection-wide operations unreachable from a single document.
//
//	user := mango.NewSchema("user",
//	    mango.Fields(
//	        mango.NewField("name", mango.Typed[string](), mango.Required()),
//	        mango.NewField("age", mango.Typed[int](), mango.Default(0)),
//	    ),
//	    mango.WithSession(store),
//	)
//
//	ada, err := user.New(mango.M{"name": "Ada"})
//	id, err := ada.Save()
//	again, err := user.Grab(id)
package mango
