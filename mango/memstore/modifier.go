package memstore

import (
	"fmt"
	"strings"

	"github.com/mango-odm/mango/mango"
)

// applyModifier mutates a document in place. Operator documents support
// $set, $unset and $inc; a modifier without operators replaces the whole
// document, keeping its id.
func applyModifier(doc, modifier mango.M) (bool, error) {
	operators := false
	for k := range modifier {
		if strings.HasPrefix(k, "$") {
			operators = true
			break
		}
	}
	if !operators {
		id := doc[idKey]
		for k := range doc {
			delete(doc, k)
		}
		for k, v := range modifier {
			doc[k] = v
		}
		doc[idKey] = id
		return true, nil
	}

	changed := false
	for op, arg := range modifier {
		fields, ok := arg.(mango.M)
		if !ok {
			return false, fmt.Errorf("memstore: %s requires a document argument, got %T", op, arg)
		}
		switch op {
		case "$set":
			for k, v := range fields {
				if cur, has := doc[k]; !has || !valuesEqual(cur, v) {
					doc[k] = v
					changed = true
				}
			}
		case "$unset":
			for k := range fields {
				if _, has := doc[k]; has {
					delete(doc, k)
					changed = true
				}
			}
		case "$inc":
			for k, v := range fields {
				amount, ok := normalize(v).(float64)
				if !ok {
					return false, fmt.Errorf("memstore: $inc amount for %q must be numeric", k)
				}
				cur, _ := normalize(doc[k]).(float64)
				doc[k] = cur + amount
				changed = true
			}
		default:
			return false, fmt.Errorf("memstore: unsupported update operator %q", op)
		}
	}
	return changed, nil
}
