package memstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/mango-odm/mango/mango"
)

// matches evaluates a filter against a document: top-level equality per
// key, with $in as the only recognized operator. Values are compared in
// normalized form so documents reloaded from JSON (where numbers come
// back as float64 and reference records as plain maps) still match
// in-memory values.
func matches(doc, filter mango.M) (bool, error) {
	for key, want := range filter {
		if cond, ok := want.(mango.M); ok {
			if in, has := cond["$in"]; has {
				if len(cond) != 1 {
					return false, fmt.Errorf("memstore: $in cannot be combined with other operators")
				}
				got, present := doc[key]
				if !present {
					return false, nil
				}
				ok, err := containsValue(in, got)
				if err != nil || !ok {
					return false, err
				}
				continue
			}
			for op := range cond {
				if strings.HasPrefix(op, "$") {
					return false, fmt.Errorf("memstore: unsupported filter operator %q", op)
				}
			}
		}
		got, present := doc[key]
		if !present || !valuesEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func containsValue(list interface{}, v interface{}) (bool, error) {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false, fmt.Errorf("memstore: $in requires a list, got %T", list)
	}
	for i := 0; i < rv.Len(); i++ {
		if valuesEqual(rv.Index(i).Interface(), v) {
			return true, nil
		}
	}
	return false, nil
}

func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize maps the several storage forms a value can take onto one:
// reference records become plain maps, integers and floats become
// float64, and containers normalize recursively.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case mango.Ref:
		return map[string]interface{}{"$ref": t.Collection, "$id": normalize(t.ID)}
	case *mango.Ref:
		if t == nil {
			return nil
		}
		return normalize(*t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

// sortDocs orders documents by a compound sort key. Missing values sort
// first; mixed types fall back to their printed form.
func sortDocs(docs []mango.M, keys []mango.SortKey) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			c := compareValues(docs[i][key.Key], docs[j][key.Key])
			if c == 0 {
				continue
			}
			if key.Dir == mango.DESC {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	na, nb := normalize(a), normalize(b)
	switch x := na.(type) {
	case float64:
		if y, ok := nb.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	case string:
		if y, ok := nb.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := nb.(bool); ok {
			switch {
			case !x && y:
				return -1
			case x && !y:
				return 1
			default:
				return 0
			}
		}
	case time.Time:
		if y, ok := nb.(time.Time); ok {
			switch {
			case x.Before(y):
				return -1
			case x.After(y):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(na), fmt.Sprint(nb))
}

func copyDoc(doc mango.M) mango.M {
	out := make(mango.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
