package docstore

import (
	"strings"
	"time"
)

// Document is a schemaless record. Values are restricted to the normalized
// set produced by Normalize: nil, string, bool, int64, float64, time.Time,
// []any and Document.
type Document map[string]any

// IDField is the primary key of every document.
const IDField = "_id"

// ID returns the document identifier.
func (d Document) ID() string { return d.String(IDField) }

func (d Document) String(key string) string {
	v, _ := Get(d, key)
	s, _ := v.(string)
	return s
}

func (d Document) Bool(key string) bool {
	v, _ := Get(d, key)
	b, _ := v.(bool)
	return b
}

func (d Document) Int(key string) int64 {
	v, _ := Get(d, key)
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func (d Document) Float(key string) float64 {
	v, _ := Get(d, key)
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func (d Document) Time(key string) time.Time {
	v, _ := Get(d, key)
	t, _ := v.(time.Time)
	return t
}

// Strings returns the string elements of an array field.
func (d Document) Strings(key string) []string {
	v, _ := Get(d, key)
	arr, _ := v.([]any)
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Doc returns a nested document, or nil when the field is absent or not an object.
func (d Document) Doc(key string) Document {
	v, _ := Get(d, key)
	sub, _ := v.(Document)
	return sub
}

// Docs returns the document elements of an array field.
func (d Document) Docs(key string) []Document {
	v, _ := Get(d, key)
	arr, _ := v.([]any)
	out := make([]Document, 0, len(arr))
	for _, item := range arr {
		if sub, ok := item.(Document); ok {
			out = append(out, sub)
		}
	}
	return out
}

// Has reports whether the dotted path resolves to a present field.
func (d Document) Has(path string) bool {
	_, ok := Get(d, path)
	return ok
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(d).(Document)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		out := make(Document, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Get resolves a dotted path without traversing arrays.
func Get(d Document, path string) (any, bool) {
	var cur any = d
	for _, part := range strings.Split(path, ".") {
		doc, ok := cur.(Document)
		if !ok {
			return nil, false
		}
		cur, ok = doc[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Values resolves a dotted path, descending into arrays of documents along
// the way and flattening array leaves. It returns every value reached, which
// is what membership tests such as "subscribers.subscriber" need.
func Values(d Document, path string) []any {
	return collect(d, strings.Split(path, "."))
}

func collect(v any, parts []string) []any {
	if len(parts) == 0 {
		if arr, ok := v.([]any); ok {
			return arr
		}
		return []any{v}
	}
	switch val := v.(type) {
	case Document:
		next, ok := val[parts[0]]
		if !ok {
			return nil
		}
		return collect(next, parts[1:])
	case []any:
		var out []any
		for _, item := range val {
			out = append(out, collect(item, parts)...)
		}
		return out
	}
	return nil
}

// Set assigns value at the dotted path, creating intermediate documents.
func Set(d Document, path string, value any) {
	parts := strings.Split(path, ".")
	cur := d
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(Document)
		if !ok {
			next = Document{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// Unset removes the field at the dotted path if present.
func Unset(d Document, path string) {
	parts := strings.Split(path, ".")
	cur := d
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(Document)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// Normalize converts Go values into the closed set of document value types.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int64, float64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.UTC()
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC()
	case Document:
		out := make(Document, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case map[string]any:
		return Normalize(Document(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []Document:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	}
	return v
}

// NormalizeDocument normalizes every value of d.
func NormalizeDocument(d Document) Document {
	if d == nil {
		return nil
	}
	return Normalize(d).(Document)
}
