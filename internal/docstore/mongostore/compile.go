package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vidtube/backend/internal/docstore"
)

// compileFilter translates a conjunction into a query document. Repeated
// fields fall back to an explicit $and.
func compileFilter(filter docstore.Filter) bson.D {
	out := bson.D{}
	seen := make(map[string]struct{}, len(filter))
	repeated := false
	for _, c := range filter {
		if _, dup := seen[c.Field]; dup {
			repeated = true
		}
		seen[c.Field] = struct{}{}
		out = append(out, compileCond(c))
	}
	if !repeated {
		return out
	}
	clauses := bson.A{}
	for _, elem := range out {
		clauses = append(clauses, bson.D{elem})
	}
	return bson.D{{Key: "$and", Value: clauses}}
}

func compileCond(c docstore.Cond) bson.E {
	switch c.Op {
	case docstore.OpExists:
		return bson.E{Key: c.Field, Value: bson.D{{Key: "$exists", Value: true}}}
	case docstore.OpMissing:
		return bson.E{Key: c.Field, Value: bson.D{{Key: "$exists", Value: false}}}
	case docstore.OpIn:
		values := bson.A{}
		for _, v := range c.Values {
			values = append(values, toBSON(v))
		}
		return bson.E{Key: c.Field, Value: bson.D{{Key: "$in", Value: values}}}
	}
	return bson.E{Key: c.Field, Value: toBSON(c.Value)}
}

func compileSort(keys []docstore.SortKey) bson.D {
	out := bson.D{}
	for _, key := range keys {
		dir := 1
		if key.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: key.Field, Value: dir})
	}
	return out
}

func compileUpdate(upd docstore.Update) bson.D {
	out := bson.D{}
	if len(upd.Set) > 0 {
		set := bson.D{}
		for path, v := range upd.Set {
			set = append(set, bson.E{Key: path, Value: toBSON(docstore.Normalize(v))})
		}
		out = append(out, bson.E{Key: "$set", Value: set})
	}
	if len(upd.Unset) > 0 {
		unset := bson.D{}
		for _, path := range upd.Unset {
			unset = append(unset, bson.E{Key: path, Value: ""})
		}
		out = append(out, bson.E{Key: "$unset", Value: unset})
	}
	if len(upd.Inc) > 0 {
		inc := bson.D{}
		for path, n := range upd.Inc {
			inc = append(inc, bson.E{Key: path, Value: n})
		}
		out = append(out, bson.E{Key: "$inc", Value: inc})
	}
	if len(upd.Push) > 0 || len(upd.Prepend) > 0 {
		push := bson.D{}
		for path, v := range upd.Push {
			push = append(push, bson.E{Key: path, Value: toBSON(docstore.Normalize(v))})
		}
		for path, v := range upd.Prepend {
			push = append(push, bson.E{Key: path, Value: bson.D{
				{Key: "$each", Value: bson.A{toBSON(docstore.Normalize(v))}},
				{Key: "$position", Value: 0},
			}})
		}
		out = append(out, bson.E{Key: "$push", Value: push})
	}
	if len(upd.AddToSet) > 0 {
		add := bson.D{}
		for path, v := range upd.AddToSet {
			add = append(add, bson.E{Key: path, Value: toBSON(docstore.Normalize(v))})
		}
		out = append(out, bson.E{Key: "$addToSet", Value: add})
	}
	if len(upd.Pull) > 0 {
		pull := bson.D{}
		for path, v := range upd.Pull {
			pull = append(pull, bson.E{Key: path, Value: toBSON(docstore.Normalize(v))})
		}
		out = append(out, bson.E{Key: "$pull", Value: pull})
	}
	return out
}

// toBSON converts a normalized document value into its driver representation.
func toBSON(v any) any {
	switch val := v.(type) {
	case docstore.Document:
		out := bson.D{}
		for k, item := range val {
			out = append(out, bson.E{Key: k, Value: toBSON(item)})
		}
		return out
	case []any:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = toBSON(item)
		}
		return out
	}
	return v
}

// fromBSON converts a decoded driver value back into the normalized set.
func fromBSON(v any) any {
	switch val := v.(type) {
	case bson.D:
		out := make(docstore.Document, len(val))
		for _, elem := range val {
			out[elem.Key] = fromBSON(elem.Value)
		}
		return out
	case bson.M:
		out := make(docstore.Document, len(val))
		for k, item := range val {
			out[k] = fromBSON(item)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromBSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromBSON(item)
		}
		return out
	case int32:
		return int64(val)
	case bson.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	case bson.ObjectID:
		return val.Hex()
	}
	return docstore.Normalize(v)
}

func documentFromBSON(d bson.D) docstore.Document {
	doc, _ := fromBSON(d).(docstore.Document)
	return doc
}
