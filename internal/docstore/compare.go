package docstore

import (
	"sort"
	"strings"
	"time"
)

// Equal compares two normalized values. Integers and floats compare by value.
func Equal(a, b any) bool {
	return typeRank(a) == typeRank(b) && Compare(a, b) == 0
}

// Compare orders normalized values: nil < numbers < strings < documents <
// arrays < bools < times. Values of the same kind compare naturally.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case nil:
		return 0
	case int64, float64:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case time.Time:
		return av.Compare(b.(time.Time))
	case []any:
		bv := b.([]any)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return compareInts(len(av), len(bv))
	case Document:
		bv := b.(Document)
		keys := make([]string, 0, len(av))
		for k := range av {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			other, ok := bv[k]
			if !ok {
				return 1
			}
			if c := Compare(av[k], other); c != 0 {
				return c
			}
		}
		return compareInts(len(av), len(bv))
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, float64:
		return 1
	case string:
		return 2
	case Document:
		return 3
	case []any:
		return 4
	case bool:
		return 5
	case time.Time:
		return 6
	}
	return 7
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// SortDocuments stably orders docs by the given keys. Missing fields sort as nil.
func SortDocuments(docs []Document, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			a, _ := Get(docs[i], key.Field)
			b, _ := Get(docs[j], key.Field)
			c := Compare(a, b)
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Window applies skip and limit to docs. A negative skip is treated as zero
// and a limit of zero means unbounded.
func Window(docs []Document, skip, limit int64) []Document {
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(docs)) {
		return []Document{}
	}
	docs = docs[skip:]
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}
