package aggregate

import "github.com/vidtube/backend/internal/docstore"

// Expr computes a value from a single document.
type Expr interface {
	Eval(doc docstore.Document) any
}

type FieldExpr struct{ Path string }

type LiteralExpr struct{ Value any }

// SizeExpr is the length of the array at Path, 0 when absent.
type SizeExpr struct{ Path string }

// FirstExpr is the first element of the array at Path, nil when empty.
type FirstExpr struct{ Path string }

// ContainsExpr reports whether Value is among the values reached by Path.
// Path may traverse arrays of documents, e.g. "subscribers.subscriber".
type ContainsExpr struct {
	Path  string
	Value any
}

// SumExpr adds the numeric values reached by Path.
type SumExpr struct{ Path string }

func Field(path string) FieldExpr { return FieldExpr{Path: path} }
func Literal(v any) LiteralExpr { return LiteralExpr{Value: docstore.Normalize(v)} }
func Size(path string) SizeExpr { return SizeExpr{Path: path} }
func First(path string) FirstExpr { return FirstExpr{Path: path} }
func Sum(path string) SumExpr { return SumExpr{Path: path} }
func Contains(path string, v any) ContainsExpr {
	return ContainsExpr{Path: path, Value: docstore.Normalize(v)}
}

func (e FieldExpr) Eval(doc docstore.Document) any {
	v, _ := docstore.Get(doc, e.Path)
	return v
}

func (e LiteralExpr) Eval(docstore.Document) any { return e.Value }

func (e SizeExpr) Eval(doc docstore.Document) any {
	v, _ := docstore.Get(doc, e.Path)
	arr, _ := v.([]any)
	return int64(len(arr))
}

func (e FirstExpr) Eval(doc docstore.Document) any {
	v, _ := docstore.Get(doc, e.Path)
	arr, _ := v.([]any)
	if len(arr) == 0 {
		return nil
	}
	return arr[0]
}

func (e ContainsExpr) Eval(doc docstore.Document) any {
	if e.Value == nil {
		return false
	}
	for _, v := range docstore.Values(doc, e.Path) {
		if docstore.Equal(v, e.Value) {
			return true
		}
	}
	return false
}

func (e SumExpr) Eval(doc docstore.Document) any {
	var (
		ints    int64
		floats  float64
		isFloat bool
	)
	for _, v := range docstore.Values(doc, e.Path) {
		switch n := v.(type) {
		case int64:
			ints += n
		case float64:
			floats += n
			isFloat = true
		}
	}
	if isFloat {
		return floats + float64(ints)
	}
	return ints
}
