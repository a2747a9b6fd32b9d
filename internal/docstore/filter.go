package docstore

// Op is a filter condition operator.
type Op int

const (
	OpEq Op = iota
	OpIn
	OpExists
	OpMissing
)

// Cond is a single field condition. Conditions follow document-database
// semantics: an equality on an array field matches when any element matches,
// and dotted paths descend into arrays of documents.
type Cond struct {
	Field  string
	Op     Op
	Value  any
	Values []any
}

// Filter is a conjunction of conditions. The empty filter matches everything.
type Filter []Cond

func Eq(field string, value any) Cond {
	return Cond{Field: field, Op: OpEq, Value: Normalize(value)}
}

func In(field string, values ...any) Cond {
	norm := make([]any, len(values))
	for i, v := range values {
		norm[i] = Normalize(v)
	}
	return Cond{Field: field, Op: OpIn, Values: norm}
}

// InStrings is In for a string slice.
func InStrings(field string, values []string) Cond {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return In(field, vals...)
}

func Exists(field string) Cond { return Cond{Field: field, Op: OpExists} }

func Missing(field string) Cond { return Cond{Field: field, Op: OpMissing} }

// Where builds a filter from conditions.
func Where(conds ...Cond) Filter { return Filter(conds) }

// ByID matches the document with the given identifier.
func ByID(id string) Filter { return Where(Eq(IDField, id)) }

// And returns a new filter with the extra conditions appended.
func (f Filter) And(conds ...Cond) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// Matches evaluates the filter against a document.
func (f Filter) Matches(d Document) bool {
	for _, c := range f {
		if !c.Matches(d) {
			return false
		}
	}
	return true
}

// Matches evaluates a single condition against a document.
func (c Cond) Matches(d Document) bool {
	switch c.Op {
	case OpExists:
		return len(Values(d, c.Field)) > 0 || d.Has(c.Field)
	case OpMissing:
		return len(Values(d, c.Field)) == 0 && !d.Has(c.Field)
	case OpEq:
		return anyEqual(d, c.Field, c.Value)
	case OpIn:
		for _, v := range c.Values {
			if anyEqual(d, c.Field, v) {
				return true
			}
		}
	}
	return false
}

func anyEqual(d Document, path string, want any) bool {
	if whole, ok := Get(d, path); ok && Equal(whole, want) {
		return true
	}
	for _, v := range Values(d, path) {
		if Equal(v, want) {
			return true
		}
	}
	return false
}
