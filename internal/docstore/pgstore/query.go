package pgstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/docstore"
)

// query accumulates positional arguments while SQL fragments are built.
type query struct {
	args []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// where renders the collection scope plus every filter condition.
func (q *query) where(collection string, filter docstore.Filter) (string, error) {
	clauses := []string{"collection = " + q.arg(collection)}
	for _, cond := range filter {
		clause, err := q.cond(cond)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), nil
}

func (q *query) cond(c docstore.Cond) (string, error) {
	switch c.Op {
	case docstore.OpExists:
		return fmt.Sprintf("doc #> %s::text[] IS NOT NULL", q.arg(pathParts(c.Field))), nil
	case docstore.OpMissing:
		return fmt.Sprintf("doc #> %s::text[] IS NULL", q.arg(pathParts(c.Field))), nil
	case docstore.OpEq:
		if c.Field == docstore.IDField {
			if id, ok := c.Value.(string); ok {
				return "id = " + q.arg(id), nil
			}
		}
		return q.contains(c.Field, c.Value)
	case docstore.OpIn:
		if len(c.Values) == 0 {
			return "FALSE", nil
		}
		if ids, ok := stringValues(c.Values); ok && c.Field == docstore.IDField {
			return "id = ANY(" + q.arg(ids) + ")", nil
		}
		alternatives := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			clause, err := q.contains(c.Field, v)
			if err != nil {
				return "", err
			}
			alternatives = append(alternatives, clause)
		}
		return "(" + strings.Join(alternatives, " OR ") + ")", nil
	}
	return "", fmt.Errorf("pgstore: unsupported filter operator %d on %s", c.Op, c.Field)
}

// contains matches field == value with array-membership semantics by
// testing JSONB containment against every shape the value can take along
// the path: a scalar or an array holding it, and documents or arrays of
// documents at each intermediate step.
func (q *query) contains(field string, value any) (string, error) {
	parts := strings.Split(field, ".")
	shapes := nestedShapes(parts[1:], encodeValue(value))
	alternatives := make([]string, 0, len(shapes))
	for _, shape := range shapes {
		raw, err := json.Marshal(map[string]any{parts[0]: shape})
		if err != nil {
			return "", fmt.Errorf("encode filter on %s: %w", field, err)
		}
		alternatives = append(alternatives, fmt.Sprintf("doc @> %s::jsonb", q.arg(string(raw))))
	}
	if len(alternatives) == 1 {
		return alternatives[0], nil
	}
	return "(" + strings.Join(alternatives, " OR ") + ")", nil
}

func nestedShapes(parts []string, leaf any) []any {
	if len(parts) == 0 {
		if _, isArray := leaf.([]any); isArray {
			return []any{leaf}
		}
		return []any{leaf, []any{leaf}}
	}
	var out []any
	for _, sub := range nestedShapes(parts[1:], leaf) {
		obj := map[string]any{parts[0]: sub}
		out = append(out, obj, []any{obj})
	}
	return out
}

func (q *query) orderBy(keys []docstore.SortKey) string {
	terms := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		// missing fields sort as null, which is the lowest value
		dir := "ASC NULLS FIRST"
		if key.Desc {
			dir = "DESC NULLS LAST"
		}
		terms = append(terms, fmt.Sprintf("doc #> %s::text[] %s", q.arg(pathParts(key.Field)), dir))
	}
	terms = append(terms, "seq ASC")
	return strings.Join(terms, ", ")
}

func pathParts(field string) []string {
	return strings.Split(field, ".")
}

func stringValues(values []any) ([]string, bool) {
	out := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// indexDDL renders a CREATE INDEX statement scoped to a single collection.
func indexDDL(idx docstore.Index) string {
	exprs := make([]string, len(idx.Fields))
	scope := []string{"collection = " + quoteLiteral(idx.Collection)}
	for i, field := range idx.Fields {
		path := quoteLiteral("{" + strings.Join(pathParts(field), ",") + "}")
		exprs[i] = fmt.Sprintf("(doc #>> %s)", path)
		if idx.Partial {
			scope = append(scope, fmt.Sprintf("doc #> %s IS NOT NULL", path))
		}
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON documents (%s) WHERE %s",
		unique,
		pgx.Identifier{idx.Name}.Sanitize(),
		strings.Join(exprs, ", "),
		strings.Join(scope, " AND "),
	)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
