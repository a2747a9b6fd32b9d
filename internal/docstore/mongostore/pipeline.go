package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/docstore"
)

var _ aggregate.NativeRunner = (*Store)(nil)

// RunPipeline evaluates p with the server's aggregation framework. Ordered
// joins have no direct equivalent and are left to the in-process engine.
func (s *Store) RunPipeline(ctx context.Context, collection string, p aggregate.Pipeline) ([]docstore.Document, error) {
	stages, err := compilePipeline(p)
	if err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(collection).Aggregate(ctx, stages)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	var raw []bson.D
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s aggregate: %w", collection, err)
	}
	docs := make([]docstore.Document, len(raw))
	for i, d := range raw {
		docs[i] = documentFromBSON(d)
	}
	return docs, nil
}

func compilePipeline(p aggregate.Pipeline) (bson.A, error) {
	out := bson.A{}
	for _, stage := range p {
		compiled, err := compileStage(stage)
		if err != nil {
			return nil, err
		}
		for _, s := range compiled {
			out = append(out, s)
		}
	}
	return out, nil
}

func compileStage(stage aggregate.Stage) ([]bson.D, error) {
	switch s := stage.(type) {
	case aggregate.MatchStage:
		return []bson.D{{{Key: "$match", Value: compileFilter(s.Filter)}}}, nil
	case aggregate.JoinStage:
		if s.Ordered {
			return nil, aggregate.ErrNotNative
		}
		lookup := bson.D{
			{Key: "from", Value: s.From},
			{Key: "localField", Value: s.LocalField},
			{Key: "foreignField", Value: s.ForeignField},
			{Key: "as", Value: s.As},
		}
		if len(s.Sub) > 0 {
			sub, err := compilePipeline(s.Sub)
			if err != nil {
				return nil, err
			}
			lookup = append(lookup, bson.E{Key: "pipeline", Value: sub})
		}
		return []bson.D{{{Key: "$lookup", Value: lookup}}}, nil
	case aggregate.FlattenStage:
		first := bson.D{{Key: "$arrayElemAt", Value: bson.A{"$" + s.Field, 0}}}
		return []bson.D{setStage(s.Field, bson.D{{Key: "$ifNull", Value: bson.A{first, nil}}})}, nil
	case aggregate.ComputeStage:
		expr, err := compileExpr(s.Expr)
		if err != nil {
			return nil, err
		}
		return []bson.D{setStage(s.Field, expr)}, nil
	case aggregate.ProjectStage:
		var out []bson.D
		if len(s.Include) > 0 {
			include := bson.D{}
			for _, field := range s.Include {
				include = append(include, bson.E{Key: field, Value: 1})
			}
			out = append(out, bson.D{{Key: "$project", Value: include}})
		}
		if len(s.Exclude) > 0 {
			exclude := bson.D{}
			for _, field := range s.Exclude {
				exclude = append(exclude, bson.E{Key: field, Value: 0})
			}
			out = append(out, bson.D{{Key: "$project", Value: exclude}})
		}
		return out, nil
	case aggregate.SortStage:
		if len(s.Keys) == 0 {
			return nil, nil
		}
		return []bson.D{{{Key: "$sort", Value: compileSort(s.Keys)}}}, nil
	case aggregate.SkipStage:
		return []bson.D{{{Key: "$skip", Value: max(s.N, 0)}}}, nil
	case aggregate.LimitStage:
		if s.N <= 0 {
			return nil, aggregate.ErrNotNative
		}
		return []bson.D{{{Key: "$limit", Value: s.N}}}, nil
	}
	return nil, aggregate.ErrNotNative
}

func setStage(field string, expr any) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: expr}}}}
}

func compileExpr(expr aggregate.Expr) (any, error) {
	switch e := expr.(type) {
	case aggregate.FieldExpr:
		return "$" + e.Path, nil
	case aggregate.LiteralExpr:
		return bson.D{{Key: "$literal", Value: toBSON(e.Value)}}, nil
	case aggregate.SizeExpr:
		return bson.D{{Key: "$size", Value: asArray("$" + e.Path)}}, nil
	case aggregate.FirstExpr:
		first := bson.D{{Key: "$arrayElemAt", Value: bson.A{"$" + e.Path, 0}}}
		return bson.D{{Key: "$ifNull", Value: bson.A{first, nil}}}, nil
	case aggregate.ContainsExpr:
		if e.Value == nil {
			return bson.D{{Key: "$literal", Value: false}}, nil
		}
		return bson.D{{Key: "$in", Value: bson.A{toBSON(e.Value), asArray("$" + e.Path)}}}, nil
	case aggregate.SumExpr:
		return bson.D{{Key: "$sum", Value: "$" + e.Path}}, nil
	}
	return nil, aggregate.ErrNotNative
}

// asArray yields the array at ref, an empty array when it is missing or null
// and a one-element array for a scalar.
func asArray(ref string) bson.D {
	return bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$isArray", Value: ref}},
		ref,
		bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{ref, nil}}}, nil}}},
			bson.A{},
			bson.A{ref},
		}}},
	}}}
}
