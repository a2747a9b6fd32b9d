// Package aggregate evaluates ordered pipelines of filter, join, compute and
// shape stages over a docstore.Store.
package aggregate

import (
	"errors"
	"fmt"
	"math"

	"github.com/vidtube/backend/internal/docstore"
)

// ErrInvalidPipeline reports a pipeline that cannot be evaluated.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// Stage is one step of a Pipeline.
type Stage interface {
	StageName() string
}

// Pipeline is an ordered list of stages; each consumes the previous output.
type Pipeline []Stage

// MatchStage keeps documents satisfying Filter.
type MatchStage struct {
	Filter docstore.Filter
}

// JoinStage attaches to each document the array of documents from From whose
// ForeignField equals any value reached by LocalField. Sub is applied to the
// joined documents before attachment. When Ordered is set, LocalField must
// hold an array and the joined array follows its order, one entry per
// resolvable element; otherwise order follows the foreign collection.
type JoinStage struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	Sub          Pipeline
	Ordered      bool
}

// FlattenStage replaces an array field by its first element, or nil.
type FlattenStage struct {
	Field string
}

// ComputeStage sets Field to the value of Expr.
type ComputeStage struct {
	Field string
	Expr  Expr
}

// ProjectStage keeps only Include fields (plus _id) when Include is set, then
// drops Exclude fields.
type ProjectStage struct {
	Include []string
	Exclude []string
}

// SortStage orders documents by Keys.
type SortStage struct {
	Keys []docstore.SortKey
}

// SkipStage drops the first N documents.
type SkipStage struct {
	N int64
}

// LimitStage keeps at most N documents; N <= 0 keeps none.
type LimitStage struct {
	N int64
}

func (MatchStage) StageName() string { return "match" }
func (JoinStage) StageName() string { return "join" }
func (FlattenStage) StageName() string { return "flatten" }
func (ComputeStage) StageName() string { return "compute" }
func (ProjectStage) StageName() string { return "project" }
func (SortStage) StageName() string { return "sort" }
func (SkipStage) StageName() string { return "skip" }
func (LimitStage) StageName() string { return "limit" }

// Match keeps documents satisfying every cond.
func Match(conds ...docstore.Cond) MatchStage {
	return MatchStage{Filter: docstore.Where(conds...)}
}

// Join attaches matching documents of from under as, shaped by sub.
func Join(from, localField, foreignField, as string, sub ...Stage) JoinStage {
	return JoinStage{From: from, LocalField: localField, ForeignField: foreignField, As: as, Sub: sub}
}

// JoinOrdered is Join for array-valued local keys whose order must survive.
func JoinOrdered(from, localField, foreignField, as string, sub ...Stage) JoinStage {
	j := Join(from, localField, foreignField, as, sub...)
	j.Ordered = true
	return j
}

// FlattenOne replaces the array at field by its first element.
func FlattenOne(field string) FlattenStage { return FlattenStage{Field: field} }

// ComputeField sets field to the value of expr.
func ComputeField(field string, expr Expr) ComputeStage {
	return ComputeStage{Field: field, Expr: expr}
}

// Project keeps only fields and _id.
func Project(fields ...string) ProjectStage { return ProjectStage{Include: fields} }

// Exclude drops fields.
func Exclude(fields ...string) ProjectStage { return ProjectStage{Exclude: fields} }

// Sort orders documents by keys.
func Sort(keys ...docstore.SortKey) SortStage { return SortStage{Keys: keys} }

// Skip drops the first n documents.
func Skip(n int64) SkipStage { return SkipStage{N: n} }

// Limit keeps at most n documents.
func Limit(n int64) LimitStage { return LimitStage{N: n} }

// Paginate returns the skip and limit stages for a 1-based page. Pages below
// 1 are treated as the first page; pages whose offset overflows int64 are
// empty.
func Paginate(page, limit int64) []Stage {
	page = max(page, 1)
	skip := int64(math.MaxInt64)
	if limit <= 0 || page-1 <= math.MaxInt64/limit {
		skip = (page - 1) * max(limit, 0)
	}
	return []Stage{Skip(skip), Limit(limit)}
}

// Validate checks structural constraints. Join sub-pipelines may only hold
// per-document stages.
func (p Pipeline) Validate() error {
	return validate(p, false)
}

func validate(p Pipeline, nested bool) error {
	for i, stage := range p {
		switch s := stage.(type) {
		case nil:
			return fmt.Errorf("%w: stage %d is nil", ErrInvalidPipeline, i)
		case JoinStage:
			if s.From == "" || s.LocalField == "" || s.ForeignField == "" || s.As == "" {
				return fmt.Errorf("%w: join at stage %d is incomplete", ErrInvalidPipeline, i)
			}
			if err := validate(s.Sub, true); err != nil {
				return err
			}
		case ComputeStage:
			if s.Expr == nil || s.Field == "" {
				return fmt.Errorf("%w: compute at stage %d is incomplete", ErrInvalidPipeline, i)
			}
		case SortStage, SkipStage, LimitStage:
			if nested {
				return fmt.Errorf("%w: %s is not allowed inside a join", ErrInvalidPipeline, s.StageName())
			}
		}
	}
	return nil
}
