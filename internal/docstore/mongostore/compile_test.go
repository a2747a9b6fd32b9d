package mongostore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/docstore"
)

func TestCompileFilter(t *testing.T) {
	got := compileFilter(docstore.Where(
		docstore.Eq("likedBy", "u1"),
		docstore.In("video", "v1", "v2"),
		docstore.Missing("comment"),
	))
	want := bson.D{
		{Key: "likedBy", Value: "u1"},
		{Key: "video", Value: bson.D{{Key: "$in", Value: bson.A{"v1", "v2"}}}},
		{Key: "comment", Value: bson.D{{Key: "$exists", Value: false}}},
	}
	assert.Equal(t, want, got)
}

func TestCompileFilterRepeatedFieldUsesAnd(t *testing.T) {
	got := compileFilter(docstore.Where(docstore.Exists("video"), docstore.Eq("video", "v1")))
	require.Len(t, got, 1)
	assert.Equal(t, "$and", got[0].Key)
	assert.Len(t, got[0].Value, 2)
}

func TestCompileUpdatePrependsAtFront(t *testing.T) {
	got := compileUpdate(docstore.Update{Prepend: map[string]any{"watchHistory": "v9"}})
	want := bson.D{{Key: "$push", Value: bson.D{{Key: "watchHistory", Value: bson.D{
		{Key: "$each", Value: bson.A{"v9"}},
		{Key: "$position", Value: 0},
	}}}}}
	assert.Equal(t, want, got)

	unset := compileUpdate(docstore.Update{Unset: []string{"refreshToken"}, Inc: map[string]int64{"views": 1}})
	assert.Equal(t, bson.D{
		{Key: "$unset", Value: bson.D{{Key: "refreshToken", Value: ""}}},
		{Key: "$inc", Value: bson.D{{Key: "views", Value: int64(1)}}},
	}, unset)
}

func TestFromBSONNormalizesDriverTypes(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := bson.D{
		{Key: "_id", Value: "u1"},
		{Key: "views", Value: int32(7)},
		{Key: "createdAt", Value: bson.NewDateTimeFromTime(when)},
		{Key: "subscribers", Value: bson.A{bson.D{{Key: "subscriber", Value: "u2"}}}},
	}
	doc := documentFromBSON(raw)

	assert.Equal(t, int64(7), doc["views"])
	assert.True(t, doc.Time("createdAt").Equal(when))
	assert.Equal(t, []string{"u2"}, docstoreStrings(doc, "subscribers.subscriber"))
}

func docstoreStrings(doc docstore.Document, path string) []string {
	var out []string
	for _, v := range docstore.Values(doc, path) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestCompilePipeline(t *testing.T) {
	p := aggregate.Pipeline{
		aggregate.Match(docstore.Eq("username", "alice")),
		aggregate.Join("subscriptions", "_id", "channel", "subscribers"),
		aggregate.ComputeField("isSubscribed", aggregate.Contains("subscribers.subscriber", "u2")),
		aggregate.FlattenOne("owner"),
		aggregate.Project("username", "isSubscribed"),
		aggregate.Sort(docstore.Desc("createdAt")),
		aggregate.Skip(10),
		aggregate.Limit(5),
	}
	stages, err := compilePipeline(p)
	require.NoError(t, err)
	require.Len(t, stages, 8)

	keys := make([]string, len(stages))
	for i, stage := range stages {
		keys[i] = stage.(bson.D)[0].Key
	}
	assert.Equal(t, []string{"$match", "$lookup", "$set", "$set", "$project", "$sort", "$skip", "$limit"}, keys)
}

func TestCompilePipelineDefersOrderedJoins(t *testing.T) {
	_, err := compilePipeline(aggregate.Pipeline{aggregate.JoinOrdered("videos", "watchHistory", "_id", "watchHistory")})
	assert.True(t, errors.Is(err, aggregate.ErrNotNative))

	_, err = compilePipeline(aggregate.Pipeline{aggregate.Limit(0)})
	assert.True(t, errors.Is(err, aggregate.ErrNotNative))
}

func TestIndexModelPartial(t *testing.T) {
	model := indexModel(docstore.Index{
		Collection: "likes",
		Name:       "likes_comment_key",
		Fields:     []string{"likedBy", "comment"},
		Unique:     true,
		Partial:    true,
	})
	assert.Equal(t, bson.D{{Key: "likedBy", Value: 1}, {Key: "comment", Value: 1}}, model.Keys)
	require.NotNil(t, model.Options)
}
