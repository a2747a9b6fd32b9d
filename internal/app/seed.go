package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/toggle"
)

const seedPassword = "password123"

// seedNamespace derives stable ids so that seeding twice is a no-op.
var seedNamespace = uuid.MustParse("5f0c3c1e-8d4b-4a57-9a0e-3d2b7c6f1a90")

type seedUser struct {
	username string
	fullname string
	videos   []string
}

var devSeed = []seedUser{
	{username: "alice", fullname: "Alice Archer", videos: []string{"Getting started with Go", "Profiling in production"}},
	{username: "bob", fullname: "Bob Baker", videos: []string{"Sourdough basics"}},
	{username: "carol", fullname: "Carol Chen", videos: nil},
}

type seedResult struct {
	Users   int
	Videos  int
	Skipped int
}

func seed(ctx context.Context, store docstore.Store, name string, now time.Time) (seedResult, error) {
	switch name {
	case "dev", "demo":
	default:
		return seedResult{}, fmt.Errorf("unknown seed %q", name)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return seedResult{}, fmt.Errorf("hash seed password: %w", err)
	}

	users := repositories.NewUserRepository(store)
	videos := repositories.NewVideoRepository(store)
	toggles := toggle.NewService(store, toggle.WithClock(func() time.Time { return now }))

	var result seedResult
	ids := make(map[string]string, len(devSeed))
	for _, su := range devSeed {
		id := seedID("user", su.username)
		ids[su.username] = id
		user := models.User{
			ID:           id,
			Username:     su.username,
			Email:        su.username + "@example.com",
			Fullname:     su.fullname,
			Avatar:       "https://placehold.co/128x128?text=" + su.username,
			Password:     string(hash),
			WatchHistory: []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				result.Skipped++
				continue
			}
			return result, err
		}
		result.Users++

		for i, title := range su.videos {
			video := models.Video{
				ID:          seedID("video", su.username, title),
				Title:       title,
				Description: fmt.Sprintf("Episode %d from %s", i+1, su.fullname),
				VideoFile:   "https://example.com/media/" + su.username + "/video.mp4",
				Thumbnail:   "https://placehold.co/640x360?text=" + su.username,
				Duration:    float64(60 * (i + 1)),
				IsPublished: true,
				Owner:       id,
				CreatedAt:   now.Add(time.Duration(i) * time.Minute),
				UpdatedAt:   now.Add(time.Duration(i) * time.Minute),
			}
			if err := videos.Create(ctx, video); err != nil {
				if errors.Is(err, repositories.ErrConflict) {
					result.Skipped++
					continue
				}
				return result, err
			}
			result.Videos++
		}
	}

	// Edges are toggles, so they are only created alongside fresh users.
	if result.Users == len(devSeed) {
		for _, edge := range []toggle.Edge{
			toggle.SubscriptionEdge(ids["bob"], ids["alice"]),
			toggle.SubscriptionEdge(ids["carol"], ids["alice"]),
			toggle.LikeEdge(ids["bob"], models.VideoTarget(seedID("video", "alice", devSeed[0].videos[0]))),
		} {
			if _, err := toggles.Toggle(ctx, edge); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func seedID(parts ...string) string {
	name := ""
	for _, p := range parts {
		name += "/" + p
	}
	return uuid.NewSHA1(seedNamespace, []byte(name)).String()
}
