package repositories

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// PlaylistRepository provides document-store persistence for playlists.
type PlaylistRepository struct {
	store docstore.Store
}

func NewPlaylistRepository(store docstore.Store) *PlaylistRepository {
	return &PlaylistRepository{store: store}
}

func (r *PlaylistRepository) Create(ctx context.Context, playlist models.Playlist) error {
	return wrap("insert playlist", r.store.InsertOne(ctx, models.PlaylistsCollection, playlist.ToDocument()))
}

func (r *PlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	doc, err := r.store.FindOne(ctx, models.PlaylistsCollection, docstore.ByID(id))
	if err != nil {
		return models.Playlist{}, wrap("select playlist", err)
	}
	return models.PlaylistFromDocument(doc), nil
}

// ListByOwner returns the owner's playlists, newest first.
func (r *PlaylistRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Playlist, error) {
	docs, err := r.store.Find(ctx, models.PlaylistsCollection, docstore.Where(docstore.Eq("owner", ownerID)), docstore.FindOptions{
		Sort: []docstore.SortKey{docstore.Desc("createdAt")},
	})
	if err != nil {
		return nil, wrap("list playlists", err)
	}
	out := make([]models.Playlist, 0, len(docs))
	for _, doc := range docs {
		out = append(out, models.PlaylistFromDocument(doc))
	}
	return out, nil
}

func (r *PlaylistRepository) Update(ctx context.Context, id, name, description string) (models.Playlist, error) {
	set := docstore.Document{"name": name, "updatedAt": time.Now().UTC()}
	upd := docstore.Update{Set: set}
	if description != "" {
		set["description"] = description
	} else {
		upd.Unset = []string{"description"}
	}
	matched, err := r.store.UpdateOne(ctx, models.PlaylistsCollection, docstore.ByID(id), upd)
	if err := requireMatched("update playlist", matched, err); err != nil {
		return models.Playlist{}, err
	}
	return r.FindByID(ctx, id)
}

func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	deleted, err := r.store.DeleteOne(ctx, models.PlaylistsCollection, docstore.ByID(id))
	return requireMatched("delete playlist", deleted, err)
}

// AddVideo appends videoID unless already present.
func (r *PlaylistRepository) AddVideo(ctx context.Context, id, videoID string) (models.Playlist, error) {
	matched, err := r.store.UpdateOne(ctx, models.PlaylistsCollection, docstore.ByID(id), docstore.Update{
		AddToSet: map[string]any{"videos": videoID},
		Set:      docstore.Document{"updatedAt": time.Now().UTC()},
	})
	if err := requireMatched("add playlist video", matched, err); err != nil {
		return models.Playlist{}, err
	}
	return r.FindByID(ctx, id)
}

func (r *PlaylistRepository) RemoveVideo(ctx context.Context, id, videoID string) (models.Playlist, error) {
	matched, err := r.store.UpdateOne(ctx, models.PlaylistsCollection, docstore.ByID(id), docstore.Update{
		Pull: map[string]any{"videos": videoID},
		Set:  docstore.Document{"updatedAt": time.Now().UTC()},
	})
	if err := requireMatched("remove playlist video", matched, err); err != nil {
		return models.Playlist{}, err
	}
	return r.FindByID(ctx, id)
}
