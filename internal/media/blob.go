// Package media handles uploaded files: naming and storing blobs, probing
// video duration and cleaning up blobs that are no longer referenced.
package media

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrBlobStoreUnavailable indicates no blob store is configured.
var ErrBlobStoreUnavailable = errors.New("blob store unavailable")

// BlobStore persists uploaded files and returns their public location.
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

// Kind groups blobs by purpose.
type Kind string

const (
	KindAvatar    Kind = "avatars"
	KindCover     Kind = "covers"
	KindVideo     Kind = "videos"
	KindThumbnail Kind = "thumbnails"
)

// ObjectName returns a unique object name for an upload, keeping the
// lower-cased extension of the client supplied filename.
func ObjectName(kind Kind, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return path.Join(string(kind), uuid.NewString()+ext)
}
