package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/media"
)

const (
	defaultMaxUploadBytes = 512 << 20
	multipartMemoryBytes  = 32 << 20
)

// Uploads stores multipart files in the blob store.
type Uploads struct {
	Blobs    media.BlobStore
	MaxBytes int64
}

func (u Uploads) limit() int64 {
	if u.MaxBytes > 0 {
		return u.MaxBytes
	}
	return defaultMaxUploadBytes
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parse reads a bounded multipart form. Callers must defer cleanupForm.
func (u Uploads) parse(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, u.limit())
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("upload too large")
		}
		return apperr.Validation("invalid multipart form", err.Error())
	}
	return nil
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func formFile(r *http.Request, field string) (*multipart.FileHeader, bool) {
	if r.MultipartForm == nil {
		return nil, false
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, false
	}
	return files[0], true
}

// save stores the first file of field. ok is false when no file was sent.
func (u Uploads) save(ctx context.Context, r *http.Request, field string, kind media.Kind) (location string, ok bool, err error) {
	header, ok := formFile(r, field)
	if !ok {
		return "", false, nil
	}
	if u.Blobs == nil {
		return "", true, apperr.Internal("media storage unavailable", media.ErrBlobStoreUnavailable)
	}
	f, err := header.Open()
	if err != nil {
		return "", true, apperr.Validation("unreadable upload " + field)
	}
	defer f.Close()

	location, err = u.Blobs.Save(ctx, media.ObjectName(kind, header.Filename), f)
	if err != nil {
		return "", true, apperr.Upstream("failed to upload "+field, err)
	}
	return location, true, nil
}

// spool copies the first file of field to a local temporary file so it can
// be probed. The returned cleanup removes it.
func spool(r *http.Request, field string) (path, filename string, cleanup func(), err error) {
	header, ok := formFile(r, field)
	if !ok {
		return "", "", nil, apperr.Validation(field + " file is required")
	}
	src, err := header.Open()
	if err != nil {
		return "", "", nil, apperr.Validation("unreadable upload " + field)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "vidtube-upload-*")
	if err != nil {
		return "", "", nil, apperr.Internal("failed to buffer upload", err)
	}
	cleanup = func() { _ = os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		cleanup()
		return "", "", nil, apperr.Internal("failed to buffer upload", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", "", nil, apperr.Internal("failed to buffer upload", err)
	}
	return tmp.Name(), header.Filename, cleanup, nil
}

func (u Uploads) saveFile(ctx context.Context, path, filename string, kind media.Kind) (string, error) {
	if u.Blobs == nil {
		return "", apperr.Internal("media storage unavailable", media.ErrBlobStoreUnavailable)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", apperr.Internal("failed to reopen upload", err)
	}
	defer f.Close()

	location, err := u.Blobs.Save(ctx, media.ObjectName(kind, filename), f)
	if err != nil {
		return "", apperr.Upstream("failed to upload "+string(kind), err)
	}
	return location, nil
}
