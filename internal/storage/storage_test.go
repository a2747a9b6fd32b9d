package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type uploaderStub struct {
	keys []string
	body []byte
	err  error
}

func (u *uploaderStub) Upload(ctx context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.keys = append(u.keys, *input.Key)
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.body = data
	return &manager.UploadOutput{}, nil
}

type deleterStub struct {
	keys []string
}

func (d *deleterStub) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	d.keys = append(d.keys, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageSaveAndDelete(t *testing.T) {
	up := &uploaderStub{}
	del := &deleterStub{}
	store := newS3Storage(up, del, "media", "https://cdn.example.com/")

	location, err := store.Save(context.Background(), "/avatars/a.png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if location != "https://cdn.example.com/avatars/a.png" {
		t.Fatalf("unexpected location %q", location)
	}
	if string(up.body) != "png" || up.keys[0] != "avatars/a.png" {
		t.Fatalf("unexpected upload: %v %q", up.keys, up.body)
	}

	if err := store.Delete(context.Background(), location); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(context.Background(), "https://elsewhere.example.com/x.png"); err != nil {
		t.Fatalf("delete foreign: %v", err)
	}
	if len(del.keys) != 1 || del.keys[0] != "avatars/a.png" {
		t.Fatalf("unexpected deletes: %v", del.keys)
	}
}

func TestS3StorageSaveErrors(t *testing.T) {
	store := newS3Storage(&uploaderStub{err: errors.New("denied")}, &deleterStub{}, "media", "")
	if _, err := store.Save(context.Background(), "", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := store.Save(context.Background(), "k", strings.NewReader("x")); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestDiskStorageRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStorage(root, "http://localhost:8080/media")
	if err != nil {
		t.Fatalf("new disk storage: %v", err)
	}

	location, err := store.Save(context.Background(), "../videos/v.mp4", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if location != "http://localhost:8080/media/videos/v.mp4" {
		t.Fatalf("unexpected location %q", location)
	}
	if _, err := os.Stat(filepath.Join(root, "videos", "v.mp4")); err != nil {
		t.Fatalf("expected file inside root: %v", err)
	}

	if err := store.Delete(context.Background(), location); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "videos", "v.mp4")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
	if err := store.Delete(context.Background(), location); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}
