package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStorage writes blobs below a local directory. It backs development
// setups without an object store.
type DiskStorage struct {
	root    string
	baseURL string
}

func NewDiskStorage(root, baseURL string) (*DiskStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("disk storage: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("disk storage: create root: %w", err)
	}
	return &DiskStorage{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (d *DiskStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key := filepath.ToSlash(filepath.Clean("/" + name))[1:]
	if key == "" {
		return "", fmt.Errorf("disk storage: empty key")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("disk storage: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("disk storage: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("disk storage write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("disk storage close %s: %w", key, err)
	}

	if d.baseURL == "" {
		return key, nil
	}
	return d.baseURL + "/" + key, nil
}

func (d *DiskStorage) Delete(_ context.Context, location string) error {
	key := strings.TrimSpace(location)
	if d.baseURL != "" {
		if !strings.HasPrefix(key, d.baseURL+"/") {
			return nil
		}
		key = strings.TrimPrefix(key, d.baseURL+"/")
	}
	key = filepath.ToSlash(filepath.Clean("/" + key))[1:]
	if key == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(d.root, filepath.FromSlash(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("disk storage delete %s: %w", key, err)
	}
	return nil
}
