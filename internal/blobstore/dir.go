package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docchat/internal/helper"
	"docchat/internal/models"
)

// DirStore writes uploads as <dir>/<file_id>_<filename>.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) (*DirStore, error) {
	if err := helper.CreateFolder(dir); err != nil {
		return nil, err
	}
	return &DirStore{dir: dir}, nil
}

func (d *DirStore) Put(ctx context.Context, fileID, filename string, data []byte) error {
	path := filepath.Join(d.dir, fileID+"_"+filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	return nil
}

func (d *DirStore) find(fileID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, escapeGlob(fileID)+"_*"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", models.ErrNotFound, fileID)
	}
	return matches[0], nil
}

func (d *DirStore) Get(ctx context.Context, fileID string) ([]byte, error) {
	path, err := d.find(fileID)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (d *DirStore) Delete(ctx context.Context, fileID string) error {
	path, err := d.find(fileID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (d *DirStore) ReadOnly() bool { return false }

func escapeGlob(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}

// ReadOnlyStore keeps nothing. Uploads must be held by the client.
type ReadOnlyStore struct{}

func (ReadOnlyStore) Put(ctx context.Context, fileID, filename string, data []byte) error {
	return fmt.Errorf("%w: server storage is read-only", models.ErrStorage)
}

func (ReadOnlyStore) Get(ctx context.Context, fileID string) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", models.ErrNotFound, fileID)
}

func (ReadOnlyStore) Delete(ctx context.Context, fileID string) error { return nil }

func (ReadOnlyStore) ReadOnly() bool { return true }
