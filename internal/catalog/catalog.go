// Package catalog holds server-side file records for the process lifetime.
package catalog

import (
	"sort"
	"sync"

	"docchat/internal/models"
)

type Catalog struct {
	mu    sync.RWMutex
	files map[string]models.File
}

func New() *Catalog {
	return &Catalog{files: make(map[string]models.File)}
}

// Put inserts or replaces the record for f.FileID.
func (c *Catalog) Put(f models.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[f.FileID] = f
}

func (c *Catalog) Get(fileID string) (models.File, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.files[fileID]
	return f, ok
}

// Delete reports whether a record was removed.
func (c *Catalog) Delete(fileID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.files[fileID]
	delete(c.files, fileID)
	return ok
}

// List returns every record, oldest upload first.
func (c *Catalog) List() []models.File {
	c.mu.RLock()
	out := make([]models.File, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, f)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].FileID < out[j].FileID
	})
	return out
}
