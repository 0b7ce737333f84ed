package catalog

import (
	"testing"
	"time"

	"docchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	c := New()
	now := time.Now()
	c.Put(models.File{FileID: "b", UploadedAt: now})
	c.Put(models.File{FileID: "a", UploadedAt: now.Add(-time.Minute)})
	c.Put(models.File{FileID: "c", UploadedAt: now})

	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].FileID, list[1].FileID, list[2].FileID})

	f, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", f.FileID)

	assert.True(t, c.Delete("b"))
	assert.False(t, c.Delete("b"))
	_, ok = c.Get("b")
	assert.False(t, ok)
}
