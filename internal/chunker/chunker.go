// Package chunker splits extracted segments into bounded retrieval chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"docchat/internal/models"
)

// breakRatio is how far into the window a whitespace break must lie to be used.
const breakRatio = 0.8

type Chunker struct {
	size    int
	overlap int
}

// New validates the window parameters. Overlap is accepted for compatibility
// with existing clients, consecutive windows never repeat text.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrInvalidInput, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", models.ErrInvalidInput, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default uses 1000 characters and an overlap of 200.
func Default() *Chunker {
	return &Chunker{size: models.DefaultChunkSize, overlap: models.DefaultChunkOverlap}
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks every segment in order. OrderIndex runs across the whole file.
func (c *Chunker) Split(fileID string, segments []models.Segment) []models.Chunk {
	var chunks []models.Chunk
	for _, seg := range segments {
		for _, text := range c.SplitText(seg.Text) {
			chunks = append(chunks, models.Chunk{
				Text:       text,
				FileID:     fileID,
				OrderIndex: len(chunks),
				Source:     seg.Source,
			})
		}
	}
	return chunks
}

// SplitText applies the window algorithm to one string, measured in runes.
func (c *Chunker) SplitText(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.size {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	var out []string
	minBreak := int(float64(c.size) * breakRatio)
	for start := 0; start < len(runes); {
		end := start + c.size
		next := end
		if end >= len(runes) {
			end, next = len(runes), len(runes)
		} else if ws := lastSpace(runes[start:end]); ws > minBreak {
			end = start + ws
			next = end + 1
		}

		if t := strings.TrimSpace(string(runes[start:end])); t != "" {
			out = append(out, t)
		}
		start = next
	}
	return out
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return -1
}
