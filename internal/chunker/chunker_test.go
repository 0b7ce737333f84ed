package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"docchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidates(t *testing.T) {
	_, err := New(0, 0)
	require.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = New(100, 100)
	require.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = New(100, -1)
	require.ErrorIs(t, err, models.ErrInvalidInput)

	c, err := New(100, 20)
	require.NoError(t, err)
	assert.Equal(t, 100, c.Size())
	assert.Equal(t, 20, c.Overlap())
}

func TestShortSegmentIsOneChunk(t *testing.T) {
	chunks := Default().Split("f1", []models.Segment{{Text: "  The sky is blue. Grass is green.\n", Source: "page 1"}})
	require.Len(t, chunks, 1)
	assert.Equal(t, models.Chunk{Text: "The sky is blue. Grass is green.", FileID: "f1", OrderIndex: 0, Source: "page 1"}, chunks[0])
}

func TestBlankSegmentsDropped(t *testing.T) {
	chunks := Default().Split("f1", []models.Segment{{Text: "   "}, {Text: "a"}, {Text: "\n"}})
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].OrderIndex)
}

func TestSplit2500CharactersReassembles(t *testing.T) {
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	var b strings.Builder
	for i := 0; b.Len() < 2500; i++ {
		b.WriteString(words[i%len(words)])
		b.WriteByte(' ')
	}
	text := b.String()[:2500]

	c := Default()
	chunks := c.SplitText(text)
	require.GreaterOrEqual(t, len(chunks), 3)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 1000)
	}

	squash := func(s string) string { return strings.Join(strings.Fields(s), "") }
	assert.Equal(t, squash(text), squash(strings.Join(chunks, " ")))
	// breaks land on word boundaries, so words are never split
	for _, ch := range chunks[:len(chunks)-1] {
		last := ch[strings.LastIndex(ch, " ")+1:]
		assert.Contains(t, words, last)
	}
}

func TestSplitWithoutWhitespaceUsesFullWindows(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := Default().SplitText(text)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 500)
}

func TestEarlyWhitespaceIsIgnored(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)
	// the only space sits at 30% of the window, below the break threshold
	chunks := c.SplitText("abc defghijklmnopqrst")
	assert.Equal(t, []string{"abc defghi", "jklmnopqrs", "t"}, chunks)
}

func TestNoRepeatedTextBetweenChunks(t *testing.T) {
	c, err := New(10, 5)
	require.NoError(t, err)
	chunks := c.SplitText("aaaaaaaaa bbbbbbbbb ccccccccc")
	assert.Equal(t, []string{"aaaaaaaaa", "bbbbbbbbb", "ccccccccc"}, chunks)
}

func TestOrderIndexSpansSegments(t *testing.T) {
	c, err := New(10, 0)
	require.NoError(t, err)
	chunks := c.Split("f", []models.Segment{
		{Text: "aaaaaaaaa bbbbbbbbb", Source: "page 1"},
		{Text: "ccc", Source: "page 2"},
	})
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.OrderIndex)
		assert.Equal(t, "f", ch.FileID)
	}
	assert.Equal(t, "page 2", chunks[2].Source)
}
