package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkLongText(t *testing.T) {
	text := strings.Repeat("This is a test sentence. ", 100)

	chunks := Chunk(text, "doc1", Options{
		MaxChunkSize:      500,
		ChunkOverlap:      50,
		SplitOnPageBreaks: true,
	})

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, "doc1", chunks[0].DocumentID)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestChunkShortText(t *testing.T) {
	chunks := Chunk("Short text.", "doc2", DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc2-chunk-0", chunks[0].ID)
	assert.Equal(t, "Short text.", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].TotalChunks)
	assert.Nil(t, chunks[0].PageNumber)
}

func TestChunkEmptyText(t *testing.T) {
	assert.Empty(t, Chunk("", "doc", DefaultOptions()))
	assert.Empty(t, Chunk("   \n\n  ", "doc", DefaultOptions()))
}

func TestChunkRespectsMaxSize(t *testing.T) {
	text := strings.Repeat("Word ", 200)

	chunks := Chunk(text, "doc", Options{
		MaxChunkSize:      100,
		ChunkOverlap:      0,
		SplitOnPageBreaks: true,
	})

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		// Forced word splits may overflow by at most one word.
		assert.LessOrEqual(t, len(c.Text), 100+len("Word"))
	}
}

func TestChunkForcedSplitBound(t *testing.T) {
	longWord := strings.Repeat("x", 40)
	words := make([]string, 50)
	for i := range words {
		words[i] = longWord
	}
	text := strings.Join(words, " ") + "."

	chunks := Chunk(text, "doc", Options{MaxChunkSize: 100, ChunkOverlap: 20, SplitOnPageBreaks: true})

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 100+len(longWord))
	}
}

func TestChunkOversizedLeadingWord(t *testing.T) {
	// A first word longer than the chunk budget must become its own passage,
	// never leave an empty one behind.
	text := "abcdefghijklmnop then some more words follow here."

	chunks := Chunk(text, "doc", Options{MaxChunkSize: 10, ChunkOverlap: 0, SplitOnPageBreaks: true})

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotEmpty(t, c.Text)
	}
	assert.Equal(t, "abcdefghijklmnop", chunks[0].Text)
}

func TestChunkSplitsOnPageBreaks(t *testing.T) {
	text := "Page 1 content\f\nPage 2 content\f\nPage 3 content"

	chunks := Chunk(text, "doc", Options{
		MaxChunkSize:      1000,
		ChunkOverlap:      200,
		SplitOnPageBreaks: true,
	})

	require.GreaterOrEqual(t, len(chunks), 3)
	for _, c := range chunks {
		require.NotNil(t, c.PageNumber)
	}
	assert.Equal(t, 1, *chunks[0].PageNumber)
	assert.Equal(t, 3, *chunks[len(chunks)-1].PageNumber)
}

func TestChunkSplitsOnBlankLineRuns(t *testing.T) {
	text := "First page here.\n\n\nSecond page here."

	chunks := Chunk(text, "doc", DefaultOptions())

	require.Len(t, chunks, 2)
	require.NotNil(t, chunks[0].PageNumber)
	assert.Equal(t, 1, *chunks[0].PageNumber)
	assert.Equal(t, 2, *chunks[1].PageNumber)
}

func TestChunkPageBreaksDisabled(t *testing.T) {
	text := "First page here.\f Second page here."

	chunks := Chunk(text, "doc", Options{
		MaxChunkSize:      1000,
		ChunkOverlap:      200,
		SplitOnPageBreaks: false,
	})

	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].PageNumber)
}

func TestChunkDropsEmptyPages(t *testing.T) {
	text := "Before.\f   \f After."

	chunks := Chunk(text, "doc", DefaultOptions())

	require.Len(t, chunks, 2)
	assert.Equal(t, "Before.", chunks[0].Text)
	assert.Equal(t, "After.", chunks[1].Text)
	// Page numbers come from the original page positions, blank page included.
	assert.Equal(t, 1, *chunks[0].PageNumber)
	assert.Equal(t, 3, *chunks[1].PageNumber)
}

func TestChunkIDsAndIndexes(t *testing.T) {
	text := strings.Repeat("Another sentence goes right here. ", 60)

	chunks := Chunk(text, "doc-9", Options{MaxChunkSize: 300, ChunkOverlap: 50, SplitOnPageBreaks: true})

	require.Greater(t, len(chunks), 1)
	seen := make(map[string]bool)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
		assert.Equal(t, len(chunks), c.TotalChunks)
		assert.NotEmpty(t, c.Text)
	}
	assert.Equal(t, "doc-9-chunk-0", chunks[0].ID)
}

func TestChunkPageNumbersNonDecreasing(t *testing.T) {
	text := strings.Repeat("Sentence one lives here. ", 40) + "\f" +
		strings.Repeat("Sentence two lives here. ", 40) + "\f" +
		strings.Repeat("Sentence three lives here. ", 40)

	chunks := Chunk(text, "doc", Options{MaxChunkSize: 200, ChunkOverlap: 40, SplitOnPageBreaks: true})

	require.Greater(t, len(chunks), 3)
	last := 0
	for _, c := range chunks {
		require.NotNil(t, c.PageNumber)
		assert.GreaterOrEqual(t, *c.PageNumber, last)
		last = *c.PageNumber
	}
}

func TestChunkOverlapCarriesTrailingWords(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma delta epsilon. ", 50)

	chunks := Chunk(text, "doc", Options{MaxChunkSize: 200, ChunkOverlap: 100, SplitOnPageBreaks: true})

	require.Greater(t, len(chunks), 1)
	prevWords := strings.Split(chunks[0].Text, " ")
	tail := strings.Join(prevWords[len(prevWords)-3:], " ")
	assert.True(t, strings.HasPrefix(chunks[1].Text, tail) || strings.Contains(chunks[1].Text, tail),
		"second chunk should start with words carried over from the first")
}

func TestChunkContentPreserved(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs. " +
		"How vexingly quick daft zebras jump."

	chunks := Chunk(text, "doc", Options{MaxChunkSize: 60, ChunkOverlap: 0, SplitOnPageBreaks: true})

	require.NotEmpty(t, chunks)
	joined := ""
	for _, c := range chunks {
		joined += " " + c.Text
	}
	// Every source word survives chunking; nothing is invented or dropped.
	for _, w := range strings.Fields(text) {
		assert.Contains(t, joined, w)
	}
}
