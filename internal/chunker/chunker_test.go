package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

func TestSplit_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t  \n"} {
		chunks, res, err := Split(input, DefaultOptions())

		require.NoError(t, err)
		assert.Empty(t, chunks)
		assert.Equal(t, StrategyEmpty, res.Strategy)
	}
}

func TestSplit_InvalidChunkSize(t *testing.T) {
	_, _, err := Split("some text", Options{ChunkSize: 0})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSplit_NegativeOverlap(t *testing.T) {
	_, _, err := Split("some text", Options{ChunkSize: 100, Overlap: -1})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSplit_WindowReconstruction(t *testing.T) {
	// Concatenating window chunks with overlaps removed must reproduce
	// the stripped input exactly.
	text := strings.Repeat("abcdefghij", 50)
	opts := Options{ChunkSize: 100, Overlap: 20, MinChunkSize: 1}

	chunks, res, err := Split(text, opts)

	require.NoError(t, err)
	assert.Equal(t, StrategyWindow, res.Strategy)
	require.NotEmpty(t, chunks)

	rebuilt := chunks[0]
	for _, c := range chunks[1:] {
		require.GreaterOrEqual(t, len(c), opts.Overlap)
		rebuilt += c[opts.Overlap:]
	}
	assert.Equal(t, text, rebuilt)
}

func TestSplit_OverlapClamped(t *testing.T) {
	// overlap >= chunk size clamps to chunkSize/10, so the step is
	// chunkSize - chunkSize/10 and the loop always advances.
	text := strings.Repeat("x", 250)

	chunks, _, err := Split(text, Options{ChunkSize: 100, Overlap: 100, MinChunkSize: 1})

	require.NoError(t, err)
	// step = 100 - 10 = 90: windows start at 0, 90, 180.
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 70)
}

func TestSplit_ForwardProgressWithTinyChunks(t *testing.T) {
	// chunk size 1 with any overlap must still terminate.
	chunks, _, err := Split(strings.Repeat("y", 25), Options{ChunkSize: 1, Overlap: 5, MinChunkSize: 1})

	require.NoError(t, err)
	assert.Len(t, chunks, 25)
}

func TestSplit_SentencePacking(t *testing.T) {
	text := "First sentence here. Second sentence here. Third sentence here."

	chunks, res, err := Split(text, Options{ChunkSize: 45, Overlap: 0, MinChunkSize: 1, SentenceAware: true})

	require.NoError(t, err)
	assert.Equal(t, StrategySentence, res.Strategy)
	assert.False(t, res.LongSentenceFallback)
	// Two sentences of 20 chars fit a 45-char budget, the third starts a
	// new chunk.
	require.Len(t, chunks, 2)
	assert.Equal(t, "First sentence here. Second sentence here.", chunks[0])
	assert.Equal(t, "Third sentence here.", chunks[1])
}

func TestSplit_SentenceOverlapSeedsNextChunk(t *testing.T) {
	text := "Alpha beta gamma delta. Epsilon zeta eta theta."

	chunks, _, err := Split(text, Options{ChunkSize: 30, Overlap: 10, MinChunkSize: 1, SentenceAware: true})

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	// The second chunk starts with the tail of the first one.
	tail := strings.TrimSpace(chunks[0][len(chunks[0])-10:])
	assert.True(t, strings.HasPrefix(chunks[1], tail), "chunk %q should start with overlap %q", chunks[1], tail)
	assert.Contains(t, chunks[1], "Epsilon zeta eta theta.")
}

func TestSplit_ShortChunkSeedsWhole(t *testing.T) {
	// The first chunk closes at 10 chars, well under the 25-char overlap.
	// It must seed the next chunk in full rather than losing continuity.
	text := "Tiny lead. This next one is longer."

	chunks, _, err := Split(text, Options{ChunkSize: 30, Overlap: 25, MinChunkSize: 1, SentenceAware: true})

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Tiny lead.", chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], "Tiny lead."), "chunk %q should start with the short closed chunk", chunks[1])
	assert.Contains(t, chunks[1], "This next one is longer.")
}

func TestSplit_LongSentenceFallback(t *testing.T) {
	long := strings.Repeat("z", 230) + "."
	text := "Short lead. " + long

	chunks, res, err := Split(text, Options{ChunkSize: 100, Overlap: 0, MinChunkSize: 1, SentenceAware: true})

	require.NoError(t, err)
	assert.True(t, res.LongSentenceFallback)

	// The fallback subsplit must still cover the full sentence text.
	joined := strings.Join(chunks, "")
	for _, part := range []string{"Short lead.", strings.Repeat("z", 230)} {
		assert.Contains(t, strings.ReplaceAll(joined, "\n", ""), strings.ReplaceAll(part, "\n", ""))
	}
}

func TestSplit_MergesUndersizedTail(t *testing.T) {
	text := strings.Repeat("a", 100) + " tail"

	chunks, res, err := Split(text, Options{ChunkSize: 100, Overlap: 0, MinChunkSize: 50})

	require.NoError(t, err)
	assert.True(t, res.MergedFinalChunk)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "tail")
	assert.Contains(t, chunks[0], "\n\n")
}

func TestSplit_NoMergeForSingleChunk(t *testing.T) {
	chunks, res, err := Split("tiny", Options{ChunkSize: 100, Overlap: 0, MinChunkSize: 50})

	require.NoError(t, err)
	assert.False(t, res.MergedFinalChunk)
	assert.Equal(t, []string{"tiny"}, chunks)
}

func TestSplit_Deterministic(t *testing.T) {
	text := "One sentence. Two sentence. Three sentence. Four sentence. Five sentence."
	opts := Options{ChunkSize: 40, Overlap: 10, MinChunkSize: 5, SentenceAware: true}

	first, firstRes, err := Split(text, opts)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, againRes, err := Split(text, opts)
		require.NoError(t, err)
		assert.Equal(t, first, again)
		assert.Equal(t, firstRes, againRes)
	}
}
