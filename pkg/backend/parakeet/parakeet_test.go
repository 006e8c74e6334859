//go:build parakeet

package parakeet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIntoChunks_SingleChunkWhenShort(t *testing.T) {
	samples := make([]float32, 100)
	chunks := splitIntoChunks(samples, 1000, 160)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 100)
}

func TestSplitIntoChunks_OverlapsSubsequentChunks(t *testing.T) {
	samples := make([]float32, 250)
	chunks := splitIntoChunks(samples, 100, 20)
	require.Greater(t, len(chunks), 1)
	assert.Len(t, chunks[0], 100)
	// second chunk starts 20 samples before the first chunk's end.
	assert.Len(t, chunks[1], 100)
}

func TestSplitIntoChunks_LastChunkCoversRemainder(t *testing.T) {
	samples := make([]float32, 210)
	chunks := splitIntoChunks(samples, 100, 10)
	last := chunks[len(chunks)-1]
	assert.True(t, len(last) > 0)
}

func TestGreedyCTCDecode_CollapsesRepeatsAndDropsBlank(t *testing.T) {
	vocab := []string{"<blank>", "h", "e", "l", "o"}
	vocabSize := len(vocab)
	// frames: h h e l l o -> collapse repeats -> h e l o
	frames := [][]float32{
		{0, 9, 0, 0, 0}, // h
		{0, 9, 0, 0, 0}, // h (repeat, collapsed)
		{0, 0, 9, 0, 0}, // e
		{0, 0, 0, 9, 0}, // l
		{0, 0, 0, 9, 0}, // l (repeat, collapsed)
		{0, 0, 0, 0, 9}, // o
	}
	var logprobs []float32
	for _, f := range frames {
		logprobs = append(logprobs, f...)
	}

	text := greedyCTCDecode(logprobs, len(frames), vocabSize, vocab)
	assert.Equal(t, "helo", text)
}

func TestGreedyCTCDecode_AllBlankYieldsEmptyString(t *testing.T) {
	vocab := []string{"<blank>", "h"}
	logprobs := []float32{9, 0, 9, 0, 9, 0}
	text := greedyCTCDecode(logprobs, 3, len(vocab), vocab)
	assert.Equal(t, "", text)
}
