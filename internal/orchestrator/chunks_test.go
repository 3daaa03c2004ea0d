package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkSizes_Empty(t *testing.T) {
	assert.Nil(t, chunkSizes(0, 1000))
}

func TestChunkSizes_SingleUndersizedChunk(t *testing.T) {
	assert.Equal(t, []int{1}, chunkSizes(1, 1000))
}

func TestChunkSizes_ExactlyOneChunk(t *testing.T) {
	assert.Equal(t, []int{1000}, chunkSizes(1000, 1000))
}

func TestChunkSizes_RemainderInLastChunk(t *testing.T) {
	assert.Equal(t, []int{1000, 1}, chunkSizes(1001, 1000))
}

func TestChunkSizes_SecureMaxPoints(t *testing.T) {
	sizes := chunkSizes(100000, 1000)
	assert.Len(t, sizes, 100)
	total := 0
	for _, s := range sizes {
		total += s
	}
	assert.Equal(t, 100000, total)
}
