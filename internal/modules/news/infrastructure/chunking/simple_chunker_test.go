package chunking

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerDisabledReturnsWholeText(t *testing.T) {
	c := NewChunker(0, 0)
	assert.False(t, c.Enabled())

	parts, err := c.Split(context.Background(), "Storm hits coast. Power is out.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Storm hits coast. Power is out."}, parts)
}

func TestChunkerShortTextUntouched(t *testing.T) {
	c := NewChunker(100, 10)
	parts, err := c.Split(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, parts)

	parts, err = c.Split(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestChunkerSplitsLongText(t *testing.T) {
	c := NewChunker(40, 0)
	text := strings.Repeat("The storm moved north overnight. ", 6)

	parts, err := c.Split(context.Background(), text)
	require.NoError(t, err)
	assert.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, len([]rune(p)), 40)
	}
}

func TestNewChunkerClampsOverlap(t *testing.T) {
	c := NewChunker(10, 20)
	assert.Equal(t, 5, c.ChunkOverlap)
	c = NewChunker(10, -3)
	assert.Equal(t, 0, c.ChunkOverlap)
}
