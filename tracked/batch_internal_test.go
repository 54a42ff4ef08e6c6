package tracked

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchKeepsPathsSharingAHash(t *testing.T) {
	s, err := NewStore(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	a, b := ParsePath("/a"), ParsePath("/b")

	s.StartBatch(RootPath, nil)
	s.Update([]Path{a})
	// /b now looks like a path already buffered
	s.pendingSeen.Add(b.Hash())
	s.Update([]Path{b, a})
	assert.Equal(t, []Path{a, b}, s.pendingPaths)

	s.FinishBatch(RootPath, nil)
	assert.Empty(t, s.pendingPaths)
}
