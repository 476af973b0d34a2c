package vectorstore

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// letterEmbedding embeds text as its normalized letter histogram.
func letterEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0], norm = 1, 1
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func TestIndexAndSearch(t *testing.T) {
	ctx := context.Background()
	vs, err := New(t.TempDir(), letterEmbedding)
	require.NoError(t, err)

	results, err := vs.Search(ctx, "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, vs.IndexEntry(ctx, 1, "t1", "zzz zzz", "zzz"))
	require.NoError(t, vs.IndexEntry(ctx, 2, "t2", "abc abc", "abc"))
	require.NoError(t, vs.IndexEntry(ctx, 3, "t3", "xyz", "xyz"))
	assert.Equal(t, 3, vs.Count())

	results, err = vs.Search(ctx, "abc", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int32(2), results[0].EntryID)
	assert.Equal(t, "t2", results[0].ThreadID)
	assert.Equal(t, "abc abc\n\nabc", results[0].Content)

	// Re-indexing replaces the document.
	require.NoError(t, vs.IndexEntry(ctx, 2, "t2", "qqq", "qqq"))
	assert.Equal(t, 3, vs.Count())

	require.NoError(t, vs.RemoveEntry(ctx, 3))
	assert.Equal(t, 2, vs.Count())
	results, err = vs.Search(ctx, "xyz", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEqual(t, int32(3), results[0].EntryID)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	vs, err := New(t.TempDir(), letterEmbedding)
	require.NoError(t, err)

	require.NoError(t, vs.Reset())
	require.NoError(t, vs.IndexEntry(ctx, 1, "t1", "hello", "world"))
	require.NoError(t, vs.IndexEntry(ctx, 2, "t1", "again", "there"))
	require.Equal(t, 2, vs.Count())

	require.NoError(t, vs.Reset())
	assert.Equal(t, 0, vs.Count())

	require.NoError(t, vs.IndexEntry(ctx, 3, "t2", "fresh", "start"))
	assert.Equal(t, 1, vs.Count())
}
