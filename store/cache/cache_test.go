package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheBasicOperations(t *testing.T) {
	ctx := context.Background()
	c := New(Config{DefaultTTL: time.Minute, MaxItems: 10})
	defer c.Close()

	c.Set(ctx, "1", "alice")
	value, ok := c.Get(ctx, "1")
	require.True(t, ok)
	require.Equal(t, "alice", value)

	c.Set(ctx, "1", "alice2")
	require.EqualValues(t, 1, c.Size())

	c.Delete(ctx, "1")
	_, ok = c.Get(ctx, "1")
	require.False(t, ok)
	require.EqualValues(t, 0, c.Size())
}

func TestCacheExpiration(t *testing.T) {
	ctx := context.Background()
	c := New(Config{DefaultTTL: time.Minute, MaxItems: 10})
	defer c.Close()

	c.SetWithTTL(ctx, "short", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(ctx, "short")
	require.False(t, ok)
	require.EqualValues(t, 0, c.Size())
}

func TestCacheEviction(t *testing.T) {
	ctx := context.Background()
	evicted := []string{}
	c := New(Config{
		DefaultTTL: time.Minute,
		MaxItems:   3,
		OnEviction: func(key string, _ any) { evicted = append(evicted, key) },
	})
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.SetWithTTL(ctx, fmt.Sprint(i), i, time.Duration(i+1)*time.Minute)
	}
	require.EqualValues(t, 3, c.Size())
	require.Equal(t, []string{"0", "1"}, evicted)
	_, ok := c.Get(ctx, "4")
	require.True(t, ok)
}
