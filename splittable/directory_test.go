package splittable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/splitdb/cache"
	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/xerrors"
)

func newMemoryCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewStandalone(&cache.StandaloneConfig{}, cache.WithLogger(clog.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDirectory_Key(t *testing.T) {
	d := NewDirectory(brokenCache{}, "splittable:directory:")
	assert.Equal(t, "splittable:directory:Order:main", d.Key("Order", "main"))
}

func TestDirectory_PresenceAndMembers(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(newMemoryCache(t), "dir:")
	key := d.Key("Order", "main")

	ok, err := d.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := d.Members(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)

	// 探测结果为空也要标记为已填充
	require.NoError(t, d.Replace(ctx, key, nil))
	ok, err = d.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	members, err = d.Members(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, d.Replace(ctx, key, []string{"t_order_202402"}))
	require.NoError(t, d.Replace(ctx, key, []string{"t_order_202403", "t_order_202402"}))
	members, err = d.Members(ctx, key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t_order_202402", "t_order_202403"}, members)
}

func TestDirectory_CacheFailure(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(brokenCache{}, "dir:")
	key := d.Key("Order", "main")

	_, err := d.Exists(ctx, key)
	assert.True(t, xerrors.Is(err, ErrCacheUnavailable))
	assert.True(t, xerrors.Is(err, errCacheDown))

	_, err = d.Members(ctx, key)
	assert.True(t, xerrors.Is(err, ErrCacheUnavailable))

	err = d.Replace(ctx, key, []string{"t_order_202403"})
	assert.True(t, xerrors.Is(err, ErrCacheUnavailable))
	assert.Equal(t, CodeCacheUnavailable, xerrors.GetCode(err))
}
