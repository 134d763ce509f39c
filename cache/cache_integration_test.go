package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/splitdb/testkit"
)

func TestRedis_Integration(t *testing.T) {
	conn := testkit.NewRedisConnector(t)
	ctx := context.Background()
	prefix := "cache-test:" + testkit.NewID() + ":"

	c, err := New(&Config{Driver: DriverRedis, Prefix: prefix, Serializer: "msgpack"},
		WithRedisConnector(conn), WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	defer c.Close()

	t.Run("KeyValue", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "u", user{ID: 7, Name: "bob"}, time.Minute))
		var got user
		require.NoError(t, c.Get(ctx, "u", &got))
		assert.Equal(t, 7, got.ID)

		require.NoError(t, c.Expire(ctx, "u", time.Hour))
		assert.ErrorIs(t, c.Expire(ctx, "missing", time.Hour), ErrCacheMiss)

		require.NoError(t, c.Delete(ctx, "u"))
		assert.ErrorIs(t, c.Get(ctx, "u", &got), ErrCacheMiss)
	})

	t.Run("Set", func(t *testing.T) {
		require.NoError(t, c.SAdd(ctx, "tables", "t_1", "t_2"))
		members, err := c.SMembers(ctx, "tables")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"t_1", "t_2"}, members)

		require.NoError(t, c.SRem(ctx, "tables", "t_1"))
		members, err = c.SMembers(ctx, "tables")
		require.NoError(t, err)
		assert.Equal(t, []string{"t_2"}, members)
	})

	t.Run("EmptySetPresence", func(t *testing.T) {
		require.NoError(t, c.SAdd(ctx, "empty"))
		ok, err := c.Has(ctx, "empty")
		require.NoError(t, err)
		assert.True(t, ok)

		members, err := c.SMembers(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("WrongType", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "kv", 1, 0))
		assert.ErrorIs(t, c.SAdd(ctx, "kv", "a"), ErrWrongType)
	})
}
