package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/annel0/blockbyte/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercisePresence(t *testing.T, dir PresenceDirectory) {
	ctx := context.Background()

	require.NoError(t, dir.Put(ctx, Presence{ID: "b", ClientID: 2, World: "bb:lobby"}))
	require.NoError(t, dir.Put(ctx, Presence{ID: "a", ClientID: 1, World: "bb:lobby"}))
	require.NoError(t, dir.Put(ctx, Presence{ID: "a", ClientID: 1, World: "bb:lobby", Position: vec.Position{Y: 5}}))

	list, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID, "сортировка по клиентскому id")
	assert.Equal(t, 5.0, list[0].Position.Y)
	assert.False(t, list[0].UpdatedAt.IsZero())

	require.NoError(t, dir.Remove(ctx, "a"))
	assert.ErrorIs(t, dir.Remove(ctx, "a"), ErrNotFound)

	list, err = dir.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryPresence(t *testing.T) {
	exercisePresence(t, NewMemoryPresence(time.Minute))
}

func TestMemoryPresenceExpiry(t *testing.T) {
	dir := NewMemoryPresence(10 * time.Second)
	now := time.Unix(1000, 0)
	dir.now = func() time.Time { return now }

	require.NoError(t, dir.Put(context.Background(), Presence{ID: "x"}))
	now = now.Add(11 * time.Second)

	list, err := dir.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "устаревшая запись не показывается")
}

func TestRedisPresence(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR не задан, пропускаем тест Redis")
	}

	dir, err := NewRedisPresence(&PresenceConfig{RedisAddr: addr, Key: "blockbyte:presence:test", TTL: time.Minute})
	if err != nil {
		t.Fatalf("Не удалось подключиться к Redis: %v", err)
	}
	defer dir.Close()
	defer dir.client.Del(context.Background(), "blockbyte:presence:test")

	exercisePresence(t, dir)
}
