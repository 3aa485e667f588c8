package jobqueue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Redis tests need a disposable server: TEST_REDIS_URL=redis://localhost:6379/14
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.Del(ctx, PendingKey, ProcessingKey, StartedKey).Err())
	t.Cleanup(func() {
		client.Del(context.Background(), PendingKey, ProcessingKey, StartedKey)
		client.Close()
	})
	return client
}

func TestRedis_ProcessesAndClears(t *testing.T) {
	client := testRedis(t)
	done := make(chan string, 3)
	q := NewRedis(client, func(_ context.Context, id string) { done <- id }, RedisOptions{Workers: 2, PollTimeout: 100 * time.Millisecond}, testLogger())

	ctx := context.Background()
	q.Start(ctx)
	for _, id := range []string{"x", "y", "z"} {
		require.NoError(t, q.Enqueue(ctx, id))
	}
	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case id := <-done:
			got[id] = true
		case <-time.After(3 * time.Second):
			t.Fatal("timed out")
		}
	}
	q.Stop()

	assert.Len(t, got, 3)
	n, err := client.LLen(ctx, ProcessingKey).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedis_SweepRequeuesStuckJobs(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	q := NewRedis(client, func(context.Context, string) {}, RedisOptions{StuckAfter: time.Minute}, testLogger())

	now := time.Now()
	require.NoError(t, client.LPush(ctx, ProcessingKey, "old", "fresh").Err())
	require.NoError(t, client.HSet(ctx, StartedKey, "old", now.Add(-2*time.Minute).Unix()).Err())
	require.NoError(t, client.HSet(ctx, StartedKey, "fresh", now.Unix()).Err())

	n, err := q.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := client.LRange(ctx, PendingKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, pending)
	processing, err := client.LRange(ctx, ProcessingKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, processing)
}
