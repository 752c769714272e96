package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docaudit/internal/audit"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewCache(client, ttl), mr
}

func sampleReport() *audit.Report {
	return &audit.Report{
		TotalPages:    3,
		StagesFound:   []audit.StageFinding{{StageCode: "A-01", Pages: []int{1}, PageRange: "1", Status: audit.StatusComplete}},
		StagesMissing: []audit.MissingStage{},
		ProblemsFound: []audit.ProblemFinding{{Type: audit.SeverityWarning, Description: "lot mismatch", Page: 2}},
		Summary:       "ok",
		ChunkErrors:   []audit.ChunkError{},
	}
}

func TestCache_Miss(t *testing.T) {
	cache, _ := setupTestCache(t, time.Hour)

	report, id, err := cache.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Empty(t, id)
}

func TestCache_PutGet(t *testing.T) {
	cache, mr := setupTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "k1", "report-1", sampleReport()))
	assert.True(t, mr.Exists(resultPrefix+"k1"))

	report, id, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "report-1", id)
	assert.Equal(t, sampleReport(), report)
}

func TestCache_Expires(t *testing.T) {
	cache, mr := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "k1", "", sampleReport()))
	assert.Equal(t, time.Minute, mr.TTL(resultPrefix+"k1"))

	mr.FastForward(2 * time.Minute)

	report, _, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestCache_CorruptEntry(t *testing.T) {
	cache, mr := setupTestCache(t, time.Hour)
	require.NoError(t, mr.Set(resultPrefix+"bad", "{not json"))

	_, _, err := cache.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestNewCache_DefaultTTL(t *testing.T) {
	cache := NewCache(nil, 0)
	assert.Equal(t, DefaultTTL, cache.ttl)
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestConnect_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	client.Close()
}
