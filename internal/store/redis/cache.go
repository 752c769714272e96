// Package redis caches finished audit reports by document content.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dgallion1/docaudit/internal/audit"
)

const resultPrefix = "docaudit:result:"

// DefaultTTL is how long a cached report stays valid.
const DefaultTTL = 24 * time.Hour

// Cache stores reports keyed by a content-derived key. Entries expire
// through Redis TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// cachedResult is the stored form of a report.
type cachedResult struct {
	ReportID string        `json:"report_id,omitempty"`
	Report   *audit.Report `json:"report"`
}

// Get returns the cached report and its stored report ID. A miss returns a
// nil report and no error.
func (c *Cache) Get(ctx context.Context, key string) (*audit.Report, string, error) {
	data, err := c.client.Get(ctx, resultPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get cached result: %w", err)
	}

	var cr cachedResult
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, "", fmt.Errorf("decode cached result: %w", err)
	}
	return cr.Report, cr.ReportID, nil
}

// Put stores a report under key with the cache TTL.
func (c *Cache) Put(ctx context.Context, key, reportID string, report *audit.Report) error {
	data, err := json.Marshal(cachedResult{ReportID: reportID, Report: report})
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}
	if err := c.client.Set(ctx, resultPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("store cached result: %w", err)
	}
	return nil
}
