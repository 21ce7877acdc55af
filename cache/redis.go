// Package cache keeps period report snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/palmapsd/production-ledger/billing"
)

const keyPrefix = "ledger:period-report:"

// ReportCache implements ledger.ReportCache. A nil client turns every call
// into a miss / no-op.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache instantiates the cache helper.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Connect dials addr and verifies the server answers. An empty addr yields
// a disabled cache.
func Connect(ctx context.Context, addr string, ttl time.Duration) (*ReportCache, error) {
	if addr == "" {
		return NewReportCache(nil, ttl), nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewReportCache(client, ttl), nil
}

func (c *ReportCache) enabled() bool { return c != nil && c.client != nil }

func key(id billing.PeriodID) string { return keyPrefix + string(id) }

// GetReport loads a cached report.
func (c *ReportCache) GetReport(ctx context.Context, id billing.PeriodID) (billing.PeriodReport, bool, error) {
	if !c.enabled() {
		return billing.PeriodReport{}, false, nil
	}
	payload, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return billing.PeriodReport{}, false, nil
	}
	if err != nil {
		return billing.PeriodReport{}, false, err
	}
	var report billing.PeriodReport
	if err := json.Unmarshal(payload, &report); err != nil {
		// unreadable entry: drop it and report a miss
		_ = c.client.Del(ctx, key(id)).Err()
		return billing.PeriodReport{}, false, nil
	}
	return report, true, nil
}

// SetReport stores report under its period id for the configured TTL.
func (c *ReportCache) SetReport(ctx context.Context, report billing.PeriodReport) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(report.Period.ID), raw, c.ttl).Err()
}

// Invalidate removes the reports of the given periods.
func (c *ReportCache) Invalidate(ctx context.Context, ids ...billing.PeriodID) error {
	if !c.enabled() || len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	seen := make(map[billing.PeriodID]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, key(id))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close releases the Redis connection.
func (c *ReportCache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.client.Close()
}
