// Package snapcache memoizes metric snapshots for a short time.
//
// A snapshot is a pure function of the record store and the challenge
// configuration, so the cache key is a hash of both. Entries expire after a
// TTL; a changed record set hashes differently and misses immediately.
package snapcache

import (
	"encoding/binary"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pulse-metrics/pulse/internal/app/engagement"
	"github.com/pulse-metrics/pulse/internal/domain"
	"github.com/pulse-metrics/pulse/internal/infra/metrics"
)

// Defaults match the refresh cadence of a dashboard.
const (
	DefaultTTL  = 60 * time.Second
	DefaultSize = 64
)

// Cache is safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[uint64, domain.MetricsSnapshot]
	ttl time.Duration
}

// New creates a cache holding at most size snapshots for ttl each.
// A ttl <= 0 disables caching: every Snapshot call computes.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	c := &Cache{ttl: ttl}
	if ttl > 0 {
		c.lru = expirable.NewLRU[uint64, domain.MetricsSnapshot](size, nil, ttl)
	}
	return c
}

// Snapshot returns the snapshot for store and cfg, computing it on a miss.
// Callers receive their own copy and may modify it freely.
func (c *Cache) Snapshot(store domain.RecordStore, cfg engagement.ChallengeConfig) (domain.MetricsSnapshot, error) {
	if c.lru == nil {
		metrics.CacheMisses.Inc()
		return engagement.Compute(store, cfg)
	}

	key := Key(store, cfg)
	if snap, ok := c.lru.Get(key); ok {
		metrics.CacheHits.Inc()
		return snap.Clone(), nil
	}
	metrics.CacheMisses.Inc()

	snap, err := engagement.Compute(store, cfg)
	if err != nil {
		// Configuration errors are not cached.
		return domain.MetricsSnapshot{}, err
	}
	c.lru.Add(key, snap)
	return snap.Clone(), nil
}

// Purge drops every entry. Importers call it after writing records.
func (c *Cache) Purge() {
	if c.lru != nil {
		c.lru.Purge()
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// ─── Keying ─────────────────────────────────────────────────────────────────

// Key hashes a canonical encoding of every input that affects a snapshot.
// Notes do not influence any metric and are left out.
func Key(store domain.RecordStore, cfg engagement.ChallengeConfig) uint64 {
	h := xxhash.New()
	var buf [8]byte
	putInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	putString := func(s string) {
		putInt(int64(len(s)))
		h.WriteString(s)
	}

	putString(engagement.RuleSetVersion)

	daily := store.Daily()
	putInt(int64(len(daily)))
	for _, r := range daily {
		putInt(r.Date.Unix())
		for _, f := range domain.CounterFields() {
			putInt(int64(r.Value(f)))
		}
	}

	habits := store.Habits()
	dates := habits.Dates()
	putInt(int64(len(dates)))
	if len(dates) > 0 {
		putInt(dates[0].Unix())
	}
	for _, name := range habits.Habits() {
		putString(name)
		for _, done := range habits.Series(name) {
			if done {
				h.Write([]byte{1})
			} else {
				h.Write([]byte{0})
			}
		}
	}

	putInt(int64(cfg.WindowLength))
	putInt(int64(cfg.GoalTotal))
	putInt(int64(cfg.ElapsedDays))
	putString(string(cfg.TargetField))

	fields := make([]string, 0, len(cfg.DailyGoals))
	for f := range cfg.DailyGoals {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	putInt(int64(len(fields)))
	for _, f := range fields {
		putString(f)
		putInt(int64(cfg.DailyGoals[domain.Field(f)]))
	}
	if cfg.Today.IsZero() {
		putInt(0)
	} else {
		putInt(domain.DayOf(cfg.Today).Unix())
	}

	return h.Sum64()
}
