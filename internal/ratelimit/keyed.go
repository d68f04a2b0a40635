package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/region-matcher/internal/metrics"
)

// KeyedConfig configures a KeyedLimiter.
type KeyedConfig struct {
	// Name labels metrics, e.g. "upload" or "record".
	Name string

	Burst      float64 // bucket capacity
	RefillRate float64 // tokens per second

	// Quota caps the records a key may submit per rolling 24h. 0 disables it.
	Quota int

	CleanupPeriod time.Duration

	Metrics *metrics.Metrics
}

// KeyedLimiter keeps one token bucket, and optionally one record quota, per
// key (normally the client IP). Idle keys are dropped by a cleanup loop.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	config  KeyedConfig
	stopCh  chan struct{}
	stop    sync.Once
}

// keyedEntry serializes the check-then-consume across both layers.
type keyedEntry struct {
	mu      sync.Mutex
	limiter *Limiter
	quota   *SlidingWindowCounter
}

// quotaWindow is the rolling window the record quota applies to.
const quotaWindow = 24 * time.Hour

// NewKeyedLimiter starts the cleanup loop; call Stop when done.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}
	kl := &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Allow consumes one request token for key. Empty keys are not limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	entry := kl.entry(key)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.quota.Check(1) || !entry.limiter.Check() {
		kl.dropped()
		return false
	}
	entry.limiter.Consume()
	return true
}

// AllowRecords charges n records against key's rolling quota without
// touching the request bucket.
func (kl *KeyedLimiter) AllowRecords(key string, n int) bool {
	if key == "" || kl.config.Quota <= 0 {
		return true
	}

	entry := kl.entry(key)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.quota.AllowN(n) {
		kl.dropped()
		return false
	}
	return true
}

// RetryAfter returns how long key must wait for its next request token.
func (kl *KeyedLimiter) RetryAfter(key string) time.Duration {
	kl.mu.RLock()
	entry, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return 0
	}
	return entry.limiter.RetryAfter()
}

// QuotaRemaining returns key's remaining record quota, or -1 when no quota
// is configured.
func (kl *KeyedLimiter) QuotaRemaining(key string) int {
	if kl.config.Quota <= 0 {
		return -1
	}

	kl.mu.RLock()
	entry, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return kl.config.Quota
	}
	return entry.quota.Remaining()
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

func (kl *KeyedLimiter) entry(key string) *keyedEntry {
	kl.mu.RLock()
	entry, ok := kl.entries[key]
	kl.mu.RUnlock()
	if ok {
		return entry
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	if entry, ok = kl.entries[key]; ok {
		return entry
	}
	entry = &keyedEntry{
		limiter: New(kl.config.Burst, kl.config.RefillRate),
		quota:   NewSlidingWindowCounter(kl.config.Quota, quotaWindow),
	}
	kl.entries[key] = entry
	return entry
}

func (kl *KeyedLimiter) dropped() {
	if kl.config.Metrics != nil {
		kl.config.Metrics.RecordRateLimiterDrop(kl.config.Name)
	}
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.cleanup()
		}
	}
}

// cleanup forgets keys whose bucket is full again. Keys still carrying
// quota usage are kept so the quota cannot be reset by idling.
func (kl *KeyedLimiter) cleanup() {
	kl.mu.Lock()
	for key, entry := range kl.entries {
		if !entry.limiter.IsFull() {
			continue
		}
		if entry.quota != nil && entry.quota.Remaining() < kl.config.Quota {
			continue
		}
		delete(kl.entries, key)
	}
	active := len(kl.entries)
	kl.mu.Unlock()

	if kl.config.Metrics != nil {
		kl.config.Metrics.SetRateLimiterClients(kl.config.Name, active)
	}
}

// Stop ends the cleanup loop. Safe to call more than once.
func (kl *KeyedLimiter) Stop() {
	kl.stop.Do(func() { close(kl.stopCh) })
}
