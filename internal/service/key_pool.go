package service

import (
	"sync"
	"time"

	"trackfetch/internal/metrics"
	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"go.uber.org/zap"
)

// DefaultKeyCooldown is how long a failed key stays out of rotation
const DefaultKeyCooldown = time.Hour

// keyFailure records why and when a key was disabled
type keyFailure struct {
	FailedAt time.Time
	Reason   string
}

// KeyPool rotates YouTube Data API keys, parking failed ones for a cooldown period
type KeyPool struct {
	keys     []string
	cursor   int
	failed   map[string]keyFailure
	cooldown time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewKeyPool creates a pool over keys in the given order
func NewKeyPool(keys []string, cooldown time.Duration) *KeyPool {
	if cooldown <= 0 {
		cooldown = DefaultKeyCooldown
	}

	pool := &KeyPool{
		keys:     append([]string(nil), keys...),
		failed:   make(map[string]keyFailure),
		cooldown: cooldown,
		now:      time.Now,
	}
	metrics.AvailableKeys.Set(float64(len(pool.keys)))
	return pool
}

// Current returns the key at the cursor, or false if the pool is empty
func (p *KeyPool) Current() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return "", false
	}
	return p.keys[p.cursor], true
}

// MarkFailed disables key. When key is the current key the cursor moves to the next key
// whose cooldown has expired, wrapping around; when every key is still cooling down the
// cursor stays put. A key that is no longer current leaves the cursor alone, so callers
// racing on the same failure rotate only once.
func (p *KeyPool) MarkFailed(key, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.failed[key] = keyFailure{FailedAt: now, Reason: reason}
	metrics.KeyRotations.Inc()

	logger.Logger.Warn("YouTube API key marked failed",
		zap.String("key", logger.KeyPrefix(key)),
		zap.String("reason", reason))

	defer p.availableLocked(now)

	n := len(p.keys)
	if n == 0 || p.keys[p.cursor] != key {
		return
	}

	idx := p.cursor
	for i := 0; i < n; i++ {
		idx = (idx + 1) % n
		candidate := p.keys[idx]

		if failure, ok := p.failed[candidate]; ok {
			if now.Sub(failure.FailedAt) < p.cooldown {
				continue
			}
			delete(p.failed, candidate)
			logger.Logger.Info("YouTube API key re-enabled", zap.String("key", logger.KeyPrefix(candidate)))
		}

		if idx != p.cursor {
			logger.Logger.Info("Switched YouTube API key", zap.String("key", logger.KeyPrefix(candidate)))
		}
		p.cursor = idx
		return
	}

	logger.Logger.Error("All YouTube API keys are cooling down", zap.Int("total_keys", n))
}

// AvailableCount returns the number of keys never failed or past their cooldown.
// Expired entries are left in place until the key is selected again.
func (p *KeyPool) AvailableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availableLocked(p.now())
}

// availableLocked counts usable keys and publishes the count to the AvailableKeys gauge
func (p *KeyPool) availableLocked(now time.Time) int {
	available := 0
	for _, key := range p.keys {
		failure, ok := p.failed[key]
		if !ok || now.Sub(failure.FailedAt) >= p.cooldown {
			available++
		}
	}
	metrics.AvailableKeys.Set(float64(available))
	return available
}

// Status summarizes the pool for operators
func (p *KeyPool) Status() model.KeyPoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := model.KeyPoolStatus{
		TotalKeys:     len(p.keys),
		AvailableKeys: p.availableLocked(p.now()),
		FailedKeys:    len(p.failed),
	}
	if len(p.keys) > 0 {
		status.CurrentKey = logger.KeyPrefix(p.keys[p.cursor])
	}
	return status
}
