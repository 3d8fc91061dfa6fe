package service

import (
	"sync"
	"time"

	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimitEntry is the token bucket of one client IP
type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitService applies a per-IP token bucket (requests per minute plus burst)
type RateLimitService struct {
	cfg      *model.RateLimitConfig
	limits   map[string]*rateLimitEntry
	mu       sync.Mutex
	now      func() time.Time
	quitChan chan bool
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(cfg *model.RateLimitConfig) *RateLimitService {
	service := &RateLimitService{
		cfg:      cfg,
		limits:   make(map[string]*rateLimitEntry),
		now:      time.Now,
		quitChan: make(chan bool, 1),
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go service.cleanupRoutine()
	}

	return service
}

func (rls *RateLimitService) entry(ip string) *rateLimitEntry {
	entry, ok := rls.limits[ip]
	if !ok {
		perMinute := rls.cfg.RequestsPerMinute
		if perMinute <= 0 {
			perMinute = 60
		}
		burst := rls.cfg.BurstSize
		if burst <= 0 {
			burst = 1
		}
		entry = &rateLimitEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		}
		rls.limits[ip] = entry
		logger.Logger.Debug("New rate limit entry created", zap.String("ip", ip))
	}
	entry.lastSeen = rls.now()
	return entry
}

// Allow consumes one token for ip and reports whether the request may proceed,
// along with the whole tokens left afterwards
func (rls *RateLimitService) Allow(ip string) (bool, int) {
	if !rls.cfg.Enabled {
		return true, -1
	}

	rls.mu.Lock()
	defer rls.mu.Unlock()

	entry := rls.entry(ip)
	now := rls.now()
	if !entry.limiter.AllowN(now, 1) {
		logger.Logger.Warn("Rate limit exceeded", zap.String("ip", ip), zap.Int("limit", rls.cfg.RequestsPerMinute))
		return false, 0
	}

	remaining := int(entry.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining
}

// cleanupRoutine periodically evicts idle limiters
func (rls *RateLimitService) cleanupRoutine() {
	ticker := time.NewTicker(time.Duration(rls.cfg.CleanupInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rls.quitChan:
			logger.Logger.Info("Rate limit service stopped")
			return
		case <-ticker.C:
			rls.cleanup(time.Duration(rls.cfg.CleanupInterval) * time.Second)
		}
	}
}

// cleanup removes limiters not used within idle
func (rls *RateLimitService) cleanup(idle time.Duration) int {
	rls.mu.Lock()
	defer rls.mu.Unlock()

	now := rls.now()
	removed := 0
	for ip, entry := range rls.limits {
		if now.Sub(entry.lastSeen) > idle {
			delete(rls.limits, ip)
			removed++
		}
	}

	if removed > 0 {
		logger.Logger.Debug("Rate limit entries cleaned up", zap.Int("removed", removed), zap.Int("remaining", len(rls.limits)))
	}
	return removed
}

// Stop stops the rate limit service
func (rls *RateLimitService) Stop() {
	select {
	case rls.quitChan <- true:
	default:
	}
}
