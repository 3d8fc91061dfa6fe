package service

import (
	"testing"
	"time"

	"trackfetch/internal/model"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(perMinute, burst int) (*RateLimitService, *time.Time) {
	rls := NewRateLimitService(&model.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: perMinute,
		BurstSize:         burst,
	})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rls.now = func() time.Time { return now }
	return rls, &now
}

func TestRateLimitService_Burst(t *testing.T) {
	rls, _ := newTestLimiter(60, 3)

	for i, wantRemaining := range []int{2, 1, 0} {
		ok, remaining := rls.Allow("1.2.3.4")
		assert.True(t, ok, "request %d", i)
		assert.Equal(t, wantRemaining, remaining)
	}

	ok, remaining := rls.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Zero(t, remaining)

	// other clients have their own bucket
	ok, _ = rls.Allow("5.6.7.8")
	assert.True(t, ok)
}

func TestRateLimitService_Refill(t *testing.T) {
	rls, now := newTestLimiter(60, 1)

	ok, _ := rls.Allow("ip")
	assert.True(t, ok)
	ok, _ = rls.Allow("ip")
	assert.False(t, ok)

	*now = now.Add(time.Second)
	ok, _ = rls.Allow("ip")
	assert.True(t, ok)
}

func TestRateLimitService_Disabled(t *testing.T) {
	rls := NewRateLimitService(&model.RateLimitConfig{Enabled: false})

	for i := 0; i < 100; i++ {
		ok, remaining := rls.Allow("ip")
		assert.True(t, ok)
		assert.Equal(t, -1, remaining)
	}
}

func TestRateLimitService_Cleanup(t *testing.T) {
	rls, now := newTestLimiter(60, 1)

	rls.Allow("idle")
	*now = now.Add(10 * time.Minute)
	rls.Allow("active")

	assert.Equal(t, 1, rls.cleanup(5*time.Minute))

	// the active bucket survives cleanup and stays drained
	ok, _ := rls.Allow("active")
	assert.False(t, ok)

	rls.Stop()
}
