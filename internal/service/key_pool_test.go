package service

import (
	"sync"
	"testing"
	"time"

	"trackfetch/internal/metrics"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPool(keys ...string) (*KeyPool, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	pool := NewKeyPool(keys, time.Hour)
	pool.now = clock.Now
	return pool, clock
}

func TestKeyPool_Healthy(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		keys := make([]string, n)
		for i := range keys {
			keys[i] = string(rune('a'+i)) + "-key"
		}
		pool, _ := newTestPool(keys...)

		assert.Equal(t, n, pool.AvailableCount())
		for i := 0; i < 3; i++ {
			key, ok := pool.Current()
			require.True(t, ok)
			assert.Equal(t, "a-key", key)
		}
	}
}

func TestKeyPool_EmptyPool(t *testing.T) {
	pool, _ := newTestPool()

	_, ok := pool.Current()
	assert.False(t, ok)
	assert.Zero(t, pool.AvailableCount())

	pool.MarkFailed("ghost", "quota")
	_, ok = pool.Current()
	assert.False(t, ok)
}

func TestKeyPool_MarkFailedRotates(t *testing.T) {
	pool, _ := newTestPool("k1", "k2", "k3")

	pool.MarkFailed("k1", "quotaExceeded")
	key, _ := pool.Current()
	assert.Equal(t, "k2", key)
	assert.Equal(t, 2, pool.AvailableCount())

	pool.MarkFailed("k2", "keyInvalid")
	key, _ = pool.Current()
	assert.Equal(t, "k3", key)
	assert.Equal(t, 1, pool.AvailableCount())
}

func TestKeyPool_SkipsCoolingKeysAndWraps(t *testing.T) {
	pool, clock := newTestPool("k1", "k2", "k3")

	pool.MarkFailed("k1", "quota")
	clock.Advance(time.Minute)
	pool.MarkFailed("k2", "quota")
	key, _ := pool.Current()
	require.Equal(t, "k3", key)

	// k1 and k2 still cooling down: k3 failing leaves the cursor unchanged
	pool.MarkFailed("k3", "quota")
	key, _ = pool.Current()
	assert.Equal(t, "k3", key)
	assert.Zero(t, pool.AvailableCount())
}

func TestKeyPool_SingleKeyStaysPut(t *testing.T) {
	pool, _ := newTestPool("only")

	pool.MarkFailed("only", "quota")
	key, ok := pool.Current()
	require.True(t, ok)
	assert.Equal(t, "only", key)
	assert.Zero(t, pool.AvailableCount())
}

func TestKeyPool_CooldownExpiry(t *testing.T) {
	pool, clock := newTestPool("k1", "k2")

	pool.MarkFailed("k1", "quota")
	clock.Advance(30 * time.Minute)
	pool.MarkFailed("k2", "quota")
	assert.Zero(t, pool.AvailableCount())

	clock.Advance(31 * time.Minute)

	// k1 is past cooldown: counted as available but still tracked until selected
	assert.Equal(t, 1, pool.AvailableCount())
	assert.Equal(t, 2, pool.Status().FailedKeys)

	// cursor is on k2 (cooling); the next rotation picks k1 and clears its entry
	key, _ := pool.Current()
	require.Equal(t, "k2", key)
	pool.MarkFailed("k2", "quota again")
	key, _ = pool.Current()
	assert.Equal(t, "k1", key)
	assert.Equal(t, 1, pool.Status().FailedKeys)
}

func TestKeyPool_Status(t *testing.T) {
	pool, _ := newTestPool("AIzaSyA-first-key", "AIzaSyB-second-key")
	pool.MarkFailed("AIzaSyA-first-key", "quota")

	status := pool.Status()
	assert.Equal(t, 2, status.TotalKeys)
	assert.Equal(t, 1, status.AvailableKeys)
	assert.Equal(t, 1, status.FailedKeys)
	assert.Equal(t, "AIzaSyB-se...", status.CurrentKey)
}

func TestKeyPool_DefaultCooldown(t *testing.T) {
	pool := NewKeyPool([]string{"k"}, 0)
	assert.Equal(t, DefaultKeyCooldown, pool.cooldown)
}

func TestKeyPool_StaleFailureKeepsCursor(t *testing.T) {
	pool, _ := newTestPool("k1", "k2", "k3")

	// both callers saw k1 fail; only the first one rotates
	pool.MarkFailed("k1", "quota")
	pool.MarkFailed("k1", "quota")

	key, _ := pool.Current()
	assert.Equal(t, "k2", key)
	assert.Equal(t, 2, pool.AvailableCount())
}

func TestKeyPool_ConcurrentFailuresRotateOnce(t *testing.T) {
	pool, _ := newTestPool("k1", "k2", "k3")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.MarkFailed("k1", "quota")
		}()
	}
	wg.Wait()

	key, _ := pool.Current()
	assert.Equal(t, "k2", key)
}

func availableKeysGauge(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.AvailableKeys.Write(&m))
	return m.GetGauge().GetValue()
}

func TestKeyPool_GaugeFollowsCooldownExpiry(t *testing.T) {
	pool, clock := newTestPool("k1", "k2")

	pool.MarkFailed("k1", "quota")
	assert.Equal(t, float64(1), availableKeysGauge(t))

	clock.Advance(61 * time.Minute)
	assert.Equal(t, 2, pool.Status().AvailableKeys)
	assert.Equal(t, float64(2), availableKeysGauge(t))

	pool.MarkFailed("k2", "quota")
	clock.Advance(61 * time.Minute)
	assert.Equal(t, 2, pool.AvailableCount())
	assert.Equal(t, float64(2), availableKeysGauge(t))
}
