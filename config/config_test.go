package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEYS", "")
	t.Setenv("YOUTUBE_API_KEY", "")

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.YouTube.KeyCooldown)
	assert.Equal(t, 15*time.Second, cfg.YouTube.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Progress.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Downloader.ProgressTick)
	assert.Equal(t, 250*time.Millisecond, cfg.Downloader.FetchProgressInterval)
	assert.Equal(t, 15*time.Second, cfg.Downloader.StreamHeaderTimeout)
	assert.Zero(t, cfg.Progress.IdleTimeout)
	assert.Empty(t, cfg.YouTube.APIKeys)
}

func TestLoadAPIKeys(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEYS", " key-a, key-b ,,key-a")
	t.Setenv("YOUTUBE_API_KEY", "key-c")

	assert.Equal(t, []string{"key-a", "key-b", "key-c"}, loadAPIKeys())
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "go duration", value: "250ms", want: 250 * time.Millisecond},
		{name: "plain seconds", value: "30", want: 30 * time.Second},
		{name: "garbage falls back", value: "soon", want: time.Minute},
		{name: "empty falls back", value: "", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	assert.True(t, getEnvBool("TEST_BOOL", false))

	t.Setenv("TEST_BOOL", "0")
	assert.False(t, getEnvBool("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "maybe")
	assert.True(t, getEnvBool("TEST_BOOL", true))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", "a, b,,c ")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST", ""))
}
