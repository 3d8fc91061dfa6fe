package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"trackfetch/internal/model"

	"github.com/joho/godotenv"
)

// Load loads configuration from environment variables
func Load() *model.Config {
	godotenv.Load()

	return &model.Config{
		Server: model.ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			Host:           getEnvStr("SERVER_HOST", "0.0.0.0"),
			Timeout:        getEnvInt("SERVER_TIMEOUT", 300),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", "*"),
		},
		Storage: model.StorageConfig{
			WorkDir:         getEnvStr("WORK_DIR", "./work"),
			MaxAudioSizeMB:  getEnvInt("MAX_AUDIO_SIZE_MB", 100),
			CleanupInterval: getEnvInt("STORAGE_CLEANUP_INTERVAL", 600),
			WorkDirTTL:      getEnvInt("WORK_DIR_TTL_SECONDS", 3600),
		},
		Logging: model.LoggingConfig{
			Level:        getEnvStr("LOG_LEVEL", "info"),
			FilePath:     getEnvStr("LOG_FILE", "./log/app.log"),
			RotationSize: getEnvInt64("LOG_ROTATION_SIZE", 104857600),
			MaxBackups:   getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAge:       getEnvInt("LOG_MAX_AGE", 7),
		},
		RateLimit: model.RateLimitConfig{
			Enabled:           getEnvBool("RATELIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATELIMIT_REQUESTS_PER_MINUTE", 60),
			BurstSize:         getEnvInt("RATELIMIT_BURST_SIZE", 10),
			CleanupInterval:   getEnvInt("RATELIMIT_CLEANUP_INTERVAL", 1800),
		},
		YouTube: model.YouTubeConfig{
			APIKeys:         loadAPIKeys(),
			BaseURL:         getEnvStr("YOUTUBE_API_BASE_URL", "https://www.googleapis.com/youtube/v3"),
			Timeout:         getEnvDuration("YOUTUBE_TIMEOUT", 15*time.Second),
			KeyCooldown:     getEnvDuration("YOUTUBE_KEY_COOLDOWN", time.Hour),
			DefaultLimit:    getEnvInt("YOUTUBE_RESULT_LIMIT", 6),
			OperatorContact: getEnvStr("OPERATOR_CONTACT", "the site administrator"),
		},
		Spotify: model.SpotifyConfig{
			ClientID:     getEnvStr("SPOTIFY_CLIENT_ID", ""),
			ClientSecret: getEnvStr("SPOTIFY_CLIENT_SECRET", ""),
			BaseURL:      getEnvStr("SPOTIFY_API_BASE_URL", "https://api.spotify.com/v1"),
			TokenURL:     getEnvStr("SPOTIFY_TOKEN_URL", "https://accounts.spotify.com/api/token"),
			Timeout:      getEnvDuration("SPOTIFY_TIMEOUT", 15*time.Second),
		},
		Deezer: model.DeezerConfig{
			BaseURL: getEnvStr("DEEZER_API_BASE_URL", "https://api.deezer.com"),
			Timeout: getEnvDuration("DEEZER_TIMEOUT", 10*time.Second),
		},
		Downloader: model.DownloaderConfig{
			FFmpegPath:            getEnvStr("FFMPEG_PATH", "ffmpeg"),
			AudioBitrate:          getEnvStr("MP3_BITRATE", "192k"),
			SocketTimeout:         getEnvInt("YTDLP_SOCKET_TIMEOUT", 30),
			JobTimeout:            getEnvDuration("DOWNLOAD_JOB_TIMEOUT", 10*time.Minute),
			ProgressTick:          getEnvDuration("PROCESSING_PROGRESS_TICK", 500*time.Millisecond),
			FetchProgressInterval: getEnvDuration("YTDLP_PROGRESS_INTERVAL", 250*time.Millisecond),
			StreamHeaderTimeout:   getEnvDuration("STREAM_HEADER_TIMEOUT", 15*time.Second),
		},
		Progress: model.ProgressConfig{
			PollInterval: getEnvDuration("PROGRESS_POLL_INTERVAL", 100*time.Millisecond),
			IdleTimeout:  getEnvDuration("PROGRESS_IDLE_TIMEOUT", 0),
		},
	}
}

// loadAPIKeys merges YOUTUBE_API_KEYS with the single-key YOUTUBE_API_KEY variable,
// dropping blanks and duplicates while keeping order.
func loadAPIKeys() []string {
	raw := strings.Split(getEnvStr("YOUTUBE_API_KEYS", ""), ",")
	raw = append(raw, getEnvStr("YOUTUBE_API_KEY", ""))

	seen := make(map[string]bool)
	var keys []string
	for _, k := range raw {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

func getEnvStr(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	valStr := getEnvStr(key, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	valStr := getEnvStr(key, "")
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	valStr := strings.ToLower(getEnvStr(key, ""))
	if valStr == "true" || valStr == "1" || valStr == "yes" {
		return true
	}
	if valStr == "false" || valStr == "0" || valStr == "no" {
		return false
	}
	return defaultVal
}

// getEnvDuration accepts Go duration strings ("500ms", "1h") or plain seconds
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := strings.TrimSpace(getEnvStr(key, ""))
	if valStr == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(valStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

func getEnvList(key, defaultVal string) []string {
	var out []string
	for _, item := range strings.Split(getEnvStr(key, defaultVal), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
