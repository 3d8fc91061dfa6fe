package model

import "time"

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Logging    LoggingConfig
	RateLimit  RateLimitConfig
	YouTube    YouTubeConfig
	Spotify    SpotifyConfig
	Deezer     DeezerConfig
	Downloader DownloaderConfig
	Progress   ProgressConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	Timeout        int // seconds
	AllowedOrigins []string
}

// StorageConfig holds work directory configuration
type StorageConfig struct {
	WorkDir         string
	MaxAudioSizeMB  int
	CleanupInterval int // seconds
	WorkDirTTL      int // seconds an abandoned work directory is kept
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string
	FilePath     string
	RotationSize int64 // bytes
	MaxBackups   int
	MaxAge       int // days
}

// RateLimitConfig holds per-IP rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	BurstSize         int
	CleanupInterval   int // seconds
}

// YouTubeConfig holds YouTube Data API configuration
type YouTubeConfig struct {
	APIKeys         []string
	BaseURL         string
	Timeout         time.Duration
	KeyCooldown     time.Duration
	DefaultLimit    int
	OperatorContact string // shown to users when every key is exhausted
}

// SpotifyConfig holds Spotify Web API client credentials
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
}

// DeezerConfig holds Deezer API configuration
type DeezerConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DownloaderConfig holds media fetch and transcode configuration
type DownloaderConfig struct {
	FFmpegPath            string
	AudioBitrate          string        // e.g. "192k"
	SocketTimeout         int           // seconds, passed to yt-dlp
	JobTimeout            time.Duration
	ProgressTick          time.Duration // synthetic progress cadence while transcoding
	FetchProgressInterval time.Duration // how often yt-dlp reports byte progress
	StreamHeaderTimeout   time.Duration // wait for upstream headers on the stream proxy
}

// ProgressConfig holds progress stream configuration
type ProgressConfig struct {
	PollInterval time.Duration
	IdleTimeout  time.Duration // 0 waits forever for an unknown job
}
