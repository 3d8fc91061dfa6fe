package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trackfetch/config"
	"trackfetch/internal/handler"
	"trackfetch/internal/progress"
	"trackfetch/internal/service"
	"trackfetch/internal/storage"
	"trackfetch/pkg/logger"
	"trackfetch/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const (
	jobPruneInterval = time.Minute
	jobMaxAge        = 10 * time.Minute
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting trackfetch server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("youtube_keys", len(cfg.YouTube.APIKeys)),
	)

	// Work directories for in-flight downloads
	storageManager := storage.NewManager(&cfg.Storage)
	storageManager.Start()
	defer storageManager.Stop()

	// Progress registry shared by the download engine and the SSE publisher
	registry := progress.NewRegistry()
	registry.Start(jobPruneInterval, jobMaxAge)
	defer registry.Stop()
	publisher := progress.NewPublisher(registry, cfg.Progress.PollInterval, cfg.Progress.IdleTimeout)

	// Search
	keyPool := service.NewKeyPool(cfg.YouTube.APIKeys, cfg.YouTube.KeyCooldown)
	if len(cfg.YouTube.APIKeys) == 0 {
		logger.Logger.Warn("No YouTube API keys configured, video search will return no results")
	}
	youtubeService := service.NewYouTubeService(cfg.YouTube.BaseURL, cfg.YouTube.Timeout, keyPool)
	resolver := service.NewQueryResolver(youtubeService)

	// Audio
	ytdlpClient := service.NewYTDLPClient(cfg.Downloader.SocketTimeout, cfg.Downloader.FetchProgressInterval)
	audioService := service.NewAudioService(ytdlpClient)
	transcoder := service.NewFFmpegTranscoder(cfg.Downloader.FFmpegPath, cfg.Downloader.AudioBitrate)
	downloadService := service.NewDownloadService(ytdlpClient, transcoder, registry, storageManager, cfg.Downloader)

	// Track metadata
	spotifyService := service.NewSpotifyService(cfg.Spotify)
	deezerService := service.NewDeezerService(cfg.Deezer)

	// Initialize rate limit service
	rateLimitService := service.NewRateLimitService(&cfg.RateLimit)
	defer rateLimitService.Stop()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	videoHandler := handler.NewVideoHandler(resolver, keyPool, cfg)
	trackHandler := handler.NewTrackHandler(spotifyService, deezerService, resolver, cfg)
	downloadHandler := handler.NewDownloadHandler(downloadService, publisher, audioService, handler.NewStreamClient(cfg.Downloader.StreamHeaderTimeout))

	api := router.Group("/api")
	api.GET("/health", videoHandler.HealthCheck)

	limited := api.Group("")
	if cfg.RateLimit.Enabled {
		limited.Use(middleware.RateLimitMiddleware(rateLimitService))
		logger.Logger.Info("Rate limiting enabled",
			zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute),
			zap.Int("burst", cfg.RateLimit.BurstSize))
	}
	{
		limited.GET("/tracks/search", trackHandler.SearchTracks)
		limited.GET("/tracks/:id", trackHandler.GetTrack)
		limited.GET("/videos/search", videoHandler.SearchVideos)
		limited.GET("/keys/status", videoHandler.KeyStatus)

		limited.GET("/download/:id", downloadHandler.Download)
		limited.GET("/stream/:id", downloadHandler.Stream)
	}
	// The progress stream is polled alongside a running download and stays unthrottled
	api.GET("/download/:id/progress", downloadHandler.Progress)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Range", logger.RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", "Content-Length", "Content-Range", "X-RateLimit-Remaining", logger.RequestIDHeader},
		MaxAge:         300,
	})

	// WriteTimeout stays unset: downloads and progress streams outlive any fixed deadline
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     corsHandler.Handler(router),
		ReadTimeout: time.Duration(cfg.Server.Timeout) * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Logger.Info("Server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server stopped")
}
