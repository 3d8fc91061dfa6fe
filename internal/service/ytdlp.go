package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// audioFormat makes yt-dlp pick a single audio stream, so the top-level url/ext of the
// info JSON is playable when no audio-only format is listed
const audioFormat = "bestaudio/best"

// YTDLPClient extracts stream info and fetches audio through the yt-dlp binary
type YTDLPClient struct {
	socketTimeout    int
	progressInterval time.Duration
}

const (
	defaultSocketTimeout         = 30
	defaultFetchProgressInterval = 250 * time.Millisecond
)

// NewYTDLPClient creates a yt-dlp backed extractor and fetcher. progressInterval is how
// often Fetch reports byte progress.
func NewYTDLPClient(socketTimeout int, progressInterval time.Duration) *YTDLPClient {
	if socketTimeout <= 0 {
		socketTimeout = defaultSocketTimeout
	}
	if progressInterval <= 0 {
		progressInterval = defaultFetchProgressInterval
	}
	return &YTDLPClient{socketTimeout: socketTimeout, progressInterval: progressInterval}
}

func watchURL(videoID string) string {
	return fmt.Sprintf(watchURLTemplate, videoID)
}

// ExtractInfo dumps the info JSON of a video without downloading it
func (c *YTDLPClient) ExtractInfo(ctx context.Context, videoID string) (*model.MediaInfo, error) {
	res, err := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, c.infoArgs(videoID)...)
	if err != nil {
		return nil, ytdlpError(res, err)
	}

	var info model.MediaInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	return &info, nil
}

// infoArgs are the arguments of the info dump for videoID
func (c *YTDLPClient) infoArgs(videoID string) []string {
	return []string{
		"--format", audioFormat,
		"--dump-single-json",
		"--skip-download",
		"--socket-timeout", strconv.Itoa(c.socketTimeout),
		watchURL(videoID),
	}
}

// Fetch downloads the best audio stream of videoID into dir
func (c *YTDLPClient) Fetch(ctx context.Context, videoID, dir string, onProgress func(FetchProgress)) (*FetchResult, error) {
	var (
		mu    sync.Mutex
		title string
	)

	cmd := ytdlp.New().
		Format(audioFormat).
		Output(filepath.Join(dir, "%(id)s.%(ext)s")).
		NoPlaylist().
		NoPart().
		ForceOverwrites().
		NoWarnings().
		IgnoreConfig()

	cmd.ProgressFunc(c.progressInterval, func(update ytdlp.ProgressUpdate) {
		if update.Info != nil && update.Info.Title != nil {
			mu.Lock()
			title = *update.Info.Title
			mu.Unlock()
		}
		if onProgress != nil {
			onProgress(FetchProgress{
				Downloaded: int64(update.DownloadedBytes),
				Total:      int64(update.TotalBytes),
			})
		}
	})

	res, err := cmd.Run(ctx, "--socket-timeout", strconv.Itoa(c.socketTimeout), watchURL(videoID))
	if err != nil {
		return nil, ytdlpError(res, err)
	}

	mu.Lock()
	defer mu.Unlock()

	path := ""
	if infos, err := res.GetExtractedInfo(); err == nil && len(infos) > 0 {
		if infos[0].Filename != nil {
			path = *infos[0].Filename
		}
		if title == "" && infos[0].Title != nil {
			title = *infos[0].Title
		}
	}
	if path == "" {
		if path, err = findDownloaded(dir, videoID); err != nil {
			return nil, err
		}
	}

	logger.Logger.Debug("yt-dlp fetch finished", zap.String("video_id", videoID), zap.String("path", path))
	return &FetchResult{Path: path, Title: title}, nil
}

// findDownloaded locates the file yt-dlp wrote for videoID when it did not report one
func findDownloaded(dir, videoID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, videoID+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if st, err := os.Stat(m); err == nil && st.Mode().IsRegular() && st.Size() > 0 {
			return m, nil
		}
	}
	return "", errors.New("yt-dlp produced no output file")
}

func ytdlpError(res *ytdlp.Result, err error) error {
	if res == nil {
		return fmt.Errorf("yt-dlp failed: %w", err)
	}
	stderr := strings.TrimSpace(res.Stderr)
	if stderr == "" {
		return fmt.Errorf("yt-dlp failed: %w", err)
	}
	if lines := strings.Split(stderr, "\n"); len(lines) > 0 {
		stderr = lines[len(lines)-1]
	}
	return fmt.Errorf("yt-dlp failed: %w: %s", err, stderr)
}
