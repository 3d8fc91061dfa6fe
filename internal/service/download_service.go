package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trackfetch/internal/metrics"
	"trackfetch/internal/model"
	"trackfetch/internal/progress"
	"trackfetch/internal/storage"
	"trackfetch/pkg/logger"
	"trackfetch/pkg/validator"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	processingProgress   = 95
	maxSyntheticProgress = 99
	defaultJobTimeout    = 10 * time.Minute
	defaultProgressTick  = 500 * time.Millisecond
)

// FetchProgress is one byte-progress report from a Fetcher
type FetchProgress struct {
	Downloaded int64
	Total      int64 // 0 when unknown
	Estimated  int64 // 0 when unknown
}

// FetchResult is the raw media a Fetcher wrote to disk
type FetchResult struct {
	Path  string
	Title string
}

// Fetcher downloads the raw audio of a video into dir
type Fetcher interface {
	Fetch(ctx context.Context, videoID, dir string, onProgress func(FetchProgress)) (*FetchResult, error)
}

// Transcoder converts src into the delivered MP3 at dst
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// DownloadResult is the encoded payload handed back to the caller
type DownloadResult struct {
	Data     []byte
	Filename string
}

// DownloadService fetches and transcodes audio while publishing job state to the registry
type DownloadService struct {
	fetcher      Fetcher
	transcoder   Transcoder
	registry     *progress.Registry
	storage      *storage.Manager
	group        singleflight.Group
	jobTimeout   time.Duration
	progressTick time.Duration
}

// NewDownloadService creates a new download engine
func NewDownloadService(fetcher Fetcher, transcoder Transcoder, registry *progress.Registry, sm *storage.Manager, cfg model.DownloaderConfig) *DownloadService {
	s := &DownloadService{
		fetcher:      fetcher,
		transcoder:   transcoder,
		registry:     registry,
		storage:      sm,
		jobTimeout:   cfg.JobTimeout,
		progressTick: cfg.ProgressTick,
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	if s.progressTick <= 0 {
		s.progressTick = defaultProgressTick
	}
	return s
}

// StartDownload produces the MP3 for videoID. Concurrent calls for the same id share
// one job. The job runs detached from ctx: a caller that gives up stops waiting but
// the download still runs to completion or failure.
func (s *DownloadService) StartDownload(ctx context.Context, videoID string) (*DownloadResult, error) {
	if !validator.ValidateVideoID(videoID) {
		return nil, ErrInvalidVideoID
	}

	ch := s.group.DoChan(videoID, func() (interface{}, error) {
		return s.run(videoID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Logger.Debug("Download shared between callers", zap.String("video_id", videoID))
		}
		return res.Val.(*DownloadResult), nil
	}
}

func (s *DownloadService) run(videoID string) (*DownloadResult, error) {
	started := time.Now()
	metrics.ActiveDownloads.Inc()
	defer metrics.ActiveDownloads.Dec()

	s.registry.Set(model.DownloadJob{
		VideoID:  videoID,
		Status:   model.JobStarting,
		Progress: 0,
		Message:  "Starting download",
	})

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	result, err := s.download(ctx, videoID)
	if err != nil {
		s.fail(videoID, err)
		return nil, err
	}

	s.registry.Set(model.DownloadJob{
		VideoID:         videoID,
		Status:          model.JobCompleted,
		Progress:        100,
		Message:         fmt.Sprintf("Ready: %s (%s)", result.Filename, humanize.Bytes(uint64(len(result.Data)))),
		DownloadedBytes: int64(len(result.Data)),
		TotalBytes:      int64(len(result.Data)),
	})

	metrics.Downloads.WithLabelValues(string(model.JobCompleted)).Inc()
	metrics.DownloadDuration.Observe(time.Since(started).Seconds())
	logger.Logger.Info("Download completed",
		zap.String("video_id", videoID),
		zap.String("filename", result.Filename),
		zap.Int("size", len(result.Data)),
		zap.Duration("duration", time.Since(started)))

	return result, nil
}

func (s *DownloadService) download(ctx context.Context, videoID string) (*DownloadResult, error) {
	dir, err := s.storage.CreateWorkDir(videoID)
	if err != nil {
		return nil, err
	}
	defer s.storage.Release(dir)

	fetched, err := s.fetcher.Fetch(ctx, videoID, dir, func(p FetchProgress) {
		s.onFetchProgress(videoID, p)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	s.registry.Update(videoID, func(job *model.DownloadJob) bool {
		job.Status = model.JobProcessing
		job.Progress = processingProgress
		job.Message = "Converting to MP3"
		return true
	})

	dst := filepath.Join(dir, videoID+".mp3")
	stop := s.startSyntheticProgress(videoID)
	err = s.transcoder.Transcode(ctx, fetched.Path, dst)
	stop()
	if err != nil {
		return nil, fmt.Errorf("transcode failed: %w", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoded audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("transcoder produced an empty file")
	}
	if !s.storage.ValidateFileSize(int64(len(data))) {
		return nil, fmt.Errorf("file size exceeds maximum limit of %dMB", s.storage.MaxFileSizeMB())
	}

	return &DownloadResult{
		Data:     data,
		Filename: validator.BuildFilename(fetched.Title, videoID, "mp3"),
	}, nil
}

// onFetchProgress records byte progress while the job is still fetching
func (s *DownloadService) onFetchProgress(videoID string, p FetchProgress) {
	total := p.Total
	if total <= 0 {
		total = p.Estimated
	}

	pct := 0
	if total > 0 {
		pct = int(100 * p.Downloaded / total)
		if pct > 100 {
			pct = 100
		}
	}

	msg := "Downloaded " + humanize.Bytes(uint64(max(p.Downloaded, 0)))
	if total > 0 {
		msg += " of " + humanize.Bytes(uint64(total))
	}

	s.registry.Update(videoID, func(job *model.DownloadJob) bool {
		if job.Status != model.JobStarting && job.Status != model.JobDownloading {
			return false
		}
		job.Status = model.JobDownloading
		job.Progress = pct
		job.Message = msg
		job.DownloadedBytes = p.Downloaded
		job.TotalBytes = total
		return true
	})
}

// startSyntheticProgress advances a processing job from 96 to 99 every tick. The returned
// stop cancels the ticker and waits for it, so no synthetic write can land after stop returns.
func (s *DownloadService) startSyntheticProgress(videoID string) (stop func()) {
	done := make(chan struct{})
	quit := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.progressTick)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				if !s.registry.Update(videoID, advanceProcessing) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-done
		})
	}
}

// advanceProcessing bumps progress by one while the job is processing, never past 99
func advanceProcessing(job *model.DownloadJob) bool {
	if job.Status != model.JobProcessing || job.Progress >= maxSyntheticProgress {
		return false
	}
	if job.Progress < processingProgress+1 {
		job.Progress = processingProgress + 1
	} else {
		job.Progress++
	}
	return true
}

func (s *DownloadService) fail(videoID string, err error) {
	s.registry.Set(model.DownloadJob{
		VideoID:  videoID,
		Status:   model.JobError,
		Progress: 0,
		Message:  err.Error(),
	})
	metrics.Downloads.WithLabelValues(string(model.JobError)).Inc()
	logger.Logger.Error("Download failed", zap.String("video_id", videoID), zap.Error(err))
}
