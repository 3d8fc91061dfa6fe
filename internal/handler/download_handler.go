package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trackfetch/internal/model"
	"trackfetch/internal/service"
	"trackfetch/pkg/logger"
	"trackfetch/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxFilenameLength          = 200
	defaultStreamHeaderTimeout = 15 * time.Second
	streamDialTimeout          = 10 * time.Second
)

// Downloader produces the MP3 for a video
type Downloader interface {
	StartDownload(ctx context.Context, videoID string) (*service.DownloadResult, error)
}

// ProgressSubscriber streams the progress of a download
type ProgressSubscriber interface {
	Subscribe(ctx context.Context, videoID string) <-chan model.ProgressEvent
}

// AudioResolver picks the best audio stream of a video
type AudioResolver interface {
	Resolve(ctx context.Context, videoID string) (*model.AudioSelection, error)
}

// DownloadHandler handles download, progress and stream requests
type DownloadHandler struct {
	downloads  Downloader
	progress   ProgressSubscriber
	audio      AudioResolver
	httpClient *http.Client
}

// NewStreamClient returns the client used by the stream proxy. Connecting and waiting for
// response headers are bounded; the body has no deadline so long streams are not cut off.
func NewStreamClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = defaultStreamHeaderTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: streamDialTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = streamDialTimeout
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// NewDownloadHandler creates a new download handler. httpClient fetches upstream
// audio for the stream proxy; nil uses NewStreamClient with the default timeout.
func NewDownloadHandler(downloads Downloader, progress ProgressSubscriber, audio AudioResolver, httpClient *http.Client) *DownloadHandler {
	if httpClient == nil {
		httpClient = NewStreamClient(0)
	}
	return &DownloadHandler{
		downloads:  downloads,
		progress:   progress,
		audio:      audio,
		httpClient: httpClient,
	}
}

func invalidVideoID(c *gin.Context, videoID string) bool {
	if validator.ValidateVideoID(videoID) {
		return false
	}
	logger.Logger.Warn("Invalid video ID", zap.String("video_id", videoID))
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Error:   "invalid_id",
		Message: "A valid YouTube video ID is required",
		Code:    http.StatusBadRequest,
	})
	return true
}

// Download handles GET /api/download/:id
func (h *DownloadHandler) Download(c *gin.Context) {
	videoID := c.Param("id")
	if invalidVideoID(c, videoID) {
		return
	}

	res, err := h.downloads.StartDownload(c.Request.Context(), videoID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Logger.Info("Client left before download finished", zap.String("video_id", videoID))
			return
		}
		logger.LogError("Download failed", err, zap.String("video_id", videoID))
		c.JSON(http.StatusBadGateway, model.ErrorResponse{
			Error:   "download_failed",
			Message: err.Error(),
			Code:    http.StatusBadGateway,
		})
		return
	}

	filename := validator.TruncateFilename(validator.SanitizeFilename(res.Filename), maxFilenameLength)
	c.Header("Content-Disposition", buildContentDispositionHeader("attachment", filename))
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Length", strconv.Itoa(len(res.Data)))
	c.Data(http.StatusOK, "audio/mpeg", res.Data)

	logger.Logger.Info("File downloaded by user",
		zap.String("video_id", videoID),
		zap.String("filename", filename),
		zap.Int("size", len(res.Data)))
}

// Progress handles GET /api/download/:id/progress as a server-sent event stream,
// one JSON object per event
func (h *DownloadHandler) Progress(c *gin.Context) {
	videoID := c.Param("id")
	if invalidVideoID(c, videoID) {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for event := range h.progress.Subscribe(c.Request.Context(), videoID) {
		data, err := json.Marshal(event)
		if err != nil {
			logger.Logger.Error("Failed to encode progress event", zap.Error(err))
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return
		}
		c.Writer.Flush()
	}
}

// Stream handles GET /api/stream/:id by proxying the selected audio stream
func (h *DownloadHandler) Stream(c *gin.Context) {
	videoID := c.Param("id")
	if invalidVideoID(c, videoID) {
		return
	}

	sel, err := h.audio.Resolve(c.Request.Context(), videoID)
	if err != nil {
		status, code := http.StatusBadGateway, "resolve_failed"
		if errors.Is(err, service.ErrNoAudioStream) {
			status, code = http.StatusNotFound, "no_audio"
		}
		c.JSON(status, model.ErrorResponse{
			Error:   code,
			Message: err.Error(),
			Code:    status,
		})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, sel.StreamURL, nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, model.ErrorResponse{
			Error:   "resolve_failed",
			Message: "Invalid upstream stream URL",
			Code:    http.StatusBadGateway,
		})
		return
	}
	if rng := c.GetHeader("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		logger.LogError("Upstream stream request failed", err, zap.String("video_id", videoID))
		c.JSON(http.StatusBadGateway, model.ErrorResponse{
			Error:   "stream_failed",
			Message: "Could not reach the audio stream",
			Code:    http.StatusBadGateway,
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		logger.LogWarn("Upstream stream rejected request",
			zap.String("video_id", videoID),
			zap.Int("status", resp.StatusCode))
		c.JSON(http.StatusBadGateway, model.ErrorResponse{
			Error:   "stream_failed",
			Message: fmt.Sprintf("Upstream returned status %d", resp.StatusCode),
			Code:    http.StatusBadGateway,
		})
		return
	}

	headers := map[string]string{
		"Content-Disposition": buildContentDispositionHeader("inline", validator.SanitizeFilename(sel.Filename)),
		"Cache-Control":       "no-store",
		"Accept-Ranges":       "bytes",
	}
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		headers["Content-Range"] = cr
	}

	c.DataFromReader(resp.StatusCode, resp.ContentLength, sel.MimeType, io.Reader(resp.Body), headers)
}

// buildContentDispositionHeader builds a Content-Disposition header with an ASCII
// fallback and, when needed, an RFC 5987 encoded UTF-8 filename
func buildContentDispositionHeader(disposition, filename string) string {
	needsEncoding := false
	for _, r := range filename {
		if r > 127 || r == '"' || r == '\\' || r == ';' || r == ',' {
			needsEncoding = true
			break
		}
	}

	if !needsEncoding {
		return fmt.Sprintf(`%s; filename="%s"`, disposition, filename)
	}

	fallback := strings.Map(func(r rune) rune {
		if r > 127 || r == '"' || r == '\\' || r == ';' || r == ',' {
			return '_'
		}
		return r
	}, filename)

	// PathEscape keeps spaces as %20 rather than "+"
	return fmt.Sprintf(`%s; filename="%s"; filename*=UTF-8''%s`, disposition, fallback, url.PathEscape(filename))
}
