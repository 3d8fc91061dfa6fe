package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"trackfetch/internal/model"
	"trackfetch/internal/service"
	"trackfetch/pkg/logger"
	"trackfetch/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const trackSearchLimit = 12

// TrackProvider looks up track metadata
type TrackProvider interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]model.Track, error)
	GetTrack(ctx context.Context, trackID string) (*model.TrackMetadata, error)
}

// PreviewProvider finds a preview clip when the metadata provider has none
type PreviewProvider interface {
	EnhancedPreview(ctx context.Context, artist, title string) *model.DeezerTrack
}

// TrackHandler handles track search and detail requests
type TrackHandler struct {
	tracks   TrackProvider
	previews PreviewProvider
	videos   VideoSearcher
	cfg      *model.Config
}

// NewTrackHandler creates a new track handler
func NewTrackHandler(tracks TrackProvider, previews PreviewProvider, videos VideoSearcher, cfg *model.Config) *TrackHandler {
	return &TrackHandler{
		tracks:   tracks,
		previews: previews,
		videos:   videos,
		cfg:      cfg,
	}
}

// SearchTracks handles GET /api/tracks/search. A track link, URI or id short-circuits to
// redirect_track_id instead of searching.
func (h *TrackHandler) SearchTracks(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_query",
			Message: "Search query is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if id, ok := validator.ExtractSpotifyTrackID(query); ok {
		c.JSON(http.StatusOK, model.TrackSearchResponse{
			Query:           query,
			Results:         []model.Track{},
			RedirectTrackID: id,
		})
		return
	}

	resp := model.TrackSearchResponse{Query: query, Results: []model.Track{}}
	tracks, err := h.tracks.SearchTracks(c.Request.Context(), query, trackSearchLimit)
	if err != nil {
		logger.Logger.Warn("Track search failed", zap.String("query", query), zap.Error(err))
		resp.Error = err.Error()
	} else if tracks != nil {
		resp.Results = tracks
	}

	c.JSON(http.StatusOK, resp)
}

// GetTrack handles GET /api/tracks/:id
func (h *TrackHandler) GetTrack(c *gin.Context) {
	trackID := c.Param("id")
	ctx := c.Request.Context()

	meta, err := h.tracks.GetTrack(ctx, trackID)
	if err != nil {
		status, code := http.StatusBadGateway, "lookup_failed"
		switch {
		case errors.Is(err, service.ErrTrackNotFound):
			status, code = http.StatusNotFound, "not_found"
		case errors.Is(err, service.ErrSpotifyDisabled):
			status, code = http.StatusServiceUnavailable, "provider_disabled"
		}
		logger.Logger.Warn("Track lookup failed", zap.String("track_id", trackID), zap.Error(err))
		c.JSON(status, model.ErrorResponse{
			Error:   code,
			Message: err.Error(),
			Code:    status,
		})
		return
	}

	resp := model.TrackDetailResponse{
		Track:        meta,
		YouTubeQuery: meta.Artists + " - " + meta.Name,
		YouTube:      []model.VideoResult{},
	}

	if meta.PreviewURL == "" && h.previews != nil {
		resp.Preview = h.previews.EnhancedPreview(ctx, meta.Artists, meta.Name)
	}

	res := h.videos.Search(ctx, resp.YouTubeQuery, h.cfg.YouTube.DefaultLimit)
	switch {
	case res.Status == service.SearchKeysExhausted:
		resp.YouTubeNotice = keysExhaustedMessage(h.cfg.YouTube.OperatorContact)
	case res.Status == service.SearchFound:
		resp.YouTube = res.Videos
	default:
		resp.YouTubeNotice = searchNotice(res)
	}

	c.JSON(http.StatusOK, resp)
}
