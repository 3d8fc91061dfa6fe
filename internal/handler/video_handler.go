package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"trackfetch/internal/model"
	"trackfetch/internal/service"
	"trackfetch/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxSearchLimit = 25

// VideoSearcher resolves a free-text query to YouTube videos
type VideoSearcher interface {
	Search(ctx context.Context, query string, limit int) service.SearchResult
}

// KeyStatusProvider reports the state of the API key pool
type KeyStatusProvider interface {
	Status() model.KeyPoolStatus
}

// VideoHandler handles video search requests
type VideoHandler struct {
	searcher VideoSearcher
	keys     KeyStatusProvider
	cfg      *model.Config
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(searcher VideoSearcher, keys KeyStatusProvider, cfg *model.Config) *VideoHandler {
	return &VideoHandler{
		searcher: searcher,
		keys:     keys,
		cfg:      cfg,
	}
}

// SearchVideos handles GET /api/videos/search
func (h *VideoHandler) SearchVideos(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		logger.Logger.Warn("Empty search query")
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_query",
			Message: "Search query is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	limit := h.cfg.YouTube.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSearchLimit {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Error:   "invalid_limit",
				Message: fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit),
				Code:    http.StatusBadRequest,
			})
			return
		}
		limit = n
	}

	res := h.searcher.Search(c.Request.Context(), query, limit)
	if res.Status == service.SearchKeysExhausted {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error:   "keys_exhausted",
			Message: keysExhaustedMessage(h.cfg.YouTube.OperatorContact),
			Code:    http.StatusServiceUnavailable,
		})
		return
	}

	c.JSON(http.StatusOK, model.VideoSearchResponse{
		Query:   query,
		Results: nonNilVideos(res.Videos),
		Notice:  searchNotice(res),
	})
}

// KeyStatus handles GET /api/keys/status
func (h *VideoHandler) KeyStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.keys.Status())
}

// HealthCheck handles GET /api/health
func (h *VideoHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "trackfetch",
	})
}

// keysExhaustedMessage is shown instead of results when every API key is cooling down
func keysExhaustedMessage(contact string) string {
	msg := "YouTube search is unavailable: all API keys have run out of quota."
	if contact != "" {
		msg += " Please contact " + contact + " to add or renew keys."
	}
	return msg
}

// searchNotice explains an empty result list, or returns "" when there are results
func searchNotice(res service.SearchResult) string {
	switch {
	case res.Status == service.SearchFound:
		return ""
	case res.Err != nil:
		return "YouTube search is temporarily unavailable."
	default:
		return "No videos found."
	}
}

func nonNilVideos(v []model.VideoResult) []model.VideoResult {
	if v == nil {
		return []model.VideoResult{}
	}
	return v
}
