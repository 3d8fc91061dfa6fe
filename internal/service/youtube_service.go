package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

const (
	defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"
	defaultSearchLimit    = 6
	watchURLTemplate      = "https://www.youtube.com/watch?v=%s"
)

type thumbnail struct {
	URL string `json:"url"`
}

type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
		PublishedAt  string `json:"publishedAt"`
		Thumbnails   struct {
			Default *thumbnail `json:"default"`
			Medium  *thumbnail `json:"medium"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

type apiErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Errors  []struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"errors"`
}

type searchResponse struct {
	Items []searchItem  `json:"items"`
	Error *apiErrorBody `json:"error"`
}

// YouTubeService calls the YouTube Data API search endpoint with keys from a KeyPool
type YouTubeService struct {
	baseURL    string
	httpClient *http.Client
	keys       *KeyPool
}

// NewYouTubeService creates a new YouTube search client
func NewYouTubeService(baseURL string, timeout time.Duration, keys *KeyPool) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYouTubeBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &YouTubeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		keys:       keys,
	}
}

// SearchVariant searches one query, rotating keys on credential failures. It makes at most
// AvailableCount()+1 attempts. Any non-credential failure ends the search at once.
func (s *YouTubeService) SearchVariant(ctx context.Context, query string, limit int) SearchResult {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var videos []model.VideoResult
	attempts := uint(s.keys.AvailableCount() + 1)

	err := retry.Do(
		func() error {
			key, ok := s.keys.Current()
			if !ok {
				return ErrNoCredentials
			}

			items, err := s.search(ctx, key, query, limit)
			if err != nil {
				var ce *CredentialError
				if errors.As(err, &ce) {
					s.keys.MarkFailed(key, ce.Reason)
				}
				return err
			}

			videos = items
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isCredentialError),
		retry.Context(ctx),
	)

	switch {
	case err == nil && len(videos) > 0:
		return SearchResult{Status: SearchFound, Videos: videos}
	case err == nil:
		return SearchResult{Status: SearchNoResults}
	case errors.Is(err, ErrNoCredentials):
		logger.Logger.Warn("YouTube search skipped: no API key", zap.String("query", query))
		return SearchResult{Status: SearchNoResults, Err: err}
	case isCredentialError(err):
		logger.Logger.Error("YouTube search failed: keys exhausted",
			zap.String("query", query),
			zap.Uint("attempts", attempts),
			zap.Error(err))
		return SearchResult{Status: SearchKeysExhausted, Err: fmt.Errorf("%w: %v", ErrKeysExhausted, err)}
	default:
		logger.Logger.Warn("YouTube search failed", zap.String("query", query), zap.Error(err))
		return SearchResult{Status: SearchFailed, Err: err}
	}
}

// search performs a single search.list call with key
func (s *YouTubeService) search(ctx context.Context, key, query string, limit int) ([]model.VideoResult, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("type", "video")
	params.Set("safeSearch", "none")
	params.Set("key", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	payload, err := classifySearchResponse(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	results := make([]model.VideoResult, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, toVideoResult(item))
	}
	return results, nil
}

// classifySearchResponse sorts a response into success, *CredentialError or *APIError.
// HTTP 400/403, an error envelope coded 400/403 (sometimes sent with status 200), or an
// error message mentioning "quota" or "key" blame the credential. Anything else is fatal.
func classifySearchResponse(status int, body []byte) (*searchResponse, error) {
	var payload searchResponse
	decodeErr := json.Unmarshal(body, &payload)

	message := ""
	code := 0
	if decodeErr == nil && payload.Error != nil {
		message = payload.Error.Message
		code = payload.Error.Code
		if message == "" && len(payload.Error.Errors) > 0 {
			message = payload.Error.Errors[0].Reason
		}
	}

	if status == http.StatusBadRequest || status == http.StatusForbidden {
		return nil, &CredentialError{StatusCode: status, Reason: reasonOrStatus(message, status)}
	}

	if payload.Error != nil {
		if code == http.StatusBadRequest || code == http.StatusForbidden || mentionsCredential(message) {
			return nil, &CredentialError{StatusCode: code, Reason: reasonOrStatus(message, code)}
		}
		return nil, &APIError{StatusCode: status, Message: message}
	}

	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status}
	}
	if decodeErr != nil {
		return nil, &APIError{StatusCode: status, Message: fmt.Sprintf("malformed response: %v", decodeErr)}
	}
	return &payload, nil
}

func mentionsCredential(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "quota") || strings.Contains(m, "key")
}

func reasonOrStatus(message string, status int) string {
	if message != "" {
		return message
	}
	return http.StatusText(status)
}

func toVideoResult(item searchItem) model.VideoResult {
	thumb := ""
	switch {
	case item.Snippet.Thumbnails.Medium != nil && item.Snippet.Thumbnails.Medium.URL != "":
		thumb = item.Snippet.Thumbnails.Medium.URL
	case item.Snippet.Thumbnails.Default != nil:
		thumb = item.Snippet.Thumbnails.Default.URL
	}

	return model.VideoResult{
		VideoID:     item.ID.VideoID,
		Title:       item.Snippet.Title,
		Channel:     item.Snippet.ChannelTitle,
		PublishedAt: item.Snippet.PublishedAt,
		Thumbnail:   thumb,
		URL:         fmt.Sprintf(watchURLTemplate, item.ID.VideoID),
	}
}
