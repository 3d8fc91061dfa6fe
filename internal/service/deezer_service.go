package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"go.uber.org/zap"
)

const defaultDeezerBaseURL = "https://api.deezer.com"

var (
	featuringSuffix = regexp.MustCompile(`(?i)\s+(feat\.?|ft\.?|featuring)(\s.*)?$`)
	parenthesised   = regexp.MustCompile(`\s*\([^)]*\)`)
)

type deezerSearchResponse struct {
	Data []struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Preview  string `json:"preview"`
		Duration int    `json:"duration"`
		Link     string `json:"link"`
		Artist   struct {
			Name string `json:"name"`
		} `json:"artist"`
		Album struct {
			Title       string `json:"title"`
			CoverMedium string `json:"cover_medium"`
		} `json:"album"`
	} `json:"data"`
}

// DeezerService finds 30-second previews for tracks the metadata provider has none for
type DeezerService struct {
	baseURL    string
	httpClient *http.Client
}

// NewDeezerService creates a new Deezer client
func NewDeezerService(cfg model.DeezerConfig) *DeezerService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultDeezerBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DeezerService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SearchTrack returns the top Deezer hit for artist and title, or nil. Failures are logged, not returned.
func (s *DeezerService) SearchTrack(ctx context.Context, artist, title string) *model.DeezerTrack {
	track, err := s.search(ctx, strings.TrimSpace(artist+" "+title))
	if err != nil {
		logger.Logger.Warn("Deezer search failed",
			zap.String("artist", artist),
			zap.String("title", title),
			zap.Error(err))
		return nil
	}
	return track
}

// EnhancedPreview tries a few spellings of the artist and returns the first hit that has a preview
func (s *DeezerService) EnhancedPreview(ctx context.Context, artist, title string) *model.DeezerTrack {
	for _, variant := range ArtistVariants(artist) {
		if track := s.SearchTrack(ctx, variant, title); track != nil && track.PreviewURL != "" {
			return track
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (s *DeezerService) search(ctx context.Context, query string) (*model.DeezerTrack, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	var payload deezerSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}

	hit := payload.Data[0]
	return &model.DeezerTrack{
		ID:         hit.ID,
		Title:      hit.Title,
		Artist:     hit.Artist.Name,
		Album:      hit.Album.Title,
		PreviewURL: hit.Preview,
		Duration:   hit.Duration,
		Link:       hit.Link,
		Cover:      hit.Album.CoverMedium,
	}, nil
}

// CleanArtistName drops featuring credits and parenthesised parts
func CleanArtistName(artist string) string {
	artist = featuringSuffix.ReplaceAllString(artist, "")
	artist = parenthesised.ReplaceAllString(artist, "")
	return strings.TrimSpace(artist)
}

// ArtistVariants lists the artist spellings to try: cleaned, raw, then the first
// name of a comma or ampersand separated list
func ArtistVariants(artist string) []string {
	clean := CleanArtistName(artist)
	candidates := []string{
		clean,
		strings.TrimSpace(artist),
		strings.TrimSpace(strings.Split(clean, ",")[0]),
		strings.TrimSpace(strings.Split(clean, "&")[0]),
	}

	variants := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		variants = append(variants, c)
	}
	return variants
}
