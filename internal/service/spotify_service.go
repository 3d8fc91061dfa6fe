package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultSpotifyBaseURL  = "https://api.spotify.com/v1"
	defaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"
)

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyTrack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name        string         `json:"name"`
		ReleaseDate string         `json:"release_date"`
		Images      []spotifyImage `json:"images"`
	} `json:"album"`
	DurationMS   int    `json:"duration_ms"`
	Popularity   int    `json:"popularity"`
	TrackNumber  int    `json:"track_number"`
	DiscNumber   int    `json:"disc_number"`
	Explicit     bool   `json:"explicit"`
	PreviewURL   string `json:"preview_url"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyService looks up track metadata with an app-only (client credentials) token
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
}

// NewSpotifyService creates a Spotify client. Without client credentials every call
// returns ErrSpotifyDisabled.
func NewSpotifyService(cfg model.SpotifyConfig) *SpotifyService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSpotifyBaseURL
	}
	s := &SpotifyService{baseURL: strings.TrimRight(baseURL, "/")}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		logger.Logger.Warn("Spotify client credentials not configured, track lookup disabled")
		return s
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultSpotifyTokenURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}
	// the token source keeps using this context's client when it refreshes
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	s.httpClient = cc.Client(tokenCtx)
	s.httpClient.Timeout = timeout

	return s
}

// Enabled reports whether client credentials are configured
func (s *SpotifyService) Enabled() bool {
	return s.httpClient != nil
}

// SearchTracks runs a track search
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]model.Track, error) {
	if limit <= 0 || limit > 50 {
		limit = 12
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	var payload spotifySearchResponse
	if err := s.doRequest(ctx, "/search?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	tracks := make([]model.Track, 0, len(payload.Tracks.Items))
	for _, item := range payload.Tracks.Items {
		tracks = append(tracks, item.toTrack())
	}
	return tracks, nil
}

// GetTrack returns the full metadata of one track
func (s *SpotifyService) GetTrack(ctx context.Context, trackID string) (*model.TrackMetadata, error) {
	var t spotifyTrack
	if err := s.doRequest(ctx, "/tracks/"+url.PathEscape(trackID), &t); err != nil {
		return nil, err
	}

	return &model.TrackMetadata{
		Track:       t.toTrack(),
		ReleaseDate: t.Album.ReleaseDate,
		Popularity:  t.Popularity,
		TrackNumber: t.TrackNumber,
		DiscNumber:  t.DiscNumber,
		Explicit:    t.Explicit,
	}, nil
}

func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result interface{}) error {
	if !s.Enabled() {
		return ErrSpotifyDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Logger.Error("Spotify request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("spotify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return ErrTrackNotFound
	case resp.StatusCode >= 400:
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode spotify response: %w", err)
	}
	return nil
}

func (t spotifyTrack) toTrack() model.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	image := ""
	if len(t.Album.Images) > 0 {
		image = t.Album.Images[0].URL
	}

	return model.Track{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     strings.Join(artists, ", "),
		Album:       t.Album.Name,
		Image:       image,
		DurationMS:  t.DurationMS,
		Duration:    model.FormatDuration(t.DurationMS),
		PreviewURL:  t.PreviewURL,
		ExternalURL: t.ExternalURLs.Spotify,
	}
}
