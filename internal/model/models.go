package model

import (
	"fmt"
	"time"
)

// VideoResult is a normalized YouTube search hit
type VideoResult struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	PublishedAt string `json:"published_at"`
	Thumbnail   string `json:"thumbnail"`
	URL         string `json:"url"`
}

// Track is a track returned by the metadata provider search
type Track struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Artists     string `json:"artists"`
	Album       string `json:"album"`
	Image       string `json:"image"`
	DurationMS  int    `json:"duration_ms"`
	Duration    string `json:"duration"`
	PreviewURL  string `json:"preview_url"`
	ExternalURL string `json:"external_url"`
}

// TrackMetadata is the full metadata of a single track
type TrackMetadata struct {
	Track
	ReleaseDate string `json:"release_date"`
	Popularity  int    `json:"popularity"`
	TrackNumber int    `json:"track_number"`
	DiscNumber  int    `json:"disc_number"`
	Explicit    bool   `json:"explicit"`
}

// DeezerTrack is the best Deezer match used for preview enrichment
type DeezerTrack struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	PreviewURL string `json:"preview_url"`
	Duration   int    `json:"duration"`
	Link       string `json:"link"`
	Cover      string `json:"cover"`
}

// MediaInfo is the subset of yt-dlp's info JSON needed to pick an audio stream
type MediaInfo struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	URL     string        `json:"url"`
	Ext     string        `json:"ext"`
	Formats []MediaFormat `json:"formats"`
}

// MediaFormat is one fetchable stream reported by yt-dlp
type MediaFormat struct {
	FormatID   string   `json:"format_id"`
	Extension  string   `json:"ext"`
	VideoCodec string   `json:"vcodec"`
	AudioCodec string   `json:"acodec"`
	ABR        *float64 `json:"abr"`
	TBR        *float64 `json:"tbr"`
	URL        string   `json:"url"`
}

// AudioOnly reports whether the format carries no video track
func (f MediaFormat) AudioOnly() bool {
	return f.VideoCodec == "" || f.VideoCodec == "none"
}

// Bitrate returns abr, else tbr, else 0
func (f MediaFormat) Bitrate() float64 {
	if f.ABR != nil {
		return *f.ABR
	}
	if f.TBR != nil {
		return *f.TBR
	}
	return 0
}

// AudioSelection is the resolved best audio stream for a video
type AudioSelection struct {
	VideoID   string
	Title     string
	StreamURL string
	Extension string
	MimeType  string
	Filename  string
	Bitrate   float64
}

// JobStatus is the state of a download job
type JobStatus string

const (
	JobStarting    JobStatus = "starting"
	JobDownloading JobStatus = "downloading"
	JobProcessing  JobStatus = "processing"
	JobCompleted   JobStatus = "completed"
	JobError       JobStatus = "error"
)

// IsTerminal reports whether no further transitions follow
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobError
}

// DownloadJob is the registry entry for one in-flight download
type DownloadJob struct {
	VideoID         string
	Status          JobStatus
	Progress        int
	Message         string
	DownloadedBytes int64
	TotalBytes      int64
	UpdatedAt       time.Time
}

// Event converts the job to its wire representation
func (j DownloadJob) Event() ProgressEvent {
	return ProgressEvent{
		Status:   string(j.Status),
		Progress: clampProgress(j.Progress),
		Message:  j.Message,
	}
}

// ProgressEvent is one event delivered on the progress stream
type ProgressEvent struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// KeyPoolStatus summarizes the credential pool for operators
type KeyPoolStatus struct {
	TotalKeys     int    `json:"total_keys"`
	AvailableKeys int    `json:"available_keys"`
	CurrentKey    string `json:"current_key,omitempty"`
	FailedKeys    int    `json:"failed_keys"`
}

// VideoSearchResponse is returned by the video search endpoint
type VideoSearchResponse struct {
	Query   string        `json:"query"`
	Results []VideoResult `json:"results"`
	Notice  string        `json:"notice,omitempty"`
}

// TrackSearchResponse is returned by the track search endpoint
type TrackSearchResponse struct {
	Query           string  `json:"query"`
	Results         []Track `json:"results"`
	RedirectTrackID string  `json:"redirect_track_id,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// TrackDetailResponse is returned by the track detail endpoint
type TrackDetailResponse struct {
	Track         *TrackMetadata `json:"track"`
	Preview       *DeezerTrack   `json:"preview,omitempty"`
	YouTubeQuery  string         `json:"youtube_query"`
	YouTube       []VideoResult  `json:"youtube"`
	YouTubeNotice string         `json:"youtube_notice,omitempty"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// FormatDuration renders milliseconds as m:ss; negative values are unknown
func FormatDuration(ms int) string {
	if ms < 0 {
		return "—"
	}
	s := ms / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
