package service

import (
	"context"
	"fmt"
	"strings"

	"trackfetch/internal/model"
	"trackfetch/pkg/logger"
	"trackfetch/pkg/validator"

	"go.uber.org/zap"
)

const defaultAudioExtension = "m4a"

// Extractor resolves the stream list of a video
type Extractor interface {
	ExtractInfo(ctx context.Context, videoID string) (*model.MediaInfo, error)
}

// AudioService picks the best audio-only stream of a video
type AudioService struct {
	extractor Extractor
}

// NewAudioService creates a new audio resolver
func NewAudioService(extractor Extractor) *AudioService {
	return &AudioService{extractor: extractor}
}

// Resolve extracts the formats of videoID and selects the audio stream to deliver
func (s *AudioService) Resolve(ctx context.Context, videoID string) (*model.AudioSelection, error) {
	if !validator.ValidateVideoID(videoID) {
		return nil, ErrInvalidVideoID
	}

	info, err := s.extractor.ExtractInfo(ctx, videoID)
	if err != nil {
		logger.Logger.Error("Failed to extract media info", zap.String("video_id", videoID), zap.Error(err))
		return nil, fmt.Errorf("failed to extract media info: %w", err)
	}

	selection := SelectAudio(info)
	if selection.StreamURL == "" {
		return nil, ErrNoAudioStream
	}
	selection.VideoID = videoID
	selection.Filename = validator.BuildFilename(info.Title, videoID, selection.Extension)

	logger.Logger.Info("Audio stream selected",
		zap.String("video_id", videoID),
		zap.String("ext", selection.Extension),
		zap.Float64("bitrate", selection.Bitrate),
		zap.Int("formats", len(info.Formats)))

	return selection, nil
}

// SelectAudio returns the audio-only format with the highest bitrate, first seen winning
// ties. Muxed formats and formats without a URL are never chosen. Without any candidate
// it falls back to the item's default stream.
func SelectAudio(info *model.MediaInfo) *model.AudioSelection {
	var best *model.MediaFormat
	bestRate := -1.0

	for i := range info.Formats {
		f := &info.Formats[i]
		if !f.AudioOnly() || f.AudioCodec == "none" || f.URL == "" {
			continue
		}
		if rate := f.Bitrate(); rate > bestRate {
			best = f
			bestRate = rate
		}
	}

	selection := &model.AudioSelection{Title: info.Title}
	if best != nil {
		selection.StreamURL = best.URL
		selection.Extension = best.Extension
		selection.Bitrate = bestRate
	} else {
		selection.StreamURL = info.URL
		selection.Extension = info.Ext
	}

	if selection.Extension == "" {
		selection.Extension = defaultAudioExtension
	}
	selection.MimeType = MimeTypeForExtension(selection.Extension)
	return selection
}

// MimeTypeForExtension maps a container extension to the delivered content type
func MimeTypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case "m4a", "mp4", "mp4a":
		return "audio/mp4"
	case "webm", "weba", "opus":
		return "audio/webm"
	case "mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
