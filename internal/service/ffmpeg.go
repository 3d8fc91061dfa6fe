package service

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpegTranscoder converts fetched audio to MP3 with an external ffmpeg process
type FFmpegTranscoder struct {
	path    string
	bitrate string
}

// NewFFmpegTranscoder creates a transcoder using the ffmpeg binary at path
func NewFFmpegTranscoder(path, bitrate string) *FFmpegTranscoder {
	if path == "" {
		path = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = "192k"
	}
	return &FFmpegTranscoder{path: path, bitrate: bitrate}
}

// Args returns the ffmpeg arguments for src -> dst
func (t *FFmpegTranscoder) Args(src, dst string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", t.bitrate,
		dst,
	}
}

// Transcode writes src as an MP3 to dst
func (t *FFmpegTranscoder) Transcode(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, t.path, t.Args(src, dst)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %w | %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
