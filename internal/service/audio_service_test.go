package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"trackfetch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	info *model.MediaInfo
	err  error
}

func (f *fakeExtractor) ExtractInfo(context.Context, string) (*model.MediaInfo, error) {
	return f.info, f.err
}

func rate(v float64) *float64 { return &v }

func TestSelectAudio_PrefersAudioOnlyHighestBitrate(t *testing.T) {
	info := &model.MediaInfo{
		Title: "Song",
		Formats: []model.MediaFormat{
			{FormatID: "x", VideoCodec: "none", ABR: rate(128), URL: "X", Extension: "m4a"},
			{FormatID: "y", VideoCodec: "h264", ABR: rate(320), URL: "Y", Extension: "mp4"},
			{FormatID: "z", VideoCodec: "none", ABR: rate(256), URL: "Z", Extension: "webm"},
		},
	}

	sel := SelectAudio(info)

	assert.Equal(t, "Z", sel.StreamURL)
	assert.Equal(t, "webm", sel.Extension)
	assert.Equal(t, "audio/webm", sel.MimeType)
	assert.Equal(t, 256.0, sel.Bitrate)
}

func TestSelectAudio_Rules(t *testing.T) {
	tests := []struct {
		name    string
		formats []model.MediaFormat
		want    string
	}{
		{
			name: "tbr used when abr missing",
			formats: []model.MediaFormat{
				{VideoCodec: "none", ABR: rate(64), URL: "A"},
				{VideoCodec: "none", TBR: rate(160), URL: "B"},
			},
			want: "B",
		},
		{
			name: "ties keep the first seen",
			formats: []model.MediaFormat{
				{VideoCodec: "none", ABR: rate(128), URL: "first"},
				{VideoCodec: "none", ABR: rate(128), URL: "second"},
			},
			want: "first",
		},
		{
			name: "missing url skipped",
			formats: []model.MediaFormat{
				{VideoCodec: "none", ABR: rate(320)},
				{VideoCodec: "none", ABR: rate(96), URL: "ok"},
			},
			want: "ok",
		},
		{
			name: "empty vcodec counts as audio only",
			formats: []model.MediaFormat{
				{ABR: rate(50), URL: "bare"},
			},
			want: "bare",
		},
		{
			name: "no bitrate still selectable",
			formats: []model.MediaFormat{
				{VideoCodec: "none", URL: "nobitrate"},
			},
			want: "nobitrate",
		},
		{
			name: "silent audio-only track skipped",
			formats: []model.MediaFormat{
				{VideoCodec: "none", AudioCodec: "none", ABR: rate(999), URL: "storyboard"},
				{VideoCodec: "none", AudioCodec: "opus", ABR: rate(128), URL: "opus"},
			},
			want: "opus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := SelectAudio(&model.MediaInfo{Formats: tt.formats})
			assert.Equal(t, tt.want, sel.StreamURL)
		})
	}
}

func TestSelectAudio_FallsBackToDefaultStream(t *testing.T) {
	info := &model.MediaInfo{
		URL: "https://cdn/default",
		Ext: "mp4",
		Formats: []model.MediaFormat{
			{VideoCodec: "avc1", ABR: rate(128), URL: "muxed"},
		},
	}

	sel := SelectAudio(info)
	assert.Equal(t, "https://cdn/default", sel.StreamURL)
	assert.Equal(t, "mp4", sel.Extension)
	assert.Equal(t, "audio/mp4", sel.MimeType)

	sel = SelectAudio(&model.MediaInfo{URL: "https://cdn/noext"})
	assert.Equal(t, "m4a", sel.Extension)
}

func TestMimeTypeForExtension(t *testing.T) {
	tests := map[string]string{
		"m4a":  "audio/mp4",
		"mp4":  "audio/mp4",
		"mp4a": "audio/mp4",
		"webm": "audio/webm",
		"weba": "audio/webm",
		"opus": "audio/webm",
		"mp3":  "audio/mpeg",
		"MP3":  "audio/mpeg",
		"flac": "application/octet-stream",
		"":     "application/octet-stream",
	}
	for ext, want := range tests {
		assert.Equal(t, want, MimeTypeForExtension(ext), ext)
	}
}

func TestAudioService_Resolve(t *testing.T) {
	extractor := &fakeExtractor{info: &model.MediaInfo{
		Title: "Song: Live/Remix?",
		Formats: []model.MediaFormat{
			{VideoCodec: "none", ABR: rate(160), URL: "https://cdn/a", Extension: "webm"},
		},
	}}
	svc := NewAudioService(extractor)

	sel, err := svc.Resolve(context.Background(), "abc12345678")
	require.NoError(t, err)

	assert.Equal(t, "abc12345678", sel.VideoID)
	assert.Equal(t, "https://cdn/a", sel.StreamURL)
	assert.True(t, strings.HasSuffix(sel.Filename, "[abc12345678].webm"))
	assert.NotContains(t, sel.Filename, ":")
	assert.NotContains(t, sel.Filename, "/")
	assert.NotContains(t, sel.Filename, "?")
}

func TestAudioService_ResolveErrors(t *testing.T) {
	svc := NewAudioService(&fakeExtractor{err: errors.New("private video")})

	_, err := svc.Resolve(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidVideoID)

	_, err = svc.Resolve(context.Background(), "abc12345678")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private video")

	svc = NewAudioService(&fakeExtractor{info: &model.MediaInfo{}})
	_, err = svc.Resolve(context.Background(), "abc12345678")
	assert.ErrorIs(t, err, ErrNoAudioStream)
}

func TestFFmpegTranscoder_Args(t *testing.T) {
	tr := NewFFmpegTranscoder("", "")
	args := tr.Args("in.webm", "out.mp3")

	assert.Equal(t, "ffmpeg", tr.path)
	assert.Equal(t, "in.webm", args[5])
	assert.Equal(t, "out.mp3", args[len(args)-1])
	assert.Contains(t, args, "libmp3lame")
	assert.Contains(t, args, "192k")
}
