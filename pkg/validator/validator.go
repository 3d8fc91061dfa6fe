package validator

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	spotifyTrackURL = regexp.MustCompile(`(?i)^https?://(?:open|play|music)\.spotify\.com/(?:intl-[a-z]{2}/)?track/(?P<id>[A-Za-z0-9]{22})(?:\S*)?$`)
	spotifyTrackURI = regexp.MustCompile(`(?i)^spotify:track:(?P<id>[A-Za-z0-9]{22})$`)
	spotifyBareID   = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)

	titleUnsafe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\- .\[\]()]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

const maxTitleLength = 150

// ValidateVideoID checks a YouTube video id
func ValidateVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// ExtractSpotifyTrackID returns the track id from a Spotify URL, URI or bare id
func ExtractSpotifyTrackID(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	for _, re := range []*regexp.Regexp{spotifyTrackURL, spotifyTrackURI} {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[re.SubexpIndex("id")], true
		}
	}

	if spotifyBareID.MatchString(text) {
		return text, true
	}
	return "", false
}

// SanitizeTitle makes a media title safe to embed in a filename.
// Line breaks become spaces, whitespace runs collapse, anything outside
// word characters, hyphen, space, dot, brackets and parentheses becomes "_",
// and the result is capped at 150 characters.
func SanitizeTitle(title string) string {
	title = strings.NewReplacer("\n", " ", "\r", " ").Replace(title)
	title = strings.TrimSpace(title)
	title = whitespace.ReplaceAllString(title, " ")
	title = titleUnsafe.ReplaceAllString(title, "_")

	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength])
	}
	if title == "" {
		return "audio"
	}
	return title
}

// BuildFilename returns "<sanitized title> [<video id>].<ext>"
func BuildFilename(title, videoID, ext string) string {
	return SanitizeTitle(title) + " [" + videoID + "]." + ext
}

// SanitizeFilename removes dangerous characters from filename
func SanitizeFilename(filename string) string {
	dangerousChars := []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"}
	result := filename
	for _, char := range dangerousChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, result)
}

// TruncateFilename truncates filename to max length while preserving extension
// Uses rune-level truncation to properly handle UTF-8 multi-byte characters
func TruncateFilename(filename string, maxLen int) string {
	runes := []rune(filename)
	if len(runes) <= maxLen {
		return filename
	}

	lastDot := strings.LastIndex(filename, ".")
	if lastDot == -1 {
		return string(runes[:maxLen])
	}

	ext := filename[lastDot:]
	availableLen := maxLen - len([]rune(ext))
	if availableLen <= 0 {
		return string(runes[:maxLen])
	}

	return string(runes[:availableLen]) + ext
}
