package service

import (
	"errors"
	"fmt"
)

var (
	ErrNoCredentials   = errors.New("no YouTube API key configured")
	ErrKeysExhausted   = errors.New("all YouTube API keys are exhausted")
	ErrInvalidVideoID  = errors.New("invalid video id")
	ErrNoAudioStream   = errors.New("no playable audio stream")
	ErrTrackNotFound   = errors.New("track not found")
	ErrSpotifyDisabled = errors.New("spotify credentials not configured")
)

// CredentialError is an upstream failure attributable to the API key (quota, invalid or blocked key).
// It triggers key rotation.
type CredentialError struct {
	StatusCode int
	Reason     string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential rejected (status %d): %s", e.StatusCode, e.Reason)
}

// APIError is an upstream failure that is not the key's fault. It never triggers rotation.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream API returned status %d: %s", e.StatusCode, e.Message)
}

func isCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}
