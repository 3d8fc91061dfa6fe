package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"go.uber.org/zap"
)

// Manager hands out per-download work directories and removes abandoned ones
type Manager struct {
	cfg      *model.StorageConfig
	dirs     map[string]time.Time
	mu       sync.RWMutex
	now      func() time.Time
	quitChan chan bool
}

// NewManager creates a new storage manager
func NewManager(cfg *model.StorageConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		dirs:     make(map[string]time.Time),
		now:      time.Now,
		quitChan: make(chan bool, 1),
	}
}

// Start starts the cleanup routine
func (m *Manager) Start() {
	if m.cfg.CleanupInterval <= 0 {
		return
	}
	go m.cleanupRoutine()
}

// Stop stops the cleanup routine
func (m *Manager) Stop() {
	select {
	case m.quitChan <- true:
	default:
		logger.Logger.Warn("Could not send stop signal to cleanup routine")
	}
}

// CreateWorkDir creates a fresh directory for one download of videoID
func (m *Manager) CreateWorkDir(videoID string) (string, error) {
	if err := os.MkdirAll(m.cfg.WorkDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}

	dir, err := os.MkdirTemp(m.cfg.WorkDir, videoID+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}

	m.mu.Lock()
	m.dirs[dir] = m.now()
	m.mu.Unlock()

	logger.Logger.Debug("Work dir created", zap.String("video_id", videoID), zap.String("dir", dir))
	return dir, nil
}

// Release removes dir and stops tracking it
func (m *Manager) Release(dir string) {
	m.mu.Lock()
	delete(m.dirs, dir)
	m.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		logger.Logger.Error("Failed to remove work dir", zap.String("dir", dir), zap.Error(err))
	}
}

// cleanupRoutine periodically removes expired work directories
func (m *Manager) cleanupRoutine() {
	ticker := time.NewTicker(time.Duration(m.cfg.CleanupInterval) * time.Second)
	defer ticker.Stop()

	logger.Logger.Info("Storage cleanup routine started",
		zap.Int("cleanup_interval_seconds", m.cfg.CleanupInterval),
		zap.Int("work_dir_ttl_seconds", m.cfg.WorkDirTTL))

	for {
		select {
		case <-m.quitChan:
			logger.Logger.Info("Storage cleanup routine stopped")
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

// cleanupExpired removes tracked directories older than the TTL, and untracked
// leftovers in the work dir (from a previous process) whose mtime is older than the TTL
func (m *Manager) cleanupExpired() int {
	ttl := time.Duration(m.cfg.WorkDirTTL) * time.Second
	now := m.now()

	m.mu.Lock()
	var expired []string
	for dir, created := range m.dirs {
		if now.Sub(created) > ttl {
			expired = append(expired, dir)
			delete(m.dirs, dir)
		}
	}
	tracked := make(map[string]bool, len(m.dirs))
	for dir := range m.dirs {
		tracked[dir] = true
	}
	m.mu.Unlock()

	if entries, err := os.ReadDir(m.cfg.WorkDir); err == nil {
		for _, entry := range entries {
			path := filepath.Join(m.cfg.WorkDir, entry.Name())
			if tracked[path] {
				continue
			}
			info, err := entry.Info()
			if err != nil || now.Sub(info.ModTime()) <= ttl {
				continue
			}
			expired = append(expired, path)
		}
	}

	removed, failed := 0, 0
	seen := make(map[string]bool, len(expired))
	for _, dir := range expired {
		if seen[dir] {
			continue
		}
		seen[dir] = true

		if err := os.RemoveAll(dir); err != nil {
			logger.Logger.Error("Failed to remove work dir", zap.String("dir", dir), zap.Error(err))
			failed++
			continue
		}
		removed++
	}

	if removed > 0 || failed > 0 {
		logger.Logger.Info("Storage cleanup completed",
			zap.Int("deleted_count", removed),
			zap.Int("error_count", failed),
			zap.Int("remaining_tracked_dirs", m.TrackedCount()))
	}
	return removed
}

// ValidateFileSize checks if file size is within limits
func (m *Manager) ValidateFileSize(sizeBytes int64) bool {
	if m.cfg.MaxAudioSizeMB <= 0 {
		return true
	}
	maxSizeBytes := int64(m.cfg.MaxAudioSizeMB) * 1024 * 1024
	return sizeBytes <= maxSizeBytes
}

// MaxFileSizeMB returns the configured size limit
func (m *Manager) MaxFileSizeMB() int {
	return m.cfg.MaxAudioSizeMB
}

// TrackedCount returns the number of live work directories
func (m *Manager) TrackedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dirs)
}

// ManualCleanup runs one cleanup pass and returns how many directories were removed
func (m *Manager) ManualCleanup() int {
	return m.cleanupExpired()
}
