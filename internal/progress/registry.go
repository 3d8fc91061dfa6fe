// Package progress tracks in-flight download jobs and streams their state to subscribers.
package progress

import (
	"sync"
	"time"

	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"go.uber.org/zap"
)

// Registry maps video ids to the latest state of their download job.
// Writes are last-write-wins; no history is kept.
type Registry struct {
	jobs     map[string]model.DownloadJob
	mu       sync.RWMutex
	now      func() time.Time
	quitChan chan bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		jobs:     make(map[string]model.DownloadJob),
		now:      time.Now,
		quitChan: make(chan bool, 1),
	}
}

// Set stores job under its video id, replacing any previous state
func (r *Registry) Set(job model.DownloadJob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job.UpdatedAt = r.now()
	r.jobs[job.VideoID] = job
}

// Get returns the current state of videoID
func (r *Registry) Get(videoID string) (model.DownloadJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[videoID]
	return job, ok
}

// Update applies fn to a copy of the job under the write lock and stores it when fn
// returns true. It reports whether the job existed and was changed.
func (r *Registry) Update(videoID string, fn func(job *model.DownloadJob) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[videoID]
	if !ok {
		return false
	}
	if !fn(&job) {
		return false
	}
	job.UpdatedAt = r.now()
	r.jobs[videoID] = job
	return true
}

// DeleteIf removes videoID only if pred accepts its current state
func (r *Registry) DeleteIf(videoID string, pred func(job model.DownloadJob) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[videoID]
	if !ok || !pred(job) {
		return false
	}
	delete(r.jobs, videoID)
	return true
}

// Len returns the number of tracked jobs
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Prune drops terminal jobs nobody collected within maxAge and returns how many were removed
func (r *Registry) Prune(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, job := range r.jobs {
		if job.Status.IsTerminal() && now.Sub(job.UpdatedAt) > maxAge {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Start runs Prune every interval until Stop is called
func (r *Registry) Start(interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.quitChan:
				return
			case <-ticker.C:
				if removed := r.Prune(maxAge); removed > 0 {
					logger.Logger.Debug("Pruned uncollected jobs",
						zap.Int("removed", removed),
						zap.Int("remaining", r.Len()))
				}
			}
		}
	}()
}

// Stop ends the prune routine
func (r *Registry) Stop() {
	select {
	case r.quitChan <- true:
	default:
	}
}
