package progress

import (
	"context"
	"time"

	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"go.uber.org/zap"
)

// DefaultPollInterval is how often a subscription reads the registry
const DefaultPollInterval = 100 * time.Millisecond

// Publisher turns registry state into a stream of progress events
type Publisher struct {
	registry    *Registry
	interval    time.Duration
	idleTimeout time.Duration
}

// NewPublisher creates a publisher. A zero idleTimeout waits forever for a job to appear.
func NewPublisher(registry *Registry, interval, idleTimeout time.Duration) *Publisher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Publisher{registry: registry, interval: interval, idleTimeout: idleTimeout}
}

// Subscribe streams the state of videoID. An event is sent whenever the observed state
// changes; after a completed or error event the job is removed from the registry and the
// channel is closed. The channel is also closed when ctx is done.
func (p *Publisher) Subscribe(ctx context.Context, videoID string) <-chan model.ProgressEvent {
	events := make(chan model.ProgressEvent)

	go func() {
		defer close(events)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		start := time.Now()
		seen := false
		var last model.ProgressEvent

		for {
			job, ok := p.registry.Get(videoID)
			switch {
			case ok:
				seen = true
				event := job.Event()
				if event != last {
					if !p.send(ctx, events, event) {
						return
					}
					last = event
				}
				if job.Status.IsTerminal() {
					p.registry.DeleteIf(videoID, func(j model.DownloadJob) bool { return j.Status.IsTerminal() })
					logger.Logger.Debug("Progress stream finished",
						zap.String("video_id", videoID),
						zap.String("status", event.Status))
					return
				}
			case !seen && p.idleTimeout > 0 && time.Since(start) >= p.idleTimeout:
				logger.Logger.Warn("Progress stream gave up waiting for job", zap.String("video_id", videoID))
				p.send(ctx, events, model.ProgressEvent{
					Status:  string(model.JobError),
					Message: "download was not started",
				})
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return events
}

func (p *Publisher) send(ctx context.Context, events chan<- model.ProgressEvent, event model.ProgressEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
