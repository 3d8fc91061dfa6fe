package progress

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"trackfetch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan model.ProgressEvent, timeout time.Duration) []model.ProgressEvent {
	t.Helper()
	var events []model.ProgressEvent
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("stream did not finish, got %v", events)
			return events
		}
	}
}

func TestRegistry_SetGetDelete(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Get("abc12345678")
	assert.False(t, ok)

	reg.Set(model.DownloadJob{VideoID: "abc12345678", Status: model.JobStarting})
	reg.Set(model.DownloadJob{VideoID: "abc12345678", Status: model.JobDownloading, Progress: 40})

	job, ok := reg.Get("abc12345678")
	require.True(t, ok)
	assert.Equal(t, model.JobDownloading, job.Status)
	assert.Equal(t, 40, job.Progress)
	assert.False(t, job.UpdatedAt.IsZero())
	assert.Equal(t, 1, reg.Len())

	assert.True(t, reg.DeleteIf("abc12345678", func(model.DownloadJob) bool { return true }))
	assert.Zero(t, reg.Len())
}

func TestRegistry_Update(t *testing.T) {
	reg := NewRegistry()

	assert.False(t, reg.Update("missing", func(*model.DownloadJob) bool { return true }))

	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobProcessing, Progress: 95})

	changed := reg.Update("v", func(j *model.DownloadJob) bool {
		j.Progress = 96
		return true
	})
	assert.True(t, changed)

	rejected := reg.Update("v", func(j *model.DownloadJob) bool {
		j.Progress = 10
		return false
	})
	assert.False(t, rejected)

	job, _ := reg.Get("v")
	assert.Equal(t, 96, job.Progress)
}

func TestRegistry_DeleteIf(t *testing.T) {
	reg := NewRegistry()
	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobDownloading})

	terminal := func(j model.DownloadJob) bool { return j.Status.IsTerminal() }
	assert.False(t, reg.DeleteIf("v", terminal))
	assert.Equal(t, 1, reg.Len())

	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobCompleted})
	assert.True(t, reg.DeleteIf("v", terminal))
	assert.False(t, reg.DeleteIf("v", terminal))
}

func TestRegistry_Prune(t *testing.T) {
	reg := NewRegistry()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	reg.Set(model.DownloadJob{VideoID: "done", Status: model.JobCompleted})
	reg.Set(model.DownloadJob{VideoID: "failed", Status: model.JobError})
	reg.Set(model.DownloadJob{VideoID: "running", Status: model.JobDownloading})

	now = now.Add(2 * time.Hour)
	reg.Set(model.DownloadJob{VideoID: "fresh", Status: model.JobCompleted})

	assert.Equal(t, 2, reg.Prune(time.Hour))
	_, ok := reg.Get("running")
	assert.True(t, ok)
	_, ok = reg.Get("fresh")
	assert.True(t, ok)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobDownloading})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Update("v", func(job *model.DownloadJob) bool {
					job.Progress = j
					return true
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Get("v")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, reg.Len())
}

func TestPublisher_StartingThenCompleted(t *testing.T) {
	reg := NewRegistry()
	pub := NewPublisher(reg, 5*time.Millisecond, 0)

	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobStarting})
	events := pub.Subscribe(context.Background(), "v")

	first := <-events
	assert.Equal(t, "starting", first.Status)

	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobCompleted, Progress: 100, Message: "done"})
	rest := collect(t, events, time.Second)

	require.Len(t, rest, 1)
	assert.Equal(t, model.ProgressEvent{Status: "completed", Progress: 100, Message: "done"}, rest[0])
	assert.Zero(t, reg.Len())
}

func TestPublisher_WaitsForAbsentJob(t *testing.T) {
	reg := NewRegistry()
	pub := NewPublisher(reg, 5*time.Millisecond, 0)

	events := pub.Subscribe(context.Background(), "late")

	select {
	case ev := <-events:
		t.Fatalf("unexpected event before job exists: %+v", ev)
	case <-time.After(30 * time.Millisecond):
	}

	reg.Set(model.DownloadJob{VideoID: "late", Status: model.JobError, Message: "boom"})
	got := collect(t, events, time.Second)

	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0].Status)
	assert.Equal(t, 0, got[0].Progress)
	assert.Equal(t, "boom", got[0].Message)
}

func TestPublisher_SkipsUnchangedSnapshots(t *testing.T) {
	reg := NewRegistry()
	pub := NewPublisher(reg, 2*time.Millisecond, 0)

	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobDownloading, Progress: 10})
	events := pub.Subscribe(context.Background(), "v")

	first := <-events
	assert.Equal(t, 10, first.Progress)

	time.Sleep(20 * time.Millisecond)
	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobDownloading, Progress: 50})
	second := <-events
	assert.Equal(t, 50, second.Progress)

	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobCompleted, Progress: 100})
	rest := collect(t, events, time.Second)
	require.Len(t, rest, 1)
	assert.Equal(t, "completed", rest[0].Status)
}

func TestPublisher_IdleTimeout(t *testing.T) {
	reg := NewRegistry()
	pub := NewPublisher(reg, 5*time.Millisecond, 20*time.Millisecond)

	got := collect(t, pub.Subscribe(context.Background(), "never"), time.Second)

	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0].Status)
	assert.NotEmpty(t, got[0].Message)
}

func TestPublisher_ContextCancel(t *testing.T) {
	reg := NewRegistry()
	pub := NewPublisher(reg, 5*time.Millisecond, 0)
	reg.Set(model.DownloadJob{VideoID: "v", Status: model.JobDownloading, Progress: 1})

	ctx, cancel := context.WithCancel(context.Background())
	events := pub.Subscribe(ctx, "v")
	<-events
	cancel()

	collect(t, events, time.Second)
	// the job is left for its own download to finish
	assert.Equal(t, 1, reg.Len())
}

func TestProgressEvent_WireFormat(t *testing.T) {
	jobs := []model.DownloadJob{
		{Status: model.JobDownloading, Progress: 150, Message: "overshoot"},
		{Status: model.JobError, Progress: -3, Message: "failed"},
		{Status: model.JobProcessing, Progress: 97},
	}

	for _, job := range jobs {
		raw, err := json.Marshal(job.Event())
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(raw, &fields))
		assert.Len(t, fields, 3)
		assert.Contains(t, fields, "status")
		assert.Contains(t, fields, "message")

		progress, ok := fields["progress"].(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, progress, 0.0)
		assert.LessOrEqual(t, progress, 100.0)
	}
}
