package tasks

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gwlsn/mediavault/internal/bus"
	"github.com/gwlsn/mediavault/internal/model"
)

func waitForStatus(t *testing.T, r *Registry, id uuid.UUID, want model.TaskStatus, timeout time.Duration) *model.TaskInfo {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		info, err := r.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if info.Status == want {
			return info
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s", want)
	return nil
}

func TestSubmitRunsToCompletion(t *testing.T) {
	r := New(bus.New(8), DefaultLimits())
	r.Start()
	defer r.Stop()

	info := r.Submit(model.TaskHash, func(run *Run) error {
		run.Report(1.0, "", "done")
		return nil
	})

	final := waitForStatus(t, r, info.ID, model.StatusCompleted, time.Second)
	if final.Progress != 1.0 {
		t.Errorf("expected progress 1.0, got %v", final.Progress)
	}
}

func TestConcurrencyCapIsRespected(t *testing.T) {
	r := New(bus.New(8), Limits{model.TaskHash: 1})
	r.Start()
	defer r.Stop()

	started := make(chan struct{}, 2)
	release := make(chan struct{})

	run := func(run *Run) error {
		started <- struct{}{}
		<-release
		return nil
	}

	info1 := r.Submit(model.TaskHash, run)
	info2 := r.Submit(model.TaskHash, run)

	<-started
	select {
	case <-started:
		t.Fatalf("second task should not start while cap is 1")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitForStatus(t, r, info1.ID, model.StatusCompleted, time.Second)
	waitForStatus(t, r, info2.ID, model.StatusCompleted, time.Second)
}

func TestCancelPendingTask(t *testing.T) {
	r := New(bus.New(8), DefaultLimits())
	r.Pause()
	r.Start()
	defer r.Stop()

	info := r.Submit(model.TaskHash, func(run *Run) error { return nil })
	if err := r.Cancel(info.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got := waitForStatus(t, r, info.ID, model.StatusCancelled, time.Second)
	if got.Status != model.StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

func TestCancelRunningTaskStopsViaContext(t *testing.T) {
	r := New(bus.New(8), DefaultLimits())
	r.Start()
	defer r.Stop()

	entered := make(chan struct{})
	info := r.Submit(model.TaskScan, func(run *Run) error {
		close(entered)
		<-run.Context().Done()
		return run.Context().Err()
	})

	<-entered
	if err := r.Cancel(info.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitForStatus(t, r, info.ID, model.StatusCancelled, time.Second)
}

func TestPauseStopsNewDispatch(t *testing.T) {
	r := New(bus.New(8), DefaultLimits())
	r.Pause()
	r.Start()
	defer r.Stop()

	info := r.Submit(model.TaskScan, func(run *Run) error { return nil })

	time.Sleep(100 * time.Millisecond)
	got, err := r.Get(info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("expected task to stay pending while paused, got %s", got.Status)
	}

	r.Unpause()
	waitForStatus(t, r, info.ID, model.StatusCompleted, time.Second)
}

func TestPauseTaskOnlyAffectsThatTask(t *testing.T) {
	r := New(bus.New(8), DefaultLimits())
	r.Start()
	defer r.Stop()

	entered := make(chan struct{})
	paused := r.Submit(model.TaskScan, func(run *Run) error {
		select {
		case <-entered:
			// rerun after ResumeTask: finish normally
			return nil
		default:
		}
		close(entered)
		for !run.ShouldPause() {
			time.Sleep(time.Millisecond)
		}
		return ErrPaused
	})
	<-entered
	if err := r.PauseTask(paused.ID); err != nil {
		t.Fatalf("PauseTask: %v", err)
	}
	waitForStatus(t, r, paused.ID, model.StatusPaused, time.Second)

	other := r.Submit(model.TaskHash, func(run *Run) error { return nil })
	waitForStatus(t, r, other.ID, model.StatusCompleted, time.Second)

	if err := r.ResumeTask(paused.ID); err != nil {
		t.Fatalf("ResumeTask: %v", err)
	}
	waitForStatus(t, r, paused.ID, model.StatusCompleted, time.Second)
}
