// Package tasks implements the Task Registry & Scheduler: a bounded,
// pausable, cancellable in-process worker pool with per-task-type
// concurrency caps and cooperative checkpoints, generalized from the
// teacher's transcode job queue to the engine's seven task types.
package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/bus"
	"github.com/gwlsn/mediavault/internal/logger"
	"github.com/gwlsn/mediavault/internal/model"
)

// Runner performs the actual work of one task. It must check run.Context()
// or run.ShouldPause() at reasonable checkpoints (per file, per chunk) and
// return promptly when either indicates it should stop.
type Runner func(run *Run) error

// Run is the cooperative handle a Runner uses to report progress and
// notice cancellation or pause requests.
type Run struct {
	ctx      context.Context
	registry *Registry
	id       uuid.UUID
}

// Context is cancelled when the task is cancelled or the registry shuts down.
func (r *Run) Context() context.Context { return r.ctx }

// ShouldPause reports whether the registry, or this task specifically,
// has been asked to pause. A Runner observing true at a safe checkpoint
// should return ErrPaused.
func (r *Run) ShouldPause() bool {
	if r.registry.paused.Load() {
		return true
	}
	return r.registry.isTaskPaused(r.id)
}

// Report updates progress (0..1), an optional human-readable message, and
// the file currently being processed, broadcasting the update on the bus.
func (r *Run) Report(progress float64, currentFile, message string) {
	r.registry.updateProgress(r.id, progress, currentFile, message)
}

// SetResult attaches a result payload to the task, visible once it
// reaches a terminal state (e.g. per-item success/error breakdown for a
// batch operation).
func (r *Run) SetResult(result map[string]any) {
	r.registry.setResult(r.id, result)
}

type entry struct {
	info    *model.TaskInfo
	runner  Runner
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	paused  atomic.Bool
}

// Registry schedules and tracks tasks across all task types.
type Registry struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*entry
	pending []uuid.UUID
	running map[model.TaskType]int
	limits  Limits

	bus *bus.Bus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	paused atomic.Bool
	wake   chan struct{}
}

// New creates a Registry dispatching onto b and enforcing limits per
// task type. Call Start to begin dispatching and Stop to drain on shutdown.
func New(b *bus.Bus, limits Limits) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		tasks:   make(map[uuid.UUID]*entry),
		running: make(map[model.TaskType]int),
		limits:  limits,
		bus:     b,
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the dispatch loop.
func (r *Registry) Start() {
	r.wg.Add(1)
	go r.dispatchLoop()
}

// Stop cancels every running task and waits for the dispatch loop to exit.
func (r *Registry) Stop() {
	r.cancel()
	r.wg.Wait()
}

// SetLimit adjusts the concurrency cap for a task type at runtime.
func (r *Registry) SetLimit(t model.TaskType, n int) {
	r.mu.Lock()
	r.limits[t] = ClampConcurrency(n)
	r.mu.Unlock()
	r.poke()
}

// Pause requests that running tasks stop at their next checkpoint and
// prevents pending tasks from starting until Unpause is called.
func (r *Registry) Pause() {
	r.paused.Store(true)
}

// Unpause resumes dispatching and lets paused tasks be retried.
func (r *Registry) Unpause() {
	r.paused.Store(false)
	r.poke()
}

// IsPaused reports the current pause state.
func (r *Registry) IsPaused() bool { return r.paused.Load() }

// PauseTask requests that a single task stop at its next checkpoint,
// independent of the registry-wide pause.
func (r *Registry) PauseTask(id uuid.UUID) error {
	e, err := r.entryFor(id)
	if err != nil {
		return err
	}
	e.paused.Store(true)
	return nil
}

// ResumeTask lifts a per-task pause request and wakes the dispatch loop
// so a task left in StatusPaused is retried.
func (r *Registry) ResumeTask(id uuid.UUID) error {
	e, err := r.entryFor(id)
	if err != nil {
		return err
	}
	e.paused.Store(false)
	r.poke()
	return nil
}

func (r *Registry) entryFor(id uuid.UUID) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "task not found: "+id.String())
	}
	return e, nil
}

func (r *Registry) isTaskPaused(id uuid.UUID) bool {
	r.mu.Lock()
	e, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return e.paused.Load()
}

func (r *Registry) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Submit enqueues a new task of the given type and returns its initial
// snapshot. The runner begins executing once a concurrency slot for its
// type is free.
func (r *Registry) Submit(taskType model.TaskType, run Runner) *model.TaskInfo {
	info := &model.TaskInfo{
		ID:        uuid.New(),
		Type:      taskType,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	e := &entry{info: info, runner: run, done: make(chan struct{})}

	r.mu.Lock()
	r.tasks[info.ID] = e
	r.pending = append(r.pending, info.ID)
	r.mu.Unlock()

	r.poke()
	return info.Copy()
}

// Get returns a snapshot of the task with id.
func (r *Registry) Get(id uuid.UUID) (*model.TaskInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "task not found: "+id.String())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info.Copy(), nil
}

// List returns a snapshot of every known task.
func (r *Registry) List() []*model.TaskInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.TaskInfo, 0, len(r.tasks))
	for _, e := range r.tasks {
		e.mu.Lock()
		out = append(out, e.info.Copy())
		e.mu.Unlock()
	}
	return out
}

// Cancel requests cancellation of a running or pending task.
func (r *Registry) Cancel(id uuid.UUID) error {
	r.mu.Lock()
	e, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return apperr.New(apperr.NotFound, "task not found: "+id.String())
	}

	e.mu.Lock()
	status := e.info.Status
	if status.IsTerminal() {
		e.mu.Unlock()
		r.mu.Unlock()
		return apperr.New(apperr.Conflict, "task already finished: "+id.String())
	}
	if status == model.StatusPending {
		e.info.Status = model.StatusCancelled
		e.info.FinishedAt = time.Now()
		e.mu.Unlock()
		r.removePending(id)
		r.mu.Unlock()
		close(e.done)
		r.publish(e)
		return nil
	}
	cancel := e.cancel
	e.mu.Unlock()
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func (r *Registry) removePending(id uuid.UUID) {
	for i, pid := range r.pending {
		if pid == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}

func (r *Registry) dispatchLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.wake:
		case <-ticker.C:
		}
		r.tryDispatch()
	}
}

func (r *Registry) tryDispatch() {
	if r.paused.Load() {
		return
	}
	r.mu.Lock()
	var started []*entry
	remaining := r.pending[:0:0]
	for _, id := range r.pending {
		e, ok := r.tasks[id]
		if !ok {
			continue
		}
		if e.paused.Load() {
			remaining = append(remaining, id)
			continue
		}
		e.mu.Lock()
		t := e.info.Type
		e.mu.Unlock()

		limit := r.limits[t]
		if limit <= 0 {
			limit = 1
		}
		if r.running[t] < limit {
			r.running[t]++
			started = append(started, e)
		} else {
			remaining = append(remaining, id)
		}
	}
	r.pending = remaining
	r.mu.Unlock()

	for _, e := range started {
		r.wg.Add(1)
		go r.runTask(e)
	}
}

func (r *Registry) runTask(e *entry) {
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(r.ctx)

	e.mu.Lock()
	e.cancel = cancel
	e.info.Status = model.StatusRunning
	e.info.StartedAt = time.Now()
	taskType := e.info.Type
	id := e.info.ID
	e.mu.Unlock()
	r.publish(e)

	run := &Run{ctx: ctx, registry: r, id: id}
	err := e.runner(run)
	cancel()

	r.mu.Lock()
	r.running[taskType]--
	r.mu.Unlock()
	r.poke()

	e.mu.Lock()
	e.info.FinishedAt = time.Now()
	e.info.DurationSecs = e.info.FinishedAt.Sub(e.info.StartedAt).Seconds()
	switch {
	case err == nil:
		e.info.Status = model.StatusCompleted
	case ctx.Err() == context.Canceled && err == context.Canceled:
		e.info.Status = model.StatusCancelled
	case err == ErrPaused:
		e.info.Status = model.StatusPaused
	default:
		e.info.Status = model.StatusFailed
		e.info.Error = err.Error()
		logger.Warn("task failed", "task_id", id, "task_type", taskType, "error", err)
	}
	terminal := e.info.Status.IsTerminal()
	e.mu.Unlock()

	if terminal {
		close(e.done)
	} else {
		// paused: requeue at the front so it is retried before newer work
		r.mu.Lock()
		r.pending = append([]uuid.UUID{id}, r.pending...)
		r.mu.Unlock()
	}
	r.publish(e)
}

func (r *Registry) updateProgress(id uuid.UUID, progress float64, currentFile, message string) {
	r.mu.Lock()
	e, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.info.Progress = progress
	e.info.CurrentFile = currentFile
	e.info.Message = message
	e.mu.Unlock()
	r.publish(e)
}

func (r *Registry) setResult(id uuid.UUID, result map[string]any) {
	r.mu.Lock()
	e, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.info.Result = result
	e.mu.Unlock()
}

// Cleanup removes every task in a terminal state and returns how many
// were removed.
func (r *Registry) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.tasks {
		e.mu.Lock()
		terminal := e.info.Status.IsTerminal()
		e.mu.Unlock()
		if terminal {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) publish(e *entry) {
	if r.bus == nil {
		return
	}
	e.mu.Lock()
	msg := bus.Message{
		TaskID:      e.info.ID,
		TaskType:    e.info.Type,
		Status:      e.info.Status,
		Progress:    e.info.Progress,
		CurrentFile: e.info.CurrentFile,
		Message:     e.info.Message,
	}
	e.mu.Unlock()
	r.bus.Publish(msg)
}
