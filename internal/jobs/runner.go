package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobActive     = errors.New("job has not finished")
	ErrRunnerClosed  = errors.New("job runner is closed")
	errShuttingDown  = errors.New("job runner shut down before the job ran")
	errCancelledByUs = errors.New("cancelled by caller")
)

// Work is the body of a job. cancel closes when the caller asks to stop; work
// should stop retrying but may let an in-flight call finish.
type Work func(ctx context.Context, cancel <-chan struct{}) (*Result, error)

type Options struct {
	// MaxConcurrent caps running jobs. Zero or less means no cap.
	MaxConcurrent int
	// Retention is how long a finished job stays pollable after its last read.
	Retention time.Duration
	// SweepInterval is the janitor period. Zero disables the janitor.
	SweepInterval time.Duration
	// OnFinish runs after a job reaches a terminal state, outside the lock and
	// before Wait returns.
	OnFinish func(Job)
}

type entry struct {
	job        Job
	cancel     chan struct{}
	done       chan struct{}
	lastAccess time.Time
}

// Runner executes each submitted job on its own goroutine and keeps a table of
// job snapshots keyed by id. Only the job's own worker writes its result.
type Runner struct {
	mu     sync.RWMutex
	jobs   map[string]*entry
	closed bool

	slots chan struct{}
	opts  Options
	now   func() time.Time

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewRunner(opts Options) *Runner {
	ctx, stop := context.WithCancel(context.Background())
	r := &Runner{
		jobs: make(map[string]*entry),
		opts: opts,
		now:  time.Now,
		ctx:  ctx,
		stop: stop,
	}
	if opts.MaxConcurrent > 0 {
		r.slots = make(chan struct{}, opts.MaxConcurrent)
	}
	if opts.SweepInterval > 0 && opts.Retention > 0 {
		r.wg.Add(1)
		go r.janitor()
	}
	return r
}

// Submit registers a pending job and starts its worker. The id is returned
// immediately.
func (r *Runner) Submit(owner, jobType string, work Work) (string, error) {
	return r.SubmitLeased(owner, "", jobType, work)
}

// SubmitLeased is Submit with an opaque lease token that is handed back on the
// job snapshot passed to OnFinish.
func (r *Runner) SubmitLeased(owner, lease, jobType string, work Work) (string, error) {
	if work == nil {
		return "", fmt.Errorf("submit %s: nil work", jobType)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRunnerClosed
	}
	now := r.now()
	e := &entry{
		job: Job{
			ID:        uuid.NewString(),
			Type:      jobType,
			Owner:     owner,
			Lease:     lease,
			State:     StatePending,
			CreatedAt: now,
		},
		cancel:     make(chan struct{}),
		done:       make(chan struct{}),
		lastAccess: now,
	}
	r.jobs[e.job.ID] = e
	r.wg.Add(1)
	r.mu.Unlock()

	slog.Info("job submitted", "job_id", e.job.ID, "type", jobType, "owner", owner)
	go r.run(e, work)
	return e.job.ID, nil
}

// Status returns a snapshot of the job and marks it as recently read.
func (r *Runner) Status(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	e.lastAccess = r.now()
	return e.job.snapshot(), nil
}

// Wait blocks until the job is terminal or ctx is done.
func (r *Runner) Wait(ctx context.Context, id string) (Job, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}

	select {
	case <-e.done:
		return r.Status(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Cancel asks a job to stop. A pending job fails at once; a running job fails
// once its worker returns. Cancelling a finished job changes nothing.
func (r *Runner) Cancel(id string) (Job, error) {
	r.mu.Lock()
	e, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return Job{}, ErrJobNotFound
	}
	e.lastAccess = r.now()
	if e.job.State.Terminal() {
		snap := e.job.snapshot()
		r.mu.Unlock()
		return snap, nil
	}

	if !e.job.CancelRequested {
		e.job.CancelRequested = true
		close(e.cancel)
	}
	var finished bool
	if e.job.State == StatePending {
		finished = r.completeLocked(e, nil, errCancelledByUs, true)
	}
	snap := e.job.snapshot()
	r.mu.Unlock()

	slog.Info("job cancel requested", "job_id", id, "state", snap.State)
	if finished {
		r.afterFinish(e, snap)
	}
	return snap, nil
}

// Release drops a finished job from the table.
func (r *Runner) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !e.job.State.Terminal() {
		return ErrJobActive
	}
	delete(r.jobs, id)
	return nil
}

// Sweep evicts finished jobs that nobody has read for longer than Retention.
func (r *Runner) Sweep() int {
	if r.opts.Retention <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.opts.Retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.jobs {
		if e.job.State.Terminal() && e.lastAccess.Before(cutoff) {
			delete(r.jobs, id)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Debug("evicted idle jobs", "count", evicted, "remaining", len(r.jobs))
	}
	return evicted
}

// Len reports how many jobs are in the table.
func (r *Runner) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Close stops accepting jobs, cancels running work and waits for workers
// until ctx expires.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

func (r *Runner) janitor() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Runner) run(e *entry, work Work) {
	defer r.wg.Done()

	if r.slots != nil {
		select {
		case r.slots <- struct{}{}:
			defer func() { <-r.slots }()
		case <-e.cancel:
			r.complete(e, nil, errCancelledByUs, true)
			return
		case <-r.ctx.Done():
			r.complete(e, nil, errShuttingDown, false)
			return
		}
	}

	if !r.markRunning(e) {
		return
	}

	res, err := safeRun(r.ctx, e.cancel, work)

	select {
	case <-e.cancel:
		r.complete(e, nil, errCancelledByUs, true)
	default:
		r.complete(e, res, err, false)
	}
}

func (r *Runner) markRunning(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.job.State != StatePending {
		return false
	}
	now := r.now()
	e.job.State = StateRunning
	e.job.StartedAt = &now
	return true
}

func (r *Runner) complete(e *entry, res *Result, err error, cancelled bool) {
	r.mu.Lock()
	finished := r.completeLocked(e, res, err, cancelled)
	snap := e.job.snapshot()
	r.mu.Unlock()
	if finished {
		r.afterFinish(e, snap)
	}
}

// completeLocked writes the terminal state once. It reports whether this call
// made the transition.
func (r *Runner) completeLocked(e *entry, res *Result, err error, cancelled bool) bool {
	if e.job.State.Terminal() {
		return false
	}
	now := r.now()
	e.job.FinishedAt = &now
	e.lastAccess = now

	switch {
	case cancelled:
		e.job.State = StateFailed
		e.job.Error = &JobError{Kind: KindCancelled, Message: err.Error()}
	case err != nil:
		e.job.State = StateFailed
		e.job.Error = errorFrom(err)
	case res == nil:
		e.job.State = StateFailed
		e.job.Error = &JobError{Kind: KindUnknown, Message: "job produced no result"}
	default:
		e.job.State = StateSucceeded
		e.job.Result = res
	}
	return true
}

// afterFinish runs OnFinish before releasing waiters, so Wait returning means
// the hook has completed.
func (r *Runner) afterFinish(e *entry, snap Job) {
	defer close(e.done)

	attrs := []any{"job_id", snap.ID, "type", snap.Type, "state", snap.State}
	if snap.StartedAt != nil && snap.FinishedAt != nil {
		attrs = append(attrs, "duration_ms", snap.FinishedAt.Sub(*snap.StartedAt).Milliseconds())
	}
	if snap.Error != nil {
		attrs = append(attrs, "error_kind", snap.Error.Kind, "error", snap.Error.Message)
		slog.Warn("job failed", attrs...)
	} else {
		slog.Info("job succeeded", attrs...)
	}

	if r.opts.OnFinish != nil {
		r.opts.OnFinish(snap)
	}
}

func safeRun(ctx context.Context, cancel <-chan struct{}, work Work) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("job panicked", "panic", p)
			res, err = nil, fmt.Errorf("job panicked: %v", p)
		}
	}()
	return work(ctx, cancel)
}
