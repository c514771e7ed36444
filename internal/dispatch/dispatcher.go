package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/firmvet/firmvet/internal/errors"
)

// Config holds dispatcher configuration.
type Config struct {
	// Workers is the number of concurrent workers pulling from the queue.
	Workers int
	// QueueSize is the queue capacity. Enqueue fails fast when the queue is
	// full instead of blocking the caller.
	QueueSize int
	// GiveUpAttempts is the framework-level attempt ceiling. When a handler
	// keeps asking for retries past this ceiling, the dispatcher abandons the
	// job and fires the handler's OnGiveUp hook.
	GiveUpAttempts int
	// StateRetention is how long terminal job states stay queryable.
	StateRetention time.Duration
}

// Dispatcher accepts enqueue requests, schedules workers and exposes
// task-state polling. Retries re-enter the queue after a delay without
// occupying a worker during the backoff window.
type Dispatcher struct {
	cfg      Config
	logger   *slog.Logger
	recorder Recorder

	mu       sync.RWMutex
	handlers map[Kind]Handler
	states   map[string]*JobState

	queue   chan Job
	stop    chan struct{}
	stopped sync.Once
	timers  sync.WaitGroup
}

// New creates a dispatcher. The recorder is optional; pass nil to keep job
// states in memory only.
func New(cfg Config, recorder Recorder, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.GiveUpAttempts <= 0 {
		cfg.GiveUpAttempts = 10
	}
	if cfg.StateRetention <= 0 {
		cfg.StateRetention = time.Hour
	}

	return &Dispatcher{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		handlers: make(map[Kind]Handler),
		states:   make(map[string]*JobState),
		queue:    make(chan Job, cfg.QueueSize),
		stop:     make(chan struct{}),
	}
}

// RegisterHandler registers the handler for its job kind. Registering a second
// handler for the same kind replaces the first.
func (d *Dispatcher) RegisterHandler(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[h.Kind()] = h
}

// Enqueue marshals payload and queues a job for immediate execution. It never
// blocks waiting for job completion; a full queue fails fast with ErrQueueFull.
func (d *Dispatcher) Enqueue(ctx context.Context, kind Kind, payload any) (string, error) {
	return d.enqueue(ctx, kind, payload, 0)
}

// EnqueueDelayed queues a job that becomes eligible for execution after delay.
// Workers use this to schedule their own retries without sleeping in a worker
// slot.
func (d *Dispatcher) EnqueueDelayed(ctx context.Context, kind Kind, payload any, delay time.Duration) (string, error) {
	return d.enqueue(ctx, kind, payload, delay)
}

func (d *Dispatcher) enqueue(ctx context.Context, kind Kind, payload any, delay time.Duration) (string, error) {
	d.mu.RLock()
	_, ok := d.handlers[kind]
	d.mu.RUnlock()
	if !ok {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "no handler registered for kind "+string(kind))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "marshaling job payload")
	}

	job := Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     raw,
		ScheduledAt: time.Now().Add(delay),
		EnqueuedAt:  time.Now(),
	}

	if delay > 0 {
		d.setState(ctx, job, StatusQueued, nil, nil)
		d.schedule(job, delay)
		return job.ID, nil
	}

	select {
	case d.queue <- job:
		d.setState(ctx, job, StatusQueued, nil, nil)
		return job.ID, nil
	default:
		return "", apperrors.Wrap(apperrors.ErrQueueFull, string(kind))
	}
}

// GetState returns the state of a job. An unknown id yields ErrNotFound, not a
// default state.
func (d *Dispatcher) GetState(jobID string) (JobState, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	state, ok := d.states[jobID]
	if !ok {
		return JobState{}, apperrors.Wrap(apperrors.ErrNotFound, "job "+jobID)
	}
	return *state, nil
}

// Start runs the worker pool until ctx is cancelled. It returns after all
// workers and pending retry timers have drained.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting dispatcher",
		slog.Int("workers", d.cfg.Workers),
		slog.Int("queue_size", d.cfg.QueueSize),
	)

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case job := <-d.queue:
					d.run(ctx, job)
				}
			}
		})
	}

	g.Go(func() error {
		return d.pruneLoop(ctx)
	})

	err := g.Wait()

	d.stopped.Do(func() { close(d.stop) })
	d.timers.Wait()

	d.logger.Info("dispatcher stopped")
	if err != nil && !apperrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// run executes a single attempt of the job on the calling worker.
func (d *Dispatcher) run(ctx context.Context, job Job) {
	d.mu.RLock()
	handler, ok := d.handlers[job.Kind]
	d.mu.RUnlock()
	if !ok {
		d.logger.Error("no handler for job kind", slog.String("kind", string(job.Kind)), slog.String("job_id", job.ID))
		d.setState(ctx, job, StatusFailed, nil, apperrors.New("no handler for kind "+string(job.Kind)))
		return
	}

	job.Attempt++
	d.setState(ctx, job, StatusProcessing, nil, nil)

	result, retryIn, err := handler.Execute(ctx, job)
	if err == nil {
		d.setState(ctx, job, StatusCompleted, result, nil)
		return
	}

	if retryIn < 0 {
		d.setState(ctx, job, StatusFailed, result, err)
		return
	}

	if job.Attempt >= d.cfg.GiveUpAttempts {
		// Handler keeps asking for retries past the framework ceiling. Abandon
		// the job and let the handler clean up after itself.
		d.logger.Error("giving up on job",
			slog.String("job_id", job.ID),
			slog.String("kind", string(job.Kind)),
			slog.Int("attempt", job.Attempt),
			slog.Any("error", err),
		)
		d.setState(ctx, job, StatusFailed, nil, apperrors.Wrap(apperrors.ErrMaxRetriesExceeded, err.Error()))
		handler.OnGiveUp(ctx, job, err)
		return
	}

	d.setState(ctx, job, StatusRetrying, nil, err)
	d.logger.Warn("job scheduled for retry",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.Int("attempt", job.Attempt),
		slog.Duration("retry_in", retryIn),
		slog.Any("error", err),
	)
	d.schedule(job, retryIn)
}

// schedule re-queues the same job after delay without holding a worker slot.
func (d *Dispatcher) schedule(job Job, delay time.Duration) {
	d.timers.Add(1)
	go func() {
		defer d.timers.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-d.stop:
			return
		case <-timer.C:
		}

		select {
		case d.queue <- job:
		case <-d.stop:
		}
	}()
}

// setState updates the in-memory state table and forwards the transition to
// the recorder when one is configured.
func (d *Dispatcher) setState(ctx context.Context, job Job, status Status, result any, jobErr error) {
	state := &JobState{
		Status:    status,
		Result:    result,
		UpdatedAt: time.Now(),
	}
	if jobErr != nil {
		state.Error = jobErr.Error()
	}

	d.mu.Lock()
	d.states[job.ID] = state
	d.mu.Unlock()

	if d.recorder != nil {
		d.recorder.Record(ctx, job, status, result, jobErr)
	}
}

// pruneLoop evicts terminal job states past the retention window.
func (d *Dispatcher) pruneLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.prune(time.Now().Add(-d.cfg.StateRetention))
		}
	}
}

func (d *Dispatcher) prune(olderThan time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, state := range d.states {
		if state.Status.Terminal() && state.UpdatedAt.Before(olderThan) {
			delete(d.states, id)
		}
	}
}
