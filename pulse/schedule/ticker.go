package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/internal/util"
	"github.com/teranos/vacancy/logger"
)

// Ticker polls the store for due tasks and runs them through the registry.
// Several tickers may share one database: Claim decides which one runs a task.
type Ticker struct {
	store    *Store
	registry *Registry
	cfg      TickerConfig
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *zap.SugaredLogger

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
	succeeded       int64
	failed          int64
}

// TickerConfig contains configuration for the Pulse ticker
type TickerConfig struct {
	Interval   time.Duration // How often to check for due tasks (default: 1 second)
	Lease      time.Duration // How long a claimed task is held before another ticker may reclaim it
	MaxBackoff time.Duration // Cap on retry delay after a failed attempt
	BatchSize  int           // Max tasks claimed per tick
}

const baseBackoff = 5 * time.Second

// DefaultTickerConfig returns sensible defaults
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval:   1 * time.Second,
		Lease:      60 * time.Second,
		MaxBackoff: 5 * time.Minute,
		BatchSize:  100,
	}
}

// NewTicker creates a new Pulse ticker
func NewTicker(store *Store, registry *Registry, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	return NewTickerWithContext(context.Background(), store, registry, cfg, log)
}

// NewTickerWithContext creates a ticker with a parent context
func NewTickerWithContext(ctx context.Context, store *Store, registry *Registry, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	defaults := DefaultTickerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaults.Lease
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}

	tickerCtx, cancel := context.WithCancel(ctx)
	return &Ticker{
		store:    store,
		registry: registry,
		cfg:      cfg,
		ctx:      tickerCtx,
		cancel:   cancel,
		logger:   log.With(logger.FieldComponent, "pulse"),
	}
}

// Start begins the ticker loop
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.logger.Infow("Pulse ticker started", "interval", t.cfg.Interval, "handlers", t.registry.Names())
}

// Stop gracefully stops the ticker, waiting for in-flight handlers
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.logger.Infow("Pulse ticker stopped")
}

func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			t.mu.Lock()
			t.lastTickAt = tickTime
			t.ticksSinceStart++
			t.mu.Unlock()

			if _, err := t.RunDue(t.ctx, tickTime); err != nil && t.ctx.Err() == nil {
				// Don't spam logs - log errors at warn level
				t.logger.Warnw("Pulse tick error", logger.FieldError, err, "tick", t.ticksSinceStart)
			}
		}
	}
}

// RunDue claims and executes every task due at now, up to the batch size.
// Returns how many tasks this call claimed.
func (t *Ticker) RunDue(ctx context.Context, now time.Time) (int, error) {
	tasks, err := t.store.ListDue(ctx, now, t.cfg.BatchSize)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list due tasks")
	}

	claimed := 0
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			return claimed, ctx.Err()
		default:
		}

		ok, err := t.store.Claim(ctx, task.ID, now, now.Add(t.cfg.Lease))
		if err != nil {
			t.logger.Errorw("Failed to claim task", logger.FieldTaskID, task.ID, logger.FieldError, err)
			continue
		}
		if !ok {
			// Another ticker got it first, or it was cancelled in between
			continue
		}
		claimed++
		task.Attempts++
		t.execute(ctx, task, now)
	}
	return claimed, nil
}

func (t *Ticker) execute(ctx context.Context, task *Task, now time.Time) {
	log := t.logger.With(
		logger.FieldTaskID, task.ID,
		logger.FieldTaskName, task.Name,
		"attempt", task.Attempts)

	startTime := time.Now()
	run, err := t.store.StartRun(ctx, task.ID, startTime)
	if err != nil {
		// Run history is informational; keep going
		log.Warnw("Failed to record task run", logger.FieldError, err)
	}

	handleErr := t.invoke(ctx, task)

	completedAt := time.Now()
	durationMs := int(completedAt.Sub(startTime).Milliseconds())

	if handleErr != nil {
		t.mu.Lock()
		t.failed++
		t.mu.Unlock()

		retryAt := now.Add(t.backoff(task.Attempts))
		log.Errorw("Pulse task FAILED",
			logger.FieldError, handleErr,
			logger.FieldErrorKind, errors.Kind(handleErr),
			logger.FieldDurationMS, durationMs,
			"retry_at", retryAt)
		if err := t.store.Reschedule(ctx, task.ID, retryAt, handleErr.Error()); err != nil {
			log.Errorw("Failed to reschedule task after failure", logger.FieldError, err)
		}
	} else {
		t.mu.Lock()
		t.succeeded++
		t.mu.Unlock()

		if task.Recurring() {
			nextRun := now.Add(time.Duration(task.IntervalSeconds) * time.Second)
			if err := t.store.Reschedule(ctx, task.ID, nextRun, ""); err != nil {
				log.Errorw("Failed to schedule next occurrence", logger.FieldError, err)
			}
			log.Debugw("Pulse task OK", logger.FieldDurationMS, durationMs, "next_run_at", nextRun)
		} else {
			if err := t.store.Complete(ctx, task.ID); err != nil {
				log.Errorw("Failed to mark task completed", logger.FieldError, err)
			}
			log.Infow("Pulse task OK", logger.FieldDurationMS, durationMs)
		}
	}

	if run == nil {
		return
	}
	run.CompletedAt = util.Ptr(completedAt)
	run.DurationMs = &durationMs
	run.Status = RunStatusCompleted
	if handleErr != nil {
		run.Status = RunStatusFailed
		run.ErrorMessage = handleErr.Error()
	}
	if err := t.store.FinishRun(ctx, run); err != nil {
		log.Warnw("Failed to update task run", logger.FieldError, err)
	}
}

// invoke runs the task's handler under the lease deadline, converting panics to errors.
func (t *Ticker) invoke(ctx context.Context, task *Task) (err error) {
	handler := t.registry.Get(task.Name)
	if handler == nil {
		return errors.Newf("no handler registered for task %q", task.Name)
	}

	handlerCtx, cancel := context.WithTimeout(ctx, t.cfg.Lease)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("handler %s panicked: %s", task.Name, fmt.Sprint(r))
		}
	}()
	return handler.Handle(handlerCtx, task)
}

// backoff returns the retry delay for the given attempt count: 5s, 10s, 20s, ... capped.
func (t *Ticker) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := baseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= t.cfg.MaxBackoff {
			return t.cfg.MaxBackoff
		}
	}
	if delay > t.cfg.MaxBackoff {
		return t.cfg.MaxBackoff
	}
	return delay
}

// GetStats returns ticker statistics
func (t *Ticker) GetStats() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	return map[string]interface{}{
		"last_tick_at":      t.lastTickAt,
		"ticks_since_start": t.ticksSinceStart,
		"interval":          t.cfg.Interval,
		"succeeded":         t.succeeded,
		"failed":            t.failed,
	}
}
