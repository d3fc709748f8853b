package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"scenecast-backend/internal/models"
)

const dispatchIncompleteMsg = "dispatch did not complete"

// Outcome is what one reconciliation did to a task.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeRetrying  Outcome = "retrying"
	OutcomeSkipped   Outcome = "skipped"
)

type SweepStats struct {
	Checked   int
	Completed int
	Failed    int
	Retrying  int
	Skipped   int
	Errors    int
}

// Reconciler polls providers for in-flight tasks. Polls fan out over a
// bounded worker pool so outbound provider calls never exceed
// MaxConcurrentPolls.
type Reconciler struct {
	orch     *Orchestrator
	pool     *ants.Pool
	interval time.Duration
	logger   zerolog.Logger
	running  atomic.Bool
	inflight sync.WaitGroup
}

func NewReconciler(orch *Orchestrator) (*Reconciler, error) {
	logger := orch.logger.With().Str("component", "reconciler").Logger()

	pool, err := ants.NewPool(orch.opts.MaxConcurrentPolls, ants.WithPanicHandler(func(p any) {
		logger.Error().Interface("panic", p).Msg("reconcile worker panicked")
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Reconciler{
		orch:     orch,
		pool:     pool,
		interval: orch.opts.ReconcileInterval,
		logger:   logger,
	}, nil
}

// Start sweeps every interval until ctx is done. A second call while running
// returns immediately.
func (r *Reconciler) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}
	defer r.running.Store(false)

	r.logger.Info().Dur("interval", r.interval).Msg("reconciler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reconciler stopping")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

func (r *Reconciler) IsRunning() bool {
	return r.running.Load()
}

// Close waits for queued reconciliations and releases the pool.
func (r *Reconciler) Close() {
	r.inflight.Wait()
	r.pool.Release()
}

// Sweep reconciles every processing task and every pending task older than
// the grace period, and waits for the batch to finish. Tasks another
// goroutine is working on are skipped this round.
func (r *Reconciler) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	tasks, err := r.orch.store.ListActiveTasks(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list active tasks: %w", err)
	}

	cutoff := time.Now().Add(-r.orch.opts.PendingGracePeriod)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(outcome Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		stats.Checked++
		if err != nil {
			stats.Errors++
			return
		}
		switch outcome {
		case OutcomeCompleted:
			stats.Completed++
		case OutcomeFailed:
			stats.Failed++
		case OutcomeRetrying:
			stats.Retrying++
		case OutcomeSkipped:
			stats.Skipped++
		}
	}

	for _, task := range tasks {
		if task.Status == models.TaskStatusPending && task.CreatedAt.After(cutoff) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		id := task.ID
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			outcome, err := r.reconcile(ctx, id, true)
			if err != nil {
				r.logger.Error().Err(err).Str("task_id", id.String()).Msg("failed to reconcile task")
			}
			record(outcome, err)
		})
		if err != nil {
			wg.Done()
			record("", err)
			r.logger.Error().Err(err).Str("task_id", id.String()).Msg("failed to queue reconciliation")
		}
	}
	wg.Wait()

	if stats.Checked > 0 {
		r.logger.Debug().
			Int("checked", stats.Checked).
			Int("completed", stats.Completed).
			Int("failed", stats.Failed).
			Int("retrying", stats.Retrying).
			Int("skipped", stats.Skipped).
			Int("errors", stats.Errors).
			Msg("sweep finished")
	}
	return stats, ctx.Err()
}

// ReconcileTask polls one task now, waiting for any other writer of the
// task to finish first.
func (r *Reconciler) ReconcileTask(ctx context.Context, taskID uuid.UUID) (Outcome, error) {
	return r.reconcile(ctx, taskID, false)
}

// HandleCallback reacts to a provider notification by reconciling the
// matching task in the background.
func (r *Reconciler) HandleCallback(ctx context.Context, provider models.Provider, videoID string) (*models.VideoTask, error) {
	task, err := r.orch.store.FindTaskByProviderVideoID(ctx, provider, videoID)
	if err != nil {
		return nil, fmt.Errorf("task for %s video %s: %w", provider, videoID, err)
	}
	if task.Status.Terminal() {
		return task, nil
	}

	id := task.ID
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		bg := context.Background()
		if err := r.pool.Submit(func() {
			if _, err := r.reconcile(bg, id, false); err != nil {
				r.logger.Error().Err(err).Str("task_id", id.String()).Msg("failed to reconcile task from callback")
			}
		}); err != nil {
			r.logger.Error().Err(err).Str("task_id", id.String()).Msg("failed to queue callback reconciliation")
		}
	}()
	return task, nil
}

func (r *Reconciler) reconcile(ctx context.Context, taskID uuid.UUID, try bool) (Outcome, error) {
	locks := r.orch.locks
	var unlock func()
	if try {
		var ok bool
		if unlock, ok = locks.TryLock(taskID); !ok {
			return OutcomeSkipped, nil
		}
	} else {
		unlock = locks.Lock(taskID)
	}
	defer unlock()

	task, err := r.orch.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OutcomeSkipped, nil
		}
		return "", err
	}
	if task.Status.Terminal() {
		return OutcomeUnchanged, nil
	}

	log := r.orch.taskLogger(task)

	if task.VideoID == "" {
		if time.Since(task.CreatedAt) < r.orch.opts.PendingGracePeriod {
			return OutcomeUnchanged, nil
		}
		log.Warn().Msg("pending task never reached the provider")
		return r.failed(r.orch.fail(ctx, task, dispatchIncompleteMsg))
	}

	adapter, err := r.orch.providers.Get(task.Provider)
	if err != nil {
		return r.failed(r.orch.fail(ctx, task, err.Error()))
	}

	pctx, cancel := context.WithTimeout(ctx, r.orch.opts.ProviderTimeout)
	result, pollErr := adapter.Poll(pctx, task.VideoID)
	cancel()

	// Malformed answers count as transient poll failures.
	if pollErr == nil {
		switch {
		case result == nil:
			pollErr = fmt.Errorf("%w: %s returned no status", ErrProviderUnavailable, task.Provider)
		case result.Status == models.TaskStatusCompleted && result.VideoURL == "":
			pollErr = fmt.Errorf("%w: %s reported completion without a video url", ErrProviderUnavailable, task.Provider)
		}
	}

	if pollErr != nil {
		pollErr = providerError(pollErr)
		if errors.Is(pollErr, ErrProviderRejected) {
			log.Warn().Err(pollErr).Msg("provider rejected status poll")
			return r.failed(r.orch.fail(ctx, task, pollErr.Error()))
		}

		count, err := r.orch.store.RecordPollFailure(ctx, task.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return OutcomeUnchanged, nil
			}
			return "", err
		}
		if count >= r.orch.opts.MaxPollFailures {
			msg := fmt.Sprintf("provider unavailable: polling timed out after %d consecutive failures: %v", count, pollErr)
			return r.failed(r.orch.fail(ctx, task, msg))
		}
		log.Warn().Err(pollErr).Int("poll_failures", count).Msg("transient poll failure, will retry")
		return OutcomeRetrying, nil
	}

	switch result.Status {
	case models.TaskStatusCompleted:
		ok, err := r.orch.complete(ctx, task, result.VideoURL)
		if err != nil {
			return "", err
		}
		if !ok {
			return OutcomeUnchanged, nil
		}
		return OutcomeCompleted, nil

	case models.TaskStatusFailed:
		msg := result.Error
		if msg == "" {
			msg = "video generation failed"
		}
		return r.failed(r.orch.fail(ctx, task, msg))

	default:
		if task.Status == models.TaskStatusPending {
			if _, err := r.orch.store.MarkProcessing(ctx, task.ID, task.VideoID); err != nil {
				return "", err
			}
		}
		if task.PollFailures > 0 {
			if err := r.orch.store.ResetPollFailures(ctx, task.ID); err != nil {
				return "", err
			}
		}
		return OutcomeUnchanged, nil
	}
}

func (r *Reconciler) failed(ok bool, err error) (Outcome, error) {
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeUnchanged, nil
	}
	return OutcomeFailed, nil
}
