package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"scenecast-backend/internal/models"
)

const cancelledMsg = "cancelled by user"

// Cancel stops an active task. The provider is asked to cancel, but the
// task is marked failed whatever the provider answers, freeing the scene
// for a new submission.
func (o *Orchestrator) Cancel(ctx context.Context, userID string, projectID, taskID uuid.UUID) (*models.VideoTask, error) {
	if _, err := o.ownedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", taskID, err)
	}
	if task.ProjectID != projectID {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}

	return o.cancelTask(ctx, task, cancelledMsg)
}

// CancelByVideoID cancels the task carrying the provider's video id.
func (o *Orchestrator) CancelByVideoID(ctx context.Context, userID string, projectID uuid.UUID, videoID string) (*models.VideoTask, error) {
	if _, err := o.ownedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	task, err := o.store.FindTaskByVideoID(ctx, projectID, "", videoID)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}

	return o.cancelTask(ctx, task, cancelledMsg)
}

func (o *Orchestrator) cancelTask(ctx context.Context, task *models.VideoTask, reason string) (*models.VideoTask, error) {
	unlock := o.locks.Lock(task.ID)
	defer unlock()

	bg := context.WithoutCancel(ctx)

	id := task.ID
	task, err := o.store.GetTask(bg, id)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	if task.Status.Terminal() {
		return task, fmt.Errorf("task is already %s: %w", task.Status, ErrInvalidState)
	}

	log := o.taskLogger(task)
	o.cancelAtProvider(ctx, task)

	ok, err := o.fail(bg, task, reason)
	if err != nil {
		return nil, err
	}
	fresh := o.reload(bg, task)
	if !ok {
		return fresh, fmt.Errorf("task is already %s: %w", fresh.Status, ErrInvalidState)
	}

	log.Info().Msg("video task cancelled")
	return fresh, nil
}

// cancelAtProvider asks the provider to stop the generation. Failures are
// only logged.
func (o *Orchestrator) cancelAtProvider(ctx context.Context, task *models.VideoTask) {
	if task.VideoID == "" {
		return
	}

	log := o.taskLogger(task)
	adapter, err := o.providers.Get(task.Provider)
	if err != nil {
		log.Warn().Err(err).Msg("cannot cancel at provider")
		return
	}

	cctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel()
	if err := adapter.Cancel(cctx, task.VideoID); err != nil {
		log.Warn().Err(err).Str("video_id", task.VideoID).Msg("provider cancel failed, marking task failed anyway")
	}
}
