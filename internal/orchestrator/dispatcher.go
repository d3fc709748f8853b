package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"scenecast-backend/internal/database"
	"scenecast-backend/internal/models"
	"scenecast-backend/internal/providers"
)

const (
	defaultAspectRatio = "16:9"
	minDuration        = 1
	maxDuration        = 60
)

var aspectRatios = map[string]bool{"16:9": true, "9:16": true}

type SubmitRequest struct {
	ProjectID   uuid.UUID
	SceneID     uuid.UUID
	Prompt      string
	Provider    models.Provider
	ImageURL    string
	Duration    int
	AspectRatio string
}

// Submit creates a pending task for the scene and starts it at the provider.
//
// A scene with an active task yields ErrConflict and nothing is written. When
// the provider refuses to start, the task is returned already failed together
// with an error wrapping ErrProviderRejected or ErrProviderUnavailable.
func (o *Orchestrator) Submit(ctx context.Context, userID string, req SubmitRequest) (*models.VideoTask, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, invalid("prompt is required")
	}
	if !req.Provider.Valid() {
		return nil, invalid("unsupported video provider: %s", req.Provider)
	}
	adapter, err := o.providers.Get(req.Provider)
	if err != nil {
		return nil, invalid("%v", err)
	}
	if req.AspectRatio == "" {
		req.AspectRatio = defaultAspectRatio
	}
	if !aspectRatios[req.AspectRatio] {
		return nil, invalid("aspect_ratio must be 16:9 or 9:16")
	}
	if req.Duration != 0 && (req.Duration < minDuration || req.Duration > maxDuration) {
		return nil, invalid("duration must be between %d and %d seconds", minDuration, maxDuration)
	}

	project, err := o.ownedProject(ctx, userID, req.ProjectID)
	if err != nil {
		return nil, err
	}
	scene := project.SceneByID(req.SceneID)
	if scene == nil {
		return nil, fmt.Errorf("scene %s: %w", req.SceneID, ErrNotFound)
	}

	if req.Duration == 0 {
		req.Duration = clamp(scene.Duration, minDuration, maxDuration)
	}
	if req.ImageURL == "" {
		req.ImageURL = scene.ImageURL
	}

	task := &models.VideoTask{
		ProjectID:   project.ID,
		SceneID:     scene.ID,
		Provider:    req.Provider,
		Prompt:      req.Prompt,
		ImageURL:    req.ImageURL,
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
	}
	if err := o.store.CreateTask(ctx, task); err != nil {
		if errors.Is(err, database.ErrActiveTaskExists) {
			return nil, fmt.Errorf("scene %d: %w", scene.SceneNumber, ErrConflict)
		}
		return nil, err
	}

	log := o.taskLogger(task)
	log.Info().Int("scene_number", scene.SceneNumber).Msg("video task created")

	// The task exists now; finish its bookkeeping even if the caller goes away.
	bg := context.WithoutCancel(ctx)

	if _, err := o.recompute(bg, project); err != nil {
		log.Error().Err(err).Msg("failed to recompute project status")
	}
	o.publishTask(bg, task.ID)

	unlock := o.locks.Lock(task.ID)
	defer unlock()

	result, adapter, startErr := o.start(ctx, task, adapter, providers.Request{
		Prompt:      req.Prompt,
		ImageURL:    req.ImageURL,
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
	})
	if startErr != nil {
		startErr = providerError(startErr)
		log.Warn().Err(startErr).Msg("provider refused to start generation")
		if _, err := o.fail(bg, task, startErr.Error()); err != nil {
			log.Error().Err(err).Msg("failed to mark task failed")
		}
		return o.reload(bg, task), fmt.Errorf("failed to start generation: %w", startErr)
	}

	ok, err := o.store.MarkProcessing(bg, task.ID, result.VideoID)
	if err != nil {
		return o.reload(bg, task), err
	}
	if !ok {
		// Lost to a writer in another process; report what is stored.
		return o.reload(bg, task), nil
	}
	task.Status = models.TaskStatusProcessing
	task.VideoID = result.VideoID
	task.Provider = adapter.Name()
	log.Info().Str("video_id", result.VideoID).Msg("video generation started")

	if result.Status == models.TaskStatusCompleted && result.VideoURL != "" {
		if _, err := o.complete(bg, task, result.VideoURL); err != nil {
			log.Error().Err(err).Msg("failed to complete task")
		}
	} else {
		o.publishTask(bg, task.ID)
	}

	return o.reload(bg, task), nil
}

// start calls the provider under the provider timeout. With failover on, a
// transient failure is retried once on another provider, which is then
// recorded on the task.
func (o *Orchestrator) start(ctx context.Context, task *models.VideoTask, adapter providers.Adapter, req providers.Request) (*providers.StartResult, providers.Adapter, error) {
	result, err := o.startWith(ctx, adapter, req)
	if err == nil || !o.opts.Failover || errors.Is(err, ErrProviderRejected) {
		return result, adapter, err
	}

	alt, ok := o.providers.Alternate(adapter.Name())
	if !ok {
		return nil, adapter, err
	}

	log := o.taskLogger(task)
	log.Warn().Err(err).
		Str("fallback", string(alt.Name())).
		Msg("primary provider failed, attempting fallback")

	result, altErr := o.startWith(ctx, alt, req)
	if altErr != nil {
		return nil, alt, fmt.Errorf("both providers failed: primary: %v, fallback: %w", err, providerError(altErr))
	}

	if _, err := o.store.UpdateTaskProvider(context.WithoutCancel(ctx), task.ID, alt.Name()); err != nil {
		return nil, alt, err
	}
	task.Provider = alt.Name()
	return result, alt, nil
}

func (o *Orchestrator) startWith(ctx context.Context, adapter providers.Adapter, req providers.Request) (*providers.StartResult, error) {
	sctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel()

	result, err := adapter.Start(sctx, req)
	if err != nil {
		return nil, err
	}
	if result == nil || result.VideoID == "" {
		return nil, fmt.Errorf("%w: %s returned no video id", ErrProviderUnavailable, adapter.Name())
	}
	return result, nil
}

// reload returns the stored task, falling back to the in-memory copy.
func (o *Orchestrator) reload(ctx context.Context, task *models.VideoTask) *models.VideoTask {
	fresh, err := o.store.GetTask(ctx, task.ID)
	if err != nil {
		return task
	}
	return fresh
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
