package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"scenecast-backend/internal/models"
)

// Aggregate derives a project's status from its scenes and each scene's
// most recent task.
//
//   - draft: no scenes, or no scene has a task yet
//   - completed: every scene's latest task completed
//   - processing: any latest task is pending or processing
//   - failed: some latest task failed and none is active
//   - processing otherwise, i.e. some scenes done and others not started
func Aggregate(scenes []models.Scene, latest map[uuid.UUID]models.VideoTask) models.ProjectStatus {
	if len(scenes) == 0 {
		return models.ProjectStatusDraft
	}

	var withTask, completed int
	var active, failed bool
	for _, scene := range scenes {
		task, ok := latest[scene.ID]
		if !ok {
			continue
		}
		withTask++
		switch task.Status {
		case models.TaskStatusCompleted:
			completed++
		case models.TaskStatusFailed:
			failed = true
		case models.TaskStatusPending, models.TaskStatusProcessing:
			active = true
		}
	}

	switch {
	case withTask == 0:
		return models.ProjectStatusDraft
	case completed == len(scenes):
		return models.ProjectStatusCompleted
	case active:
		return models.ProjectStatusProcessing
	case failed:
		return models.ProjectStatusFailed
	default:
		return models.ProjectStatusProcessing
	}
}

// Recompute loads the project's scenes and latest tasks, persists the
// derived status and returns it.
func (o *Orchestrator) Recompute(ctx context.Context, projectID uuid.UUID) (models.ProjectStatus, error) {
	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	return o.recompute(ctx, project)
}

func (o *Orchestrator) recompute(ctx context.Context, project *models.Project) (models.ProjectStatus, error) {
	latest, err := o.store.LatestTasks(ctx, project.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load latest tasks: %w", err)
	}

	status := Aggregate(project.Scenes, latest)
	if status == project.Status {
		return status, nil
	}

	if err := o.store.UpdateProjectStatus(ctx, project.ID, status); err != nil {
		return "", err
	}
	o.logger.Info().
		Str("project_id", project.ID.String()).
		Str("from", string(project.Status)).
		Str("to", string(status)).
		Msg("project status changed")

	project.Status = status
	o.publishProject(project.ID, status)
	return status, nil
}
