package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"scenecast-backend/internal/database"
	"scenecast-backend/internal/models"
	"scenecast-backend/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (o *Orchestrator) ownedProject(ctx context.Context, userID string, projectID uuid.UUID) (*models.Project, error) {
	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	if project.UserID != userID {
		return nil, ErrUnauthorized
	}
	return project, nil
}

// CreateProject stores a project with the scene list produced upstream.
// Scene numbers must run 1..n without gaps; they are stored in that order.
func (o *Orchestrator) CreateProject(ctx context.Context, userID string, req models.CreateProjectRequest) (*models.Project, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid("title is required")
	}

	scenes := make([]models.Scene, 0, len(req.Scenes))
	for _, s := range req.Scenes {
		if s.Duration <= 0 {
			return nil, invalid("scene %d: duration must be positive", s.SceneNumber)
		}
		scenes = append(scenes, models.Scene{
			SceneNumber: s.SceneNumber,
			Title:       s.Title,
			Location:    s.Location,
			Characters:  s.Characters,
			Dialogue:    s.Dialogue,
			ShotType:    s.ShotType,
			Duration:    s.Duration,
			ImageURL:    s.ImageURL,
		})
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].SceneNumber < scenes[j].SceneNumber })
	for i, s := range scenes {
		if s.SceneNumber != i+1 {
			return nil, invalid("scene numbers must be contiguous from 1, got %d at position %d", s.SceneNumber, i+1)
		}
	}

	project := &models.Project{
		UserID: userID,
		Title:  title,
		Prompt: req.Prompt,
		Status: models.ProjectStatusDraft,
		Scenes: scenes,
	}
	if err := o.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("project_id", project.ID.String()).
		Int("scenes", len(scenes)).
		Msg("project created")
	return project, nil
}

// GetProject returns the project with its scenes and a freshly derived
// status.
func (o *Orchestrator) GetProject(ctx context.Context, userID string, projectID uuid.UUID) (*models.Project, error) {
	project, err := o.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := o.recompute(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (o *Orchestrator) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	return o.store.ListProjects(ctx, userID)
}

func (o *Orchestrator) UpdateProjectTitle(ctx context.Context, userID string, projectID uuid.UUID, title string) (*models.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if _, err := o.ownedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if err := o.store.UpdateProjectTitle(ctx, projectID, title); err != nil {
		return nil, err
	}
	return o.GetProject(ctx, userID, projectID)
}

// DeleteProject asks providers to stop the project's active tasks, then
// deletes the project with its scenes and tasks and any mirrored videos.
// Provider and mirror failures do not block the delete.
func (o *Orchestrator) DeleteProject(ctx context.Context, userID string, projectID uuid.UUID) error {
	if _, err := o.ownedProject(ctx, userID, projectID); err != nil {
		return err
	}

	active, err := o.store.ListActiveTasksForProject(ctx, projectID)
	if err != nil {
		return err
	}
	for i := range active {
		task := &active[i]
		unlock := o.locks.Lock(task.ID)
		o.cancelAtProvider(ctx, task)
		unlock()
	}

	if err := o.store.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("project %s: %w", projectID, err)
	}

	if o.mirror != nil {
		if err := o.mirror.DeletePrefix(ctx, storage.ProjectPrefix(projectID.String())); err != nil {
			o.logger.Warn().Err(err).Str("project_id", projectID.String()).Msg("failed to delete mirrored videos")
		}
	}

	o.logger.Info().
		Str("project_id", projectID.String()).
		Int("cancelled_tasks", len(active)).
		Msg("project deleted")
	return nil
}

func (o *Orchestrator) ListScenes(ctx context.Context, userID string, projectID uuid.UUID) ([]models.Scene, error) {
	project, err := o.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return project.Scenes, nil
}

func (o *Orchestrator) GetTask(ctx context.Context, userID string, projectID, taskID uuid.UUID) (*models.VideoTask, error) {
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
	return task, nil
}

// TaskStatus looks up a task by provider video id. It reads the store only;
// providers are polled by the reconciler.
func (o *Orchestrator) TaskStatus(ctx context.Context, userID string, projectID uuid.UUID, provider models.Provider, videoID string) (*models.VideoTask, error) {
	if !provider.Valid() {
		return nil, invalid("unsupported video provider: %s", provider)
	}
	if _, err := o.ownedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	task, err := o.store.FindTaskByVideoID(ctx, projectID, provider, videoID)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}
	return task, nil
}

type ListTasksRequest struct {
	Status models.TaskStatus
	Limit  int
	Offset int
}

func (o *Orchestrator) ListTasks(ctx context.Context, userID string, projectID uuid.UUID, req ListTasksRequest) ([]models.VideoTask, int, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, 0, invalid("unknown status %q", req.Status)
	}
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}
	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	if _, err := o.ownedProject(ctx, userID, projectID); err != nil {
		return nil, 0, err
	}
	return o.store.ListTasks(ctx, projectID, database.TaskFilter{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
}
