// Package orchestrator runs scene video generation: it dispatches tasks to
// providers, reconciles their progress, handles cancellation and keeps each
// project's status derived from its scenes' latest tasks.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scenecast-backend/internal/config"
	"scenecast-backend/internal/database"
	"scenecast-backend/internal/models"
	"scenecast-backend/internal/providers"
	"scenecast-backend/internal/realtime"
	"scenecast-backend/internal/storage"
)

const mirrorTimeout = 2 * time.Minute

// Store is the task record store the orchestrator runs on.
type Store interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, userID string) ([]models.Project, error)
	UpdateProjectTitle(ctx context.Context, id uuid.UUID, title string) error
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error
	DeleteProject(ctx context.Context, id uuid.UUID) error

	CreateTask(ctx context.Context, task *models.VideoTask) error
	GetTask(ctx context.Context, id uuid.UUID) (*models.VideoTask, error)
	FindTaskByVideoID(ctx context.Context, projectID uuid.UUID, provider models.Provider, videoID string) (*models.VideoTask, error)
	FindTaskByProviderVideoID(ctx context.Context, provider models.Provider, videoID string) (*models.VideoTask, error)
	ListTasks(ctx context.Context, projectID uuid.UUID, filter database.TaskFilter) ([]models.VideoTask, int, error)
	ListActiveTasks(ctx context.Context) ([]models.VideoTask, error)
	ListActiveTasksForProject(ctx context.Context, projectID uuid.UUID) ([]models.VideoTask, error)
	LatestTasks(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]models.VideoTask, error)

	UpdateTaskProvider(ctx context.Context, id uuid.UUID, provider models.Provider) (bool, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, videoID string) (bool, error)
	CompleteTask(ctx context.Context, id uuid.UUID, videoURL string, at time.Time) (bool, error)
	FailTask(ctx context.Context, id uuid.UUID, msg string, at time.Time) (bool, error)
	RecordPollFailure(ctx context.Context, id uuid.UUID) (int, error)
	ResetPollFailures(ctx context.Context, id uuid.UUID) error
}

type Options struct {
	ProviderTimeout    time.Duration
	Failover           bool
	ReconcileInterval  time.Duration
	PendingGracePeriod time.Duration
	MaxPollFailures    int
	MaxConcurrentPolls int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ProviderTimeout:    cfg.ProviderTimeout,
		Failover:           cfg.ProviderFailover,
		ReconcileInterval:  cfg.ReconcileInterval,
		PendingGracePeriod: cfg.PendingGracePeriod,
		MaxPollFailures:    cfg.MaxPollFailures,
		MaxConcurrentPolls: cfg.MaxConcurrentPolls,
	}
}

func (o Options) withDefaults() Options {
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 30 * time.Second
	}
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = 10 * time.Second
	}
	if o.PendingGracePeriod <= 0 {
		o.PendingGracePeriod = 2 * time.Minute
	}
	if o.MaxPollFailures <= 0 {
		o.MaxPollFailures = 5
	}
	if o.MaxConcurrentPolls <= 0 {
		o.MaxConcurrentPolls = 8
	}
	return o
}

type Orchestrator struct {
	store     Store
	providers *providers.Registry
	mirror    storage.Mirror
	events    realtime.Publisher
	locks     *taskLocks
	opts      Options
	logger    zerolog.Logger
}

// New wires the orchestrator. mirror and events may be nil.
func New(store Store, registry *providers.Registry, mirror storage.Mirror, events realtime.Publisher, opts Options, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		providers: registry,
		mirror:    mirror,
		events:    events,
		locks:     newTaskLocks(),
		opts:      opts.withDefaults(),
		logger:    logger.With().Str("component", "orchestrator").Logger(),
	}
}

func (o *Orchestrator) taskLogger(task *models.VideoTask) zerolog.Logger {
	return o.logger.With().
		Str("task_id", task.ID.String()).
		Str("project_id", task.ProjectID.String()).
		Str("provider", string(task.Provider)).
		Logger()
}

// complete finalizes a task with the provider's video. The video is
// mirrored first when a mirror is configured; a mirror failure keeps the
// provider URL.
func (o *Orchestrator) complete(ctx context.Context, task *models.VideoTask, providerURL string) (bool, error) {
	log := o.taskLogger(task)

	videoURL := providerURL
	if o.mirror != nil {
		mctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
		path := storage.ObjectPath(task.ProjectID.String(), task.SceneID.String(), task.ID.String())
		mirrored, err := o.mirror.Mirror(mctx, providerURL, path)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("failed to mirror video, keeping provider url")
		} else {
			videoURL = mirrored
		}
	}

	ok, err := o.store.CompleteTask(ctx, task.ID, videoURL, time.Now())
	if err != nil {
		return false, err
	}
	if !ok {
		log.Debug().Msg("completion discarded, task already terminal")
		return false, nil
	}

	log.Info().Str("video_url", videoURL).Msg("video task completed")
	o.afterTransition(ctx, task.ID, task.ProjectID)
	return true, nil
}

// fail moves an active task to failed. A task that is already terminal is
// left untouched.
func (o *Orchestrator) fail(ctx context.Context, task *models.VideoTask, msg string) (bool, error) {
	ok, err := o.store.FailTask(ctx, task.ID, msg, time.Now())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	log := o.taskLogger(task)
	log.Info().Str("error_msg", msg).Msg("video task failed")
	o.afterTransition(ctx, task.ID, task.ProjectID)
	return true, nil
}

// afterTransition recomputes the project status and publishes the new task
// state. Failures here are logged; the task write already happened.
func (o *Orchestrator) afterTransition(ctx context.Context, taskID, projectID uuid.UUID) {
	if _, err := o.Recompute(ctx, projectID); err != nil {
		o.logger.Error().Err(err).Str("project_id", projectID.String()).Msg("failed to recompute project status")
	}
	o.publishTask(ctx, taskID)
}

func (o *Orchestrator) publishTask(ctx context.Context, taskID uuid.UUID) {
	if o.events == nil {
		return
	}
	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return
	}
	o.events.Publish(realtime.Event{Type: realtime.EventTaskUpdated, ProjectID: task.ProjectID, Task: task})
}

func (o *Orchestrator) publishProject(projectID uuid.UUID, status models.ProjectStatus) {
	if o.events == nil {
		return
	}
	o.events.Publish(realtime.Event{Type: realtime.EventProjectUpdated, ProjectID: projectID, Status: status})
}
