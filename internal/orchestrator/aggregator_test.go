package orchestrator_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast-backend/internal/models"
	"scenecast-backend/internal/orchestrator"
	"scenecast-backend/internal/providers"
	"scenecast-backend/internal/realtime"
)

func TestAggregate(t *testing.T) {
	scenes := []models.Scene{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	with := func(statuses ...models.TaskStatus) map[uuid.UUID]models.VideoTask {
		latest := make(map[uuid.UUID]models.VideoTask)
		for i, s := range statuses {
			if s == "" {
				continue
			}
			latest[scenes[i].ID] = models.VideoTask{SceneID: scenes[i].ID, Status: s}
		}
		return latest
	}

	const (
		none       = models.TaskStatus("")
		pending    = models.TaskStatusPending
		processing = models.TaskStatusProcessing
		completed  = models.TaskStatusCompleted
		failed     = models.TaskStatusFailed
	)

	tests := []struct {
		name   string
		scenes []models.Scene
		latest map[uuid.UUID]models.VideoTask
		want   models.ProjectStatus
	}{
		{"no scenes", nil, nil, models.ProjectStatusDraft},
		{"no tasks", scenes, with(), models.ProjectStatusDraft},
		{"all completed", scenes, with(completed, completed, completed), models.ProjectStatusCompleted},
		{"two completed one failed", scenes, with(completed, completed, failed), models.ProjectStatusFailed},
		{"one pending", scenes, with(pending, none, none), models.ProjectStatusProcessing},
		{"active beats failed", scenes, with(failed, processing, completed), models.ProjectStatusProcessing},
		{"partial progress", scenes, with(completed, none, none), models.ProjectStatusProcessing},
		{"failed with untouched scene", scenes, with(completed, failed, none), models.ProjectStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orchestrator.Aggregate(tt.scenes, tt.latest))
		})
	}
}

func TestProjectStatus_ThreeScenes(t *testing.T) {
	e := newEnv(t, orchestrator.Options{})
	p := e.project(t, 3)

	var tasks []*models.VideoTask
	for i := range p.Scenes {
		task, err := e.submit(t, p, i, models.ProviderRunway)
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	assert.Equal(t, models.ProjectStatusProcessing, e.projectStatus(t, p))

	failing := tasks[2].VideoID
	for _, task := range tasks[:2] {
		e.runway.setPoll(completedPoll("https://cdn.runway/" + task.VideoID + ".mp4"))
		_, err := e.rec.ReconcileTask(context.Background(), task.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, models.ProjectStatusProcessing, e.projectStatus(t, p))

	e.runway.setPoll(func(int) (*providers.PollResult, error) {
		return &providers.PollResult{Status: models.TaskStatusFailed, Error: "render crashed for " + failing}, nil
	})
	_, err := e.rec.ReconcileTask(context.Background(), tasks[2].ID)
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusFailed, e.projectStatus(t, p))

	// Retrying the failed scene to completion completes the project.
	retry, err := e.submit(t, p, 2, models.ProviderRunway)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusProcessing, e.projectStatus(t, p))

	e.runway.setPoll(completedPoll("https://cdn.runway/retry.mp4"))
	_, err = e.rec.ReconcileTask(context.Background(), retry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, e.projectStatus(t, p))
}

func TestExampleScenario(t *testing.T) {
	e := newEnv(t, orchestrator.Options{})
	p := e.project(t, 2)
	ctx := context.Background()

	t1, err := e.submit(t, p, 0, models.ProviderRunway)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProcessing, t1.Status)

	e.runway.setPoll(completedPoll("https://cdn.runway/scene1.mp4"))
	outcome, err := e.rec.ReconcileTask(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeCompleted, outcome)

	scene1, err := e.store.GetScene(ctx, p.Scenes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.runway/scene1.mp4", scene1.VideoURL)
	assert.Equal(t, models.ProjectStatusProcessing, e.projectStatus(t, p))

	e.pika.startErr = rejectedErr(models.ProviderPika)
	t2, err := e.submit(t, p, 1, models.ProviderPika)
	require.Error(t, err)
	require.NotNil(t, t2)
	assert.Equal(t, models.TaskStatusFailed, t2.Status)
	assert.Equal(t, models.ProjectStatusFailed, e.projectStatus(t, p))
}

func TestEventsPublished(t *testing.T) {
	e := newEnv(t, orchestrator.Options{})
	p := e.project(t, 1)

	events, cancel := e.hub.Subscribe(p.ID)
	defer cancel()

	_, err := e.submit(t, p, 0, models.ProviderRunway)
	require.NoError(t, err)

	var sawTask, sawProject bool
	for len(events) > 0 {
		ev := <-events
		assert.Equal(t, p.ID, ev.ProjectID)
		switch ev.Type {
		case realtime.EventTaskUpdated:
			sawTask = true
			require.NotNil(t, ev.Task)
		case realtime.EventProjectUpdated:
			sawProject = true
			assert.Equal(t, models.ProjectStatusProcessing, ev.Status)
		}
	}
	assert.True(t, sawTask)
	assert.True(t, sawProject)
}
