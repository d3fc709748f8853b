package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast-backend/internal/models"
	"scenecast-backend/internal/orchestrator"
	"scenecast-backend/internal/providers"
)

func TestSweep_CompletesTask(t *testing.T) {
	e := newEnv(t, orchestrator.Options{})
	p := e.project(t, 1)

	task, err := e.submit(t, p, 0, models.ProviderRunway)
	require.NoError(t, err)

	e.runway.setPoll(completedPoll("https://cdn.runway/v1.mp4"))
	stats, err := e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Checked)
	assert.Equal(t, 1, stats.Completed)

	got := e.task(t, task)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Equal(t, "https://cdn.runway/v1.mp4", got.VideoURL)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, models.ProjectStatusCompleted, e.projectStatus(t, p))

	// Completed tasks are no longer swept.
	stats, err = e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Checked)
}

func TestSweep_TransientFailuresThenSuccess(t *testing.T) {
	e := newEnv(t, orchestrator.Options{MaxPollFailures: 3})
	p := e.project(t, 1)

	task, err := e.submit(t, p, 0, models.ProviderRunway)
	require.NoError(t, err)

	e.runway.setPoll(func(call int) (*providers.PollResult, error) {
		if call <= 2 {
			return nil, unavailableErr(models.ProviderRunway)
		}
		return &providers.PollResult{Status: models.TaskStatusCompleted, VideoURL: "https://cdn.runway/ok.mp4"}, nil
	})

	for i := 1; i <= 2; i++ {
		stats, err := e.rec.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Retrying)

		got := e.task(t, task)
		assert.Equal(t, models.TaskStatusProcessing, got.Status)
		assert.Equal(t, i, got.PollFailures)
	}

	stats, err := e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, models.TaskStatusCompleted, e.task(t, task).Status)
}

func TestSweep_SuccessfulPollResetsFailures(t *testing.T) {
	e := newEnv(t, orchestrator.Options{MaxPollFailures: 3})
	p := e.project(t, 1)

	task, err := e.submit(t, p, 0, models.ProviderRunway)
	require.NoError(t, err)

	// fail, fail, ok, fail, fail: never three in a row
	e.runway.setPoll(func(call int) (*providers.PollResult, error) {
		if call == 3 {
			return &providers.PollResult{Status: models.TaskStatusProcessing}, nil
		}
		return nil, unavailableErr(models.ProviderRunway)
	})

	for i := 0; i < 5; i++ {
		_, err := e.rec.Sweep(context.Background())
		require.NoError(t, err)
	}

	got := e.task(t, task)
	assert.Equal(t, models.TaskStatusProcessing, got.Status)
	assert.Equal(t, 2, got.PollFailures)
}

func TestSweep_ProviderDownForever(t *testing.T) {
	e := newEnv(t, orchestrator.Options{MaxPollFailures: 3})
	p := e.project(t, 1)

	task, err := e.submit(t, p, 0, models.ProviderPika)
	require.NoError(t, err)

	e.pika.setPoll(func(int) (*providers.PollResult, error) {
		return nil, errors.New("connection refused")
	})

	for i := 0; i < 3; i++ {
		_, err := e.rec.Sweep(context.Background())
		require.NoError(t, err)
	}

	got := e.task(t, task)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMsg, "polling timed out after 3 consecutive failures")
	assert.Equal(t, models.ProjectStatusFailed, e.projectStatus(t, p))

	// Terminal: further sweeps leave it alone.
	polls := e.pika.polls.Load()
	_, err = e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, polls, e.pika.polls.Load())
}

func TestSweep_CompletedWithoutURLIsRetried(t *testing.T) {
	e := newEnv(t, orchestrator.Options{MaxPollFailures: 3})
	p := e.project(t, 1)

	task, err := e.submit(t, p, 0, models.ProviderRunway)
	require.NoError(t, err)

	e.runway.setPoll(completedPoll(""))

	stats, err := e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retrying)
	assert.Zero(t, stats.Completed)

	got := e.task(t, task)
	assert.Equal(t, models.TaskStatusProcessing, got.Status)
	assert.Equal(t, 1, got.PollFailures)
	assert.Empty(t, got.VideoURL)
	assert.Equal(t, models.ProjectStatusProcessing, e.projectStatus(t, p))

	for i := 0; i < 2; i++ {
		_, err := e.rec.Sweep(context.Background())
		require.NoError(t, err)
	}

	got = e.task(t, task)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMsg, "polling timed out after 3 consecutive failures")
	assert.Contains(t, got.ErrorMsg, "without a video url")
	assert.Empty(t, got.VideoURL)
}

func TestSweep_NilPollResultIsRetried(t *testing.T) {
	e := newEnv(t, orchestrator.Options{MaxPollFailures: 3})
	p := e.project(t, 1)

	task, err := e.submit(t, p, 0, models.ProviderPika)
	require.NoError(t, err)

	e.pika.setPoll(func(int) (*providers.PollResult, error) {
		return nil, nil
	})

	stats, err := e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retrying)

	got := e.task(t, task)
	assert.Equal(t, models.TaskStatusProcessing, got.Status)
	assert.Equal(t, 1, got.PollFailures)

	// A later good answer still completes the task.
	e.pika.setPoll(completedPoll("https://cdn.example/v.mp4"))
	stats, err = e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, models.TaskStatusCompleted, e.task(t, task).Status)
}

func TestSweep_RejectedPollFailsImmediately(t *testing.T) {
	e := newEnv(t, orchestrator.Options{MaxPollFailures: 5})
	p := e.project(t, 1)

	task, err := e.submit(t, p, 0, models.ProviderRunway)
	require.NoError(t, err)

	e.runway.setPoll(func(int) (*providers.PollResult, error) {
		return nil, &providers.Error{Provider: models.ProviderRunway, Op: "poll", Kind: providers.KindRejected, StatusCode: 404, Err: errors.New("generation not found")}
	})

	stats, err := e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	got := e.task(t, task)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMsg, "generation not found")
}

func TestSweep_ProviderReportsFailure(t *testing.T) {
	tests := []struct {
		name    string
		errText string
		want    string
	}{
		{"with reason", "content moderation", "content moderation"},
		{"without reason", "", "video generation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, orchestrator.Options{})
			p := e.project(t, 1)

			task, err := e.submit(t, p, 0, models.ProviderRunway)
			require.NoError(t, err)

			e.runway.setPoll(func(int) (*providers.PollResult, error) {
				return &providers.PollResult{Status: models.TaskStatusFailed, Error: tt.errText}, nil
			})

			_, err = e.rec.Sweep(context.Background())
			require.NoError(t, err)

			got := e.task(t, task)
			assert.Equal(t, models.TaskStatusFailed, got.Status)
			assert.Equal(t, tt.want, got.ErrorMsg)
		})
	}
}

func TestSweep_StalePendingTaskFails(t *testing.T) {
	e := newEnv(t, orchestrator.Options{PendingGracePeriod: 50 * time.Millisecond})
	p := e.project(t, 1)

	// A task whose dispatch never reached the provider.
	task := &models.VideoTask{
		ProjectID:   p.ID,
		SceneID:     p.Scenes[0].ID,
		Provider:    models.ProviderRunway,
		Prompt:      "orphaned",
		Duration:    5,
		AspectRatio: "16:9",
	}
	require.NoError(t, e.store.CreateTask(context.Background(), task))

	stats, err := e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Checked, "young pending tasks are left to their dispatcher")

	time.Sleep(100 * time.Millisecond)

	stats, err = e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	got := e.task(t, task)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Equal(t, "dispatch did not complete", got.ErrorMsg)
	assert.Zero(t, e.runway.polls.Load())
}

func TestSweep_BoundsConcurrentPolls(t *testing.T) {
	e := newEnv(t, orchestrator.Options{MaxConcurrentPolls: 2})
	p := e.project(t, 6)

	for i := range p.Scenes {
		_, err := e.submit(t, p, i, models.ProviderRunway)
		require.NoError(t, err)
	}

	var current, peak atomic.Int32
	e.runway.setPoll(func(int) (*providers.PollResult, error) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return &providers.PollResult{Status: models.TaskStatusProcessing}, nil
	})

	stats, err := e.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Checked)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestReconcileTask_TerminalIsUnchanged(t *testing.T) {
	e := newEnv(t, orchestrator.Options{})
	e.runway.immediate = "https://cdn.runway/done.mp4"
	p := e.project(t, 1)

	task, err := e.submit(t, p, 0, models.ProviderRunway)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusCompleted, task.Status)

	outcome, err := e.rec.ReconcileTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeUnchanged, outcome)
	assert.Zero(t, e.runway.polls.Load())
}

func TestHandleCallback(t *testing.T) {
	e := newEnv(t, orchestrator.Options{})
	p := e.project(t, 1)

	task, err := e.submit(t, p, 0, models.ProviderPika)
	require.NoError(t, err)

	e.pika.setPoll(completedPoll("https://cdn.pika.art/cb.mp4"))

	got, err := e.rec.HandleCallback(context.Background(), models.ProviderPika, task.VideoID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	require.Eventually(t, func() bool {
		return e.task(t, task).Status == models.TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	_, err = e.rec.HandleCallback(context.Background(), models.ProviderRunway, task.VideoID)
	assert.ErrorIs(t, err, orchestrator.ErrNotFound)
}

func TestTerminalStateIsFinalUnderRace(t *testing.T) {
	e := newEnv(t, orchestrator.Options{})
	p := e.project(t, 1)
	e.runway.setPoll(completedPoll("https://cdn.runway/race.mp4"))

	for i := 0; i < 10; i++ {
		task, err := e.submit(t, p, 0, models.ProviderRunway)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = e.orch.Cancel(context.Background(), owner, p.ID, task.ID)
		}()
		go func() {
			defer wg.Done()
			_, _ = e.rec.ReconcileTask(context.Background(), task.ID)
		}()
		wg.Wait()

		final := e.task(t, task)
		require.True(t, final.Status.Terminal())

		_, err = e.orch.Cancel(context.Background(), owner, p.ID, task.ID)
		assert.ErrorIs(t, err, orchestrator.ErrInvalidState)
		outcome, err := e.rec.ReconcileTask(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.OutcomeUnchanged, outcome)

		again := e.task(t, task)
		assert.Equal(t, final.Status, again.Status)
		assert.Equal(t, final.ErrorMsg, again.ErrorMsg)
		assert.Equal(t, final.VideoURL, again.VideoURL)
	}
}
