package orchestrator_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"scenecast-backend/internal/database"
	"scenecast-backend/internal/models"
	"scenecast-backend/internal/orchestrator"
	"scenecast-backend/internal/providers"
	"scenecast-backend/internal/realtime"
	"scenecast-backend/internal/testutil"
)

const owner = "user-1"

// stubAdapter is a scripted provider.
type stubAdapter struct {
	name models.Provider

	mu        sync.Mutex
	startErr  error
	immediate string
	poll      func(call int) (*providers.PollResult, error)
	cancelErr error
	cancelled []string

	starts atomic.Int32
	polls  atomic.Int32
}

func newStub(name models.Provider) *stubAdapter {
	return &stubAdapter{
		name: name,
		poll: func(int) (*providers.PollResult, error) {
			return &providers.PollResult{Status: models.TaskStatusProcessing}, nil
		},
	}
}

func (s *stubAdapter) Name() models.Provider { return s.name }

func (s *stubAdapter) Start(ctx context.Context, req providers.Request) (*providers.StartResult, error) {
	n := s.starts.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return nil, s.startErr
	}
	res := &providers.StartResult{VideoID: fmt.Sprintf("%s-%d", s.name, n), Status: models.TaskStatusPending}
	if s.immediate != "" {
		res.Status = models.TaskStatusCompleted
		res.VideoURL = s.immediate
	}
	return res, nil
}

func (s *stubAdapter) Poll(ctx context.Context, videoID string) (*providers.PollResult, error) {
	n := int(s.polls.Add(1))
	s.mu.Lock()
	fn := s.poll
	s.mu.Unlock()
	return fn(n)
}

func (s *stubAdapter) Cancel(ctx context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, videoID)
	return s.cancelErr
}

func (s *stubAdapter) setPoll(fn func(call int) (*providers.PollResult, error)) {
	s.mu.Lock()
	s.poll = fn
	s.mu.Unlock()
}

func (s *stubAdapter) cancelCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancelled...)
}

func unavailableErr(provider models.Provider) error {
	return &providers.Error{Provider: provider, Op: "poll", Kind: providers.KindUnavailable, StatusCode: 503, Err: fmt.Errorf("service unavailable")}
}

func rejectedErr(provider models.Provider) error {
	return &providers.Error{Provider: provider, Op: "start", Kind: providers.KindRejected, StatusCode: 400, Err: fmt.Errorf("prompt violates policy")}
}

type env struct {
	orch   *orchestrator.Orchestrator
	rec    *orchestrator.Reconciler
	store  *database.Store
	hub    *realtime.Hub
	runway *stubAdapter
	pika   *stubAdapter
}

func newEnv(t *testing.T, opts orchestrator.Options) *env {
	t.Helper()

	store := testutil.NewStore(t)
	runway := newStub(models.ProviderRunway)
	pika := newStub(models.ProviderPika)
	hub := realtime.NewHub(64)

	if opts.ProviderTimeout == 0 {
		opts.ProviderTimeout = time.Second
	}
	if opts.MaxPollFailures == 0 {
		opts.MaxPollFailures = 3
	}
	if opts.MaxConcurrentPolls == 0 {
		opts.MaxConcurrentPolls = 4
	}

	orch := orchestrator.New(store, providers.NewRegistry(runway, pika), nil, hub, opts, zerolog.Nop())
	rec, err := orchestrator.NewReconciler(orch)
	require.NoError(t, err)
	t.Cleanup(rec.Close)

	return &env{orch: orch, rec: rec, store: store, hub: hub, runway: runway, pika: pika}
}

func (e *env) project(t *testing.T, scenes int) *models.Project {
	return testutil.CreateProject(t, e.store, owner, scenes)
}

func (e *env) submit(t *testing.T, p *models.Project, scene int, provider models.Provider) (*models.VideoTask, error) {
	t.Helper()
	return e.orch.Submit(context.Background(), owner, orchestrator.SubmitRequest{
		ProjectID: p.ID,
		SceneID:   p.Scenes[scene].ID,
		Prompt:    fmt.Sprintf("scene %d prompt", scene+1),
		Provider:  provider,
	})
}

func (e *env) projectStatus(t *testing.T, p *models.Project) models.ProjectStatus {
	t.Helper()
	got, err := e.store.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	return got.Status
}

func (e *env) task(t *testing.T, task *models.VideoTask) *models.VideoTask {
	t.Helper()
	got, err := e.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	return got
}

func completedPoll(url string) func(int) (*providers.PollResult, error) {
	return func(int) (*providers.PollResult, error) {
		return &providers.PollResult{Status: models.TaskStatusCompleted, VideoURL: url}, nil
	}
}
