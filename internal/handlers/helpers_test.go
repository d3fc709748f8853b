package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"scenecast-backend/internal/config"
	"scenecast-backend/internal/database"
	"scenecast-backend/internal/models"
	"scenecast-backend/internal/orchestrator"
	"scenecast-backend/internal/providers"
	"scenecast-backend/internal/realtime"
	"scenecast-backend/internal/router"
	"scenecast-backend/internal/testutil"
)

const (
	jwtSecret    = "test-secret-key-for-jwt-signing-must-be-long-enough"
	webhookToken = "hook-secret"
	owner        = "user-1"
)

type fakeProvider struct {
	name models.Provider

	mu       sync.Mutex
	startErr error
	status   models.TaskStatus
	videoURL string
	seq      atomic.Int32
}

func (f *fakeProvider) Name() models.Provider { return f.name }

func (f *fakeProvider) Start(ctx context.Context, req providers.Request) (*providers.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &providers.StartResult{
		VideoID: fmt.Sprintf("%s-%d", f.name, f.seq.Add(1)),
		Status:  models.TaskStatusPending,
	}, nil
}

func (f *fakeProvider) Poll(ctx context.Context, videoID string) (*providers.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.status
	if status == "" {
		status = models.TaskStatusProcessing
	}
	return &providers.PollResult{Status: status, VideoURL: f.videoURL}, nil
}

func (f *fakeProvider) Cancel(ctx context.Context, videoID string) error { return nil }

func (f *fakeProvider) set(fn func(f *fakeProvider)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type testServer struct {
	router *gin.Engine
	store  *database.Store
	orch   *orchestrator.Orchestrator
	rec    *orchestrator.Reconciler
	runway *fakeProvider
	pika   *fakeProvider
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.NewStore(t)
	runway := &fakeProvider{name: models.ProviderRunway}
	pika := &fakeProvider{name: models.ProviderPika}
	hub := realtime.NewHub(16)

	orch := orchestrator.New(store, providers.NewRegistry(runway, pika), nil, hub, orchestrator.Options{}, zerolog.Nop())
	rec, err := orchestrator.NewReconciler(orch)
	require.NoError(t, err)
	t.Cleanup(rec.Close)

	r := router.New(router.Deps{
		Config:       &config.Config{JWTSecret: jwtSecret, WebhookToken: webhookToken},
		Logger:       zerolog.Nop(),
		DB:           store,
		Orchestrator: orch,
		Reconciler:   rec,
		Hub:          hub,
	})

	return &testServer{router: r, store: store, orch: orch, rec: rec, runway: runway, pika: pika}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

// do sends a request as owner; body is JSON-encoded when not nil.
func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	return s.doAs(t, owner, method, path, body)
}

func (s *testServer) doAs(t *testing.T, user, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, user))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
