// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"scenecast-backend/internal/database"
	"scenecast-backend/internal/models"
)

// NewStore opens a migrated sqlite store in a temp dir, closed on cleanup.
func NewStore(t testing.TB) *database.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scenecast.db")
	store, err := database.Open("sqlite", path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// CreateProject stores a project owned by userID with n scenes numbered from 1.
func CreateProject(t testing.TB, store *database.Store, userID string, n int) *models.Project {
	t.Helper()

	project := &models.Project{
		UserID: userID,
		Title:  "Test project",
		Prompt: "a lighthouse keeper finds a message in a bottle",
	}
	for i := 1; i <= n; i++ {
		project.Scenes = append(project.Scenes, models.Scene{
			SceneNumber: i,
			Title:       fmt.Sprintf("Scene %d", i),
			Location:    "lighthouse",
			Characters:  []string{"keeper"},
			ShotType:    "wide",
			Duration:    5,
		})
	}

	require.NoError(t, store.CreateProject(context.Background(), project))
	return project
}
