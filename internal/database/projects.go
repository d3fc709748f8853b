package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scenecast-backend/internal/models"
)

const projectColumns = `id, user_id, title, prompt, status, created_at, updated_at`

const sceneColumns = `id, project_id, scene_number, title, location, characters, dialogue,
	shot_type, duration, image_url, video_url, created_at, updated_at`

// CreateProject inserts the project and its scenes in one transaction. IDs and
// timestamps left zero are filled in.
func (s *Store) CreateProject(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusDraft
	}
	project.CreatedAt = now
	project.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		project.ID, project.UserID, project.Title, project.Prompt, project.Status,
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	for i := range project.Scenes {
		scene := &project.Scenes[i]
		if scene.ID == uuid.Nil {
			scene.ID = uuid.New()
		}
		scene.ProjectID = project.ID
		scene.CreatedAt = now
		scene.UpdatedAt = now
		if scene.Characters == nil {
			scene.Characters = []string{}
		}

		characters, err := json.Marshal(scene.Characters)
		if err != nil {
			return fmt.Errorf("failed to encode characters: %w", err)
		}

		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO scenes (`+sceneColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			scene.ID, scene.ProjectID, scene.SceneNumber, scene.Title, scene.Location,
			string(characters), scene.Dialogue, scene.ShotType, scene.Duration,
			scene.ImageURL, scene.VideoURL, scene.CreatedAt, scene.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scene %d: %w", scene.SceneNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}
	return nil
}

// GetProject loads a project and its scenes ordered by scene_number.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+projectColumns+` FROM projects WHERE id = ?`), id)
	project, err := scanProject(row)
	if err != nil {
		return nil, err
	}

	scenes, err := s.ListScenes(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Scenes = scenes
	return project, nil
}

// ListProjects returns the user's projects, newest first, without scenes.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+projectColumns+` FROM projects
		WHERE user_id = ?
		ORDER BY created_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, rows.Err()
}

func (s *Store) UpdateProjectTitle(ctx context.Context, id uuid.UUID, title string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE projects SET title = ?, updated_at = ? WHERE id = ?`),
		title, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return expectRow(res)
}

// UpdateProjectStatus persists a recomputed status. It only touches
// updated_at when the status actually changes.
func (s *Store) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE projects SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`),
		status, time.Now().UTC(), id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	return nil
}

// DeleteProject removes the project; scenes and tasks cascade.
func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM projects WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return expectRow(res)
}

func (s *Store) ListScenes(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+sceneColumns+` FROM scenes
		WHERE project_id = ?
		ORDER BY scene_number`), projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	defer rows.Close()

	scenes := []models.Scene{}
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, *scene)
	}
	return scenes, rows.Err()
}

func (s *Store) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+sceneColumns+` FROM scenes WHERE id = ?`), id)
	return scanScene(row)
}

// SetSceneVideoURL records the latest task result on the scene. An empty url
// clears it.
func (s *Store) SetSceneVideoURL(ctx context.Context, id uuid.UUID, videoURL string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE scenes SET video_url = ?, updated_at = ? WHERE id = ?`),
		videoURL, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update scene: %w", err)
	}
	return expectRow(res)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Prompt, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return &p, nil
}

func scanScene(row rowScanner) (*models.Scene, error) {
	var sc models.Scene
	var characters string
	err := row.Scan(
		&sc.ID, &sc.ProjectID, &sc.SceneNumber, &sc.Title, &sc.Location, &characters,
		&sc.Dialogue, &sc.ShotType, &sc.Duration, &sc.ImageURL, &sc.VideoURL,
		&sc.CreatedAt, &sc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan scene: %w", err)
	}

	sc.Characters = []string{}
	if characters != "" {
		if err := json.Unmarshal([]byte(characters), &sc.Characters); err != nil {
			return nil, fmt.Errorf("failed to decode characters for scene %s: %w", sc.ID, err)
		}
	}
	return &sc, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
