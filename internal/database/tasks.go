package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scenecast-backend/internal/models"
)

const taskColumns = `id, project_id, scene_id, video_id, provider, status, prompt, image_url,
	duration, aspect_ratio, video_url, error_msg, poll_failures, created_at, updated_at, completed_at`

const activeStatuses = `('pending', 'processing')`

type TaskFilter struct {
	Status models.TaskStatus
	Limit  int
	Offset int
}

// CreateTask inserts a pending task and clears the scene's video_url, which
// now belongs to the new task. The partial unique index on active tasks makes
// this the atomic check for "no active task on this scene": a violation is
// reported as ErrActiveTaskExists and nothing is written.
func (s *Store) CreateTask(ctx context.Context, task *models.VideoTask) error {
	now := time.Now().UTC()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	task.Status = models.TaskStatusPending
	task.CreatedAt = now
	task.UpdatedAt = now
	task.CompletedAt = nil

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO video_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		task.ID, task.ProjectID, task.SceneID, task.VideoID, task.Provider, task.Status,
		task.Prompt, task.ImageURL, task.Duration, task.AspectRatio, task.VideoURL,
		task.ErrorMsg, task.PollFailures, task.CreatedAt, task.UpdatedAt, nil,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrActiveTaskExists
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE scenes SET video_url = '', updated_at = ? WHERE id = ? AND video_url <> ''`),
		now, task.SceneID,
	); err != nil {
		return fmt.Errorf("failed to clear scene video: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrActiveTaskExists
		}
		return fmt.Errorf("failed to commit task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*models.VideoTask, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+taskColumns+` FROM video_tasks WHERE id = ?`), id)
	return scanTask(row)
}

// FindTaskByVideoID returns the newest task in the project carrying the
// provider's video id. An empty provider matches any provider.
func (s *Store) FindTaskByVideoID(ctx context.Context, projectID uuid.UUID, provider models.Provider, videoID string) (*models.VideoTask, error) {
	if videoID == "" {
		return nil, ErrNotFound
	}

	query := `SELECT ` + taskColumns + ` FROM video_tasks WHERE project_id = ? AND video_id = ?`
	args := []interface{}{projectID, videoID}
	if provider != "" {
		query += ` AND provider = ?`
		args = append(args, provider)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, s.rebind(query), args...)
	return scanTask(row)
}

// FindTaskByProviderVideoID is the project-agnostic lookup used by webhooks.
func (s *Store) FindTaskByProviderVideoID(ctx context.Context, provider models.Provider, videoID string) (*models.VideoTask, error) {
	if videoID == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+taskColumns+` FROM video_tasks
		WHERE provider = ? AND video_id = ?
		ORDER BY created_at DESC
		LIMIT 1`), provider, videoID)
	return scanTask(row)
}

// ListTasks pages through a project's tasks, newest first, and reports the
// total matching the filter.
func (s *Store) ListTasks(ctx context.Context, projectID uuid.UUID, filter TaskFilter) ([]models.VideoTask, int, error) {
	where := `WHERE project_id = ?`
	args := []interface{}{projectID}
	if filter.Status != "" {
		where += ` AND status = ?`
		args = append(args, filter.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM video_tasks `+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	tasks, err := s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM video_tasks `+where+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListActiveTasks returns every pending or processing task, oldest first.
func (s *Store) ListActiveTasks(ctx context.Context) ([]models.VideoTask, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM video_tasks
		WHERE status IN `+activeStatuses+`
		ORDER BY created_at`)
}

func (s *Store) ListActiveTasksForProject(ctx context.Context, projectID uuid.UUID) ([]models.VideoTask, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM video_tasks
		WHERE project_id = ? AND status IN `+activeStatuses+`
		ORDER BY created_at`, projectID)
}

// LatestTasks maps each scene of the project that has any task to its most
// recent one.
func (s *Store) LatestTasks(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]models.VideoTask, error) {
	tasks, err := s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM video_tasks
		WHERE project_id = ?
		ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}

	latest := make(map[uuid.UUID]models.VideoTask, len(tasks))
	for _, t := range tasks {
		// An active task is always the newest for its scene.
		if prev, ok := latest[t.SceneID]; ok && prev.Status.Active() {
			continue
		}
		latest[t.SceneID] = t
	}
	return latest, nil
}

// MarkProcessing records the provider's video id on a pending task and moves
// it to processing. It reports false when the task was no longer pending.
func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID, videoID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE video_tasks
		SET status = 'processing', video_id = ?, poll_failures = 0, updated_at = ?
		WHERE id = ? AND status = 'pending'`),
		videoID, time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark task processing: %w", err)
	}
	return applied(res)
}

// UpdateTaskProvider switches a pending task to another provider before it
// is dispatched.
func (s *Store) UpdateTaskProvider(ctx context.Context, id uuid.UUID, provider models.Provider) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE video_tasks SET provider = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`),
		provider, time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update task provider: %w", err)
	}
	return applied(res)
}

// CompleteTask moves an active task to completed and publishes its video on
// the scene in the same transaction. The first terminal write wins; later
// calls report false and change nothing.
func (s *Store) CompleteTask(ctx context.Context, id uuid.UUID, videoURL string, at time.Time) (bool, error) {
	at = at.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE video_tasks
		SET status = 'completed', video_url = ?, error_msg = '', updated_at = ?, completed_at = ?
		WHERE id = ? AND status IN `+activeStatuses),
		videoURL, at, at, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete task: %w", err)
	}
	ok, err := applied(res)
	if err != nil || !ok {
		return false, err
	}

	// The task was active until now, so it is the newest for its scene.
	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE scenes SET video_url = ?, updated_at = ?
		WHERE id = (SELECT scene_id FROM video_tasks WHERE id = ?)`),
		videoURL, at, id,
	); err != nil {
		return false, fmt.Errorf("failed to update scene video: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit task completion: %w", err)
	}
	return true, nil
}

// FailTask moves an active task to failed with msg. Same first-writer rule
// as CompleteTask.
func (s *Store) FailTask(ctx context.Context, id uuid.UUID, msg string, at time.Time) (bool, error) {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE video_tasks
		SET status = 'failed', error_msg = ?, video_url = '', updated_at = ?, completed_at = ?
		WHERE id = ? AND status IN `+activeStatuses),
		msg, at, at, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to fail task: %w", err)
	}
	return applied(res)
}

// RecordPollFailure bumps the consecutive poll failure counter of an active
// task and returns the new count.
func (s *Store) RecordPollFailure(ctx context.Context, id uuid.UUID) (int, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE video_tasks
		SET poll_failures = poll_failures + 1, updated_at = ?
		WHERE id = ? AND status IN `+activeStatuses),
		time.Now().UTC(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record poll failure: %w", err)
	}
	if ok, err := applied(res); err != nil {
		return 0, err
	} else if !ok {
		return 0, ErrNotFound
	}

	var count int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT poll_failures FROM video_tasks WHERE id = ?`), id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read poll failures: %w", err)
	}
	return count, nil
}

func (s *Store) ResetPollFailures(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE video_tasks
		SET poll_failures = 0, updated_at = ?
		WHERE id = ? AND poll_failures <> 0 AND status IN `+activeStatuses),
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to reset poll failures: %w", err)
	}
	return nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...interface{}) ([]models.VideoTask, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.VideoTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*models.VideoTask, error) {
	var t models.VideoTask
	var completedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.SceneID, &t.VideoID, &t.Provider, &t.Status, &t.Prompt,
		&t.ImageURL, &t.Duration, &t.AspectRatio, &t.VideoURL, &t.ErrorMsg, &t.PollFailures,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	if completedAt.Valid {
		at := completedAt.Time
		t.CompletedAt = &at
	}
	return &t, nil
}

func applied(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}
