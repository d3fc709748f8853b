package providers

import (
	"strings"

	"scenecast-backend/internal/models"
)

// NormalizeStatus maps a provider's native status string onto the task
// lifecycle. Unknown values are treated as still processing.
func NormalizeStatus(raw string) models.TaskStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)

	switch s {
	case "pending", "queued", "throttled", "submitted", "waiting":
		return models.TaskStatusPending
	case "running", "processing", "in_progress", "started":
		return models.TaskStatusProcessing
	case "succeeded", "completed", "success", "finished", "done":
		return models.TaskStatusCompleted
	case "failed", "failure", "error", "cancelled", "canceled":
		return models.TaskStatusFailed
	default:
		return models.TaskStatusProcessing
	}
}
