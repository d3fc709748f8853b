package models

import (
	"time"

	"github.com/google/uuid"
)

type Provider string

const (
	ProviderRunway Provider = "runway"
	ProviderPika   Provider = "pika"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	return p == ProviderRunway || p == ProviderPika
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Active reports whether the status is pending or processing.
func (s TaskStatus) Active() bool {
	return s == TaskStatusPending || s == TaskStatusProcessing
}

// Terminal reports whether the status is completed or failed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	return s.Active() || s.Terminal()
}

// VideoTask is one attempt to render a scene's video through a provider.
type VideoTask struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	SceneID      uuid.UUID  `json:"scene_id"`
	VideoID      string     `json:"video_id"`
	Provider     Provider   `json:"provider"`
	Status       TaskStatus `json:"status"`
	Prompt       string     `json:"prompt"`
	ImageURL     string     `json:"image_url,omitempty"`
	Duration     int        `json:"duration"`
	AspectRatio  string     `json:"aspect_ratio"`
	VideoURL     string     `json:"video_url,omitempty"`
	ErrorMsg     string     `json:"error_msg,omitempty"`
	PollFailures int        `json:"poll_failures"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
