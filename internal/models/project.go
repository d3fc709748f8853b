package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusFailed     ProjectStatus = "failed"
)

type Project struct {
	ID        uuid.UUID     `json:"id"`
	UserID    string        `json:"user_id"`
	Title     string        `json:"title"`
	Prompt    string        `json:"prompt"`
	Status    ProjectStatus `json:"status"`
	Scenes    []Scene       `json:"scenes,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Scene is one narrative beat of a project. SceneNumber is 1-based and
// contiguous within a project.
type Scene struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	SceneNumber int       `json:"scene_number"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Characters  []string  `json:"characters"`
	Dialogue    string    `json:"dialogue"`
	ShotType    string    `json:"shot_type"`
	Duration    int       `json:"duration"`
	ImageURL    string    `json:"image_url,omitempty"`
	VideoURL    string    `json:"video_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SceneByID returns the scene with the given id, or nil.
func (p *Project) SceneByID(id uuid.UUID) *Scene {
	for i := range p.Scenes {
		if p.Scenes[i].ID == id {
			return &p.Scenes[i]
		}
	}
	return nil
}
