package models

import "time"

type ProjectSummary struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Status    ProjectStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

type SceneListResponse struct {
	Scenes []Scene `json:"scenes"`
}

type TaskListResponse struct {
	Total int         `json:"total"`
	Data  []VideoTask `json:"data"`
}

type GenerateVideoResponse struct {
	TaskID   string     `json:"task_id"`
	VideoID  string     `json:"video_id"`
	Status   TaskStatus `json:"status"`
	Provider Provider   `json:"provider"`
	Message  string     `json:"message,omitempty"`
	VideoURL string     `json:"video_url,omitempty"`
	Task     *VideoTask `json:"task"`
}

type CancelResponse struct {
	Message string     `json:"message"`
	VideoID string     `json:"video_id,omitempty"`
	Task    *VideoTask `json:"task"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
