package models

type CreateProjectRequest struct {
	Title  string               `json:"title" binding:"required,max=200"`
	Prompt string               `json:"prompt" binding:"required"`
	Scenes []CreateSceneRequest `json:"scenes" binding:"dive"`
}

// CreateSceneRequest carries one scene produced by the upstream decomposition step.
type CreateSceneRequest struct {
	SceneNumber int      `json:"scene_number" binding:"required,min=1"`
	Title       string   `json:"title"`
	Location    string   `json:"location"`
	Characters  []string `json:"characters"`
	Dialogue    string   `json:"dialogue"`
	ShotType    string   `json:"shot_type"`
	Duration    int      `json:"duration" binding:"required,min=1"`
	ImageURL    string   `json:"image_url"`
}

type UpdateProjectRequest struct {
	Title string `json:"title" binding:"required,max=200"`
}

type GenerateVideoRequest struct {
	SceneID     string `json:"scene_id" binding:"required"`
	Prompt      string `json:"prompt" binding:"required"`
	Provider    string `json:"provider" binding:"required,oneof=runway pika"`
	ImageURL    string `json:"image_url"`
	Duration    int    `json:"duration" binding:"omitempty,min=1,max=60"`
	AspectRatio string `json:"aspect_ratio" binding:"omitempty,oneof=16:9 9:16"`
}

type VideoStatusRequest struct {
	VideoID  string `json:"video_id" binding:"required"`
	Provider string `json:"provider" binding:"required,oneof=runway pika"`
}

type ListVideosRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending processing completed failed"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type ErrorResponse struct {
	Error   string     `json:"error"`
	Message string     `json:"message,omitempty"`
	Task    *VideoTask `json:"task,omitempty"`
}
