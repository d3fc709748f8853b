package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scenecast-backend/internal/models"
	"scenecast-backend/internal/orchestrator"
)

type VideosHandler struct {
	orch *orchestrator.Orchestrator
}

func NewVideosHandler(orch *orchestrator.Orchestrator) *VideosHandler {
	return &VideosHandler{orch: orch}
}

// GenerateVideo godoc
// @Summary     Generate scene video
// @Description Starts video generation for one scene. A scene may have only one pending or processing task.
// @Description When the provider refuses the job the failed task is returned in the error body.
// @Tags        videos
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       request body models.GenerateVideoRequest true "Generation request"
// @Success     200 {object} models.GenerateVideoResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse "Scene already has an active task"
// @Failure     422 {object} models.ErrorResponse "Provider rejected the request"
// @Failure     502 {object} models.ErrorResponse "Provider unavailable"
// @Router      /projects/{project_id}/generate-video [post]
func (h *VideosHandler) GenerateVideo(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", "project id")
	if !ok {
		return
	}

	var req models.GenerateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sceneID, err := uuid.Parse(req.SceneID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid scene id"})
		return
	}

	task, err := h.orch.Submit(c.Request.Context(), userID, orchestrator.SubmitRequest{
		ProjectID:   projectID,
		SceneID:     sceneID,
		Prompt:      req.Prompt,
		Provider:    models.Provider(req.Provider),
		ImageURL:    req.ImageURL,
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		respondTaskError(c, err, "failed to start video generation", task)
		return
	}

	msg := "video generation started"
	if task.Status == models.TaskStatusCompleted {
		msg = "video generation completed"
	}

	c.JSON(http.StatusOK, models.GenerateVideoResponse{
		TaskID:   task.ID.String(),
		VideoID:  task.VideoID,
		Status:   task.Status,
		Provider: task.Provider,
		Message:  msg,
		VideoURL: task.VideoURL,
		Task:     task,
	})
}

// CancelTask godoc
// @Summary     Cancel video task
// @Description Asks the provider to stop and marks the task failed, freeing the scene
// @Tags        videos
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       task_id path string true "Task ID"
// @Success     200 {object} models.CancelResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse "Task already finished"
// @Router      /projects/{project_id}/tasks/{task_id} [delete]
func (h *VideosHandler) CancelTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", "project id")
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "task_id", "task id")
	if !ok {
		return
	}

	task, err := h.orch.Cancel(c.Request.Context(), userID, projectID, taskID)
	h.respondCancel(c, task, err)
}

// CancelVideo godoc
// @Summary     Cancel video by provider id
// @Tags        videos
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       video_id path string true "Provider video ID"
// @Success     200 {object} models.CancelResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse "Task already finished"
// @Router      /projects/{project_id}/video/{video_id} [delete]
func (h *VideosHandler) CancelVideo(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", "project id")
	if !ok {
		return
	}

	task, err := h.orch.CancelByVideoID(c.Request.Context(), userID, projectID, c.Param("video_id"))
	h.respondCancel(c, task, err)
}

func (h *VideosHandler) respondCancel(c *gin.Context, task *models.VideoTask, err error) {
	if err != nil {
		respondTaskError(c, err, "failed to cancel video generation", task)
		return
	}
	c.JSON(http.StatusOK, models.CancelResponse{
		Message: "video generation cancelled",
		VideoID: task.VideoID,
		Task:    task,
	})
}
