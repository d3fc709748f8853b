package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scenecast-backend/internal/models"
	"scenecast-backend/internal/orchestrator"
)

// VideoStatus godoc
// @Summary     Video status
// @Description Returns the stored task for a provider video id. Failed tasks are returned with 200 and their error_msg.
// @Tags        videos
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       request body models.VideoStatusRequest true "Provider and video id"
// @Success     200 {object} models.VideoTask
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id}/video-status [post]
func (h *VideosHandler) VideoStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", "project id")
	if !ok {
		return
	}

	var req models.VideoStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.orch.TaskStatus(c.Request.Context(), userID, projectID, models.Provider(req.Provider), req.VideoID)
	if err != nil {
		respondError(c, err, "video not found")
		return
	}

	c.JSON(http.StatusOK, task)
}

// ListVideos godoc
// @Summary     List video tasks
// @Tags        videos
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       status query string false "pending, processing, completed or failed"
// @Param       limit query int false "Page size, at most 100" default(20)
// @Param       offset query int false "Offset"
// @Success     200 {object} models.TaskListResponse
// @Router      /projects/{project_id}/videos [get]
func (h *VideosHandler) ListVideos(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", "project id")
	if !ok {
		return
	}

	var req models.ListVideosRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid query", Message: err.Error()})
		return
	}

	tasks, total, err := h.orch.ListTasks(c.Request.Context(), userID, projectID, orchestrator.ListTasksRequest{
		Status: models.TaskStatus(req.Status),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		respondError(c, err, "failed to list videos")
		return
	}
	if tasks == nil {
		tasks = []models.VideoTask{}
	}

	c.JSON(http.StatusOK, models.TaskListResponse{Total: total, Data: tasks})
}

// GetTask godoc
// @Summary     Get video task
// @Tags        videos
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       task_id path string true "Task ID"
// @Success     200 {object} models.VideoTask
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id}/tasks/{task_id} [get]
func (h *VideosHandler) GetTask(c *gin.Context) {
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

	task, err := h.orch.GetTask(c.Request.Context(), userID, projectID, taskID)
	if err != nil {
		respondError(c, err, "task not found")
		return
	}

	c.JSON(http.StatusOK, task)
}
