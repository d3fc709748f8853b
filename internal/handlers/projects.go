package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scenecast-backend/internal/models"
	"scenecast-backend/internal/orchestrator"
)

type ProjectsHandler struct {
	orch *orchestrator.Orchestrator
}

func NewProjectsHandler(orch *orchestrator.Orchestrator) *ProjectsHandler {
	return &ProjectsHandler{orch: orch}
}

// CreateProject godoc
// @Summary     Create project
// @Description Stores a project together with the scene list produced by the script decomposition step
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateProjectRequest true "Project and scenes"
// @Success     201 {object} models.Project
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.orch.CreateProject(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "failed to create project")
		return
	}

	c.JSON(http.StatusCreated, project)
}

// ListProjects godoc
// @Summary     List projects
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	projects, err := h.orch.ListProjects(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to list projects")
		return
	}

	summaries := make([]models.ProjectSummary, len(projects))
	for i, p := range projects {
		summaries[i] = models.ProjectSummary{
			ID:        p.ID.String(),
			Title:     p.Title,
			Status:    p.Status,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
	}

	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: summaries})
}

// GetProject godoc
// @Summary     Get project
// @Description Returns the project with its scenes; status is derived from each scene's latest video task
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} models.Project
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", "project id")
	if !ok {
		return
	}

	project, err := h.orch.GetProject(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err, "project not found")
		return
	}

	c.JSON(http.StatusOK, project)
}

// UpdateProject godoc
// @Summary     Rename project
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       request body models.UpdateProjectRequest true "New title"
// @Success     200 {object} models.Project
// @Router      /projects/{project_id} [put]
func (h *ProjectsHandler) UpdateProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", "project id")
	if !ok {
		return
	}

	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.orch.UpdateProjectTitle(c.Request.Context(), userID, projectID, req.Title)
	if err != nil {
		respondError(c, err, "failed to update project")
		return
	}

	c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary     Delete project
// @Description Cancels in-flight generations, then deletes the project with its scenes, tasks and mirrored videos
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} map[string]string
// @Router      /projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", "project id")
	if !ok {
		return
	}

	if err := h.orch.DeleteProject(c.Request.Context(), userID, projectID); err != nil {
		respondError(c, err, "failed to delete project")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}

// ListScenes godoc
// @Summary     List scenes
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} models.SceneListResponse
// @Router      /projects/{project_id}/scenes [get]
func (h *ProjectsHandler) ListScenes(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", "project id")
	if !ok {
		return
	}

	scenes, err := h.orch.ListScenes(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err, "failed to list scenes")
		return
	}
	if scenes == nil {
		scenes = []models.Scene{}
	}

	c.JSON(http.StatusOK, models.SceneListResponse{Scenes: scenes})
}
