package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"scenecast-backend/internal/models"
	"scenecast-backend/internal/orchestrator"
)

type WebhookHandler struct {
	reconciler *orchestrator.Reconciler
	logger     zerolog.Logger
}

func NewWebhookHandler(reconciler *orchestrator.Reconciler, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		logger:     logger.With().Str("component", "webhook").Logger(),
	}
}

// ProviderCallback is the subset of a provider notification used to find
// the task. Runway sends id, Pika sends generation_id or video_id. Status is
// only logged; the task state always comes from a fresh poll.
type ProviderCallback struct {
	ID           string `json:"id"`
	GenerationID string `json:"generation_id"`
	VideoID      string `json:"video_id"`
	Status       string `json:"status"`
}

func (cb ProviderCallback) videoID() string {
	switch {
	case cb.VideoID != "":
		return cb.VideoID
	case cb.GenerationID != "":
		return cb.GenerationID
	default:
		return cb.ID
	}
}

// HandleWebhook godoc
// @Summary     Provider webhook endpoint
// @Description Receives generation callbacks and reconciles the matching task right away instead of waiting for the next sweep.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       provider path string true "runway or pika"
// @Param       Authorization header string true "Shared webhook token"
// @Success     200 {object} map[string]string "status"
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /webhooks/{provider} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := models.Provider(c.Param("provider"))
	if !provider.Valid() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown provider"})
		return
	}

	var event ProviderCallback
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse event",
			Message: err.Error(),
		})
		return
	}

	videoID := event.videoID()
	if videoID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing video id"})
		return
	}

	h.logger.Debug().
		Str("provider", string(provider)).
		Str("video_id", videoID).
		Str("callback_status", event.Status).
		Msg("provider callback received")

	task, err := h.reconciler.HandleCallback(c.Request.Context(), provider, videoID)
	if err != nil {
		respondError(c, err, "unknown video")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "task_id": task.ID.String()})
}
