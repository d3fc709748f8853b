package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"scenecast-backend/internal/orchestrator"
	"scenecast-backend/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type StreamHandler struct {
	orch   *orchestrator.Orchestrator
	hub    *realtime.Hub
	logger zerolog.Logger
}

func NewStreamHandler(orch *orchestrator.Orchestrator, hub *realtime.Hub, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		orch:   orch,
		hub:    hub,
		logger: logger.With().Str("component", "stream").Logger(),
	}
}

// Stream godoc
// @Summary     Project event stream
// @Description Websocket of task.updated and project.updated events for one project. The first message carries the current project status.
// @Tags        projects
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       access_token query string false "JWT, for clients that cannot set headers"
// @Router      /projects/{project_id}/stream [get]
func (h *StreamHandler) Stream(c *gin.Context) {
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

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before reading the snapshot so no transition falls in between.
	events, unsubscribe := h.hub.Subscribe(projectID)
	defer unsubscribe()

	log := h.logger.With().Str("project_id", projectID.String()).Logger()

	project, err = h.orch.GetProject(c.Request.Context(), userID, projectID)
	if err != nil {
		log.Warn().Err(err).Msg("stream snapshot failed")
		return
	}
	log.Debug().Msg("stream opened")

	snapshot := realtime.Event{
		Type:      realtime.EventProjectUpdated,
		ProjectID: projectID,
		Status:    project.Status,
		At:        time.Now().UTC(),
	}
	if err := h.write(conn, snapshot); err != nil {
		return
	}

	// Reader: only pongs and close frames are expected.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Debug().Msg("stream closed by client")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, ev); err != nil {
				log.Debug().Err(err).Msg("stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, ev realtime.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
