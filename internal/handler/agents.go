package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"tradeagents/internal/agent"
	"tradeagents/internal/models"
	"tradeagents/internal/paas"
	"tradeagents/internal/repository"
	"tradeagents/internal/telemetry"
)

const defaultStreamInterval = 5 * time.Second

type AgentsHandler struct {
	Repo      repository.Repository
	Agents    map[models.AgentType]agent.Agent
	Heartbeat *agent.Heartbeat
	Metrics   *telemetry.Metrics
	Logger    *zap.Logger

	// StreamInterval is the push period of the status websocket.
	StreamInterval time.Duration

	running sync.Map
}

func (h *AgentsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v2/agents")
	g.GET("", h.list)
	g.GET("/stream", h.stream)
	g.POST("/:agent/run", h.run)
}

// @Summary List agent statuses
// @Tags agents
// @Success 200 {object} apiResponse
// @Router /api/v2/agents [get]
func (h *AgentsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListAgentStatuses(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

// @Summary Run one agent cycle now
// @Tags agents
// @Param agent path string true "perception|planning|decision|execution|memory|reflection"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v2/agents/{agent}/run [post]
func (h *AgentsHandler) run(c *gin.Context) {
	name, err := models.ParseAgentType(c.Param("agent"))
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	a, ok := h.Agents[name]
	if !ok || a == nil {
		Error(c, http.StatusNotFound, "agent not enabled", nil)
		return
	}
	if _, busy := h.running.LoadOrStore(name, struct{}{}); busy {
		Error(c, http.StatusConflict, "agent cycle already running", nil)
		return
	}
	defer h.running.Delete(name)

	ctx := paas.WithStage(c.Request.Context(), string(name))
	summary, err := agent.RunCycle(ctx, a, h.Heartbeat, h.Logger, h.Metrics)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), map[string]any{"summary": summary})
		return
	}
	Ok(c, summary, nil)
}

// stream pushes every AgentStatus row on connect and then once per interval.
func (h *AgentsHandler) stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	// Incoming messages are ignored; the returned context ends when the client goes away.
	ctx := conn.CloseRead(c.Request.Context())
	interval := h.StreamInterval
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := h.push(ctx, conn); err != nil {
			if ctx.Err() == nil && h.Logger != nil {
				h.Logger.Debug("agent stream closed", zap.Error(err))
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *AgentsHandler) push(ctx context.Context, conn *websocket.Conn) error {
	items, err := h.Repo.ListAgentStatuses(ctx)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(wctx, conn, map[string]any{
		"type":   "agent_status",
		"at":     time.Now().UTC(),
		"agents": items,
	})
}
