package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

const maxTextLen = 500

// Heartbeat upserts the AgentStatus row of each agent. Failures are logged and never returned.
type Heartbeat struct {
	Repo   repository.Repository
	Logger *zap.Logger

	now func() time.Time
}

func (h *Heartbeat) Beat(ctx context.Context, agent models.AgentType, state models.AgentState, action, task string) {
	h.update(ctx, agent, func(row *models.AgentStatus) {
		row.Status = state
		row.LastAction = Truncate(action, maxTextLen)
		if task != "" {
			row.CurrentTask = task
		}
	})
}

// Fail flips the agent to error and counts the failure.
func (h *Heartbeat) Fail(ctx context.Context, agent models.AgentType, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	h.update(ctx, agent, func(row *models.AgentStatus) {
		row.Status = models.AgentError
		row.LastAction = Truncate("Error: "+msg, maxTextLen)
		row.LastError = msg
		row.ErrorCount++
	})
}

// Record marks a completed cycle and folds it into the metrics blob.
func (h *Heartbeat) Record(ctx context.Context, agent models.AgentType, summary Summary, took time.Duration) {
	h.update(ctx, agent, func(row *models.AgentStatus) {
		row.Status = models.AgentRunning
		row.LastAction = "Cycle completed"
		row.CurrentTask = "Idle"

		m, err := models.DecodeJSON[models.AgentMetrics](row.Metrics)
		if err != nil {
			m = models.AgentMetrics{}
		}
		at := h.clock()
		m.SchemaVersion = models.PayloadSchemaVersion
		m.LastRunAt = &at
		m.LastDurationMs = took.Milliseconds()
		m.DegradedTotal += int64(summary.Degraded())
		m.Runs++
		m.LastSummary = summary
		row.Metrics = models.EncodeJSON(m)
	})
}

func (h *Heartbeat) update(ctx context.Context, agent models.AgentType, mutate func(*models.AgentStatus)) {
	if h == nil || h.Repo == nil {
		return
	}
	row, err := h.Repo.GetAgentStatus(ctx, agent)
	if err != nil {
		h.log().Warn("heartbeat read failed", zap.String("agent", string(agent)), zap.Error(err))
		return
	}
	if row == nil {
		row = &models.AgentStatus{AgentType: agent, Status: models.AgentStopped}
	}
	mutate(row)
	now := h.clock()
	row.LastHeartbeat = &now
	if err := h.Repo.UpsertAgentStatus(ctx, row); err != nil {
		h.log().Warn("heartbeat write failed", zap.String("agent", string(agent)), zap.Error(err))
	}
}

func (h *Heartbeat) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now().UTC()
}

func (h *Heartbeat) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
