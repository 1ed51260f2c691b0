package paas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# tradeagents

Simulated trading-agent pipeline: perception, planning, decision, execution,
memory and reflection. Each stage runs on its own interval and coordinates
through the database only.

## Auth

All /api/* and /swagger/* routes require "Authorization: Bearer <jwt>".
Issue a token with "tradeagents token --subject <name>".
Health endpoints are public.

## Routes

- GET /healthz
- GET /readyz
- GET /swagger/index.html
- GET /api/v2/agents
- POST /api/v2/agents/:agent/run
- GET /api/v2/agents/stream (websocket)
- GET /api/v2/opportunities
- GET /api/v2/decisions
- GET /api/v2/decisions/:id
- GET /api/v2/trades
- GET /api/v2/positions
- GET /api/v2/portfolios/:name
- GET /api/v2/plans
- GET /api/v2/memories
- GET /api/v2/memories/search?q=&type=&k=
- GET /api/v2/reports/reviews
- GET /api/v2/reports/evolutions
- GET /api/v2/risk-logs
- GET /api/v2/alerts
- GET /api/v2/system-settings
- GET /api/v2/system-settings/:key
- PUT /api/v2/system-settings/:key
- GET /api/v2/system-settings/switches
- GET /api/v2/system-settings/switches/:name
- PUT /api/v2/system-settings/switches/:name  {"enabled": bool}

## Feature switches

- feature_agent_<name>: gates scheduled runs of one agent (default on)
- feature_perception_persist_opportunities: perception writes breakouts as opportunities (default on)

## Credentials

Keys containing api_key, token, secret, password or private_key are sealed with
settings.encryption_key and always read back masked. llm_api_key and
embedding_api_key are used when the config file leaves those keys empty.
`)
	})
}
