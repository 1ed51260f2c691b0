package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

// PipelineHandler serves the rows the agents write. It is read-only.
type PipelineHandler struct {
	Repo repository.Repository
}

func (h *PipelineHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v2")
	g.GET("/opportunities", h.listOpportunities)
	g.GET("/decisions", h.listDecisions)
	g.GET("/decisions/:id", h.getDecision)
	g.GET("/trades", h.listTrades)
	g.GET("/positions", h.listPositions)
	g.GET("/portfolios/:name", h.getPortfolio)
	g.GET("/plans", h.listPlans)
	g.GET("/reports/reviews", h.listReviews)
	g.GET("/reports/evolutions", h.listEvolutions)
	g.GET("/risk-logs", h.listRiskLogs)
	g.GET("/alerts", h.listAlerts)
}

// @Summary List opportunities
// @Tags pipeline
// @Param status query string false "comma separated statuses"
// @Param symbol query string false "symbol"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v2/opportunities [get]
func (h *PipelineHandler) listOpportunities(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 50)
	var statuses []models.OpportunityStatus
	for _, s := range listQuery(c, "status") {
		statuses = append(statuses, models.OpportunityStatus(s))
	}
	params := repository.ListOpportunitiesParams{
		Limit:    limit,
		Offset:   offset,
		Statuses: statuses,
		Symbol:   strQueryPtr(c, "symbol"),
		OrderBy: parseOrder(c.Query("sort_by"), map[string]string{
			"identified_at":    "identified_at",
			"confidence_score": "confidence_score",
		}),
		Asc: ascQuery(c),
	}
	items, err := h.Repo.ListOpportunities(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountOpportunities(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List decision records
// @Tags pipeline
// @Param symbol query string false "symbol"
// @Param type query string false "buy|sell|hold (comma separated)"
// @Success 200 {object} apiResponse
// @Router /api/v2/decisions [get]
func (h *PipelineHandler) listDecisions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 50)
	var types []models.DecisionType
	for _, t := range listQuery(c, "type") {
		types = append(types, models.DecisionType(strings.ToLower(t)))
	}
	params := repository.ListDecisionsParams{
		Limit:    limit,
		Offset:   offset,
		Symbol:   strQueryPtr(c, "symbol"),
		Types:    types,
		Executed: boolQueryPtr(c, "executed"),
		Asc:      ascQuery(c),
	}
	items, err := h.Repo.ListDecisions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountDecisions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *PipelineHandler) getDecision(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetDecisionByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "decision not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List trades
// @Tags pipeline
// @Param symbol query string false "symbol"
// @Param action query string false "BUY|SELL"
// @Success 200 {object} apiResponse
// @Router /api/v2/trades [get]
func (h *PipelineHandler) listTrades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 50)
	var action *models.TradeAction
	if v := strQueryPtr(c, "action"); v != nil {
		a := models.TradeAction(strings.ToUpper(*v))
		action = &a
	}
	var status *models.TradeStatus
	if v := strQueryPtr(c, "status"); v != nil {
		s := models.TradeStatus(strings.ToLower(*v))
		status = &s
	}
	params := repository.ListTradesParams{
		Limit:  limit,
		Offset: offset,
		Symbol: strQueryPtr(c, "symbol"),
		Action: action,
		Status: status,
		Asc:    ascQuery(c),
	}
	items, err := h.Repo.ListTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List positions
// @Tags pipeline
// @Param open query bool false "only open (true) or closed (false) positions"
// @Param account query string false "account name"
// @Success 200 {object} apiResponse
// @Router /api/v2/positions [get]
func (h *PipelineHandler) listPositions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 50)
	params := repository.ListPositionsParams{
		Limit:       limit,
		Offset:      offset,
		AccountName: strQueryPtr(c, "account"),
		Open:        boolQueryPtr(c, "open"),
		Symbols:     listQuery(c, "symbol"),
		Asc:         ascQuery(c),
	}
	items, err := h.Repo.ListPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get a portfolio
// @Tags pipeline
// @Param name path string true "portfolio name"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v2/portfolios/{name} [get]
func (h *PipelineHandler) getPortfolio(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	item, err := h.Repo.GetPortfolioByName(c.Request.Context(), name)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "portfolio not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *PipelineHandler) listPlans(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 20)
	var statuses []models.PlanStatus
	for _, s := range listQuery(c, "status") {
		statuses = append(statuses, models.PlanStatus(s))
	}
	params := repository.ListTradingPlansParams{Limit: limit, Offset: offset, Statuses: statuses, Asc: ascQuery(c)}
	items, err := h.Repo.ListTradingPlans(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTradingPlans(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *PipelineHandler) listReviews(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 20)
	params := repository.ListReportsParams{Limit: limit, Offset: offset, Type: strQueryPtr(c, "type"), Asc: ascQuery(c)}
	items, err := h.Repo.ListReviewReports(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountReviewReports(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *PipelineHandler) listEvolutions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 20)
	params := repository.ListReportsParams{Limit: limit, Offset: offset, Type: strQueryPtr(c, "type"), Asc: ascQuery(c)}
	items, err := h.Repo.ListEvolutionReports(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountEvolutionReports(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List risk control logs
// @Tags risk
// @Param action query string false "allow|reject|adjust|alert|pause"
// @Param symbol query string false "symbol"
// @Success 200 {object} apiResponse
// @Router /api/v2/risk-logs [get]
func (h *PipelineHandler) listRiskLogs(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 50)
	var action *models.RiskAction
	if v := strQueryPtr(c, "action"); v != nil {
		a := models.RiskAction(strings.ToLower(*v))
		action = &a
	}
	params := repository.ListRiskControlLogsParams{
		Limit:  limit,
		Offset: offset,
		Action: action,
		Symbol: strQueryPtr(c, "symbol"),
		Asc:    ascQuery(c),
	}
	items, err := h.Repo.ListRiskControlLogs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountRiskControlLogs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List alerts
// @Tags risk
// @Param level query string false "info|medium|high|critical"
// @Param status query string false "alert status"
// @Param type query string false "loss|stop_loss|take_profit"
// @Success 200 {object} apiResponse
// @Router /api/v2/alerts [get]
func (h *PipelineHandler) listAlerts(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 50)
	var level *models.AlertLevel
	if v := strQueryPtr(c, "level"); v != nil {
		l := models.AlertLevel(strings.ToLower(*v))
		level = &l
	}
	params := repository.ListAlertsParams{
		Limit:  limit,
		Offset: offset,
		Level:  level,
		Status: strQueryPtr(c, "status"),
		Type:   strQueryPtr(c, "type"),
		Asc:    ascQuery(c),
	}
	items, err := h.Repo.ListAlerts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountAlerts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
