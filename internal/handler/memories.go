package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeagents/internal/memory"
	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

const maxSearchK = 50

type MemoryHandler struct {
	Repo   repository.Repository
	Memory *memory.Agent
}

func (h *MemoryHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v2/memories")
	g.GET("", h.list)
	g.GET("/search", h.search)
}

func parseMemoryType(s string) (models.MemoryType, bool) {
	switch t := models.MemoryType(s); t {
	case "", models.MemoryWorking, models.MemoryShortTerm, models.MemoryLongTerm, models.MemoryEpisodic:
		return t, true
	}
	return "", false
}

func (h *MemoryHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 50)
	params := repository.ListMemoriesParams{
		Limit:            limit,
		Offset:           offset,
		IncludeForgotten: c.Query("forgotten") == "true",
		OrderBy: parseOrder(c.Query("sort_by"), map[string]string{
			"created_at": "created_at",
			"importance": "importance_score",
		}),
		Asc: ascQuery(c),
	}
	for _, s := range listQuery(c, "type") {
		t, ok := parseMemoryType(s)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid memory type "+s, nil)
			return
		}
		params.Types = append(params.Types, t)
	}
	items, err := h.Repo.ListMemories(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountMemories(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Semantic memory search
// @Tags memory
// @Param q query string true "free text query"
// @Param type query string false "short_term|long_term|episodic"
// @Param k query int false "result count"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v2/memories/search [get]
func (h *MemoryHandler) search(c *gin.Context) {
	if h.Memory == nil {
		Error(c, http.StatusInternalServerError, "memory agent unavailable", nil)
		return
	}
	q := strQueryPtr(c, "q")
	if q == nil {
		Error(c, http.StatusBadRequest, "q is required", nil)
		return
	}
	typ, ok := parseMemoryType(c.Query("type"))
	if !ok {
		Error(c, http.StatusBadRequest, "invalid memory type", nil)
		return
	}
	k := intQuery(c, "k", 5)
	if k <= 0 {
		k = 5
	}
	if k > maxSearchK {
		k = maxSearchK
	}
	res, err := h.Memory.Search(c.Request.Context(), *q, typ, k)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, res.Memories, map[string]any{"k": k, "degraded": res.Degraded, "total": len(res.Memories)})
}
