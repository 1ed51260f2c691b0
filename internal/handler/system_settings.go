package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
	"tradeagents/internal/service"
)

const switchPrefix = "feature_"

// SettingsHandler exposes system_settings rows and the feature switches stored in them.
type SettingsHandler struct {
	Repo     repository.Repository
	Settings *service.SystemSettingsService
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v2/system-settings")
	g.GET("", h.list)
	g.GET("/switches", h.listSwitches)
	g.GET("/switches/:name", h.getSwitch)
	g.PUT("/switches/:name", h.putSwitch)
	g.GET("/:key", h.get)
	g.PUT("/:key", h.put)
}

func (h *SettingsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c, 200)
	params := repository.ListSystemSettingsParams{
		Limit:   limit,
		Offset:  offset,
		Prefix:  strQueryPtr(c, "prefix"),
		OrderBy: "key",
		Asc:     boolPtr(true),
	}
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSystemSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	for i := range items {
		mask(&items[i])
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// mask hides credential values; they are write-only through the API.
func mask(item *models.SystemSetting) {
	if item != nil && service.IsSensitiveSetting(item.Key) {
		item.Value = datatypes.JSON(`"` + service.MaskedValue + `"`)
	}
}

func (h *SettingsHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		Error(c, http.StatusBadRequest, "invalid key", nil)
		return
	}
	item, err := h.Repo.GetSystemSettingByKey(c.Request.Context(), key)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "setting not found", nil)
		return
	}
	mask(item)
	Ok(c, item, nil)
}

type putSettingRequest struct {
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// @Summary Write a setting
// @Tags settings
// @Param key path string true "setting key"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v2/system-settings/{key} [put]
func (h *SettingsHandler) put(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		Error(c, http.StatusBadRequest, "invalid key", nil)
		return
	}
	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if service.IsSensitiveSetting(key) {
		h.putSecret(c, key, req)
		return
	}
	// Switch rows must stay readable by IsEnabled.
	if _, isBool := req.Value.(bool); strings.HasPrefix(key, switchPrefix) && !isBool {
		Error(c, http.StatusBadRequest, "feature switches take a boolean value", nil)
		return
	}
	raw, err := json.Marshal(req.Value)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid value", nil)
		return
	}
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: strings.TrimSpace(req.Description),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := h.Repo.UpsertSystemSetting(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	saved, err := h.Repo.GetSystemSettingByKey(c.Request.Context(), key)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, saved, nil)
}

func (h *SettingsHandler) putSecret(c *gin.Context, key string, req putSettingRequest) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	value, ok := req.Value.(string)
	if !ok || strings.TrimSpace(value) == "" {
		Error(c, http.StatusBadRequest, "credential settings take a non-empty string value", nil)
		return
	}
	err := h.Settings.PutSecret(c.Request.Context(), key, value, strings.TrimSpace(req.Description))
	if errors.Is(err, service.ErrNoCipher) {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	saved, err := h.Repo.GetSystemSettingByKey(c.Request.Context(), key)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	mask(saved)
	Ok(c, saved, nil)
}

type switchView struct {
	Name      string     `json:"name"`
	Key       string     `json:"key"`
	Enabled   bool       `json:"enabled"`
	Stored    bool       `json:"stored"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// listSwitches merges the stored switches with the built-in defaults, so a
// switch that was never written still shows up with its default value.
func (h *SettingsHandler) listSwitches(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	prefix := switchPrefix
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), repository.ListSystemSettingsParams{
		Limit:   maxPageSize,
		Prefix:  &prefix,
		OrderBy: "key",
		Asc:     boolPtr(true),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	views := map[string]switchView{}
	for key, enabled := range service.DefaultFeatureSwitches() {
		views[key] = switchView{Name: strings.TrimPrefix(key, switchPrefix), Key: key, Enabled: enabled}
	}
	for _, it := range items {
		v := views[it.Key]
		v.Name = strings.TrimPrefix(it.Key, switchPrefix)
		v.Key = it.Key
		_ = json.Unmarshal(it.Value, &v.Enabled)
		v.Stored = true
		at := it.UpdatedAt
		v.UpdatedAt = &at
		views[it.Key] = v
	}
	out := make([]switchView, 0, len(views))
	for _, v := range views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	Ok(c, out, map[string]any{"total": len(out)})
}

func switchKey(c *gin.Context) (string, string, bool) {
	name := strings.TrimPrefix(strings.TrimSpace(c.Param("name")), switchPrefix)
	if name == "" {
		return "", "", false
	}
	return name, switchPrefix + name, true
}

func (h *SettingsHandler) getSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name, key, ok := switchKey(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return
	}
	fallback := service.DefaultFeatureSwitches()[key]
	Ok(c, switchView{
		Name:    name,
		Key:     key,
		Enabled: h.Settings.IsEnabled(c.Request.Context(), key, fallback),
	}, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

// @Summary Toggle a feature switch
// @Description agent_<name> switches gate the scheduled runs of that agent.
// @Tags settings
// @Param name path string true "switch name, e.g. agent_execution"
// @Success 200 {object} apiResponse
// @Router /api/v2/system-settings/switches/{name} [put]
func (h *SettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name, key, ok := switchKey(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, "body must be {\"enabled\": bool}", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, switchView{Name: name, Key: key, Enabled: *req.Enabled, Stored: true}, nil)
}
