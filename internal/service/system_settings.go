package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

const (
	FeaturePersistOpportunities = "feature_perception_persist_opportunities"
	featureAgentPrefix          = "feature_agent_"
)

// AgentFeature is the switch that gates scheduled runs of one agent.
func AgentFeature(agent models.AgentType) string {
	return featureAgentPrefix + string(agent)
}

func DefaultFeatureSwitches() map[string]bool {
	out := map[string]bool{
		FeaturePersistOpportunities: true,
	}
	for _, a := range models.AgentTypes {
		out[AgentFeature(a)] = true
	}
	return out
}

type SystemSettingsService struct {
	Repo repository.Repository
	// Cipher seals sensitive values. Without it PutSecret fails with ErrNoCipher.
	Cipher *SettingsCipher
}

// EnsureDefaultSwitches creates missing switches. Stored values are never overwritten.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

// PutSecret stores a credential sealed under key.
func (s *SystemSettingsService) PutSecret(ctx context.Context, key, value, description string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	sealed, err := s.Cipher.Seal(key, raw)
	if err != nil {
		return err
	}
	return s.Repo.UpsertSystemSetting(ctx, &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(sealed),
		Description: description,
		UpdatedAt:   time.Now().UTC(),
	})
}

// Secret returns the credential stored under key. It reports false when the row
// is missing or cannot be opened with the configured keys.
func (s *SystemSettingsService) Secret(ctx context.Context, key string) (string, bool) {
	if s == nil || s.Repo == nil {
		return "", false
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, strings.TrimSpace(key))
	if err != nil || item == nil {
		return "", false
	}
	plain, ok := s.Cipher.Open(item.Key, item.Value)
	if !ok {
		return "", false
	}
	var out string
	if err := json.Unmarshal(plain, &out); err != nil {
		return "", false
	}
	return out, out != ""
}
