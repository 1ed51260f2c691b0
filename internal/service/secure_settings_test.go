package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"tradeagents/internal/repository/memrepo"
)

var (
	testKey     = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	rotatedKey  = base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210"))
	shortKeyRaw = "too-short"
)

func TestSettingsCipherSealOpen(t *testing.T) {
	c, err := NewSettingsCipher(testKey)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	sealed, err := c.Seal("llm_api_key", []byte(`"sk-test"`))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if strings.Contains(string(sealed), "sk-test") {
		t.Fatalf("plaintext leaked into %s", sealed)
	}
	plain, ok := c.Open("llm_api_key", sealed)
	if !ok || string(plain) != `"sk-test"` {
		t.Fatalf("open: %q %v", plain, ok)
	}
	if _, ok := c.Open("embedding_api_key", sealed); ok {
		t.Fatalf("a sealed value must not open under another key")
	}

	rotated, err := NewSettingsCipher(rotatedKey, testKey)
	if err != nil {
		t.Fatalf("rotated cipher: %v", err)
	}
	if _, ok := rotated.Open("llm_api_key", sealed); !ok {
		t.Fatalf("previous key should still open old values")
	}
}

func TestNewSettingsCipherKeys(t *testing.T) {
	c, err := NewSettingsCipher("")
	if err != nil || c != nil {
		t.Fatalf("empty key should disable the cipher, got %v %v", c, err)
	}
	if _, err := NewSettingsCipher(shortKeyRaw); err == nil {
		t.Fatalf("short key accepted")
	}
	var nilCipher *SettingsCipher
	if _, err := nilCipher.Seal("k", []byte("1")); !errors.Is(err, ErrNoCipher) {
		t.Fatalf("expected ErrNoCipher, got %v", err)
	}
}

func TestIsSensitiveSetting(t *testing.T) {
	cases := map[string]bool{
		"llm_api_key":           true,
		"PaaS_Token":            true,
		"db_password":           true,
		"feature_agent_memory":  false,
		"risk_max_single_trade": false,
		"":                      false,
	}
	for key, want := range cases {
		if got := IsSensitiveSetting(key); got != want {
			t.Fatalf("%q: got %v want %v", key, got, want)
		}
	}
}

func TestPutSecretAndSecret(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	c, _ := NewSettingsCipher(testKey)
	svc := &SystemSettingsService{Repo: repo, Cipher: c}

	if err := svc.PutSecret(ctx, "llm_api_key", "sk-live", "chat key"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, ok := svc.Secret(ctx, "llm_api_key"); !ok || got != "sk-live" {
		t.Fatalf("secret: %q %v", got, ok)
	}
	if strings.Contains(string(repo.Settings[0].Value), "sk-live") {
		t.Fatalf("stored value is not sealed")
	}
	if _, ok := svc.Secret(ctx, "missing_api_key"); ok {
		t.Fatalf("missing secret reported present")
	}

	plain := &SystemSettingsService{Repo: repo}
	if err := plain.PutSecret(ctx, "other_token", "x", ""); !errors.Is(err, ErrNoCipher) {
		t.Fatalf("expected ErrNoCipher, got %v", err)
	}
}
