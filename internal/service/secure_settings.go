package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const sealedFormat = "aes-gcm-v1"

// ErrNoCipher is returned when a sensitive setting is written without an encryption key.
var ErrNoCipher = errors.New("settings encryption key not configured")

// MaskedValue replaces sensitive values in API responses.
const MaskedValue = "********"

type sealedValue struct {
	Enc   string `json:"enc"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// SettingsCipher seals sensitive system_settings values with AES-GCM. The setting
// key is bound as additional data, so a sealed value only opens under its own key.
// Values sealed with a previous key still open after a rotation.
type SettingsCipher struct {
	primary  cipher.AEAD
	previous []cipher.AEAD
}

// NewSettingsCipher builds a cipher from base64 (or raw) AES keys of 16, 24 or 32 bytes.
// An empty primary key yields (nil, nil).
func NewSettingsCipher(primary string, previous ...string) (*SettingsCipher, error) {
	if strings.TrimSpace(primary) == "" {
		return nil, nil
	}
	p, err := newGCM(primary)
	if err != nil {
		return nil, fmt.Errorf("settings key: %w", err)
	}
	c := &SettingsCipher{primary: p}
	for _, k := range previous {
		if strings.TrimSpace(k) == "" || k == primary {
			continue
		}
		g, err := newGCM(k)
		if err != nil {
			return nil, fmt.Errorf("previous settings key: %w", err)
		}
		c.previous = append(c.previous, g)
	}
	return c, nil
}

func newGCM(k string) (cipher.AEAD, error) {
	k = strings.TrimSpace(k)
	key, err := base64.StdEncoding.DecodeString(k)
	if err != nil {
		key = []byte(k)
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("aes key must be 16, 24 or 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func additionalData(key string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(key)))
}

// Seal encrypts raw for the given setting key and returns the JSON envelope to store.
func (c *SettingsCipher) Seal(key string, raw []byte) ([]byte, error) {
	if c == nil || c.primary == nil {
		return nil, ErrNoCipher
	}
	nonce := make([]byte, c.primary.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return json.Marshal(sealedValue{
		Enc:   sealedFormat,
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(c.primary.Seal(nil, nonce, raw, additionalData(key))),
	})
}

// Open decrypts a value produced by Seal. It reports false when raw is not a
// sealed envelope or no configured key opens it.
func (c *SettingsCipher) Open(key string, raw []byte) ([]byte, bool) {
	if c == nil || c.primary == nil {
		return nil, false
	}
	var env sealedValue
	if err := json.Unmarshal(raw, &env); err != nil || env.Enc != sealedFormat {
		return nil, false
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, false
	}
	ct, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, false
	}
	for _, g := range append([]cipher.AEAD{c.primary}, c.previous...) {
		if len(nonce) != g.NonceSize() {
			continue
		}
		if pt, err := g.Open(nil, nonce, ct, additionalData(key)); err == nil {
			return pt, true
		}
	}
	return nil, false
}

// IsSensitiveSetting reports whether a key holds a credential.
func IsSensitiveSetting(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	for _, m := range []string{"secret", "token", "password", "api_key", "private_key"} {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}
