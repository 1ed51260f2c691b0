package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrNotConfigured = errors.New("llm: not configured")
	ErrNoJSON        = errors.New("llm: no json object in response")
)

// Tier selects the model: fast for narrative steps, full where numeric precision matters.
type Tier string

const (
	TierFast Tier = "fast"
	TierFull Tier = "full"
)

type Request struct {
	Tier        Tier
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	// JSON asks the model for a single JSON object.
	JSON bool
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Outcome is the result of one LLM step. Degraded is true whenever Value is the fallback.
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Err      error
}

// Structured completes req and decodes the first JSON object of the reply into a copy of fallback,
// so fields the model omits keep their fallback values.
func Structured[T any](ctx context.Context, c Client, req Request, fallback T) Outcome[T] {
	if c == nil {
		return Outcome[T]{Value: fallback, Degraded: true, Err: ErrNotConfigured}
	}
	req.JSON = true
	raw, err := c.Complete(ctx, req)
	if err != nil {
		return Outcome[T]{Value: fallback, Degraded: true, Err: err}
	}
	if strings.TrimSpace(raw) == "" {
		return Outcome[T]{Value: fallback, Degraded: true, Err: ErrEmptyResponse}
	}
	obj, ok := ExtractJSON(raw)
	if !ok {
		return Outcome[T]{Value: fallback, Degraded: true, Err: ErrNoJSON}
	}
	out := fallback
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return Outcome[T]{Value: fallback, Degraded: true, Err: fmt.Errorf("llm: decode: %w", err)}
	}
	return Outcome[T]{Value: out}
}

// Text completes req and returns the trimmed reply.
func Text(ctx context.Context, c Client, req Request, fallback string) Outcome[string] {
	if c == nil {
		return Outcome[string]{Value: fallback, Degraded: true, Err: ErrNotConfigured}
	}
	raw, err := c.Complete(ctx, req)
	if err != nil {
		return Outcome[string]{Value: fallback, Degraded: true, Err: err}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Outcome[string]{Value: fallback, Degraded: true, Err: ErrEmptyResponse}
	}
	return Outcome[string]{Value: raw}
}

// ExtractJSON returns the first balanced JSON object in s. Models often wrap JSON in prose or code fences.
func ExtractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			ch := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if json.Valid([]byte(candidate)) {
						return candidate, true
					}
					i = len(s)
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
