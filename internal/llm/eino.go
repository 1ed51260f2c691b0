package llm

import (
	"context"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"tradeagents/internal/config"
)

const jsonInstruction = "Respond with a single JSON object and nothing else."

// EinoClient sends chat completions through an eino chat model. The tier picks the model name per call.
type EinoClient struct {
	Model     model.BaseChatModel
	FastModel string
	FullModel string
	MaxTokens int
	Config    config.LLMConfig
}

// New builds the chat client from config. Without an API key every call fails with ErrNotConfigured.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return unconfigured{}, nil
	}
	maxTokens := cfg.MaxTokens
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.FastModel,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &EinoClient{
		Model:     cm,
		FastModel: cfg.FastModel,
		FullModel: cfg.FullModel,
		MaxTokens: cfg.MaxTokens,
		Config:    cfg,
	}, nil
}

func (c *EinoClient) Complete(ctx context.Context, req Request) (string, error) {
	if c == nil || c.Model == nil {
		return "", ErrNotConfigured
	}
	if c.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Config.Timeout)
		defer cancel()
	}

	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n" + jsonInstruction)
	}
	messages := make([]*schema.Message, 0, 2)
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, schema.UserMessage(req.User))

	opts := []model.Option{
		model.WithModel(c.modelFor(req.Tier)),
		model.WithTemperature(req.Temperature),
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}

	msg, err := c.Model.Generate(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyResponse
	}
	return msg.Content, nil
}

func (c *EinoClient) modelFor(t Tier) string {
	if t == TierFull && c.FullModel != "" {
		return c.FullModel
	}
	return c.FastModel
}

type unconfigured struct{}

func (unconfigured) Complete(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}
