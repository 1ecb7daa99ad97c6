package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"HappyPlaceLocal/internal/config"
	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
)

// ErrSchemaViolation is returned when the model output does not match the schema.
var ErrSchemaViolation = errors.New("model output violates schema")

const defaultTimeout = 45 * time.Second

// OpenAIClient implements ports.LLM backed by OpenAI-compatible APIs.
type OpenAIClient struct {
	client *openai.Client
	model  string
	apiKey string
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

var _ ports.LLM = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		oc.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	c := &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		logger:  logger,
		schemas: map[string]*jsonschema.Schema{},
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// JSONCall requests a structured response and validates it locally.
func (c *OpenAIClient) JSONCall(ctx context.Context, messages []domain.Message, schema ports.Schema) (map[string]any, error) {
	compiled, err := c.compile(schema)
	if err != nil {
		return nil, err
	}

	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAI(messages),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schema.Name,
				Schema: json.RawMessage(schema.Document),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return nil, fmt.Errorf("%w: not json: %v", ErrSchemaViolation, err)
	}
	if err := compiled.Validate(decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrSchemaViolation, decoded)
	}
	return obj, nil
}

// TextCall returns the raw assistant message.
func (c *OpenAIClient) TextCall(ctx context.Context, messages []domain.Message) (string, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAI(messages),
	})
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if c == nil {
		return "", fmt.Errorf("openai client is nil")
	}
	if c.apiKey == "" || c.model == "" {
		return "", fmt.Errorf("openai client misconfigured")
	}

	started := time.Now()
	raw, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	resp := raw.(openai.ChatCompletionResponse)
	c.logger.Debug("chat completion", "model", c.model, "tokens", resp.Usage.TotalTokens, "duration", time.Since(started))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) compile(schema ports.Schema) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.schemas[schema.Name]; ok {
		return s, nil
	}
	s, err := jsonschema.CompileString(schema.Name+".json", string(schema.Document))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", schema.Name, err)
	}
	c.schemas[schema.Name] = s
	return s, nil
}

func toOpenAI(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
