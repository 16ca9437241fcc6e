package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shellmind/cli/internal/backoff"
	"github.com/shellmind/cli/internal/conversation"
)

// AnthropicClient streams chat turns through the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
	policy    backoff.Policy
}

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	Logger    *slog.Logger
}

const (
	defaultAnthropicModel     = "claude-sonnet-4-20250514"
	defaultAnthropicMaxTokens = 4096
	anthropicStreamAttempts   = 3
)

// NewAnthropicClient builds a streaming client against the Anthropic API.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmclient: anthropic API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultAnthropicMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
		policy:    backoff.DefaultPolicy(),
	}, nil
}

// SendMessage starts one streaming turn and fans its events into chunks.
func (c *AnthropicClient) SendMessage(ctx context.Context, req conversation.Request) (<-chan Chunk, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan Chunk, 16)
	go func() {
		defer close(chunks)
		// Retry only while nothing has been emitted: once the user saw
		// text, a silent restart would duplicate it.
		for attempt := 1; ; attempt++ {
			emitted, err := c.streamOnce(ctx, params, chunks)
			if err == nil {
				return
			}
			if emitted || !IsRetryable(err) || attempt >= anthropicStreamAttempts {
				chunks <- Chunk{Err: err}
				return
			}
			if serr := backoff.Sleep(ctx, c.policy.Delay(attempt)); serr != nil {
				chunks <- Chunk{Err: serr}
				return
			}
		}
	}()
	return chunks, nil
}

func (c *AnthropicClient) streamOnce(ctx context.Context, params anthropic.MessageNewParams, chunks chan<- Chunk) (bool, error) {
	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var currentInput strings.Builder
	pendingToolUse := false
	emitted := false
	send := func(ch Chunk) {
		emitted = true
		chunks <- ch
	}

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			send(Chunk{MessageID: event.AsMessageStart().Message.ID})
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				tu := block.AsToolUse()
				send(Chunk{ToolUseStart: &ToolUseStart{ID: tu.ID, Name: tu.Name}})
				currentInput.Reset()
				pendingToolUse = true
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					send(Chunk{Text: delta.Text})
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentInput.WriteString(delta.PartialJSON)
					send(Chunk{ToolUseDelta: delta.PartialJSON})
				}
			}
		case "content_block_stop":
			if pendingToolUse {
				send(Chunk{ToolUseStop: true})
				pendingToolUse = false
			}
		case "message_stop":
			send(Chunk{Done: true})
			return true, nil
		case "error":
			return emitted, fmt.Errorf("llmclient: anthropic stream error")
		}
	}
	if err := stream.Err(); err != nil {
		return emitted, c.wrapError(err)
	}
	send(Chunk{Done: true})
	return true, nil
}

// wrapError classifies SDK errors onto the sentinel kinds; token values
// never reach the log.
func (c *AnthropicClient) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		raw := apiErr.RawJSON()
		var payload struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal([]byte(raw), &payload)
		c.logger.Warn("anthropic request failed", "status", apiErr.StatusCode, "code", payload.Error.Type)
		return wrapStatus(apiErr.StatusCode, payload.Error.Type, raw, err)
	}
	return err
}

func (c *AnthropicClient) buildParams(req conversation.Request) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(append(append([]conversation.Message(nil), req.History...), req.UserInput))
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  messages,
		MaxTokens: c.maxTokens,
	}
	if len(req.ToolSpecs) > 0 {
		tools, err := convertTools(req.ToolSpecs)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func convertMessages(messages []conversation.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tr := range msg.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolUseID, tr.Content, tr.IsError))
		}
		for _, tu := range msg.ToolUses {
			content = append(content, anthropic.NewToolUseBlock(tu.ID, tu.Input, tu.Name))
		}
		if len(content) == 0 {
			content = append(content, anthropic.NewTextBlock(""))
		}
		if msg.Role == conversation.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertTools(specs []conversation.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(spec.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("llmclient: invalid schema for tool %s: %w", spec.Name, err)
		}
		tool := anthropic.ToolUnionParamOfTool(schema, spec.Name)
		if tool.OfTool == nil {
			return nil, fmt.Errorf("llmclient: invalid tool definition for %s", spec.Name)
		}
		tool.OfTool.Description = anthropic.String(spec.Description)
		result = append(result, tool)
	}
	return result, nil
}

// SendTelemetry forwards a usage event. The Anthropic surface has no
// telemetry endpoint, so events are logged at debug and dropped.
func (c *AnthropicClient) SendTelemetry(_ context.Context, ev TelemetryEvent) error {
	c.logger.Debug("telemetry event", "name", ev.Name)
	return nil
}

// ListProfiles reports no server-side profiles for this provider.
func (c *AnthropicClient) ListProfiles(_ context.Context) ([]string, error) {
	return nil, nil
}
