package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shellmind/cli/internal/backoff"
	"github.com/shellmind/cli/internal/conversation"
)

// OpenAIClient is the alternate provider behind the same Client surface,
// for deployments pointed at an OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
	policy backoff.Policy
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *slog.Logger
}

const (
	defaultOpenAIModel   = "gpt-4o"
	openaiStreamAttempts = 3
)

// NewOpenAIClient builds a streaming client against an OpenAI-compatible API.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmclient: openai API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
		policy: backoff.DefaultPolicy(),
	}, nil
}

// SendMessage starts one streaming turn.
func (c *OpenAIClient) SendMessage(ctx context.Context, req conversation.Request) (<-chan Chunk, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: convertOpenAIMessages(append(append([]conversation.Message(nil), req.History...), req.UserInput)),
		Stream:   true,
	}
	if len(req.ToolSpecs) > 0 {
		chatReq.Tools = convertOpenAITools(req.ToolSpecs)
	}

	stream, err := backoff.Retry(ctx, c.policy, openaiStreamAttempts, IsRetryable, func() (*openai.ChatCompletionStream, error) {
		s, err := c.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return nil, c.wrapError(err)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan Chunk, 16)
	go c.processStream(ctx, stream, chunks)
	return chunks, nil
}

func (c *OpenAIClient) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- Chunk) {
	defer close(chunks)
	defer stream.Close()

	// Tool call fragments arrive keyed by index and are replayed as
	// start/delta/stop once the finish reason lands.
	type pendingCall struct {
		id   string
		name string
		args string
	}
	calls := make(map[int]*pendingCall)
	flush := func() {
		for _, pc := range calls {
			if pc.id == "" || pc.name == "" {
				continue
			}
			chunks <- Chunk{ToolUseStart: &ToolUseStart{ID: pc.id, Name: pc.name}}
			if pc.args != "" {
				chunks <- Chunk{ToolUseDelta: pc.args}
			}
			chunks <- Chunk{ToolUseStop: true}
		}
		calls = make(map[int]*pendingCall)
	}
	sentMessageID := false

	for {
		if err := ctx.Err(); err != nil {
			chunks <- Chunk{Err: err}
			return
		}
		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flush()
				chunks <- Chunk{Done: true}
				return
			}
			chunks <- Chunk{Err: c.wrapError(err)}
			return
		}
		if !sentMessageID && response.ID != "" {
			chunks <- Chunk{MessageID: response.ID}
			sentMessageID = true
		}
		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]
		if choice.Delta.Content != "" {
			chunks <- Chunk{Text: choice.Delta.Content}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc := calls[idx]
			if pc == nil {
				pc = &pendingCall{}
				calls[idx] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args += tc.Function.Arguments
		}
		if choice.FinishReason == openai.FinishReasonToolCalls {
			flush()
		}
	}
}

func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		c.logger.Warn("openai request failed", "status", apiErr.HTTPStatusCode, "code", code)
		return wrapStatus(apiErr.HTTPStatusCode, code, apiErr.Message, err)
	}
	return err
}

func convertOpenAIMessages(messages []conversation.Message) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}

		// Tool results map onto dedicated tool-role messages.
		if len(msg.ToolResults) > 0 {
			for _, tr := range msg.ToolResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolUseID,
				})
			}
			if msg.Content == "" {
				continue
			}
		}

		out := openai.ChatCompletionMessage{Role: role, Content: msg.Content}
		for _, tu := range msg.ToolUses {
			input, err := json.Marshal(tu.Input)
			if err != nil {
				input = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   tu.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tu.Name,
					Arguments: string(input),
				},
			})
		}
		result = append(result, out)
	}
	return result
}

func convertOpenAITools(specs []conversation.ToolSpec) []openai.Tool {
	result := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.InputSchema,
			},
		})
	}
	return result
}

// SendTelemetry logs and drops the event; this provider has no
// telemetry endpoint.
func (c *OpenAIClient) SendTelemetry(_ context.Context, ev TelemetryEvent) error {
	c.logger.Debug("telemetry event", "name", ev.Name)
	return nil
}

// ListProfiles reports no server-side profiles for this provider.
func (c *OpenAIClient) ListProfiles(_ context.Context) ([]string, error) {
	return nil, nil
}
