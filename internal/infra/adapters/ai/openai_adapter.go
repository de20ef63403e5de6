// File: internal/infra/adapters/ai/openai_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"llm-chat-gateway/internal/domain/ports/adapter"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.AIServiceAdapter on the Chat Completions
// API. Any OpenAI-compatible endpoint works: the base URL is configurable.
type OpenAIAdapter struct {
	client        openai.Client
	defaultModel  string
	maxToolRounds int
	log           *zerolog.Logger
}

func NewOpenAIAdapter(apiKey, baseURL, defaultModel string, timeout time.Duration, maxToolRounds int, log *zerolog.Logger) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if maxToolRounds <= 0 {
		maxToolRounds = 16
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		// Request paths are resolved against the base; without the trailing
		// slash a "/v1" suffix would be dropped.
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIAdapter{
		client:        openai.NewClient(opts...),
		defaultModel:  defaultModel,
		maxToolRounds: maxToolRounds,
		log:           log,
	}, nil
}

// ListModels queries the endpoint's model catalog.
func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	var ids []string
	iter := o.client.Models.ListAutoPaging(ctx)
	for iter.Next() {
		ids = append(ids, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return ids, nil
}

// CountTokens tokenizes the prompt locally. Models unknown to the tokenizer
// fall back to the cl100k_base encoding, so the count is approximate for
// non-OpenAI endpoints.
func (o *OpenAIAdapter) CountTokens(ctx context.Context, modelName string, messages []adapter.Message) (int, error) {
	if modelName == "" {
		modelName = o.defaultModel
	}
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		if enc, err = tiktoken.GetEncoding("cl100k_base"); err != nil {
			return 0, fmt.Errorf("load tokenizer: %w", err)
		}
	}

	// Per-message framing overhead per the chat format guide.
	const tokensPerMessage = 4
	total := 3
	for _, m := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(m.Role, nil, nil))
		total += len(enc.Encode(m.Content, nil, nil))
	}
	return total, nil
}

// StreamChat runs one completion. Without tools the response is streamed and
// emit receives each content delta as it arrives. With tools the adapter runs
// the function-calling loop on non-streaming calls and emits the final
// assistant text once.
func (o *OpenAIAdapter) StreamChat(ctx context.Context, req adapter.ChatRequest, emit func(delta string) error) error {
	params := o.buildParams(req)

	if len(req.Tools) > 0 {
		if req.RunTool == nil {
			return errors.New("tools provided without a runner")
		}
		return o.toolLoop(ctx, params, req.RunTool, emit)
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	return nil
}

func (o *OpenAIAdapter) buildParams(req adapter.ChatRequest) openai.ChatCompletionNewParams {
	modelName := req.Model
	if modelName == "" {
		modelName = o.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(modelName),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}
	return params
}

// toolLoop alternates completion calls and tool executions until the model
// answers with plain text or the round limit trips.
func (o *OpenAIAdapter) toolLoop(ctx context.Context, params openai.ChatCompletionNewParams, run adapter.ToolRunner, emit func(delta string) error) error {
	for round := 0; round < o.maxToolRounds; round++ {
		completion, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return errors.New("no choices in completion")
		}

		msg := completion.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			if msg.Content == "" {
				return errors.New("no choice content")
			}
			return emit(msg.Content)
		}

		params.Messages = append(params.Messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			call := adapter.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}
			o.log.Debug().Str("function", call.Name).Msg("executing tool call")
			result := run(ctx, call)
			params.Messages = append(params.Messages, openai.ToolMessage(result, tc.ID))
		}
	}
	return fmt.Errorf("tool loop exceeded %d rounds", o.maxToolRounds)
}
