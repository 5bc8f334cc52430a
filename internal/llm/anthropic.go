// Package llm implements the chat.Completer contract on the Anthropic
// Messages API, translating between the neutral transcript model and the
// wire-level tool_use/tool_result blocks.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"factoryops/internal/chat"
)

const DefaultModel = "claude-sonnet-4-5-20250929"

const maxTokens = 4096

type Client struct {
	api   anthropic.Client
	model anthropic.Model
}

// NewClient builds an Anthropic-backed completer. timeout bounds each
// network call; maxRetries caps the SDK's exponential backoff, which only
// fires on the retryable class (429, 5xx, connection failures).
func NewClient(apiKey, model string, timeout time.Duration, maxRetries int) *Client {
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if maxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(maxRetries))
	}
	return &Client{
		api:   anthropic.NewClient(opts...),
		model: anthropic.Model(model),
	}
}

func (c *Client) Complete(ctx context.Context, system string, transcript []chat.Message, tools []chat.ToolDescriptor) (chat.Completion, error) {
	message, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: ToMessageParams(transcript),
		Tools:    ToToolParams(tools),
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return chat.Completion{}, Classify(err)
	}

	completion := chat.Completion{
		Usage: chat.Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			completion.Text += b.Text
		case anthropic.ToolUseBlock:
			completion.ToolCalls = append(completion.ToolCalls, chat.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: json.RawMessage(b.JSON.Input.Raw()),
			})
		}
	}
	log.Printf("llm anthropic response model=%s stop=%s tokens_in=%d tokens_out=%d tool_calls=%d",
		c.model, message.StopReason, completion.Usage.InputTokens, completion.Usage.OutputTokens, len(completion.ToolCalls))
	return completion, nil
}

// ToMessageParams converts the neutral transcript to Anthropic params.
// System messages travel separately; consecutive tool results fold into a
// single user message of tool_result blocks, preserving their order.
func ToMessageParams(transcript []chat.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for i := 0; i < len(transcript); i++ {
		msg := transcript[i]
		switch msg.Role {
		case chat.RoleSystem:
			continue
		case chat.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case chat.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Arguments, call.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case chat.RoleTool:
			var results []anthropic.ContentBlockParamUnion
			for ; i < len(transcript) && transcript[i].Role == chat.RoleTool; i++ {
				t := transcript[i]
				results = append(results, anthropic.NewToolResultBlock(t.ToolCallID, t.Content, false))
			}
			i--
			out = append(out, anthropic.NewUserMessage(results...))
		}
	}
	return out
}

func ToToolParams(tools []chat.ToolDescriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.Properties,
				Required:   t.Required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

// Classify maps an endpoint failure onto the transport error contract.
// 408/429/5xx and plain connection failures are retryable; authentication
// and malformed-request rejections are not. The caller aborts the turn
// either way without committing transcript changes.
func Classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return &chat.TransportError{Err: err, Retryable: false}
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &chat.TransportError{
			Err:       fmt.Errorf("anthropic API status %d: %w", apierr.StatusCode, err),
			Retryable: retryableStatus(apierr.StatusCode),
		}
	}
	return &chat.TransportError{Err: err, Retryable: true}
}

func retryableStatus(status int) bool {
	switch {
	case status == 408 || status == 429:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}
