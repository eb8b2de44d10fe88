// Package openai adapts the OpenAI Chat Completions API (including
// streaming and function/tool calling) to the provider.Provider interface.
// It converts the pipeline's normalized messages into the SDK's message
// format and back.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/provider"
)

// Client wraps the OpenAI SDK behind provider.Provider.
type Client struct {
	client *openai.Client
}

// New creates an adapter with an explicit API key. An empty key defers to
// the SDK's environment lookup.
func New(apiKey string) *Client {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	c := openai.NewClient(opts...)
	return &Client{client: &c}
}

// NewFromClient creates an adapter from an existing SDK client.
func NewFromClient(client *openai.Client) *Client {
	return &Client{client: client}
}

// Kind implements provider.Provider.
func (c *Client) Kind() provider.Kind { return provider.KindOpenAI }

// Complete implements provider.Provider.
func (c *Client) Complete(ctx context.Context, model string, req provider.Request) (*provider.Response, error) {
	params := buildParams(model, req)

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api: no choices returned")
	}

	choice := resp.Choices[0]
	out := &provider.Response{
		Content:  choice.Message.Content,
		Model:    model,
		Provider: provider.KindOpenAI,
		Usage: provider.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	out.CostEstimateEUR = provider.EstimateCostEUR(model, out.Usage)
	return out, nil
}

// Stream implements provider.Provider. Text deltas are forwarded to fn as
// they arrive; tool call deltas are aggregated and only surface on the final
// response, never as stream chunks.
func (c *Client) Stream(ctx context.Context, model string, req provider.Request, fn provider.StreamFunc) (*provider.Response, error) {
	params := buildParams(model, req)
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	var text strings.Builder
	agg := map[int64]*aggCall{}
	usage := provider.TokenUsage{}

	for stream.Next() {
		ck := stream.Current()
		if ck.Usage.TotalTokens > 0 {
			usage = provider.TokenUsage{
				PromptTokens:     int(ck.Usage.PromptTokens),
				CompletionTokens: int(ck.Usage.CompletionTokens),
				TotalTokens:      int(ck.Usage.TotalTokens),
			}
		}
		for _, choice := range ck.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				if err := fn(ctx, provider.Chunk{ContentDelta: choice.Delta.Content}); err != nil {
					return nil, fmt.Errorf("stream callback: %w", err)
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				ac, ok := agg[tc.Index]
				if !ok {
					ac = &aggCall{}
					agg[tc.Index] = ac
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai streaming error: %w", err)
	}
	if err := fn(ctx, provider.Chunk{Done: true}); err != nil {
		return nil, fmt.Errorf("stream callback: %w", err)
	}

	out := &provider.Response{
		Content:  text.String(),
		Model:    model,
		Provider: provider.KindOpenAI,
		Usage:    usage,
	}
	for i := int64(0); i < int64(len(agg)); i++ {
		if ac, ok := agg[i]; ok {
			out.ToolCalls = append(out.ToolCalls, chat.ToolCall{ID: ac.id, Name: ac.name, Arguments: ac.args})
		}
	}
	out.CostEstimateEUR = provider.EstimateCostEUR(model, out.Usage)
	return out, nil
}

// aggCall aggregates partial tool call streaming deltas (id, name,
// arguments) so complete calls can be reconstructed at end of stream.
type aggCall struct{ id, name, args string }

// buildParams assembles SDK request parameters including tool definitions.
func buildParams(model string, req provider.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req.Messages),
		Model:               model,
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// buildMessages converts normalized messages into SDK chat messages,
// preserving assistant tool calls and their tool-role results.
func buildMessages(msgs []chat.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chat.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case chat.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: calls,
				},
			})
		case chat.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			if m.Content != "" {
				out = append(out, openai.UserMessage(m.Content))
			}
		}
	}
	return out
}
