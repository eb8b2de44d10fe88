// Package anthropic adapts the Anthropic Messages API to the
// provider.Provider interface. System messages are lifted out of the
// message list into the dedicated system field, and tool results are
// carried back as user-role tool_result blocks per the Messages API shape.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/provider"
)

// Client wraps the Anthropic SDK behind provider.Provider.
type Client struct {
	client *anthropic.Client
}

// New creates an adapter with an explicit API key. An empty key defers to
// the SDK's environment lookup.
func New(apiKey string) *Client {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	c := anthropic.NewClient(opts...)
	return &Client{client: &c}
}

// NewFromClient creates an adapter from an existing SDK client.
func NewFromClient(client *anthropic.Client) *Client {
	return &Client{client: client}
}

// Kind implements provider.Provider.
func (c *Client) Kind() provider.Kind { return provider.KindAnthropic }

// Complete implements provider.Provider.
func (c *Client) Complete(ctx context.Context, model string, req provider.Request) (*provider.Response, error) {
	params := buildParams(model, req)

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}
	return toResponse(model, resp), nil
}

// Stream implements provider.Provider. Text deltas are forwarded to fn;
// tool_use blocks are accumulated and surface only on the final response.
func (c *Client) Stream(ctx context.Context, model string, req provider.Request, fn provider.StreamFunc) (*provider.Response, error) {
	params := buildParams(model, req)
	stream := c.client.Messages.NewStreaming(ctx, params)

	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, fmt.Errorf("anthropic stream accumulate: %w", err)
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				if err := fn(ctx, provider.Chunk{ContentDelta: delta.Text}); err != nil {
					return nil, fmt.Errorf("stream callback: %w", err)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic streaming error: %w", err)
	}
	if err := fn(ctx, provider.Chunk{Done: true}); err != nil {
		return nil, fmt.Errorf("stream callback: %w", err)
	}
	return toResponse(model, &acc), nil
}

// toResponse converts an SDK message (complete or accumulated from a stream)
// into the normalized response.
func toResponse(model string, msg *anthropic.Message) *provider.Response {
	out := &provider.Response{
		Model:    model,
		Provider: provider.KindAnthropic,
		Usage: provider.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args := ""
			if tu.Input != nil {
				if b, err := json.Marshal(tu.Input); err == nil {
					args = string(b)
				}
			}
			out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: args,
			})
		}
	}
	out.Content = text.String()
	out.CostEstimateEUR = provider.EstimateCostEUR(model, out.Usage)
	return out
}

// buildParams assembles the Messages API request, splitting system prompts
// out of the conversation and declaring tools when present.
func buildParams(model string, req provider.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    buildMessages(req.Messages),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	if system := systemBlocks(req.Messages); len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	return params
}

func systemBlocks(msgs []chat.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, m := range msgs {
		if m.Role == chat.RoleSystem && m.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Content})
		}
	}
	return blocks
}

// buildMessages converts the normalized conversation. Tool results become
// user-role tool_result blocks referencing the originating tool_use ID.
func buildMessages(msgs []chat.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			continue
		case chat.RoleUser:
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case chat.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				content = append(content, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						input = tc.Arguments
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
		case chat.RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	return out
}

func buildTools(defs []provider.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if def.Parameters != nil {
			if props, ok := def.Parameters["properties"]; ok {
				schema.Properties = props
			}
			switch required := def.Parameters["required"].(type) {
			case []string:
				schema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}
		tools[i] = anthropic.ToolUnionParamOfTool(schema, def.Name)
	}
	return tools
}
