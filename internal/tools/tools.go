// Package tools provides the builtin tool set exposed to the model and the
// registry that resolves tool calls back to implementations. The set is
// closed and resolved once at startup; there is no dynamic registration.
//
// Execution errors are never propagated to the caller: they come back as
// tool-result payloads so the model can react to the failure.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/log"
	"github.com/fiscogo/fisco/internal/provider"
)

// Tool is one callable capability exposed to the model.
type Tool interface {
	// Name is the stable identifier the model uses to call the tool.
	Name() string

	// Definition declares the tool to the provider.
	Definition() provider.ToolDefinition

	// Execute runs the tool with raw JSON arguments and returns a JSON
	// result payload.
	Execute(ctx context.Context, arguments string) (string, error)
}

// Registry resolves tool calls to implementations. Built once at startup;
// read-only afterwards, safe for concurrent use.
type Registry struct {
	tools  map[string]Tool
	logger log.Logger
}

// NewRegistry builds the lookup table from the given tools.
func NewRegistry(logger log.Logger, tools ...Tool) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	m := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		m[tool.Name()] = tool
	}
	return &Registry{tools: m, logger: logger}
}

// Builtin returns the full builtin tool set.
func Builtin(logger log.Logger) *Registry {
	return NewRegistry(logger,
		NewVATCalculator(),
		NewContractLookup(),
		NewComplianceCheck(),
	)
}

// Definitions lists all tool definitions in stable name order.
func (r *Registry) Definitions() []provider.ToolDefinition {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]provider.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

// ExecuteCall runs one requested tool call and always returns a tool-result
// message. Unknown tools and execution failures become structured error
// payloads the model can read; they never abort the request.
func (r *Registry) ExecuteCall(ctx context.Context, call chat.ToolCall) chat.Message {
	tool, ok := r.tools[call.Name]
	if !ok {
		r.logger.Warn("model requested unknown tool", "tool", call.Name)
		return chat.ToolResult(call.ID, call.Name, errorPayload(fmt.Sprintf("unknown tool %q", call.Name)))
	}

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		r.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return chat.ToolResult(call.ID, call.Name, errorPayload(err.Error()))
	}
	return chat.ToolResult(call.ID, call.Name, result)
}

func errorPayload(msg string) string {
	raw, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"internal"}`
	}
	return string(raw)
}
