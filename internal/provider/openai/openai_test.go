package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/provider"
)

func TestBuildMessages(t *testing.T) {
	t.Parallel()

	msgs := []chat.Message{
		chat.System("Sei un assistente fiscale italiano."),
		chat.User("Cos'è l'IVA?"),
		chat.Assistant("L'IVA è l'imposta sul valore aggiunto."),
	}

	out := buildMessages(msgs)

	require.Len(t, out, 3)
	assert.NotNil(t, out[0].OfSystem)
	assert.NotNil(t, out[1].OfUser)
	assert.NotNil(t, out[2].OfAssistant)
}

func TestBuildMessagesToolRoundTrip(t *testing.T) {
	t.Parallel()

	msgs := []chat.Message{
		chat.User("Calcola l'IVA su 100 euro."),
		{
			Role: chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{
				{ID: "call_1", Name: "vat_calculator", Arguments: `{"amount":100}`},
			},
		},
		chat.ToolResult("call_1", "vat_calculator", `{"vat":22}`),
	}

	out := buildMessages(msgs)

	require.Len(t, out, 3)
	require.NotNil(t, out[1].OfAssistant)
	require.Len(t, out[1].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "vat_calculator", out[1].OfAssistant.ToolCalls[0].Function.Name)
	require.NotNil(t, out[2].OfTool)
	assert.Equal(t, "call_1", out[2].OfTool.ToolCallID)
}

func TestBuildParamsTools(t *testing.T) {
	t.Parallel()

	req := provider.Request{
		Messages:    []chat.Message{chat.User("q")},
		Temperature: 0.3,
		MaxTokens:   2048,
		Tools: []provider.ToolDefinition{{
			Name:        "contract_lookup",
			Description: "Look up national labor contracts",
			Parameters:  map[string]any{"type": "object"},
		}},
	}

	params := buildParams("gpt-4o-mini", req)

	assert.Equal(t, "gpt-4o-mini", string(params.Model))
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "contract_lookup", params.Tools[0].Function.Name)
}

func TestKind(t *testing.T) {
	t.Parallel()
	assert.Equal(t, provider.KindOpenAI, New("").Kind())
}
