package chat

import "testing"

func TestLatestUserText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		msgs   []Message
		want   string
		wantOK bool
	}{
		{
			name:   "empty conversation",
			msgs:   nil,
			wantOK: false,
		},
		{
			name:   "no user message",
			msgs:   []Message{System("prompt"), Assistant("hi")},
			wantOK: false,
		},
		{
			name:   "single user message",
			msgs:   []Message{User("ciao")},
			want:   "ciao",
			wantOK: true,
		},
		{
			name: "latest user message wins",
			msgs: []Message{
				User("first"),
				Assistant("answer"),
				User("second"),
			},
			want:   "second",
			wantOK: true,
		},
		{
			name: "trailing assistant does not mask user",
			msgs: []Message{
				User("question"),
				Assistant("answer"),
			},
			want:   "question",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := LatestUserText(tt.msgs)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCloneIndependence(t *testing.T) {
	t.Parallel()

	orig := []Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "vat_calculator"}}},
		User("hello"),
	}

	cloned := Clone(orig)
	cloned[0].ToolCalls[0].Name = "mutated"
	cloned[1].Content = "mutated"

	if orig[0].ToolCalls[0].Name != "vat_calculator" {
		t.Error("tool calls shared between clone and original")
	}
	if orig[1].Content != "hello" {
		t.Error("content shared between clone and original")
	}

	if Clone(nil) != nil {
		t.Error("Clone(nil) should preserve nil")
	}
}

func TestToolResult(t *testing.T) {
	t.Parallel()

	msg := ToolResult("call-1", "vat_calculator", "22.00")
	if msg.Role != RoleTool {
		t.Errorf("role = %q, want %q", msg.Role, RoleTool)
	}
	if msg.ToolCallID != "call-1" || msg.ToolName != "vat_calculator" {
		t.Errorf("unexpected tool metadata: %+v", msg)
	}
}
