package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fiscogo/fisco/internal/chat"
)

func TestRegistryGet(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(NewMock(KindMock), NewMock(KindOpenAI))

	p, err := reg.Get(KindOpenAI)
	if err != nil {
		t.Fatalf("Get(KindOpenAI) error = %v", err)
	}
	if p.Kind() != KindOpenAI {
		t.Errorf("Kind() = %q, want %q", p.Kind(), KindOpenAI)
	}

	if _, err := reg.Get(KindAnthropic); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Get(unregistered) = %v, want ErrUnknownProvider", err)
	}
}

func TestMockComplete(t *testing.T) {
	t.Parallel()

	mock := NewMock(KindMock)
	mock.AddResponse("Cos'è l'IVA?", &Response{
		Content: "L'IVA è l'imposta sul valore aggiunto.",
		Usage:   TokenUsage{PromptTokens: 8, CompletionTokens: 12, TotalTokens: 20},
	})

	resp, err := mock.Complete(context.Background(), "gpt-4o-mini", Request{
		Messages: []chat.Message{chat.User("Cos'è l'IVA?")},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(resp.Content, "valore aggiunto") {
		t.Errorf("Content = %q, want canned response", resp.Content)
	}
	if resp.Model != "gpt-4o-mini" || resp.Provider != KindMock {
		t.Errorf("identity = (%q, %q), want (gpt-4o-mini, mock)", resp.Model, resp.Provider)
	}
	if resp.CostEstimateEUR <= 0 {
		t.Errorf("CostEstimateEUR = %v, want > 0", resp.CostEstimateEUR)
	}
}

func TestMockErrorQueue(t *testing.T) {
	t.Parallel()

	mock := NewMock(KindMock)
	boom := errors.New("503 service unavailable")
	mock.QueueError(boom, boom)

	req := Request{Messages: []chat.Message{chat.User("hi")}}

	for i := 0; i < 2; i++ {
		if _, err := mock.Complete(context.Background(), "m", req); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: error = %v, want queued error", i, err)
		}
	}
	if _, err := mock.Complete(context.Background(), "m", req); err != nil {
		t.Fatalf("after queue drained: error = %v, want nil", err)
	}
	if mock.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", mock.Calls())
	}
}

func TestMockStream(t *testing.T) {
	t.Parallel()

	mock := NewMock(KindMock)
	mock.AddResponse("q", &Response{Content: strings.Repeat("abc ", 20)})

	var deltas []string
	var done bool
	resp, err := mock.Stream(context.Background(), "m",
		Request{Messages: []chat.Message{chat.User("q")}},
		func(_ context.Context, chunk Chunk) error {
			if chunk.Done {
				done = true
				return nil
			}
			deltas = append(deltas, chunk.ContentDelta)
			return nil
		})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if !done {
		t.Error("stream did not emit terminal Done chunk")
	}
	if joined := strings.Join(deltas, ""); joined != resp.Content {
		t.Errorf("accumulated deltas differ from final content:\n%q\n%q", joined, resp.Content)
	}
}

func TestMockStreamCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := NewMock(KindMock)
	_, err := mock.Complete(ctx, "m", Request{Messages: []chat.Message{chat.User("q")}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Complete() with canceled ctx = %v, want context.Canceled", err)
	}
}

func TestEstimateCostEUR(t *testing.T) {
	t.Parallel()

	usage := TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}

	mini := EstimateCostEUR("gpt-4o-mini", usage)
	full := EstimateCostEUR("gpt-4o", usage)
	if mini >= full {
		t.Errorf("gpt-4o-mini (%v) should cost less than gpt-4o (%v)", mini, full)
	}

	unknown := EstimateCostEUR("some-future-model", usage)
	if unknown <= 0 {
		t.Errorf("unknown model cost = %v, want fallback > 0", unknown)
	}

	if zero := EstimateCostEUR("gpt-4o", TokenUsage{}); zero != 0 {
		t.Errorf("zero usage cost = %v, want 0", zero)
	}
}
