package golden

import (
	"context"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Cos'è l'IVA?", "cos è l iva"},
		{"  COS'È   L'IVA??? ", "cos è l iva"},
		{"regime forfettario", "regime forfettario"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMemoryStoreLookup(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.Put(&Answer{
		Pattern:    "Cos'è l'IVA?",
		Content:    "L'IVA è l'imposta sul valore aggiunto.",
		Confidence: 0.97,
		Epoch:      100,
		Meta: Metadata{
			UpdatedAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			Tags:      []string{"iva", "aliquote"},
			Category:  "tax",
		},
	})

	// Lookup is keyed by the normalized pattern: punctuation and case
	// variants of the same question must hit.
	got, ok := store.Lookup(context.Background(), "cos'è l'iva")
	if !ok {
		t.Fatal("expected hit for normalized variant")
	}
	if got.Epoch != 100 {
		t.Errorf("Epoch = %d, want 100", got.Epoch)
	}

	if _, ok := store.Lookup(context.Background(), "cos'è l'IRPEF"); ok {
		t.Error("unexpected hit for a different question")
	}
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.Put(&Answer{Pattern: "cos'è l'iva", Content: "v1", Epoch: 1})
	store.Put(&Answer{Pattern: "Cos'è l'IVA?", Content: "v2", Epoch: 2})

	got, ok := store.Lookup(context.Background(), "cos'è l'iva")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Content != "v2" {
		t.Errorf("Content = %q, want %q (last write wins)", got.Content, "v2")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}
