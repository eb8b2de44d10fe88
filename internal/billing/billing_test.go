package billing

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fiscogo/fisco/internal/log"
	"github.com/fiscogo/fisco/internal/provider"
)

func TestLogRecorderWritesEvents(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelInfo, JSON: true})

	r := NewLogRecorder(logger, 8)
	r.Record(Event{
		UserID:    "user-1",
		SessionID: uuid.New(),
		Provider:  provider.KindOpenAI,
		Model:     "gpt-4o-mini",
		CostEUR:   0.0021,
		LatencyMS: 340,
	})
	r.Close()

	out := buf.String()
	if !strings.Contains(out, "gpt-4o-mini") || !strings.Contains(out, "user-1") {
		t.Errorf("log output missing event fields:\n%s", out)
	}
}

func TestLogRecorderStampsTime(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelInfo, JSON: true})

	r := NewLogRecorder(logger, 1)
	before := time.Now().UTC()
	r.Record(Event{UserID: "u"})
	r.Close()

	if !strings.Contains(buf.String(), before.Format("2006")) {
		t.Errorf("event missing stamped timestamp:\n%s", buf.String())
	}
}

func TestLogRecorderDropsWhenFullOrClosed(t *testing.T) {
	t.Parallel()

	r := NewLogRecorder(log.NewNop(), 4)
	r.Close()

	// Recording after Close must neither panic nor block.
	r.Record(Event{UserID: "late"})
	if r.Dropped() == 0 {
		t.Error("Dropped() = 0, want post-close event counted as dropped")
	}

	// Closing twice is safe.
	r.Close()
}

func TestNopRecorder(t *testing.T) {
	t.Parallel()
	NopRecorder{}.Record(Event{UserID: "ignored"})
}
