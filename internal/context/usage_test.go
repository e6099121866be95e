package ctxengine_test

import (
	"strings"
	"testing"

	ctxengine "github.com/flowsmith/flowsmith/internal/context"
)

// fixedEstimator counts one token per character, making thresholds exact.
type fixedEstimator struct{}

func (fixedEstimator) Estimate(text string) int { return len(text) }

// ---------------------------------------------------------------------------
// Meter.Measure
// ---------------------------------------------------------------------------

func TestMeter_Measure_Breakdown(t *testing.T) {
	t.Parallel()

	m := ctxengine.NewMeter(fixedEstimator{}, 1000)

	s := m.Measure("c1", "iii", "hhhhh", "ww")
	if s.ConversationID != "c1" {
		t.Errorf("ConversationID = %q, want %q", s.ConversationID, "c1")
	}
	if s.Instruction != 3 || s.History != 5 || s.Workflow != 2 {
		t.Errorf("breakdown = (%d, %d, %d), want (3, 5, 2)", s.Instruction, s.History, s.Workflow)
	}
	if s.Total != 10 {
		t.Errorf("Total = %d, want 10", s.Total)
	}
	if s.WindowLimit != 1000 {
		t.Errorf("WindowLimit = %d, want 1000", s.WindowLimit)
	}
	if s.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

func TestMeter_Measure_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		historyChars int // window limit is 100, one token per char
		want         ctxengine.UsageLevel
	}{
		{name: "empty_ok", historyChars: 0, want: ctxengine.UsageLevelOK},
		{name: "just_below_warning", historyChars: 79, want: ctxengine.UsageLevelOK},
		{name: "warning_boundary", historyChars: 80, want: ctxengine.UsageLevelWarning},
		{name: "just_below_critical", historyChars: 94, want: ctxengine.UsageLevelWarning},
		{name: "critical_boundary", historyChars: 95, want: ctxengine.UsageLevelCritical},
		{name: "over_window", historyChars: 120, want: ctxengine.UsageLevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := ctxengine.NewMeter(fixedEstimator{}, 100)
			s := m.Measure("c1", "", strings.Repeat("h", tt.historyChars), "")
			if s.Level != tt.want {
				t.Errorf("Measure(%d tokens).Level = %q, want %q", tt.historyChars, s.Level, tt.want)
			}
		})
	}
}

func TestNewMeter_DefaultWindow(t *testing.T) {
	t.Parallel()

	m := ctxengine.NewMeter(fixedEstimator{}, 0)
	if m.WindowLimit() != 32000 {
		t.Errorf("WindowLimit() = %d, want 32000", m.WindowLimit())
	}
}
