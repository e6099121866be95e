package ctxengine

import "time"

// UsageLevel classifies a usage sample against the context window.
type UsageLevel string

// UsageLevel constants, ordered by severity.
const (
	UsageLevelOK       UsageLevel = "ok"
	UsageLevelWarning  UsageLevel = "warning"  // >= 80% of the window
	UsageLevelCritical UsageLevel = "critical" // >= 95% of the window
)

// Threshold fractions of the context window.
const (
	warningFraction  = 0.80
	criticalFraction = 0.95
)

// UsageSample is one telemetry record: the estimated token breakdown of a
// single assembled context.
type UsageSample struct {
	ConversationID string     `json:"conversation_id"`
	Instruction    int        `json:"instruction_tokens"`
	History        int        `json:"history_tokens"`
	Workflow       int        `json:"workflow_tokens"`
	Total          int        `json:"total_tokens"`
	WindowLimit    int        `json:"window_limit"`
	Level          UsageLevel `json:"level"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Meter computes usage samples from context segments.
type Meter struct {
	estimator   TokenEstimator
	windowLimit int

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewMeter creates a Meter. A windowLimit of 0 defaults to 32000 tokens.
func NewMeter(estimator TokenEstimator, windowLimit int) *Meter {
	if windowLimit <= 0 {
		windowLimit = 32000
	}
	return &Meter{
		estimator:   estimator,
		windowLimit: windowLimit,
		now:         time.Now,
	}
}

// WindowLimit returns the configured context window ceiling.
func (m *Meter) WindowLimit() int { return m.windowLimit }

// Measure estimates each segment of an assembled context and classifies
// the total against the window limit.
func (m *Meter) Measure(conversationID, instruction, history, workflow string) UsageSample {
	s := UsageSample{
		ConversationID: conversationID,
		Instruction:    m.estimator.Estimate(instruction),
		History:        m.estimator.Estimate(history),
		Workflow:       m.estimator.Estimate(workflow),
		WindowLimit:    m.windowLimit,
		Timestamp:      m.now(),
	}
	s.Total = s.Instruction + s.History + s.Workflow
	s.Level = classify(s.Total, m.windowLimit)
	return s
}

func classify(total, limit int) UsageLevel {
	switch {
	case float64(total) >= criticalFraction*float64(limit):
		return UsageLevelCritical
	case float64(total) >= warningFraction*float64(limit):
		return UsageLevelWarning
	default:
		return UsageLevelOK
	}
}
