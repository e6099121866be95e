package ctxengine

import "sync"

// DefaultHistoryCapacity bounds the rolling telemetry buffer.
const DefaultHistoryCapacity = 100

// UsageStats is an aggregate view over the retained samples.
type UsageStats struct {
	Count     int     `json:"count"`
	MeanTotal float64 `json:"mean_total_tokens"`
	MaxTotal  int     `json:"max_total_tokens"`
	Warnings  int     `json:"warnings"`
	Criticals int     `json:"criticals"`
}

// UsageHistory is a bounded, process-wide rolling buffer of usage samples.
// The oldest sample is evicted once capacity is exceeded. Safe for
// concurrent use across conversations.
type UsageHistory struct {
	mu       sync.RWMutex
	samples  []UsageSample
	capacity int

	subsMu sync.Mutex
	subs   map[chan UsageSample]struct{}
}

// NewUsageHistory creates a history with the given capacity.
// A capacity of <= 0 defaults to DefaultHistoryCapacity.
func NewUsageHistory(capacity int) *UsageHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &UsageHistory{
		capacity: capacity,
		subs:     make(map[chan UsageSample]struct{}),
	}
}

// Record appends a sample, evicting the oldest past capacity, and fans it
// out to subscribers. Slow subscribers are skipped, never blocked on.
func (h *UsageHistory) Record(s UsageSample) {
	h.mu.Lock()
	h.samples = append(h.samples, s)
	if len(h.samples) > h.capacity {
		h.samples = h.samples[len(h.samples)-h.capacity:]
	}
	h.mu.Unlock()

	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Samples returns a copy of all retained samples, oldest first.
func (h *UsageHistory) Samples() []UsageSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]UsageSample, len(h.samples))
	copy(out, h.samples)
	return out
}

// ForConversation returns retained samples for one conversation, oldest first.
func (h *UsageHistory) ForConversation(conversationID string) []UsageSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []UsageSample
	for i := range h.samples {
		if h.samples[i].ConversationID == conversationID {
			out = append(out, h.samples[i])
		}
	}
	return out
}

// Stats aggregates the retained samples.
func (h *UsageHistory) Stats() UsageStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := UsageStats{Count: len(h.samples)}
	if stats.Count == 0 {
		return stats
	}

	sum := 0
	for i := range h.samples {
		total := h.samples[i].Total
		sum += total
		if total > stats.MaxTotal {
			stats.MaxTotal = total
		}
		switch h.samples[i].Level {
		case UsageLevelWarning:
			stats.Warnings++
		case UsageLevelCritical:
			stats.Criticals++
		}
	}
	stats.MeanTotal = float64(sum) / float64(stats.Count)
	return stats
}

// Subscribe returns a channel receiving future samples. The returned
// cancel function removes the subscription and closes the channel.
func (h *UsageHistory) Subscribe() (<-chan UsageSample, func()) {
	ch := make(chan UsageSample, 16)

	h.subsMu.Lock()
	h.subs[ch] = struct{}{}
	h.subsMu.Unlock()

	cancel := func() {
		h.subsMu.Lock()
		defer h.subsMu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}
