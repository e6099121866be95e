package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	ctxengine "github.com/flowsmith/flowsmith/internal/context"
	"github.com/flowsmith/flowsmith/internal/store"
)

// Config holds the tuning knobs for the conversation manager.
type Config struct {
	// MaxLength is the hard cap on retained turns per conversation.
	MaxLength int

	// SummaryThreshold triggers summarization when the turn count
	// reaches this fraction of MaxLength.
	SummaryThreshold float64

	// PreserveRecent is the number of most recent turns always kept
	// verbatim in the rendered context.
	PreserveRecent int

	// PreserveEarly is the number of opening turns always kept verbatim.
	PreserveEarly int

	// CacheTTL is the freshness window for cached context strings.
	CacheTTL time.Duration
}

// withDefaults returns a copy of cfg with zero-valued fields replaced by
// sensible defaults.
func (cfg Config) withDefaults() Config {
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 15
	}
	if cfg.SummaryThreshold == 0 {
		cfg.SummaryThreshold = 0.70
	}
	if cfg.PreserveRecent == 0 {
		cfg.PreserveRecent = 5
	}
	if cfg.PreserveEarly == 0 {
		cfg.PreserveEarly = 2
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return cfg
}

// Options are the manager's injected collaborators. Store and Summarizer
// are optional: a nil Store disables persistence, a nil Summarizer
// disables summarization.
type Options struct {
	Store      store.Store
	Summarizer Summarizer
	Meter      *ctxengine.Meter
	History    *ctxengine.UsageHistory
	Logger     *slog.Logger
}

// AddTurnRequest carries one completed exchange to record.
type AddTurnRequest struct {
	ConversationID string
	UserMessage    string
	AgentResponse  string
	ToolsUsed      []string
}

// ManagerStats aggregates component statistics for health reporting.
type ManagerStats struct {
	Conversations int                 `json:"conversations"`
	Cache         CacheStats          `json:"cache"`
	Storage       *store.Stats        `json:"storage,omitempty"`
	Telemetry     ctxengine.UsageStats `json:"telemetry"`
}

// Manager is the single entry point for turn lifecycle and context
// assembly. All collaborators are injected; a Manager owns its cache and
// conversation map, so tests can instantiate isolated instances.
type Manager struct {
	cfg        Config
	cache      *ContextCache
	store      store.Store
	summarizer Summarizer
	meter      *ctxengine.Meter
	history    *ctxengine.UsageHistory
	logger     *slog.Logger

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time

	mu            sync.RWMutex
	conversations map[string]*Conversation

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager creates a manager. Zero-valued config fields get defaults;
// a nil Meter gets a character estimator, a nil History gets a buffer of
// default capacity.
func NewManager(cfg Config, opts Options) *Manager {
	cfg = cfg.withDefaults()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Meter == nil {
		opts.Meter = ctxengine.NewMeter(ctxengine.NewCharEstimator(0), 0)
	}
	if opts.History == nil {
		opts.History = ctxengine.NewUsageHistory(0)
	}
	return &Manager{
		cfg:           cfg,
		cache:         NewContextCache(cfg.CacheTTL),
		store:         opts.Store,
		summarizer:    opts.Summarizer,
		meter:         opts.Meter,
		history:       opts.History,
		logger:        opts.Logger.With("component", "conversation"),
		now:           time.Now,
		conversations: make(map[string]*Conversation),
		locks:         make(map[string]*sync.Mutex),
	}
}

// Cache exposes the context cache for periodic sweeping.
func (m *Manager) Cache() *ContextCache { return m.cache }

// lockFor returns the per-conversation mutex, creating it on first use.
// Turns within one conversation are serialized; unrelated conversations
// proceed in parallel.
func (m *Manager) lockFor(conversationID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l, ok := m.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[conversationID] = l
	}
	return l
}

// AddTurn appends an immutable turn to the conversation, creating the
// conversation on first use. Side effects happen in a fixed order:
// invalidate the cached context, persist the updated record (soft
// failure), re-summarize old turns if over threshold, trim to the hard
// cap, and record a token usage sample.
func (m *Manager) AddTurn(ctx context.Context, req AddTurnRequest) error {
	if req.ConversationID == "" {
		return errors.New("conversation: conversation id is required")
	}

	lock := m.lockFor(req.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()
	turn := Turn{
		UserMessage:   req.UserMessage,
		AgentResponse: req.AgentResponse,
		Timestamp:     now,
		ToolsUsed:     req.ToolsUsed,
	}

	m.mu.Lock()
	conv, ok := m.conversations[req.ConversationID]
	if !ok {
		conv = &Conversation{ID: req.ConversationID, CreatedAt: now}
		m.conversations[req.ConversationID] = conv
	}
	conv.Turns = append(conv.Turns, turn)
	conv.UpdatedAt = now
	rec := recordFromConversation(conv)
	m.mu.Unlock()

	// Invalidate before persisting so no reader can observe a cached
	// context describing a turn count the record does not yet contain.
	m.cache.Invalidate(req.ConversationID)

	if m.store != nil {
		if err := m.store.Save(rec); err != nil {
			m.logger.Warn("persist failed, continuing in-memory only",
				"conversation_id", req.ConversationID, "error", err)
		}
	}

	m.maybeSummarize(ctx, req.ConversationID)
	m.trim(req.ConversationID)

	// The cache was invalidated above, so this rebuilds the context and
	// records a usage sample for the completed turn.
	m.GetContextString(req.ConversationID)

	return nil
}

// maybeSummarize replaces the conversation's summary when the turn count
// has reached the threshold fraction of MaxLength. The middle segment
// between the preserved early and recent turns is condensed; the
// preserved turns stay verbatim.
func (m *Manager) maybeSummarize(ctx context.Context, conversationID string) {
	if m.summarizer == nil {
		return
	}

	m.mu.RLock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		m.mu.RUnlock()
		return
	}
	count := len(conv.Turns)
	if float64(count)/float64(m.cfg.MaxLength) < m.cfg.SummaryThreshold {
		m.mu.RUnlock()
		return
	}

	start := m.cfg.PreserveEarly
	end := count - m.cfg.PreserveRecent
	if end < start {
		end = start
	}
	if end <= start {
		m.mu.RUnlock()
		return
	}
	middle := make([]Turn, end-start)
	copy(middle, conv.Turns[start:end])
	m.mu.RUnlock()

	// The model call happens outside the map lock; the per-id lock held
	// by AddTurn keeps the turn list stable meanwhile.
	text, fromModel := m.summarizer.Summarize(ctx, middle)
	if text == "" {
		return
	}

	m.mu.Lock()
	conv.Summary = &Summary{
		Text:       text,
		StartIndex: start,
		EndIndex:   end,
		FromModel:  fromModel,
		CreatedAt:  m.now(),
	}
	m.mu.Unlock()
	m.cache.Invalidate(conversationID)
}

// trim enforces the hard turn cap, dropping the oldest turns and
// shifting the summary's covered range accordingly.
func (m *Manager) trim(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok || len(conv.Turns) <= m.cfg.MaxLength {
		return
	}

	shift := len(conv.Turns) - m.cfg.MaxLength
	conv.Turns = append([]Turn(nil), conv.Turns[shift:]...)
	if s := conv.Summary; s != nil {
		s.StartIndex -= shift
		s.EndIndex -= shift
		if s.StartIndex < 0 {
			s.StartIndex = 0
		}
		if s.EndIndex <= 0 {
			conv.Summary = nil
		}
	}
}

// GetContextString renders the prior turns for prompting, substituting
// the active summary for its covered range. Unknown conversations yield
// an empty string, never an error. Results are cached; a rebuild meters
// the fresh string.
func (m *Manager) GetContextString(conversationID string) string {
	conv := m.snapshot(conversationID)
	if conv == nil || len(conv.Turns) == 0 {
		return ""
	}

	if text, ok := m.cache.Get(conversationID, len(conv.Turns)); ok {
		return text
	}

	text := renderContext(conv)
	m.cache.Put(conversationID, text, len(conv.Turns))

	sample := m.meter.Measure(conversationID, "", text, "")
	m.history.Record(sample)

	return text
}

// GetConversationHistory returns a copy of the conversation's turns.
// Conversations absent from memory are loaded from the store before
// giving up; a truly absent id yields an empty slice.
func (m *Manager) GetConversationHistory(conversationID string) []Turn {
	conv := m.snapshot(conversationID)
	if conv == nil {
		return []Turn{}
	}
	return conv.Turns
}

// snapshot returns a copy of the conversation, auto-loading from the
// store on absence. Returns nil when the conversation does not exist
// anywhere.
func (m *Manager) snapshot(conversationID string) *Conversation {
	m.mu.RLock()
	conv, ok := m.conversations[conversationID]
	if ok {
		cp := copyConversation(conv)
		m.mu.RUnlock()
		return cp
	}
	m.mu.RUnlock()

	if m.store == nil {
		return nil
	}

	rec, err := m.store.Load(conversationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("load failed, treating conversation as absent",
				"conversation_id", conversationID, "error", err)
		}
		return nil
	}

	loaded := conversationFromRecord(rec)

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent writer may have created it meanwhile; memory wins.
	if existing, ok := m.conversations[conversationID]; ok {
		return copyConversation(existing)
	}
	m.conversations[conversationID] = loaded
	return copyConversation(loaded)
}

// Clear removes the conversation from memory and cache only. Idempotent.
func (m *Manager) Clear(conversationID string) {
	lock := m.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	delete(m.conversations, conversationID)
	m.mu.Unlock()
	m.cache.Invalidate(conversationID)
}

// DeletePermanent clears the conversation and removes its durable
// record. Idempotent.
func (m *Manager) DeletePermanent(conversationID string) error {
	m.Clear(conversationID)
	if m.store == nil {
		return nil
	}
	if err := m.store.Delete(conversationID); err != nil {
		return fmt.Errorf("conversation: delete record: %w", err)
	}
	return nil
}

// Summary returns a copy of the conversation's active summary, or nil
// when none exists.
func (m *Manager) Summary(conversationID string) *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[conversationID]
	if !ok || conv.Summary == nil {
		return nil
	}
	s := *conv.Summary
	return &s
}

// TurnCount returns the current number of turns for a conversation.
func (m *Manager) TurnCount(conversationID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if conv, ok := m.conversations[conversationID]; ok {
		return len(conv.Turns)
	}
	return 0
}

// Stats aggregates cache, storage, and telemetry statistics. Storage
// stat failures are logged and omitted rather than propagated.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	tracked := len(m.conversations)
	m.mu.RUnlock()

	stats := ManagerStats{
		Conversations: tracked,
		Cache:         m.cache.Stats(),
		Telemetry:     m.history.Stats(),
	}
	if m.store != nil {
		if s, err := m.store.Stats(); err != nil {
			m.logger.Warn("storage stats unavailable", "error", err)
		} else {
			stats.Storage = &s
		}
	}
	return stats
}

// ListPersisted returns the ids of all durably stored conversations.
func (m *Manager) ListPersisted() ([]string, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.List()
}

// PruneIdle evicts in-memory conversations whose last activity is older
// than maxIdle. Durable records are untouched; an evicted conversation
// reloads from the store on next access. Returns the eviction count.
func (m *Manager) PruneIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	pruned := 0
	for id, conv := range m.conversations {
		if now.Sub(conv.UpdatedAt) > maxIdle {
			delete(m.conversations, id)
			m.cache.Invalidate(id)
			pruned++
		}
	}
	return pruned
}

// renderContext concatenates the turns as alternating User/Agent blocks,
// substituting the summary text for its covered range.
func renderContext(conv *Conversation) string {
	var parts []string
	s := conv.Summary

	for i, t := range conv.Turns {
		if s != nil && i >= s.StartIndex && i < s.EndIndex {
			if i == s.StartIndex {
				parts = append(parts, "[Summary of earlier conversation]\n"+s.Text)
			}
			continue
		}
		parts = append(parts, "User: "+t.UserMessage)
		parts = append(parts, "Agent: "+t.AgentResponse)
	}
	return strings.Join(parts, "\n\n")
}

func copyConversation(conv *Conversation) *Conversation {
	cp := &Conversation{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		Turns:     append([]Turn(nil), conv.Turns...),
	}
	if conv.Summary != nil {
		s := *conv.Summary
		cp.Summary = &s
	}
	return cp
}

func recordFromConversation(conv *Conversation) store.Record {
	rec := store.Record{
		ConversationID: conv.ID,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
		TurnCount:      len(conv.Turns),
		Turns:          make([]store.Turn, len(conv.Turns)),
	}
	for i, t := range conv.Turns {
		rec.Turns[i] = store.Turn{
			UserMessage:   t.UserMessage,
			AgentResponse: t.AgentResponse,
			Timestamp:     t.Timestamp,
			ToolsUsed:     t.ToolsUsed,
		}
	}
	return rec
}

func conversationFromRecord(rec store.Record) *Conversation {
	conv := &Conversation{
		ID:        rec.ConversationID,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Turns:     make([]Turn, len(rec.Turns)),
	}
	for i, t := range rec.Turns {
		conv.Turns[i] = Turn{
			UserMessage:   t.UserMessage,
			AgentResponse: t.AgentResponse,
			Timestamp:     t.Timestamp,
			ToolsUsed:     t.ToolsUsed,
		}
	}
	return conv
}
