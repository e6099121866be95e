// Package memory tracks which workflows were discussed or modified in
// which conversations, as lightweight references instead of full
// workflow specifications.
package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Action describes what happened to a workflow in a conversation.
type Action string

// Action constants for workflow references.
const (
	ActionCreated   Action = "created"
	ActionModified  Action = "modified"
	ActionDiscussed Action = "discussed"
	ActionViewed    Action = "viewed"
)

// DefaultMaxReferences bounds the global reference index.
const DefaultMaxReferences = 50

// Reference is a lightweight pointer to a workflow mentioned in a
// conversation: id, display name, searchable aliases, and the last
// action that touched it.
type Reference struct {
	ConversationID string    `json:"conversation_id"`
	WorkflowID     string    `json:"workflow_id"`
	Name           string    `json:"name"`
	Action         Action    `json:"action"`
	Aliases        []string  `json:"aliases"`
	TrackedAt      time.Time `json:"tracked_at"`
}

// refKey identifies one reference: a workflow within a conversation.
type refKey struct {
	conversationID string
	workflowID     string
}

// WorkflowMemory is a bounded, least-recently-tracked index of workflow
// references, with a reverse index from workflow id to the conversations
// that mention it. Safe for concurrent use across conversations.
type WorkflowMemory struct {
	mu      sync.RWMutex
	refs    map[refKey]*Reference
	order   []refKey                       // least recently tracked first
	reverse map[string]map[string]struct{} // workflow id → conversation ids

	maxReferences int

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewWorkflowMemory creates a memory index capped at maxReferences.
// A cap of <= 0 defaults to DefaultMaxReferences.
func NewWorkflowMemory(maxReferences int) *WorkflowMemory {
	if maxReferences <= 0 {
		maxReferences = DefaultMaxReferences
	}
	return &WorkflowMemory{
		refs:          make(map[refKey]*Reference),
		reverse:       make(map[string]map[string]struct{}),
		maxReferences: maxReferences,
		now:           time.Now,
	}
}

// Track upserts a workflow reference for a conversation and regenerates
// its alias list from the name. Exceeding the global cap evicts the
// least-recently-tracked reference, including its reverse-index entry.
func (m *WorkflowMemory) Track(conversationID, workflowID, name string, action Action) {
	if conversationID == "" || workflowID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := refKey{conversationID: conversationID, workflowID: workflowID}
	m.refs[key] = &Reference{
		ConversationID: conversationID,
		WorkflowID:     workflowID,
		Name:           name,
		Action:         action,
		Aliases:        GenerateAliases(name),
		TrackedAt:      m.now(),
	}

	m.touchLocked(key)

	if convs, ok := m.reverse[workflowID]; ok {
		convs[conversationID] = struct{}{}
	} else {
		m.reverse[workflowID] = map[string]struct{}{conversationID: {}}
	}

	for len(m.refs) > m.maxReferences {
		m.evictOldestLocked()
	}
}

// touchLocked moves key to the most-recently-tracked end of the order list.
func (m *WorkflowMemory) touchLocked(key refKey) {
	for i := range m.order {
		if m.order[i] == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.order = append(m.order, key)
}

// evictOldestLocked removes the least-recently-tracked reference and
// cleans up the reverse index.
func (m *WorkflowMemory) evictOldestLocked() {
	if len(m.order) == 0 {
		return
	}
	oldest := m.order[0]
	m.order = m.order[1:]
	delete(m.refs, oldest)

	if convs, ok := m.reverse[oldest.workflowID]; ok {
		delete(convs, oldest.conversationID)
		if len(convs) == 0 {
			delete(m.reverse, oldest.workflowID)
		}
	}
}

// ConversationWorkflows returns up to limit references for a
// conversation, most recently tracked first. A limit of <= 0 defaults
// to 5.
func (m *WorkflowMemory) ConversationWorkflows(conversationID string, limit int) []Reference {
	if limit <= 0 {
		limit = 5
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Reference
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		key := m.order[i]
		if key.conversationID != conversationID {
			continue
		}
		if ref, ok := m.refs[key]; ok {
			out = append(out, *ref)
		}
	}
	return out
}

// Search returns references whose name or aliases contain the query,
// case-insensitively. With a non-empty conversationID the search is
// restricted to that conversation's references first; a global search is
// used only when the scoped search finds nothing. Results are most
// recently tracked first.
func (m *WorkflowMemory) Search(query, conversationID string) []Reference {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if conversationID != "" {
		if scoped := m.searchLocked(q, conversationID); len(scoped) > 0 {
			return scoped
		}
	}
	return m.searchLocked(q, "")
}

// searchLocked scans the order list newest-first; an empty
// conversationID matches all conversations.
func (m *WorkflowMemory) searchLocked(q, conversationID string) []Reference {
	var out []Reference
	for i := len(m.order) - 1; i >= 0; i-- {
		key := m.order[i]
		if conversationID != "" && key.conversationID != conversationID {
			continue
		}
		ref, ok := m.refs[key]
		if !ok {
			continue
		}
		if matchesQuery(ref, q) {
			out = append(out, *ref)
		}
	}
	return out
}

func matchesQuery(ref *Reference, q string) bool {
	if strings.Contains(strings.ToLower(ref.Name), q) {
		return true
	}
	for _, alias := range ref.Aliases {
		if strings.Contains(alias, q) {
			return true
		}
	}
	return false
}

// WorkflowConversations returns the set of conversation ids that mention
// the given workflow.
func (m *WorkflowMemory) WorkflowConversations(workflowID string) map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convs, ok := m.reverse[workflowID]
	if !ok {
		return nil
	}
	out := make(map[string]struct{}, len(convs))
	for id := range convs {
		out[id] = struct{}{}
	}
	return out
}

// Len returns the total number of tracked references.
func (m *WorkflowMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.refs)
}

// Stats describes the current state of the index.
type Stats struct {
	TotalReferences int            `json:"total_references"`
	MaxReferences   int            `json:"max_references"`
	Workflows       int            `json:"workflows"`
	ActionCounts    map[string]int `json:"action_counts"`
}

// Stats returns index statistics for health reporting.
func (m *WorkflowMemory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	actions := make(map[string]int)
	for _, ref := range m.refs {
		actions[string(ref.Action)]++
	}
	return Stats{
		TotalReferences: len(m.refs),
		MaxReferences:   m.maxReferences,
		Workflows:       len(m.reverse),
		ActionCounts:    actions,
	}
}

// FormatForContext renders references as a compact prompt section, one
// short line per reference — never the full workflow specification.
// Returns an empty string for an empty slice.
func FormatForContext(refs []Reference) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent workflows:\n")
	for i := range refs {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", refs[i].Action, refs[i].Name, refs[i].WorkflowID)
	}
	return b.String()
}
