// Package store persists conversation records durably so that history
// survives process restarts. Backends are selected by configuration; the
// rest of the system depends only on the Store interface.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a conversation id.
// Malformed records are reported as not found so callers degrade to a
// fresh conversation instead of failing.
var ErrNotFound = errors.New("store: conversation not found")

// Turn is one persisted user/agent exchange.
type Turn struct {
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	Timestamp     time.Time `json:"timestamp"`
	ToolsUsed     []string  `json:"tools_used,omitempty"`
}

// Record is the durable form of a conversation.
type Record struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	TurnCount      int       `json:"turn_count"`
	Turns          []Turn    `json:"turns"`
}

// Stats summarizes what a backend currently holds.
type Stats struct {
	Backend            string `json:"backend"`
	TotalConversations int    `json:"total_conversations"`
	TotalTurns         int    `json:"total_turns"`
	StorageSizeBytes   int64  `json:"storage_size_bytes"`
}

// Store is the persistence contract for conversation records.
//
// Save must be atomic: a reader never observes a half-written record,
// and a crash mid-save leaves either the old record or the new one.
// Delete is idempotent. Load returns ErrNotFound for unknown ids and
// for records that cannot be decoded.
type Store interface {
	Save(rec Record) error
	Load(conversationID string) (Record, error)
	Delete(conversationID string) error
	List() ([]string, error)
	Stats() (Stats, error)
}
