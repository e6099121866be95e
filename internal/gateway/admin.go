package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowsmith/flowsmith/internal/conversation"
	"github.com/flowsmith/flowsmith/internal/memory"
)

// handleListConversations returns the ids of all persisted conversations.
func (g *Gateway) handleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ids, err := g.manager.ListPersisted()
		if err != nil {
			g.logger.Error("listing conversations failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversations": ids})
	}
}

// conversationJSON is a serializable conversation snapshot.
type conversationJSON struct {
	ConversationID string              `json:"conversation_id"`
	TurnCount      int                 `json:"turn_count"`
	Turns          []conversation.Turn `json:"turns"`
}

// handleGetConversation returns a conversation's full turn history.
func (g *Gateway) handleGetConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		turns := g.manager.GetConversationHistory(id)
		if len(turns) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
			return
		}
		writeJSON(w, http.StatusOK, conversationJSON{
			ConversationID: id,
			TurnCount:      len(turns),
			Turns:          turns,
		})
	}
}

// handleClearConversation drops a conversation from memory and cache.
// The durable record survives and reloads on next access.
func (g *Gateway) handleClearConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.manager.Clear(chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleDeleteConversation removes a conversation everywhere, including
// its durable record. Idempotent.
func (g *Gateway) handleDeleteConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.manager.DeletePermanent(id); err != nil {
			g.logger.Error("conversation delete failed", "conversation_id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "delete failed"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleTelemetry returns aggregate usage statistics and retained samples.
func (g *Gateway) handleTelemetry() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"stats":   g.history.Stats(),
			"samples": g.history.Samples(),
		})
	}
}

// handleConversationTelemetry returns retained samples for one conversation.
func (g *Gateway) handleConversationTelemetry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		samples := g.history.ForConversation(id)
		writeJSON(w, http.StatusOK, map[string]any{
			"conversation_id": id,
			"samples":         samples,
		})
	}
}

// handleMemorySearch searches tracked workflow references by name or
// alias. The optional conversation_id parameter scopes the search.
func (g *Gateway) handleMemorySearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q parameter is required"})
			return
		}
		refs := g.memory.Search(query, r.URL.Query().Get("conversation_id"))
		if refs == nil {
			refs = []memory.Reference{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": refs})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
