package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flowsmith/flowsmith/internal/store"
)

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAdmin_ConversationLifecycle(t *testing.T) {
	t.Parallel()

	fs, err := store.NewFileStore(t.TempDir(), slog.Default())
	if err != nil {
		t.Fatalf("new filestore: %v", err)
	}
	g, handler := newTestGateway(t, gatewayOptions{store: fs})

	_, resp := postChat(t, handler, ChatRequest{Message: "Hello"})
	id := resp.ConversationID

	// List includes the persisted conversation.
	rec := get(t, handler, "/api/conversations")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listing struct {
		Conversations []string `json:"conversations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("unmarshal listing: %v", err)
	}
	if len(listing.Conversations) != 1 || listing.Conversations[0] != id {
		t.Errorf("conversations = %v", listing.Conversations)
	}

	// Fetch returns the full history.
	rec = get(t, handler, "/api/conversations/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var conv conversationJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("unmarshal conversation: %v", err)
	}
	if conv.TurnCount != 1 || conv.Turns[0].UserMessage != "Hello" {
		t.Errorf("conversation = %+v", conv)
	}

	// Clear drops memory but keeps the durable record reloadable.
	clearRec := httptest.NewRecorder()
	handler.ServeHTTP(clearRec, httptest.NewRequest(http.MethodPost, "/api/conversations/"+id+"/clear", nil))
	if clearRec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", clearRec.Code)
	}
	if got := len(g.manager.GetConversationHistory(id)); got != 1 {
		t.Errorf("turns after clear = %d, want reloaded 1", got)
	}

	// Delete removes it everywhere.
	delRec := httptest.NewRecorder()
	handler.ServeHTTP(delRec, httptest.NewRequest(http.MethodDelete, "/api/conversations/"+id, nil))
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", delRec.Code)
	}
	if rec = get(t, handler, "/api/conversations/"+id); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestAdmin_UnknownConversation(t *testing.T) {
	t.Parallel()

	_, handler := newTestGateway(t, gatewayOptions{})

	if rec := get(t, handler, "/api/conversations/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAdmin_Telemetry(t *testing.T) {
	t.Parallel()

	_, handler := newTestGateway(t, gatewayOptions{})

	_, resp := postChat(t, handler, ChatRequest{Message: "Hello"})

	rec := get(t, handler, "/api/telemetry")
	if rec.Code != http.StatusOK {
		t.Fatalf("telemetry status = %d", rec.Code)
	}
	var body struct {
		Stats struct {
			Count int `json:"count"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal telemetry: %v", err)
	}
	if body.Stats.Count == 0 {
		t.Error("no samples recorded")
	}

	rec = get(t, handler, "/api/telemetry/"+resp.ConversationID)
	if rec.Code != http.StatusOK {
		t.Fatalf("per-conversation status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), resp.ConversationID) {
		t.Errorf("per-conversation body = %s", rec.Body.String())
	}
}

func TestAdmin_MemorySearch(t *testing.T) {
	t.Parallel()

	g, handler := newTestGateway(t, gatewayOptions{})
	g.memory.Track("conv_1", "wf_001", "Customer Complaint Handling", "created")

	if rec := get(t, handler, "/api/memory/search"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", rec.Code)
	}

	rec := get(t, handler, "/api/memory/search?q=complaint")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "wf_001") {
		t.Errorf("search body = %s", rec.Body.String())
	}

	rec = get(t, handler, "/api/memory/search?q=nothing-like-this")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "[]") {
		t.Errorf("empty search = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthAndStatus(t *testing.T) {
	t.Parallel()

	_, handler := newTestGateway(t, gatewayOptions{})
	_, _ = postChat(t, handler, ChatRequest{Message: "Hello"})

	rec := get(t, handler, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != "ok" || health.Model != "mock-model" || health.Conversations != 1 {
		t.Errorf("health = %+v", health)
	}

	rec = get(t, handler, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d", rec.Code)
	}
	var status StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.Model != "mock-model" || status.Conversations.Conversations != 1 {
		t.Errorf("status = %+v", status)
	}
	if status.PromptModes["general"] != 1 {
		t.Errorf("prompt modes = %v", status.PromptModes)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	_, handler := newTestGateway(t, gatewayOptions{})
	_, _ = postChat(t, handler, ChatRequest{Message: "Hello"})

	rec := get(t, handler, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, metric := range []string{"flowsmith_http_requests_total", "flowsmith_chat_requests_total"} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
}
