package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flowsmith/flowsmith/internal/conversation"
	"github.com/flowsmith/flowsmith/internal/store"
)

func addTurns(t *testing.T, m *conversation.Manager, id string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		err := m.AddTurn(context.Background(), conversation.AddTurnRequest{
			ConversationID: id,
			UserMessage:    fmt.Sprintf("message %d", i),
			AgentResponse:  fmt.Sprintf("response %d", i),
		})
		if err != nil {
			t.Fatalf("add turn %d: %v", i, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Turn lifecycle
// ---------------------------------------------------------------------------

func TestManager_AddTurnAndHistory(t *testing.T) {
	t.Parallel()

	m := conversation.NewManager(conversation.Config{}, conversation.Options{})
	err := m.AddTurn(context.Background(), conversation.AddTurnRequest{
		ConversationID: "c1",
		UserMessage:    "Hello",
		AgentResponse:  "Hi there",
	})
	if err != nil {
		t.Fatalf("add turn: %v", err)
	}

	turns := m.GetConversationHistory("c1")
	if len(turns) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(turns))
	}
	if turns[0].UserMessage != "Hello" || turns[0].AgentResponse != "Hi there" {
		t.Errorf("turn = %+v, want Hello / Hi there", turns[0])
	}
	if turns[0].Timestamp.IsZero() {
		t.Error("turn timestamp is zero")
	}
}

func TestManager_EmptyConversationID(t *testing.T) {
	t.Parallel()

	m := conversation.NewManager(conversation.Config{}, conversation.Options{})
	err := m.AddTurn(context.Background(), conversation.AddTurnRequest{UserMessage: "hi"})
	if err == nil {
		t.Error("AddTurn with empty id succeeded, want error")
	}
}

func TestManager_UnknownConversationReads(t *testing.T) {
	t.Parallel()

	m := conversation.NewManager(conversation.Config{}, conversation.Options{})
	if got := m.GetContextString("nope"); got != "" {
		t.Errorf("GetContextString(nope) = %q, want empty", got)
	}
	if got := m.GetConversationHistory("nope"); len(got) != 0 {
		t.Errorf("GetConversationHistory(nope) = %v, want empty", got)
	}
}

func TestManager_NoStaleContextAfterAddTurn(t *testing.T) {
	t.Parallel()

	m := conversation.NewManager(conversation.Config{}, conversation.Options{})
	addTurns(t, m, "c1", 1)

	first := m.GetContextString("c1")
	if !strings.Contains(first, "message 1") {
		t.Fatalf("context missing first turn: %q", first)
	}

	addTurns(t, m, "c1", 1) // appends "message 1" again under a new count
	if err := m.AddTurn(context.Background(), conversation.AddTurnRequest{
		ConversationID: "c1", UserMessage: "fresh question", AgentResponse: "fresh answer",
	}); err != nil {
		t.Fatalf("add turn: %v", err)
	}

	got := m.GetContextString("c1")
	if !strings.Contains(got, "fresh question") || !strings.Contains(got, "fresh answer") {
		t.Errorf("context is stale after AddTurn: %q", got)
	}
}

func TestManager_ContextStringFormat(t *testing.T) {
	t.Parallel()

	m := conversation.NewManager(conversation.Config{}, conversation.Options{})
	addTurns(t, m, "c1", 2)

	want := "User: message 1\n\nAgent: response 1\n\nUser: message 2\n\nAgent: response 2"
	if got := m.GetContextString("c1"); got != want {
		t.Errorf("context = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// Summarization
// ---------------------------------------------------------------------------

func TestManager_SummarizationTriggerBoundary(t *testing.T) {
	t.Parallel()

	fake := &fakeSummarizer{text: "Earlier topics: workflow creation"}
	m := conversation.NewManager(
		conversation.Config{MaxLength: 15},
		conversation.Options{Summarizer: fake},
	)

	addTurns(t, m, "c1", 10)
	if m.Summary("c1") != nil {
		t.Fatal("summary exists at 10 of 15 turns (10/15 < 0.70)")
	}
	if fake.callCount() != 0 {
		t.Fatalf("summarizer called %d times before threshold", fake.callCount())
	}

	addTurns(t, m, "c1", 1)
	s := m.Summary("c1")
	if s == nil {
		t.Fatal("no summary at 11 of 15 turns (11/15 >= 0.70)")
	}
	// Preserving the first 2 and last 5 of 11 turns leaves turns 3-6.
	if s.StartIndex != 2 || s.EndIndex != 6 {
		t.Errorf("summary covers [%d, %d), want [2, 6)", s.StartIndex, s.EndIndex)
	}
	if fake.lastSegmentLen() != 4 {
		t.Errorf("summarized segment length = %d, want 4", fake.lastSegmentLen())
	}
}

func TestManager_SummaryRenderedInContext(t *testing.T) {
	t.Parallel()

	fake := &fakeSummarizer{text: "Earlier topics: task setup"}
	m := conversation.NewManager(
		conversation.Config{MaxLength: 15},
		conversation.Options{Summarizer: fake},
	)
	addTurns(t, m, "c1", 11)

	got := m.GetContextString("c1")
	if !strings.Contains(got, "Earlier topics: task setup") {
		t.Fatalf("context missing summary text: %q", got)
	}

	// First 2 turns and last 5 turns stay verbatim.
	for _, i := range []int{1, 2, 7, 8, 9, 10, 11} {
		if !strings.Contains(got, fmt.Sprintf("User: message %d", i)) {
			t.Errorf("context missing preserved turn %d", i)
		}
	}
	// Summarized middle turns must not appear verbatim.
	for _, i := range []int{3, 4, 5, 6} {
		if strings.Contains(got, fmt.Sprintf("User: message %d", i)) {
			t.Errorf("context contains summarized turn %d verbatim", i)
		}
	}
}

func TestManager_SummaryReplacedNotAccumulated(t *testing.T) {
	t.Parallel()

	fake := &fakeSummarizer{text: "Earlier topics: setup"}
	m := conversation.NewManager(
		conversation.Config{MaxLength: 15},
		conversation.Options{Summarizer: fake},
	)

	addTurns(t, m, "c1", 12)
	s := m.Summary("c1")
	if s == nil {
		t.Fatal("no summary after 12 turns")
	}
	// Re-summarized at turn 12: range grows to [2, 7), one active summary.
	if s.StartIndex != 2 || s.EndIndex != 7 {
		t.Errorf("summary covers [%d, %d), want [2, 7)", s.StartIndex, s.EndIndex)
	}
	if fake.callCount() != 2 {
		t.Errorf("summarizer called %d times, want 2 (turns 11 and 12)", fake.callCount())
	}
	if n := strings.Count(m.GetContextString("c1"), "Earlier topics: setup"); n != 1 {
		t.Errorf("summary appears %d times in context, want 1", n)
	}
}

func TestManager_TrimToMaxLength(t *testing.T) {
	t.Parallel()

	m := conversation.NewManager(conversation.Config{MaxLength: 6}, conversation.Options{})
	addTurns(t, m, "c1", 8)

	turns := m.GetConversationHistory("c1")
	if len(turns) != 6 {
		t.Fatalf("len(history) = %d, want 6", len(turns))
	}
	if turns[0].UserMessage != "message 3" {
		t.Errorf("oldest retained turn = %q, want message 3", turns[0].UserMessage)
	}
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

func TestManager_PersistenceRoundTrip(t *testing.T) {
	t.Parallel()

	fs, err := store.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	m1 := conversation.NewManager(conversation.Config{}, conversation.Options{Store: fs})
	addTurns(t, m1, "c1", 3)

	// A fresh manager over the same store auto-loads on first read.
	m2 := conversation.NewManager(conversation.Config{}, conversation.Options{Store: fs})
	turns := m2.GetConversationHistory("c1")
	if len(turns) != 3 {
		t.Fatalf("len(history) = %d after reload, want 3", len(turns))
	}
	if turns[2].UserMessage != "message 3" {
		t.Errorf("last turn = %q, want message 3", turns[2].UserMessage)
	}
	if got := m2.GetContextString("c1"); !strings.Contains(got, "message 1") {
		t.Errorf("reloaded context missing turns: %q", got)
	}
}

func TestManager_PersistFailureIsSoft(t *testing.T) {
	t.Parallel()

	m := conversation.NewManager(conversation.Config{}, conversation.Options{Store: failStore{}})
	addTurns(t, m, "c1", 2)

	// The conversation keeps working in memory despite the dead store.
	if got := m.GetConversationHistory("c1"); len(got) != 2 {
		t.Errorf("len(history) = %d, want 2", len(got))
	}
}

func TestManager_ClearAndDeletePermanent(t *testing.T) {
	t.Parallel()

	fs, err := store.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	m := conversation.NewManager(conversation.Config{}, conversation.Options{Store: fs})
	addTurns(t, m, "c1", 2)

	// Clear drops memory but leaves the durable record.
	m.Clear("c1")
	if got := m.GetConversationHistory("c1"); len(got) != 2 {
		t.Fatalf("history not reloadable after Clear: %d turns", len(got))
	}

	if err := m.DeletePermanent("c1"); err != nil {
		t.Fatalf("delete permanent: %v", err)
	}
	if _, err := fs.Load("c1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("record still present after DeletePermanent: %v", err)
	}
	if got := m.GetConversationHistory("c1"); len(got) != 0 {
		t.Errorf("history = %d turns after DeletePermanent, want 0", len(got))
	}

	// Both are idempotent.
	m.Clear("c1")
	if err := m.DeletePermanent("c1"); err != nil {
		t.Errorf("second DeletePermanent: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Stats / pruning / concurrency
// ---------------------------------------------------------------------------

func TestManager_Stats(t *testing.T) {
	t.Parallel()

	fs, err := store.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	m := conversation.NewManager(conversation.Config{}, conversation.Options{Store: fs})
	addTurns(t, m, "c1", 2)
	addTurns(t, m, "c2", 1)

	stats := m.Stats()
	if stats.Conversations != 2 {
		t.Errorf("Conversations = %d, want 2", stats.Conversations)
	}
	if stats.Storage == nil {
		t.Fatal("Storage stats missing")
	}
	if stats.Storage.TotalConversations != 2 || stats.Storage.TotalTurns != 3 {
		t.Errorf("storage = %+v, want 2 conversations, 3 turns", stats.Storage)
	}
	if stats.Telemetry.Count == 0 {
		t.Error("no telemetry samples recorded")
	}
}

func TestManager_PruneIdle(t *testing.T) {
	t.Parallel()

	m := conversation.NewManager(conversation.Config{}, conversation.Options{})
	addTurns(t, m, "c1", 1)

	if pruned := m.PruneIdle(time.Hour); pruned != 0 {
		t.Errorf("PruneIdle(1h) = %d, want 0", pruned)
	}

	time.Sleep(10 * time.Millisecond)
	if pruned := m.PruneIdle(time.Millisecond); pruned != 1 {
		t.Errorf("PruneIdle(1ms) = %d, want 1", pruned)
	}
	if got := m.GetConversationHistory("c1"); len(got) != 0 {
		t.Errorf("history = %d turns after prune without store, want 0", len(got))
	}
}

func TestManager_ConcurrentConversations(t *testing.T) {
	t.Parallel()

	m := conversation.NewManager(conversation.Config{MaxLength: 100}, conversation.Options{})

	var wg sync.WaitGroup
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = m.AddTurn(context.Background(), conversation.AddTurnRequest{
					ConversationID: id,
					UserMessage:    fmt.Sprintf("%s message %d", id, i),
					AgentResponse:  "ok",
				})
				_ = m.GetContextString(id)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		if got := len(m.GetConversationHistory(id)); got != 20 {
			t.Errorf("len(history(%s)) = %d, want 20", id, got)
		}
	}
}
