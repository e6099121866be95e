package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/flowsmith/flowsmith/internal/bridge"
	ctxengine "github.com/flowsmith/flowsmith/internal/context"
	"github.com/flowsmith/flowsmith/internal/conversation"
	"github.com/flowsmith/flowsmith/internal/memory"
	"github.com/flowsmith/flowsmith/internal/prompt"
	"github.com/flowsmith/flowsmith/internal/provider"
	"github.com/flowsmith/flowsmith/internal/provider/providertest"
	"github.com/flowsmith/flowsmith/internal/store"
)

// fakeBridge is an in-memory bridge.Client.
type fakeBridge struct {
	mu         sync.Mutex
	workflows  map[string]string
	tools      []bridge.ToolInfo
	fetchCalls int
	failWith   error
}

var _ bridge.Client = (*fakeBridge)(nil)

func (b *fakeBridge) FetchWorkflow(_ context.Context, workflowID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++
	if b.failWith != nil {
		return "", b.failWith
	}
	spec, ok := b.workflows[workflowID]
	if !ok {
		return "", bridge.ErrWorkflowNotFound
	}
	return spec, nil
}

func (b *fakeBridge) ListTools(_ context.Context) ([]bridge.ToolInfo, error) {
	return b.tools, nil
}

func (b *fakeBridge) Close() error { return nil }

func (b *fakeBridge) fetchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetchCalls
}

type gatewayOptions struct {
	store     store.Store
	bridge    bridge.Client
	provider  provider.Provider
	history   *ctxengine.UsageHistory
	memoryIdx *memory.WorkflowMemory
}

// newTestGateway builds a Gateway wired with in-memory fakes and returns
// it together with its HTTP handler.
func newTestGateway(t *testing.T, opts gatewayOptions) (*Gateway, http.Handler) {
	t.Helper()

	if opts.provider == nil {
		opts.provider = providertest.NewMockProvider()
	}
	if opts.history == nil {
		opts.history = ctxengine.NewUsageHistory(0)
	}
	if opts.memoryIdx == nil {
		opts.memoryIdx = memory.NewWorkflowMemory(0)
	}

	meter := ctxengine.NewMeter(ctxengine.NewCharEstimator(0), 0)
	manager := conversation.NewManager(conversation.Config{}, conversation.Options{
		Store:   opts.store,
		Meter:   meter,
		History: opts.history,
		Logger:  slog.Default(),
	})

	g, err := New(Config{}, Options{
		Manager:  manager,
		Composer: prompt.NewComposer(nil),
		Provider: opts.provider,
		Memory:   opts.memoryIdx,
		Bridge:   opts.bridge,
		Meter:    meter,
		History:  opts.history,
		Logger:   slog.Default(),
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return g, g.buildRouter()
}

var errBridgeDown = errors.New("bridge down")
