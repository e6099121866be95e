// Package gateway provides the HTTP surface of the conversation service:
// the chat endpoint, conversation administration, telemetry, health, and
// Prometheus metrics. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flowsmith/flowsmith/internal/bridge"
	ctxengine "github.com/flowsmith/flowsmith/internal/context"
	"github.com/flowsmith/flowsmith/internal/conversation"
	"github.com/flowsmith/flowsmith/internal/core"
	"github.com/flowsmith/flowsmith/internal/memory"
	"github.com/flowsmith/flowsmith/internal/prompt"
	"github.com/flowsmith/flowsmith/internal/provider"
)

// Options carries the gateway's collaborators. Bridge is optional: with
// a nil Bridge, workflow context and tool definitions are unavailable
// and chat degrades to plain conversation.
type Options struct {
	Manager  *conversation.Manager
	Composer *prompt.Composer
	Provider provider.Provider
	Memory   *memory.WorkflowMemory
	Bridge   bridge.Client
	Meter    *ctxengine.Meter
	History  *ctxengine.UsageHistory
	Logger   *slog.Logger
	Tracing  func(http.Handler) http.Handler
}

// Gateway is the HTTP server component. It implements core.Starter and
// core.Stopper so it participates in the application lifecycle.
type Gateway struct {
	config    Config
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	startedAt time.Time

	manager  *conversation.Manager
	composer *prompt.Composer
	provider provider.Provider
	memory   *memory.WorkflowMemory
	bridge   bridge.Client
	meter    *ctxengine.Meter
	history  *ctxengine.UsageHistory
	tracing  func(http.Handler) http.Handler
}

// Compile-time interface checks.
var (
	_ core.Starter = (*Gateway)(nil)
	_ core.Stopper = (*Gateway)(nil)
)

// New creates a Gateway. Manager, Composer, and Provider are required.
func New(cfg Config, opts Options) (*Gateway, error) {
	cfg.defaults()
	if opts.Manager == nil || opts.Composer == nil || opts.Provider == nil {
		return nil, errors.New("gateway: manager, composer, and provider are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewWorkflowMemory(0)
	}
	if opts.Meter == nil {
		opts.Meter = ctxengine.NewMeter(ctxengine.NewCharEstimator(0), opts.Provider.ContextWindowSize())
	}
	if opts.History == nil {
		opts.History = ctxengine.NewUsageHistory(0)
	}

	return &Gateway{
		config:   cfg,
		logger:   opts.Logger.With("component", "gateway"),
		metrics:  NewMetrics(),
		manager:  opts.Manager,
		composer: opts.Composer,
		provider: opts.Provider,
		memory:   opts.Memory,
		bridge:   opts.Bridge,
		meter:    opts.Meter,
		history:  opts.History,
		tracing:  opts.Tracing,
	}, nil
}

// Start implements core.Starter. It refreshes the composer's tools
// reference from the bridge when one is connected, then starts serving.
func (g *Gateway) Start() error {
	if g.bridge != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if tools, err := g.bridge.ListTools(ctx); err != nil {
			g.logger.Warn("tool discovery failed, using built-in tools reference", "error", err)
		} else {
			g.composer.SetToolsReference(bridge.FormatToolsReference(tools))
			g.logger.Info("tools reference refreshed", "tools", len(tools))
		}
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
