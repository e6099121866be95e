package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flowsmith/flowsmith/internal/bridge"
	"github.com/flowsmith/flowsmith/internal/config"
	ctxengine "github.com/flowsmith/flowsmith/internal/context"
	"github.com/flowsmith/flowsmith/internal/conversation"
	"github.com/flowsmith/flowsmith/internal/core"
	"github.com/flowsmith/flowsmith/internal/cron"
	"github.com/flowsmith/flowsmith/internal/gateway"
	"github.com/flowsmith/flowsmith/internal/memory"
	"github.com/flowsmith/flowsmith/internal/prompt"
	"github.com/flowsmith/flowsmith/internal/provider"
	"github.com/flowsmith/flowsmith/internal/store"
	"github.com/flowsmith/flowsmith/internal/tracing"
	"github.com/flowsmith/flowsmith/modules/provider/mock"
	"github.com/flowsmith/flowsmith/modules/provider/openaicompat"
)

const bridgeDialTimeout = 10 * time.Second

// component pairs a lifecycle participant with its name.
type component struct {
	name      string
	component any
}

// wire builds every component of the service in dependency order.
func wire(cfg *config.Config, logger *slog.Logger) ([]component, error) {
	var components []component

	estimator, err := buildEstimator(cfg.Estimator)
	if err != nil {
		return nil, err
	}

	llm, err := BuildProvider(cfg.Provider, logger)
	if err != nil {
		return nil, err
	}

	meter := ctxengine.NewMeter(estimator, llm.ContextWindowSize())
	history := ctxengine.NewUsageHistory(cfg.Telemetry.HistorySize)

	st, stCloser, err := buildStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	if stCloser != nil {
		components = append(components, component{"store", stCloser})
	}

	manager := conversation.NewManager(conversation.Config{
		MaxLength:        cfg.Conversation.MaxLength,
		SummaryThreshold: cfg.Conversation.SummaryThreshold,
		PreserveRecent:   cfg.Conversation.PreserveRecent,
		PreserveEarly:    cfg.Conversation.PreserveEarly,
		CacheTTL:         cfg.Conversation.CacheTTL.Std(),
	}, conversation.Options{
		Store:      st,
		Summarizer: conversation.NewModelSummarizer(llm, logger),
		Meter:      meter,
		History:    history,
		Logger:     logger,
	})

	workflowMemory := memory.NewWorkflowMemory(cfg.Memory.MaxReferences)
	composer := prompt.NewComposer(estimator)

	var mcpBridge bridge.Client
	if cfg.Bridge.URL != "" {
		dialCtx, cancel := context.WithTimeout(context.Background(), bridgeDialTimeout)
		b, err := bridge.Dial(dialCtx, cfg.Bridge.URL, logger)
		cancel()
		if err != nil {
			// The service stays useful for plain conversation without
			// the workflow-storage bridge.
			logger.Warn("bridge unavailable, continuing without workflow context",
				"url", cfg.Bridge.URL, "error", err)
		} else {
			mcpBridge = b
			components = append(components, component{"bridge", stopperFunc(func(context.Context) error {
				return b.Close()
			})})
		}
	}

	scheduler := cron.NewScheduler(logger)
	if cfg.Jobs.CacheSweep != "off" {
		if err := scheduler.RegisterJob(&cron.CacheSweepJob{
			Cache:        manager.Cache(),
			Logger:       logger,
			ScheduleExpr: cfg.Jobs.CacheSweep,
		}); err != nil {
			return nil, err
		}
	}
	if cfg.Jobs.IdlePrune != "off" {
		if err := scheduler.RegisterJob(&cron.IdlePruneJob{
			Manager:      manager,
			MaxIdle:      cfg.Jobs.IdleAfter.Std(),
			Logger:       logger,
			ScheduleExpr: cfg.Jobs.IdlePrune,
		}); err != nil {
			return nil, err
		}
	}
	components = append(components, component{"scheduler", scheduler})

	var traceMiddleware func(h http.Handler) http.Handler
	if cfg.Tracing.Enabled {
		traceMiddleware = tracing.Middleware()
	}

	gw, err := gateway.New(gateway.Config{Bind: cfg.Server.Listen}, gateway.Options{
		Manager:  manager,
		Composer: composer,
		Provider: llm,
		Memory:   workflowMemory,
		Bridge:   mcpBridge,
		Meter:    meter,
		History:  history,
		Logger:   logger,
		Tracing:  traceMiddleware,
	})
	if err != nil {
		return nil, err
	}
	components = append(components, component{"gateway", gw})

	return components, nil
}

// buildEstimator selects the token estimator implementation.
func buildEstimator(cfg config.EstimatorConfig) (ctxengine.TokenEstimator, error) {
	switch cfg.Kind {
	case "tiktoken":
		return ctxengine.NewTiktokenEstimator("")
	default:
		return ctxengine.NewCharEstimator(cfg.CharsPerToken), nil
	}
}

// BuildProvider constructs the configured LLM backend. "openai" and
// "openrouter" are base-url presets of the OpenAI-compatible provider.
func BuildProvider(cfg config.ProviderConfig, logger *slog.Logger) (provider.Provider, error) {
	switch cfg.Kind {
	case "mock", "":
		return mock.New(cfg.Model, cfg.ContextWindow), nil
	case "openai", "openrouter", "openai-compatible":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = openaicompat.PresetBaseURL(cfg.Kind)
		}
		return openaicompat.New(openaicompat.Config{
			BaseURL:       baseURL,
			APIKey:        cfg.APIKey,
			Model:         cfg.Model,
			ContextWindow: cfg.ContextWindow,
		}, logger)
	default:
		return nil, fmt.Errorf("app: unknown provider kind %q", cfg.Kind)
	}
}

// buildStore opens the persistence backend. The second return value is
// non-nil when the backend holds resources that need closing.
func buildStore(cfg config.StorageConfig, logger *slog.Logger) (store.Store, core.Stopper, error) {
	switch cfg.Backend {
	case "file":
		fs, err := store.NewFileStore(cfg.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	case "sqlite":
		db, err := store.OpenSQLiteStore(cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, stopperFunc(func(context.Context) error { return db.Close() }), nil
	default:
		return nil, nil, nil
	}
}
