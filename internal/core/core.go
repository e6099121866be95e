package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App manages the lifecycle of a set of components.
type App struct {
	components []componentInstance
	logger     *slog.Logger
}

type componentInstance struct {
	name      string
	component any
	started   bool
}

// NewApp creates a new App.
func NewApp(logger *slog.Logger) *App {
	return &App{logger: logger.With("component", "core")}
}

// Append adds a component to the lifecycle. Components that implement
// neither Starter nor Stopper are accepted and ignored at runtime.
func (a *App) Append(name string, component any) {
	a.components = append(a.components, componentInstance{
		name:      name,
		component: component,
	})
}

// Start starts all components that implement Starter, in order. If any
// Start() fails, already-started components are stopped in reverse order.
func (a *App) Start() error {
	for i := range a.components {
		ci := &a.components[i]
		s, ok := ci.component.(Starter)
		if !ok {
			continue
		}
		a.logger.Info("starting component", "name", ci.name)
		if err := s.Start(); err != nil {
			a.logger.Error("component start failed", "name", ci.name, "error", err)
			a.stopComponents(i - 1)
			return fmt.Errorf("starting %s: %w", ci.name, err)
		}
		ci.started = true
	}
	a.logger.Info("all components started")
	return nil
}

// Stop stops all started components in reverse order with a timeout.
func (a *App) Stop() {
	a.stopComponents(len(a.components) - 1)
}

func (a *App) stopComponents(fromIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := fromIndex; i >= 0; i-- {
		ci := &a.components[i]
		if !ci.started {
			continue
		}
		if s, ok := ci.component.(Stopper); ok {
			a.logger.Info("stopping component", "name", ci.name)
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("component stop error", "name", ci.name, "error", err)
			}
		}
		ci.started = false
	}
}

// Run starts all components and blocks until a shutdown signal is
// received.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	a.logger.Info("shutdown signal received", "signal", sig.String())

	a.Stop()
	a.logger.Info("shutdown complete")
	return nil
}
