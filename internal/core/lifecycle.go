// Package core manages the application lifecycle. Components are wired
// explicitly at startup and started in registration order; shutdown
// stops them in reverse.
package core

import "context"

// Starter is implemented by components that need to start background
// work (goroutines, listeners, connections).
type Starter interface {
	Start() error
}

// Stopper is implemented by components that need to clean up resources.
// Called during shutdown in reverse order of Start().
type Stopper interface {
	Stop(ctx context.Context) error
}
