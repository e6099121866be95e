// Package reload applies configuration changes to a running service by
// polling the config file for modifications. Only the logging level is
// hot-reloadable; changes to other sections are logged as requiring a
// restart.
package reload

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/flowsmith/flowsmith/internal/config"
)

const defaultPollInterval = 5 * time.Second

// Config configures the reloader.
type Config struct {
	// ConfigPath is the configuration file to watch.
	ConfigPath string

	// PollInterval is how often the file is checked for changes.
	// Defaults to 5 seconds.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}

// Reloader watches the config file and applies the logging level to
// level when the file changes and still validates.
type Reloader struct {
	cfg     Config
	level   *slog.LevelVar
	current config.Config
	logger  *slog.Logger

	stop    chan struct{}
	stopped chan struct{}
}

// New creates a Reloader. current is the config the service started
// with; it is used to detect which sections changed.
func New(cfg Config, current *config.Config, level *slog.LevelVar, logger *slog.Logger) *Reloader {
	return &Reloader{
		cfg:     cfg.withDefaults(),
		level:   level,
		current: *current,
		logger:  logger.With("component", "reload"),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling in the background.
func (r *Reloader) Start() error {
	go r.poll()
	return nil
}

// Stop terminates the polling loop.
func (r *Reloader) Stop(ctx context.Context) error {
	close(r.stop)
	select {
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reloader) poll() {
	defer close(r.stopped)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	lastMod := r.modTime()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			current := r.modTime()
			if current.IsZero() || !current.After(lastMod) {
				continue
			}
			lastMod = current
			r.apply()
		}
	}
}

// apply re-reads the config file and applies what can change at
// runtime. An invalid file leaves the running configuration untouched.
func (r *Reloader) apply() {
	cfg, err := config.Load(r.cfg.ConfigPath)
	if err != nil {
		r.logger.Warn("config changed but failed to load, keeping current settings", "error", err)
		return
	}
	if err := config.Validate(cfg); err != nil {
		r.logger.Warn("config changed but failed validation, keeping current settings", "error", err)
		return
	}

	if cfg.Logging.Level != r.current.Logging.Level {
		r.level.Set(parseLevel(cfg.Logging.Level))
		r.logger.Info("logging level changed",
			"from", r.current.Logging.Level,
			"to", cfg.Logging.Level,
		)
	}

	if restartRequired(r.current, *cfg) {
		r.logger.Warn("config changes outside logging.level require a restart to take effect")
	}

	r.current = *cfg
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// restartRequired reports whether prev and next differ anywhere other
// than the hot-reloadable logging level.
func restartRequired(prev, next config.Config) bool {
	prev.Logging.Level = ""
	next.Logging.Level = ""
	return prev != next
}

func (r *Reloader) modTime() time.Time {
	info, err := os.Stat(r.cfg.ConfigPath)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
