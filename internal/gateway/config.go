package gateway

import "time"

// Config holds HTTP gateway configuration.
type Config struct {
	Bind        string        `yaml:"bind"`
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout must cover a full chat turn, which blocks on the
	// model call.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}
