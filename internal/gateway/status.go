package gateway

import (
	"net/http"
	"time"

	"github.com/flowsmith/flowsmith/internal/conversation"
	"github.com/flowsmith/flowsmith/internal/memory"
	"github.com/flowsmith/flowsmith/internal/prompt"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds float64                   `json:"uptime_seconds"`
	Model         string                    `json:"model"`
	WindowLimit   int                       `json:"window_limit"`
	Conversations conversation.ManagerStats `json:"conversations"`
	Memory        memory.Stats              `json:"memory"`
	PromptModes   map[prompt.Mode]int       `json:"prompt_modes"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{
			UptimeSeconds: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Model:         g.provider.ModelName(),
			WindowLimit:   g.meter.WindowLimit(),
			Conversations: g.manager.Stats(),
			Memory:        g.memory.Stats(),
			PromptModes:   g.composer.ModeStats(),
		})
	}
}
