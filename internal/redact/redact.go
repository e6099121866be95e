// Package redact keeps provider credentials out of log output.
package redact

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// Placeholder is the replacement string for redacted secrets.
const Placeholder = "***REDACTED***"

// defaultPatterns match common API key formats. The configured key is
// additionally registered as a literal, so unusual formats are covered
// too.
var defaultPatterns = []*regexp.Regexp{
	// OpenRouter: sk-or-...
	regexp.MustCompile(`sk-or-[a-zA-Z0-9\-]{20,}`),
	// OpenAI: sk-...
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	// Bearer header values
	regexp.MustCompile(`Bearer [a-zA-Z0-9._\-]{16,}`),
}

// Redactor replaces secret values in strings with Placeholder. Safe for
// concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor loaded with the default key patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns}
}

// AddLiteral registers a literal secret value to redact on sight. Empty
// strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, Placeholder)
		}
	}
	return s
}

// Handler wraps a slog.Handler and redacts secrets from the message and
// every string-valued attribute before delegating.
type Handler struct {
	inner    slog.Handler
	redactor *Redactor
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler wraps inner so that redactor is applied to every record.
func NewHandler(inner slog.Handler, redactor *Redactor) *Handler {
	return &Handler{inner: inner, redactor: redactor}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, h.redactor.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redactAttr(a)
	}
	return &Handler{inner: h.inner.WithAttrs(clean), redactor: h.redactor}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), redactor: h.redactor}
}

// redactAttr resolves the attribute so LogValuer, error, and Stringer
// values take their final form, then redacts any string content.
func (h *Handler) redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.redactor.Redact(a.Value.String()))
	case slog.KindGroup:
		attrs := a.Value.Group()
		clean := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			clean[i] = h.redactAttr(ga)
		}
		a.Value = slog.GroupValue(clean...)
	case slog.KindAny:
		s := a.Value.String()
		if cleaned := h.redactor.Redact(s); cleaned != s {
			a.Value = slog.StringValue(cleaned)
		}
	}
	return a
}
