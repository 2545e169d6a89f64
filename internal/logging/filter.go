package logging

import (
	"context"
	"log/slog"
	"sync"
)

// ComponentFilterHandler wraps another handler and filters records by the
// "component" attribute. Each component can be given its own minimum level at
// runtime; records without a component attribute use the default level.
//
// Clones produced by WithAttrs and WithGroup share the same level table, so a
// SetLevel call is visible to every component-scoped logger derived from the
// same handler.
type ComponentFilterHandler struct {
	inner slog.Handler

	// preAttrs are attributes attached via WithAttrs; used to resolve the
	// component of loggers scoped with logger.With("component", ...).
	preAttrs []slog.Attr

	levels *componentLevels
}

// componentLevels is the shared mutable level table.
type componentLevels struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	overrides    map[string]slog.Level
}

// NewComponentFilterHandler creates a handler that filters by component.
// defaultLevel applies to components without an override.
func NewComponentFilterHandler(inner slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	return &ComponentFilterHandler{
		inner: inner,
		levels: &componentLevels{
			defaultLevel: defaultLevel,
			overrides:    make(map[string]slog.Level),
		},
	}
}

// SetLevel sets the minimum level for the given component.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	h.levels.mu.Lock()
	defer h.levels.mu.Unlock()
	h.levels.overrides[component] = level
}

// ClearLevel removes the override for the given component, reverting it to
// the default level.
func (h *ComponentFilterHandler) ClearLevel(component string) {
	h.levels.mu.Lock()
	defer h.levels.mu.Unlock()
	delete(h.levels.overrides, component)
}

// Level returns the effective minimum level for the given component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	h.levels.mu.RLock()
	defer h.levels.mu.RUnlock()
	if level, ok := h.levels.overrides[component]; ok {
		return level
	}
	return h.levels.defaultLevel
}

// DefaultLevel returns the configured default level.
func (h *ComponentFilterHandler) DefaultLevel() slog.Level {
	h.levels.mu.RLock()
	defer h.levels.mu.RUnlock()
	return h.levels.defaultLevel
}

// Enabled always reports true; the component is only known once the record's
// attributes are visible, so filtering happens in Handle.
func (h *ComponentFilterHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle forwards the record to the inner handler if its level passes the
// effective level for the record's component.
func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.Level(h.component(r)) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

// component resolves the record's component: record attributes win over
// attributes attached via WithAttrs.
func (h *ComponentFilterHandler) component(r slog.Record) string {
	component := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = a.Value.String()
			return false
		}
		return true
	})
	if component != "" {
		return component
	}
	for _, a := range h.preAttrs {
		if a.Key == "component" {
			return a.Value.String()
		}
	}
	return ""
}

func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.preAttrs)+len(attrs))
	merged = append(merged, h.preAttrs...)
	merged = append(merged, attrs...)
	return &ComponentFilterHandler{
		inner:    h.inner.WithAttrs(attrs),
		preAttrs: merged,
		levels:   h.levels,
	}
}

func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	return &ComponentFilterHandler{
		inner:    h.inner.WithGroup(name),
		preAttrs: h.preAttrs,
		levels:   h.levels,
	}
}
