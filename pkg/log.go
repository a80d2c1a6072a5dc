package pkg

import (
	"context"
	"log/slog"
	"sync"
)

const TraceLevel = slog.Level(-8)

var _ slog.Handler = (*MultiLogHandler)(nil)

func ParseLevel(level string) slog.Level {
	var lv slog.LevelVar
	if level == "trace" {
		lv.Set(TraceLevel)
	} else {
		lv.UnmarshalText([]byte(level))
	}
	return lv.Level()
}

// MultiLogHandler fans every record out to all of its handlers. Handlers added
// after WithAttrs was called are propagated to the derived children. It is
// safe for concurrent use.
type MultiLogHandler struct {
	mu           sync.RWMutex
	handlers     []slog.Handler
	attrChildren map[*MultiLogHandler][]slog.Attr
	level        *slog.LevelVar
}

func NewMultiLogHandler(level slog.Level, handlers ...slog.Handler) *MultiLogHandler {
	m := &MultiLogHandler{level: new(slog.LevelVar)}
	m.level.Set(level)
	for _, h := range handlers {
		m.Add(h)
	}
	return m
}

func (m *MultiLogHandler) Add(h slog.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
	for child, attrs := range m.attrChildren {
		child.Add(h.WithAttrs(attrs))
	}
}

// SetLevel changes the level of m and of every handler derived from it.
func (m *MultiLogHandler) SetLevel(level slog.Level) {
	m.level.Set(level)
}

// Enabled implements slog.Handler.
func (m *MultiLogHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= m.level.Level()
}

// Handle implements slog.Handler.
func (m *MultiLogHandler) Handle(ctx context.Context, rec slog.Record) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.handlers {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (m *MultiLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &MultiLogHandler{
		handlers: make([]slog.Handler, len(m.handlers)),
		level:    m.level,
	}
	if m.attrChildren == nil {
		m.attrChildren = make(map[*MultiLogHandler][]slog.Attr)
	}
	m.attrChildren[result] = attrs
	for i, h := range m.handlers {
		result.handlers[i] = h.WithAttrs(attrs)
	}
	return result
}

// WithGroup implements slog.Handler.
func (m *MultiLogHandler) WithGroup(name string) slog.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := &MultiLogHandler{
		handlers: make([]slog.Handler, len(m.handlers)),
		level:    m.level,
	}
	for i, h := range m.handlers {
		result.handlers[i] = h.WithGroup(name)
	}
	return result
}
