package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/v0xg/lookaround/internal/browser"
	"github.com/v0xg/lookaround/internal/metrics"
	"go.uber.org/zap"
)

// Handler is a named add-on invoked by handle actions. Handlers observe the
// page; nothing in a script depends on them succeeding.
type Handler interface {
	Handle(ctx context.Context, s browser.Session) error
}

// HandlerFunc adapts a plain function to Handler
type HandlerFunc func(ctx context.Context, s browser.Session) error

func (f HandlerFunc) Handle(ctx context.Context, s browser.Session) error {
	return f(ctx, s)
}

// HandlerError wraps a failure (or panic) raised by a handler
type HandlerError struct {
	Name string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %q: %v", e.Name, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Registry maps names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

// NewRegistry creates an empty registry. Both arguments may be nil.
func NewRegistry(logger *zap.Logger, rec *metrics.Recorder) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger.Named("handler"),
		metrics:  rec,
	}
}

// Register associates name with h, replacing any previous handler
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return errors.New("handler name must not be empty")
	}
	if h == nil {
		return fmt.Errorf("handler %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		r.logger.Debug("replacing handler", zap.String("name", name))
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the handler registered under name and reports whether it
// completed without error. Unknown names and failures are logged and
// otherwise ignored.
func (r *Registry) Invoke(ctx context.Context, name string, s browser.Session) bool {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("no handler registered", zap.String("name", name))
		return false
	}

	err := call(ctx, name, h, s)
	r.metrics.HandlerCall(name, err)
	if err != nil {
		r.logger.Debug("handler failed", zap.String("name", name), zap.Error(err))
		return false
	}
	return true
}

func call(ctx context.Context, name string, h Handler, s browser.Session) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{Name: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if err := h.Handle(ctx, s); err != nil {
		return &HandlerError{Name: name, Err: err}
	}
	return nil
}
