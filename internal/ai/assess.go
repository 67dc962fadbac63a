package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/v0xg/lookaround/internal/browser"
	"go.uber.org/zap"
)

// Result is one assessed page
type Result struct {
	URL string
	Assessment
}

// AssessHandler is a page handler that sends a digest of the current page
// to a provider and logs the rating
type AssessHandler struct {
	Provider Provider
	Criteria string
	MaxChars int
	Logger   *zap.Logger

	mu      sync.Mutex
	results []Result
}

func (h *AssessHandler) Handle(ctx context.Context, s browser.Session) error {
	if h.Provider == nil {
		return fmt.Errorf("no provider configured")
	}
	src, err := s.PageSource(ctx)
	if err != nil {
		return fmt.Errorf("read page source: %w", err)
	}
	page, err := Digest(src, h.MaxChars)
	if err != nil {
		return err
	}
	if u, ok := s.(browser.URLReporter); ok {
		if page.URL, err = u.URL(ctx); err != nil {
			return fmt.Errorf("read url: %w", err)
		}
	}

	a, err := h.Provider.Assess(ctx, page, h.Criteria)
	if err != nil {
		return err
	}

	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("page assessed",
		zap.String("url", page.URL),
		zap.String("title", page.Title),
		zap.Int("rating", a.Rating),
		zap.String("reason", a.Reason))

	h.mu.Lock()
	h.results = append(h.results, Result{URL: page.URL, Assessment: *a})
	h.mu.Unlock()
	return nil
}

// Results returns the pages assessed so far, in order
func (h *AssessHandler) Results() []Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Result, len(h.results))
	copy(out, h.results)
	return out
}
