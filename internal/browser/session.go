package browser

import (
	"context"
	"errors"

	"github.com/v0xg/lookaround/internal/locator"
)

var (
	// ErrStale is returned when an element handle no longer points into the
	// live document (the node was removed, replaced or the page navigated).
	ErrStale = errors.New("stale element reference")

	// ErrNoSuchElement is returned by FindFirst when nothing matches.
	ErrNoSuchElement = errors.New("no such element")

	// ErrClosed is returned by every operation after Quit.
	ErrClosed = errors.New("session closed")
)

// Element is an opaque handle into the live DOM. It is only meaningful to
// the Session that produced it and may turn stale at any time.
type Element interface{}

// Session is one browser instance driven through a remote control protocol.
// It is owned by a single run and must not be shared.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Root returns the document root (<html>) element of the current page.
	Root(ctx context.Context) (Element, error)
	FindFirst(ctx context.Context, parent Element, by locator.Strategy, value string) (Element, error)
	FindAll(ctx context.Context, parent Element, by locator.Strategy, value string) ([]Element, error)
	Click(ctx context.Context, el Element) error
	IsDisplayed(ctx context.Context, el Element) (bool, error)
	IsEnabled(ctx context.Context, el Element) (bool, error)
	Back(ctx context.Context) error
	PageSource(ctx context.Context) (string, error)
	// Quit terminates the browser. It is safe to call more than once.
	Quit() error
}

// Screenshotter is implemented by sessions that can render the viewport
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// URLReporter is implemented by sessions that can report the current URL
type URLReporter interface {
	URL(ctx context.Context) (string, error)
}
