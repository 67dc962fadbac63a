package scraper

import (
	"fmt"

	"github.com/v0xg/lookaround/internal/browser"
	"github.com/v0xg/lookaround/internal/locator"
)

// LocatorErrorKind categorises failures to find or use an element
type LocatorErrorKind int

const (
	NoMatch LocatorErrorKind = iota
	IndexOutOfRange
	NotInteractable
)

func (k LocatorErrorKind) String() string {
	switch k {
	case NoMatch:
		return "no-match"
	case IndexOutOfRange:
		return "index-out-of-range"
	case NotInteractable:
		return "not-interactable"
	default:
		return "locator-error"
	}
}

// LocatorError is fatal to the action that raised it only
type LocatorError struct {
	Kind LocatorErrorKind
	Path locator.Path
	// Step is the position in Path that failed
	Step  int
	Index int // requested index, for IndexOutOfRange
	Count int // matches found, for IndexOutOfRange
	Err   error
}

func (e *LocatorError) Error() string {
	switch e.Kind {
	case NoMatch:
		return fmt.Sprintf("%s: nothing matches %s (step %d of %s)", e.Kind, e.Path[e.Step], e.Step+1, e.Path)
	case IndexOutOfRange:
		return fmt.Sprintf("%s: %s wants index %d but only %d found (step %d of %s)",
			e.Kind, e.Path[e.Step], e.Index, e.Count, e.Step+1, e.Path)
	case NotInteractable:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
}

func (e *LocatorError) Unwrap() error {
	return e.Err
}

// Is matches any *LocatorError of the same kind
func (e *LocatorError) Is(target error) bool {
	t, ok := target.(*LocatorError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// StaleReferenceError reports an element that went stale and could not be
// found again by replaying its lineage
type StaleReferenceError struct {
	Lineage locator.Lineage
	Err     error
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("%v: replaying %s failed: %v", browser.ErrStale, e.Lineage, e.Err)
}

func (e *StaleReferenceError) Unwrap() []error {
	return []error{browser.ErrStale, e.Err}
}
