package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/v0xg/lookaround/internal/browser"
	"github.com/v0xg/lookaround/internal/locator"
)

// Resolver walks locator paths through a session
type Resolver struct {
	session browser.Session
}

func NewResolver(s browser.Session) *Resolver {
	return &Resolver{session: s}
}

// Resolve walks path from start and returns one element. Each step takes
// the first match, or the match at its index when it carries one.
func (r *Resolver) Resolve(ctx context.Context, start browser.Element, path locator.Path) (browser.Element, error) {
	if len(path) == 0 {
		return nil, &locator.ConfigError{Kind: locator.MissingField, Field: "children"}
	}
	el := start
	for i := range path {
		next, err := r.step(ctx, el, path, i)
		if err != nil {
			return nil, err
		}
		el = next
	}
	return el, nil
}

// ResolveAll walks all but the last step like Resolve and returns every
// match of the last step. A last step with an index yields just that match.
func (r *Resolver) ResolveAll(ctx context.Context, start browser.Element, path locator.Path) ([]browser.Element, error) {
	if len(path) == 0 {
		return nil, &locator.ConfigError{Kind: locator.MissingField, Field: "children"}
	}
	el := start
	for i := range path.Init() {
		next, err := r.step(ctx, el, path, i)
		if err != nil {
			return nil, err
		}
		el = next
	}

	last := len(path) - 1
	loc := path[last]
	all, err := r.session.FindAll(ctx, el, loc.Strategy, loc.Value)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	if !loc.Indexed() {
		return all, nil
	}
	k := *loc.Index
	if k >= len(all) {
		return nil, &LocatorError{Kind: IndexOutOfRange, Path: path, Step: last, Index: k, Count: len(all)}
	}
	return all[k : k+1], nil
}

// Replay finds the element a lineage points at, starting from a freshly
// fetched document root
func (r *Resolver) Replay(ctx context.Context, lineage locator.Lineage) (browser.Element, error) {
	root, err := r.session.Root(ctx)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if lineage.Len() == 0 {
		return root, nil
	}
	return r.Resolve(ctx, root, lineage.Path())
}

func (r *Resolver) step(ctx context.Context, parent browser.Element, path locator.Path, i int) (browser.Element, error) {
	loc := path[i]
	if !loc.Indexed() {
		el, err := r.session.FindFirst(ctx, parent, loc.Strategy, loc.Value)
		if errors.Is(err, browser.ErrNoSuchElement) {
			return nil, &LocatorError{Kind: NoMatch, Path: path, Step: i, Err: err}
		}
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", loc, err)
		}
		return el, nil
	}

	all, err := r.session.FindAll(ctx, parent, loc.Strategy, loc.Value)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	k := *loc.Index
	if k >= len(all) {
		return nil, &LocatorError{Kind: IndexOutOfRange, Path: path, Step: i, Index: k, Count: len(all)}
	}
	return all[k], nil
}
