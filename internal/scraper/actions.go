package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/v0xg/lookaround/internal/browser"
	"github.com/v0xg/lookaround/internal/locator"
	"github.com/v0xg/lookaround/internal/script"
	"go.uber.org/zap"
)

// dispatch executes one node. Everything that goes wrong inside it,
// nested actions included, ends here: the error is logged and the caller
// continues with the next sibling. Only cancellation of ctx and driver
// failures are passed up.
func (r *run) dispatch(ctx context.Context, node script.Node, parent browser.Element, lineage locator.Lineage) (err error) {
	start := r.clock.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		r.metrics.ObserveAction(node.Kind().String(), r.clock.Now().Sub(start), err)
		err = r.contain(ctx, node, lineage, err)
	}()

	switch n := node.(type) {
	case *script.List:
		return r.list(ctx, n, parent, lineage)
	case *script.Click:
		return r.click(ctx, n, parent, lineage)
	case *script.Sleep:
		return r.sleep(ctx, n)
	case *script.Back:
		if err := r.session.Back(ctx); err != nil {
			return fmt.Errorf("navigate back: %w", err)
		}
		return nil
	case *script.Handle:
		return r.handle(ctx, n)
	case *script.CookieDialog:
		return r.cookieDialog(ctx, n, parent)
	case *script.Unknown:
		r.logger.Debug("skipping action of unknown type", zap.String("type", n.Tag))
		return nil
	default:
		return fmt.Errorf("unsupported action %T", node)
	}
}

func (r *run) contain(ctx context.Context, node script.Node, lineage locator.Lineage, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var drvErr *browser.DriverError
	if errors.As(err, &drvErr) {
		return err
	}

	fields := []zap.Field{
		zap.Stringer("kind", node.Kind()),
		zap.Stringer("lineage", lineage),
		zap.Error(err),
	}
	if path := children(node); path != nil {
		fields = append(fields, zap.Stringer("path", path))
	}
	r.logger.Warn("action failed", fields...)
	return nil
}

// children returns the locator path of nodes that act on an element
func children(node script.Node) locator.Path {
	switch n := node.(type) {
	case *script.List:
		return n.Children
	case *script.Click:
		return n.Children
	case *script.CookieDialog:
		return n.Children
	}
	return nil
}

// list runs the nested actions on every element matched by the node's path,
// one element at a time in document order. Before each nested action that
// looks up children of the element, the element is probed; a stale element
// is found again through its lineage. Actions on the page as a whole (back,
// sleep, handle) do not touch the element and are not probed.
func (r *run) list(ctx context.Context, n *script.List, parent browser.Element, lineage locator.Lineage) error {
	if n.Invalid != nil {
		return n.Invalid
	}
	parent, err := r.parentOrRoot(ctx, parent)
	if err != nil {
		return err
	}
	elems, err := r.resolver.ResolveAll(ctx, parent, n.Children)
	if err != nil {
		return err
	}
	r.logger.Debug("list matched", zap.Stringer("path", n.Children), zap.Int("count", len(elems)))
	if len(n.Actions) == 0 {
		return nil
	}

	for i, el := range elems {
		child := lineage.Extend(n.Children, i)
		for _, action := range n.Actions {
			if err := ctx.Err(); err != nil {
				return err
			}
			if children(action) != nil {
				live, err := r.live(ctx, el, child)
				if err != nil {
					r.logger.Warn("skipping action on lost element",
						zap.Stringer("kind", action.Kind()),
						zap.Error(err))
					continue
				}
				el = live
			}
			if err := r.dispatch(ctx, action, el, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// live probes el and, if it went stale, replays its lineage from the
// document root
func (r *run) live(ctx context.Context, el browser.Element, lineage locator.Lineage) (browser.Element, error) {
	_, err := r.session.IsEnabled(ctx, el)
	if !errors.Is(err, browser.ErrStale) {
		// other probe failures show up when the element is used
		return el, nil
	}

	fresh, err := r.resolver.Replay(ctx, lineage)
	r.metrics.StaleRecovery(err)
	if err != nil {
		return nil, &StaleReferenceError{Lineage: lineage, Err: err}
	}
	r.logger.Debug("recovered stale element", zap.Stringer("lineage", lineage))
	return fresh, nil
}

// click clicks the element at the node's path and runs the nested actions
// from the document root. WhileClickable repeats this, resolving the path
// again every round, until resolving or clicking fails.
func (r *run) click(ctx context.Context, n *script.Click, parent browser.Element, lineage locator.Lineage) error {
	if n.Invalid != nil {
		return n.Invalid
	}
	parent, err := r.parentOrRoot(ctx, parent)
	if err != nil {
		return err
	}

	if n.Repeat == script.Once {
		el, err := r.resolver.Resolve(ctx, parent, n.Children)
		if err != nil {
			return err
		}
		if err := r.session.Click(ctx, el); err != nil {
			return fmt.Errorf("click %s: %w", n.Children, err)
		}
		r.metrics.ClickRound()
		return r.fromRoot(ctx, n.Actions)
	}

	limit := n.MaxRounds
	if limit == 0 {
		limit = r.maxClickRounds
	}
	for round := 0; ; round++ {
		if limit > 0 && round >= limit {
			r.logger.Warn("click round limit reached",
				zap.Stringer("path", n.Children),
				zap.Int("rounds", round))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// a click may have re-rendered or replaced the parent
		p, err := r.live(ctx, parent, lineage)
		if err == nil {
			parent = p
			var el browser.Element
			el, err = r.resolver.Resolve(ctx, parent, n.Children)
			if err == nil {
				err = r.session.Click(ctx, el)
			}
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.logger.Debug("no longer clickable",
				zap.Stringer("path", n.Children),
				zap.Int("rounds", round),
				zap.Error(err))
			return nil
		}

		r.metrics.ClickRound()
		if err := r.fromRoot(ctx, n.Actions); err != nil {
			return err
		}
	}
}

func (r *run) sleep(ctx context.Context, n *script.Sleep) error {
	if n.Invalid != nil {
		return n.Invalid
	}
	d := SleepDuration(n.Min, n.Max, r.rand())
	r.logger.Debug("sleeping", zap.Duration("for", d))
	return r.clock.Sleep(ctx, d)
}

func (r *run) handle(ctx context.Context, n *script.Handle) error {
	if n.Invalid != nil {
		return n.Invalid
	}
	r.registry.Invoke(ctx, n.Name, r.session)
	return nil
}

// cookieDialog waits for the element at the node's path to be displayed and
// enabled, polling until WaitFor runs out, then clicks it once
func (r *run) cookieDialog(ctx context.Context, n *script.CookieDialog, parent browser.Element) error {
	if n.Invalid != nil {
		return n.Invalid
	}
	parent, err := r.parentOrRoot(ctx, parent)
	if err != nil {
		return err
	}
	el, err := r.resolver.Resolve(ctx, parent, n.Children)
	if err != nil {
		return err
	}

	wait := n.WaitFor
	if wait <= 0 {
		wait = script.DefaultCookieWait
	}
	deadline := r.clock.Now().Add(seconds(wait))
	for {
		ok, err := r.interactable(ctx, el)
		if err != nil {
			return &LocatorError{Kind: NotInteractable, Path: n.Children, Err: err}
		}
		if ok {
			break
		}
		remaining := deadline.Sub(r.clock.Now())
		if remaining <= 0 {
			return &LocatorError{Kind: NotInteractable, Path: n.Children,
				Err: fmt.Errorf("not displayed and enabled within %v", seconds(wait))}
		}
		if err := r.clock.Sleep(ctx, min(r.pollInterval, remaining)); err != nil {
			return err
		}
	}

	if err := r.session.Click(ctx, el); err != nil {
		return fmt.Errorf("click %s: %w", n.Children, err)
	}
	return nil
}

func (r *run) interactable(ctx context.Context, el browser.Element) (bool, error) {
	displayed, err := r.session.IsDisplayed(ctx, el)
	if err != nil || !displayed {
		return false, err
	}
	return r.session.IsEnabled(ctx, el)
}
