package scraper

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/v0xg/lookaround/internal/browser"
	"github.com/v0xg/lookaround/internal/locator"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeNode is an element of a mutable in-memory document
type fakeNode struct {
	tag     string
	id      string
	classes []string
	label   string

	parent *fakeNode
	kids   []*fakeNode

	disabled  bool
	displayed func() bool
	onClick   func()
}

// node builds an element from "tag#id.class1.class2@label" and attaches kids.
// The label names the element in recorded clicks and defaults to the id or
// the tag.
func node(desc string, kids ...*fakeNode) *fakeNode {
	n := &fakeNode{}
	if at := strings.Index(desc, "@"); at >= 0 {
		n.label = desc[at+1:]
		desc = desc[:at]
	}
	parts := strings.Split(desc, ".")
	n.tag, n.classes = parts[0], parts[1:]
	if tag, id, ok := strings.Cut(n.tag, "#"); ok {
		n.tag, n.id = tag, id
	}
	if n.label == "" {
		n.label = n.id
	}
	if n.label == "" {
		n.label = n.tag
	}
	for _, k := range kids {
		k.parent = n
	}
	n.kids = kids
	return n
}

// replace swaps old for n in the document; old becomes stale
func replace(old, n *fakeNode) {
	p := old.parent
	for i, k := range p.kids {
		if k == old {
			p.kids[i] = n
		}
	}
	n.parent = p
	old.parent = nil
}

// remove detaches n from the document
func remove(n *fakeNode) {
	p := n.parent
	p.kids = slices.DeleteFunc(p.kids, func(k *fakeNode) bool { return k == n })
	n.parent = nil
}

func (n *fakeNode) matches(by locator.Strategy, value string) bool {
	switch by {
	case locator.Id:
		return n.id == value
	case locator.Tag:
		return n.tag == value
	case locator.Class:
		return slices.Contains(n.classes, value)
	default:
		return false
	}
}

func (n *fakeNode) descendants(fn func(*fakeNode)) {
	for _, k := range n.kids {
		fn(k)
		k.descendants(fn)
	}
}

// fakeSession drives a fakeNode document and records what it was asked to do
type fakeSession struct {
	root *fakeNode

	navigated []string
	clicks    []string
	backs     int
	quits     int

	navErr  error
	panicOn string // FindAll panics for this value
}

func (s *fakeSession) check(e browser.Element) (*fakeNode, error) {
	if s.quits > 0 {
		return nil, browser.ErrClosed
	}
	n, ok := e.(*fakeNode)
	if !ok || n == nil {
		return nil, fmt.Errorf("foreign element %T", e)
	}
	for p := n; p != nil; p = p.parent {
		if p == s.root {
			return n, nil
		}
	}
	return nil, browser.ErrStale
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return s.navErr
}

func (s *fakeSession) Root(context.Context) (browser.Element, error) {
	if s.quits > 0 {
		return nil, browser.ErrClosed
	}
	return s.root, nil
}

func (s *fakeSession) FindFirst(ctx context.Context, parent browser.Element, by locator.Strategy, value string) (browser.Element, error) {
	all, err := s.FindAll(ctx, parent, by, value)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, browser.ErrNoSuchElement
	}
	return all[0], nil
}

func (s *fakeSession) FindAll(_ context.Context, parent browser.Element, by locator.Strategy, value string) ([]browser.Element, error) {
	if s.panicOn != "" && value == s.panicOn {
		panic("lookup of " + value)
	}
	n, err := s.check(parent)
	if err != nil {
		return nil, err
	}
	var out []browser.Element
	n.descendants(func(d *fakeNode) {
		if d.matches(by, value) {
			out = append(out, d)
		}
	})
	return out, nil
}

func (s *fakeSession) Click(_ context.Context, e browser.Element) error {
	n, err := s.check(e)
	if err != nil {
		return err
	}
	if n.disabled {
		return errors.New("element not interactable")
	}
	s.clicks = append(s.clicks, n.label)
	if n.onClick != nil {
		n.onClick()
	}
	return nil
}

func (s *fakeSession) IsDisplayed(_ context.Context, e browser.Element) (bool, error) {
	n, err := s.check(e)
	if err != nil {
		return false, err
	}
	if n.displayed == nil {
		return true, nil
	}
	return n.displayed(), nil
}

func (s *fakeSession) IsEnabled(_ context.Context, e browser.Element) (bool, error) {
	n, err := s.check(e)
	if err != nil {
		return false, err
	}
	return !n.disabled, nil
}

func (s *fakeSession) Back(context.Context) error {
	s.backs++
	return nil
}

func (s *fakeSession) PageSource(context.Context) (string, error) {
	return "<html></html>", nil
}

func (s *fakeSession) Quit() error {
	s.quits++
	return nil
}

// fakeClock only moves when slept on
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) total() time.Duration {
	var sum time.Duration
	for _, d := range c.slept {
		sum += d
	}
	return sum
}

// newTestScraper wires a scraper to fs with a fake clock, a fixed random
// value of 0.5 and an observed logger
func newTestScraper(t *testing.T, fs *fakeSession, opts ...Option) (*Scraper, *fakeClock, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	clock := newFakeClock()
	base := []Option{
		WithLogger(zap.New(core)),
		WithClock(clock),
		WithRand(func() float64 { return 0.5 }),
		WithOpener(func(context.Context, browser.Engine, browser.Options) (browser.Session, error) {
			return fs, nil
		}),
	}
	return New(append(base, opts...)...), clock, logs
}

// resultsPage has three result items with one link each
func resultsPage() *fakeNode {
	return node("html",
		node("body",
			node("ul#results",
				node("li.result-item", node("a@a0")),
				node("li.result-item", node("a@a1")),
				node("li.result-item", node("a@a2")),
			),
		),
	)
}
