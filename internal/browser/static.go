package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/v0xg/lookaround/internal/locator"
	"go.uber.org/zap"
)

const defaultUserAgent = "lookaround/1.0 (+https://github.com/v0xg/lookaround)"

// staticSession fetches documents over HTTP and evaluates locators against
// the parsed tree. Clicking follows links and submits GET forms; nothing
// else on the page reacts because no script runs.
type staticSession struct {
	client *http.Client
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	doc     *goquery.Document
	source  string
	current *url.URL
	history []*url.URL
	// gen increases with every loaded document; elements of an older
	// generation are stale
	gen    int
	closed bool
}

type staticElement struct {
	sel *goquery.Selection
	gen int
}

func newStaticSession(opts Options) *staticSession {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.NavigationTimeout}
	}
	return &staticSession{
		client: client,
		opts:   opts,
		logger: opts.Logger.Named("static"),
	}
}

func (s *staticSession) Navigate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url %q", rawURL)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.load(ctx, u); err != nil {
		return err
	}
	if s.current != nil {
		s.history = append(s.history, s.current)
	}
	s.current = u
	return nil
}

// load fetches u and swaps in the new document. Callers hold s.mu.
func (s *staticSession) load(ctx context.Context, u *url.URL) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	ua := s.opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("fetch %s: received status code %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", u, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", u, err)
	}
	// redirects move the base for relative links
	if resp.Request != nil && resp.Request.URL != nil {
		*u = *resp.Request.URL
	}

	s.doc = doc
	s.source = string(body)
	s.gen++
	s.logger.Debug("page loaded",
		zap.String("url", u.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (s *staticSession) Root(ctx context.Context) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.doc == nil {
		return nil, errors.New("no page loaded")
	}
	root := s.doc.Find("html").First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("document root: %w", ErrNoSuchElement)
	}
	return &staticElement{sel: root, gen: s.gen}, nil
}

func (s *staticSession) FindFirst(ctx context.Context, parent Element, by locator.Strategy, value string) (Element, error) {
	all, err := s.FindAll(ctx, parent, by, value)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoSuchElement
	}
	return all[0], nil
}

func (s *staticSession) FindAll(ctx context.Context, parent Element, by locator.Strategy, value string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.element(parent)
	if err != nil {
		return nil, err
	}
	css := Selector(by, value)
	m, err := cascadia.Compile(css)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", css, err)
	}
	found := el.sel.FindMatcher(m)
	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &staticElement{sel: sel, gen: s.gen})
	})
	return out, nil
}

func (s *staticSession) Click(ctx context.Context, e Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.element(e)
	if err != nil {
		return err
	}
	if _, disabled := el.sel.Attr("disabled"); disabled {
		return errors.New("element is disabled")
	}

	target, err := s.clickTarget(el.sel)
	if err != nil {
		return err
	}
	if target == nil {
		// nothing to follow without scripts
		return nil
	}
	if err := s.load(ctx, target); err != nil {
		return err
	}
	s.history = append(s.history, s.current)
	s.current = target
	return nil
}

// clickTarget resolves where a click on sel leads: the href of the nearest
// enclosing link, or the GET submission of the enclosing form.
func (s *staticSession) clickTarget(sel *goquery.Selection) (*url.URL, error) {
	link := sel.Closest("a[href]")
	if link.Length() > 0 {
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return nil, nil
		}
		return s.current.Parse(href)
	}

	if !isSubmit(sel) {
		return nil, nil
	}
	form := sel.Closest("form")
	if form.Length() == 0 {
		return nil, nil
	}
	if method, ok := form.Attr("method"); ok && !strings.EqualFold(strings.TrimSpace(method), http.MethodGet) {
		return nil, fmt.Errorf("form method %q needs scripting support, use a browser engine", method)
	}
	action, _ := form.Attr("action")
	target, err := s.current.Parse(strings.TrimSpace(action))
	if err != nil {
		return nil, err
	}
	target.RawQuery = formValues(form, sel).Encode()
	return target, nil
}

func isSubmit(sel *goquery.Selection) bool {
	typ := strings.ToLower(sel.AttrOr("type", ""))
	switch goquery.NodeName(sel) {
	case "button":
		return typ == "" || typ == "submit"
	case "input":
		return typ == "submit" || typ == "image"
	}
	return false
}

func formValues(form, submitter *goquery.Selection) url.Values {
	vals := url.Values{}
	form.Find("input[name], textarea[name], select[name]").Each(func(_ int, f *goquery.Selection) {
		if _, disabled := f.Attr("disabled"); disabled {
			return
		}
		name := f.AttrOr("name", "")
		switch goquery.NodeName(f) {
		case "textarea":
			vals.Add(name, f.Text())
		case "select":
			opt := f.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = f.Find("option").First()
			}
			if opt.Length() > 0 {
				vals.Add(name, opt.AttrOr("value", strings.TrimSpace(opt.Text())))
			}
		default:
			switch strings.ToLower(f.AttrOr("type", "text")) {
			case "submit", "image", "button", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := f.Attr("checked"); !checked {
					return
				}
				vals.Add(name, f.AttrOr("value", "on"))
			default:
				vals.Add(name, f.AttrOr("value", ""))
			}
		}
	})
	if name, ok := submitter.Attr("name"); ok && name != "" {
		vals.Add(name, submitter.AttrOr("value", ""))
	}
	return vals
}

func (s *staticSession) IsDisplayed(ctx context.Context, e Element) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.element(e)
	if err != nil {
		return false, err
	}
	if strings.EqualFold(el.sel.AttrOr("type", ""), "hidden") {
		return false, nil
	}
	for n := el.sel; n.Length() > 0; n = n.Parent() {
		if _, hidden := n.Attr("hidden"); hidden {
			return false, nil
		}
		style := strings.ReplaceAll(strings.ToLower(n.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return true, nil
}

func (s *staticSession) IsEnabled(ctx context.Context, e Element) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.element(e)
	if err != nil {
		return false, err
	}
	_, disabled := el.sel.Attr("disabled")
	return !disabled, nil
}

func (s *staticSession) Back(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.history) == 0 {
		// like a browser on its first page
		s.logger.Debug("no previous page in history")
		return nil
	}
	prev := s.history[len(s.history)-1]
	if err := s.load(ctx, prev); err != nil {
		return err
	}
	s.history = s.history[:len(s.history)-1]
	s.current = prev
	return nil
}

func (s *staticSession) PageSource(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	return s.source, nil
}

func (s *staticSession) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	if s.current == nil {
		return "", errors.New("no page loaded")
	}
	return s.current.String(), nil
}

func (s *staticSession) Quit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.doc = nil
	s.client.CloseIdleConnections()
	return nil
}

// element unwraps e and checks it belongs to the current document.
// Callers hold s.mu.
func (s *staticSession) element(e Element) (*staticElement, error) {
	if s.closed {
		return nil, ErrClosed
	}
	el, ok := e.(*staticElement)
	if !ok || el == nil {
		return nil, fmt.Errorf("element %T does not belong to this session", e)
	}
	if el.gen != s.gen {
		return nil, ErrStale
	}
	return el, nil
}
