package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/v0xg/lookaround/internal/locator"
	"go.uber.org/zap"
)

// binaries tried per engine, in order, when no executable is configured
var engineBinaries = map[Engine][]string{
	Chromium: {"chromium", "chromium-browser"},
	Edge:     {"microsoft-edge", "microsoft-edge-stable", "msedge"},
}

// rodSession drives a Chromium-family browser over the DevTools protocol
type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     Options
	logger   *zap.Logger

	mu       sync.Mutex
	closed   bool
	launched bool
}

func openRod(ctx context.Context, engine Engine, opts Options) (s Session, err error) {
	bin, err := lookBinary(engine, opts.Bin)
	if err != nil {
		return nil, &DriverError{Kind: LaunchFailed, Engine: string(engine), Err: err}
	}

	l := launcher.New().Context(ctx).Bin(bin).Headless(opts.Headless)
	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}
	for _, raw := range opts.Args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	rs := &rodSession{
		launcher: l,
		opts:     opts,
		logger:   opts.Logger.Named("rod").With(zap.String("engine", string(engine))),
	}
	// tear down whatever was started if any later step fails
	defer func() {
		if err != nil {
			_ = rs.Quit()
		}
	}()

	u, err := l.Launch()
	if err != nil {
		return nil, &DriverError{Kind: LaunchFailed, Engine: string(engine), Err: err}
	}
	rs.launched = true

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, &DriverError{Kind: LaunchFailed, Engine: string(engine), Err: err}
	}
	rs.browser = b

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, &DriverError{Kind: LaunchFailed, Engine: string(engine), Err: err}
	}
	rs.page = page

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, &DriverError{Kind: LaunchFailed, Engine: string(engine), Err: err}
	}

	rs.logger.Debug("browser started", zap.String("bin", bin), zap.Bool("headless", opts.Headless))
	return rs, nil
}

func lookBinary(engine Engine, configured string) (string, error) {
	if configured != "" {
		return exec.LookPath(configured)
	}
	for _, name := range engineBinaries[engine] {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	if engine == Chrome || engine == Chromium {
		if p, ok := launcher.LookPath(); ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("no %s executable found, set browser.bin", engine)
}

func (s *rodSession) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()

	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

func (s *rodSession) Root(ctx context.Context) (Element, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	els, err := s.page.Context(ctx).Elements("html")
	if err != nil {
		return nil, classify(err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("document root: %w", ErrNoSuchElement)
	}
	return els[0], nil
}

func (s *rodSession) FindFirst(ctx context.Context, parent Element, by locator.Strategy, value string) (Element, error) {
	all, err := s.FindAll(ctx, parent, by, value)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoSuchElement
	}
	return all[0], nil
}

func (s *rodSession) FindAll(ctx context.Context, parent Element, by locator.Strategy, value string) ([]Element, error) {
	el, err := s.element(parent)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ActionTimeout)
	defer cancel()

	// a detached parent still answers queries for its own subtree
	if err := s.connected(ctx, el); err != nil {
		return nil, err
	}
	found, err := el.Context(ctx).Elements(Selector(by, value))
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Element, len(found))
	for i, f := range found {
		out[i] = f
	}
	return out, nil
}

func (s *rodSession) Click(ctx context.Context, e Element) error {
	el, err := s.element(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ActionTimeout)
	defer cancel()

	if err := s.connected(ctx, el); err != nil {
		return err
	}
	return classify(el.Context(ctx).Click(proto.InputMouseButtonLeft, 1))
}

func (s *rodSession) IsDisplayed(ctx context.Context, e Element) (bool, error) {
	el, err := s.element(e)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ActionTimeout)
	defer cancel()

	if err := s.connected(ctx, el); err != nil {
		return false, err
	}
	visible, err := el.Context(ctx).Visible()
	return visible, classify(err)
}

func (s *rodSession) IsEnabled(ctx context.Context, e Element) (bool, error) {
	el, err := s.element(e)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ActionTimeout)
	defer cancel()

	res, err := el.Context(ctx).Eval(`() => !this.isConnected ? "stale" : (this.disabled ? "disabled" : "enabled")`)
	if err != nil {
		return false, classify(err)
	}
	switch res.Value.Str() {
	case "stale":
		return false, ErrStale
	case "disabled":
		return false, nil
	default:
		return true, nil
	}
}

func (s *rodSession) Back(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()

	p := s.page.Context(ctx)
	if err := p.NavigateBack(); err != nil {
		return fmt.Errorf("navigate back: %w", err)
	}
	return p.WaitLoad()
}

func (s *rodSession) PageSource(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) URL(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Quit closes the page and the browser and kills the launched process
func (s *rodSession) Quit() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.launched {
		s.launcher.Kill()
		// Cleanup removes the user data dir, keep a configured profile
		if s.opts.UserDataDir == "" {
			s.launcher.Cleanup()
		}
	}
	s.logger.Debug("browser stopped")
	return errors.Join(errs...)
}

func (s *rodSession) element(e Element) (*rod.Element, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	el, ok := e.(*rod.Element)
	if !ok || el == nil {
		return nil, fmt.Errorf("element %T does not belong to this session", e)
	}
	return el, nil
}

// connected reports ErrStale for nodes detached from the document. CDP keeps
// remote objects of removed nodes alive, so errors alone do not reveal this.
func (s *rodSession) connected(ctx context.Context, el *rod.Element) error {
	res, err := el.Context(ctx).Eval(`() => this.isConnected`)
	if err != nil {
		return classify(err)
	}
	if !res.Value.Bool() {
		return ErrStale
	}
	return nil
}

var staleMessages = []string{
	"could not find node",
	"could not find object",
	"cannot find context",
	"no node with given id",
	"node with given id does not belong",
	"execution context was destroyed",
}

// classify maps protocol errors about vanished nodes to ErrStale
func classify(err error) error {
	if err == nil {
		return nil
	}
	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		msg := strings.ToLower(cdpErr.Message)
		for _, m := range staleMessages {
			if strings.Contains(msg, m) {
				return fmt.Errorf("%w: %v", ErrStale, err)
			}
		}
	}
	return err
}
