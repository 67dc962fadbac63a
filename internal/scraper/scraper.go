package scraper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/v0xg/lookaround/internal/browser"
	"github.com/v0xg/lookaround/internal/handler"
	"github.com/v0xg/lookaround/internal/locator"
	"github.com/v0xg/lookaround/internal/metrics"
	"github.com/v0xg/lookaround/internal/script"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often a cookie dialog is checked
const DefaultPollInterval = 500 * time.Millisecond

// Opener creates the browser session for a run
type Opener func(ctx context.Context, engine browser.Engine, opts browser.Options) (browser.Session, error)

// Scraper runs scripts against a browser session
type Scraper struct {
	logger         *zap.Logger
	registry       *handler.Registry
	metrics        *metrics.Recorder
	clock          Clock
	rand           func() float64
	open           Opener
	pollInterval   time.Duration
	maxClickRounds int
	browserOpts    browser.Options
}

// Option configures a Scraper
type Option func(*Scraper)

func WithLogger(l *zap.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// WithRegistry shares a handler registry. By default each Scraper has its own.
func WithRegistry(r *handler.Registry) Option {
	return func(s *Scraper) { s.registry = r }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Scraper) { s.metrics = m }
}

func WithClock(c Clock) Option {
	return func(s *Scraper) { s.clock = c }
}

// WithRand sets the source of uniform values in [0, 1) used for sleeps
func WithRand(f func() float64) Option {
	return func(s *Scraper) { s.rand = f }
}

// WithOpener replaces browser.Open
func WithOpener(o Opener) Option {
	return func(s *Scraper) { s.open = o }
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Scraper) { s.pollInterval = d }
}

// WithMaxClickRounds caps while-clickable loops that set no limit of their
// own. 0 leaves them unbounded.
func WithMaxClickRounds(n int) Option {
	return func(s *Scraper) { s.maxClickRounds = n }
}

func WithBrowserOptions(o browser.Options) Option {
	return func(s *Scraper) { s.browserOpts = o }
}

func New(opts ...Option) *Scraper {
	s := &Scraper{
		clock:        realClock{},
		rand:         rand.Float64,
		open:         browser.Open,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("scraper")
	if s.registry == nil {
		s.registry = handler.NewRegistry(s.logger, s.metrics)
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	return s
}

// RegisterHandler makes h available to handle actions under name
func (s *Scraper) RegisterHandler(name string, h handler.Handler) error {
	return s.registry.Register(name, h)
}

// Run opens a session, navigates to baseURL and executes actions in order.
// Failing actions are logged and skipped. Run only returns an error when
// the whole run is aborted: the session could not be created, the first
// page did not load, or ctx was cancelled. The session is always closed.
func (s *Scraper) Run(ctx context.Context, baseURL string, engine browser.Engine, actions []script.Node) (err error) {
	logger := s.logger.With(zap.String("run_id", uuid.NewString()))

	for _, name := range script.HandlerNames(actions) {
		if !s.registry.Has(name) {
			logger.Warn("script references an unregistered handler", zap.String("name", name))
		}
	}

	opts := s.browserOpts
	if opts.Logger == nil {
		opts.Logger = logger
	}
	sess, err := s.open(ctx, engine, opts)
	if err != nil {
		logger.Error("could not create browser session", zap.String("engine", string(engine)), zap.Error(err))
		return err
	}
	start := s.clock.Now()
	defer func() {
		if qerr := sess.Quit(); qerr != nil {
			logger.Warn("browser did not quit cleanly", zap.Error(qerr))
		}
		logger.Info("run finished", zap.Duration("took", s.clock.Now().Sub(start)), zap.Error(err))
	}()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("run aborted: panic: %v", p)
		}
	}()

	logger.Info("run started",
		zap.String("url", baseURL),
		zap.String("engine", string(engine)),
		zap.Int("actions", len(actions)))

	if err := sess.Navigate(ctx, baseURL); err != nil {
		return fmt.Errorf("navigate to %s: %w", baseURL, err)
	}

	r := &run{
		Scraper:  s,
		session:  sess,
		resolver: NewResolver(sess),
		logger:   logger,
	}
	return r.fromRoot(ctx, actions)
}

// run is the state of one Run call
type run struct {
	*Scraper
	session  browser.Session
	resolver *Resolver
	logger   *zap.Logger
}

// fromRoot executes actions one after the other, each against the document
// root as it is when the action starts
func (r *run) fromRoot(ctx context.Context, actions []script.Node) error {
	for _, node := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.dispatch(ctx, node, nil, locator.Root); err != nil {
			return err
		}
	}
	return nil
}

// parentOrRoot returns parent, or the current document root when nil
func (r *run) parentOrRoot(ctx context.Context, parent browser.Element) (browser.Element, error) {
	if parent != nil {
		return parent, nil
	}
	root, err := r.session.Root(ctx)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	return root, nil
}
