package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/v0xg/lookaround/internal/ai"
	"github.com/v0xg/lookaround/internal/browser"
	"github.com/v0xg/lookaround/internal/config"
	"github.com/v0xg/lookaround/internal/gifgen"
	"github.com/v0xg/lookaround/internal/handler"
	"github.com/v0xg/lookaround/internal/metrics"
	"github.com/v0xg/lookaround/internal/scraper"
	"github.com/v0xg/lookaround/internal/script"
	"go.uber.org/zap"
)

type runFlags struct {
	url         string
	engine      string
	record      string
	metricsAddr string
	strict      bool
}

func (a *app) runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script against a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.url, "url", "", "start page (overrides the script's url)")
	cmd.Flags().StringVar(&f.engine, "engine", "", "browser engine: chrome, chromium, edge, static (overrides script and config)")
	cmd.Flags().StringVar(&f.record, "record", "", "write the snapshot frames to this GIF file")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "refuse to run a script with invalid actions")
	return cmd
}

func (a *app) run(cmd *cobra.Command, path string, f runFlags) error {
	sc, err := script.Load(path)
	if sc == nil {
		return err
	}
	if err != nil {
		if f.strict {
			return fmt.Errorf("invalid script: %w", err)
		}
		for _, p := range unjoin(err) {
			a.logger.Warn("invalid action will be skipped", zap.Error(p))
		}
	}

	target := firstNonEmpty(f.url, sc.URL)
	if target == "" {
		return errors.New("no start page: set url in the script or pass --url")
	}
	engine, err := browser.ParseEngine(firstNonEmpty(f.engine, sc.Engine, a.cfg.Browser.Engine))
	if err != nil {
		return err
	}

	rec := metrics.New()
	s := scraper.New(
		scraper.WithLogger(a.logger),
		scraper.WithMetrics(rec),
		scraper.WithPollInterval(a.cfg.Scraper.CookiePollInterval),
		scraper.WithMaxClickRounds(a.cfg.Scraper.MaxClickRounds),
		scraper.WithBrowserOptions(browserOptions(a.cfg.Browser)),
	)
	snap, err := a.registerHandlers(cmd, s)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := firstNonEmpty(f.metricsAddr, a.cfg.Metrics.Addr); addr != "" {
		shutdown := serveMetrics(addr, rec, a.logger)
		defer shutdown()
	}

	runErr := s.Run(ctx, target, engine, sc.Actions)

	if f.record != "" {
		if err := a.record(cmd, snap, f.record); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// registerHandlers installs the built-in page handlers. assess is only
// available when a provider is configured.
func (a *app) registerHandlers(cmd *cobra.Command, s *scraper.Scraper) (*handler.Snapshot, error) {
	h := a.cfg.Handlers
	snap := &handler.Snapshot{}
	builtins := map[string]handler.Handler{
		"print":    &handler.Print{Chars: h.Print.Chars, Out: cmd.OutOrStdout()},
		"save":     &handler.Save{Dir: h.Save.Dir, BucketSize: h.Save.BucketSize, Logger: a.logger},
		"snapshot": snap,
	}
	if h.Assess.Provider != "" {
		provider, err := ai.NewProvider(h.Assess.Provider, h.Assess.Model)
		if err != nil {
			return nil, fmt.Errorf("AI provider init failed: %w", err)
		}
		builtins["assess"] = &ai.AssessHandler{
			Provider: provider,
			Criteria: h.Assess.Criteria,
			MaxChars: h.Assess.MaxChars,
			Logger:   a.logger.Named("assess"),
		}
	}
	for name, hd := range builtins {
		if err := s.RegisterHandler(name, hd); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (a *app) record(cmd *cobra.Command, snap *handler.Snapshot, path string) error {
	frames := len(snap.Frames())
	if frames == 0 {
		a.logger.Warn("nothing to record: no snapshot was taken", zap.String("output", path))
		return nil
	}
	size, err := snap.WriteGIF(path, gifgen.Options{
		FrameDelay: a.cfg.Handlers.Snapshot.FrameDelay,
		MaxWidth:   a.cfg.Handlers.Snapshot.MaxWidth,
	})
	if err != nil {
		return fmt.Errorf("GIF generation failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %d frames to %s (%.1f MB)\n", frames, path, float64(size)/(1024*1024))
	return nil
}

func browserOptions(c config.BrowserConfig) browser.Options {
	return browser.Options{
		Headless:          c.Headless,
		Bin:               c.Bin,
		UserDataDir:       c.UserDataDir,
		Width:             c.Width,
		Height:            c.Height,
		Args:              c.Args,
		ActionTimeout:     c.ActionTimeout,
		NavigationTimeout: c.NavigationTimeout,
		UserAgent:         c.UserAgent,
	}
}

// serveMetrics exposes rec on addr until the returned function is called
func serveMetrics(addr string, rec *metrics.Recorder, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
