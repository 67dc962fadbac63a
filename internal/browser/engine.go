package browser

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Engine selects the browser implementation behind a Session
type Engine string

const (
	Chrome   Engine = "chrome"
	Chromium Engine = "chromium"
	Edge     Engine = "edge"
	// Static fetches pages over plain HTTP and parses them without running
	// any JavaScript.
	Static Engine = "static"
)

var engines = []Engine{Chrome, Chromium, Edge, Static}

func supportedList() string {
	names := make([]string, len(engines))
	for i, e := range engines {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

// ParseEngine validates an engine name
func ParseEngine(name string) (Engine, error) {
	n := Engine(strings.ToLower(strings.TrimSpace(name)))
	for _, e := range engines {
		if e == n {
			return e, nil
		}
	}
	return "", &DriverError{Kind: UnsupportedEngine, Engine: name}
}

// Options configures session creation
type Options struct {
	Headless    bool
	Bin         string // browser executable, looked up per engine when empty
	UserDataDir string // profile directory for authenticated sessions
	Width       int
	Height      int
	Args        []string // extra command line flags, e.g. "no-sandbox" or "lang=de"

	// ActionTimeout bounds each element operation on the rod engines.
	ActionTimeout time.Duration
	// NavigationTimeout bounds page loads.
	NavigationTimeout time.Duration

	// HTTPClient and UserAgent are used by the static engine.
	HTTPClient *http.Client
	UserAgent  string

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Width == 0 {
		o.Width = 1280
	}
	if o.Height == 0 {
		o.Height = 720
	}
	if o.ActionTimeout == 0 {
		o.ActionTimeout = 10 * time.Second
	}
	if o.NavigationTimeout == 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Open creates a session for the engine. Unsupported engines fail with a
// DriverError before anything is started.
func Open(ctx context.Context, engine Engine, opts Options) (Session, error) {
	opts = opts.withDefaults()
	switch engine {
	case Chrome, Chromium, Edge:
		return openRod(ctx, engine, opts)
	case Static:
		return newStaticSession(opts), nil
	default:
		return nil, &DriverError{Kind: UnsupportedEngine, Engine: string(engine)}
	}
}
