package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OK     = "ok"
	Failed = "failed"
)

// Recorder counts what a run does. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	actions         *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	clickRounds     prometheus.Counter
	staleRecoveries *prometheus.CounterVec
	handlerCalls    *prometheus.CounterVec
}

// New creates a recorder on its own registry, so that several runs in one
// process (and tests) never collide on registration.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lookaround_actions_total",
				Help: "Script actions executed, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lookaround_action_duration_seconds",
				Help:    "Time spent in one script action including nested actions.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		clickRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lookaround_click_rounds_total",
			Help: "Successful click rounds of click actions.",
		}),
		staleRecoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lookaround_stale_recoveries_total",
				Help: "Stale element references re-resolved from their lineage, by outcome.",
			},
			[]string{"outcome"},
		),
		handlerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lookaround_handler_invocations_total",
				Help: "Page handler invocations, by handler name and outcome.",
			},
			[]string{"name", "outcome"},
		),
	}
	r.registry.MustRegister(
		r.actions,
		r.actionDuration,
		r.clickRounds,
		r.staleRecoveries,
		r.handlerCalls,
	)
	return r
}

// Registry exposes the underlying registry for scraping
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's metrics in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveAction(kind string, took time.Duration, err error) {
	if r == nil {
		return
	}
	r.actions.WithLabelValues(kind, outcome(err)).Inc()
	r.actionDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (r *Recorder) ClickRound() {
	if r == nil {
		return
	}
	r.clickRounds.Inc()
}

func (r *Recorder) StaleRecovery(err error) {
	if r == nil {
		return
	}
	r.staleRecoveries.WithLabelValues(outcome(err)).Inc()
}

func (r *Recorder) HandlerCall(name string, err error) {
	if r == nil {
		return
	}
	r.handlerCalls.WithLabelValues(name, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return Failed
	}
	return OK
}
