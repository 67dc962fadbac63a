package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	boom := errors.New("boom")

	r.ObserveAction("click", 10*time.Millisecond, nil)
	r.ObserveAction("click", 5*time.Millisecond, boom)
	r.ObserveAction("list", time.Second, nil)
	r.ClickRound()
	r.ClickRound()
	r.StaleRecovery(nil)
	r.StaleRecovery(boom)
	r.HandlerCall("save", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.actions.WithLabelValues("click", OK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.actions.WithLabelValues("click", Failed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.actions.WithLabelValues("list", OK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.clickRounds))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.staleRecoveries.WithLabelValues(Failed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.handlerCalls.WithLabelValues("save", OK)))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveAction("back", time.Millisecond, nil)
		r.ClickRound()
		r.StaleRecovery(nil)
		r.HandlerCall("print", nil)
	})
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ClickRound()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.clickRounds))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.clickRounds))
}

func TestHandlerServesMetrics(t *testing.T) {
	r := New()
	r.HandlerCall("print", nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `lookaround_handler_invocations_total{name="print",outcome="ok"} 1`)
}
