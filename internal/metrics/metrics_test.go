package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/fuzzopt/internal/optimization"
)

func TestCollector(t *testing.T) {
	c := New()

	c.AddEvaluations("OptimizationFIS", 120)
	c.AddEvaluations("OptimizationFIS", 0)
	assert.Equal(t, 120.0, testutil.ToFloat64(c.evaluations.WithLabelValues("OptimizationFIS")))

	c.ObserveRun("differential_evolution", &optimization.OptimizationResult{
		BestSolution: &optimization.Solution{Value: 25},
		Duration:     20 * time.Millisecond,
	}, nil)
	c.ObserveRun("genetic_algorithm", nil, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("differential_evolution", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("genetic_algorithm", "error")))
	assert.Equal(t, 25.0, testutil.ToFloat64(c.bestValue.WithLabelValues("differential_evolution")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runDuration))

	done := c.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeRuns))
	assert.GreaterOrEqual(t, done(), time.Duration(0))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeRuns))

	c.RequestError("not_found")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestErrors.WithLabelValues("not_found")))
}

func TestHandler(t *testing.T) {
	c := New()
	c.AddEvaluations("AssistiveCareFLC", 3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `fuzzopt_engine_evaluations_total{engine="AssistiveCareFLC"} 3`)
	assert.Contains(t, body, "go_goroutines")
}
