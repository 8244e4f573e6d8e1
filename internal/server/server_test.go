package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/config"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
	"github.com/copyleftdev/fuzzopt/internal/logging"
	"github.com/copyleftdev/fuzzopt/internal/metrics"
	"github.com/copyleftdev/fuzzopt/internal/presets"
	"github.com/copyleftdev/fuzzopt/internal/store"
)

// testConfig creates a test configuration with small optimizer budgets
func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Environment: "test",
	}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "console"
	cfg.Logging.Output = "stdout"

	cfg.Database.Type = "memory"
	cfg.Fuzzy.Resolution = 100

	cfg.Optimization.WorkerCount = 2
	cfg.Optimization.Seed = 7
	cfg.Optimization.Tolerance = 0.01
	cfg.Optimization.DEMaxIterations = 20
	cfg.Optimization.GAPopulation = 20
	cfg.Optimization.GAGenerations = 5

	require.NoError(t, cfg.Validate())
	return cfg
}

type testServer struct {
	srv     *Server
	router  chi.Router
	metrics *metrics.Collector
}

// newTestServer builds a server over an in-memory store. compare replaces
// the real comparator when non-nil.
func newTestServer(t *testing.T, compare compareFunc) *testServer {
	t.Helper()

	st := store.NewMemoryStore()
	require.NoError(t, st.Init(context.Background()))

	m := metrics.New()
	srv, err := NewServer(testConfig(t), logging.FromZap(zaptest.NewLogger(t)), st, m)
	require.NoError(t, err)
	if compare != nil {
		srv.compare = compare
	}
	t.Cleanup(func() {
		assert.NoError(t, srv.Close())
		assert.NoError(t, st.Close())
	})

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return &testServer{srv: srv, router: r, metrics: m}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, httptest.NewRequest(method, path, &payload))

	var decoded map[string]interface{}
	if rr.Body.Len() > 0 {
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded), rr.Body.String())
	}
	return rr, decoded
}

func (ts *testServer) waitForStatus(t *testing.T, id string, want store.Status) map[string]interface{} {
	t.Helper()

	var last map[string]interface{}
	assert.Eventually(t, func() bool {
		_, last = ts.do(t, http.MethodGet, "/api/v1/status/"+id, nil)
		return last["status"] == string(want)
	}, 30*time.Second, 10*time.Millisecond)
	return last
}

func instantCompare(_ context.Context, cfg comparison.Config, _ *zap.Logger, objective *fuzzy.Objective, _ [][]float64) (*comparison.Comparison, error) {
	return &comparison.Comparison{
		Engine:    objective.Engine().Name(),
		Output:    objective.Output(),
		Bounds:    objective.Bounds(),
		Tolerance: cfg.Tolerance,
		Agree:     true,
	}, nil
}

func blockingCompare(ctx context.Context, _ comparison.Config, _ *zap.Logger, _ *fuzzy.Objective, _ [][]float64) (*comparison.Comparison, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestNewServer(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Len(t, ts.srv.engines, len(presets.Names()))
}

func TestRegisterRoutes(t *testing.T) {
	ts := newTestServer(t, instantCompare)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"GET", "/api/v1/engines", true},
		{"POST", "/api/v1/engines/" + presets.Comparative + "/evaluate", true},
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/runs", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/optimization/123", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // Not registered by server package
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			found := ts.router.Match(chi.NewRouteContext(), tt.method, tt.path)
			assert.Equal(t, tt.shouldExist, found)
		})
	}
}

func TestEngines(t *testing.T) {
	ts := newTestServer(t, instantCompare)

	rr, body := ts.do(t, http.MethodGet, "/api/v1/engines", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	engines, ok := body["engines"].([]interface{})
	require.True(t, ok)
	require.Len(t, engines, 2)

	names := make([]string, 0, len(engines))
	for _, e := range engines {
		info := e.(map[string]interface{})
		names = append(names, info["name"].(string))
		assert.Len(t, info["inputs"], 2)
		assert.NotEmpty(t, info["rules"])
	}
	assert.Equal(t, presets.Names(), names)
}

func TestEvaluate(t *testing.T) {
	ts := newTestServer(t, instantCompare)

	tests := []struct {
		name   string
		engine string
		body   interface{}
		status int
		want   float64
	}{
		{"comparative centre", presets.Comparative, map[string]interface{}{"inputs": []float64{5, 7}}, http.StatusOK, 50},
		{"comparative low corner", presets.Comparative, map[string]interface{}{"inputs": []float64{1, 2}}, http.StatusOK, 25},
		{"care heater", presets.AssistiveCare, map[string]interface{}{"inputs": []float64{18, 150}}, http.StatusOK, 9.29047619047619},
		{"wrong arity", presets.Comparative, map[string]interface{}{"inputs": []float64{1}}, http.StatusBadRequest, 0},
		{"unknown engine", "Nope", map[string]interface{}{"inputs": []float64{1, 2}}, http.StatusNotFound, 0},
		{"bad body", presets.Comparative, "not an object", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := ts.do(t, http.MethodPost, "/api/v1/engines/"+tt.engine+"/evaluate", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.status != http.StatusOK {
				assert.NotEmpty(t, body["error"])
				assert.NotEmpty(t, body["kind"])
				return
			}

			outputs := body["outputs"].([]interface{})
			first := outputs[0].(map[string]interface{})
			assert.InDelta(t, tt.want, first["value"].(float64), 1e-9)
			assert.Equal(t, true, first["fired"])
		})
	}
}

func TestOptimizeLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	rr, body := ts.do(t, http.MethodPost, "/api/v1/optimize", map[string]interface{}{
		"engine": presets.Comparative,
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Equal(t, string(store.StatusRunning), body["status"])

	id := body["optimization_id"].(string)
	run := ts.waitForStatus(t, id, store.StatusCompleted)

	cmp, ok := run["comparison"].(map[string]interface{})
	require.True(t, ok, "completed run carries its comparison")
	assert.Equal(t, "Output", cmp["output"])
	assert.Len(t, cmp["results"], 2)
	assert.Len(t, cmp["test_cases"], 3)

	// A finished run cannot be cancelled
	rr, body = ts.do(t, http.MethodDelete, "/api/v1/optimization/"+id, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, body["error"], "completed")

	rr, body = ts.do(t, http.MethodGet, "/api/v1/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["runs"], 1)
}

func TestOptimizeValidation(t *testing.T) {
	ts := newTestServer(t, instantCompare)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"missing engine", map[string]interface{}{}, http.StatusBadRequest},
		{"unknown engine", map[string]interface{}{"engine": "Nope"}, http.StatusNotFound},
		{"unknown output", map[string]interface{}{"engine": presets.AssistiveCare, "output": "Fan"}, http.StatusNotFound},
		{"tolerance out of range", map[string]interface{}{"engine": presets.Comparative, "tolerance": 3}, http.StatusBadRequest},
		{"bad body", []int{1}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := ts.do(t, http.MethodPost, "/api/v1/optimize", tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}

	rr, _ := ts.do(t, http.MethodGet, "/api/v1/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOptimizeAlternateOutput(t *testing.T) {
	ts := newTestServer(t, instantCompare)

	rr, body := ts.do(t, http.MethodPost, "/api/v1/optimize", map[string]interface{}{
		"engine":    presets.AssistiveCare,
		"output":    "Lights",
		"tolerance": 0.05,
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	run := ts.waitForStatus(t, body["optimization_id"].(string), store.StatusCompleted)
	assert.Equal(t, "Lights", run["output"])
	cmp := run["comparison"].(map[string]interface{})
	assert.Equal(t, 0.05, cmp["tolerance"])
}

func TestCancel(t *testing.T) {
	ts := newTestServer(t, blockingCompare)

	rr, body := ts.do(t, http.MethodPost, "/api/v1/optimize", map[string]interface{}{
		"engine": presets.Comparative,
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	id := body["optimization_id"].(string)

	rr, body = ts.do(t, http.MethodDelete, "/api/v1/optimization/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "cancellation requested", body["status"])

	ts.waitForStatus(t, id, store.StatusCancelled)

	rr, _ = ts.do(t, http.MethodDelete, "/api/v1/optimization/"+id, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, _ = ts.do(t, http.MethodDelete, "/api/v1/optimization/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = ts.do(t, http.MethodGet, "/api/v1/status/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClose(t *testing.T) {
	ts := newTestServer(t, blockingCompare)

	rr, body := ts.do(t, http.MethodPost, "/api/v1/optimize", map[string]interface{}{
		"engine": presets.Comparative,
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	// Close cancels the blocked run and waits for it to be recorded
	require.NoError(t, ts.srv.Close())

	_, run := ts.do(t, http.MethodGet, "/api/v1/status/"+body["optimization_id"].(string), nil)
	assert.Equal(t, string(store.StatusCancelled), run["status"])
}

func rpcCall(t *testing.T, ts *testServer, body string) map[string]interface{} {
	t.Helper()

	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "2.0", response["jsonrpc"])
	return response
}

func TestJSONRPCErrors(t *testing.T) {
	ts := newTestServer(t, instantCompare)

	tests := []struct {
		name string
		body string
		code float64
	}{
		{"parse error", `{"jsonrpc":`, rpcParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"engine.list"}`, rpcInvalidRequest},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, rpcInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"engine.delete"}`, rpcMethodNotFound},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"engine.evaluate"}`, rpcInvalidParams},
		{"two element array", `{"jsonrpc":"2.0","id":1,"method":"optimization.status","params":[{},{}]}`, rpcInvalidParams},
		{"wrong arity", `{"jsonrpc":"2.0","id":1,"method":"engine.evaluate","params":{"engine":"OptimizationFIS","inputs":[1,2,3]}}`, rpcInvalidParams},
		{"unknown run", `{"jsonrpc":"2.0","id":1,"method":"optimization.status","params":{"optimization_id":"nope"}}`, rpcNotFound},
		{"cancel unknown run", `{"jsonrpc":"2.0","id":1,"method":"optimization.cancel","params":{"optimization_id":"nope"}}`, rpcNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := rpcCall(t, ts, tt.body)
			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, tt.code, errObj["code"])
			assert.NotContains(t, response, "result")
		})
	}
}

func TestJSONRPCMethods(t *testing.T) {
	ts := newTestServer(t, instantCompare)

	response := rpcCall(t, ts, `{"jsonrpc":"2.0","id":"a","method":"engine.list"}`)
	assert.Equal(t, "a", response["id"])
	result := response["result"].(map[string]interface{})
	assert.Len(t, result["engines"], 2)

	// Positional params carry the object as their only element
	response = rpcCall(t, ts, `{"jsonrpc":"2.0","id":2,"method":"engine.evaluate","params":[{"engine":"OptimizationFIS","inputs":[8,9]}]}`)
	require.NotContains(t, response, "error")
	outputs := response["result"].(map[string]interface{})["outputs"].([]interface{})
	assert.InDelta(t, 75.0, outputs[0].(map[string]interface{})["value"].(float64), 1e-9)

	response = rpcCall(t, ts, `{"jsonrpc":"2.0","id":3,"method":"optimization.start","params":{"engine":"OptimizationFIS","seed":11}}`)
	require.NotContains(t, response, "error")
	id := response["result"].(map[string]interface{})["optimization_id"].(string)
	ts.waitForStatus(t, id, store.StatusCompleted)

	response = rpcCall(t, ts, `{"jsonrpc":"2.0","id":4,"method":"optimization.status","params":{"optimization_id":"`+id+`"}}`)
	require.NotContains(t, response, "error")
	assert.Equal(t, string(store.StatusCompleted), response["result"].(map[string]interface{})["status"])

	response = rpcCall(t, ts, `{"jsonrpc":"2.0","id":5,"method":"optimization.cancel","params":{"optimization_id":"`+id+`"}}`)
	assert.Equal(t, float64(rpcConflict), response["error"].(map[string]interface{})["code"])
}

func TestRespondWithError(t *testing.T) {
	ts := newTestServer(t, instantCompare)

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
	}{
		{
			name:       "valid error response",
			code:       rpcInvalidParams,
			message:    "invalid input",
			id:         "123",
			expectedID: "123",
		},
		{
			name:       "nil id",
			code:       rpcServerError,
			message:    "server error",
			id:         nil,
			expectedID: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			ts.srv.respondWithError(rr, tt.code, tt.message, tt.id)

			// respondWithError writes 200 with the error in the body
			assert.Equal(t, http.StatusOK, rr.Code)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, tt.message, errObj["message"])
			assert.Equal(t, tt.expectedID, response["id"])
		})
	}
}
