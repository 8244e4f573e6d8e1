package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/config"
	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
	"github.com/copyleftdev/fuzzopt/internal/logging"
	"github.com/copyleftdev/fuzzopt/internal/metrics"
	"github.com/copyleftdev/fuzzopt/internal/presets"
	"github.com/copyleftdev/fuzzopt/internal/store"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
	Zap() *zap.Logger
}

// compareFunc runs one comparison; tests replace it to control timing.
type compareFunc func(ctx context.Context, cfg comparison.Config, logger *zap.Logger, objective *fuzzy.Objective, vectors [][]float64) (*comparison.Comparison, error)

// engineEntry is a preset built once at startup and shared by every request.
type engineEntry struct {
	preset    presets.Preset
	engine    *fuzzy.Engine
	objective *fuzzy.Objective
}

// Server implements the HTTP and JSON-RPC surface of the service: engine
// evaluation plus asynchronous optimizer comparison runs.
type Server struct {
	cfg     *config.Config
	logger  Logger
	store   store.Store
	metrics *metrics.Collector
	engines map[string]*engineEntry
	compare compareFunc

	// Cancel funcs of runs still in progress, by run ID
	active   map[string]context.CancelFunc
	activeMu sync.Mutex
	wg       sync.WaitGroup
}

// NewServer builds every preset engine at the configured resolution.
func NewServer(cfg *config.Config, logger Logger, st store.Store, m *metrics.Collector) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: m,
		engines: make(map[string]*engineEntry),
		active:  make(map[string]context.CancelFunc),
	}

	s.compare = s.runComparison

	for _, name := range presets.Names() {
		p, err := presets.Lookup(name)
		if err != nil {
			return nil, err
		}
		e, err := fuzzy.NewEngine(p.Config(cfg.Fuzzy.Resolution))
		if err != nil {
			return nil, errors.Wrapf(err, "building engine %s", name)
		}
		obj, err := fuzzy.NewObjective(e, p.Objective)
		if err != nil {
			return nil, err
		}
		s.engines[name] = &engineEntry{preset: p, engine: e, objective: obj}
		logger.Debug("Engine loaded", map[string]interface{}{
			"engine":     name,
			"definition": e.String(),
		})
	}
	return s, nil
}

func (s *Server) runComparison(ctx context.Context, cfg comparison.Config, logger *zap.Logger, objective *fuzzy.Objective, vectors [][]float64) (*comparison.Comparison, error) {
	return comparison.New(cfg,
		comparison.WithLogger(logger),
		comparison.WithObserver(s.metrics),
	).Compare(ctx, objective, vectors)
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/engines", s.handleEngines)
		r.Post("/engines/{name}/evaluate", s.handleEvaluate)
		r.Post("/optimize", s.handleOptimize)
		r.Get("/runs", s.handleRuns)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close cancels every run in progress and waits for them to record their
// final state.
func (s *Server) Close() error {
	s.activeMu.Lock()
	for _, cancel := range s.active {
		cancel()
	}
	s.activeMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Server) engine(name string) (*engineEntry, error) {
	e, ok := s.engines[name]
	if !ok {
		return nil, errors.Errorf(errors.KindNotFound, "unknown engine %q", name)
	}
	return e, nil
}

type termInfo struct {
	Label    string `json:"label"`
	Function string `json:"function"`
}

type variableInfo struct {
	Name  string     `json:"name"`
	Min   float64    `json:"min"`
	Max   float64    `json:"max"`
	Terms []termInfo `json:"terms"`
}

type engineInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Objective   string         `json:"objective"`
	Inputs      []variableInfo `json:"inputs"`
	Outputs     []variableInfo `json:"outputs"`
	Rules       []string       `json:"rules"`
	TestVectors [][]float64    `json:"test_vectors"`
}

func describeVariable(v *fuzzy.Variable) variableInfo {
	lo, hi := v.Range()
	info := variableInfo{Name: v.Name(), Min: lo, Max: hi}
	for _, t := range v.Terms() {
		info.Terms = append(info.Terms, termInfo{Label: t.Label, Function: fmt.Sprint(t.Function)})
	}
	return info
}

func (s *Server) listEngines() []engineInfo {
	infos := make([]engineInfo, 0, len(s.engines))
	for _, name := range presets.Names() {
		entry, ok := s.engines[name]
		if !ok {
			continue
		}
		info := engineInfo{
			Name:        name,
			Description: entry.preset.Description,
			Objective:   entry.preset.Objective,
			TestVectors: entry.preset.TestVectors,
		}
		for _, v := range entry.engine.Inputs() {
			info.Inputs = append(info.Inputs, describeVariable(v))
		}
		for _, o := range entry.engine.Outputs() {
			info.Outputs = append(info.Outputs, describeVariable(o.Variable))
		}
		for _, rb := range entry.engine.RuleBlocks() {
			for _, r := range rb.Rules() {
				info.Rules = append(info.Rules, r.Text)
			}
		}
		infos = append(infos, info)
	}
	return infos
}

type evaluateResponse struct {
	Engine  string         `json:"engine"`
	Inputs  []float64      `json:"inputs"`
	Outputs []fuzzy.Output `json:"outputs"`
}

func (s *Server) evaluate(name string, inputs []float64) (*evaluateResponse, error) {
	entry, err := s.engine(name)
	if err != nil {
		return nil, err
	}
	outputs, err := entry.objective.EvaluateAll(inputs)
	if err != nil {
		return nil, err
	}
	s.metrics.AddEvaluations(name, 1)
	return &evaluateResponse{Engine: name, Inputs: inputs, Outputs: outputs}, nil
}

func (s *Server) handleEngines(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"engines": s.listEngines()})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Inputs []float64 `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, r, errors.InvalidInputf("invalid request body: %v", err))
		return
	}

	result, err := s.evaluate(chi.URLParam(r, "name"), body.Inputs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleOptimize handles the HTTP POST /optimize endpoint for starting a new optimization
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errors.InvalidInputf("invalid request body: %v", err))
		return
	}

	run, err := s.startRun(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"optimization_id": run.ID,
		"status":          run.Status,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, r, errors.InvalidInputf("invalid limit %q", v))
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleStatus handles the HTTP GET /status/:id endpoint for checking optimization status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

// handleCancel handles the HTTP DELETE /optimization/:id endpoint for canceling an optimization
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.cancel(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"optimization_id": id,
		"status":          "cancellation requested",
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err})
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errors.KindOf(err)
	s.metrics.RequestError(kind.String())
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("Request error", map[string]interface{}{"error": err})
	}
	s.respondJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"kind":  kind.String(),
	})
}
