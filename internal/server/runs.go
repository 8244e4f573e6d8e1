package server

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
	"github.com/copyleftdev/fuzzopt/internal/store"
)

// optimizeRequest starts a comparison run. Zero values fall back to the
// preset objective and the service configuration.
type optimizeRequest struct {
	Engine    string  `json:"engine"`
	Output    string  `json:"output,omitempty"`
	Seed      int64   `json:"seed,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`
}

func (s *Server) startRun(req optimizeRequest) (store.Run, error) {
	if req.Engine == "" {
		return store.Run{}, errors.InvalidInputf("engine is required")
	}
	entry, err := s.engine(req.Engine)
	if err != nil {
		return store.Run{}, err
	}
	objective := entry.objective
	if req.Output != "" && req.Output != objective.Output() {
		if objective, err = fuzzy.NewObjective(entry.engine, req.Output); err != nil {
			return store.Run{}, err
		}
	}
	if req.Tolerance < 0 || req.Tolerance > 1 {
		return store.Run{}, errors.InvalidInputf("tolerance %v outside [0, 1]", req.Tolerance)
	}

	cmpConfig := s.cfg.Comparison()
	if req.Seed != 0 {
		cmpConfig.Seed = req.Seed
	}
	if req.Tolerance != 0 {
		cmpConfig.Tolerance = req.Tolerance
	}

	now := time.Now().UTC()
	run := store.Run{
		ID:        uuid.NewString(),
		Engine:    req.Engine,
		Output:    objective.Output(),
		Status:    store.StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveRun(context.Background(), run); err != nil {
		return store.Run{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.activeMu.Lock()
	s.active[run.ID] = cancel
	s.activeMu.Unlock()

	s.wg.Add(1)
	go s.execute(ctx, run, cmpConfig, objective, entry.preset.TestVectors)

	s.logger.Info("Optimization started", map[string]interface{}{
		"optimization_id": run.ID,
		"engine":          run.Engine,
		"output":          run.Output,
	})
	return run, nil
}

// execute runs the comparison and records its outcome.
func (s *Server) execute(ctx context.Context, run store.Run, cfg comparison.Config, objective *fuzzy.Objective, vectors [][]float64) {
	defer s.wg.Done()
	finished := s.metrics.RunStarted()
	before := objective.Evaluations()

	logger := s.logger.Zap().With(zap.String("optimization_id", run.ID))
	cmp, err := s.compare(ctx, cfg, logger, objective, vectors)

	elapsed := finished()
	s.metrics.AddEvaluations(run.Engine, objective.Evaluations()-before)

	s.activeMu.Lock()
	if cancel, ok := s.active[run.ID]; ok {
		cancel()
		delete(s.active, run.ID)
	}
	s.activeMu.Unlock()

	run.UpdatedAt = time.Now().UTC()
	switch {
	case err == nil:
		run.Status = store.StatusCompleted
		run.Comparison = cmp
	case stderrors.Is(err, context.Canceled):
		run.Status = store.StatusCancelled
	default:
		run.Status = store.StatusFailed
		run.Error = err.Error()
	}

	if err := s.store.SaveRun(context.Background(), run); err != nil {
		s.logger.Error("Failed to record run", map[string]interface{}{
			"optimization_id": run.ID,
			"error":           err,
		})
	}

	fields := map[string]interface{}{
		"optimization_id": run.ID,
		"status":          string(run.Status),
		"duration":        elapsed.String(),
	}
	if cmp != nil {
		fields["agree"] = cmp.Agree
		fields["value_gap"] = cmp.ValueGap
	}
	if run.Status == store.StatusFailed {
		fields["error"] = run.Error
		s.logger.Error("Optimization failed", fields)
		return
	}
	s.logger.Info("Optimization finished", fields)
}

func (s *Server) status(ctx context.Context, id string) (store.Run, error) {
	run, ok, err := s.store.GetRun(ctx, id)
	if err != nil {
		return store.Run{}, err
	}
	if !ok {
		return store.Run{}, errors.Errorf(errors.KindNotFound, "optimization %s not found", id)
	}
	return run, nil
}

func (s *Server) cancel(ctx context.Context, id string) error {
	s.activeMu.Lock()
	cancel, ok := s.active[id]
	s.activeMu.Unlock()
	if ok {
		cancel()
		s.logger.Info("Optimization cancelled", map[string]interface{}{
			"optimization_id": id,
		})
		return nil
	}

	run, err := s.status(ctx, id)
	if err != nil {
		return err
	}
	return errors.Errorf(errors.KindConflict, "cannot cancel optimization with status: %s", run.Status)
}
