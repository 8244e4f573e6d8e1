package optimization

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// EvaluateAll evaluates objective at every point with at most workers
// concurrent calls. Results land in the slot matching their point, so the
// outcome does not depend on scheduling. The first failing evaluation
// cancels the rest and is returned.
func EvaluateAll(ctx context.Context, objective ObjectiveFunction, points [][]float64, workers int) ([]float64, error) {
	values := make([]float64, len(points))

	if workers <= 1 {
		for i, x := range points {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			v, err := objective(x)
			if err != nil {
				return nil, errors.Wrapf(err, "evaluating point %d", i)
			}
			values[i] = v
		}
		return values, nil
	}

	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(workers).
		WithCancelOnError().
		WithFirstError()

	for i, x := range points {
		i, x := i, x
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := objective(x)
			if err != nil {
				return errors.Wrapf(err, "evaluating point %d", i)
			}
			values[i] = v
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
