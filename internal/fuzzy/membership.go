// Package fuzzy implements a Mamdani inference engine: linguistic variables
// with triangular and trapezoidal terms, textual rules combined by
// configurable T-norm and S-norm operators, pointwise aggregation and
// sampled defuzzification.
//
// An Engine is immutable once built and safe for concurrent use. Per-call
// state lives in a Session, which belongs to one goroutine at a time.
package fuzzy

import (
	"fmt"
	"math"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// Membership maps a crisp value to a degree of truth in [0, 1].
type Membership interface {
	// Membership returns the degree of x. NaN yields 0.
	Membership(x float64) float64
	// Validate reports control points that violate the shape's ordering.
	Validate() error
	// Support returns the first and last control points. Outside of them the
	// membership is 0.
	Support() (lo, hi float64)
	// Peak returns the interval on which the membership is exactly 1.
	Peak() (lo, hi float64)
}

// Triangle is a triangular membership function with A <= B <= C.
// A == B or B == C degenerates the matching side into a vertical edge.
type Triangle struct {
	A, B, C float64
}

// Membership implements Membership.
func (t Triangle) Membership(x float64) float64 {
	switch {
	case math.IsNaN(x), x < t.A, x > t.C:
		return 0
	case x == t.B:
		return 1
	case x < t.B:
		return (x - t.A) / (t.B - t.A)
	default:
		return (t.C - x) / (t.C - t.B)
	}
}

// Validate implements Membership.
func (t Triangle) Validate() error {
	if err := finite(t.A, t.B, t.C); err != nil {
		return err
	}
	if t.A > t.B || t.B > t.C {
		return errors.Configurationf("triangle control points must satisfy a <= b <= c, got %s", t)
	}
	return nil
}

// Support implements Membership.
func (t Triangle) Support() (float64, float64) { return t.A, t.C }

// Peak implements Membership.
func (t Triangle) Peak() (float64, float64) { return t.B, t.B }

func (t Triangle) String() string {
	return fmt.Sprintf("Triangle(%g, %g, %g)", t.A, t.B, t.C)
}

// Trapezoid is a trapezoidal membership function with A <= B <= C <= D.
type Trapezoid struct {
	A, B, C, D float64
}

// Membership implements Membership.
func (t Trapezoid) Membership(x float64) float64 {
	switch {
	case math.IsNaN(x), x < t.A, x > t.D:
		return 0
	case x < t.B:
		return (x - t.A) / (t.B - t.A)
	case x <= t.C:
		return 1
	case x < t.D:
		return (t.D - x) / (t.D - t.C)
	default:
		return 0
	}
}

// Validate implements Membership.
func (t Trapezoid) Validate() error {
	if err := finite(t.A, t.B, t.C, t.D); err != nil {
		return err
	}
	if t.A > t.B || t.B > t.C || t.C > t.D {
		return errors.Configurationf("trapezoid control points must satisfy a <= b <= c <= d, got %s", t)
	}
	return nil
}

// Support implements Membership.
func (t Trapezoid) Support() (float64, float64) { return t.A, t.D }

// Peak implements Membership.
func (t Trapezoid) Peak() (float64, float64) { return t.B, t.C }

func (t Trapezoid) String() string {
	return fmt.Sprintf("Trapezoid(%g, %g, %g, %g)", t.A, t.B, t.C, t.D)
}

func finite(points ...float64) error {
	for i, p := range points {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return errors.Configurationf("control point %d is not finite: %v", i, p)
		}
	}
	return nil
}
