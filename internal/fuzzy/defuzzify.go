package fuzzy

// DefaultResolution is the number of samples taken across an output domain.
const DefaultResolution = 100

// Curve is anything with a membership over the real line, typically an
// aggregated output.
type Curve interface {
	Membership(x float64) float64
}

// Defuzzifier reduces a curve over [min, max] to a crisp value. ok is false
// when the curve is zero at every sample, in which case value is meaningless
// and the caller applies its fallback policy.
type Defuzzifier interface {
	Defuzzify(c Curve, min, max float64) (value float64, ok bool)
	Name() string
}

// Centroid returns the weighted mean of Resolution midpoint samples:
// x_i = min + (i+0.5)*dx, value = sum(x_i*mu_i) / sum(mu_i).
type Centroid struct {
	Resolution int
}

// Defuzzify implements Defuzzifier.
func (c Centroid) Defuzzify(curve Curve, min, max float64) (float64, bool) {
	n := c.Resolution
	dx := (max - min) / float64(n)
	var area, moment float64
	for i := 0; i < n; i++ {
		x := min + (float64(i)+0.5)*dx
		y := curve.Membership(x)
		area += y
		moment += x * y
	}
	if area <= 0 {
		return 0, false
	}
	return moment / area, true
}

// Name implements Defuzzifier.
func (Centroid) Name() string { return "Centroid" }

// Bisector returns the point that splits the sampled area in two halves,
// accumulating from both ends of the domain towards the middle.
type Bisector struct {
	Resolution int
}

// Defuzzify implements Defuzzifier.
func (b Bisector) Defuzzify(curve Curve, min, max float64) (float64, bool) {
	n := b.Resolution
	dx := (max - min) / float64(n)
	var (
		left, right         int
		leftArea, rightArea float64
		xLeft, xRight       = min, max
	)
	for k := 0; k < n; k++ {
		if leftArea <= rightArea {
			xLeft = min + (float64(left)+0.5)*dx
			leftArea += curve.Membership(xLeft)
			left++
		} else {
			xRight = max - (float64(right)+0.5)*dx
			rightArea += curve.Membership(xRight)
			right++
		}
	}
	total := leftArea + rightArea
	if total <= 0 {
		return 0, false
	}
	return (leftArea*xRight + rightArea*xLeft) / total, true
}

// Name implements Defuzzifier.
func (Bisector) Name() string { return "Bisector" }

// MeanOfMaximum returns the midpoint between the smallest and largest
// samples that reach the curve's maximum.
type MeanOfMaximum struct {
	Resolution int
}

// Defuzzify implements Defuzzifier.
func (m MeanOfMaximum) Defuzzify(curve Curve, min, max float64) (float64, bool) {
	n := m.Resolution
	dx := (max - min) / float64(n)
	var ymax, xSmallest, xLargest float64
	same := false
	for i := 0; i < n; i++ {
		x := min + (float64(i)+0.5)*dx
		y := curve.Membership(x)
		switch {
		case y > ymax:
			ymax = y
			xSmallest, xLargest = x, x
			same = true
		case y == ymax && same && y > 0:
			xLargest = x
		case y < ymax:
			same = false
		}
	}
	if ymax <= 0 {
		return 0, false
	}
	return (xSmallest + xLargest) / 2, true
}

// Name implements Defuzzifier.
func (MeanOfMaximum) Name() string { return "MeanOfMaximum" }

func resolutionOf(d Defuzzifier) int {
	switch v := d.(type) {
	case Centroid:
		return v.Resolution
	case Bisector:
		return v.Resolution
	case MeanOfMaximum:
		return v.Resolution
	default:
		return DefaultResolution
	}
}
