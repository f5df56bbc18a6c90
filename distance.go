package progknn

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// DistanceMetric provides distance computation with optional reduced distance
// for tree-pruning optimizations (e.g., squared Euclidean skips sqrt).
type DistanceMetric interface {
	Distance(a, b []float64) float64
	ReducedDistance(a, b []float64) float64
	// DistToRdist converts a true distance into reduced-distance space so it
	// can be compared against box lower bounds.
	DistToRdist(d float64) float64
}

// boxBounded is implemented by the Lp metrics. Their distance decomposes
// along the coordinate axes, which lets a KD-tree prune whole boxes, and
// obeys the triangle inequality that ball tree bounds rely on.
type boxBounded interface {
	// axisPower is the exponent applied to per-axis gaps before summing.
	// +Inf means the max of the gaps (Chebyshev).
	axisPower() float64
}

// DistanceFunc adapts a plain function into a DistanceMetric.
// ReducedDistance delegates to the same function. Tree searches cannot
// prune with a DistanceFunc and scan every leaf.
type DistanceFunc func(a, b []float64) float64

func (f DistanceFunc) Distance(a, b []float64) float64        { return f(a, b) }
func (f DistanceFunc) ReducedDistance(a, b []float64) float64 { return f(a, b) }
func (f DistanceFunc) DistToRdist(d float64) float64          { return d }

// EuclideanMetric computes the Euclidean (L2) distance.
// ReducedDistance returns squared Euclidean distance (skips sqrt).
type EuclideanMetric struct{}

func (EuclideanMetric) Distance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

func (EuclideanMetric) ReducedDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (EuclideanMetric) DistToRdist(d float64) float64 { return d * d }
func (EuclideanMetric) axisPower() float64            { return 2 }

// ManhattanMetric computes the Manhattan (L1 / city-block) distance.
type ManhattanMetric struct{}

func (ManhattanMetric) Distance(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

func (m ManhattanMetric) ReducedDistance(a, b []float64) float64 { return m.Distance(a, b) }
func (ManhattanMetric) DistToRdist(d float64) float64            { return d }
func (ManhattanMetric) axisPower() float64                       { return 1 }

// ChebyshevMetric computes the Chebyshev (L-infinity) distance.
type ChebyshevMetric struct{}

func (ChebyshevMetric) Distance(a, b []float64) float64 {
	return floats.Distance(a, b, math.Inf(1))
}

func (m ChebyshevMetric) ReducedDistance(a, b []float64) float64 { return m.Distance(a, b) }
func (ChebyshevMetric) DistToRdist(d float64) float64            { return d }
func (ChebyshevMetric) axisPower() float64                       { return math.Inf(1) }

// MinkowskiMetric computes the Minkowski distance parameterized by P.
// P must be >= 1. Panics if P < 1.
// ReducedDistance returns sum(|a[i]-b[i]|^P) without the final root.
type MinkowskiMetric struct {
	P float64
}

func (m MinkowskiMetric) Distance(a, b []float64) float64 {
	m.check()
	return floats.Distance(a, b, m.P)
}

func (m MinkowskiMetric) ReducedDistance(a, b []float64) float64 {
	m.check()
	var sum float64
	for i := range a {
		sum += math.Pow(math.Abs(a[i]-b[i]), m.P)
	}
	return sum
}

func (m MinkowskiMetric) DistToRdist(d float64) float64 { return math.Pow(d, m.P) }
func (m MinkowskiMetric) axisPower() float64            { return m.P }

func (m MinkowskiMetric) check() {
	if m.P < 1 {
		panic("MinkowskiMetric: P must be >= 1")
	}
}

// CosineMetric computes the cosine distance: 1 - cosine_similarity.
// A zero vector has no direction: its distance is 0 to another zero vector
// and 1 to anything else.
type CosineMetric struct{}

func (CosineMetric) Distance(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	switch {
	case na == 0 && nb == 0:
		return 0
	case na == 0 || nb == 0:
		return 1
	}
	return 1.0 - floats.Dot(a, b)/(na*nb)
}

func (m CosineMetric) ReducedDistance(a, b []float64) float64 { return m.Distance(a, b) }
func (CosineMetric) DistToRdist(d float64) float64            { return d }

// MetricByName resolves a metric from its configuration name. p is only
// used by "minkowski".
func MetricByName(name string, p float64) (DistanceMetric, error) {
	switch strings.ToLower(name) {
	case "", "euclidean", "l2":
		return EuclideanMetric{}, nil
	case "manhattan", "l1":
		return ManhattanMetric{}, nil
	case "chebyshev", "linf":
		return ChebyshevMetric{}, nil
	case "cosine":
		return CosineMetric{}, nil
	case "minkowski":
		if p < 1 {
			return nil, fmt.Errorf("%w: minkowski p must be >= 1, got %f", ErrInvalidConfig, p)
		}
		return MinkowskiMetric{P: p}, nil
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, name)
	}
}

// minRdistToBox returns a lower bound in reduced-distance space on the
// distance between point and any point inside the axis-aligned box
// [lo, hi]. ok is false when the metric offers no such bound.
func minRdistToBox(metric DistanceMetric, point, lo, hi []float64) (rdist float64, ok bool) {
	bb, ok := metric.(boxBounded)
	if !ok {
		return 0, false
	}
	p := bb.axisPower()
	for j := range point {
		var d float64
		if point[j] < lo[j] {
			d = lo[j] - point[j]
		} else if point[j] > hi[j] {
			d = point[j] - hi[j]
		}
		switch {
		case math.IsInf(p, 1):
			if d > rdist {
				rdist = d
			}
		case p == 1:
			rdist += d
		case p == 2:
			rdist += d * d
		default:
			rdist += math.Pow(d, p)
		}
	}
	return rdist, true
}
