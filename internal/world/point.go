package world

import (
	"fmt"
	"math"
)

// Point is a tile coordinate on a map. Maps are at most 256×256 tiles.
type Point struct {
	X, Y uint8
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Distance returns the Euclidean distance between two points.
func (p Point) Distance(o Point) float64 {
	dx := float64(p.X) - float64(o.X)
	dy := float64(p.Y) - float64(o.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ChebyshevDistance returns the axis-aligned ("quadratic") distance, i.e. the
// larger of the two axis deltas.
func (p Point) ChebyshevDistance(o Point) int {
	dx := absDiff(p.X, o.X)
	dy := absDiff(p.Y, o.Y)
	if dy > dx {
		return dy
	}
	return dx
}

// InRange reports whether o lies within r of p under the given metric.
func (p Point) InRange(o Point, r uint8, m Metric) bool {
	if m == MetricQuadratic {
		return p.ChebyshevDistance(o) <= int(r)
	}
	return p.Distance(o) <= float64(r)
}

// Step returns the neighbouring point in direction d and whether it stays
// inside a map of the given side length.
func (p Point) Step(d Direction, side int) (Point, bool) {
	if !d.Valid() {
		return p, false
	}
	x := int(p.X) + headingDX[d]
	y := int(p.Y) + headingDY[d]
	if x < 0 || y < 0 || x >= side || y >= side {
		return p, false
	}
	return Point{X: uint8(x), Y: uint8(y)}, true
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// Metric selects how "nearby" is measured for range queries.
type Metric uint8

const (
	// MetricQuadratic covers everything within ±range on both axes.
	// Used for watch-sets.
	MetricQuadratic Metric = iota
	// MetricExact uses Euclidean distance. Used for area queries.
	MetricExact
)

// Direction is one of the eight headings an actor can face or step to.
type Direction uint8

const (
	DirNorth Direction = iota
	DirNorthEast
	DirEast
	DirSouthEast
	DirSouth
	DirSouthWest
	DirWest
	DirNorthWest
	dirCount
)

// Deltas indexed by heading (0-7). North decreases Y.
var headingDX = [dirCount]int{0, 1, 1, 1, 0, -1, -1, -1}
var headingDY = [dirCount]int{-1, -1, 0, 1, 1, 1, 0, -1}

func (d Direction) Valid() bool { return d < dirCount }

// DirectionTo returns the heading of the single step that brings from closer
// to to. ok is false when both points are equal.
func DirectionTo(from, to Point) (d Direction, ok bool) {
	dx := sign(int(to.X) - int(from.X))
	dy := sign(int(to.Y) - int(from.Y))
	if dx == 0 && dy == 0 {
		return 0, false
	}
	for i := Direction(0); i < dirCount; i++ {
		if headingDX[i] == dx && headingDY[i] == dy {
			return i, true
		}
	}
	return 0, false
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
