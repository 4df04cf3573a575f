package world

import (
	"fmt"

	"go.uber.org/zap"
)

// MaxMapSide is the largest supported map edge length in tiles.
const MaxMapSide = 256

// BucketMap is the fixed grid of buckets covering one map. The bucket array
// is built once and never resized, so lookups need no locking.
type BucketMap struct {
	side     int
	cellSide int
	cells    int // buckets per axis
	buckets  []*Bucket
}

// NewBucketMap builds a grid of (side/cellSide)² buckets.
func NewBucketMap(side, cellSide int, log *zap.Logger) (*BucketMap, error) {
	if side <= 0 || side > MaxMapSide || cellSide <= 0 || side%cellSide != 0 {
		return nil, fmt.Errorf("%w: side=%d cell=%d", ErrInvalidGrid, side, cellSide)
	}
	cells := side / cellSide
	m := &BucketMap{
		side:     side,
		cellSide: cellSide,
		cells:    cells,
		buckets:  make([]*Bucket, cells*cells),
	}
	for cy := 0; cy < cells; cy++ {
		for cx := 0; cx < cells; cx++ {
			m.buckets[cy*cells+cx] = newBucket(cx, cy, log)
		}
	}
	return m, nil
}

func (m *BucketMap) Side() int     { return m.side }
func (m *BucketMap) CellSide() int { return m.cellSide }
func (m *BucketMap) Cells() int    { return m.cells }

// Contains reports whether p lies on the map.
func (m *BucketMap) Contains(p Point) bool {
	return int(p.X) < m.side && int(p.Y) < m.side
}

// CellOf returns the bucket owning p, or nil when p is off the map.
func (m *BucketMap) CellOf(p Point) *Bucket {
	if !m.Contains(p) {
		return nil
	}
	return m.buckets[(int(p.Y)/m.cellSide)*m.cells+int(p.X)/m.cellSide]
}

// BucketAt returns the bucket at grid coordinates (cx, cy), or nil.
func (m *BucketMap) BucketAt(cx, cy int) *Bucket {
	if cx < 0 || cy < 0 || cx >= m.cells || cy >= m.cells {
		return nil
	}
	return m.buckets[cy*m.cells+cx]
}

// BucketsInRange returns the buckets near p.
//
// MetricQuadratic yields every cell whose index is within ceil(r/cellSide) of
// p's cell on both axes. It depends only on p's cell, so positions inside one
// cell share the same result, and it covers every tile within r of any of
// them. MetricExact yields the cells whose closest tile to p is within
// Euclidean distance r, so no in-range object can be missed.
func (m *BucketMap) BucketsInRange(p Point, r uint8, metric Metric) []*Bucket {
	if !m.Contains(p) {
		return nil
	}
	var minX, maxX, minY, maxY int
	if metric == MetricQuadratic {
		k := (int(r) + m.cellSide - 1) / m.cellSide
		minX, maxX = m.cellSpan(int(p.X)/m.cellSide, k)
		minY, maxY = m.cellSpan(int(p.Y)/m.cellSide, k)
	} else {
		minX, maxX = m.span(int(p.X), int(r))
		minY, maxY = m.span(int(p.Y), int(r))
	}
	out := make([]*Bucket, 0, (maxX-minX+1)*(maxY-minY+1))
	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			if metric == MetricExact && !m.cellWithin(cx, cy, p, r) {
				continue
			}
			out = append(out, m.buckets[cy*m.cells+cx])
		}
	}
	return out
}

// ItemsInRange returns all objects whose Euclidean distance to p is at most r.
func (m *BucketMap) ItemsInRange(p Point, r uint8) []Locateable {
	var out []Locateable
	for _, b := range m.BucketsInRange(p, r, MetricExact) {
		b.Each(func(it Locateable) bool {
			if it.Position().Distance(p) <= float64(r) {
				out = append(out, it)
			}
			return true
		})
	}
	return out
}

func (m *BucketMap) cellSpan(c, k int) (lo, hi int) {
	lo, hi = c-k, c+k
	if lo < 0 {
		lo = 0
	}
	if hi >= m.cells {
		hi = m.cells - 1
	}
	return lo, hi
}

// span returns the clipped cell index range covering tiles [v-r, v+r].
func (m *BucketMap) span(v, r int) (lo, hi int) {
	lo = (v - r) / m.cellSide
	if v-r < 0 {
		lo = 0
	}
	hi = (v + r) / m.cellSide
	if hi >= m.cells {
		hi = m.cells - 1
	}
	return lo, hi
}

func (m *BucketMap) cellWithin(cx, cy int, p Point, r uint8) bool {
	nx := clamp(int(p.X), cx*m.cellSide, (cx+1)*m.cellSide-1)
	ny := clamp(int(p.Y), cy*m.cellSide, (cy+1)*m.cellSide-1)
	dx := nx - int(p.X)
	dy := ny - int(p.Y)
	return dx*dx+dy*dy <= int(r)*int(r)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
