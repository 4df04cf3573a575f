package world

import (
	"errors"
	"math/rand"
	"testing"

	"go.uber.org/zap"
)

func TestNewBucketMapValidation(t *testing.T) {
	tests := []struct {
		side, cell int
		ok         bool
	}{
		{256, 8, true},
		{256, 256, true},
		{64, 1, true},
		{256, 7, false},
		{256, 0, false},
		{0, 8, false},
		{512, 8, false},
	}
	for _, tt := range tests {
		_, err := NewBucketMap(tt.side, tt.cell, zap.NewNop())
		if tt.ok && err != nil {
			t.Errorf("side=%d cell=%d: unexpected error %v", tt.side, tt.cell, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidGrid) {
			t.Errorf("side=%d cell=%d: err = %v, want ErrInvalidGrid", tt.side, tt.cell, err)
		}
	}
}

func TestCellOf(t *testing.T) {
	m, err := NewBucketMap(64, 8, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if m.Cells() != 8 {
		t.Fatalf("cells = %d, want 8", m.Cells())
	}
	b := m.CellOf(Point{X: 17, Y: 63})
	if cx, cy := b.Cell(); cx != 2 || cy != 7 {
		t.Fatalf("cell = (%d,%d), want (2,7)", cx, cy)
	}
	if m.CellOf(Point{X: 16, Y: 56}) != b {
		t.Fatal("points of one cell map to different buckets")
	}
	if m.CellOf(Point{X: 64, Y: 0}) != nil {
		t.Fatal("off-map point has a bucket")
	}
}

func TestBucketsInRangeQuadratic(t *testing.T) {
	m, _ := NewBucketMap(256, 8, zap.NewNop())

	// range 12 on 8-tile cells reaches two cells out: 5×5.
	if n := len(m.BucketsInRange(Point{X: 100, Y: 100}, 12, MetricQuadratic)); n != 25 {
		t.Fatalf("centre: %d buckets, want 25", n)
	}
	// Clipped at the corner: 3×3.
	if n := len(m.BucketsInRange(Point{X: 0, Y: 0}, 12, MetricQuadratic)); n != 9 {
		t.Fatalf("corner: %d buckets, want 9", n)
	}
	if n := len(m.BucketsInRange(Point{X: 255, Y: 0}, 12, MetricQuadratic)); n != 9 {
		t.Fatalf("far corner: %d buckets, want 9", n)
	}

	// Same result for every tile of a cell.
	ref := m.BucketsInRange(Point{X: 96, Y: 96}, 12, MetricQuadratic)
	other := m.BucketsInRange(Point{X: 103, Y: 103}, 12, MetricQuadratic)
	if len(ref) != len(other) {
		t.Fatalf("len %d vs %d", len(ref), len(other))
	}
	for i := range ref {
		if ref[i] != other[i] {
			t.Fatalf("bucket %d differs: %s vs %s", i, ref[i], other[i])
		}
	}
}

func TestBucketsInRangeQuadraticCoversRange(t *testing.T) {
	m, _ := NewBucketMap(256, 8, zap.NewNop())
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		p := Point{X: uint8(rng.Intn(256)), Y: uint8(rng.Intn(256))}
		r := uint8(1 + rng.Intn(30))
		set := make(map[*Bucket]bool)
		for _, b := range m.BucketsInRange(p, r, MetricQuadratic) {
			set[b] = true
		}
		q := Point{X: uint8(clamp(int(p.X)+rng.Intn(2*int(r)+1)-int(r), 0, 255)), Y: p.Y}
		if !set[m.CellOf(q)] {
			t.Fatalf("p=%s r=%d: %s not covered", p, r, q)
		}
	}
}

func TestBucketsInRangeExact(t *testing.T) {
	m, _ := NewBucketMap(256, 8, zap.NewNop())
	p := Point{X: 100, Y: 100}
	quad := m.BucketsInRange(p, 12, MetricQuadratic)
	exact := m.BucketsInRange(p, 12, MetricExact)
	if len(exact) >= len(quad) {
		t.Fatalf("exact %d not smaller than quadratic %d", len(exact), len(quad))
	}
	own := m.CellOf(p)
	found := false
	for _, b := range exact {
		if b == own {
			found = true
		}
	}
	if !found {
		t.Fatal("exact range misses the own cell")
	}
	if m.BucketsInRange(Point{X: 255, Y: 255}, 5, MetricExact) == nil {
		t.Fatal("no buckets at map edge")
	}
}

func TestItemsInRangeMatchesBruteForce(t *testing.T) {
	m, _ := NewBucketMap(128, 8, zap.NewNop())
	rng := rand.New(rand.NewSource(7))
	var all []*testItem
	for i := 0; i < 300; i++ {
		it := newItem("i", KindNPC, uint8(rng.Intn(128)), uint8(rng.Intn(128)))
		all = append(all, it)
		m.CellOf(it.Position()).Add(it, nil)
	}

	for i := 0; i < 50; i++ {
		p := Point{X: uint8(rng.Intn(128)), Y: uint8(rng.Intn(128))}
		r := uint8(rng.Intn(25))
		got := make(map[Locateable]bool)
		for _, it := range m.ItemsInRange(p, r) {
			got[it] = true
		}
		want := 0
		for _, it := range all {
			if it.Position().Distance(p) <= float64(r) {
				want++
				if !got[it] {
					t.Fatalf("p=%s r=%d: missing %s", p, r, it.Position())
				}
			}
		}
		if len(got) != want {
			t.Fatalf("p=%s r=%d: got %d, want %d", p, r, len(got), want)
		}
	}
}
