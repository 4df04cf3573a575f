package world

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// MoveKind tells the manager who owns the position write for a move.
type MoveKind uint8

const (
	// MoveInstant repositions immediately (teleport, placement).
	MoveInstant MoveKind = iota
	// MoveWalk is a walker step. The walker writes the position itself; the
	// manager only migrates buckets.
	MoveWalk
	// MoveRespawn is a visibility-driven re-placement.
	MoveRespawn
)

func (k MoveKind) String() string {
	switch k {
	case MoveInstant:
		return "instant"
	case MoveWalk:
		return "walk"
	case MoveRespawn:
		return "respawn"
	}
	return fmt.Sprintf("MoveKind(%d)", uint8(k))
}

// Manager is the area-of-interest manager of one map. It keeps every placed
// object in the bucket matching its position and keeps every watcher
// subscribed to the buckets within its info range.
type Manager struct {
	grid *BucketMap
	log  *zap.Logger
}

func NewManager(side, cellSide int, log *zap.Logger) (*Manager, error) {
	grid, err := NewBucketMap(side, cellSide, log)
	if err != nil {
		return nil, err
	}
	return &Manager{grid: grid, log: log}, nil
}

func (m *Manager) Grid() *BucketMap { return m.grid }

// WatchSet returns the buckets w has to watch from its current position.
func (m *Manager) WatchSet(w Watcher) []*Bucket {
	return m.grid.BucketsInRange(w.Position(), w.InfoRange(), MetricQuadratic)
}

// AddObject indexes obj at its current position. Watchers additionally
// subscribe to their watch-set and receive everything already in it.
func (m *Manager) AddObject(obj Locateable) error {
	pos := obj.Position()
	b := m.grid.CellOf(pos)
	if b == nil {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}
	p := obj.placement()
	p.mu.Lock()
	if p.bucket != nil {
		p.mu.Unlock()
		return ErrAlreadyPlaced
	}
	p.bucket = b
	p.mu.Unlock()

	b.Add(obj, nil)
	if w, ok := obj.(Watcher); ok {
		a := w.Adapter()
		a.attach()
		a.watch(m.WatchSet(w))
	}
	return nil
}

// RemoveObject takes obj out of its cached bucket; the position is not
// consulted since a walk may have moved it already. Watchers stop watching
// and everything they observed goes out of scope. Returns false if obj was
// not placed.
func (m *Manager) RemoveObject(obj Locateable) bool {
	p := obj.placement()
	p.mu.Lock()
	b := p.bucket
	p.bucket = nil
	p.mu.Unlock()
	if b == nil {
		return false
	}

	b.Remove(obj, nil)
	if w, ok := obj.(Watcher); ok {
		w.Adapter().release()
	}
	return true
}

// MoveObject moves obj to target while holding lock, the object's own move
// lock. Inside one bucket only the position changes, and for MoveWalk not
// even that. Across buckets the object is removed from the old bucket before
// it is added to the new one, and a watcher's watch-set is updated by delta.
//
// Every subscriber of the old bucket has received the removal before any
// subscriber of the new bucket receives the addition; both are delivered on
// this goroutine with lock held.
func (m *Manager) MoveObject(obj Locateable, target Point, lock sync.Locker, kind MoveKind) (Migration, bool) {
	to := m.grid.CellOf(target)
	if to == nil {
		return Migration{}, false
	}

	lock.Lock()
	p := obj.placement()
	from := p.Bucket()
	if from == nil {
		lock.Unlock()
		return Migration{}, false
	}
	mig := Migration{Object: obj, From: from, To: to, Kind: kind}
	if from == to {
		if kind != MoveWalk {
			p.SetPosition(target)
		}
	} else {
		// The cached bucket points at the destination before the old bucket
		// reports the removal, so a watcher recomputing its watch-set
		// concurrently classifies obj by where it is going.
		p.relocate(target, to)
		from.Remove(obj, &mig)
		to.Add(obj, &mig)
		if w, ok := obj.(Watcher); ok {
			w.Adapter().watch(m.WatchSet(w))
		}
	}
	lock.Unlock()

	if o, ok := obj.(Observable); ok {
		o.Observers().ForEach(func(w Watcher) {
			w.Adapter().objectMoved(obj, kind)
		})
	}
	return mig, true
}

// GetInRange returns every placed object within Euclidean distance r of p.
func (m *Manager) GetInRange(p Point, r uint8) []Locateable {
	return m.grid.ItemsInRange(p, r)
}
