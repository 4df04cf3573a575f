package world

import (
	"errors"
	"sync"

	"github.com/sasha-s/go-deadlock"
)

var (
	ErrInvalidGrid   = errors.New("world: cell side must evenly divide map side")
	ErrAlreadyPlaced = errors.New("world: object is already placed on a map")
	ErrNoFreeID      = errors.New("world: object id range exhausted")
	ErrOutOfBounds   = errors.New("world: position outside map")
	ErrUnknownMap    = errors.New("world: unknown map")
)

// ObjectID identifies a placed object within its map. Ids are compact and
// recycled, so they are only meaningful while the object is placed.
type ObjectID uint16

// Kind is the concrete category of a placed object. Clients are notified per
// kind, and drops draw their ids from a separate range.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindNPC
	KindDroppedItem
	KindDroppedMoney
)

func (k Kind) IsDrop() bool { return k == KindDroppedItem || k == KindDroppedMoney }

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNPC:
		return "npc"
	case KindDroppedItem:
		return "item"
	case KindDroppedMoney:
		return "money"
	}
	return "unknown"
}

// Locateable is anything that can be placed on a map. Implementations embed
// Placement, which provides everything but Kind.
type Locateable interface {
	ID() ObjectID
	Kind() Kind
	Position() Point
	SetPosition(Point)
	placement() *Placement
}

// Observable objects keep the set of watchers that currently see them, so
// their own actions can be broadcast.
type Observable interface {
	Locateable
	Observers() *ObserverSet
}

// Watcher is an observable object that also watches the buckets around it.
type Watcher interface {
	Observable
	InfoRange() uint8
	Adapter() *Adapter
}

// Placement holds the location state of a placed object.
type Placement struct {
	mu     deadlock.RWMutex
	id     ObjectID
	pos    Point
	dir    Direction
	gm     *GameMap
	bucket *Bucket

	// moveMu serializes moves of this object only.
	moveMu deadlock.Mutex
}

func (p *Placement) placement() *Placement { return p }

func (p *Placement) ID() ObjectID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.id
}

func (p *Placement) Position() Point {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pos
}

func (p *Placement) SetPosition(pt Point) {
	p.mu.Lock()
	p.pos = pt
	p.mu.Unlock()
}

func (p *Placement) Direction() Direction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dir
}

func (p *Placement) SetDirection(d Direction) {
	p.mu.Lock()
	p.dir = d
	p.mu.Unlock()
}

// Map returns the map the object is placed on, or nil.
func (p *Placement) Map() *GameMap {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gm
}

// Bucket returns the bucket currently indexing the object, or nil when the
// object is not placed.
func (p *Placement) Bucket() *Bucket {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bucket
}

// MoveLock is the lock that serializes moves of this object.
func (p *Placement) MoveLock() sync.Locker {
	return &p.moveMu
}

func (p *Placement) setBucket(b *Bucket) {
	p.mu.Lock()
	p.bucket = b
	p.mu.Unlock()
}

// relocate sets position and bucket together so readers never observe a
// position that disagrees with the bucket.
func (p *Placement) relocate(pt Point, b *Bucket) {
	p.mu.Lock()
	p.pos = pt
	p.bucket = b
	p.mu.Unlock()
}

func (p *Placement) attach(id ObjectID, gm *GameMap) {
	p.mu.Lock()
	p.id = id
	p.gm = gm
	p.mu.Unlock()
}

func (p *Placement) detach() {
	p.mu.Lock()
	p.id = 0
	p.gm = nil
	p.bucket = nil
	p.mu.Unlock()
}

// ObserverSet is the set of watchers currently observing an object.
type ObserverSet struct {
	mu deadlock.RWMutex
	m  map[Watcher]struct{}
}

// Add returns false if w was already present.
func (s *ObserverSet) Add(w Watcher) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[Watcher]struct{})
	}
	if _, ok := s.m[w]; ok {
		return false
	}
	s.m[w] = struct{}{}
	return true
}

// Remove returns false if w was not present.
func (s *ObserverSet) Remove(w Watcher) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[w]; !ok {
		return false
	}
	delete(s.m, w)
	return true
}

func (s *ObserverSet) Contains(w Watcher) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[w]
	return ok
}

func (s *ObserverSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Snapshot copies the current observers.
func (s *ObserverSet) Snapshot() []Watcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Watcher, 0, len(s.m))
	for w := range s.m {
		out = append(out, w)
	}
	return out
}

// ForEach calls fn for every observer. fn runs without the set lock held, so
// it may block on client I/O.
func (s *ObserverSet) ForEach(fn func(Watcher)) {
	for _, w := range s.Snapshot() {
		fn(w)
	}
}
