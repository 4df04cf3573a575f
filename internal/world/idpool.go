package world

import "github.com/sasha-s/go-deadlock"

// Id ranges. The client tells drops from actors partly by id, so the two
// ranges never overlap.
const (
	ActorIDMin ObjectID = 1
	ActorIDMax ObjectID = 0x7FFF
	DropIDMin  ObjectID = 0x8000
	DropIDMax  ObjectID = 0xFFFE
)

// IDPool hands out ids from a closed range. Released ids go to a FIFO free
// list and are only reused after the fresh part of the range is used up, so
// a recycled id is as old as possible when it comes back.
type IDPool struct {
	mu       deadlock.Mutex
	min, max ObjectID
	next     uint32 // next never-issued id; uint32 so max+1 does not wrap
	free     []ObjectID
	inUse    map[ObjectID]struct{}
}

func NewIDPool(min, max ObjectID) *IDPool {
	return &IDPool{
		min:   min,
		max:   max,
		next:  uint32(min),
		free:  make([]ObjectID, 0, 64),
		inUse: make(map[ObjectID]struct{}, 256),
	}
}

// Acquire returns an unused id, or false when the range is exhausted.
func (p *IDPool) Acquire() (ObjectID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var id ObjectID
	switch {
	case p.next <= uint32(p.max):
		id = ObjectID(p.next)
		p.next++
	case len(p.free) > 0:
		id = p.free[0]
		p.free = p.free[1:]
	default:
		return 0, false
	}
	p.inUse[id] = struct{}{}
	return id, true
}

// Release returns id to the pool. Releasing an id that is not in use is
// ignored.
func (p *IDPool) Release(id ObjectID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inUse[id]; !ok {
		return
	}
	delete(p.inUse, id)
	p.free = append(p.free, id)
}

// Owns reports whether id belongs to this pool's range.
func (p *IDPool) Owns(id ObjectID) bool {
	return id >= p.min && id <= p.max
}

func (p *IDPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}
