package world

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// Migration describes one in-flight cross-bucket move. It exists only for the
// duration of the move and travels with the bucket events it causes, so a
// subscriber handling the removal from From can tell the object is heading
// to To.
type Migration struct {
	Object Locateable
	From   *Bucket
	To     *Bucket
	Kind   MoveKind
}

// Crossed reports whether the move changed buckets.
func (m Migration) Crossed() bool {
	return m.From != nil && m.To != nil && m.From != m.To
}

// BucketEvent is delivered to subscribers after a bucket membership change has
// been committed. Migration is nil for plain placement and removal.
type BucketEvent struct {
	Bucket    *Bucket
	Item      Locateable
	Migration *Migration
}

// BucketSubscriber receives membership changes of the buckets it subscribed to.
// Callbacks run synchronously on the mutating goroutine and must not block
// for long.
type BucketSubscriber interface {
	OnBucketAdded(ev BucketEvent)
	OnBucketRemoved(ev BucketEvent)
}

// Bucket is the set of objects inside one grid cell. It does not own its
// items; it only indexes them.
type Bucket struct {
	cx, cy int
	log    *zap.Logger

	mu    deadlock.RWMutex
	items map[Locateable]struct{}

	subMu deadlock.RWMutex
	subs  []BucketSubscriber
}

func newBucket(cx, cy int, log *zap.Logger) *Bucket {
	return &Bucket{
		cx:    cx,
		cy:    cy,
		log:   log,
		items: make(map[Locateable]struct{}),
	}
}

// Cell returns the bucket's grid coordinates.
func (b *Bucket) Cell() (cx, cy int) { return b.cx, b.cy }

func (b *Bucket) String() string { return fmt.Sprintf("bucket(%d,%d)", b.cx, b.cy) }

// Add inserts item and notifies subscribers once the insert is committed.
// Adding an item that is already present is a no-op returning false.
func (b *Bucket) Add(item Locateable, mig *Migration) bool {
	b.mu.Lock()
	if _, ok := b.items[item]; ok {
		b.mu.Unlock()
		return false
	}
	b.items[item] = struct{}{}
	b.mu.Unlock()

	ev := BucketEvent{Bucket: b, Item: item, Migration: mig}
	for _, s := range b.subscribers() {
		b.invoke(s, ev, true)
	}
	return true
}

// Remove deletes item and notifies subscribers once the removal is committed.
// Returns false, without notifying, if item was not present.
func (b *Bucket) Remove(item Locateable, mig *Migration) bool {
	b.mu.Lock()
	if _, ok := b.items[item]; !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.items, item)
	b.mu.Unlock()

	ev := BucketEvent{Bucket: b, Item: item, Migration: mig}
	for _, s := range b.subscribers() {
		b.invoke(s, ev, false)
	}
	return true
}

// invoke delivers one event to one subscriber. A panicking subscriber is
// logged and skipped; the remaining subscribers still get the event.
func (b *Bucket) invoke(s BucketSubscriber, ev BucketEvent, added bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bucket subscriber failed",
				zap.Stringer("bucket", b),
				zap.Uint16("object", uint16(ev.Item.ID())),
				zap.Bool("added", added),
				zap.Any("panic", r),
			)
		}
	}()
	if added {
		s.OnBucketAdded(ev)
	} else {
		s.OnBucketRemoved(ev)
	}
}

func (b *Bucket) Contains(item Locateable) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.items[item]
	return ok
}

func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Each calls fn for every item while holding the read lock, so the iteration
// sees a consistent membership. fn must not mutate this bucket. Returning
// false stops the iteration.
func (b *Bucket) Each(fn func(Locateable) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for it := range b.items {
		if !fn(it) {
			return
		}
	}
}

// Items returns a copy of the current membership.
func (b *Bucket) Items() []Locateable {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Locateable, 0, len(b.items))
	for it := range b.items {
		out = append(out, it)
	}
	return out
}

// Subscribe registers s for membership events. Subscribing twice is a no-op.
func (b *Bucket) Subscribe(s BucketSubscriber) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, have := range b.subs {
		if have == s {
			return
		}
	}
	b.subs = append(b.subs, s)
}

// Unsubscribe removes s. Events already being delivered may still reach it.
func (b *Bucket) Unsubscribe(s BucketSubscriber) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for i, have := range b.subs {
		if have == s {
			last := len(b.subs) - 1
			b.subs[i] = b.subs[last]
			b.subs[last] = nil
			b.subs = b.subs[:last]
			return
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bucket) SubscriberCount() int {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	return len(b.subs)
}

func (b *Bucket) subscribers() []BucketSubscriber {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	if len(b.subs) == 0 {
		return nil
	}
	out := make([]BucketSubscriber, len(b.subs))
	copy(out, b.subs)
	return out
}
