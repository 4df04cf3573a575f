package world

import (
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

type noticeKind uint8

const (
	noticeIn noticeKind = iota
	noticeOut
	noticeMoved
)

type notice struct {
	kind  noticeKind
	fresh bool
	move  MoveKind
	items []Sighting
}

// Adapter turns the bucket events seen by one watcher into scope changes for
// its View. It keeps the set of objects the watcher currently observes so
// that every object enters and leaves scope exactly once.
//
// State changes happen under mu, and notices capture a Sighting of each
// object at that point. View calls happen after mu is released, through an
// ordered queue drained by one goroutine at a time.
//
// Lock order: watchMu, then buckets, then mu. Under mu only the leaf locks of
// placements and observer sets are taken.
type Adapter struct {
	owner Watcher
	view  View
	log   *zap.Logger

	// watchMu serializes watch-set changes.
	watchMu deadlock.Mutex

	mu        deadlock.Mutex
	watched   map[*Bucket]struct{}
	observing map[Locateable]struct{}
	detached  bool
	pending   []notice
	draining  bool
}

// NewAdapter creates the adapter for owner. It stays inert until the owner is
// placed on a map.
func NewAdapter(owner Watcher, view View, log *zap.Logger) *Adapter {
	if view == nil {
		view = NopView{}
	}
	return &Adapter{
		owner:     owner,
		view:      view,
		log:       log,
		watched:   make(map[*Bucket]struct{}),
		observing: make(map[Locateable]struct{}),
		detached:  true,
	}
}

// View returns the view notifications are delivered to.
func (a *Adapter) View() View { return a.view }

func (a *Adapter) OnBucketAdded(ev BucketEvent) {
	if ev.Item == Locateable(a.owner) {
		return
	}
	a.mu.Lock()
	// Events from a bucket that just left the watch-set can still arrive.
	if _, ok := a.watched[ev.Bucket]; !ok || a.detached || !a.recordLocked(ev.Item) {
		a.mu.Unlock()
		return
	}
	a.pending = append(a.pending, notice{kind: noticeIn, fresh: ev.Migration == nil, items: []Sighting{Sight(ev.Item)}})
	a.mu.Unlock()
	a.flush()
}

func (a *Adapter) OnBucketRemoved(ev BucketEvent) {
	if ev.Item == Locateable(a.owner) {
		return
	}
	a.mu.Lock()
	if a.detached {
		a.mu.Unlock()
		return
	}
	if ev.Migration != nil {
		// Still in sight, only changing cells. The matching add is a no-op.
		if _, ok := a.watched[ev.Migration.To]; ok {
			a.mu.Unlock()
			return
		}
	}
	if !a.forgetLocked(ev.Item) {
		a.mu.Unlock()
		return
	}
	a.pending = append(a.pending, notice{kind: noticeOut, items: []Sighting{Sight(ev.Item)}})
	a.mu.Unlock()
	a.flush()
}

// ObjectsNewlyInScope records a batch of objects as observed and announces
// the ones not already known.
func (a *Adapter) ObjectsNewlyInScope(items []Locateable) {
	a.mu.Lock()
	if a.detached {
		a.mu.Unlock()
		return
	}
	fresh := make([]Sighting, 0, len(items))
	for _, it := range items {
		if it != Locateable(a.owner) && a.recordLocked(it) {
			fresh = append(fresh, Sight(it))
		}
	}
	if len(fresh) > 0 {
		a.pending = append(a.pending, notice{kind: noticeIn, items: fresh})
	}
	a.mu.Unlock()
	a.flush()
}

// ObjectsNowOutOfScope forgets a batch of objects and announces the ones that
// were observed.
func (a *Adapter) ObjectsNowOutOfScope(items []Locateable) {
	a.mu.Lock()
	gone := make([]Sighting, 0, len(items))
	for _, it := range items {
		if a.forgetLocked(it) {
			gone = append(gone, Sight(it))
		}
	}
	if len(gone) > 0 {
		a.pending = append(a.pending, notice{kind: noticeOut, items: gone})
	}
	a.mu.Unlock()
	a.flush()
}

// Observing reports whether the owner currently has obj in scope.
func (a *Adapter) Observing(obj Locateable) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.observing[obj]
	return ok
}

// ObservedObjects returns a copy of the objects currently in scope.
func (a *Adapter) ObservedObjects() []Locateable {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Locateable, 0, len(a.observing))
	for it := range a.observing {
		out = append(out, it)
	}
	return out
}

// WatchedBuckets returns a copy of the current watch-set.
func (a *Adapter) WatchedBuckets() []*Bucket {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Bucket, 0, len(a.watched))
	for b := range a.watched {
		out = append(out, b)
	}
	return out
}

func (a *Adapter) IsWatching(b *Bucket) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.watched[b]
	return ok
}

// attach arms the adapter when its owner is placed.
func (a *Adapter) attach() {
	a.mu.Lock()
	a.detached = false
	a.mu.Unlock()
}

// watch replaces the watch-set with next. Only the buckets entering or
// leaving the set are (un)subscribed. Objects whose current bucket is no
// longer watched leave scope; objects in newly watched buckets enter it.
func (a *Adapter) watch(next []*Bucket) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	nextSet := make(map[*Bucket]struct{}, len(next))
	for _, b := range next {
		nextSet[b] = struct{}{}
	}

	a.mu.Lock()
	if a.detached {
		a.mu.Unlock()
		return
	}
	var leaving, entering []*Bucket
	for b := range a.watched {
		if _, keep := nextSet[b]; !keep {
			leaving = append(leaving, b)
		}
	}
	for b := range nextSet {
		if _, had := a.watched[b]; !had {
			entering = append(entering, b)
		}
	}
	a.watched = nextSet

	var gone []Sighting
	for it := range a.observing {
		if _, ok := nextSet[it.placement().Bucket()]; !ok {
			gone = append(gone, Sight(it))
			a.forgetLocked(it)
		}
	}
	if len(gone) > 0 {
		a.pending = append(a.pending, notice{kind: noticeOut, items: gone})
	}
	a.mu.Unlock()

	for _, b := range leaving {
		b.Unsubscribe(a)
	}
	// Subscribe before listing: an object added in between is reported by
	// its event, by the listing, or by both.
	var candidates []Locateable
	for _, b := range entering {
		b.Subscribe(a)
		candidates = append(candidates, b.Items()...)
	}

	a.mu.Lock()
	var came []Sighting
	if !a.detached {
		for _, it := range candidates {
			if it == Locateable(a.owner) {
				continue
			}
			// Skip objects that left the watch-set after the listing.
			if _, ok := a.watched[it.placement().Bucket()]; !ok {
				continue
			}
			if a.recordLocked(it) {
				came = append(came, Sight(it))
			}
		}
	}
	if len(came) > 0 {
		a.pending = append(a.pending, notice{kind: noticeIn, items: came})
	}
	a.mu.Unlock()
	a.flush()
}

// release unsubscribes from everything, puts every observed object out of
// scope and disarms the adapter. Used when the owner leaves its map.
func (a *Adapter) release() {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	a.mu.Lock()
	watched := a.watched
	a.watched = make(map[*Bucket]struct{})
	gone := make([]Sighting, 0, len(a.observing))
	for it := range a.observing {
		gone = append(gone, Sight(it))
		a.forgetLocked(it)
	}
	if len(gone) > 0 {
		a.pending = append(a.pending, notice{kind: noticeOut, items: gone})
	}
	a.detached = true
	a.mu.Unlock()

	for b := range watched {
		b.Unsubscribe(a)
	}
	a.flush()
}

// objectMoved forwards a move of an observed object to the view.
func (a *Adapter) objectMoved(obj Locateable, kind MoveKind) {
	a.mu.Lock()
	if _, ok := a.observing[obj]; !ok || a.detached {
		a.mu.Unlock()
		return
	}
	a.pending = append(a.pending, notice{kind: noticeMoved, move: kind, items: []Sighting{Sight(obj)}})
	a.mu.Unlock()
	a.flush()
}

// recordLocked adds it to the observed set and links the owner as one of its
// observers. Returns false if it was already observed.
func (a *Adapter) recordLocked(it Locateable) bool {
	if _, ok := a.observing[it]; ok {
		return false
	}
	a.observing[it] = struct{}{}
	if o, ok := it.(Observable); ok {
		o.Observers().Add(a.owner)
	}
	return true
}

func (a *Adapter) forgetLocked(it Locateable) bool {
	if _, ok := a.observing[it]; !ok {
		return false
	}
	delete(a.observing, it)
	if o, ok := it.(Observable); ok {
		o.Observers().Remove(a.owner)
	}
	return true
}

// flush delivers queued notices. Only one goroutine drains at a time, which
// keeps View calls ordered; the others leave their notices to it.
func (a *Adapter) flush() {
	a.mu.Lock()
	if a.draining {
		a.mu.Unlock()
		return
	}
	a.draining = true
	for len(a.pending) > 0 {
		batch := a.pending
		a.pending = nil
		a.mu.Unlock()
		for _, n := range batch {
			a.deliver(n)
		}
		a.mu.Lock()
	}
	a.draining = false
	a.mu.Unlock()
}

func (a *Adapter) deliver(n notice) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("view notification failed",
				zap.Uint16("owner", uint16(a.owner.ID())),
				zap.Any("panic", r),
			)
		}
	}()
	switch n.kind {
	case noticeMoved:
		a.view.ObjectMoved(n.items[0], n.move)
	case noticeIn:
		byKind := splitByKind(n.items)
		if v := byKind[KindPlayer]; len(v) > 0 {
			a.view.PlayersInScope(v)
		}
		if v := byKind[KindNPC]; len(v) > 0 {
			a.view.NPCsInScope(v)
		}
		if v := byKind[KindDroppedItem]; len(v) > 0 {
			a.view.ItemsDropped(v, n.fresh)
		}
		if v := byKind[KindDroppedMoney]; len(v) > 0 {
			a.view.MoneyDropped(v, n.fresh)
		}
	case noticeOut:
		var actors, drops []Sighting
		for _, it := range n.items {
			if it.Kind.IsDrop() {
				drops = append(drops, it)
			} else {
				actors = append(actors, it)
			}
		}
		if len(actors) > 0 {
			a.view.ObjectsOutOfScope(actors)
		}
		if len(drops) > 0 {
			a.view.DropsDisappeared(drops)
		}
	}
}
