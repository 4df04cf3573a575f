package world

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// armedAdapter returns a player whose adapter watches exactly the given
// buckets, without placing the player.
func armedAdapter(v View, watched ...*Bucket) *Player {
	p := newTestPlayer("owner", Point{}, 8, v)
	p.Adapter().attach()
	p.Adapter().watch(watched)
	return p
}

func TestAdapterSuppressesRemovalIntoWatchedBucket(t *testing.T) {
	m, _ := NewBucketMap(256, 8, zap.NewNop())
	oldB, newB := m.BucketAt(10, 10), m.BucketAt(10, 11)
	v := &recView{}
	owner := armedAdapter(v, newB)
	x := newTestNPC("x", Point{X: 80, Y: 80})
	owner.Adapter().ObjectsNewlyInScope([]Locateable{x})
	v.reset()

	mig := &Migration{Object: x, From: oldB, To: newB, Kind: MoveWalk}
	owner.Adapter().OnBucketRemoved(BucketEvent{Bucket: oldB, Item: x, Migration: mig})
	owner.Adapter().OnBucketAdded(BucketEvent{Bucket: newB, Item: x, Migration: mig})

	if n := v.scopeEvents(); n != 0 {
		t.Fatalf("got %d scope events, want none: %+v", n, v.events())
	}
	if !owner.Adapter().Observing(x) {
		t.Fatal("object dropped from observed set")
	}
}

func TestAdapterRemovalOutOfSight(t *testing.T) {
	m, _ := NewBucketMap(256, 8, zap.NewNop())
	watchedB, farB := m.BucketAt(10, 10), m.BucketAt(20, 20)
	v := &recView{}
	owner := armedAdapter(v, watchedB)
	x := newTestNPC("x", Point{X: 80, Y: 80})
	owner.Adapter().ObjectsNewlyInScope([]Locateable{x})

	mig := &Migration{Object: x, From: watchedB, To: farB, Kind: MoveInstant}
	owner.Adapter().OnBucketRemoved(BucketEvent{Bucket: watchedB, Item: x, Migration: mig})

	if v.count("out", x) != 1 {
		t.Fatalf("events = %+v", v.events())
	}
	if owner.Adapter().Observing(x) || x.Observers().Contains(owner) {
		t.Fatal("observation link not torn down")
	}
}

func TestAdapterAddedIsIdempotent(t *testing.T) {
	m, _ := NewBucketMap(64, 8, zap.NewNop())
	b := m.BucketAt(0, 0)
	v := &recView{}
	owner := armedAdapter(v, b)
	x := newTestNPC("x", Point{X: 1, Y: 1})

	owner.Adapter().OnBucketAdded(BucketEvent{Bucket: b, Item: x})
	owner.Adapter().OnBucketAdded(BucketEvent{Bucket: b, Item: x})
	owner.Adapter().ObjectsNewlyInScope([]Locateable{x})

	if n := v.count("in", x); n != 1 {
		t.Fatalf("in-scope delivered %d times", n)
	}
	if !x.Observers().Contains(owner) {
		t.Fatal("owner not linked as observer")
	}

	owner.Adapter().ObjectsNowOutOfScope([]Locateable{x})
	owner.Adapter().ObjectsNowOutOfScope([]Locateable{x})
	if n := v.count("out", x); n != 1 {
		t.Fatalf("out-of-scope delivered %d times", n)
	}
}

func TestAdapterIgnoresSelfAndDetached(t *testing.T) {
	v := &recView{}
	p := newTestPlayer("p", Point{}, 8, v)
	m, _ := NewBucketMap(64, 8, zap.NewNop())
	b := m.BucketAt(0, 0)

	// Not placed yet: detached.
	p.Adapter().OnBucketAdded(BucketEvent{Bucket: b, Item: newTestNPC("x", Point{})})
	p.Adapter().attach()
	p.Adapter().OnBucketAdded(BucketEvent{Bucket: b, Item: p})

	if len(v.events()) != 0 {
		t.Fatalf("events = %+v", v.events())
	}
}

func TestAdapterDropKinds(t *testing.T) {
	m, _ := NewBucketMap(64, 8, zap.NewNop())
	b := m.BucketAt(0, 0)
	v := &recView{}
	owner := armedAdapter(v, b)
	item := newItem("item", KindDroppedItem, 1, 1)
	money := newItem("money", KindDroppedMoney, 2, 2)

	owner.Adapter().OnBucketAdded(BucketEvent{Bucket: b, Item: item})
	owner.Adapter().ObjectsNewlyInScope([]Locateable{money})
	owner.Adapter().ObjectsNowOutOfScope([]Locateable{item, money})

	evs := v.events()
	if len(evs) != 3 {
		t.Fatalf("events = %+v", evs)
	}
	if evs[0].op != "dropped" || !evs[0].fresh {
		t.Fatalf("new drop: %+v", evs[0])
	}
	if evs[1].op != "dropped" || evs[1].fresh {
		t.Fatalf("drop walked into: %+v", evs[1])
	}
	if evs[2].op != "gone" || len(evs[2].objs) != 2 {
		t.Fatalf("drops leaving: %+v", evs[2])
	}
}

type panicView struct{ NopView }

func (panicView) NPCsInScope([]Sighting) { panic("client gone") }

func TestAdapterViewPanicIsolated(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := NewPlayer(PlayerConfig{Name: "p", View: panicView{}, Log: zap.New(core)})
	p.Adapter().attach()
	x := newTestNPC("x", Point{})
	y := newTestNPC("y", Point{})

	p.Adapter().ObjectsNewlyInScope([]Locateable{x})
	p.Adapter().ObjectsNewlyInScope([]Locateable{y})

	if !p.Adapter().Observing(x) || !p.Adapter().Observing(y) {
		t.Fatal("adapter state lost after view panic")
	}
	if n := logs.FilterMessage("view notification failed").Len(); n != 2 {
		t.Fatalf("logged %d failures, want 2", n)
	}
}

func TestAdapterWatchDelta(t *testing.T) {
	m, _ := NewBucketMap(64, 8, zap.NewNop())
	b1, b2, b3 := m.BucketAt(0, 0), m.BucketAt(1, 0), m.BucketAt(2, 0)
	v := &recView{}
	owner := armedAdapter(v, b1, b2)
	if b1.SubscriberCount() != 1 || b2.SubscriberCount() != 1 {
		t.Fatal("initial watch-set not subscribed")
	}

	x := newTestNPC("x", Point{X: 20, Y: 1})
	x.placement().setBucket(b3)
	b3.Add(x, nil)
	if v.count("in", x) != 0 {
		t.Fatal("unwatched bucket delivered an event")
	}

	owner.Adapter().watch([]*Bucket{b2, b3})
	if b1.SubscriberCount() != 0 || b3.SubscriberCount() != 1 {
		t.Fatal("delta not applied")
	}
	if v.count("in", x) != 1 {
		t.Fatalf("x not announced on watch: %+v", v.events())
	}

	owner.Adapter().watch([]*Bucket{b1})
	if v.count("out", x) != 1 {
		t.Fatalf("x not retracted: %+v", v.events())
	}
}

func TestAdapterIgnoresAddsFromDroppedBucket(t *testing.T) {
	m, _ := NewBucketMap(64, 8, zap.NewNop())
	b1, b2 := m.BucketAt(0, 0), m.BucketAt(1, 0)
	v := &recView{}
	owner := armedAdapter(v, b1)
	owner.Adapter().watch([]*Bucket{b2})

	// An add from b1 that was already being delivered when b1 left the
	// watch-set.
	x := newTestNPC("x", Point{X: 1, Y: 1})
	x.placement().setBucket(b1)
	owner.Adapter().OnBucketAdded(BucketEvent{Bucket: b1, Item: x})

	if owner.Adapter().Observing(x) || x.Observers().Contains(owner) {
		t.Fatal("object in an unwatched bucket became observed")
	}
	if v.count("in", x) != 0 {
		t.Fatalf("events = %+v", v.events())
	}
}

func TestAdapterWatchSkipsObjectsThatLeft(t *testing.T) {
	m, _ := NewBucketMap(64, 8, zap.NewNop())
	b1, b2, far := m.BucketAt(0, 0), m.BucketAt(1, 0), m.BucketAt(7, 7)
	v := &recView{}
	owner := armedAdapter(v, b1)

	// x is listed in b2 but its placement already points elsewhere, as for
	// an object caught mid-move when the listing was taken.
	x := newTestNPC("x", Point{X: 9, Y: 1})
	x.placement().setBucket(b2)
	b2.Add(x, nil)
	x.placement().setBucket(far)

	owner.Adapter().watch([]*Bucket{b1, b2})
	if owner.Adapter().Observing(x) {
		t.Fatal("object outside the watch-set announced")
	}
	if b2.SubscriberCount() != 1 {
		t.Fatal("entering bucket not subscribed")
	}
}
