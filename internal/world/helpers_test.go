package world

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type viewEvent struct {
	op    string
	objs  []Locateable
	seen  []Sighting
	fresh bool
	move  MoveKind
}

// recView records every notification. When seq is set, events are also
// appended there prefixed with name, so ordering across views can be checked.
type recView struct {
	name string
	seq  *seqLog

	mu  sync.Mutex
	evs []viewEvent
}

type seqLog struct {
	mu      sync.Mutex
	entries []string
}

func (s *seqLog) add(e string) {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
}

func (s *seqLog) index(e string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, have := range s.entries {
		if have == e {
			return i
		}
	}
	return -1
}

func (v *recView) record(ev viewEvent) {
	v.mu.Lock()
	v.evs = append(v.evs, ev)
	v.mu.Unlock()
	if v.seq != nil {
		for _, o := range ev.objs {
			v.seq.add(v.name + ":" + ev.op + ":" + nameOf(o))
		}
	}
}

func (v *recView) add(op string, seen []Sighting, fresh bool, move MoveKind) {
	objs := make([]Locateable, len(seen))
	for i, s := range seen {
		objs[i] = s.Object
	}
	v.record(viewEvent{op: op, objs: objs, seen: seen, fresh: fresh, move: move})
}

func (v *recView) PlayersInScope(seen []Sighting)           { v.add("in", seen, false, 0) }
func (v *recView) NPCsInScope(seen []Sighting)              { v.add("in", seen, false, 0) }
func (v *recView) ItemsDropped(seen []Sighting, fresh bool) { v.add("dropped", seen, fresh, 0) }
func (v *recView) MoneyDropped(seen []Sighting, fresh bool) { v.add("dropped", seen, fresh, 0) }
func (v *recView) ObjectsOutOfScope(seen []Sighting)        { v.add("out", seen, false, 0) }
func (v *recView) DropsDisappeared(seen []Sighting)         { v.add("gone", seen, false, 0) }
func (v *recView) ObjectMoved(s Sighting, kind MoveKind) {
	v.add("moved", []Sighting{s}, false, kind)
}

func (v *recView) events() []viewEvent {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]viewEvent, len(v.evs))
	copy(out, v.evs)
	return out
}

func (v *recView) reset() {
	v.mu.Lock()
	v.evs = nil
	v.mu.Unlock()
}

// count returns how often obj appeared in events with the given op.
func (v *recView) count(op string, obj Locateable) int {
	n := 0
	for _, ev := range v.events() {
		if ev.op != op {
			continue
		}
		for _, o := range ev.objs {
			if o == obj {
				n++
			}
		}
	}
	return n
}

// ids returns the ids reported with op, in delivery order.
func (v *recView) ids(op string) []ObjectID {
	var out []ObjectID
	for _, ev := range v.events() {
		if ev.op != op {
			continue
		}
		for _, s := range ev.seen {
			out = append(out, s.ID)
		}
	}
	return out
}

// scopeEvents counts every event except moves.
func (v *recView) scopeEvents() int {
	n := 0
	for _, ev := range v.events() {
		if ev.op != "moved" {
			n += len(ev.objs)
		}
	}
	return n
}

func nameOf(o Locateable) string {
	switch x := o.(type) {
	case *Player:
		return x.Name()
	case *NPC:
		return x.Name()
	case *testItem:
		return x.name
	}
	return o.Kind().String()
}

// testItem is a bare locateable for bucket level tests.
type testItem struct {
	Placement
	name string
	kind Kind
}

func (t *testItem) Kind() Kind { return t.kind }

func newItem(name string, k Kind, x, y uint8) *testItem {
	it := &testItem{name: name, kind: k}
	it.SetPosition(Point{X: x, Y: y})
	return it
}

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

func newTestMap(t *testing.T, side, cellSide int) *GameMap {
	t.Helper()
	gm, err := NewGameMap(MapDefinition{ID: 1, Name: "test", Side: side, CellSide: cellSide}, nil, testLogger(t))
	if err != nil {
		t.Fatalf("NewGameMap: %v", err)
	}
	t.Cleanup(gm.Close)
	return gm
}

func newTestPlayer(name string, at Point, infoRange uint8, v View) *Player {
	p := NewPlayer(PlayerConfig{
		Name:      name,
		InfoRange: infoRange,
		View:      v,
		Delays:    FixedStepDelay(time.Millisecond),
		Log:       zap.NewNop(),
	})
	p.SetPosition(at)
	return p
}

func newTestNPC(name string, at Point) *NPC {
	return NewNPC(NPCConfig{
		Name:   name,
		Spawn:  at,
		Roam:   4,
		Delays: FixedStepDelay(time.Millisecond),
		Log:    zap.NewNop(),
	})
}

func mustAdd(t *testing.T, gm *GameMap, obj Locateable) {
	t.Helper()
	if err := gm.Add(obj); err != nil {
		t.Fatalf("Add %s: %v", nameOf(obj), err)
	}
}

func waitDone(t *testing.T, w *Walker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("walk did not finish")
	}
}
