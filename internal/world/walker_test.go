package world

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWalkerReachesTarget(t *testing.T) {
	gm := newTestMap(t, 256, 8)
	n := newTestNPC("n", Point{X: 10, Y: 10})
	mustAdd(t, gm, n)
	target := Point{X: 30, Y: 14}

	n.Walker().WalkTo(target, PlanSteps(n.Position(), target, 256))
	if got, ok := n.Walker().Target(); !ok || got != target {
		t.Fatalf("target = %s, %v", got, ok)
	}
	waitDone(t, n.Walker())

	if n.Position() != target {
		t.Fatalf("position = %s, want %s", n.Position(), target)
	}
	if n.Direction() != DirEast {
		t.Fatalf("facing %d, want east", n.Direction())
	}
	if n.Walker().IsWalking() || n.Walker().StepsLeft() != 0 {
		t.Fatal("walker not idle after draining")
	}
	if n.Bucket() != gm.AOI().Grid().CellOf(target) {
		t.Fatal("bucket does not match final position")
	}
}

func TestWalkerObserversSeeSteps(t *testing.T) {
	gm := newTestMap(t, 256, 8)
	v := &recView{}
	o := newTestPlayer("o", Point{X: 20, Y: 20}, 20, v)
	mustAdd(t, gm, o)
	n := newTestNPC("n", Point{X: 15, Y: 20})
	mustAdd(t, gm, n)

	n.Walker().WalkTo(Point{X: 25, Y: 20}, PlanSteps(n.Position(), Point{X: 25, Y: 20}, 256))
	waitDone(t, n.Walker())

	if got := v.count("moved", n); got != 10 {
		t.Fatalf("observer saw %d steps, want 10", got)
	}
	if v.scopeEvents() != 1 {
		t.Fatalf("scope events during walk: %+v", v.events())
	}
}

func TestWalkerStopIdle(t *testing.T) {
	w := NewWalker(newTestNPC("n", Point{}), nil, nil)
	w.Stop()
	w.Stop()
	if w.IsWalking() || w.StepsLeft() != 0 {
		t.Fatal("idle walker changed state")
	}
	select {
	case <-w.Done():
	default:
		t.Fatal("Done not closed on idle walker")
	}
}

func TestWalkerConcurrentStop(t *testing.T) {
	gm := newTestMap(t, 256, 8)
	n := NewNPC(NPCConfig{Name: "n", Spawn: Point{X: 0, Y: 0}, Delays: FixedStepDelay(20 * time.Millisecond)})
	mustAdd(t, gm, n)
	n.Walker().WalkTo(Point{X: 200, Y: 0}, PlanSteps(n.Position(), Point{X: 200, Y: 0}, 256))
	done := n.Walker().Done()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Walker().Stop()
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("walk loop still running after Stop")
	}
	if n.Walker().IsWalking() || n.Walker().StepsLeft() != 0 {
		t.Fatal("walker not idle after Stop")
	}
	if n.Position().X > 10 {
		t.Fatalf("walked to %s after Stop", n.Position())
	}
}

func TestWalkerNewWalkCancelsOld(t *testing.T) {
	gm := newTestMap(t, 256, 8)
	n := NewNPC(NPCConfig{Name: "n", Spawn: Point{X: 50, Y: 50}, Delays: FixedStepDelay(2 * time.Millisecond)})
	mustAdd(t, gm, n)

	first := n.Walker()
	first.WalkTo(Point{X: 150, Y: 50}, PlanSteps(n.Position(), Point{X: 150, Y: 50}, 256))
	oldDone := first.Done()
	time.Sleep(5 * time.Millisecond)

	target := Point{X: 50, Y: 60}
	n.Walker().WalkTo(target, PlanSteps(n.Position(), target, 256))
	select {
	case <-oldDone:
	case <-time.After(5 * time.Second):
		t.Fatal("old walk not cancelled")
	}
	waitDone(t, n.Walker())
	if n.Position() != target {
		t.Fatalf("position = %s, want %s", n.Position(), target)
	}
}

func TestWalkerStopsWhenFrozen(t *testing.T) {
	gm := newTestMap(t, 256, 8)
	n := newTestNPC("n", Point{X: 5, Y: 5})
	mustAdd(t, gm, n)
	n.SetFrozen(true)

	n.Walker().WalkTo(Point{X: 9, Y: 5}, PlanSteps(n.Position(), Point{X: 9, Y: 5}, 256))
	waitDone(t, n.Walker())
	if n.Position() != (Point{X: 5, Y: 5}) {
		t.Fatalf("frozen actor moved to %s", n.Position())
	}
	if n.Walker().IsWalking() {
		t.Fatal("walker still active")
	}
}

func TestWalkerAsksDelayEveryStep(t *testing.T) {
	gm := newTestMap(t, 256, 8)
	var calls atomic.Int32
	delays := StepDelayFunc(func(Walkable) time.Duration {
		calls.Add(1)
		return time.Millisecond
	})
	n := NewNPC(NPCConfig{Name: "n", Spawn: Point{X: 5, Y: 5}, Delays: delays})
	mustAdd(t, gm, n)

	n.Walker().WalkTo(Point{X: 10, Y: 5}, PlanSteps(n.Position(), Point{X: 10, Y: 5}, 256))
	waitDone(t, n.Walker())
	if c := calls.Load(); c != 5 {
		t.Fatalf("delay asked %d times, want 5", c)
	}
}

func TestWalkerKeepsAverageRate(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	gm := newTestMap(t, 256, 8)
	const delay = 10 * time.Millisecond
	n := NewNPC(NPCConfig{Name: "n", Spawn: Point{X: 0, Y: 0}, Delays: FixedStepDelay(delay)})
	mustAdd(t, gm, n)

	start := time.Now()
	n.Walker().WalkTo(Point{X: 20, Y: 0}, PlanSteps(n.Position(), Point{X: 20, Y: 0}, 256))
	waitDone(t, n.Walker())
	elapsed := time.Since(start)

	if elapsed < 19*delay {
		t.Fatalf("20 steps took %v, faster than the step delay", elapsed)
	}
	if elapsed > 40*delay {
		t.Fatalf("20 steps took %v, drift not compensated", elapsed)
	}
}

func TestRemoveStopsWalker(t *testing.T) {
	gm := newTestMap(t, 256, 8)
	n := NewNPC(NPCConfig{Name: "n", Spawn: Point{X: 0, Y: 0}, Delays: FixedStepDelay(20 * time.Millisecond)})
	mustAdd(t, gm, n)
	n.Walker().WalkTo(Point{X: 100, Y: 0}, PlanSteps(n.Position(), Point{X: 100, Y: 0}, 256))

	gm.Remove(n)
	waitDone(t, n.Walker())
	if n.Walker().IsWalking() {
		t.Fatal("walker survived removal")
	}
}

// gatedWalker blocks inside its first heading change until released, which
// holds a walk step in flight.
type gatedWalker struct {
	Placement
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedWalker(at Point) *gatedWalker {
	g := &gatedWalker{entered: make(chan struct{}), release: make(chan struct{})}
	g.SetPosition(at)
	return g
}

func (g *gatedWalker) Kind() Kind    { return KindNPC }
func (g *gatedWalker) CanWalk() bool { return true }

func (g *gatedWalker) SetDirection(d Direction) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	g.Placement.SetDirection(d)
}

func TestWalkerStopWaitsForStepInFlight(t *testing.T) {
	from := newTestMap(t, 256, 8)
	to, err := NewGameMap(MapDefinition{ID: 2, Name: "other", Side: 256, CellSide: 8}, nil, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(to.Close)
	g := newGatedWalker(Point{X: 10, Y: 10})
	mustAdd(t, from, g)
	wk := NewWalker(g, FixedStepDelay(time.Millisecond), nil)
	target := Point{X: 20, Y: 10}
	wk.WalkTo(target, PlanSteps(g.Position(), target, 256))

	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("walk never stepped")
	}

	stopped := make(chan struct{})
	go func() {
		wk.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a step was still writing")
	case <-time.After(50 * time.Millisecond):
	}
	close(g.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the step finished")
	}

	// Warp to the other map, the way the warp command does.
	dest := Point{X: 50, Y: 50}
	if !from.Remove(g) {
		t.Fatal("Remove failed")
	}
	g.SetPosition(dest)
	mustAdd(t, to, g)
	waitDone(t, wk)
	time.Sleep(10 * time.Millisecond)

	if g.Position() != dest {
		t.Fatalf("position = %s after warp, want %s", g.Position(), dest)
	}
	if g.Bucket() != to.AOI().Grid().CellOf(dest) {
		t.Fatalf("bucket = %s, want %s", g.Bucket(), to.AOI().Grid().CellOf(dest))
	}
}

func TestWalkerStepSerializesWithTeleport(t *testing.T) {
	gm := newTestMap(t, 256, 8)
	g := newGatedWalker(Point{X: 10, Y: 10})
	mustAdd(t, gm, g)
	wk := NewWalker(g, FixedStepDelay(time.Millisecond), nil)
	target := Point{X: 20, Y: 10}
	wk.WalkTo(target, PlanSteps(g.Position(), target, 256))
	<-g.entered

	// The step holds the move lock, so the teleport waits for it.
	moved := make(chan bool)
	go func() {
		wk.Stop()
		moved <- gm.Move(g, Point{X: 100, Y: 100}, MoveInstant)
	}()
	close(g.release)
	select {
	case ok := <-moved:
		if !ok {
			t.Fatal("teleport rejected")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("teleport never ran")
	}
	waitDone(t, wk)

	if g.Position() != (Point{X: 100, Y: 100}) {
		t.Fatalf("position = %s, want (100,100)", g.Position())
	}
	if g.Bucket() != gm.AOI().Grid().CellOf(g.Position()) {
		t.Fatal("bucket does not match position")
	}
}
