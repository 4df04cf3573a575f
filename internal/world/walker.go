package world

import (
	"context"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// DefaultStepDelay is used when no provider is set or it reports a
// non-positive delay.
const DefaultStepDelay = 500 * time.Millisecond

// WalkStep is one precomputed step of a walk.
type WalkStep struct {
	Dir Direction
	To  Point
}

// Walkable is an object that can be driven by a Walker.
type Walkable interface {
	Locateable
	SetDirection(Direction)
	// CanWalk is checked before every step; false ends the walk.
	CanWalk() bool
}

// StepDelayProvider decides how long an actor waits between steps. It is
// asked again before every step, so speed changes apply mid-walk.
type StepDelayProvider interface {
	StepDelay(w Walkable) time.Duration
}

// StepDelayFunc adapts a function to StepDelayProvider.
type StepDelayFunc func(Walkable) time.Duration

func (f StepDelayFunc) StepDelay(w Walkable) time.Duration { return f(w) }

// FixedStepDelay always reports the same delay.
type FixedStepDelay time.Duration

func (d FixedStepDelay) StepDelay(Walkable) time.Duration { return time.Duration(d) }

// Walker moves its owner along a step queue, one step per delay, on its own
// goroutine. At most one walk is active at a time; starting a walk cancels
// the previous one.
type Walker struct {
	owner  Walkable
	delays StepDelayProvider
	log    *zap.Logger

	// stepMu is held for the duration of one step so a replaced walk can
	// never step concurrently with its successor. Lock order: stepMu, then
	// the owner's move lock, then mu.
	stepMu deadlock.Mutex

	mu     deadlock.Mutex
	gen    uint64
	target Point
	steps  []WalkStep
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWalker(owner Walkable, delays StepDelayProvider, log *zap.Logger) *Walker {
	if delays == nil {
		delays = FixedStepDelay(DefaultStepDelay)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Walker{owner: owner, delays: delays, log: log}
}

// WalkTo cancels any walk in flight and starts walking steps towards target.
// An empty step list only stops the current walk.
func (w *Walker) WalkTo(target Point, steps []WalkStep) {
	if len(steps) == 0 {
		w.Stop()
		return
	}
	queue := make([]WalkStep, len(steps))
	copy(queue, steps)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.gen++
	gen := w.gen
	w.target = target
	w.steps = queue
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go w.loop(ctx, gen, done)
}

// Stop ends the current walk. It is idempotent and safe to call while a step
// is in progress: it waits for that step, so once Stop returns no step of the
// stopped walk can change the owner's position.
//
// Stop must not be called while holding the owner's move lock.
func (w *Walker) Stop() {
	w.mu.Lock()
	w.gen++
	w.resetLocked()
	w.mu.Unlock()

	w.stepMu.Lock()
	w.stepMu.Unlock()
}

func (w *Walker) IsWalking() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// Target returns the destination of the current walk.
func (w *Walker) Target() (Point, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target, w.cancel != nil
}

func (w *Walker) StepsLeft() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.steps)
}

// Done returns a channel closed when the current walk's goroutine has exited.
// With no walk started it returns a closed channel.
func (w *Walker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return w.done
}

func (w *Walker) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen == gen
}

func (w *Walker) resetLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.steps = nil
}

// finish ends walk gen unless it has been replaced already.
func (w *Walker) finish(gen uint64) {
	w.mu.Lock()
	if w.gen == gen {
		w.resetLocked()
	}
	w.mu.Unlock()
}

func (w *Walker) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer w.finish(gen)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	next := time.Now()
	for {
		delay := w.delays.StepDelay(w.owner)
		if delay <= 0 {
			delay = DefaultStepDelay
		}
		next = next.Add(delay)
		// Oversleeping is paid back on the following steps, but never by
		// more than one step at once.
		if behind := time.Since(next); behind > delay {
			next = time.Now().Add(-delay)
		}

		if wait := time.Until(next); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		if !w.owner.CanWalk() {
			return
		}
		if !w.step(ctx, gen) {
			return
		}
	}
}

// step performs the next queued step. Returns false when the walk is over.
func (w *Walker) step(ctx context.Context, gen uint64) bool {
	w.stepMu.Lock()
	defer w.stepMu.Unlock()

	w.mu.Lock()
	if w.gen != gen || ctx.Err() != nil || len(w.steps) == 0 {
		w.mu.Unlock()
		return false
	}
	st := w.steps[0]
	w.steps = w.steps[1:]
	last := len(w.steps) == 0
	w.mu.Unlock()

	gm := w.owner.placement().Map()
	if gm == nil || !gm.Contains(st.To) {
		return false
	}
	if !gm.walkStep(w.owner, st, func() bool { return w.current(gen) }) {
		w.log.Debug("walk step rejected",
			zap.Uint16("id", uint16(w.owner.ID())),
			zap.Stringer("to", st.To),
		)
		return false
	}
	return !last
}
