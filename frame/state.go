package frame

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// State is the lifecycle state of a swapchain.
type State int

// Swapchain states.
const (
	// Stable means the swapchain matches the surface.
	Stable State = iota
	// RecreationRequested means the swapchain must be
	// recreated before the next frame is acquired.
	RecreationRequested
	// Recreating means a recreation is in progress.
	Recreating
)

func (s State) String() string {
	switch s {
	case Stable:
		return "Stable"
	case RecreationRequested:
		return "RecreationRequested"
	case Recreating:
		return "Recreating"
	}
	return "State(?)"
}

var errIllegalTransition = errors.New("frame: illegal state transition")

// legal[from][to] tells whether a transition is allowed.
var legal = [3][3]bool{
	Stable:              {RecreationRequested: true, Recreating: true},
	RecreationRequested: {RecreationRequested: true, Recreating: true},
	Recreating:          {Stable: true, RecreationRequested: true},
}

// lifecycle is the swapchain state machine. Its methods are safe
// for concurrent use, so a recreation request may come from any
// goroutine while the render goroutine drives the rest.
type lifecycle struct {
	mu    sync.Mutex
	state State
	// deferred is set when the surface changed while the
	// swapchain was being rebuilt.
	deferred bool
	// passes counts consecutive deferred passes.
	passes int
}

func (l *lifecycle) transition(to State) error {
	if !legal[l.state][to] {
		return errors.Wrapf(errIllegalTransition, "%v -> %v", l.state, to)
	}
	l.state = to
	return nil
}

func (l *lifecycle) get() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// request flags the swapchain for recreation. During a
// recreation, it marks the deferred flag instead.
func (l *lifecycle) request() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Recreating {
		l.deferred = true
		return
	}
	_ = l.transition(RecreationRequested)
}

// begin enters Recreating. It fails with errIllegalTransition if
// a recreation is already in progress.
func (l *lifecycle) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.transition(Recreating); err != nil {
		return err
	}
	l.deferred = false
	return nil
}

// markDeferred records a surface change observed during the
// current recreation.
func (l *lifecycle) markDeferred() {
	l.mu.Lock()
	l.deferred = true
	l.mu.Unlock()
}

// abort leaves Recreating with the swapchain still flagged.
func (l *lifecycle) abort() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transition(RecreationRequested)
}

// finish leaves Recreating after a successful rebuild. A deferred
// change yields another pass unless max consecutive passes have
// already run, in which case capped is reported and the state
// settles to Stable.
func (l *lifecycle) finish(max int) (again, capped bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.deferred {
		l.passes = 0
		return false, false, l.transition(Stable)
	}
	l.deferred = false
	if l.passes >= max {
		l.passes = 0
		return false, true, l.transition(Stable)
	}
	l.passes++
	return true, false, l.transition(RecreationRequested)
}
