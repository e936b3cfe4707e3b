// Package window defines the boundary between a window system
// and the frame loop.
//
// Window systems push Events into a Queue from their event pump.
// The frame loop drains the queue once per frame and applies the
// events in order, so any state derived from input (an Input, a
// resize request) only ever changes at a well-defined point.
package window

import (
	"fmt"
	"sync"
)

// Kind is the kind of an Event.
type Kind int

// Event kinds.
const (
	Quit Kind = iota
	Resize
	Minimize
	Restore
	KeyDown
	KeyUp
	MouseDown
	MouseUp
	MouseMove
)

func (k Kind) String() string {
	switch k {
	case Quit:
		return "Quit"
	case Resize:
		return "Resize"
	case Minimize:
		return "Minimize"
	case Restore:
		return "Restore"
	case KeyDown:
		return "KeyDown"
	case KeyUp:
		return "KeyUp"
	case MouseDown:
		return "MouseDown"
	case MouseUp:
		return "MouseUp"
	case MouseMove:
		return "MouseMove"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Key identifies a keyboard key. Values are window-system
// scancodes.
type Key int

// Button identifies a mouse button.
type Button int

// Mouse buttons.
const (
	ButtonLeft Button = iota + 1
	ButtonMiddle
	ButtonRight
)

// Event is a window-system event.
type Event struct {
	Kind Kind
	// Width and Height are set for Resize.
	Width, Height int
	// Key is set for KeyDown and KeyUp.
	Key Key
	// Button is set for MouseDown and MouseUp.
	Button Button
	// X and Y are set for mouse events.
	X, Y int
}

// Queue is a FIFO of events. It is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	events []Event
}

// Push appends events to the queue.
func (q *Queue) Push(ev ...Event) {
	q.mu.Lock()
	q.events = append(q.events, ev...)
	q.mu.Unlock()
}

// Drain removes and returns every queued event.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	ev := q.events
	q.events = nil
	return ev
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Window is a window that frames are presented to.
type Window interface {
	// Pump moves pending window-system events to q.
	Pump(q *Queue)
	// DrawableSize returns the size of the drawable area in
	// pixels, which is 0x0 while the window is minimized.
	DrawableSize() (width, height int)
}
