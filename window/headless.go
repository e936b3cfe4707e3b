package window

import "sync"

// Headless is a window without a window system. Its size and
// events are scripted by the caller, possibly from another
// goroutine.
type Headless struct {
	mu     sync.Mutex
	w, h   int
	events []Event
}

// NewHeadless returns a headless window of the given size.
func NewHeadless(width, height int) *Headless {
	return &Headless{w: width, h: height}
}

// Resize changes the size and queues the events a window system
// would deliver: Minimize for 0x0, Restore when leaving 0x0, and
// Resize otherwise.
func (hw *Headless) Resize(width, height int) {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	was := hw.w <= 0 || hw.h <= 0
	hw.w, hw.h = width, height
	switch {
	case width <= 0 || height <= 0:
		hw.events = append(hw.events, Event{Kind: Minimize})
	case was:
		hw.events = append(hw.events, Event{Kind: Restore}, Event{Kind: Resize, Width: width, Height: height})
	default:
		hw.events = append(hw.events, Event{Kind: Resize, Width: width, Height: height})
	}
}

// Send queues arbitrary events.
func (hw *Headless) Send(ev ...Event) {
	hw.mu.Lock()
	hw.events = append(hw.events, ev...)
	hw.mu.Unlock()
}

// Quit queues a Quit event.
func (hw *Headless) Quit() { hw.Send(Event{Kind: Quit}) }

// Pump implements Window.
func (hw *Headless) Pump(q *Queue) {
	hw.mu.Lock()
	ev := hw.events
	hw.events = nil
	hw.mu.Unlock()
	q.Push(ev...)
}

// DrawableSize implements Window.
func (hw *Headless) DrawableSize() (int, int) {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	return hw.w, hw.h
}
