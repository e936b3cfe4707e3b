package window

// Input tracks keyboard and mouse state. It only changes when
// events are applied to it.
type Input struct {
	keys    map[Key]bool
	buttons map[Button]bool
	clicked map[Button]bool
	x, y    int
}

// NewInput returns an Input with nothing pressed.
func NewInput() *Input {
	return &Input{
		keys:    make(map[Key]bool),
		buttons: make(map[Button]bool),
		clicked: make(map[Button]bool),
	}
}

// Apply updates the state with ev. Events that are not input
// are ignored.
func (in *Input) Apply(ev Event) {
	switch ev.Kind {
	case KeyDown:
		in.keys[ev.Key] = true
	case KeyUp:
		delete(in.keys, ev.Key)
	case MouseDown:
		in.buttons[ev.Button] = true
		in.x, in.y = ev.X, ev.Y
	case MouseUp:
		if in.buttons[ev.Button] {
			in.clicked[ev.Button] = true
		}
		delete(in.buttons, ev.Button)
		in.x, in.y = ev.X, ev.Y
	case MouseMove:
		in.x, in.y = ev.X, ev.Y
	case Minimize:
		// Releases are not delivered to minimized windows.
		clear(in.keys)
		clear(in.buttons)
	}
}

// KeyDown reports whether k is held.
func (in *Input) KeyDown(k Key) bool { return in.keys[k] }

// MouseDown reports whether b is held.
func (in *Input) MouseDown(b Button) bool { return in.buttons[b] }

// Clicked reports whether b was pressed and released since the
// last call to EndFrame.
func (in *Input) Clicked(b Button) bool { return in.clicked[b] }

// MousePos returns the last known pointer position.
func (in *Input) MousePos() (x, y int) { return in.x, in.y }

// EndFrame forgets the clicks of the frame.
func (in *Input) EndFrame() { clear(in.clicked) }
