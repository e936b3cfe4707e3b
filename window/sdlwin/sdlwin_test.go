package sdlwin

import (
	"testing"

	"github.com/boulderengine/frames/window"
	"github.com/veandco/go-sdl2/sdl"
)

func TestTranslate(t *testing.T) {
	w, h := 640, 480
	size := func() (int, int) { return w, h }

	for _, x := range []struct {
		ev   sdl.Event
		want window.Event
		ok   bool
	}{
		{&sdl.QuitEvent{Type: sdl.QUIT}, window.Event{Kind: window.Quit}, true},
		{&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_CLOSE}, window.Event{Kind: window.Quit}, true},
		{&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_MINIMIZED}, window.Event{Kind: window.Minimize}, true},
		{&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_RESTORED}, window.Event{Kind: window.Restore}, true},
		{&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_RESIZED, Data1: 320, Data2: 240},
			window.Event{Kind: window.Resize, Width: 640, Height: 480}, true},
		{&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_MOVED}, window.Event{}, false},
		{&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_A}},
			window.Event{Kind: window.KeyDown, Key: window.Key(sdl.SCANCODE_A)}, true},
		{&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Repeat: 1, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_A}}, window.Event{}, false},
		{&sdl.KeyboardEvent{Type: sdl.KEYUP, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_ESCAPE}},
			window.Event{Kind: window.KeyUp, Key: window.Key(sdl.SCANCODE_ESCAPE)}, true},
		{&sdl.MouseButtonEvent{Type: sdl.MOUSEBUTTONDOWN, Button: sdl.BUTTON_LEFT, X: 3, Y: 4},
			window.Event{Kind: window.MouseDown, Button: window.ButtonLeft, X: 3, Y: 4}, true},
		{&sdl.MouseButtonEvent{Type: sdl.MOUSEBUTTONUP, Button: sdl.BUTTON_RIGHT, X: 5, Y: 6},
			window.Event{Kind: window.MouseUp, Button: window.ButtonRight, X: 5, Y: 6}, true},
		{&sdl.MouseButtonEvent{Type: sdl.MOUSEBUTTONDOWN, Button: sdl.BUTTON_X1}, window.Event{}, false},
		{&sdl.MouseMotionEvent{Type: sdl.MOUSEMOTION, X: 7, Y: 8}, window.Event{Kind: window.MouseMove, X: 7, Y: 8}, true},
	} {
		have, ok := translate(x.ev, size)
		if ok != x.ok || have != x.want {
			t.Fatalf("translate(%T):\nhave %+v, %t\nwant %+v, %t", x.ev, have, ok, x.want, x.ok)
		}
	}

	w, h = 0, 0
	ev := &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_RESIZED}
	if have, _ := translate(ev, size); have.Kind != window.Minimize {
		t.Fatalf("translate(RESIZED to 0x0):\nhave %v\nwant %v", have.Kind, window.Minimize)
	}
}
