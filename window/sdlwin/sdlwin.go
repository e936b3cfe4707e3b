// Package sdlwin implements window.Window with go-sdl2 and
// vkng.Surfacer with the vkngwrapper SDL2 integration.
//
// SDL requires that windows are created and pumped on the main
// thread; callers should lock it with runtime.LockOSThread.
package sdlwin

import (
	"unsafe"

	"github.com/boulderengine/frames/window"
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

// Window is an SDL2 window with Vulkan support.
type Window struct {
	win *sdl.Window
}

// New initializes SDL video and opens a resizable window.
func New(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "sdlwin: init")
	}
	win, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "sdlwin: create window")
	}
	return &Window{win: win}, nil
}

// Close destroys the window and shuts SDL down.
func (w *Window) Close() {
	if w.win != nil {
		w.win.Destroy()
		w.win = nil
	}
	sdl.Quit()
}

// SetTitle sets the window title.
func (w *Window) SetTitle(title string) { w.win.SetTitle(title) }

// Pump implements window.Window.
func (w *Window) Pump(q *window.Queue) {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		if e, ok := translate(ev, w.DrawableSize); ok {
			q.Push(e)
		}
	}
}

// DrawableSize implements window.Window.
func (w *Window) DrawableSize() (int, int) {
	if w.win.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	width, height := w.win.VulkanGetDrawableSize()
	return int(width), int(height)
}

// ProcAddr implements vkng.Surfacer.
func (w *Window) ProcAddr() unsafe.Pointer { return sdl.VulkanGetVkGetInstanceProcAddr() }

// InstanceExtensions implements vkng.Surfacer.
func (w *Window) InstanceExtensions() []string { return w.win.VulkanGetInstanceExtensions() }

// CreateSurface implements vkng.Surfacer.
func (w *Window) CreateSurface(instance core1_0.Instance, ext khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	s, err := vkng_sdl2.CreateSurface(instance, ext, w.win)
	if err != nil {
		return khr_surface.Surface{}, errors.Wrap(err, "sdlwin: create surface")
	}
	return s, nil
}

// translate converts an SDL event. Events that the frame loop
// has no use for are dropped.
func translate(ev sdl.Event, size func() (int, int)) (window.Event, bool) {
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		return window.Event{Kind: window.Quit}, true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_MINIMIZED:
			return window.Event{Kind: window.Minimize}, true
		case sdl.WINDOWEVENT_RESTORED:
			return window.Event{Kind: window.Restore}, true
		case sdl.WINDOWEVENT_RESIZED:
			w, h := size()
			if w <= 0 || h <= 0 {
				return window.Event{Kind: window.Minimize}, true
			}
			return window.Event{Kind: window.Resize, Width: w, Height: h}, true
		case sdl.WINDOWEVENT_CLOSE:
			return window.Event{Kind: window.Quit}, true
		}
	case *sdl.KeyboardEvent:
		if e.Repeat != 0 {
			return window.Event{}, false
		}
		k := window.KeyDown
		if e.Type == sdl.KEYUP {
			k = window.KeyUp
		}
		return window.Event{Kind: k, Key: window.Key(e.Keysym.Scancode)}, true
	case *sdl.MouseButtonEvent:
		b, ok := buttons[e.Button]
		if !ok {
			return window.Event{}, false
		}
		k := window.MouseDown
		if e.Type == sdl.MOUSEBUTTONUP {
			k = window.MouseUp
		}
		return window.Event{Kind: k, Button: b, X: int(e.X), Y: int(e.Y)}, true
	case *sdl.MouseMotionEvent:
		return window.Event{Kind: window.MouseMove, X: int(e.X), Y: int(e.Y)}, true
	}
	return window.Event{}, false
}

var buttons = map[uint8]window.Button{
	sdl.BUTTON_LEFT:   window.ButtonLeft,
	sdl.BUTTON_MIDDLE: window.ButtonMiddle,
	sdl.BUTTON_RIGHT:  window.ButtonRight,
}
