package window

import (
	"sync"
	"testing"
)

func TestQueue(t *testing.T) {
	var q Queue
	if n := q.Len(); n != 0 {
		t.Fatalf("q.Len:\nhave %d\nwant 0", n)
	}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(Event{Kind: MouseMove, X: j})
			}
		}()
	}
	wg.Wait()
	if n := q.Len(); n != 400 {
		t.Fatalf("q.Len:\nhave %d\nwant 400", n)
	}
	if ev := q.Drain(); len(ev) != 400 {
		t.Fatalf("len(q.Drain()):\nhave %d\nwant 400", len(ev))
	}
	if ev := q.Drain(); len(ev) != 0 {
		t.Fatalf("len(q.Drain()) (drained):\nhave %d\nwant 0", len(ev))
	}

	q.Push(Event{Kind: KeyDown, Key: 1}, Event{Kind: KeyUp, Key: 1}, Event{Kind: Quit})
	ev := q.Drain()
	for i, k := range [...]Kind{KeyDown, KeyUp, Quit} {
		if ev[i].Kind != k {
			t.Fatalf("event %d:\nhave %v\nwant %v", i, ev[i].Kind, k)
		}
	}
}

func TestInput(t *testing.T) {
	in := NewInput()
	for _, ev := range []Event{
		{Kind: KeyDown, Key: 7},
		{Kind: MouseMove, X: 10, Y: 20},
		{Kind: MouseDown, Button: ButtonLeft, X: 11, Y: 21},
	} {
		in.Apply(ev)
	}
	if !in.KeyDown(7) || in.KeyDown(8) {
		t.Fatal("in.KeyDown:\nhave wrong keys\nwant only 7 held")
	}
	if !in.MouseDown(ButtonLeft) {
		t.Fatal("in.MouseDown(ButtonLeft):\nhave false\nwant true")
	}
	if in.Clicked(ButtonLeft) {
		t.Fatal("in.Clicked(ButtonLeft) before release:\nhave true\nwant false")
	}
	if x, y := in.MousePos(); x != 11 || y != 21 {
		t.Fatalf("in.MousePos:\nhave %d, %d\nwant 11, 21", x, y)
	}

	in.Apply(Event{Kind: MouseUp, Button: ButtonLeft, X: 12, Y: 22})
	in.Apply(Event{Kind: MouseUp, Button: ButtonRight, X: 12, Y: 22})
	if !in.Clicked(ButtonLeft) {
		t.Fatal("in.Clicked(ButtonLeft):\nhave false\nwant true")
	}
	if in.Clicked(ButtonRight) {
		t.Fatal("in.Clicked(ButtonRight) without press:\nhave true\nwant false")
	}
	in.EndFrame()
	if in.Clicked(ButtonLeft) {
		t.Fatal("in.Clicked(ButtonLeft) after EndFrame:\nhave true\nwant false")
	}

	in.Apply(Event{Kind: Minimize})
	if in.KeyDown(7) {
		t.Fatal("in.KeyDown(7) after Minimize:\nhave true\nwant false")
	}
	in.Apply(Event{Kind: Resize, Width: 1, Height: 1})
}

func TestHeadless(t *testing.T) {
	hw := NewHeadless(800, 600)
	var win Window = hw
	var q Queue

	hw.Resize(1024, 768)
	hw.Resize(0, 0)
	hw.Resize(640, 480)
	hw.Quit()
	win.Pump(&q)
	want := []Event{
		{Kind: Resize, Width: 1024, Height: 768},
		{Kind: Minimize},
		{Kind: Restore},
		{Kind: Resize, Width: 640, Height: 480},
		{Kind: Quit},
	}
	have := q.Drain()
	if len(have) != len(want) {
		t.Fatalf("events:\nhave %v\nwant %v", have, want)
	}
	for i := range want {
		if have[i] != want[i] {
			t.Fatalf("event %d:\nhave %+v\nwant %+v", i, have[i], want[i])
		}
	}
	if w, h := win.DrawableSize(); w != 640 || h != 480 {
		t.Fatalf("win.DrawableSize:\nhave %dx%d\nwant 640x480", w, h)
	}
	win.Pump(&q)
	if n := q.Len(); n != 0 {
		t.Fatalf("q.Len after second pump:\nhave %d\nwant 0", n)
	}
}
