package gpu

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestExtent(t *testing.T) {
	for _, x := range [...]struct {
		e    Extent
		want bool
	}{
		{Extent{800, 600}, false},
		{Extent{0, 600}, true},
		{Extent{800, 0}, true},
		{Extent{}, true},
		{UndefinedExtent, true},
	} {
		if have := x.e.Degenerate(); have != x.want {
			t.Fatalf("%v.Degenerate:\nhave %t\nwant %t", x.e, have, x.want)
		}
	}

	min := Extent{64, 64}
	max := Extent{4096, 2048}
	for _, x := range [...]struct{ e, want Extent }{
		{Extent{800, 600}, Extent{800, 600}},
		{Extent{10, 600}, Extent{64, 600}},
		{Extent{8000, 3000}, Extent{4096, 2048}},
		{Extent{1, 9999}, Extent{64, 2048}},
	} {
		if have := x.e.Clamp(min, max); have != x.want {
			t.Fatalf("%v.Clamp:\nhave %v\nwant %v", x.e, have, x.want)
		}
	}
}

func TestFormat(t *testing.T) {
	for _, x := range [...]struct {
		f              Format
		depth, stencil bool
	}{
		{FormatBGRA8SRGB, false, false},
		{FormatRGBA8SRGB, false, false},
		{FormatBGRA8Unorm, false, false},
		{FormatD16Unorm, true, false},
		{FormatD32Float, true, false},
		{FormatD24UnormS8, true, true},
		{FormatD32FloatS8, true, true},
	} {
		if have := x.f.IsDepth(); have != x.depth {
			t.Fatalf("%v.IsDepth:\nhave %t\nwant %t", x.f, have, x.depth)
		}
		if have := x.f.HasStencil(); have != x.stencil {
			t.Fatalf("%v.HasStencil:\nhave %t\nwant %t", x.f, have, x.stencil)
		}
	}
}

func TestErrors(t *testing.T) {
	stale := errors.Wrap(ErrOutOfDate, "acquire")
	if !IsStale(stale) {
		t.Fatal("IsStale(wrapped ErrOutOfDate):\nhave false\nwant true")
	}
	if !IsStale(ErrSuboptimal) {
		t.Fatal("IsStale(ErrSuboptimal):\nhave false\nwant true")
	}
	if IsStale(ErrDeviceLost) {
		t.Fatal("IsStale(ErrDeviceLost):\nhave true\nwant false")
	}
	lost := errors.Wrapf(ErrDeviceLost, "fence %d", 3)
	if !IsDeviceLost(lost) {
		t.Fatal("IsDeviceLost(wrapped ErrDeviceLost):\nhave false\nwant true")
	}
	if IsDeviceLost(stale) {
		t.Fatal("IsDeviceLost(stale):\nhave true\nwant false")
	}
}
