package frame

import (
	"bytes"
	"testing"
	"time"

	"github.com/boulderengine/frames/gpu"
	"github.com/boulderengine/frames/gpu/simgpu"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// Frame k is held on the GPU. BeginFrame of frames k+1 .. k+N-1
// must not block, and BeginFrame of frame k+N must block until
// frame k completes.
func TestBackpressure(t *testing.T) {
	for _, n := range [...]int{2, 3} {
		g := newRig(t, simgpu.Options{MinImageCount: n}, func(c *Config) { c.FramesInFlight = n })
		const k = 2
		for i := 0; i < k; i++ {
			g.frame()
		}
		img := g.begin()
		release := g.hold()
		g.end(img)

		for i := 1; i < n; i++ {
			select {
			case res := <-g.beginAsync():
				if res.st != Ok {
					t.Fatalf("N=%d: r.BeginFrame (frame k+%d):\nhave %v, %v\nwant Ok", n, i, res.st, res.err)
				}
				g.end(res.img)
			case <-time.After(time.Second):
				t.Fatalf("N=%d: r.BeginFrame (frame k+%d) blocked", n, i)
			}
		}

		ch := g.beginAsync()
		select {
		case res := <-ch:
			t.Fatalf("N=%d: r.BeginFrame (frame k+N) returned %v before frame k completed", n, res.st)
		case <-time.After(blockTime):
		}
		release()
		res := <-ch
		if res.st != Ok {
			t.Fatalf("N=%d: r.BeginFrame (frame k+N):\nhave %v, %v\nwant Ok", n, res.st, res.err)
		}
		g.end(res.img)
		g.frame()
		g.checkViolations()
	}
}

// The presentation engine hands the image of frame 0 (slot 0)
// back to frame 1 (slot 1) while frame 0 is still executing.
// Frame 1 must wait on slot 0's fence.
func TestImageReuse(t *testing.T) {
	g := newRig(t, simgpu.Options{EagerRelease: true, ReuseLatest: true}, nil)
	img0 := g.begin()
	release := g.hold()
	g.end(img0)

	f0 := g.r.slots[0].fence
	waits := simgpu.FenceWaits(f0)
	ch := g.beginAsync()
	select {
	case res := <-ch:
		t.Fatalf("r.BeginFrame returned %v while the image owner was executing", res.st)
	case <-time.After(blockTime):
	}
	release()
	res := <-ch
	if res.st != Ok {
		t.Fatalf("r.BeginFrame:\nhave %v, %v\nwant Ok", res.st, res.err)
	}
	if res.img != img0 {
		t.Fatalf("r.BeginFrame:\nhave image %d\nwant image %d", res.img, img0)
	}
	if simgpu.FenceWaits(f0) <= waits {
		t.Fatal("slot 0 fence was not waited on")
	}
	g.end(res.img)
	for i := 0; i < 6; i++ {
		g.frame()
	}
	g.checkViolations()
}

// N=2: frame 2 blocks until frame 0 is done, then acquires an
// image other than the one frame 1 is rendering.
func TestTwoFramesInFlight(t *testing.T) {
	g := newRig(t, simgpu.Options{}, nil)
	img0 := g.begin()
	release := g.hold()
	g.end(img0)

	var img1 int
	select {
	case res := <-g.beginAsync():
		if res.st != Ok {
			t.Fatalf("r.BeginFrame (frame 1):\nhave %v, %v\nwant Ok", res.st, res.err)
		}
		img1 = res.img
	case <-time.After(time.Second):
		t.Fatal("r.BeginFrame (frame 1) blocked")
	}
	g.end(img1)

	ch := g.beginAsync()
	select {
	case res := <-ch:
		t.Fatalf("r.BeginFrame (frame 2) returned %v before frame 0 completed", res.st)
	case <-time.After(blockTime):
	}
	release()
	res := <-ch
	if res.st != Ok {
		t.Fatalf("r.BeginFrame (frame 2):\nhave %v, %v\nwant Ok", res.st, res.err)
	}
	if res.img == img1 {
		t.Fatalf("r.BeginFrame (frame 2): reused image %d of frame 1", img1)
	}
	g.end(res.img)
	g.checkViolations()
}

func TestCommands(t *testing.T) {
	g := newRig(t, simgpu.Options{Features: gpu.Features{DepthAttachment: true}}, nil)
	img := g.begin()
	c, err := g.r.CommandBuffer()
	if err != nil {
		t.Fatalf("r.CommandBuffer:\nhave %v\nwant nil", err)
	}
	cb := c.(*simgpu.CmdBuffer)
	kinds := func() (k []simgpu.CommandKind) {
		for _, c := range cb.Commands() {
			k = append(k, c.Kind)
		}
		return
	}
	want := []simgpu.CommandKind{
		simgpu.CmdBarrier,
		simgpu.CmdBarrier,
		simgpu.CmdBeginRendering,
		simgpu.CmdSetViewport,
		simgpu.CmdSetScissor,
	}
	if have := kinds(); !equalKinds(have, want) {
		t.Fatalf("commands after BeginFrame:\nhave %v\nwant %v", have, want)
	}
	cmds := cb.Commands()
	color := gpu.ImageBarrier{
		Image:     g.r.sc.images[img].image,
		Aspect:    gpu.AspectColor,
		OldLayout: gpu.LayoutUndefined,
		NewLayout: gpu.LayoutColorAttachment,
		SrcStage:  gpu.StageColorAttachmentOutput,
		DstStage:  gpu.StageColorAttachmentOutput,
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
	}
	if cmds[0].Barrier != color {
		t.Fatalf("color barrier:\nhave %+v\nwant %+v", cmds[0].Barrier, color)
	}
	depth := gpu.ImageBarrier{
		Image:     g.r.sc.depth,
		Aspect:    gpu.AspectDepth,
		OldLayout: gpu.LayoutUndefined,
		NewLayout: gpu.LayoutDepthAttachment,
		SrcStage:  gpu.StageEarlyFragmentTests | gpu.StageLateFragmentTests,
		DstStage:  gpu.StageEarlyFragmentTests | gpu.StageLateFragmentTests,
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessDepthStencilAttachmentRead | gpu.AccessDepthStencilAttachmentWrite,
	}
	if cmds[1].Barrier != depth {
		t.Fatalf("depth barrier:\nhave %+v\nwant %+v", cmds[1].Barrier, depth)
	}
	info := cmds[2].Rendering
	if info.Color.Load != gpu.LoadClear || info.Color.Store != gpu.StoreKeep {
		t.Fatalf("color attachment ops:\nhave %v/%v\nwant clear/keep", info.Color.Load, info.Color.Store)
	}
	if info.Depth == nil || info.Depth.Load != gpu.LoadClear || info.Depth.Store != gpu.StoreDontCare || info.Depth.ClearDepth != 1 {
		t.Fatalf("depth attachment:\nhave %+v\nwant clear to 1, don't care on store", info.Depth)
	}
	if info.Area != (gpu.Rect{Width: 800, Height: 600}) {
		t.Fatalf("render area:\nhave %+v\nwant 800x600", info.Area)
	}

	if err := g.r.SetPushConstants(gpu.ShaderVertex, 0, mgl32.Ident4()); err != nil {
		t.Fatalf("r.SetPushConstants:\nhave %v\nwant nil", err)
	}
	if err := g.r.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("r.Draw:\nhave %v\nwant nil", err)
	}
	g.end(img)

	want = append(want, simgpu.CmdPushConstants, simgpu.CmdDraw, simgpu.CmdEndRendering, simgpu.CmdBarrier)
	if have := kinds(); !equalKinds(have, want) {
		t.Fatalf("commands after EndFrame:\nhave %v\nwant %v", have, want)
	}
	cmds = cb.Commands()
	present := gpu.ImageBarrier{
		Image:     g.r.sc.images[img].image,
		Aspect:    gpu.AspectColor,
		OldLayout: gpu.LayoutColorAttachment,
		NewLayout: gpu.LayoutPresent,
		SrcStage:  gpu.StageColorAttachmentOutput,
		DstStage:  gpu.StageBottomOfPipe,
		SrcAccess: gpu.AccessColorAttachmentWrite,
		DstAccess: gpu.AccessNone,
	}
	if b := cmds[len(cmds)-1].Barrier; b != present {
		t.Fatalf("present barrier:\nhave %+v\nwant %+v", b, present)
	}
	if pc := cmds[5]; len(pc.Data) != 64 || pc.Stages != gpu.ShaderVertex {
		t.Fatalf("push constants:\nhave %d bytes for %v\nwant 64 bytes for vertex", len(pc.Data), pc.Stages)
	}

	// Image 0 comes back after the other two and must then be
	// transitioned from the present layout.
	g.frame()
	g.frame()
	img = g.begin()
	if img != 0 {
		t.Fatalf("r.BeginFrame:\nhave image %d\nwant image 0", img)
	}
	c, _ = g.r.CommandBuffer()
	if from := c.(*simgpu.CmdBuffer).Commands()[0].Barrier.OldLayout; from != gpu.LayoutPresent {
		t.Fatalf("color barrier of a presented image:\nhave %v\nwant %v", from, gpu.LayoutPresent)
	}
	g.end(img)
	g.checkViolations()
}

func TestCommandsWithoutDepth(t *testing.T) {
	g := newRig(t, simgpu.Options{}, nil)
	img := g.begin()
	c, _ := g.r.CommandBuffer()
	cmds := c.(*simgpu.CmdBuffer).Commands()
	if len(cmds) != 4 || cmds[1].Kind != simgpu.CmdBeginRendering {
		t.Fatalf("commands after BeginFrame:\nhave %d commands\nwant barrier, rendering, viewport, scissor", len(cmds))
	}
	if cmds[1].Rendering.Depth != nil {
		t.Fatal("rendering info: depth attachment without depth support")
	}
	g.end(img)
}

func equalKinds(a, b []simgpu.CommandKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNotRecording(t *testing.T) {
	g := newRig(t, simgpu.Options{}, nil)
	layout, _ := g.d.NewDescriptorLayout(nil)
	check := func(when string) {
		t.Helper()
		for name, err := range map[string]error{
			"SetViewport":      g.r.SetViewport(gpu.Viewport{}),
			"SetScissor":       g.r.SetScissor(gpu.Rect{}),
			"SetPushConstants": g.r.SetPushConstants(gpu.ShaderFragment, 0, []float32{1}),
			"Draw":             g.r.Draw(3, 1, 0, 0),
			"DrawMesh":         g.r.DrawMesh(1, 1, 1),
		} {
			if !errors.Is(err, ErrNotRecording) {
				t.Fatalf("%s: r.%s:\nhave %v\nwant %v", when, name, err, ErrNotRecording)
			}
		}
		if _, err := g.r.AllocateDescriptorSet(layout); !errors.Is(err, ErrNotRecording) {
			t.Fatalf("%s: r.AllocateDescriptorSet:\nhave %v\nwant %v", when, err, ErrNotRecording)
		}
		if _, err := g.r.CommandBuffer(); !errors.Is(err, ErrNotRecording) {
			t.Fatalf("%s: r.CommandBuffer:\nhave %v\nwant %v", when, err, ErrNotRecording)
		}
		if st, err := g.r.EndFrame(0); st != SoftFail || !errors.Is(err, ErrNotRecording) {
			t.Fatalf("%s: r.EndFrame:\nhave %v, %v\nwant SoftFail, %v", when, st, err, ErrNotRecording)
		}
	}
	check("before BeginFrame")

	img := g.begin()
	if st, err := g.r.EndFrame(img + 1); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("r.EndFrame(wrong image):\nhave %v, %v\nwant SoftFail, %v", st, err, ErrNotRecording)
	}
	if _, st, err := g.r.BeginFrame(); st != Fatal || !errors.Is(err, ErrFrameActive) {
		t.Fatalf("r.BeginFrame (nested):\nhave %v, %v\nwant Fatal, %v", st, err, ErrFrameActive)
	}
	if err := g.r.RecreateSwapchain(); !errors.Is(err, ErrFrameActive) {
		t.Fatalf("r.RecreateSwapchain (recording):\nhave %v\nwant %v", err, ErrFrameActive)
	}
	if err := g.r.SetPushConstants(gpu.ShaderFragment, 0, "color"); err == nil {
		t.Fatal("r.SetPushConstants(string):\nhave nil\nwant error")
	}
	if err := g.r.SetPushConstants(gpu.ShaderFragment, 0, []byte{1, 2, 3}); err == nil {
		t.Fatal("r.SetPushConstants(3 bytes):\nhave nil\nwant error")
	}
	g.end(img)
	check("after EndFrame")
	g.checkViolations()
}

func TestPushBytes(t *testing.T) {
	for _, x := range [...]struct {
		data any
		want []byte
	}{
		{[]byte{1, 2, 3, 4}, []byte{1, 2, 3, 4}},
		{[]float32{1}, []byte{0, 0, 0x80, 0x3f}},
		{[]int32{-1, 2}, []byte{0xff, 0xff, 0xff, 0xff, 2, 0, 0, 0}},
		{[]uint32{0x01020304}, []byte{4, 3, 2, 1}},
		{mgl32.Vec2{1, -2}, []byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0xc0}},
		{mgl32.Vec4{}, make([]byte, 16)},
	} {
		have, err := pushBytes(x.data)
		if err != nil {
			t.Fatalf("pushBytes(%T):\nhave %v\nwant nil", x.data, err)
		}
		if !bytes.Equal(have, x.want) {
			t.Fatalf("pushBytes(%v):\nhave %v\nwant %v", x.data, have, x.want)
		}
	}
	if b, _ := pushBytes(mgl32.Ident4()); len(b) != 64 || !bytes.Equal(b[:4], []byte{0, 0, 0x80, 0x3f}) {
		t.Fatalf("pushBytes(Ident4):\nhave %v\nwant 64 bytes starting with 1.0", b)
	}
	if _, err := pushBytes(3.0); err == nil {
		t.Fatal("pushBytes(float64):\nhave nil\nwant error")
	}
}

func TestDescriptorPool(t *testing.T) {
	g := newRig(t, simgpu.Options{}, func(c *Config) { c.Descriptors.MaxSets = 2 })
	layout, _ := g.d.NewDescriptorLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: gpu.DescUniformBuffer, Count: 1, Stages: gpu.ShaderVertex},
	})
	defer layout.Destroy()
	pool := g.r.slots[0].descriptors.(*simgpu.DescriptorPool)

	for i := 0; i < 3; i++ {
		img := g.begin()
		if slot := g.r.cur; slot == 0 {
			for j := 0; j < 2; j++ {
				if _, err := g.r.AllocateDescriptorSet(layout); err != nil {
					t.Fatalf("frame %d: r.AllocateDescriptorSet #%d:\nhave %v\nwant nil", i, j, err)
				}
			}
			if _, err := g.r.AllocateDescriptorSet(layout); !errors.Is(err, simgpu.ErrPoolExhausted) {
				t.Fatalf("frame %d: r.AllocateDescriptorSet (exhausted):\nhave %v\nwant %v", i, err, simgpu.ErrPoolExhausted)
			}
		}
		g.end(img)
	}
	// Frames 0 and 2 ran on slot 0.
	if n := pool.Resets(); n != 2 {
		t.Fatalf("pool.Resets:\nhave %d\nwant 2", n)
	}
	g.checkViolations()
}

func TestDroppedFrame(t *testing.T) {
	for _, x := range [...]struct {
		name  string
		op    simgpu.Op
		fails int
		// begin tells whether BeginFrame, rather than
		// EndFrame, drops the frame.
		begin bool
	}{
		{"begin", simgpu.OpBegin, 1, true},
		{"end", simgpu.OpEnd, 1, false},
		{"submit", simgpu.OpSubmit, 1, false},
		{"submit and salvage", simgpu.OpSubmit, 2, false},
	} {
		g := newRig(t, simgpu.Options{}, nil)
		g.frame()
		before := g.d.Stats()
		for i := 0; i < x.fails; i++ {
			g.d.FailNext(x.op, nil)
		}
		if x.begin {
			if _, st, err := g.r.BeginFrame(); st != RetryAfterRecreate || err != nil {
				t.Fatalf("%s: r.BeginFrame:\nhave %v, %v\nwant RetryAfterRecreate, nil", x.name, st, err)
			}
		} else {
			img := g.begin()
			if st, err := g.r.EndFrame(img); st != SoftFail || err != nil {
				t.Fatalf("%s: r.EndFrame:\nhave %v, %v\nwant SoftFail, nil", x.name, st, err)
			}
		}
		if st := g.r.Stats(); st.Dropped != 1 {
			t.Fatalf("%s: r.Stats().Dropped:\nhave %d\nwant 1", x.name, st.Dropped)
		}
		if s := g.r.State(); s != RecreationRequested {
			t.Fatalf("%s: r.State:\nhave %v\nwant RecreationRequested", x.name, s)
		}
		after := g.d.Stats()
		renewed := after.FencesCreated - before.FencesCreated
		if want := x.fails - 1; renewed != want {
			t.Fatalf("%s: fences created:\nhave %d\nwant %d", x.name, renewed, want)
		}
		for i := 0; i < 4; i++ {
			g.frame()
		}
		g.checkViolations()
	}
}

func TestDeviceLost(t *testing.T) {
	g := newRig(t, simgpu.Options{}, nil)
	g.frame()
	g.d.Lose()
	if _, st, err := g.r.BeginFrame(); st != Fatal || !gpu.IsDeviceLost(err) {
		t.Fatalf("r.BeginFrame:\nhave %v, %v\nwant Fatal, %v", st, err, gpu.ErrDeviceLost)
	}

	g = newRig(t, simgpu.Options{}, nil)
	img := g.begin()
	g.d.Lose()
	if st, err := g.r.EndFrame(img); st != Fatal || !gpu.IsDeviceLost(err) {
		t.Fatalf("r.EndFrame:\nhave %v, %v\nwant Fatal, %v", st, err, gpu.ErrDeviceLost)
	}

	g = newRig(t, simgpu.Options{}, nil)
	g.r.RequestSwapchainRecreate()
	g.d.Lose()
	if _, st, err := g.r.BeginFrame(); st != Fatal || !gpu.IsDeviceLost(err) {
		t.Fatalf("r.BeginFrame (recreating):\nhave %v, %v\nwant Fatal, %v", st, err, gpu.ErrDeviceLost)
	}
}

func TestDestroy(t *testing.T) {
	d := simgpu.New(simgpu.Options{Features: gpu.Features{DepthAttachment: true}})
	defer d.Close()
	r, err := New(d, d, DefaultConfig())
	if err != nil {
		t.Fatalf("New:\nhave %v\nwant nil", err)
	}
	for i := 0; i < 5; i++ {
		img, st, _ := r.BeginFrame()
		if st != Ok {
			t.Fatalf("r.BeginFrame:\nhave %v\nwant Ok", st)
		}
		r.EndFrame(img)
	}
	r.Destroy()
	r.Destroy()
	st := d.Stats()
	if st.SwapchainsCreated != st.SwapchainsDestroyed ||
		st.ViewsCreated != st.ViewsDestroyed ||
		st.ImagesCreated != st.ImagesDestroyed ||
		st.FencesCreated != st.FencesDestroyed ||
		st.SemaphoresCreated != st.SemaphoresDestroyed {
		t.Fatalf("d.Stats after Destroy:\nhave %+v\nwant every object destroyed", st)
	}
	if _, st, err := r.BeginFrame(); st != Fatal || !errors.Is(err, ErrClosed) {
		t.Fatalf("r.BeginFrame after Destroy:\nhave %v, %v\nwant Fatal, %v", st, err, ErrClosed)
	}
	if err := r.RecreateSwapchain(); !errors.Is(err, ErrClosed) {
		t.Fatalf("r.RecreateSwapchain after Destroy:\nhave %v\nwant %v", err, ErrClosed)
	}
	if v := d.Violations(); len(v) != 0 {
		t.Fatalf("d.Violations:\nhave %q\nwant none", v)
	}
}

func TestDrawMesh(t *testing.T) {
	g := newRig(t, simgpu.Options{}, nil)
	img := g.begin()
	if err := g.r.DrawMesh(4, 2, 1); !errors.Is(err, ErrNoMeshShader) {
		t.Fatalf("r.DrawMesh (no support):\nhave %v\nwant %v", err, ErrNoMeshShader)
	}
	g.end(img)

	g = newRig(t, simgpu.Options{Features: gpu.Features{DynamicRendering: true, DepthAttachment: true, MeshShader: true}}, nil)
	img = g.begin()
	if err := g.r.DrawMesh(4, 2, 1); err != nil {
		t.Fatalf("r.DrawMesh:\nhave %v\nwant nil", err)
	}
	cb, _ := g.r.CommandBuffer()
	var have []int
	for _, c := range cb.(*simgpu.CmdBuffer).Commands() {
		if c.Kind == simgpu.CmdDrawMeshTasks {
			have = append([]int(nil), c.Draw[:3]...)
		}
	}
	if len(have) != 3 || have[0] != 4 || have[1] != 2 || have[2] != 1 {
		t.Fatalf("DrawMeshTasks group counts:\nhave %v\nwant [4 2 1]", have)
	}
	g.end(img)
	g.checkViolations()
}
