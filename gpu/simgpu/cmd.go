package simgpu

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
)

// Command is a recorded command.
type Command struct {
	Kind      CommandKind
	Barrier   gpu.ImageBarrier
	Rendering gpu.RenderingInfo
	Viewport  gpu.Viewport
	Scissor   gpu.Rect
	Stages    gpu.ShaderStage
	Offset    int
	Data      []byte
	Draw      [4]int
}

// CommandKind identifies a recorded command.
type CommandKind int

// Command kinds.
const (
	CmdBarrier CommandKind = iota
	CmdBeginRendering
	CmdEndRendering
	CmdSetViewport
	CmdSetScissor
	CmdPushConstants
	CmdDraw
	CmdDrawMeshTasks
)

func (k CommandKind) String() string {
	switch k {
	case CmdBarrier:
		return "Barrier"
	case CmdBeginRendering:
		return "BeginRendering"
	case CmdEndRendering:
		return "EndRendering"
	case CmdSetViewport:
		return "SetViewport"
	case CmdSetScissor:
		return "SetScissor"
	case CmdPushConstants:
		return "PushConstants"
	case CmdDraw:
		return "Draw"
	case CmdDrawMeshTasks:
		return "DrawMeshTasks"
	}
	return "Unknown"
}

type cmdState int

const (
	cmdInitial cmdState = iota
	cmdRecording
	cmdExecutable
	cmdPending
)

// CmdBuffer is a simulated command buffer.
type CmdBuffer struct {
	d *Device

	mu        sync.Mutex
	state     cmdState
	rendering bool
	cmds      []Command
	destroyed bool
	submits   int
}

// NewCmdBuffer implements gpu.Device.
func (d *Device) NewCmdBuffer() (gpu.CmdBuffer, error) {
	if err := d.fault(OpCmdBuffer); err != nil {
		return nil, err
	}
	return &CmdBuffer{d: d}, nil
}

// Commands returns a copy of the commands recorded since the
// last Begin.
func (cb *CmdBuffer) Commands() []Command {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return append([]Command(nil), cb.cmds...)
}

// Submits returns how many times cb was submitted.
func (cb *CmdBuffer) Submits() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.submits
}

func (cb *CmdBuffer) Destroy() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == cmdPending {
		cb.d.violate("destroy of pending command buffer")
	}
	cb.destroyed = true
}

func (cb *CmdBuffer) Reset() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == cmdPending {
		cb.d.violate("reset of pending command buffer")
	}
	cb.state = cmdInitial
	cb.rendering = false
	cb.cmds = cb.cmds[:0]
	return nil
}

func (cb *CmdBuffer) Begin() error {
	if err := cb.d.fault(OpBegin); err != nil {
		return err
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case cmdPending:
		cb.d.violate("begin of pending command buffer")
	case cmdRecording:
		return errors.New("simgpu: command buffer already recording")
	}
	cb.state = cmdRecording
	cb.rendering = false
	cb.cmds = cb.cmds[:0]
	return nil
}

func (cb *CmdBuffer) End() error {
	if err := cb.d.fault(OpEnd); err != nil {
		return err
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != cmdRecording {
		return errors.New("simgpu: command buffer not recording")
	}
	if cb.rendering {
		return errors.New("simgpu: rendering bracket left open")
	}
	cb.state = cmdExecutable
	return nil
}

func (cb *CmdBuffer) record(c Command) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != cmdRecording {
		cb.d.violate("%v recorded outside of recording", c.Kind)
		return
	}
	switch c.Kind {
	case CmdBarrier:
		if cb.rendering {
			cb.d.violate("layout transition inside rendering bracket")
		}
	case CmdBeginRendering:
		if cb.rendering {
			cb.d.violate("nested rendering bracket")
		}
		cb.rendering = true
	case CmdEndRendering:
		if !cb.rendering {
			cb.d.violate("end of rendering bracket that was not begun")
		}
		cb.rendering = false
	case CmdDrawMeshTasks:
		if !cb.d.opts.Features.MeshShader {
			cb.d.violate("mesh draw without mesh shader support")
		}
	}
	cb.cmds = append(cb.cmds, c)
}

func (cb *CmdBuffer) Barrier(b ...gpu.ImageBarrier) {
	for i := range b {
		cb.record(Command{Kind: CmdBarrier, Barrier: b[i]})
	}
}

func (cb *CmdBuffer) BeginRendering(info gpu.RenderingInfo) {
	cb.record(Command{Kind: CmdBeginRendering, Rendering: info})
}

func (cb *CmdBuffer) EndRendering() { cb.record(Command{Kind: CmdEndRendering}) }

func (cb *CmdBuffer) SetViewport(vp gpu.Viewport) {
	cb.record(Command{Kind: CmdSetViewport, Viewport: vp})
}

func (cb *CmdBuffer) SetScissor(sciss gpu.Rect) {
	cb.record(Command{Kind: CmdSetScissor, Scissor: sciss})
}

func (cb *CmdBuffer) PushConstants(stages gpu.ShaderStage, offset int, data []byte) {
	cb.record(Command{Kind: CmdPushConstants, Stages: stages, Offset: offset, Data: append([]byte(nil), data...)})
}

func (cb *CmdBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	cb.record(Command{Kind: CmdDraw, Draw: [4]int{vertexCount, instanceCount, firstVertex, firstInstance}})
}

// DrawMeshTasks records the group counts in Command.Draw[:3].
func (cb *CmdBuffer) DrawMeshTasks(groupCountX, groupCountY, groupCountZ int) {
	cb.record(Command{Kind: CmdDrawMeshTasks, Draw: [4]int{groupCountX, groupCountY, groupCountZ}})
}

type submission struct {
	seq    int
	wait   *semaphore
	cmd    *CmdBuffer
	signal *semaphore
	fence  *fence
	hold   chan struct{}
}

// Submit implements gpu.Device.
func (d *Device) Submit(info gpu.SubmitInfo) error {
	if err := d.fault(OpSubmit); err != nil {
		return err
	}
	wait, err := asSemaphore(d, info.Wait)
	if err != nil {
		return err
	}
	signal, err := asSemaphore(d, info.Signal)
	if err != nil {
		return err
	}
	sub := &submission{wait: wait, signal: signal}
	if info.Cmd != nil {
		cb, ok := info.Cmd.(*CmdBuffer)
		if !ok {
			return errors.New("simgpu: foreign command buffer")
		}
		cb.mu.Lock()
		st := cb.state
		if st == cmdExecutable {
			cb.state = cmdPending
			cb.submits++
		}
		cb.mu.Unlock()
		if st != cmdExecutable {
			return errors.New("simgpu: command buffer not executable")
		}
		sub.cmd = cb
	}
	if info.Fence != nil {
		f, ok := info.Fence.(*fence)
		if !ok {
			return errors.New("simgpu: foreign fence")
		}
		if err := f.submit(); err != nil {
			return err
		}
		sub.fence = f
	}

	d.mu.Lock()
	sub.seq = d.submitSeq
	d.submitSeq++
	d.stats.Submits++
	d.pending++
	sub.hold = d.holds[sub.seq]
	delete(d.holds, sub.seq)
	d.mu.Unlock()

	return d.enqueue(sub)
}

// queueOp is an operation executed in submission order by the
// queue goroutine. execute reports false once the device is
// closed.
type queueOp interface {
	execute(d *Device) bool
}

func (d *Device) enqueue(op queueOp) error {
	select {
	case d.queue <- op:
		return nil
	case <-d.ctx.Done():
		return errors.New("simgpu: device closed")
	}
}

// HoldNext delays the execution of the next submission until
// the returned function is called. The submission still
// occupies its place in the in-order queue, so every later
// submission is delayed as well.
func (d *Device) HoldNext() (release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.holdLocked(d.submitSeq)
}

// Hold delays the execution of the submission with the given
// sequence number (counting Submit calls from 0).
func (d *Device) Hold(seq int) (release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.holdLocked(seq)
}

func (d *Device) holdLocked(seq int) func() {
	ch := make(chan struct{})
	d.holds[seq] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Submitted returns how many submissions were made so far.
func (d *Device) Submitted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitSeq
}

func (d *Device) runQueue() error {
	for {
		var op queueOp
		select {
		case op = <-d.queue:
		case <-d.ctx.Done():
			return nil
		}
		if !op.execute(d) {
			return nil
		}
	}
}

func (sub *submission) execute(d *Device) bool {
	if sub.wait != nil && !sub.wait.wait(d) {
		return false
	}
	if sub.hold != nil {
		select {
		case <-sub.hold:
		case <-d.ctx.Done():
			return false
		}
	}
	if d.opts.ExecTime > 0 {
		t := time.NewTimer(d.opts.ExecTime)
		select {
		case <-t.C:
		case <-d.ctx.Done():
			t.Stop()
			return false
		}
	}
	if d.lost.Load() {
		// Work never completes on a lost device.
		return true
	}
	if sub.cmd != nil {
		sub.cmd.mu.Lock()
		if sub.cmd.destroyed {
			d.violate("execution of destroyed command buffer")
		}
		sub.cmd.state = cmdExecutable
		sub.cmd.mu.Unlock()
	}
	if sub.signal != nil {
		sub.signal.signal()
	}
	if sub.fence != nil {
		sub.fence.signal()
	}
	d.mu.Lock()
	d.pending--
	d.stats.Executed++
	d.idle.Broadcast()
	d.mu.Unlock()
	return true
}

// Image is a simulated image.
type Image struct {
	d         *Device
	Extent    gpu.Extent
	Format    gpu.Format
	sc        *swapchain
	destroyed atomic.Bool
}

func (im *Image) Destroy() {
	if im.sc != nil {
		im.d.violate("destroy of swapchain image")
		return
	}
	if im.destroyed.Swap(true) {
		im.d.violate("double destroy of image")
		return
	}
	im.d.count(func(s *Stats) { s.ImagesDestroyed++ })
}

// ImageView is a simulated image view.
type ImageView struct {
	d         *Device
	Image     *Image
	Format    gpu.Format
	Aspect    gpu.Aspect
	destroyed atomic.Bool
}

func (v *ImageView) Destroy() {
	if v.destroyed.Swap(true) {
		v.d.violate("double destroy of image view")
		return
	}
	v.d.count(func(s *Stats) { s.ViewsDestroyed++ })
}

// Destroyed reports whether Destroy was called.
func (v *ImageView) Destroyed() bool { return v.destroyed.Load() }

// ErrPoolExhausted means that a descriptor pool has no room for
// another set.
var ErrPoolExhausted = errors.New("simgpu: descriptor pool exhausted")

// DescriptorPool is a simulated descriptor pool.
type DescriptorPool struct {
	d         *Device
	sizes     gpu.DescriptorPoolSizes
	allocated atomic.Int64
	resets    atomic.Int64
}

// NewDescriptorPool implements gpu.Device.
func (d *Device) NewDescriptorPool(sizes gpu.DescriptorPoolSizes) (gpu.DescriptorPool, error) {
	if err := d.fault(OpDescriptorPool); err != nil {
		return nil, err
	}
	return &DescriptorPool{d: d, sizes: sizes}, nil
}

func (p *DescriptorPool) Allocate(layout gpu.DescriptorLayout) (gpu.DescriptorSet, error) {
	if _, ok := layout.(*descriptorLayout); !ok {
		return nil, errors.New("simgpu: foreign descriptor layout")
	}
	if n := p.allocated.Add(1); int(n) > p.sizes.MaxSets {
		p.allocated.Add(-1)
		return nil, ErrPoolExhausted
	}
	return struct{ pool *DescriptorPool }{p}, nil
}

func (p *DescriptorPool) Reset() error {
	p.allocated.Store(0)
	p.resets.Add(1)
	p.d.count(func(s *Stats) { s.PoolResets++ })
	return nil
}

func (p *DescriptorPool) Destroy() {}

// Allocated returns how many sets are currently allocated.
func (p *DescriptorPool) Allocated() int { return int(p.allocated.Load()) }

// Resets returns how many times the pool was reset.
func (p *DescriptorPool) Resets() int { return int(p.resets.Load()) }

type descriptorLayout struct {
	bindings []gpu.DescriptorBinding
}

// NewDescriptorLayout implements gpu.Device.
func (d *Device) NewDescriptorLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorLayout, error) {
	return &descriptorLayout{bindings: append([]gpu.DescriptorBinding(nil), bindings...)}, nil
}

func (l *descriptorLayout) Destroy() {}
