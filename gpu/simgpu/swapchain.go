package simgpu

import (
	"sync"

	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
)

// ErrNoImage means that every image of a swapchain is acquired
// by the application and none is pending presentation, so an
// acquire could never complete.
var ErrNoImage = errors.New("simgpu: all swapchain images acquired")

type imageState struct {
	acquired bool
	// queued and presented count the presentations of the
	// image that were queued and that consumed their wait
	// semaphore, respectively.
	queued, presented int
	// deferred are acquire semaphores to signal once the
	// presentations queued before their acquire are done
	// (EagerRelease).
	deferred []deferredSignal
}

type deferredSignal struct {
	sem   *semaphore
	after int
}

func (st *imageState) presenting() bool { return st.queued > st.presented }

type swapchain struct {
	d      *Device
	extent gpu.Extent
	format gpu.Format
	mode   gpu.PresentMode
	images []gpu.Image

	mu        sync.Mutex
	cond      *sync.Cond
	state     []imageState
	avail     []int
	retired   bool
	destroyed bool
	acquires  []int
}

// NewSwapchain implements gpu.Device.
func (d *Device) NewSwapchain(cfg gpu.SwapchainConfig) (gpu.Swapchain, error) {
	if err := d.fault(OpSwapchain); err != nil {
		return nil, err
	}
	if cfg.Extent.Degenerate() {
		return nil, errors.Newf("simgpu: invalid swapchain extent %v", cfg.Extent)
	}
	n := cfg.ImageCount
	if n < d.opts.MinImageCount {
		n = d.opts.MinImageCount
	}
	if d.opts.MaxImageCount > 0 && n > d.opts.MaxImageCount {
		return nil, errors.Newf("simgpu: image count %d exceeds %d", cfg.ImageCount, d.opts.MaxImageCount)
	}
	if cfg.Old != nil {
		old, ok := cfg.Old.(*swapchain)
		if !ok || old.d != d {
			return nil, errors.New("simgpu: foreign old swapchain")
		}
		old.mu.Lock()
		if old.destroyed {
			old.mu.Unlock()
			d.violate("retire of destroyed swapchain")
			return nil, errors.Wrap(gpu.ErrDestroyed, "simgpu: old swapchain")
		}
		old.retired = true
		old.cond.Broadcast()
		old.mu.Unlock()
	}
	sc := &swapchain{
		d:      d,
		extent: cfg.Extent,
		format: cfg.Format,
		mode:   cfg.PresentMode,
		state:  make([]imageState, n),
	}
	sc.cond = sync.NewCond(&sc.mu)
	sc.images = make([]gpu.Image, n)
	for i := range sc.images {
		sc.images[i] = &Image{d: d, Extent: cfg.Extent, Format: cfg.Format, sc: sc}
		sc.avail = append(sc.avail, i)
	}
	d.count(func(s *Stats) { s.SwapchainsCreated++ })
	return sc, nil
}

func (sc *swapchain) Images() []gpu.Image { return sc.images }
func (sc *swapchain) Format() gpu.Format  { return sc.format }
func (sc *swapchain) Extent() gpu.Extent  { return sc.extent }

func (sc *swapchain) Destroy() {
	sc.mu.Lock()
	if sc.destroyed {
		sc.mu.Unlock()
		sc.d.violate("double destroy of swapchain")
		return
	}
	sc.destroyed = true
	sc.cond.Broadcast()
	sc.mu.Unlock()
	sc.d.count(func(s *Stats) { s.SwapchainsDestroyed++ })
}

// stale reports the staleness of sc with regard to the current
// surface, or nil.
func (sc *swapchain) stale() error {
	surf := sc.d.Surface()
	switch {
	case surf.Degenerate():
		return gpu.ErrOutOfDate
	case surf != sc.extent:
		if sc.d.opts.SuboptimalAcquire {
			return gpu.ErrSuboptimal
		}
		return gpu.ErrOutOfDate
	}
	return nil
}

func (sc *swapchain) Acquire(sem gpu.Semaphore) (int, error) {
	d := sc.d
	if err := d.fault(OpAcquire); err != nil {
		if errors.Is(err, gpu.ErrSuboptimal) {
			// Only OutOfDate can be meaningfully injected.
			err = gpu.ErrOutOfDate
		}
		return -1, err
	}
	s, err := asSemaphore(d, sem)
	if err != nil {
		return -1, err
	}
	d.count(func(st *Stats) { st.Acquires++ })

	idx, now, err := sc.acquire(s)
	if now != nil {
		now.signal()
	}
	return idx, err
}

// acquire takes an available image. It returns s if s is to be
// signaled right away, which the caller does without holding
// sc.mu.
func (sc *swapchain) acquire(s *semaphore) (int, *semaphore, error) {
	d := sc.d
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		d.violate("acquire from destroyed swapchain")
		return -1, nil, errors.Wrap(gpu.ErrDestroyed, "simgpu: swapchain")
	}
	if sc.retired {
		return -1, nil, gpu.ErrOutOfDate
	}
	stale := sc.stale()
	if errors.Is(stale, gpu.ErrOutOfDate) {
		return -1, nil, stale
	}
	for len(sc.avail) == 0 {
		if sc.retired || sc.destroyed {
			return -1, nil, gpu.ErrOutOfDate
		}
		if d.lost.Load() {
			return -1, nil, gpu.ErrDeviceLost
		}
		busy := false
		for i := range sc.state {
			if sc.state[i].presenting() {
				busy = true
				break
			}
		}
		if !busy {
			return -1, nil, ErrNoImage
		}
		sc.cond.Wait()
	}
	var idx int
	if d.opts.ReuseLatest {
		idx = sc.avail[len(sc.avail)-1]
		sc.avail = sc.avail[:len(sc.avail)-1]
	} else {
		idx = sc.avail[0]
		sc.avail = sc.avail[1:]
	}
	st := &sc.state[idx]
	st.acquired = true
	sc.acquires = append(sc.acquires, idx)
	if s != nil && st.presenting() {
		st.deferred = append(st.deferred, deferredSignal{sem: s, after: st.queued})
		s = nil
	}
	return idx, s, stale
}

// Acquired returns the image indices handed out by Acquire, in
// order.
func Acquired(s gpu.Swapchain) []int {
	sc, ok := s.(*swapchain)
	if !ok {
		return nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return append([]int(nil), sc.acquires...)
}

type presentation struct {
	sc    *swapchain
	index int
	wait  *semaphore
}

// Present implements gpu.Device.
func (d *Device) Present(info gpu.PresentInfo) error {
	if err := d.fault(OpPresent); err != nil {
		return err
	}
	sc, ok := info.Swapchain.(*swapchain)
	if !ok || sc.d != d {
		return errors.New("simgpu: foreign swapchain")
	}
	wait, err := asSemaphore(d, info.Wait)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	if sc.destroyed {
		sc.mu.Unlock()
		d.violate("present to destroyed swapchain")
		return errors.Wrap(gpu.ErrDestroyed, "simgpu: swapchain")
	}
	if info.Index < 0 || info.Index >= len(sc.state) || !sc.state[info.Index].acquired {
		sc.mu.Unlock()
		d.violate("present of image %d that was not acquired", info.Index)
		return errors.Newf("simgpu: image %d not acquired", info.Index)
	}
	st := &sc.state[info.Index]
	st.acquired = false
	st.queued++
	if d.opts.EagerRelease {
		sc.avail = append(sc.avail, info.Index)
		sc.cond.Broadcast()
	}
	stale := sc.stale()
	sc.mu.Unlock()

	d.mu.Lock()
	d.stats.Presents++
	d.pending++
	d.mu.Unlock()

	if err := d.enqueue(&presentation{sc: sc, index: info.Index, wait: wait}); err != nil {
		return err
	}
	return stale
}

// execute hands the image to the presentation engine once the
// wait semaphore is signaled. Presentation is a queue operation,
// so it consumes its wait semaphore before any later submission
// can signal that semaphore again.
func (p *presentation) execute(d *Device) bool {
	if p.wait != nil && !p.wait.wait(d) {
		return false
	}
	sc := p.sc
	sc.mu.Lock()
	st := &sc.state[p.index]
	st.presented++
	if !d.opts.EagerRelease {
		sc.avail = append(sc.avail, p.index)
	}
	var signal []*semaphore
	for len(st.deferred) > 0 && st.deferred[0].after <= st.presented {
		signal = append(signal, st.deferred[0].sem)
		st.deferred = st.deferred[1:]
	}
	sc.cond.Broadcast()
	sc.mu.Unlock()

	for _, s := range signal {
		s.signal()
	}
	d.mu.Lock()
	d.pending--
	d.stats.Presented++
	d.idle.Broadcast()
	d.mu.Unlock()
	return true
}
