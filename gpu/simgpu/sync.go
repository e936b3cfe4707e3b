package simgpu

import (
	"sync"
	"sync/atomic"

	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
)

var fenceIDs, semIDs atomic.Int64

type fence struct {
	d  *Device
	id int64

	mu        sync.Mutex
	cond      *sync.Cond
	signaled  bool
	destroyed bool
	pending   int
	waits     int
}

// NewFence implements gpu.Device.
func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	if err := d.fault(OpFence); err != nil {
		return nil, err
	}
	f := &fence{d: d, id: fenceIDs.Add(1), signaled: signaled}
	f.cond = sync.NewCond(&f.mu)
	d.mu.Lock()
	d.stats.FencesCreated++
	d.fences[f] = struct{}{}
	d.mu.Unlock()
	return f, nil
}

func (f *fence) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits++
	for !f.signaled && !f.destroyed && !f.d.lost.Load() {
		f.cond.Wait()
	}
	switch {
	case f.destroyed:
		f.d.violate("wait on destroyed fence %d", f.id)
		return errors.Wrapf(gpu.ErrDestroyed, "simgpu: fence %d", f.id)
	case f.d.lost.Load():
		return gpu.ErrDeviceLost
	}
	return nil
}

func (f *fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyed {
		f.d.violate("reset of destroyed fence %d", f.id)
		return errors.Wrapf(gpu.ErrDestroyed, "simgpu: fence %d", f.id)
	}
	if f.pending > 0 {
		f.d.violate("reset of fence %d with pending submission", f.id)
	}
	f.signaled = false
	return nil
}

func (f *fence) Signaled() (bool, error) {
	if f.d.lost.Load() {
		return false, gpu.ErrDeviceLost
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled, nil
}

func (f *fence) Destroy() {
	f.mu.Lock()
	if f.pending > 0 {
		f.d.violate("destroy of fence %d with pending submission", f.id)
	}
	f.destroyed = true
	f.cond.Broadcast()
	f.mu.Unlock()

	f.d.mu.Lock()
	f.d.stats.FencesDestroyed++
	delete(f.d.fences, f)
	f.d.mu.Unlock()
}

// submit marks the fence as the target of a queued submission.
func (f *fence) submit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyed {
		f.d.violate("submit with destroyed fence %d", f.id)
		return errors.Wrapf(gpu.ErrDestroyed, "simgpu: fence %d", f.id)
	}
	if f.signaled {
		f.d.violate("submit with signaled fence %d", f.id)
	}
	f.pending++
	return nil
}

func (f *fence) signal() {
	f.mu.Lock()
	f.pending--
	f.signaled = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

func (f *fence) wake() {
	f.mu.Lock()
	f.cond.Broadcast()
	f.mu.Unlock()
}

// FenceWaits returns how many times Wait was called on a fence
// created by a simulated device.
func FenceWaits(f gpu.Fence) int {
	sf, ok := f.(*fence)
	if !ok {
		return 0
	}
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.waits
}

type semaphore struct {
	d         *Device
	id        int64
	ch        chan struct{}
	destroyed atomic.Bool
}

// NewSemaphore implements gpu.Device.
func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	if err := d.fault(OpSemaphore); err != nil {
		return nil, err
	}
	d.count(func(s *Stats) { s.SemaphoresCreated++ })
	return &semaphore{d: d, id: semIDs.Add(1), ch: make(chan struct{}, 1)}, nil
}

func (s *semaphore) Destroy() {
	if s.destroyed.Swap(true) {
		s.d.violate("double destroy of semaphore %d", s.id)
		return
	}
	s.d.count(func(st *Stats) { st.SemaphoresDestroyed++ })
}

func (s *semaphore) signal() {
	if s.destroyed.Load() {
		s.d.violate("signal of destroyed semaphore %d", s.id)
		return
	}
	select {
	case s.ch <- struct{}{}:
		return
	default:
	}
	// A binary semaphore cannot hold two signals. The second
	// one waits for the first to be consumed.
	s.d.violate("semaphore %d signaled while a signal is pending", s.id)
	select {
	case s.ch <- struct{}{}:
	case <-s.d.ctx.Done():
	}
}

// wait blocks until the semaphore is signaled or the device is
// closed. It reports false in the latter case.
func (s *semaphore) wait(d *Device) bool {
	if s.destroyed.Load() {
		d.violate("wait on destroyed semaphore %d", s.id)
		return true
	}
	select {
	case <-s.ch:
		return true
	case <-d.ctx.Done():
		return false
	}
}

func asSemaphore(d *Device, s gpu.Semaphore) (*semaphore, error) {
	if s == nil {
		return nil, nil
	}
	ss, ok := s.(*semaphore)
	if !ok || ss.d != d {
		return nil, errors.New("simgpu: foreign semaphore")
	}
	if ss.destroyed.Load() {
		d.violate("use of destroyed semaphore %d", ss.id)
		return nil, errors.Wrapf(gpu.ErrDestroyed, "simgpu: semaphore %d", ss.id)
	}
	return ss, nil
}
