package vkng

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

type fence struct {
	d *Device
	f core1_0.Fence
}

// NewFence implements gpu.Device.
func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	var info core1_0.FenceCreateInfo
	if signaled {
		info.Flags = core1_0.FenceCreateSignaled
	}
	f, res, err := d.driver.CreateFence(nil, info)
	if err := check(res, err, "vkng: create fence"); err != nil {
		return nil, err
	}
	return &fence{d: d, f: f}, nil
}

func (f *fence) Wait() error {
	if !f.f.Initialized() {
		return errors.Wrap(gpu.ErrDestroyed, "vkng: fence")
	}
	res, err := f.d.driver.WaitForFences(true, common.NoTimeout, f.f)
	return check(res, err, "vkng: wait fence")
}

func (f *fence) Reset() error {
	if !f.f.Initialized() {
		return errors.Wrap(gpu.ErrDestroyed, "vkng: fence")
	}
	res, err := f.d.driver.ResetFences(f.f)
	return check(res, err, "vkng: reset fence")
}

func (f *fence) Signaled() (bool, error) {
	if !f.f.Initialized() {
		return false, errors.Wrap(gpu.ErrDestroyed, "vkng: fence")
	}
	res, err := f.d.driver.GetFenceStatus(f.f)
	if res == core1_0.VKNotReady {
		return false, nil
	}
	if err := check(res, err, "vkng: fence status"); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fence) Destroy() {
	if f.f.Initialized() {
		f.d.driver.DestroyFence(f.f, nil)
		f.f = core1_0.Fence{}
	}
}

type semaphore struct {
	d *Device
	s core1_0.Semaphore
}

// NewSemaphore implements gpu.Device.
func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	s, res, err := d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err := check(res, err, "vkng: create semaphore"); err != nil {
		return nil, err
	}
	return &semaphore{d: d, s: s}, nil
}

func (s *semaphore) Destroy() {
	if s.s.Initialized() {
		s.d.driver.DestroySemaphore(s.s, nil)
		s.s = core1_0.Semaphore{}
	}
}

// semaphores unwraps the non-nil semaphores of ss.
func semaphores(ss ...gpu.Semaphore) ([]core1_0.Semaphore, error) {
	var vs []core1_0.Semaphore
	for _, s := range ss {
		if s == nil {
			continue
		}
		x, ok := s.(*semaphore)
		if !ok || !x.s.Initialized() {
			return nil, errors.Wrap(gpu.ErrDestroyed, "vkng: semaphore")
		}
		vs = append(vs, x.s)
	}
	return vs, nil
}

// Submit implements gpu.Device.
func (d *Device) Submit(info gpu.SubmitInfo) error {
	var si core1_0.SubmitInfo
	wait, err := semaphores(info.Wait)
	if err != nil {
		return err
	}
	if len(wait) > 0 {
		si.WaitSemaphores = wait
		si.WaitDstStageMask = []core1_0.PipelineStageFlags{convStage(info.WaitStage)}
	}
	if si.SignalSemaphores, err = semaphores(info.Signal); err != nil {
		return err
	}
	if info.Cmd != nil {
		cb, ok := info.Cmd.(*cmdBuffer)
		if !ok || !cb.cb.Initialized() {
			return errors.Wrap(gpu.ErrDestroyed, "vkng: command buffer")
		}
		si.CommandBuffers = []core1_0.CommandBuffer{cb.cb}
	}
	var fp *core1_0.Fence
	if info.Fence != nil {
		f, ok := info.Fence.(*fence)
		if !ok || !f.f.Initialized() {
			return errors.Wrap(gpu.ErrDestroyed, "vkng: fence")
		}
		fp = &f.f
	}
	res, err := d.driver.QueueSubmit(d.graphicsQ, fp, si)
	return check(res, err, "vkng: submit")
}
