package frame

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
)

// frameSlot is one round-robin unit of per-frame resources.
type frameSlot struct {
	index int
	// serial is the number of the last frame begun on the
	// slot.
	serial uint64

	// acquire is signaled when the acquired image can be
	// written; renderDone when the frame's commands are done.
	acquire    gpu.Semaphore
	renderDone gpu.Semaphore

	// fence is signaled when the slot's last submission
	// completed. It is created signaled so that the first
	// wait does not block.
	fence gpu.Fence

	cmd         gpu.CmdBuffer
	descriptors gpu.DescriptorPool
}

func newSlot(dev gpu.Device, index int, sizes gpu.DescriptorPoolSizes) (s *frameSlot, err error) {
	s = &frameSlot{index: index}
	defer func() {
		if err != nil {
			s.destroy()
			s = nil
		}
	}()
	if s.cmd, err = dev.NewCmdBuffer(); err != nil {
		return
	}
	if s.descriptors, err = dev.NewDescriptorPool(sizes); err != nil {
		return
	}
	if s.fence, err = dev.NewFence(true); err != nil {
		return
	}
	if s.acquire, err = dev.NewSemaphore(); err != nil {
		return
	}
	s.renderDone, err = dev.NewSemaphore()
	return
}

func newSlots(dev gpu.Device, n int, sizes gpu.DescriptorPoolSizes) ([]*frameSlot, error) {
	slots := make([]*frameSlot, 0, n)
	for i := 0; i < n; i++ {
		s, err := newSlot(dev, i, sizes)
		if err != nil {
			for _, s := range slots {
				s.destroy()
			}
			return nil, errors.Wrapf(err, "frame: slot %d", i)
		}
		slots = append(slots, s)
	}
	return slots, nil
}

// reset prepares the slot for recording. It must only be called
// after the slot's fence was waited on, since that proves the
// GPU is done with every descriptor set allocated from the pool.
func (s *frameSlot) reset() error {
	if err := s.descriptors.Reset(); err != nil {
		return errors.Wrap(err, "frame: descriptor pool reset")
	}
	if err := s.cmd.Reset(); err != nil {
		return errors.Wrap(err, "frame: command buffer reset")
	}
	return nil
}

// renewSemaphores replaces both semaphores. The old ones are
// only destroyed once both replacements exist.
func (s *frameSlot) renewSemaphores(dev gpu.Device) error {
	acq, err := dev.NewSemaphore()
	if err != nil {
		return err
	}
	done, err := dev.NewSemaphore()
	if err != nil {
		acq.Destroy()
		return err
	}
	s.acquire.Destroy()
	s.renderDone.Destroy()
	s.acquire, s.renderDone = acq, done
	return nil
}

// renewFence replaces the fence with a signaled one. It is used
// when the fence was reset but no submission will signal it.
func (s *frameSlot) renewFence(dev gpu.Device) error {
	f, err := dev.NewFence(true)
	if err != nil {
		return err
	}
	s.fence.Destroy()
	s.fence = f
	return nil
}

func (s *frameSlot) destroy() {
	if s.acquire != nil {
		s.acquire.Destroy()
	}
	if s.renderDone != nil {
		s.renderDone.Destroy()
	}
	if s.fence != nil {
		s.fence.Destroy()
	}
	if s.cmd != nil {
		s.cmd.Destroy()
	}
	if s.descriptors != nil {
		s.descriptors.Destroy()
	}
	*s = frameSlot{index: s.index}
}
