package simgpu

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
)

// Op identifies a device operation that can be made to fail.
type Op int

// Operations.
const (
	OpCapabilities Op = iota
	OpSwapchain
	OpImageView
	OpDepthImage
	OpFence
	OpSemaphore
	OpCmdBuffer
	OpDescriptorPool
	OpAcquire
	OpBegin
	OpEnd
	OpSubmit
	OpPresent
)

func (op Op) String() string {
	switch op {
	case OpCapabilities:
		return "capabilities"
	case OpSwapchain:
		return "swapchain"
	case OpImageView:
		return "image view"
	case OpDepthImage:
		return "depth image"
	case OpFence:
		return "fence"
	case OpSemaphore:
		return "semaphore"
	case OpCmdBuffer:
		return "command buffer"
	case OpDescriptorPool:
		return "descriptor pool"
	case OpAcquire:
		return "acquire"
	case OpBegin:
		return "begin"
	case OpEnd:
		return "end"
	case OpSubmit:
		return "submit"
	case OpPresent:
		return "present"
	}
	return "unknown"
}

// ErrInjected is the default error returned by injected
// failures.
var ErrInjected = errors.New("simgpu: injected failure")

// FailNext makes the next call of op fail with err. If err is
// nil, ErrInjected is used. Calls accumulate: each queued error
// is returned once, in order.
func (d *Device) FailNext(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	d.mu.Lock()
	d.faults[op] = append(d.faults[op], err)
	d.mu.Unlock()
}

func (d *Device) fault(op Op) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faultLocked(op)
}

func (d *Device) faultLocked(op Op) error {
	if d.lost.Load() {
		return gpu.ErrDeviceLost
	}
	q := d.faults[op]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	d.faults[op] = q[1:]
	return errors.Wrapf(err, "simgpu: %v", op)
}
