package gpu

import "github.com/cockroachdb/errors"

// ErrOutOfDate means that the swapchain no longer matches the
// surface and cannot be used for presentation any more.
var ErrOutOfDate = errors.New("gpu: swapchain out of date")

// ErrSuboptimal means that the swapchain can still be used but
// no longer matches the surface exactly.
var ErrSuboptimal = errors.New("gpu: swapchain suboptimal")

// ErrSurfaceLost means that the presentable surface is gone.
var ErrSurfaceLost = errors.New("gpu: surface lost")

// ErrDeviceLost means that the device is in an unrecoverable
// state. Upon encountering such an error, the application must
// destroy everything that it created from the device and then
// close it.
var ErrDeviceLost = errors.New("gpu: device lost")

// ErrDestroyed means that an object was used after its Destroy
// method was called.
var ErrDestroyed = errors.New("gpu: use of destroyed object")

// IsStale reports whether err reports a swapchain that must be
// recreated.
func IsStale(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}

// IsDeviceLost reports whether err is unrecoverable.
func IsDeviceLost(err error) bool { return errors.Is(err, ErrDeviceLost) }
