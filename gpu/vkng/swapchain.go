package vkng

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type swapchain struct {
	d      *Device
	sc     khr_swapchain.Swapchain
	images []gpu.Image
	format gpu.Format
	extent gpu.Extent
}

// NewSwapchain implements gpu.Device.
func (d *Device) NewSwapchain(cfg gpu.SwapchainConfig) (gpu.Swapchain, error) {
	caps, res, err := d.surfExt.GetPhysicalDeviceSurfaceCapabilities(d.surface, d.physical)
	if err := check(res, err, "vkng: surface capabilities"); err != nil {
		return nil, err
	}

	info := khr_swapchain.SwapchainCreateInfo{
		Surface:          d.surface,
		MinImageCount:    cfg.ImageCount,
		ImageFormat:      convFormat(cfg.Format),
		ImageColorSpace:  khr_surface.ColorSpaceSRGBNonlinear,
		ImageExtent:      convExtent(cfg.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,
		ImageSharingMode: core1_0.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   khr_surface.CompositeAlphaOpaque,
		PresentMode:      convPresentMode(cfg.PresentMode),
		Clipped:          true,
	}
	if d.graphics != d.present {
		info.ImageSharingMode = core1_0.SharingModeConcurrent
		info.QueueFamilyIndices = []int{d.graphics, d.present}
	}
	if cfg.Old != nil {
		old, ok := cfg.Old.(*swapchain)
		if !ok || !old.sc.Initialized() {
			return nil, errors.Wrap(gpu.ErrDestroyed, "vkng: old swapchain")
		}
		info.OldSwapchain = old.sc
	}

	sc, res, err := d.scExt.CreateSwapchain(nil, info)
	if err := check(res, err, "vkng: create swapchain"); err != nil {
		return nil, err
	}
	imgs, res, err := d.scExt.GetSwapchainImages(sc)
	if err := check(res, err, "vkng: swapchain images"); err != nil {
		d.scExt.DestroySwapchain(sc, nil)
		return nil, err
	}
	s := &swapchain{d: d, sc: sc, format: cfg.Format, extent: cfg.Extent}
	for _, img := range imgs {
		s.images = append(s.images, &image{d: d, img: img, extent: cfg.Extent})
	}
	d.log.Debug("vkng: swapchain created", "extent", cfg.Extent, "images", len(imgs), "mode", cfg.PresentMode)
	return s, nil
}

func (s *swapchain) Images() []gpu.Image { return s.images }
func (s *swapchain) Format() gpu.Format  { return s.format }
func (s *swapchain) Extent() gpu.Extent  { return s.extent }

func (s *swapchain) Destroy() {
	if !s.sc.Initialized() {
		return
	}
	for _, img := range s.images {
		img.Destroy()
	}
	s.d.scExt.DestroySwapchain(s.sc, nil)
	s.sc = khr_swapchain.Swapchain{}
}

func (s *swapchain) Acquire(sem gpu.Semaphore) (int, error) {
	if !s.sc.Initialized() {
		return -1, errors.Wrap(gpu.ErrDestroyed, "vkng: swapchain")
	}
	var sp *core1_0.Semaphore
	if sem != nil {
		x, ok := sem.(*semaphore)
		if !ok || !x.s.Initialized() {
			return -1, errors.Wrap(gpu.ErrDestroyed, "vkng: semaphore")
		}
		sp = &x.s
	}
	idx, res, err := s.d.scExt.AcquireNextImage(s.sc, common.NoTimeout, sp, nil)
	if err := check(res, err, "vkng: acquire"); err != nil {
		if errors.Is(err, gpu.ErrSuboptimal) {
			return idx, err
		}
		return -1, err
	}
	return idx, nil
}

// Present implements gpu.Device.
func (d *Device) Present(info gpu.PresentInfo) error {
	s, ok := info.Swapchain.(*swapchain)
	if !ok || !s.sc.Initialized() {
		return errors.Wrap(gpu.ErrDestroyed, "vkng: swapchain")
	}
	wait, err := semaphores(info.Wait)
	if err != nil {
		return err
	}
	res, err := d.scExt.QueuePresent(d.presentQ, khr_swapchain.PresentInfo{
		WaitSemaphores: wait,
		Swapchains:     []khr_swapchain.Swapchain{s.sc},
		ImageIndices:   []int{info.Index},
	})
	return check(res, err, "vkng: present")
}
