package vkng

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// image is either a swapchain image, which the swapchain owns,
// or a depth image bound to its own memory.
type image struct {
	d      *Device
	img    core1_0.Image
	mem    core1_0.DeviceMemory
	owned  bool
	extent gpu.Extent
}

func (im *image) Destroy() {
	if !im.owned {
		im.img = core1_0.Image{}
		return
	}
	if im.img.Initialized() {
		im.d.driver.DestroyImage(im.img, nil)
		im.img = core1_0.Image{}
	}
	if im.mem.Initialized() {
		im.d.driver.FreeMemory(im.mem, nil)
		im.mem = core1_0.DeviceMemory{}
	}
}

func asImage(img gpu.Image) (*image, error) {
	im, ok := img.(*image)
	if !ok || !im.img.Initialized() {
		return nil, errors.Wrap(gpu.ErrDestroyed, "vkng: image")
	}
	return im, nil
}

// NewDepthImage implements gpu.Device.
func (d *Device) NewDepthImage(extent gpu.Extent, format gpu.Format) (gpu.Image, error) {
	if !format.IsDepth() {
		return nil, errors.Newf("vkng: %v is not a depth format", format)
	}
	img, res, err := d.driver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        convFormat(format),
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         core1_0.ImageUsageDepthStencilAttachment,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err := check(res, err, "vkng: create depth image"); err != nil {
		return nil, err
	}
	im := &image{d: d, img: img, owned: true, extent: extent}

	reqs := d.driver.GetImageMemoryRequirements(img)
	idx, err := d.findMemoryType(reqs.MemoryTypeBits, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		im.Destroy()
		return nil, err
	}
	im.mem, res, err = d.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: idx,
	})
	if err := check(res, err, "vkng: allocate depth memory"); err != nil {
		im.Destroy()
		return nil, err
	}
	res, err = d.driver.BindImageMemory(img, im.mem, 0)
	if err := check(res, err, "vkng: bind depth memory"); err != nil {
		im.Destroy()
		return nil, err
	}
	return im, nil
}

func (d *Device) findMemoryType(typeFilter uint32, props core1_0.MemoryPropertyFlags) (int, error) {
	mem := d.instance.GetPhysicalDeviceMemoryProperties(d.physical)
	for i, t := range mem.MemoryTypes {
		if typeFilter&(1<<i) != 0 && t.PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, errors.Newf("vkng: no memory type with properties %s", props)
}

type imageView struct {
	d      *Device
	v      core1_0.ImageView
	extent gpu.Extent
}

// NewImageView implements gpu.Device.
func (d *Device) NewImageView(img gpu.Image, format gpu.Format, aspect gpu.Aspect) (gpu.ImageView, error) {
	im, err := asImage(img)
	if err != nil {
		return nil, err
	}
	v, res, err := d.driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    im.img,
		ViewType: core1_0.ImageViewType2D,
		Format:   convFormat(format),
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     convAspect(aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err := check(res, err, "vkng: create image view"); err != nil {
		return nil, err
	}
	return &imageView{d: d, v: v, extent: im.extent}, nil
}

// Destroy also destroys the framebuffers that were created for
// the view.
func (v *imageView) Destroy() {
	if !v.v.Initialized() {
		return
	}
	v.d.forgetView(v)
	v.d.driver.DestroyImageView(v.v, nil)
	v.v = core1_0.ImageView{}
}
