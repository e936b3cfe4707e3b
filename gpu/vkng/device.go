// Package vkng implements gpu.Device on top of vkngwrapper.
//
// The backend owns one instance, one surface and one logical
// device with a graphics queue and a present queue (often the
// same queue). Render brackets are emitted as single-subpass
// render passes whose attachments stay in attachment layouts,
// so the image layout transitions recorded by the caller as
// barriers are the only ones that happen.
package vkng

import (
	"log/slog"
	"unsafe"

	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// Surfacer is a window that Vulkan can present to.
type Surfacer interface {
	// ProcAddr returns vkGetInstanceProcAddr as loaded by the
	// window system.
	ProcAddr() unsafe.Pointer
	// InstanceExtensions returns the instance extensions that
	// the window system needs.
	InstanceExtensions() []string
	// CreateSurface creates the presentable surface.
	CreateSurface(instance core1_0.Instance, ext khr_surface.ExtensionDriver) (khr_surface.Surface, error)
}

// Options configures Open.
type Options struct {
	AppName string
	// Validation enables the Khronos validation layer and
	// routes its messages to Logger.
	Validation bool
	// PushConstantSize is the size in bytes of the push
	// constant range shared by all graphics stages.
	PushConstantSize int
	Logger           *slog.Logger
}

// DefaultOptions returns the options used by the demo.
func DefaultOptions() Options {
	return Options{
		AppName:          "frames",
		PushConstantSize: 128,
	}
}

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

// Device is a Vulkan device with a presentable surface.
type Device struct {
	opts Options
	log  *slog.Logger

	global   core1_0.GlobalDriver
	instance core1_0.CoreInstanceDriver
	debug    ext_debug_utils.ExtensionDriver
	msgr     ext_debug_utils.DebugUtilsMessenger
	surfExt  khr_surface.ExtensionDriver
	surface  khr_surface.Surface

	physical core1_0.PhysicalDevice
	graphics int
	present  int

	driver       core1_0.CoreDeviceDriver
	scExt        khr_swapchain.ExtensionDriver
	graphicsQ    core1_0.Queue
	presentQ     core1_0.Queue
	cmdPool      core1_0.CommandPool
	pushLayout   core1_0.PipelineLayout
	features     gpu.Features
	passes       map[passKey]core1_0.RenderPass
	framebuffers map[fbKey]core1_0.Framebuffer
}

// Open creates a device presenting to win.
func Open(win Surfacer, opts Options) (*Device, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(discard{})
	}
	d := &Device{
		opts:         opts,
		log:          opts.Logger,
		passes:       make(map[passKey]core1_0.RenderPass),
		framebuffers: make(map[fbKey]core1_0.Framebuffer),
	}

	var err error
	d.global, err = core.CreateDriverFromProcAddr(win.ProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "vkng: load driver")
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"create instance", func() error { return d.createInstance(win.InstanceExtensions()) }},
		{"debug messenger", d.setupDebugMessenger},
		{"create surface", func() error { return d.createSurface(win) }},
		{"pick physical device", d.pickPhysicalDevice},
		{"create device", d.createLogicalDevice},
		{"create command pool", d.createCommandPool},
		{"create pipeline layout", d.createPushLayout},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			d.Close()
			return nil, errors.Wrapf(err, "vkng: %s", s.name)
		}
	}
	d.log.Info("vkng: device open", "graphics", d.graphics, "present", d.present, "validation", opts.Validation)
	return d, nil
}

func (d *Device) createInstance(windowExts []string) error {
	info := core1_0.InstanceCreateInfo{
		ApplicationName:    d.opts.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "frames",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	available, _, err := d.global.AvailableExtensions()
	if err != nil {
		return err
	}
	for _, ext := range windowExts {
		if _, ok := available[ext]; !ok {
			return errors.Newf("missing instance extension %s", ext)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext)
	}
	if _, ok := available[khr_portability_enumeration.ExtensionName]; ok {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		info.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if d.opts.Validation {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext_debug_utils.ExtensionName)
		layers, _, err := d.global.AvailableLayers()
		if err != nil {
			return err
		}
		for _, l := range validationLayers {
			if _, ok := layers[l]; !ok {
				return errors.Newf("validation layer %s not available", l)
			}
			info.EnabledLayerNames = append(info.EnabledLayerNames, l)
		}
		info.Next = d.messengerInfo()
	}

	d.instance, _, err = d.global.CreateInstance(nil, info)
	return err
}

func (d *Device) createSurface(win Surfacer) error {
	d.surfExt = khr_surface.CreateExtensionDriverFromCoreDriver(d.instance)
	s, err := win.CreateSurface(d.instance.Instance(), d.surfExt)
	if err != nil {
		return err
	}
	d.surface = s
	return nil
}

func (d *Device) pickPhysicalDevice() error {
	devices, _, err := d.instance.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}
	for _, pd := range devices {
		g, p, ok := d.queueFamilies(pd)
		if !ok || !d.hasExtension(pd, khr_swapchain.ExtensionName) {
			continue
		}
		fmts, _, err := d.surfExt.GetPhysicalDeviceSurfaceFormats(d.surface, pd)
		if err != nil || len(fmts) == 0 {
			continue
		}
		modes, _, err := d.surfExt.GetPhysicalDeviceSurfacePresentModes(d.surface, pd)
		if err != nil || len(modes) == 0 {
			continue
		}
		d.physical, d.graphics, d.present = pd, g, p
		return nil
	}
	return errors.New("no suitable GPU")
}

// queueFamilies prefers a family that can both render and
// present.
func (d *Device) queueFamilies(pd core1_0.PhysicalDevice) (graphics, present int, ok bool) {
	graphics, present = -1, -1
	for i, fam := range d.instance.GetPhysicalDeviceQueueFamilyProperties(pd) {
		g := fam.QueueFlags&core1_0.QueueGraphics != 0
		p, _, err := d.surfExt.GetPhysicalDeviceSurfaceSupport(d.surface, pd, i)
		if err != nil {
			continue
		}
		if g && p {
			return i, i, true
		}
		if g && graphics < 0 {
			graphics = i
		}
		if p && present < 0 {
			present = i
		}
	}
	return graphics, present, graphics >= 0 && present >= 0
}

func (d *Device) hasExtension(pd core1_0.PhysicalDevice, name string) bool {
	exts, _, err := d.instance.EnumerateDeviceExtensionProperties(pd)
	if err != nil {
		return false
	}
	_, ok := exts[name]
	return ok
}

func (d *Device) createLogicalDevice() error {
	families := []int{d.graphics}
	if d.present != d.graphics {
		families = append(families, d.present)
	}
	var queues []core1_0.DeviceQueueCreateInfo
	for _, f := range families {
		queues = append(queues, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: f,
			QueuePriorities:  []float32{1},
		})
	}
	exts := []string{khr_swapchain.ExtensionName}
	if d.hasExtension(d.physical, khr_portability_subset.ExtensionName) {
		exts = append(exts, khr_portability_subset.ExtensionName)
	}

	var err error
	d.driver, _, err = d.instance.CreateDevice(d.physical, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queues,
		EnabledExtensionNames: exts,
	})
	if err != nil {
		return err
	}
	d.scExt = khr_swapchain.CreateExtensionDriverFromCoreDriver(d.driver)
	d.graphicsQ = d.driver.GetQueue(d.graphics, 0)
	d.presentQ = d.driver.GetQueue(d.present, 0)
	d.features = gpu.Features{DepthAttachment: d.depthSupported()}
	return nil
}

func (d *Device) depthSupported() bool {
	for _, f := range []gpu.Format{gpu.FormatD32Float, gpu.FormatD24UnormS8, gpu.FormatD16Unorm} {
		props := d.instance.GetPhysicalDeviceFormatProperties(d.physical, convFormat(f))
		if props.OptimalTilingFeatures&core1_0.FormatFeatureDepthStencilAttachment != 0 {
			return true
		}
	}
	return false
}

func (d *Device) createCommandPool() error {
	var err error
	d.cmdPool, _, err = d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: d.graphics,
	})
	return err
}

// createPushLayout creates the pipeline layout that push
// constants are recorded against.
func (d *Device) createPushLayout() error {
	var ranges []core1_0.PushConstantRange
	if d.opts.PushConstantSize > 0 {
		ranges = append(ranges, core1_0.PushConstantRange{
			StageFlags: core1_0.StageVertex | core1_0.StageFragment,
			Offset:     0,
			Size:       d.opts.PushConstantSize,
		})
	}
	var err error
	d.pushLayout, _, err = d.driver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		PushConstantRanges: ranges,
	})
	return err
}

// Features implements gpu.Device.
// Render brackets use render passes, so DynamicRendering is
// never reported.
func (d *Device) Features() gpu.Features { return d.features }

// SurfaceCapabilities implements gpu.Device.
func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	caps, res, err := d.surfExt.GetPhysicalDeviceSurfaceCapabilities(d.surface, d.physical)
	if err := check(res, err, "vkng: surface capabilities"); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	fmts, res, err := d.surfExt.GetPhysicalDeviceSurfaceFormats(d.surface, d.physical)
	if err := check(res, err, "vkng: surface formats"); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	modes, res, err := d.surfExt.GetPhysicalDeviceSurfacePresentModes(d.surface, d.physical)
	if err := check(res, err, "vkng: present modes"); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}

	sc := gpu.SurfaceCapabilities{
		MinImageCount:    caps.MinImageCount,
		MaxImageCount:    caps.MaxImageCount,
		CurrentExtent:    extentOf(caps.CurrentExtent),
		MinImageExtent:   extentOf(caps.MinImageExtent),
		MaxImageExtent:   extentOf(caps.MaxImageExtent),
		Transforms:       uint32(caps.SupportedTransforms),
		CurrentTransform: uint32(caps.CurrentTransform),
	}
	for _, f := range fmts {
		if f.ColorSpace != khr_surface.ColorSpaceSRGBNonlinear {
			continue
		}
		if gf := formatOf(f.Format); gf != gpu.FormatUndefined {
			sc.Formats = append(sc.Formats, gf)
		}
	}
	for _, m := range modes {
		if gm, ok := presentModeOf(m); ok {
			sc.PresentModes = append(sc.PresentModes, gm)
		}
	}
	return sc, nil
}

// WaitIdle implements gpu.Device.
func (d *Device) WaitIdle() error {
	res, err := d.driver.DeviceWaitIdle()
	return check(res, err, "vkng: wait idle")
}

// Close implements gpu.Device.
// It may be called on a partially opened device.
func (d *Device) Close() {
	if d.driver != nil {
		for k, fb := range d.framebuffers {
			d.driver.DestroyFramebuffer(fb, nil)
			delete(d.framebuffers, k)
		}
		for k, rp := range d.passes {
			d.driver.DestroyRenderPass(rp, nil)
			delete(d.passes, k)
		}
		if d.pushLayout.Initialized() {
			d.driver.DestroyPipelineLayout(d.pushLayout, nil)
		}
		if d.cmdPool.Initialized() {
			d.driver.DestroyCommandPool(d.cmdPool, nil)
		}
		d.driver.DestroyDevice(nil)
		d.driver = nil
	}
	if d.surface.Initialized() {
		d.surfExt.DestroySurface(d.surface, nil)
		d.surface = khr_surface.Surface{}
	}
	if d.msgr.Initialized() {
		d.debug.DestroyDebugUtilsMessenger(d.msgr, nil)
		d.msgr = ext_debug_utils.DebugUtilsMessenger{}
	}
	if d.instance != nil {
		d.instance.DestroyInstance(nil)
		d.instance = nil
	}
}
