package vkng

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

type descriptorLayout struct {
	d *Device
	l core1_0.DescriptorSetLayout
}

// NewDescriptorLayout implements gpu.Device.
func (d *Device) NewDescriptorLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorLayout, error) {
	var info core1_0.DescriptorSetLayoutCreateInfo
	for _, b := range bindings {
		info.Bindings = append(info.Bindings, core1_0.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  convDescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      convShaderStage(b.Stages),
		})
	}
	l, res, err := d.driver.CreateDescriptorSetLayout(nil, info)
	if err := check(res, err, "vkng: create descriptor layout"); err != nil {
		return nil, err
	}
	return &descriptorLayout{d: d, l: l}, nil
}

func (l *descriptorLayout) Destroy() {
	if l.l.Initialized() {
		l.d.driver.DestroyDescriptorSetLayout(l.l, nil)
		l.l = core1_0.DescriptorSetLayout{}
	}
}

type descriptorPool struct {
	d *Device
	p core1_0.DescriptorPool
}

// NewDescriptorPool implements gpu.Device.
func (d *Device) NewDescriptorPool(sizes gpu.DescriptorPoolSizes) (gpu.DescriptorPool, error) {
	info := core1_0.DescriptorPoolCreateInfo{MaxSets: sizes.MaxSets}
	for _, s := range []struct {
		t core1_0.DescriptorType
		n int
	}{
		{core1_0.DescriptorTypeUniformBuffer, sizes.UniformBuffers},
		{core1_0.DescriptorTypeStorageBuffer, sizes.StorageBuffers},
		{core1_0.DescriptorTypeCombinedImageSampler, sizes.Samplers},
	} {
		if s.n > 0 {
			info.PoolSizes = append(info.PoolSizes, core1_0.DescriptorPoolSize{Type: s.t, DescriptorCount: s.n})
		}
	}
	p, res, err := d.driver.CreateDescriptorPool(nil, info)
	if err := check(res, err, "vkng: create descriptor pool"); err != nil {
		return nil, err
	}
	return &descriptorPool{d: d, p: p}, nil
}

func (p *descriptorPool) Allocate(layout gpu.DescriptorLayout) (gpu.DescriptorSet, error) {
	l, ok := layout.(*descriptorLayout)
	if !ok || !l.l.Initialized() {
		return nil, errors.Wrap(gpu.ErrDestroyed, "vkng: descriptor layout")
	}
	sets, res, err := p.d.driver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: p.p,
		SetLayouts:     []core1_0.DescriptorSetLayout{l.l},
	})
	if err := check(res, err, "vkng: allocate descriptor set"); err != nil {
		return nil, err
	}
	return sets[0], nil
}

func (p *descriptorPool) Reset() error {
	res, err := p.d.driver.ResetDescriptorPool(p.p, 0)
	return check(res, err, "vkng: reset descriptor pool")
}

func (p *descriptorPool) Destroy() {
	if p.p.Initialized() {
		p.d.driver.DestroyDescriptorPool(p.p, nil)
		p.p = core1_0.DescriptorPool{}
	}
}
