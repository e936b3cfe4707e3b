package frame

import (
	"encoding/binary"
	"math"

	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// recording returns the command buffer of the frame being
// recorded.
func (r *Renderer) recording() (gpu.CmdBuffer, error) {
	if r.active == nil {
		return nil, ErrNotRecording
	}
	return r.slots[r.cur].cmd, nil
}

// CommandBuffer returns the command buffer of the current frame.
// It must not be used to begin or end rendering, or after
// EndFrame.
func (r *Renderer) CommandBuffer() (gpu.CmdBuffer, error) { return r.recording() }

// SetViewport overrides the full-target viewport BeginFrame
// records.
func (r *Renderer) SetViewport(vp gpu.Viewport) error {
	cmd, err := r.recording()
	if err != nil {
		return err
	}
	cmd.SetViewport(vp)
	return nil
}

// SetScissor overrides the full-target scissor BeginFrame
// records.
func (r *Renderer) SetScissor(rect gpu.Rect) error {
	cmd, err := r.recording()
	if err != nil {
		return err
	}
	cmd.SetScissor(rect)
	return nil
}

// SetPushConstants records a push constant update. data is one
// of []byte, []float32, []int32, []uint32, mgl32.Vec2,
// mgl32.Vec3, mgl32.Vec4 or mgl32.Mat4; numbers are encoded in
// little-endian order.
func (r *Renderer) SetPushConstants(stages gpu.ShaderStage, offset int, data any) error {
	cmd, err := r.recording()
	if err != nil {
		return err
	}
	b, err := pushBytes(data)
	if err != nil {
		return err
	}
	if offset%4 != 0 || len(b)%4 != 0 {
		return errors.Newf("frame: push constant range [%d, %d) is not 4-byte aligned", offset, offset+len(b))
	}
	cmd.PushConstants(stages, offset, b)
	return nil
}

func pushBytes(data any) ([]byte, error) {
	switch v := data.(type) {
	case []byte:
		return v, nil
	case []float32:
		return floatBytes(v), nil
	case []int32:
		b := make([]byte, 4*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint32(b[4*i:], uint32(x))
		}
		return b, nil
	case []uint32:
		b := make([]byte, 4*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint32(b[4*i:], x)
		}
		return b, nil
	case mgl32.Vec2:
		return floatBytes(v[:]), nil
	case mgl32.Vec3:
		return floatBytes(v[:]), nil
	case mgl32.Vec4:
		return floatBytes(v[:]), nil
	case mgl32.Mat4:
		return floatBytes(v[:]), nil
	}
	return nil, errors.Newf("frame: unsupported push constant type %T", data)
}

func floatBytes(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
	}
	return b
}

// Draw records a non-indexed draw.
func (r *Renderer) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) error {
	cmd, err := r.recording()
	if err != nil {
		return err
	}
	cmd.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	return nil
}

// DrawMesh dispatches mesh shader work groups. The device must
// report gpu.Features.MeshShader; otherwise nothing is recorded
// and ErrNoMeshShader is returned.
func (r *Renderer) DrawMesh(groupCountX, groupCountY, groupCountZ int) error {
	cmd, err := r.recording()
	if err != nil {
		return err
	}
	if !r.dev.Features().MeshShader {
		return ErrNoMeshShader
	}
	cmd.DrawMeshTasks(groupCountX, groupCountY, groupCountZ)
	return nil
}

// AllocateDescriptorSet allocates a descriptor set from the
// current slot's pool. The set is valid until the slot comes
// around again; it is never freed individually.
func (r *Renderer) AllocateDescriptorSet(layout gpu.DescriptorLayout) (gpu.DescriptorSet, error) {
	if r.active == nil {
		return nil, ErrNotRecording
	}
	set, err := r.slots[r.cur].descriptors.Allocate(layout)
	if err != nil {
		return nil, errors.Wrap(err, "frame: descriptor set")
	}
	return set, nil
}
