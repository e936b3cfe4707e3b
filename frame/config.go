package frame

import (
	"log/slog"
	"time"

	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
)

// MaxFramesInFlight is the largest supported number of frame
// slots.
const MaxFramesInFlight = 3

// Config configures a Renderer.
type Config struct {
	// FramesInFlight is the number of frame slots (N). The CPU
	// never runs more than N frames ahead of the GPU.
	FramesInFlight int

	// AutoRecreate makes BeginFrame recreate a stale
	// swapchain itself before reporting RetryAfterRecreate.
	// Without it, the caller must call RecreateSwapchain.
	AutoRecreate bool

	// MaxDeferredRecreates caps how many deferred recreation
	// passes may follow each other when the surface keeps
	// changing while the swapchain is rebuilt.
	MaxDeferredRecreates int

	// ColorFormat and PresentMode are preferences; the first
	// format (mode) supported by the surface is used otherwise.
	ColorFormat gpu.Format
	PresentMode gpu.PresentMode

	// DepthFormat is the format of the depth attachment.
	// FormatUndefined disables depth.
	DepthFormat gpu.Format

	ClearColor  [4]float32
	ClearDepth  float32
	ColorLoad   gpu.LoadOp
	ColorStore  gpu.StoreOp
	DepthLoad   gpu.LoadOp
	DepthStore  gpu.StoreOp
	Descriptors gpu.DescriptorPoolSizes
	PausePoll   time.Duration
	FPSWindow   int
	Logger      *slog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FramesInFlight:       2,
		AutoRecreate:         true,
		MaxDeferredRecreates: 5,
		ColorFormat:          gpu.FormatBGRA8SRGB,
		PresentMode:          gpu.PresentImmediate,
		DepthFormat:          gpu.FormatD32Float,
		ClearColor:           [4]float32{0.1, 0.2, 0.3, 1},
		ClearDepth:           1,
		ColorLoad:            gpu.LoadClear,
		ColorStore:           gpu.StoreKeep,
		DepthLoad:            gpu.LoadClear,
		DepthStore:           gpu.StoreDontCare,
		Descriptors: gpu.DescriptorPoolSizes{
			MaxSets:        256,
			UniformBuffers: 256,
			StorageBuffers: 64,
			Samplers:       256,
		},
		PausePoll: 16 * time.Millisecond,
		FPSWindow: 60,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.FramesInFlight < 1 || c.FramesInFlight > MaxFramesInFlight:
		return errors.Newf("frame: FramesInFlight must be in [1, %d], got %d", MaxFramesInFlight, c.FramesInFlight)
	case c.MaxDeferredRecreates < 0:
		return errors.Newf("frame: negative MaxDeferredRecreates %d", c.MaxDeferredRecreates)
	case c.ColorFormat.IsDepth():
		return errors.Newf("frame: %v is not a color format", c.ColorFormat)
	case c.DepthFormat != gpu.FormatUndefined && !c.DepthFormat.IsDepth():
		return errors.Newf("frame: %v is not a depth format", c.DepthFormat)
	case c.PausePoll <= 0:
		return errors.New("frame: PausePoll must be positive")
	case c.Descriptors.MaxSets <= 0:
		return errors.New("frame: descriptor pools need at least one set")
	case c.FPSWindow <= 0:
		return errors.New("frame: FPSWindow must be positive")
	}
	return nil
}
