package metadata

import (
	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/frameforge/engine/math"
)

/** @brief The kind of pass a set of draw calls belongs to. */
type PassType uint8

const (
	/** @brief Depth-only pass into the shadow map. */
	PassShadow PassType = iota
	/** @brief Opaque and alpha-tested geometry. */
	PassOpaque
	/** @brief Alpha-blended geometry, depth sorted. */
	PassAlpha
	PassTypeCount
)

func (p PassType) String() string {
	switch p {
	case PassShadow:
		return "shadow"
	case PassOpaque:
		return "opaque"
	case PassAlpha:
		return "alpha"
	default:
		return "unknown"
	}
}

/**
 * @brief Describes a transient render target or depth buffer. Two
 * descriptors that compare equal are interchangeable.
 */
type RenderTargetDescriptor struct {
	Width       uint32
	Height      uint32
	Format      gputypes.TextureFormat
	Usage       gputypes.TextureUsage
	SampleCount uint32
}

// IsDepth reports whether the descriptor is a depth buffer.
func (d RenderTargetDescriptor) IsDepth() bool {
	return d.Format == gputypes.TextureFormatDepth24PlusStencil8
}

/** @brief A render target created by the device. */
type RenderTarget struct {
	/** @brief Unique name, used in logs and debug captures. */
	Name       string
	Descriptor RenderTargetDescriptor
	/** @brief The device object. */
	Handle uint64
}

/**
 * @brief One GPU submission. Instanced calls carry their own chunk of
 * instance data; single draws use World/PrevWorld directly.
 */
type DrawCall struct {
	Pass      PassType
	Mask      PermutationMask
	Variant   *PipelineVariant
	Geometry  GeometryHandle
	Material  MaterialHandle
	Instanced bool
	/** @brief Set when Variant serves a reduced or default permutation. */
	Fallback bool

	World      math.Mat4
	PrevWorld  math.Mat4
	SkinStream SkinStreamID

	Instances []InstanceData
}

// InstanceCount returns the number of instances drawn by the call.
func (d *DrawCall) InstanceCount() int {
	if !d.Instanced {
		return 1
	}
	return len(d.Instances)
}

/**
 * @brief A named attachment a pass renders into. Passes naming the same
 * attachment share one render target within a frame.
 */
type Attachment struct {
	Name       string
	Descriptor RenderTargetDescriptor
}
