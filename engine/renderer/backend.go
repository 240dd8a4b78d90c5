package renderer

import (
	"github.com/spaghettifunk/frameforge/engine/math"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

/**
 * @brief The GPU device abstraction the frame pipeline drives. Every
 * method may be called from the render goroutine; CreateShaderModule and
 * CreateInputLayout are also called from the shader compile worker.
 * Errors wrapping core.ErrDeviceLost abort the frame.
 */
type Device interface {
	CreateRenderTarget(desc metadata.RenderTargetDescriptor) (*metadata.RenderTarget, error)
	DestroyRenderTarget(target *metadata.RenderTarget)
	/** @brief Creates a shader module from SPIR-V words. */
	CreateShaderModule(label string, spirv []uint32) (metadata.ShaderModuleHandle, error)
	/** @brief Creates the vertex input layout a permutation expects. */
	CreateInputLayout(mask metadata.PermutationMask) (metadata.InputLayoutHandle, error)
	BeginPass(pass metadata.PassType, targets []*metadata.RenderTarget) error
	Submit(call *metadata.DrawCall) error
	EndPass(pass metadata.PassType) error
}

/**
 * @brief Exposes the material state the frame pipeline reads: texture
 * presence and blend/depth state.
 */
type MaterialLibrary interface {
	Material(handle metadata.MaterialHandle) (*metadata.Material, bool)
}

type Visibility uint8

const (
	Visible Visibility = iota
	Culled
)

/**
 * @brief A visibility test. Implementations must be safe for concurrent
 * use, the culling pass calls Test from several workers.
 */
type Culler interface {
	Test(bounds math.Sphere) Visibility
}
