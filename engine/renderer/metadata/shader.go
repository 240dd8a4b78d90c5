package metadata

import (
	"fmt"
	"math/bits"
	"strings"
)

/**
 * @brief A shader feature combination. The low byte holds one presence bit
 * per texture slot, the following bits select vertex and pass features.
 */
type PermutationMask uint32

const (
	MaskDiffuseMap PermutationMask = 1 << iota
	MaskNormalMap
	MaskSpecularMap
	MaskEmissiveMap
	MaskMetallicRoughnessMap
	MaskOcclusionMap
	MaskOpacityMap
	MaskEnvironmentMap
	MaskInstancing
	MaskSkinning
	MaskAlphaBlend
	MaskAlphaTest
	MaskMotionBlur
	MaskDepthOnly
	MaskReceiveShadows
	MaskVertexColor

	maskBitCount = iota
)

const (
	/** @brief Every texture presence bit. */
	MaskTextureBits PermutationMask = MaskDiffuseMap | MaskNormalMap | MaskSpecularMap | MaskEmissiveMap |
		MaskMetallicRoughnessMap | MaskOcclusionMap | MaskOpacityMap | MaskEnvironmentMap
	/** @brief The bits a reduced fallback keeps; they change the vertex input layout. */
	MaskFallbackPreserved PermutationMask = MaskInstancing | MaskSkinning
	/** @brief The permutation with no feature at all. */
	DefaultMask PermutationMask = 0
)

var maskNames = [maskBitCount]string{
	"HAS_DIFFUSE_MAP",
	"HAS_NORMAL_MAP",
	"HAS_SPECULAR_MAP",
	"HAS_EMISSIVE_MAP",
	"HAS_METALLIC_ROUGHNESS_MAP",
	"HAS_OCCLUSION_MAP",
	"HAS_OPACITY_MAP",
	"HAS_ENVIRONMENT_MAP",
	"INSTANCING",
	"SKINNING",
	"ALPHA_BLEND",
	"ALPHA_TEST",
	"MOTION_BLUR",
	"DEPTH_ONLY",
	"RECEIVE_SHADOWS",
	"VERTEX_COLOR",
}

func (m PermutationMask) Has(bit PermutationMask) bool {
	return m&bit == bit
}

// Reduced strips every feature bit, keeping only the layout-changing ones.
func (m PermutationMask) Reduced() PermutationMask {
	return m & MaskFallbackPreserved
}

// Defines returns the pre-processor names of the set bits, lowest bit first.
func (m PermutationMask) Defines() []string {
	defines := make([]string, 0, bits.OnesCount32(uint32(m)))
	for i := 0; i < maskBitCount; i++ {
		if m&(1<<i) != 0 {
			defines = append(defines, maskNames[i])
		}
	}
	return defines
}

func (m PermutationMask) String() string {
	if m == DefaultMask {
		return "0x0000[]"
	}
	return fmt.Sprintf("0x%04x[%s]", uint32(m), strings.Join(m.Defines(), "|"))
}

/** @brief Texture slots a material can fill. */
type TextureSlot uint8

const (
	TextureSlotDiffuse TextureSlot = iota
	TextureSlotNormal
	TextureSlotSpecular
	TextureSlotEmissive
	TextureSlotMetallicRoughness
	TextureSlotOcclusion
	TextureSlotOpacity
	TextureSlotEnvironment
	TextureSlotCount
)

// MaskBit returns the presence bit of the slot.
func (s TextureSlot) MaskBit() PermutationMask {
	return PermutationMask(1) << s
}

/**
 * @brief The lifecycle of a variant. Transitions are monotonic:
 * absent -> pending -> valid, or pending -> invalid for good.
 */
type VariantState uint8

const (
	VariantAbsent VariantState = iota
	VariantPending
	VariantValid
	VariantInvalid
)

func (s VariantState) String() string {
	switch s {
	case VariantAbsent:
		return "absent"
	case VariantPending:
		return "pending"
	case VariantValid:
		return "valid"
	case VariantInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

type ShaderModuleHandle uint64

type InputLayoutHandle uint64

/** @brief A shader module and the entry point to run in it. */
type ProgramHandle struct {
	Module     ShaderModuleHandle
	EntryPoint string
}

/**
 * @brief Compiled pipeline state for one permutation. Once published as
 * valid it is never modified again.
 */
type PipelineVariant struct {
	Mask          PermutationMask
	VertexProgram ProgramHandle
	/** @brief Empty for depth-only permutations. */
	PixelProgram ProgramHandle
	InputLayout  InputLayoutHandle
	Valid        bool
}
