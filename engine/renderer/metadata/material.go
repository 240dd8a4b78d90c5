package metadata

/** @brief How a material is composited. */
type BlendMode uint8

const (
	BlendModeOpaque BlendMode = iota
	/** @brief Opaque with alpha-tested holes. */
	BlendModeAlphaTest
	/** @brief Blended, drawn after opaque geometry in back-to-front order. */
	BlendModeAlphaBlend
)

/**
 * @brief The part of a material the frame pipeline needs: texture
 * presence and blend/depth state.
 */
type Material struct {
	Handle MaterialHandle
	Name   string
	/** @brief Texture presence per slot. */
	Textures        [TextureSlotCount]bool
	Blend           BlendMode
	CastsShadows    bool
	ReceivesShadows bool
	VertexColor     bool
}

func (m *Material) HasTexture(slot TextureSlot) bool {
	if slot >= TextureSlotCount {
		return false
	}
	return m.Textures[slot]
}

// FeatureMask returns the permutation bits the material alone contributes.
func (m *Material) FeatureMask() PermutationMask {
	var mask PermutationMask
	for slot := TextureSlot(0); slot < TextureSlotCount; slot++ {
		if m.Textures[slot] {
			mask |= slot.MaskBit()
		}
	}
	if m.Blend == BlendModeAlphaTest {
		mask |= MaskAlphaTest
	}
	if m.ReceivesShadows {
		mask |= MaskReceiveShadows
	}
	if m.VertexColor {
		mask |= MaskVertexColor
	}
	return mask
}
