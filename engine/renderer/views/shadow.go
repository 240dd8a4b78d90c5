package views

import "github.com/spaghettifunk/frameforge/engine/renderer/metadata"

// ShadowView renders shadow casters into a square depth map.
type ShadowView struct {
	enabled bool
	mapSize uint32
}

func NewShadowView(enabled bool, mapSize uint32) *ShadowView {
	return &ShadowView{
		enabled: enabled,
		mapSize: mapSize,
	}
}

func (sv *ShadowView) Type() metadata.PassType {
	return metadata.PassShadow
}

func (sv *ShadowView) Name() string {
	return "Renderpass.Builtin.Shadow"
}

func (sv *ShadowView) Enabled() bool {
	return sv.enabled && sv.mapSize > 0
}

func (sv *ShadowView) SetEnabled(enabled bool) {
	sv.enabled = enabled
}

// Blended geometry does not cast shadows.
func (sv *ShadowView) Accept(job *metadata.RenderJob, material *metadata.Material) bool {
	return material.CastsShadows && material.Blend != metadata.BlendModeAlphaBlend
}

func (sv *ShadowView) Attachments() []metadata.Attachment {
	return []metadata.Attachment{depthAttachment(AttachmentShadow, sv.mapSize, sv.mapSize)}
}

// The shadow map size does not follow the framebuffer.
func (sv *ShadowView) Resize(width, height uint32) {}
