package views

import "github.com/spaghettifunk/frameforge/engine/renderer/metadata"

// AlphaView blends transparent geometry over the world pass output. It
// renders into the same color and depth attachments.
type AlphaView struct {
	width  uint32
	height uint32
}

func NewAlphaView(width, height uint32) *AlphaView {
	return &AlphaView{
		width:  width,
		height: height,
	}
}

func (av *AlphaView) Type() metadata.PassType {
	return metadata.PassAlpha
}

func (av *AlphaView) Name() string {
	return "Renderpass.Builtin.Alpha"
}

func (av *AlphaView) Enabled() bool {
	return true
}

func (av *AlphaView) Accept(job *metadata.RenderJob, material *metadata.Material) bool {
	return material.Blend == metadata.BlendModeAlphaBlend
}

func (av *AlphaView) Attachments() []metadata.Attachment {
	return []metadata.Attachment{
		colorAttachment(AttachmentColor, av.width, av.height),
		depthAttachment(AttachmentDepth, av.width, av.height),
	}
}

func (av *AlphaView) Resize(width, height uint32) {
	av.width = width
	av.height = height
}
