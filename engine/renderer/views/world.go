package views

import "github.com/spaghettifunk/frameforge/engine/renderer/metadata"

// WorldView draws opaque and alpha-tested geometry into the color and
// depth attachments, plus a velocity attachment with motion blur on.
type WorldView struct {
	width      uint32
	height     uint32
	motionBlur bool
}

func NewWorldView(width, height uint32, motionBlur bool) *WorldView {
	return &WorldView{
		width:      width,
		height:     height,
		motionBlur: motionBlur,
	}
}

func (wv *WorldView) Type() metadata.PassType {
	return metadata.PassOpaque
}

func (wv *WorldView) Name() string {
	return "Renderpass.Builtin.World"
}

func (wv *WorldView) Enabled() bool {
	return true
}

func (wv *WorldView) Accept(job *metadata.RenderJob, material *metadata.Material) bool {
	return material.Blend != metadata.BlendModeAlphaBlend
}

func (wv *WorldView) Attachments() []metadata.Attachment {
	attachments := []metadata.Attachment{
		colorAttachment(AttachmentColor, wv.width, wv.height),
		depthAttachment(AttachmentDepth, wv.width, wv.height),
	}
	if wv.motionBlur {
		attachments = append(attachments, colorAttachment(AttachmentVelocity, wv.width, wv.height))
	}
	return attachments
}

func (wv *WorldView) Resize(width, height uint32) {
	wv.width = width
	wv.height = height
}

func (wv *WorldView) SetMotionBlur(enabled bool) {
	wv.motionBlur = enabled
}
