package views

import (
	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

const (
	AttachmentColor    = "color"
	AttachmentDepth    = "depth"
	AttachmentVelocity = "velocity"
	AttachmentShadow   = "shadow_map"
)

/**
 * @brief A pass of the frame. The orchestrator asks each enabled pass
 * which jobs it draws and which attachments it renders into.
 */
type PassRenderer interface {
	Type() metadata.PassType
	Name() string
	Enabled() bool
	/** @brief Reports whether the pass draws the job with the given material. */
	Accept(job *metadata.RenderJob, material *metadata.Material) bool
	/** @brief The attachments of the pass at the current size. */
	Attachments() []metadata.Attachment
	Resize(width, height uint32)
}

func colorAttachment(name string, width, height uint32) metadata.Attachment {
	return metadata.Attachment{
		Name: name,
		Descriptor: metadata.RenderTargetDescriptor{
			Width:       width,
			Height:      height,
			Format:      gputypes.TextureFormatRGBA8Unorm,
			Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc,
			SampleCount: 1,
		},
	}
}

func depthAttachment(name string, width, height uint32) metadata.Attachment {
	return metadata.Attachment{
		Name: name,
		Descriptor: metadata.RenderTargetDescriptor{
			Width:       width,
			Height:      height,
			Format:      gputypes.TextureFormatDepth24PlusStencil8,
			Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
			SampleCount: 1,
		},
	}
}
