package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-passes/engine/core"
)

type VulkanRenderpass struct {
	Handle          vk.RenderPass
	ColourCount     int
	HasDepth        bool
	AttachmentCount uint32
}

// RenderpassCreate builds a single-subpass render pass for the attachments in key.
// Attachments stay in their attachment layout so later passes can load them.
func RenderpassCreate(context *VulkanContext, key renderpassKey) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		HasDepth: key.hasDepth,
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, 0, key.colourCount+1)
	colourReferences := make([]vk.AttachmentReference, 0, key.colourCount)

	for i := 0; i < key.colourCount; i++ {
		if key.colours[i].unused {
			colourReferences = append(colourReferences, vk.AttachmentReference{
				Attachment: vk.AttachmentUnused,
				Layout:     vk.ImageLayoutUndefined,
			})
			continue
		}
		initialLayout := vk.ImageLayoutColorAttachmentOptimal
		if key.colours[i].loadOp == vk.AttachmentLoadOpClear {
			// Do not expect any particular layout when clearing.
			initialLayout = vk.ImageLayoutUndefined
		}
		colourAttachment := vk.AttachmentDescription{
			Format:         key.colours[i].format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         key.colours[i].loadOp,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initialLayout,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		}
		colourAttachment.Deref()
		colourReferences = append(colourReferences, vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachmentDescriptions = append(attachmentDescriptions, colourAttachment)
	}
	outRenderpass.ColourCount = len(attachmentDescriptions)

	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colourReferences)),
		PColorAttachments:    colourReferences,
	}

	if key.hasDepth {
		initialLayout := vk.ImageLayoutDepthStencilAttachmentOptimal
		if key.depth.loadOp == vk.AttachmentLoadOpClear {
			initialLayout = vk.ImageLayoutUndefined
		}
		depthAttachment := vk.AttachmentDescription{
			Format:         key.depth.format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         key.depth.loadOp,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initialLayout,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		depthAttachment.Deref()
		attachmentDescriptions = append(attachmentDescriptions, depthAttachment)

		depthAttachmentReference := vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions) - 1),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		depthAttachmentReference.Deref()
		subpass.PDepthStencilAttachment = &depthAttachmentReference
	}
	subpass.Deref()

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageLateFragmentTestsBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
			vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
	}
	dependency.Deref()

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	renderpassCreateInfo.Deref()

	var pRenderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass); res != vk.Success {
		err := fmt.Errorf("failed to create render pass: %s", VulkanResultString(res, false))
		core.LogError(err.Error())
		return nil, err
	}
	outRenderpass.Handle = pRenderPass
	outRenderpass.AttachmentCount = uint32(len(attachmentDescriptions))
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

// RenderpassBegin starts the pass; every colour attachment is cleared to clearColour,
// depth to 1.
func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, frameBuffer *VulkanFramebuffer, width, height uint32, clearColour []float32) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: width, Height: height},
		},
	}

	clearValues := make([]vk.ClearValue, vr.AttachmentCount)
	for i := 0; i < vr.ColourCount; i++ {
		clearValues[i].SetColor(clearColour)
	}
	if vr.HasDepth {
		clearValues[vr.ColourCount].SetDepthStencil(1.0, 0)
	}
	beginInfo.ClearValueCount = uint32(len(clearValues))
	beginInfo.PClearValues = clearValues
	beginInfo.Deref()

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
