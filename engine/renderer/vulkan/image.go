package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-passes/engine/core"
)

type VulkanImage struct {
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	Width   uint32
	Height  uint32
	Format  vk.Format
	IsDepth bool
}

func aspectMask(isDepth bool) vk.ImageAspectFlags {
	if isDepth {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// ImageCreate allocates a device local 2D image usable as an attachment and as
// a sampled texture, with a view covering it.
func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, isDepth bool) (*VulkanImage, error) {
	outImage := &VulkanImage{
		Width:   width,
		Height:  height,
		Format:  format,
		IsDepth: isDepth,
	}

	usage := vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferSrcBit)
	if isDepth {
		usage |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	} else {
		usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var pImage vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &pImage); res != vk.Success {
		err := fmt.Errorf("failed to create image: %s", VulkanResultString(res, false))
		core.LogError(err.Error())
		return nil, err
	}
	outImage.Handle = pImage

	// Query memory requirements.
	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, outImage.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryType == -1 {
		outImage.Destroy(context)
		return nil, fmt.Errorf("required memory type not found, image not valid")
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var pMemory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &memoryAllocateInfo, context.Allocator, &pMemory); res != vk.Success {
		outImage.Destroy(context)
		return nil, fmt.Errorf("failed to allocate memory for image: %s", VulkanResultString(res, false))
	}
	outImage.Memory = pMemory

	// TODO: configurable memory offset.
	if res := vk.BindImageMemory(context.Device.LogicalDevice, outImage.Handle, outImage.Memory, 0); res != vk.Success {
		outImage.Destroy(context)
		return nil, fmt.Errorf("failed to bind image memory: %s", VulkanResultString(res, false))
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    outImage.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectMask(isDepth),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var pView vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &pView); res != vk.Success {
		outImage.Destroy(context)
		return nil, fmt.Errorf("failed to create image view: %s", VulkanResultString(res, false))
	}
	outImage.View = pView
	return outImage, nil
}

// TransitionToAttachmentLayout moves a freshly created image into the layout
// render passes expect when loading it.
func (vi *VulkanImage) TransitionToAttachmentLayout(commandBuffer *VulkanCommandBuffer) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vk.ImageLayoutUndefined,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspectMask(vi.IsDepth),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	dstStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	if vi.IsDepth {
		barrier.NewLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
	} else {
		barrier.NewLayout = vk.ImageLayoutColorAttachmentOptimal
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
	}

	vk.CmdPipelineBarrier(
		commandBuffer.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		dstStage,
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier})
}

func (vi *VulkanImage) Destroy(context *VulkanContext) {
	if vi.View != nil {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
		vi.Handle = nil
	}
}
