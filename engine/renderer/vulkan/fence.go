package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// VulkanFence guards the single in-flight frame submission.
type VulkanFence struct {
	Handle   vk.Fence
	Signaled bool
}

func NewFence(context *VulkanContext, signaled bool) (*VulkanFence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &info, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create fence: %s", VulkanResultString(res, false))
	}
	return &VulkanFence{Handle: handle, Signaled: signaled}, nil
}

// Wait blocks until the fence signals. A fence already seen signaled returns at once.
func (f *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) error {
	if f.Signaled {
		return nil
	}
	res := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, timeoutNs)
	if res != vk.Success {
		return fmt.Errorf("in-flight fence wait failed: %s", VulkanResultString(res, true))
	}
	f.Signaled = true
	return nil
}

func (f *VulkanFence) Reset(context *VulkanContext) error {
	if !f.Signaled {
		return nil
	}
	if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		return fmt.Errorf("failed to reset fence: %s", VulkanResultString(res, false))
	}
	f.Signaled = false
	return nil
}

func (f *VulkanFence) Destroy(context *VulkanContext) {
	if f.Handle != nil {
		vk.DestroyFence(context.Device.LogicalDevice, f.Handle, context.Allocator)
		f.Handle = nil
	}
	f.Signaled = false
}
