package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_NOT_ALLOCATED VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_READY
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_SUBMITTED
)

// VulkanCommandBuffer is a primary command buffer recorded once per frame.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &info, handles); res != vk.Success {
		return nil, fmt.Errorf("failed to allocate command buffer: %s", VulkanResultString(res, false))
	}
	return &VulkanCommandBuffer{Handle: handles[0], State: COMMAND_BUFFER_STATE_READY}, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

// Begin starts recording. The buffer is always submitted once before being re-recorded.
func (v *VulkanCommandBuffer) Begin() error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(v.Handle, &info); res != vk.Success {
		return fmt.Errorf("failed to begin command buffer: %s", VulkanResultString(res, false))
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

// Submit ends recording and queues the buffer. A nil fence submits unfenced.
func (v *VulkanCommandBuffer) Submit(queue vk.Queue, fence *VulkanFence) error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return fmt.Errorf("failed to end command buffer: %s", VulkanResultString(res, false))
	}
	var handle vk.Fence
	if fence != nil {
		handle = fence.Handle
	}
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{info}, handle); res != vk.Success {
		return fmt.Errorf("failed to submit command buffer: %s", VulkanResultString(res, false))
	}
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
	return nil
}

// RunSingleUse records fn into a temporary buffer, submits it and waits for the queue to drain.
func RunSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue, fn func(*VulkanCommandBuffer)) error {
	cb, err := NewVulkanCommandBuffer(context, pool)
	if err != nil {
		return err
	}
	defer cb.Free(context, pool)

	if err := cb.Begin(); err != nil {
		return err
	}
	fn(cb)
	if err := cb.Submit(queue, nil); err != nil {
		return err
	}
	if res := vk.QueueWaitIdle(queue); res != vk.Success {
		return fmt.Errorf("queue wait idle failed: %s", VulkanResultString(res, false))
	}
	return nil
}
