package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-passes/engine/core"
)

// VulkanDevice is the selected physical device and the logical device created on it.
// Rendering is offscreen, so only a graphics queue is needed.
type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	GraphicsQueue      vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

func DeviceCreate(context *VulkanContext) error {
	context.Device = &VulkanDevice{GraphicsQueueIndex: -1}
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}
	if !DeviceDetectDepthFormat(context.Device) {
		return fmt.Errorf("no supported depth format found")
	}

	core.LogInfo("Creating logical device...")

	queueCreateInfos := []vk.DeviceQueueCreateInfo{
		{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		},
	}

	extensionNames := []string{}
	if hasDeviceExtension(context.Device.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var device vk.Device
	if res := vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device); res != vk.Success {
		return fmt.Errorf("failed to create logical device: %s", VulkanResultString(res, true))
	}
	context.Device.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(context.Device.LogicalDevice, uint32(context.Device.GraphicsQueueIndex), 0, &queue)
	context.Device.GraphicsQueue = queue
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		return fmt.Errorf("failed to create graphics command pool: %s", VulkanResultString(res, true))
	}
	context.Device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device == nil {
		return
	}
	context.Device.GraphicsQueue = nil

	core.LogInfo("Destroying command pools...")
	if context.Device.GraphicsCommandPool != nil {
		vk.DestroyCommandPool(context.Device.LogicalDevice, context.Device.GraphicsCommandPool, context.Allocator)
		context.Device.GraphicsCommandPool = nil
	}

	core.LogInfo("Destroying logical device...")
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.GraphicsQueueIndex = -1
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	// Format candidates
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureDepthStencilAttachmentBit
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if (vk.FormatFeatureFlagBits(properties.LinearTilingFeatures)&flags) == flags ||
			(vk.FormatFeatureFlagBits(properties.OptimalTilingFeatures)&flags) == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

// SelectPhysicalDevice picks the first device with a graphics queue, preferring discrete GPUs.
func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices: %s", VulkanResultString(res, true))
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices: %s", VulkanResultString(res, true))
	}

	selected := -1
	for i, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()

		queueIndex := graphicsQueueIndex(physicalDevice)
		if queueIndex < 0 {
			continue
		}
		if selected >= 0 && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			continue
		}

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
		memory.Deref()

		selected = i
		context.Device.PhysicalDevice = physicalDevice
		context.Device.GraphicsQueueIndex = queueIndex
		context.Device.Properties = properties
		context.Device.Memory = memory
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			break
		}
	}

	if selected < 0 {
		return fmt.Errorf("no physical devices were found which meet the requirements")
	}

	name := context.Device.Properties.DeviceName[:]
	core.LogInfo("Selected device: '%s'.", vk.ToString(name[:FindFirstZeroInByteArray(name)+1]))
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version.Major(vk.Version(context.Device.Properties.ApiVersion)),
		vk.Version.Minor(vk.Version(context.Device.Properties.ApiVersion)),
		vk.Version.Patch(vk.Version(context.Device.Properties.ApiVersion)),
	)
	return nil
}

func graphicsQueueIndex(device vk.PhysicalDevice) int32 {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit > 0 {
			return int32(i)
		}
	}
	return -1
}

func hasDeviceExtension(device vk.PhysicalDevice, extension string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		name := available[i].ExtensionName[:]
		if vk.ToString(name[:FindFirstZeroInByteArray(name)+1]) == extension {
			return true
		}
	}
	return false
}
