package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

var resultDescriptions = map[vk.Result]string{
	vk.ErrorOutOfHostMemory:      "A host memory allocation has failed.",
	vk.ErrorOutOfDeviceMemory:    "A device memory allocation has failed.",
	vk.ErrorInitializationFailed: "Initialization of an object could not be completed for implementation-specific reasons.",
	vk.ErrorDeviceLost:           "The logical or physical device has been lost.",
	vk.ErrorIncompatibleDriver:   "The requested version of Vulkan is not supported by the driver.",
	vk.ErrorFormatNotSupported:   "A requested format is not supported on this device.",
}

// VulkanResultString names a result, optionally with a description.
func VulkanResultString(result vk.Result, getExtended bool) string {
	name, ok := resultNames[result]
	if !ok {
		name = fmt.Sprintf("VkResult(%d)", int32(result))
	}
	if getExtended {
		if description, ok := resultDescriptions[result]; ok {
			return name + " " + description
		}
	}
	return name
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	for i := range list {
		list[i] = VulkanSafeString(list[i])
	}
	return list
}

func FindFirstZeroInByteArray(arr []byte) int {
	end := 0
	for i, b := range arr {
		if b == 0 {
			end = i
			break
		}
	}
	return end
}
