package vulkan

import vk "github.com/vulkan-go/vulkan"

// queueFamilies lists the queue family properties of a physical device.
func queueFamilies(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)
	for i := range props {
		props[i].Deref()
	}
	return props
}

// findQueueFamily returns the first family supporting every bit of flags.
func findQueueFamily(gpu vk.PhysicalDevice, flags vk.QueueFlagBits) (uint32, bool) {
	want := vk.QueueFlags(flags)
	for i, q := range queueFamilies(gpu) {
		if q.QueueFlags&want == want && q.QueueCount > 0 {
			return uint32(i), true
		}
	}
	return 0, false
}
