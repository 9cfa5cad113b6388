package vulkan

import (
	"unsafe"

	"github.com/andewx/vkscene"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// PlatformConfig describes the headless instance and device NewPlatform
// brings up.
type PlatformConfig struct {
	AppName    string
	Validation bool
	// Extensions are instance extensions to enable when available, usually
	// the ones glfw reports as required.
	Extensions []string
	Log        *vkscene.Logger
}

// Platform owns an instance, a device with one graphics queue and a command
// pool for that queue. It has no surface or swapchain.
type Platform struct {
	log *vkscene.Logger

	instance      vk.Instance
	gpu           vk.PhysicalDevice
	device        vk.Device
	queueFamily   uint32
	queue         vk.Queue
	pool          vk.CommandPool
	debugCallback vk.DebugReportCallback
	gpuProperties vk.PhysicalDeviceProperties
}

// NewPlatform selects the first GPU with a graphics queue. vk.Init must have
// succeeded before it is called.
func NewPlatform(cfg PlatformConfig) (p *Platform, err error) {
	p = &Platform{log: cfg.Log}
	if p.log == nil {
		p.log = vkscene.DiscardLogger()
	}
	defer func() {
		if err != nil {
			p.Destroy()
			p = nil
		}
	}()

	available, err := instanceExtensions()
	if err != nil {
		return p, err
	}
	required := append([]string(nil), cfg.Extensions...)
	if cfg.Validation {
		required = append(required, "VK_EXT_debug_report")
	}
	extensions, missing := available.filter(required)
	if missing > 0 {
		p.log.Warnf("vulkan: missing %d required instance extensions", missing)
	}

	var layers []string
	if cfg.Validation {
		installed, err := instanceLayers()
		if err != nil {
			return p, err
		}
		layers, missing = installed.filter([]string{"VK_LAYER_KHRONOS_validation"})
		if missing > 0 {
			p.log.Warnf("vulkan: validation layer not available")
		}
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:            vk.StructureTypeApplicationInfo,
			ApiVersion:       uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName: safeString(cfg.AppName),
			PEngineName:      "vkscene\x00",
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if isError(ret) {
		return p, errors.Wrap(newError(ret), "create instance")
	}
	p.instance = instance
	if err = vk.InitInstance(instance); err != nil {
		return p, errors.Wrap(err, "init instance")
	}

	if cfg.Validation && len(layers) > 0 {
		ret = vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: p.debugReport,
		}, nil, &p.debugCallback)
		if isError(ret) {
			return p, errors.Wrap(newError(ret), "create debug report callback")
		}
		p.log.Infof("vulkan: debug report callback enabled")
	}

	var gpuCount uint32
	if ret = vk.EnumeratePhysicalDevices(instance, &gpuCount, nil); isError(ret) {
		return p, newError(ret)
	}
	if gpuCount == 0 {
		return p, errors.New("vulkan: no GPU devices found")
	}
	gpus := make([]vk.PhysicalDevice, gpuCount)
	if ret = vk.EnumeratePhysicalDevices(instance, &gpuCount, gpus); isError(ret) {
		return p, newError(ret)
	}
	found := false
	for _, gpu := range gpus {
		if family, ok := findQueueFamily(gpu, vk.QueueGraphicsBit); ok {
			p.gpu, p.queueFamily, found = gpu, family, true
			break
		}
	}
	if !found {
		return p, errors.New("vulkan: no GPU with a graphics queue")
	}
	vk.GetPhysicalDeviceProperties(p.gpu, &p.gpuProperties)
	p.gpuProperties.Deref()
	p.log.Infof("vulkan: using %s", vk.ToString(p.gpuProperties.DeviceName[:]))

	var device vk.Device
	ret = vk.CreateDevice(p.gpu, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: p.queueFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledLayerCount:   uint32(len(layers)),
		PpEnabledLayerNames: layers,
	}, nil, &device)
	if isError(ret) {
		return p, errors.Wrap(newError(ret), "create device")
	}
	p.device = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, p.queueFamily, 0, &queue)
	p.queue = queue

	if p.pool, err = newCommandPool(device, p.queueFamily); err != nil {
		return p, errors.Wrap(err, "create command pool")
	}
	return p, nil
}

func (p *Platform) Instance() vk.Instance             { return p.instance }
func (p *Platform) PhysicalDevice() vk.PhysicalDevice { return p.gpu }
func (p *Platform) Device() vk.Device                 { return p.device }
func (p *Platform) GraphicsQueue() vk.Queue           { return p.queue }
func (p *Platform) GraphicsQueueFamilyIndex() uint32  { return p.queueFamily }
func (p *Platform) CommandPool() vk.CommandPool       { return p.pool }

// DeviceName reports the selected GPU.
func (p *Platform) DeviceName() string {
	return vk.ToString(p.gpuProperties.DeviceName[:])
}

// Context returns a DeviceContext over the platform's device and queue.
// Destroy the context before the platform.
func (p *Platform) Context() *Context {
	return NewContext(p.device, p.gpu, p.queue, p.pool)
}

func (p *Platform) Destroy() {
	if p.device != nil {
		vk.DeviceWaitIdle(p.device)
		if p.pool != nil {
			vk.DestroyCommandPool(p.device, p.pool, nil)
			p.pool = nil
		}
		vk.DestroyDevice(p.device, nil)
		p.device = nil
	}
	if p.debugCallback != nil {
		vk.DestroyDebugReportCallback(p.instance, p.debugCallback, nil)
		p.debugCallback = nil
	}
	if p.instance != nil {
		vk.DestroyInstance(p.instance, nil)
		p.instance = nil
	}
}

func (p *Platform) debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		p.log.Errorf("vulkan: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		p.log.Warnf("vulkan: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		p.log.Infof("vulkan: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
