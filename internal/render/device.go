package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
)

func (r *Renderer) initLoader() error {
	vulkan.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vulkan.Init(); err != nil {
		return fmt.Errorf("vulkan init: %w", err)
	}
	return nil
}

// apiVersion is the Vulkan version requested from the loader.
var apiVersion = vulkan.MakeVersion(1, 1, 0)

func (r *Renderer) createInstance() error {
	if !glfw.VulkanSupported() {
		return errors.New("GLFW Vulkan loader not found")
	}
	layers := r.layers()
	if missing := missingNames(instanceLayerNames(), layers); len(missing) > 0 {
		return fmt.Errorf("validation layers %v not available", missing)
	}
	major, minor, patch, err := r.cfg.App.SemVer()
	if err != nil {
		return err
	}
	version := vulkan.MakeVersion(int(major), int(minor), int(patch))
	extensions := instanceExtensions(r.window.GetRequiredInstanceExtensions(), r.cfg.Render.Validation)

	info := vulkan.InstanceCreateInfo{
		SType: vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vulkan.ApplicationInfo{
			SType:              vulkan.StructureTypeApplicationInfo,
			PApplicationName:   r.cfg.App.Name + "\x00",
			ApplicationVersion: version,
			PEngineName:        r.cfg.App.Engine + "\x00",
			EngineVersion:      version,
			ApiVersion:         apiVersion,
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}
	if res := vulkan.CreateInstance(&info, nil, &r.instance); res != vulkan.Success {
		return fmt.Errorf("create instance: %w", vulkan.Error(res))
	}
	if err := vulkan.InitInstance(r.instance); err != nil {
		return fmt.Errorf("vkInitInstance: %w", err)
	}
	return nil
}

// layers lists the instance and device layers to enable.
func (r *Renderer) layers() []string {
	if r.cfg.Render.Validation {
		return validationLayers
	}
	return nil
}

// instanceExtensions adds debug reporting to the window system's required
// extensions when validation is on.
func instanceExtensions(required []string, validation bool) []string {
	out := append([]string(nil), required...)
	if validation {
		out = append(out, "VK_EXT_debug_report")
	}
	return out
}

func instanceLayerNames() []string {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return nil
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return nil
	}
	names := make([]string, 0, len(props))
	for i := range props {
		props[i].Deref()
		names = append(names, vulkan.ToString(props[i].LayerName[:]))
	}
	return names
}

func deviceExtensionNames(device vulkan.PhysicalDevice) []string {
	var count uint32
	if vulkan.EnumerateDeviceExtensionProperties(device, "", &count, nil) != vulkan.Success {
		return nil
	}
	props := make([]vulkan.ExtensionProperties, count)
	if vulkan.EnumerateDeviceExtensionProperties(device, "", &count, props) != vulkan.Success {
		return nil
	}
	names := make([]string, 0, len(props))
	for i := range props {
		props[i].Deref()
		names = append(names, vulkan.ToString(props[i].ExtensionName[:]))
	}
	return names
}

// missingNames returns the entries of want absent from have, in order.
func missingNames(have, want []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, n := range have {
		set[n] = struct{}{}
	}
	var missing []string
	for _, n := range want {
		if _, ok := set[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// debugLevel maps validation report flags onto a log level.
func debugLevel(flags vulkan.DebugReportFlags) slog.Level {
	switch {
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportErrorBit) != 0:
		return slog.LevelError
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportWarningBit|vulkan.DebugReportPerformanceWarningBit) != 0:
		return slog.LevelWarn
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportDebugBit) != 0:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (r *Renderer) setupDebugCallback() error {
	if !r.cfg.Render.Validation {
		return nil
	}
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
			slog.Log(context.Background(), debugLevel(flags), message, "layer", layerPrefix, "code", messageCode)
			return vulkan.False
		},
	}
	if res := vulkan.CreateDebugReportCallback(r.instance, &createInfo, nil, &r.debugCallback); res != vulkan.Success {
		return fmt.Errorf("create debug callback: %w", vulkan.Error(res))
	}
	return nil
}

func (r *Renderer) createSurface() error {
	surfacePtr, err := r.window.CreateWindowSurface(r.instance, nil)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	r.surface = vulkan.SurfaceFromPointer(surfacePtr)
	return nil
}

// pickPhysicalDevice takes the first enumerated device. It must expose a
// graphics and a present queue plus the swapchain extension.
func (r *Renderer) pickPhysicalDevice() error {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(r.instance, &count, nil); res != vulkan.Success || count == 0 {
		return fmt.Errorf("enumerate physical devices: %w", vulkan.Error(res))
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if res := vulkan.EnumeratePhysicalDevices(r.instance, &count, devices); res != vulkan.Success {
		return fmt.Errorf("enumerate physical devices list: %w", vulkan.Error(res))
	}

	dev := devices[0]
	if dev == nil {
		return errors.New("no suitable GPU found")
	}
	q := r.findQueueFamilies(dev)
	if !q.hasGraphics || !q.hasPresent {
		return errors.New("GPU has no graphics and present queue")
	}
	if missing := missingNames(deviceExtensionNames(dev), deviceExtensions); len(missing) > 0 {
		return fmt.Errorf("GPU lacks device extensions %v", missing)
	}

	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(dev, &props)
	props.Deref()
	props.Limits.Deref()

	var features vulkan.PhysicalDeviceFeatures
	vulkan.GetPhysicalDeviceFeatures(dev, &features)
	features.Deref()

	r.physicalDevice = dev
	r.queues = q
	r.memProps = queryMemoryProperties(dev)
	r.msaaSamples = maxUsableSampleCount(
		props.Limits.FramebufferColorSampleCounts&props.Limits.FramebufferDepthSampleCounts,
		r.cfg.Render.MaxMSAA)
	r.anisotropy = features.SamplerAnisotropy == vulkan.True
	r.maxAnisotropy = props.Limits.MaxSamplerAnisotropy

	slog.Info("physical device",
		"name", vulkan.ToString(props.DeviceName[:]),
		"msaa", int(r.msaaSamples),
		"anisotropy", r.anisotropy)
	return nil
}

// maxUsableSampleCount returns the highest sample count present in counts
// that does not exceed limit, or 1x when none qualifies.
func maxUsableSampleCount(counts vulkan.SampleCountFlags, limit int) vulkan.SampleCountFlagBits {
	for _, c := range []vulkan.SampleCountFlagBits{
		vulkan.SampleCount64Bit,
		vulkan.SampleCount32Bit,
		vulkan.SampleCount16Bit,
		vulkan.SampleCount8Bit,
		vulkan.SampleCount4Bit,
		vulkan.SampleCount2Bit,
	} {
		if int(c) <= limit && counts&vulkan.SampleCountFlags(c) != 0 {
			return c
		}
	}
	return vulkan.SampleCount1Bit
}

func (r *Renderer) findQueueFamilies(device vulkan.PhysicalDevice) queueFamilyIndices {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	var indices queueFamilyIndices
	for i := range props {
		props[i].Deref()
		if props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 && !indices.hasGraphics {
			indices.graphicsFamily = uint32(i)
			indices.hasGraphics = true
		}
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(device, uint32(i), r.surface, &present)
		if present == vulkan.True && !indices.hasPresent {
			indices.presentFamily = uint32(i)
			indices.hasPresent = true
		}
		if indices.hasGraphics && indices.hasPresent {
			break
		}
	}
	return indices
}

// queueCreateInfos requests one queue per distinct family, keeping the order
// in which the families are first named.
func queueCreateInfos(priority float32, families ...uint32) []vulkan.DeviceQueueCreateInfo {
	var infos []vulkan.DeviceQueueCreateInfo
	seen := make(map[uint32]bool, len(families))
	for _, f := range families {
		if seen[f] {
			continue
		}
		seen[f] = true
		infos = append(infos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: f,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		})
	}
	return infos
}

func (r *Renderer) createLogicalDevice() error {
	queues := queueCreateInfos(r.cfg.Render.QueuePriority, r.queues.graphicsFamily, r.queues.presentFamily)
	var features vulkan.PhysicalDeviceFeatures
	if r.anisotropy {
		features.SamplerAnisotropy = vulkan.True
	}
	layers := r.layers()

	info := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queues)),
		PQueueCreateInfos:       queues,
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}
	if res := vulkan.CreateDevice(r.physicalDevice, &info, nil, &r.device); res != vulkan.Success {
		return fmt.Errorf("create logical device: %w", vulkan.Error(res))
	}
	vulkan.GetDeviceQueue(r.device, r.queues.graphicsFamily, 0, &r.graphicsQueue)
	vulkan.GetDeviceQueue(r.device, r.queues.presentFamily, 0, &r.presentQueue)
	return nil
}

func (r *Renderer) createCommandPool() error {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: r.queues.graphicsFamily,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vulkan.CreateCommandPool(r.device, &poolInfo, nil, &r.commandPool); res != vulkan.Success {
		return fmt.Errorf("create command pool: %w", vulkan.Error(res))
	}
	return nil
}

// createSyncObjects makes the per-slot semaphores and fences. Fences start
// signaled so the first wait of each slot returns at once.
func (r *Renderer) createSyncObjects() error {
	r.imagesInFlight = make([]vulkan.Fence, len(r.swapchainImages))
	r.imageAvailable = make([]vulkan.Semaphore, 0, maxFramesInFlight)
	r.renderFinished = make([]vulkan.Semaphore, 0, maxFramesInFlight)
	r.inFlightFences = make([]vulkan.Fence, 0, maxFramesInFlight)

	semaphore := func() (vulkan.Semaphore, error) {
		var s vulkan.Semaphore
		info := vulkan.SemaphoreCreateInfo{SType: vulkan.StructureTypeSemaphoreCreateInfo}
		if res := vulkan.CreateSemaphore(r.device, &info, nil, &s); res != vulkan.Success {
			return s, fmt.Errorf("create semaphore: %w", vulkan.Error(res))
		}
		return s, nil
	}
	for slot := 0; slot < maxFramesInFlight; slot++ {
		acquired, err := semaphore()
		if err != nil {
			return fmt.Errorf("frame slot %d: %w", slot, err)
		}
		r.imageAvailable = append(r.imageAvailable, acquired)

		rendered, err := semaphore()
		if err != nil {
			return fmt.Errorf("frame slot %d: %w", slot, err)
		}
		r.renderFinished = append(r.renderFinished, rendered)

		var fence vulkan.Fence
		info := vulkan.FenceCreateInfo{
			SType: vulkan.StructureTypeFenceCreateInfo,
			Flags: vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit),
		}
		if res := vulkan.CreateFence(r.device, &info, nil, &fence); res != vulkan.Success {
			return fmt.Errorf("frame slot %d: create fence: %w", slot, vulkan.Error(res))
		}
		r.inFlightFences = append(r.inFlightFences, fence)
	}
	return nil
}
