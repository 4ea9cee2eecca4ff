// Package render owns every GPU object of the engine: the device, the
// swapchain and its frame targets, per-entity pipelines and buffers, and the
// frame loop that records and presents them.
package render

import (
	"log/slog"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/kube-engine/internal/config"
	"github.com/hellhand/kube-engine/internal/scene"
)

const maxFramesInFlight = 2

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	deviceExtensions = []string{"VK_KHR_swapchain"}
)

type queueFamilyIndices struct {
	graphicsFamily uint32
	presentFamily  uint32
	hasGraphics    bool
	hasPresent     bool
}

type swapchainSupport struct {
	capabilities vulkan.SurfaceCapabilities
	formats      []vulkan.SurfaceFormat
	presentModes []vulkan.PresentMode
}

// attachment is an image that lives as long as the swapchain.
type attachment struct {
	image  vulkan.Image
	memory vulkan.DeviceMemory
	view   vulkan.ImageView
}

// Renderer is the device context. It must be fully built by New before any
// entity is provisioned, and all methods must be called from the thread that
// owns the window.
type Renderer struct {
	cfg    *config.Config
	window *glfw.Window
	world  *scene.World

	instance       vulkan.Instance
	debugCallback  vulkan.DebugReportCallback
	surface        vulkan.Surface
	physicalDevice vulkan.PhysicalDevice
	device         vulkan.Device
	graphicsQueue  vulkan.Queue
	presentQueue   vulkan.Queue
	queues         queueFamilyIndices

	memProps      vulkan.PhysicalDeviceMemoryProperties
	msaaSamples   vulkan.SampleCountFlagBits
	anisotropy    bool
	maxAnisotropy float32

	swapchain       vulkan.Swapchain
	swapchainImages []vulkan.Image
	swapchainFormat vulkan.Format
	swapchainExtent vulkan.Extent2D
	swapchainViews  []vulkan.ImageView

	depthFormat vulkan.Format
	color       attachment
	depth       attachment
	screen      attachment

	renderPass            vulkan.RenderPass
	swapchainFramebuffers []vulkan.Framebuffer
	screenFramebuffers    []vulkan.Framebuffer

	commandPool    vulkan.CommandPool
	commandBuffers []vulkan.CommandBuffer

	imageAvailable     []vulkan.Semaphore
	renderFinished     []vulkan.Semaphore
	inFlightFences     []vulkan.Fence
	imagesInFlight     []vulkan.Fence
	currentFrame       int
	framebufferResized bool

	sampler vulkan.Sampler

	objects map[scene.Handle]*objectResources
	uis     map[scene.Handle]*uiResources
	hud     *hud

	mouse mgl32.Vec2
}

// New brings up the device and the swapchain for window. Entities are
// provisioned afterwards with InitObject and InitUI.
func New(window *glfw.Window, cfg *config.Config, world *scene.World) (*Renderer, error) {
	r := &Renderer{
		cfg:     cfg,
		window:  window,
		world:   world,
		objects: make(map[scene.Handle]*objectResources),
		uis:     make(map[scene.Handle]*uiResources),
	}
	if err := r.initVulkan(); err != nil {
		r.Cleanup()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) initVulkan() error {
	steps := []func() error{
		r.initLoader,
		r.createInstance,
		r.setupDebugCallback,
		r.createSurface,
		r.pickPhysicalDevice,
		r.createLogicalDevice,
		r.createCommandPool,
		r.createTextureSampler,
		r.createSwapchain,
		r.createImageViews,
		r.createRenderPass,
		r.createColorResources,
		r.createScreenResources,
		r.createDepthResources,
		r.createFramebuffers,
		r.createCommandBuffers,
		r.createSyncObjects,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	if r.cfg.Render.HUD {
		h, err := r.newHUD()
		if err != nil {
			return err
		}
		r.hud = h
	}
	slog.Info("vulkan ready",
		"extent", [2]uint32{r.swapchainExtent.Width, r.swapchainExtent.Height},
		"images", len(r.swapchainImages),
		"msaa", int(r.msaaSamples))
	return nil
}

// RequestSwapchainRecreate marks the swapchain stale. The next present
// rebuilds it.
func (r *Renderer) RequestSwapchainRecreate() {
	r.framebufferResized = true
}

// WaitIdle blocks until the device has finished all submitted work.
func (r *Renderer) WaitIdle() {
	if r.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DeviceWaitIdle(r.device)
	}
}

func (r *Renderer) Extent() (width, height uint32) {
	return r.swapchainExtent.Width, r.swapchainExtent.Height
}

// Cleanup releases the device context. Entities must be destroyed first.
func (r *Renderer) Cleanup() {
	if r.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DeviceWaitIdle(r.device)
	}

	if r.hud != nil {
		r.hud.destroy(r.device)
		r.hud = nil
	}
	r.cleanupSwapchain()

	for _, s := range append(r.renderFinished, r.imageAvailable...) {
		vulkan.DestroySemaphore(r.device, s, nil)
	}
	for _, f := range r.inFlightFences {
		vulkan.DestroyFence(r.device, f, nil)
	}
	r.inFlightFences, r.renderFinished, r.imageAvailable = nil, nil, nil

	if r.sampler != vulkan.Sampler(vulkan.NullHandle) {
		vulkan.DestroySampler(r.device, r.sampler, nil)
		r.sampler = vulkan.Sampler(vulkan.NullHandle)
	}
	if r.commandPool != vulkan.CommandPool(vulkan.NullHandle) {
		vulkan.DestroyCommandPool(r.device, r.commandPool, nil)
		r.commandPool = vulkan.CommandPool(vulkan.NullHandle)
	}
	if r.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DestroyDevice(r.device, nil)
		r.device = vulkan.Device(vulkan.NullHandle)
	}
	if r.debugCallback != vulkan.DebugReportCallback(vulkan.NullHandle) {
		vulkan.DestroyDebugReportCallback(r.instance, r.debugCallback, nil)
		r.debugCallback = vulkan.DebugReportCallback(vulkan.NullHandle)
	}
	if r.surface != vulkan.Surface(vulkan.NullHandle) {
		vulkan.DestroySurface(r.instance, r.surface, nil)
		r.surface = vulkan.Surface(vulkan.NullHandle)
	}
	if r.instance != vulkan.Instance(vulkan.NullHandle) {
		vulkan.DestroyInstance(r.instance, nil)
		r.instance = vulkan.Instance(vulkan.NullHandle)
	}
}
