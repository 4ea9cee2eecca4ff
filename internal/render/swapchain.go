package render

import (
	"fmt"
	"math"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
)

func (r *Renderer) querySwapchainSupport(device vulkan.PhysicalDevice) swapchainSupport {
	var details swapchainSupport
	vulkan.GetPhysicalDeviceSurfaceCapabilities(device, r.surface, &details.capabilities)
	details.capabilities.Deref()
	details.capabilities.CurrentExtent.Deref()
	details.capabilities.MinImageExtent.Deref()
	details.capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vulkan.GetPhysicalDeviceSurfaceFormats(device, r.surface, &formatCount, nil)
	if formatCount > 0 {
		details.formats = make([]vulkan.SurfaceFormat, formatCount)
		vulkan.GetPhysicalDeviceSurfaceFormats(device, r.surface, &formatCount, details.formats)
		for i := range details.formats {
			details.formats[i].Deref()
		}
	}

	var presentCount uint32
	vulkan.GetPhysicalDeviceSurfacePresentModes(device, r.surface, &presentCount, nil)
	if presentCount > 0 {
		details.presentModes = make([]vulkan.PresentMode, presentCount)
		vulkan.GetPhysicalDeviceSurfacePresentModes(device, r.surface, &presentCount, details.presentModes)
	}

	return details
}

func chooseSwapSurfaceFormat(available []vulkan.SurfaceFormat) vulkan.SurfaceFormat {
	for _, f := range available {
		if f.Format == vulkan.FormatB8g8r8a8Srgb && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return available[0]
}

// chooseSwapPresentMode prefers mailbox. FIFO is always available and is
// forced by vsync.
func chooseSwapPresentMode(available []vulkan.PresentMode, vsync bool) vulkan.PresentMode {
	if vsync {
		return vulkan.PresentModeFifo
	}
	for _, m := range available {
		if m == vulkan.PresentModeMailbox {
			return m
		}
	}
	return vulkan.PresentModeFifo
}

func chooseSwapExtent(caps vulkan.SurfaceCapabilities, fbWidth, fbHeight int) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	lo, hi := caps.MinImageExtent, caps.MaxImageExtent
	return vulkan.Extent2D{
		Width:  uint32(clamp(uint64(fbWidth), uint64(lo.Width), uint64(hi.Width))),
		Height: uint32(clamp(uint64(fbHeight), uint64(lo.Height), uint64(hi.Height))),
	}
}

func swapImageCount(caps vulkan.SurfaceCapabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// imageSharing shares swapchain images between the graphics and present
// families only when they differ.
func imageSharing(graphics, present uint32) (vulkan.SharingMode, []uint32) {
	if graphics == present {
		return vulkan.SharingModeExclusive, nil
	}
	return vulkan.SharingModeConcurrent, []uint32{graphics, present}
}

func (r *Renderer) createSwapchain() error {
	support := r.querySwapchainSupport(r.physicalDevice)
	if len(support.formats) == 0 || len(support.presentModes) == 0 {
		return fmt.Errorf("surface has no formats or present modes")
	}
	caps := support.capabilities
	format := chooseSwapSurfaceFormat(support.formats)
	fbw, fbh := r.window.GetFramebufferSize()
	extent := chooseSwapExtent(caps, fbw, fbh)
	sharing, families := imageSharing(r.queues.graphicsFamily, r.queues.presentFamily)

	info := vulkan.SwapchainCreateInfo{
		SType:                 vulkan.StructureTypeSwapchainCreateInfo,
		Surface:               r.surface,
		MinImageCount:         swapImageCount(caps),
		ImageFormat:           format.Format,
		ImageColorSpace:       format.ColorSpace,
		ImageExtent:           extent,
		ImageArrayLayers:      1,
		ImageUsage:            vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		ImageSharingMode:      sharing,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		PreTransform:          caps.CurrentTransform,
		CompositeAlpha:        vulkan.CompositeAlphaOpaqueBit,
		PresentMode:           chooseSwapPresentMode(support.presentModes, r.cfg.Render.VSync),
		Clipped:               vulkan.True,
	}
	if res := vulkan.CreateSwapchain(r.device, &info, nil, &r.swapchain); res != vulkan.Success {
		return fmt.Errorf("create swapchain: %w", vulkan.Error(res))
	}

	images, err := r.querySwapchainImages()
	if err != nil {
		return err
	}
	r.swapchainImages = images
	r.swapchainFormat = format.Format
	r.swapchainExtent = extent
	return nil
}

func (r *Renderer) querySwapchainImages() ([]vulkan.Image, error) {
	var n uint32
	if res := vulkan.GetSwapchainImages(r.device, r.swapchain, &n, nil); res != vulkan.Success {
		return nil, fmt.Errorf("count swapchain images: %w", vulkan.Error(res))
	}
	images := make([]vulkan.Image, n)
	if res := vulkan.GetSwapchainImages(r.device, r.swapchain, &n, images); res != vulkan.Success {
		return nil, fmt.Errorf("get swapchain images: %w", vulkan.Error(res))
	}
	return images[:n], nil
}

func (r *Renderer) createImageViews() error {
	r.swapchainViews = make([]vulkan.ImageView, len(r.swapchainImages))
	for i, img := range r.swapchainImages {
		view, err := r.createImageView(img, r.swapchainFormat, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit), 1)
		if err != nil {
			return fmt.Errorf("create image view %d: %w", i, err)
		}
		r.swapchainViews[i] = view
	}
	return nil
}

// createRenderPass builds the single pass every pipeline draws in: MSAA
// color and depth, resolved into the presentable image.
func (r *Renderer) createRenderPass() error {
	depthFormat, err := r.findDepthFormat()
	if err != nil {
		return err
	}
	r.depthFormat = depthFormat

	colorAttachment := vulkan.AttachmentDescription{
		Format:         r.swapchainFormat,
		Samples:        r.msaaSamples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutColorAttachmentOptimal,
	}
	depthAttachment := vulkan.AttachmentDescription{
		Format:         depthFormat,
		Samples:        r.msaaSamples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpDontCare,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}
	resolveAttachment := vulkan.AttachmentDescription{
		Format:         r.swapchainFormat,
		Samples:        vulkan.SampleCount1Bit,
		LoadOp:         vulkan.AttachmentLoadOpDontCare,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}

	colorRef := vulkan.AttachmentReference{Attachment: 0, Layout: vulkan.ImageLayoutColorAttachmentOptimal}
	depthRef := vulkan.AttachmentReference{Attachment: 1, Layout: vulkan.ImageLayoutDepthStencilAttachmentOptimal}
	resolveRef := vulkan.AttachmentReference{Attachment: 2, Layout: vulkan.ImageLayoutColorAttachmentOptimal}

	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:       vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vulkan.AttachmentReference{colorRef},
		PResolveAttachments:     []vulkan.AttachmentReference{resolveRef},
		PDepthStencilAttachment: &depthRef,
	}

	dependency := vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit | vulkan.AccessDepthStencilAttachmentWriteBit),
	}

	attachments := []vulkan.AttachmentDescription{colorAttachment, depthAttachment, resolveAttachment}
	createInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vulkan.SubpassDependency{dependency},
	}

	if res := vulkan.CreateRenderPass(r.device, &createInfo, nil, &r.renderPass); res != vulkan.Success {
		return fmt.Errorf("create render pass: %w", vulkan.Error(res))
	}
	return nil
}

func (r *Renderer) findDepthFormat() (vulkan.Format, error) {
	candidates := []vulkan.Format{
		vulkan.FormatD32Sfloat,
		vulkan.FormatD32SfloatS8Uint,
		vulkan.FormatD24UnormS8Uint,
	}
	f, err := r.findSupportedFormat(candidates, vulkan.ImageTilingOptimal, vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit))
	if err != nil {
		return 0, ErrNoDepthFormat
	}
	return f, nil
}

func (r *Renderer) findSupportedFormat(candidates []vulkan.Format, tiling vulkan.ImageTiling, features vulkan.FormatFeatureFlags) (vulkan.Format, error) {
	for _, format := range candidates {
		props := r.formatProperties(format)
		if tiling == vulkan.ImageTilingLinear && props.LinearTilingFeatures&features == features {
			return format, nil
		}
		if tiling == vulkan.ImageTilingOptimal && props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}
	return 0, fmt.Errorf("no supported format among %v", candidates)
}

func (r *Renderer) formatProperties(format vulkan.Format) vulkan.FormatProperties {
	var props vulkan.FormatProperties
	vulkan.GetPhysicalDeviceFormatProperties(r.physicalDevice, format, &props)
	props.Deref()
	return props
}

func (r *Renderer) createAttachment(format vulkan.Format, samples vulkan.SampleCountFlagBits, usage vulkan.ImageUsageFlagBits, aspect vulkan.ImageAspectFlagBits) (attachment, error) {
	image, memory, err := r.createImage(imageSpec{
		width:   r.swapchainExtent.Width,
		height:  r.swapchainExtent.Height,
		mips:    1,
		samples: samples,
		format:  format,
		tiling:  vulkan.ImageTilingOptimal,
		usage:   vulkan.ImageUsageFlags(usage),
		props:   vulkan.MemoryPropertyDeviceLocalBit,
	})
	if err != nil {
		return attachment{}, err
	}
	view, err := r.createImageView(image, format, vulkan.ImageAspectFlags(aspect), 1)
	if err != nil {
		vulkan.DestroyImage(r.device, image, nil)
		vulkan.FreeMemory(r.device, memory, nil)
		return attachment{}, err
	}
	return attachment{image: image, memory: memory, view: view}, nil
}

func (r *Renderer) createColorResources() error {
	a, err := r.createAttachment(r.swapchainFormat, r.msaaSamples,
		vulkan.ImageUsageTransientAttachmentBit|vulkan.ImageUsageColorAttachmentBit,
		vulkan.ImageAspectColorBit)
	if err != nil {
		return fmt.Errorf("create color resources: %w", err)
	}
	r.color = a
	return nil
}

// createScreenResources makes a single-sample offscreen target that the
// screen framebuffers resolve into.
func (r *Renderer) createScreenResources() error {
	a, err := r.createAttachment(r.swapchainFormat, vulkan.SampleCount1Bit,
		vulkan.ImageUsageColorAttachmentBit|vulkan.ImageUsageTransferSrcBit,
		vulkan.ImageAspectColorBit)
	if err != nil {
		return fmt.Errorf("create screen resources: %w", err)
	}
	r.screen = a
	return nil
}

func (r *Renderer) createDepthResources() error {
	a, err := r.createAttachment(r.depthFormat, r.msaaSamples,
		vulkan.ImageUsageDepthStencilAttachmentBit,
		vulkan.ImageAspectDepthBit)
	if err != nil {
		return fmt.Errorf("create depth resources: %w", err)
	}
	r.depth = a
	return nil
}

func (r *Renderer) newFramebuffer(resolve vulkan.ImageView) (vulkan.Framebuffer, error) {
	attachments := []vulkan.ImageView{r.color.view, r.depth.view, resolve}
	createInfo := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      r.renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           r.swapchainExtent.Width,
		Height:          r.swapchainExtent.Height,
		Layers:          1,
	}
	var fb vulkan.Framebuffer
	if res := vulkan.CreateFramebuffer(r.device, &createInfo, nil, &fb); res != vulkan.Success {
		return vulkan.Framebuffer(vulkan.NullHandle), vulkan.Error(res)
	}
	return fb, nil
}

func (r *Renderer) createFramebuffers() error {
	r.swapchainFramebuffers = make([]vulkan.Framebuffer, len(r.swapchainViews))
	r.screenFramebuffers = make([]vulkan.Framebuffer, len(r.swapchainViews))
	for i := range r.swapchainViews {
		fb, err := r.newFramebuffer(r.swapchainViews[i])
		if err != nil {
			return fmt.Errorf("create framebuffer %d: %w", i, err)
		}
		r.swapchainFramebuffers[i] = fb
		fb, err = r.newFramebuffer(r.screen.view)
		if err != nil {
			return fmt.Errorf("create screen framebuffer %d: %w", i, err)
		}
		r.screenFramebuffers[i] = fb
	}
	return nil
}

func (r *Renderer) createCommandBuffers() error {
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        r.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(len(r.swapchainFramebuffers)),
	}
	r.commandBuffers = make([]vulkan.CommandBuffer, len(r.swapchainFramebuffers))
	if res := vulkan.AllocateCommandBuffers(r.device, &allocInfo, r.commandBuffers); res != vulkan.Success {
		return fmt.Errorf("allocate command buffers: %w", vulkan.Error(res))
	}
	return nil
}

func (r *Renderer) destroyAttachment(a *attachment) {
	if a.view != vulkan.ImageView(vulkan.NullHandle) {
		vulkan.DestroyImageView(r.device, a.view, nil)
	}
	if a.image != vulkan.Image(vulkan.NullHandle) {
		vulkan.DestroyImage(r.device, a.image, nil)
	}
	if a.memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(r.device, a.memory, nil)
	}
	*a = attachment{}
}

func (r *Renderer) cleanupSwapchain() {
	if len(r.commandBuffers) > 0 {
		vulkan.FreeCommandBuffers(r.device, r.commandPool, uint32(len(r.commandBuffers)), r.commandBuffers)
		r.commandBuffers = nil
	}
	for _, fb := range r.swapchainFramebuffers {
		vulkan.DestroyFramebuffer(r.device, fb, nil)
	}
	r.swapchainFramebuffers = nil
	for _, fb := range r.screenFramebuffers {
		vulkan.DestroyFramebuffer(r.device, fb, nil)
	}
	r.screenFramebuffers = nil

	r.destroyAttachment(&r.color)
	r.destroyAttachment(&r.screen)
	r.destroyAttachment(&r.depth)

	if r.renderPass != vulkan.RenderPass(vulkan.NullHandle) {
		vulkan.DestroyRenderPass(r.device, r.renderPass, nil)
		r.renderPass = vulkan.RenderPass(vulkan.NullHandle)
	}
	for _, view := range r.swapchainViews {
		vulkan.DestroyImageView(r.device, view, nil)
	}
	r.swapchainViews = nil
	if r.swapchain != vulkan.Swapchain(vulkan.NullHandle) {
		vulkan.DestroySwapchain(r.device, r.swapchain, nil)
		r.swapchain = vulkan.Swapchain(vulkan.NullHandle)
	}
}

// recreateSwapchain rebuilds every size-dependent object after a resize or
// an out-of-date present. A failure part way leaves the renderer unusable.
func (r *Renderer) recreateSwapchain() error {
	for {
		w, h := r.window.GetFramebufferSize()
		if w > 0 && h > 0 {
			break
		}
		glfw.WaitEvents()
	}

	vulkan.DeviceWaitIdle(r.device)
	r.cleanupSwapchain()

	steps := []func() error{
		r.createSwapchain,
		r.createImageViews,
		r.createRenderPass,
		r.createColorResources,
		r.createScreenResources,
		r.createDepthResources,
		r.createFramebuffers,
		r.createCommandBuffers,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	r.imagesInFlight = make([]vulkan.Fence, len(r.swapchainImages))
	r.framebufferResized = false

	for h := range r.objects {
		if err := r.refreshObject(h); err != nil {
			return err
		}
	}
	for h := range r.uis {
		if err := r.refreshUI(h); err != nil {
			return err
		}
	}
	if r.hud != nil {
		if err := r.hud.refresh(r); err != nil {
			return err
		}
	}
	return nil
}

func clamp(val, min, max uint64) uint64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
