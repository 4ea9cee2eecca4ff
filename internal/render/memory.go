package render

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/vulkan-go/vulkan"
)

var (
	ErrNoMemoryType  = errors.New("no suitable memory type")
	ErrNoDepthFormat = errors.New("no supported depth format")
)

func queryMemoryProperties(dev vulkan.PhysicalDevice) vulkan.PhysicalDeviceMemoryProperties {
	var props vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(dev, &props)
	props.Deref()
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
	}
	return props
}

// findMemoryType returns the first memory type allowed by typeBits whose
// flags include want.
func findMemoryType(props vulkan.PhysicalDeviceMemoryProperties, typeBits uint32, want vulkan.MemoryPropertyFlagBits) (uint32, error) {
	flags := vulkan.MemoryPropertyFlags(want)
	for i := uint32(0); i < props.MemoryTypeCount && i < uint32(len(props.MemoryTypes)); i++ {
		if typeBits&(1<<i) != 0 && props.MemoryTypes[i].PropertyFlags&flags == flags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("type bits %#x, flags %#x: %w", typeBits, flags, ErrNoMemoryType)
}

func (r *Renderer) allocate(req vulkan.MemoryRequirements, props vulkan.MemoryPropertyFlagBits) (vulkan.DeviceMemory, error) {
	typeIndex, err := findMemoryType(r.memProps, req.MemoryTypeBits, props)
	if err != nil {
		return vulkan.DeviceMemory(vulkan.NullHandle), err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(r.device, &allocInfo, nil, &memory); res != vulkan.Success {
		return vulkan.DeviceMemory(vulkan.NullHandle), vulkan.Error(res)
	}
	return memory, nil
}

// buffer is a buffer with its own allocation.
type buffer struct {
	handle vulkan.Buffer
	memory vulkan.DeviceMemory
	size   vulkan.DeviceSize
}

func (b *buffer) destroy(device vulkan.Device) {
	if b.handle != vulkan.Buffer(vulkan.NullHandle) {
		vulkan.DestroyBuffer(device, b.handle, nil)
	}
	if b.memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(device, b.memory, nil)
	}
	*b = buffer{}
}

func (r *Renderer) createBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, props vulkan.MemoryPropertyFlagBits) (buffer, error) {
	bufferInfo := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	var handle vulkan.Buffer
	if res := vulkan.CreateBuffer(r.device, &bufferInfo, nil, &handle); res != vulkan.Success {
		return buffer{}, fmt.Errorf("create buffer: %w", vulkan.Error(res))
	}
	var memReq vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(r.device, handle, &memReq)
	memReq.Deref()

	memory, err := r.allocate(memReq, props)
	if err != nil {
		vulkan.DestroyBuffer(r.device, handle, nil)
		return buffer{}, fmt.Errorf("allocate buffer memory: %w", err)
	}
	if res := vulkan.BindBufferMemory(r.device, handle, memory, 0); res != vulkan.Success {
		vulkan.DestroyBuffer(r.device, handle, nil)
		vulkan.FreeMemory(r.device, memory, nil)
		return buffer{}, fmt.Errorf("bind buffer memory: %w", vulkan.Error(res))
	}
	return buffer{handle: handle, memory: memory, size: size}, nil
}

type imageSpec struct {
	width, height uint32
	mips          uint32
	samples       vulkan.SampleCountFlagBits
	format        vulkan.Format
	tiling        vulkan.ImageTiling
	usage         vulkan.ImageUsageFlags
	props         vulkan.MemoryPropertyFlagBits
}

func (r *Renderer) createImage(spec imageSpec) (vulkan.Image, vulkan.DeviceMemory, error) {
	createInfo := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Extent: vulkan.Extent3D{
			Width:  spec.width,
			Height: spec.height,
			Depth:  1,
		},
		MipLevels:     spec.mips,
		ArrayLayers:   1,
		Format:        spec.format,
		Tiling:        spec.tiling,
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         spec.usage,
		Samples:       spec.samples,
		SharingMode:   vulkan.SharingModeExclusive,
	}

	var image vulkan.Image
	if res := vulkan.CreateImage(r.device, &createInfo, nil, &image); res != vulkan.Success {
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("create image: %w", vulkan.Error(res))
	}

	var memReq vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(r.device, image, &memReq)
	memReq.Deref()

	memory, err := r.allocate(memReq, spec.props)
	if err != nil {
		vulkan.DestroyImage(r.device, image, nil)
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("allocate image memory: %w", err)
	}
	if res := vulkan.BindImageMemory(r.device, image, memory, 0); res != vulkan.Success {
		vulkan.DestroyImage(r.device, image, nil)
		vulkan.FreeMemory(r.device, memory, nil)
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("bind image memory: %w", vulkan.Error(res))
	}
	return image, memory, nil
}

func (r *Renderer) createImageView(image vulkan.Image, format vulkan.Format, aspect vulkan.ImageAspectFlags, mips uint32) (vulkan.ImageView, error) {
	createInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mips,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vulkan.ImageView
	if res := vulkan.CreateImageView(r.device, &createInfo, nil, &view); res != vulkan.Success {
		return vulkan.ImageView(vulkan.NullHandle), fmt.Errorf("create image view: %w", vulkan.Error(res))
	}
	return view, nil
}

// beginSingleTimeCommands allocates a command buffer for one synchronous
// submission. It must be paired with endSingleTimeCommands.
func (r *Renderer) beginSingleTimeCommands() (vulkan.CommandBuffer, error) {
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandPool:        r.commandPool,
		CommandBufferCount: 1,
	}
	cbs := make([]vulkan.CommandBuffer, 1)
	if res := vulkan.AllocateCommandBuffers(r.device, &allocInfo, cbs); res != vulkan.Success {
		return nil, fmt.Errorf("allocate transfer command buffer: %w", vulkan.Error(res))
	}
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vulkan.BeginCommandBuffer(cbs[0], &beginInfo); res != vulkan.Success {
		vulkan.FreeCommandBuffers(r.device, r.commandPool, 1, cbs)
		return nil, fmt.Errorf("begin transfer command buffer: %w", vulkan.Error(res))
	}
	return cbs[0], nil
}

// endSingleTimeCommands submits cb and waits for the graphics queue to drain.
func (r *Renderer) endSingleTimeCommands(cb vulkan.CommandBuffer) error {
	cbs := []vulkan.CommandBuffer{cb}
	defer vulkan.FreeCommandBuffers(r.device, r.commandPool, 1, cbs)

	if res := vulkan.EndCommandBuffer(cb); res != vulkan.Success {
		return fmt.Errorf("end transfer command buffer: %w", vulkan.Error(res))
	}
	submitInfo := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cbs,
	}
	if res := vulkan.QueueSubmit(r.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, vulkan.Fence(vulkan.NullHandle)); res != vulkan.Success {
		return fmt.Errorf("submit transfer: %w", vulkan.Error(res))
	}
	if res := vulkan.QueueWaitIdle(r.graphicsQueue); res != vulkan.Success {
		return fmt.Errorf("wait transfer: %w", vulkan.Error(res))
	}
	return nil
}

// oneShot records fn into a single-time command buffer and runs it.
func (r *Renderer) oneShot(fn func(cb vulkan.CommandBuffer)) error {
	cb, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}
	fn(cb)
	return r.endSingleTimeCommands(cb)
}

func (r *Renderer) copyBuffer(src, dst vulkan.Buffer, size vulkan.DeviceSize) error {
	return r.oneShot(func(cb vulkan.CommandBuffer) {
		vulkan.CmdCopyBuffer(cb, src, dst, 1, []vulkan.BufferCopy{{Size: size}})
	})
}

func (r *Renderer) writeMemory(memory vulkan.DeviceMemory, data []byte) error {
	size := vulkan.DeviceSize(len(data))
	var ptr unsafe.Pointer
	if res := vulkan.MapMemory(r.device, memory, 0, size, 0, &ptr); res != vulkan.Success {
		return fmt.Errorf("map memory: %w", vulkan.Error(res))
	}
	copy((*[1 << 30]byte)(ptr)[:size:size], data)
	vulkan.UnmapMemory(r.device, memory)
	return nil
}

func (r *Renderer) readMemory(memory vulkan.DeviceMemory, size vulkan.DeviceSize) ([]byte, error) {
	var ptr unsafe.Pointer
	if res := vulkan.MapMemory(r.device, memory, 0, size, 0, &ptr); res != vulkan.Success {
		return nil, fmt.Errorf("map memory: %w", vulkan.Error(res))
	}
	out := make([]byte, size)
	copy(out, (*[1 << 30]byte)(ptr)[:size:size])
	vulkan.UnmapMemory(r.device, memory)
	return out, nil
}

func (r *Renderer) createStaging(data []byte) (buffer, error) {
	staging, err := r.createBuffer(vulkan.DeviceSize(len(data)),
		vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit),
		vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return buffer{}, fmt.Errorf("create staging buffer: %w", err)
	}
	if err := r.writeMemory(staging.memory, data); err != nil {
		staging.destroy(r.device)
		return buffer{}, err
	}
	return staging, nil
}

// uploadStaged copies data into a new device-local buffer through a
// temporary host-visible one.
func (r *Renderer) uploadStaged(data []byte, usage vulkan.BufferUsageFlagBits) (buffer, error) {
	staging, err := r.createStaging(data)
	if err != nil {
		return buffer{}, err
	}
	defer staging.destroy(r.device)

	size := vulkan.DeviceSize(len(data))
	dst, err := r.createBuffer(size,
		vulkan.BufferUsageFlags(usage|vulkan.BufferUsageTransferDstBit),
		vulkan.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return buffer{}, err
	}
	if err := r.copyBuffer(staging.handle, dst.handle, size); err != nil {
		dst.destroy(r.device)
		return buffer{}, err
	}
	return dst, nil
}

// readback copies a device-local buffer into host memory.
func (r *Renderer) readback(src buffer) ([]byte, error) {
	staging, err := r.createBuffer(src.size,
		vulkan.BufferUsageFlags(vulkan.BufferUsageTransferDstBit),
		vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, fmt.Errorf("create readback buffer: %w", err)
	}
	defer staging.destroy(r.device)

	if err := r.copyBuffer(src.handle, staging.handle, src.size); err != nil {
		return nil, err
	}
	return r.readMemory(staging.memory, src.size)
}

func bytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	n := len(s) * int(unsafe.Sizeof(s[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n)
}
