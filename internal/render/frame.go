package render

import (
	"fmt"
	"unsafe"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/kube-engine/internal/scene"
)

// frameOps are the device steps of one frame. runFrame sequences them.
type frameOps interface {
	waitFence(frame int)
	acquire(frame int) (image uint32, res vulkan.Result)
	// claimImage waits for any earlier frame still using image and hands
	// the image to frame.
	claimImage(frame int, image uint32)
	record(image uint32) error
	// submit resets the fence of frame and queues the recorded work.
	submit(frame int, image uint32) error
	present(frame int, image uint32) vulkan.Result
	takeResized() bool
	recreate() error
	waitPresentIdle()
}

// runFrame renders one frame with the in-flight slot frame and returns the
// slot of the next frame.
func runFrame(ops frameOps, frame int, waitIdle bool) (int, error) {
	ops.waitFence(frame)

	image, res := ops.acquire(frame)
	switch res {
	case vulkan.Success, vulkan.Suboptimal:
	case vulkan.ErrorOutOfDate:
		return frame, ops.recreate()
	default:
		return frame, fmt.Errorf("acquire next image: %w", vulkan.Error(res))
	}

	ops.claimImage(frame, image)
	if err := ops.record(image); err != nil {
		return frame, err
	}
	if err := ops.submit(frame, image); err != nil {
		return frame, err
	}

	res = ops.present(frame, image)
	resized := ops.takeResized()
	switch {
	case res == vulkan.ErrorOutOfDate || res == vulkan.Suboptimal || resized:
		if err := ops.recreate(); err != nil {
			return frame, err
		}
	case res != vulkan.Success:
		return frame, fmt.Errorf("queue present: %w", vulkan.Error(res))
	}

	if waitIdle {
		ops.waitPresentIdle()
	}
	return (frame + 1) % maxFramesInFlight, nil
}

// DrawFrame records and presents one frame. mouse is the cursor position
// handed to the compute pass.
func (r *Renderer) DrawFrame(mouse mgl32.Vec2) error {
	r.mouse = mouse
	next, err := runFrame(r, r.currentFrame, r.cfg.Render.WaitIdlePerFrame)
	r.currentFrame = next
	return err
}

func (r *Renderer) waitFence(frame int) {
	vulkan.WaitForFences(r.device, 1, []vulkan.Fence{r.inFlightFences[frame]}, vulkan.True, vulkan.MaxUint64)
}

func (r *Renderer) acquire(frame int) (uint32, vulkan.Result) {
	var image uint32
	res := vulkan.AcquireNextImage(r.device, r.swapchain, vulkan.MaxUint64, r.imageAvailable[frame], vulkan.Fence(vulkan.NullHandle), &image)
	return image, res
}

func (r *Renderer) claimImage(frame int, image uint32) {
	if r.imagesInFlight[image] != vulkan.Fence(vulkan.NullHandle) {
		vulkan.WaitForFences(r.device, 1, []vulkan.Fence{r.imagesInFlight[image]}, vulkan.True, vulkan.MaxUint64)
	}
	r.imagesInFlight[image] = r.inFlightFences[frame]
}

func (r *Renderer) submit(frame int, image uint32) error {
	vulkan.ResetFences(r.device, 1, []vulkan.Fence{r.inFlightFences[frame]})

	submitInfo := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{r.imageAvailable[frame]},
		PWaitDstStageMask:    []vulkan.PipelineStageFlags{vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{r.commandBuffers[image]},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{r.renderFinished[frame]},
	}
	if res := vulkan.QueueSubmit(r.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, r.inFlightFences[frame]); res != vulkan.Success {
		return fmt.Errorf("queue submit: %w", vulkan.Error(res))
	}
	return nil
}

func (r *Renderer) present(frame int, image uint32) vulkan.Result {
	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{r.renderFinished[frame]},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{r.swapchain},
		PImageIndices:      []uint32{image},
	}
	return vulkan.QueuePresent(r.presentQueue, &presentInfo)
}

func (r *Renderer) takeResized() bool {
	resized := r.framebufferResized
	r.framebufferResized = false
	return resized
}

func (r *Renderer) recreate() error { return r.recreateSwapchain() }

func (r *Renderer) waitPresentIdle() { vulkan.QueueWaitIdle(r.presentQueue) }

// record fills the command buffer of image: the compute pass of every model,
// then objects, UIs and the HUD in one render pass.
func (r *Renderer) record(image uint32) error {
	cb := r.commandBuffers[image]
	vulkan.ResetCommandBuffer(cb, 0)
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vulkan.BeginCommandBuffer(cb, &beginInfo); res != vulkan.Success {
		return fmt.Errorf("begin command buffer: %w", vulkan.Error(res))
	}

	cam := r.world.MainCamera()
	light := r.world.MainLight()
	objects := r.orderedObjects()

	r.recordCompute(cb, image, cam, objects)

	clearValues := []vulkan.ClearValue{
		vulkan.NewClearValue([]float32{0, 0, 0, 1}),
		vulkan.NewClearDepthStencil(1.0, 0),
		vulkan.NewClearValue([]float32{0, 0, 0, 1}),
	}
	renderPassInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  r.renderPass,
		Framebuffer: r.swapchainFramebuffers[image],
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: r.swapchainExtent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vulkan.CmdBeginRenderPass(cb, &renderPassInfo, vulkan.SubpassContentsInline)

	for _, res := range objects {
		if err := r.recordObject(cb, image, res, cam, light); err != nil {
			vulkan.CmdEndRenderPass(cb)
			vulkan.EndCommandBuffer(cb)
			return err
		}
	}
	r.world.UIs.Each(func(h scene.Handle, _ *scene.UI) {
		if res, ok := r.uis[h]; ok {
			recordMesh(cb, image, res.pipeline, res.layout, res.vertices, res.indices, res.indexCount, res.sets)
		}
	})
	if r.hud != nil {
		if err := r.hud.update(image, r.swapchainExtent); err != nil {
			vulkan.CmdEndRenderPass(cb)
			vulkan.EndCommandBuffer(cb)
			return err
		}
		r.hud.record(cb, image)
	}

	vulkan.CmdEndRenderPass(cb)
	if res := vulkan.EndCommandBuffer(cb); res != vulkan.Success {
		return fmt.Errorf("end command buffer: %w", vulkan.Error(res))
	}
	return nil
}

// orderedObjects lists the initialized objects in registration order.
func (r *Renderer) orderedObjects() []*objectResources {
	out := make([]*objectResources, 0, len(r.objects))
	r.world.Objects.Each(func(h scene.Handle, _ *scene.GameObject) {
		if res, ok := r.objects[h]; ok {
			out = append(out, res)
		}
	})
	return out
}

// stageBarrier is a global memory barrier between two pipeline stages.
type stageBarrier struct {
	src, dst       vulkan.PipelineStageFlags
	srcAcc, dstAcc vulkan.AccessFlags
}

func (b stageBarrier) record(cb vulkan.CommandBuffer) {
	barrier := vulkan.MemoryBarrier{
		SType:         vulkan.StructureTypeMemoryBarrier,
		SrcAccessMask: b.srcAcc,
		DstAccessMask: b.dstAcc,
	}
	vulkan.CmdPipelineBarrier(cb, b.src, b.dst, 0, 1, []vulkan.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

var (
	// texelWriteAfterRead keeps this frame's dispatch from writing a texel
	// buffer that an earlier frame's vertex stage may still read.
	texelWriteAfterRead = stageBarrier{
		src:    vulkan.PipelineStageFlags(vulkan.PipelineStageVertexShaderBit),
		dst:    vulkan.PipelineStageFlags(vulkan.PipelineStageComputeShaderBit),
		srcAcc: vulkan.AccessFlags(vulkan.AccessUniformReadBit | vulkan.AccessShaderReadBit),
		dstAcc: vulkan.AccessFlags(vulkan.AccessShaderWriteBit),
	}
	// texelReadAfterWrite makes the dispatch results visible to this frame's
	// vertex stage.
	texelReadAfterWrite = stageBarrier{
		src:    vulkan.PipelineStageFlags(vulkan.PipelineStageComputeShaderBit),
		dst:    vulkan.PipelineStageFlags(vulkan.PipelineStageVertexShaderBit),
		srcAcc: vulkan.AccessFlags(vulkan.AccessShaderWriteBit),
		dstAcc: vulkan.AccessFlags(vulkan.AccessUniformReadBit | vulkan.AccessShaderReadBit),
	}
)

func (r *Renderer) recordCompute(cb vulkan.CommandBuffer, image uint32, cam *scene.Camera, objects []*objectResources) {
	models := 0
	for _, res := range objects {
		models += len(res.models)
	}
	if models == 0 {
		return
	}

	constants := dispatchConstants(cam, r.mouse)
	texelWriteAfterRead.record(cb)
	for _, res := range objects {
		for _, mr := range res.models {
			vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointCompute, mr.compute)
			vulkan.CmdBindDescriptorSets(cb, vulkan.PipelineBindPointCompute, res.computeLayout, 0, 1, []vulkan.DescriptorSet{mr.sets[image]}, 0, nil)
			vulkan.CmdPushConstants(cb, res.computeLayout, vulkan.ShaderStageFlags(vulkan.ShaderStageComputeBit), 0, computeConstSize, unsafe.Pointer(&constants))
			vulkan.CmdDispatch(cb, 2, 1, 1)
		}
	}
	texelReadAfterWrite.record(cb)
}

func (r *Renderer) recordObject(cb vulkan.CommandBuffer, image uint32, res *objectResources, cam *scene.Camera, light *scene.Light) error {
	constants := objectConstants(res.obj, cam, light)
	for _, mr := range res.models {
		ubo := objectUniforms(res.obj, mr.model, cam, r.swapchainExtent.Width, r.swapchainExtent.Height)
		if err := r.writeUniforms(mr.uniforms[image], &ubo); err != nil {
			return fmt.Errorf("object %s model %s: %w", res.obj.Name, mr.model.Name, err)
		}
		vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointGraphics, mr.pipeline)
		vulkan.CmdPushConstants(cb, res.layout, vulkan.ShaderStageFlags(vulkan.ShaderStageAllGraphics), 0, graphicsConstSize, unsafe.Pointer(&constants))
		recordMesh(cb, image, vulkan.Pipeline(vulkan.NullHandle), res.layout, mr.vertices, mr.indices, mr.indexCount, mr.sets)
	}
	return nil
}

// recordMesh binds the buffers and the set of image and draws. A null
// pipeline keeps the one already bound.
func recordMesh(cb vulkan.CommandBuffer, image uint32, pipeline vulkan.Pipeline, layout vulkan.PipelineLayout, vb, ib buffer, count uint32, sets []vulkan.DescriptorSet) {
	if pipeline != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointGraphics, pipeline)
	}
	vulkan.CmdBindVertexBuffers(cb, 0, 1, []vulkan.Buffer{vb.handle}, []vulkan.DeviceSize{0})
	vulkan.CmdBindIndexBuffer(cb, ib.handle, 0, vulkan.IndexTypeUint32)
	vulkan.CmdBindDescriptorSets(cb, vulkan.PipelineBindPointGraphics, layout, 0, 1, []vulkan.DescriptorSet{sets[image]}, 0, nil)
	vulkan.CmdDrawIndexed(cb, count, 1, 0, 0, 0)
}
