package render

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/kube-engine/internal/mesh"
	"github.com/hellhand/kube-engine/internal/scene"
)

const texelFormat = vulkan.FormatR32g32b32a32Sfloat

// modelResources holds the GPU side of one scene.Model.
type modelResources struct {
	model *scene.Model

	tex        texture
	vertices   buffer
	indices    buffer
	indexCount uint32

	pipeline vulkan.Pipeline
	compute  vulkan.Pipeline

	uniforms  []buffer
	texels    buffer
	texelView vulkan.BufferView
	pool      vulkan.DescriptorPool
	sets      []vulkan.DescriptorSet
}

type objectResources struct {
	obj *scene.GameObject

	setLayout     vulkan.DescriptorSetLayout
	layout        vulkan.PipelineLayout
	computeLayout vulkan.PipelineLayout

	models []*modelResources
}

var objectBindings = []vulkan.DescriptorSetLayoutBinding{
	{Binding: 0, DescriptorType: vulkan.DescriptorTypeUniformBuffer, DescriptorCount: 1, StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit)},
	{Binding: 1, DescriptorType: vulkan.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageFragmentBit)},
	{Binding: 2, DescriptorType: vulkan.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageFragmentBit)},
	{Binding: 3, DescriptorType: vulkan.DescriptorTypeStorageTexelBuffer, DescriptorCount: 1, StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageComputeBit)},
	{Binding: 4, DescriptorType: vulkan.DescriptorTypeUniformBuffer, DescriptorCount: 1, StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit)},
}

// InitObject provisions every GPU resource of the GameObject h.
func (r *Renderer) InitObject(h scene.Handle) error {
	g := r.world.Objects.Get(h)
	if g == nil {
		return fmt.Errorf("init object: no object with handle %d", h)
	}
	if _, ok := r.objects[h]; ok {
		return fmt.Errorf("init object %s: already initialized", g.Name)
	}

	res := &objectResources{obj: g}
	r.objects[h] = res

	setLayout, err := r.createDescriptorSetLayout(objectBindings)
	if err != nil {
		return fmt.Errorf("object %s: %w", g.Name, err)
	}
	res.setLayout = setLayout

	for _, m := range g.Models {
		res.models = append(res.models, &modelResources{model: m})
	}
	if err := r.createObjectPipelines(res); err != nil {
		return err
	}
	for _, mr := range res.models {
		if err := r.loadModel(mr); err != nil {
			return fmt.Errorf("object %s: %w", g.Name, err)
		}
	}
	if err := r.createObjectBindings(res); err != nil {
		return err
	}

	slog.Debug("object ready", "name", g.Name, "handle", h, "models", len(res.models))
	return nil
}

func (r *Renderer) createObjectPipelines(res *objectResources) error {
	var err error
	sets := []vulkan.DescriptorSetLayout{res.setLayout}

	res.computeLayout, err = r.createPipelineLayout(sets, []vulkan.PushConstantRange{{
		StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageComputeBit),
		Size:       computeConstSize,
	}})
	if err != nil {
		return fmt.Errorf("object %s: %w", res.obj.Name, err)
	}
	res.layout, err = r.createPipelineLayout(sets, []vulkan.PushConstantRange{{
		StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageAllGraphics),
		Size:       graphicsConstSize,
	}})
	if err != nil {
		return fmt.Errorf("object %s: %w", res.obj.Name, err)
	}

	for _, mr := range res.models {
		mr.compute, err = r.createComputePipeline(r.cfg.Assets.Shaders.Compute, res.computeLayout)
		if err != nil {
			return fmt.Errorf("object %s model %s: %w", res.obj.Name, mr.model.Name, err)
		}
		mr.pipeline, err = r.createGraphicsPipeline(graphicsPipeline{
			vertPath:  mr.model.VertPath,
			fragPath:  mr.model.FragPath,
			layout:    res.layout,
			vertex:    meshVertexLayout,
			topology:  topology(mr.model.Topology),
			polygon:   polygonMode(mr.model.Polygon),
			cull:      cullMode(mr.model.Cull),
			depthTest: true,
		})
		if err != nil {
			return fmt.Errorf("object %s model %s: %w", res.obj.Name, mr.model.Name, err)
		}
	}
	return nil
}

// loadModel uploads the texture and mesh of mr. They survive swapchain
// recreation.
func (r *Renderer) loadModel(mr *modelResources) error {
	var err error
	mr.tex, err = r.createTextureImage(r.cfg.Path(mr.model.TexPath))
	if err != nil {
		return fmt.Errorf("model %s: %w", mr.model.Name, err)
	}
	m, err := mesh.LoadOBJFile(r.cfg.Path(mr.model.ObjPath))
	if err != nil {
		return fmt.Errorf("model %s: %w", mr.model.Name, err)
	}
	return r.uploadMesh(m, &mr.vertices, &mr.indices, &mr.indexCount)
}

func (r *Renderer) uploadMesh(m mesh.Mesh, vb, ib *buffer, count *uint32) error {
	var err error
	*vb, err = r.uploadStaged(bytesOf(m.Vertices), vulkan.BufferUsageVertexBufferBit)
	if err != nil {
		return fmt.Errorf("vertex buffer: %w", err)
	}
	*ib, err = r.uploadStaged(bytesOf(m.Indices), vulkan.BufferUsageIndexBufferBit)
	if err != nil {
		return fmt.Errorf("index buffer: %w", err)
	}
	*count = uint32(len(m.Indices))
	return nil
}

func (r *Renderer) texelSeed() []float32 {
	if len(r.world.Texels) == 0 {
		return make([]float32, 4)
	}
	return r.world.Texels
}

// createObjectBindings builds the per-image uniforms, the texel buffer and
// the descriptor sets of every model of res.
func (r *Renderer) createObjectBindings(res *objectResources) error {
	n := uint32(len(r.swapchainImages))
	for _, mr := range res.models {
		var err error
		if mr.uniforms, err = r.createUniformBuffers(uboSize); err != nil {
			return fmt.Errorf("object %s model %s: %w", res.obj.Name, mr.model.Name, err)
		}
		if err := r.createTexelBuffer(mr); err != nil {
			return fmt.Errorf("object %s model %s: %w", res.obj.Name, mr.model.Name, err)
		}

		mr.pool, err = r.createDescriptorPool([]vulkan.DescriptorPoolSize{
			{Type: vulkan.DescriptorTypeUniformBuffer, DescriptorCount: n},
			{Type: vulkan.DescriptorTypeCombinedImageSampler, DescriptorCount: n},
			{Type: vulkan.DescriptorTypeCombinedImageSampler, DescriptorCount: n},
			{Type: vulkan.DescriptorTypeStorageTexelBuffer, DescriptorCount: n},
			{Type: vulkan.DescriptorTypeUniformBuffer, DescriptorCount: n},
		}, n)
		if err != nil {
			return fmt.Errorf("object %s model %s: %w", res.obj.Name, mr.model.Name, err)
		}
		if mr.sets, err = r.allocateDescriptorSets(mr.pool, res.setLayout); err != nil {
			return fmt.Errorf("object %s model %s: %w", res.obj.Name, mr.model.Name, err)
		}
		for i, set := range mr.sets {
			r.writeObjectSet(set, mr, i)
		}
	}
	return nil
}

func (r *Renderer) createTexelBuffer(mr *modelResources) error {
	var err error
	mr.texels, err = r.uploadStaged(bytesOf(r.texelSeed()),
		vulkan.BufferUsageStorageTexelBufferBit|vulkan.BufferUsageUniformBufferBit|vulkan.BufferUsageTransferSrcBit)
	if err != nil {
		return fmt.Errorf("texel buffer: %w", err)
	}
	viewInfo := vulkan.BufferViewCreateInfo{
		SType:  vulkan.StructureTypeBufferViewCreateInfo,
		Buffer: mr.texels.handle,
		Format: texelFormat,
		Offset: 0,
		Range:  mr.texels.size,
	}
	if res := vulkan.CreateBufferView(r.device, &viewInfo, nil, &mr.texelView); res != vulkan.Success {
		return fmt.Errorf("create texel buffer view: %w", vulkan.Error(res))
	}
	return nil
}

func (r *Renderer) writeObjectSet(set vulkan.DescriptorSet, mr *modelResources, image int) {
	imageInfo := []vulkan.DescriptorImageInfo{{
		Sampler:     r.sampler,
		ImageView:   mr.tex.view,
		ImageLayout: vulkan.ImageLayoutShaderReadOnlyOptimal,
	}}
	writes := []vulkan.WriteDescriptorSet{
		{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vulkan.DescriptorBufferInfo{{Buffer: mr.uniforms[image].handle, Range: uboSize}},
		},
		{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      1,
			DescriptorCount: 1,
			DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
			PImageInfo:      imageInfo,
		},
		{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      2,
			DescriptorCount: 1,
			DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
			PImageInfo:      imageInfo,
		},
		{
			SType:            vulkan.StructureTypeWriteDescriptorSet,
			DstSet:           set,
			DstBinding:       3,
			DescriptorCount:  1,
			DescriptorType:   vulkan.DescriptorTypeStorageTexelBuffer,
			PTexelBufferView: []vulkan.BufferView{mr.texelView},
		},
		{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      4,
			DescriptorCount: 1,
			DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vulkan.DescriptorBufferInfo{{Buffer: mr.texels.handle, Range: mr.texels.size}},
		},
	}
	vulkan.UpdateDescriptorSets(r.device, uint32(len(writes)), writes, 0, nil)
}

func (r *Renderer) destroyObjectBindings(res *objectResources) {
	for _, mr := range res.models {
		destroyDescriptorPool(r.device, &mr.pool)
		mr.sets = nil
		if mr.texelView != vulkan.BufferView(vulkan.NullHandle) {
			vulkan.DestroyBufferView(r.device, mr.texelView, nil)
			mr.texelView = vulkan.BufferView(vulkan.NullHandle)
		}
		mr.texels.destroy(r.device)
		destroyBuffers(r.device, mr.uniforms)
		mr.uniforms = nil
	}
}

func (r *Renderer) destroyObjectPipelines(res *objectResources) {
	for _, mr := range res.models {
		destroyPipeline(r.device, &mr.pipeline)
		destroyPipeline(r.device, &mr.compute)
	}
	destroyPipelineLayout(r.device, &res.layout)
	destroyPipelineLayout(r.device, &res.computeLayout)
}

// refreshObject rebuilds what depends on the swapchain. Meshes and textures
// are kept.
func (r *Renderer) refreshObject(h scene.Handle) error {
	res, ok := r.objects[h]
	if !ok {
		return nil
	}
	r.destroyObjectBindings(res)
	r.destroyObjectPipelines(res)
	if err := r.createObjectPipelines(res); err != nil {
		return err
	}
	return r.createObjectBindings(res)
}

// DestroyObject releases the GPU resources of h. The caller must make sure
// the device is idle.
func (r *Renderer) DestroyObject(h scene.Handle) {
	res, ok := r.objects[h]
	if !ok {
		return
	}
	r.destroyObjectBindings(res)
	r.destroyObjectPipelines(res)
	for _, mr := range res.models {
		mr.indices.destroy(r.device)
		mr.vertices.destroy(r.device)
		mr.tex.destroy(r.device)
	}
	if res.setLayout != vulkan.DescriptorSetLayout(vulkan.NullHandle) {
		vulkan.DestroyDescriptorSetLayout(r.device, res.setLayout, nil)
	}
	delete(r.objects, h)
}

// ReadTexels copies the texel buffer of the model at index model of h back
// to the host.
func (r *Renderer) ReadTexels(h scene.Handle, model int) ([]float32, error) {
	res, ok := r.objects[h]
	if !ok {
		return nil, fmt.Errorf("read texels: object %d not initialized", h)
	}
	if model < 0 || model >= len(res.models) {
		return nil, fmt.Errorf("read texels: object %s has no model %d", res.obj.Name, model)
	}
	data, err := r.readback(res.models[model].texels)
	if err != nil {
		return nil, fmt.Errorf("read texels of %s: %w", res.obj.Name, err)
	}
	out := make([]float32, len(data)/4)
	copy(out, unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(out)))
	return out, nil
}
