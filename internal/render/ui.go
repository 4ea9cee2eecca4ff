package render

import (
	"fmt"
	"log/slog"

	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/kube-engine/internal/mesh"
	"github.com/hellhand/kube-engine/internal/scene"
)

type uiResources struct {
	ui *scene.UI

	setLayout vulkan.DescriptorSetLayout
	layout    vulkan.PipelineLayout
	pipeline  vulkan.Pipeline

	tex        texture
	vertices   buffer
	indices    buffer
	indexCount uint32

	uniforms []buffer
	pool     vulkan.DescriptorPool
	sets     []vulkan.DescriptorSet
}

var uiBindings = []vulkan.DescriptorSetLayoutBinding{
	{Binding: 0, DescriptorType: vulkan.DescriptorTypeUniformBuffer, DescriptorCount: 1, StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit)},
	{Binding: 1, DescriptorType: vulkan.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageFragmentBit)},
}

// InitUI provisions the quad, texture and pipeline of the UI h.
func (r *Renderer) InitUI(h scene.Handle) error {
	ui := r.world.UIs.Get(h)
	if ui == nil {
		return fmt.Errorf("init ui: no ui with handle %d", h)
	}
	if _, ok := r.uis[h]; ok {
		return fmt.Errorf("init ui %s: already initialized", ui.Name)
	}
	res := &uiResources{ui: ui}
	r.uis[h] = res

	var err error
	if res.setLayout, err = r.createDescriptorSetLayout(uiBindings); err != nil {
		return fmt.Errorf("ui %s: %w", ui.Name, err)
	}
	if err := r.createUIPipeline(res); err != nil {
		return err
	}
	if res.tex, err = r.createTextureImage(r.cfg.Path(ui.TexPath)); err != nil {
		return fmt.Errorf("ui %s: %w", ui.Name, err)
	}
	if err := r.uploadMesh(mesh.UIQuad(ui.NormExtent), &res.vertices, &res.indices, &res.indexCount); err != nil {
		return fmt.Errorf("ui %s: %w", ui.Name, err)
	}
	if err := r.createUIBindings(res); err != nil {
		return err
	}

	slog.Debug("ui ready", "name", ui.Name, "handle", h, "extent", ui.Extent)
	return nil
}

func (r *Renderer) createUIPipeline(res *uiResources) error {
	var err error
	res.layout, err = r.createPipelineLayout([]vulkan.DescriptorSetLayout{res.setLayout}, nil)
	if err != nil {
		return fmt.Errorf("ui %s: %w", res.ui.Name, err)
	}
	res.pipeline, err = r.createGraphicsPipeline(graphicsPipeline{
		vertPath:  res.ui.VertPath,
		fragPath:  res.ui.FragPath,
		layout:    res.layout,
		vertex:    meshVertexLayout,
		topology:  vulkan.PrimitiveTopologyTriangleList,
		polygon:   vulkan.PolygonModeFill,
		cull:      vulkan.CullModeNone,
		depthTest: true,
	})
	if err != nil {
		return fmt.Errorf("ui %s: %w", res.ui.Name, err)
	}
	return nil
}

// createUIBindings writes the identity transform once; UIs are already in
// clip space.
func (r *Renderer) createUIBindings(res *uiResources) error {
	n := uint32(len(r.swapchainImages))
	var err error
	if res.uniforms, err = r.createUniformBuffers(uboSize); err != nil {
		return fmt.Errorf("ui %s: %w", res.ui.Name, err)
	}
	ubo := identityUniforms()
	for _, b := range res.uniforms {
		if err := r.writeUniforms(b, &ubo); err != nil {
			return fmt.Errorf("ui %s: %w", res.ui.Name, err)
		}
	}

	res.pool, err = r.createDescriptorPool([]vulkan.DescriptorPoolSize{
		{Type: vulkan.DescriptorTypeUniformBuffer, DescriptorCount: n},
		{Type: vulkan.DescriptorTypeCombinedImageSampler, DescriptorCount: n},
	}, n)
	if err != nil {
		return fmt.Errorf("ui %s: %w", res.ui.Name, err)
	}
	if res.sets, err = r.allocateDescriptorSets(res.pool, res.setLayout); err != nil {
		return fmt.Errorf("ui %s: %w", res.ui.Name, err)
	}
	for i, set := range res.sets {
		writes := []vulkan.WriteDescriptorSet{
			{
				SType:           vulkan.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      0,
				DescriptorCount: 1,
				DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
				PBufferInfo:     []vulkan.DescriptorBufferInfo{{Buffer: res.uniforms[i].handle, Range: uboSize}},
			},
			{
				SType:           vulkan.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      1,
				DescriptorCount: 1,
				DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
				PImageInfo: []vulkan.DescriptorImageInfo{{
					Sampler:     r.sampler,
					ImageView:   res.tex.view,
					ImageLayout: vulkan.ImageLayoutShaderReadOnlyOptimal,
				}},
			},
		}
		vulkan.UpdateDescriptorSets(r.device, uint32(len(writes)), writes, 0, nil)
	}
	return nil
}

func (r *Renderer) destroyUIBindings(res *uiResources) {
	destroyDescriptorPool(r.device, &res.pool)
	res.sets = nil
	destroyBuffers(r.device, res.uniforms)
	res.uniforms = nil
}

func (r *Renderer) refreshUI(h scene.Handle) error {
	res, ok := r.uis[h]
	if !ok {
		return nil
	}
	r.destroyUIBindings(res)
	destroyPipeline(r.device, &res.pipeline)
	destroyPipelineLayout(r.device, &res.layout)
	if err := r.createUIPipeline(res); err != nil {
		return err
	}
	return r.createUIBindings(res)
}

func (r *Renderer) DestroyUI(h scene.Handle) {
	res, ok := r.uis[h]
	if !ok {
		return
	}
	r.destroyUIBindings(res)
	destroyPipeline(r.device, &res.pipeline)
	destroyPipelineLayout(r.device, &res.layout)
	res.indices.destroy(r.device)
	res.vertices.destroy(r.device)
	res.tex.destroy(r.device)
	if res.setLayout != vulkan.DescriptorSetLayout(vulkan.NullHandle) {
		vulkan.DestroyDescriptorSetLayout(r.device, res.setLayout, nil)
	}
	delete(r.uis, h)
}
